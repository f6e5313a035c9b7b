package models

import "time"

// Plan is the single planning scenario; CurrentDate anchors new user preferences.
type Plan struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	CurrentDate time.Time `json:"current_date"`
}
