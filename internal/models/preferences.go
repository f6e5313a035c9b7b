package models

import "time"

// Bucket is the time granularity used when displaying plan reports.
type Bucket string

const (
	BucketStandard Bucket = "standard"
	BucketDay      Bucket = "day"
	BucketWeek     Bucket = "week"
	BucketMonth    Bucket = "month"
	BucketQuarter  Bucket = "quarter"
	BucketYear     Bucket = "year"
)

// BucketChoices lists the valid buckets with their display labels, in display order.
var BucketChoices = []struct {
	Value Bucket
	Label string
}{
	{BucketStandard, "Standard"},
	{BucketDay, "Day"},
	{BucketWeek, "Week"},
	{BucketMonth, "Month"},
	{BucketQuarter, "Quarter"},
	{BucketYear, "Year"},
}

// Valid reports whether b is one of BucketChoices.
func (b Bucket) Valid() bool {
	for _, c := range BucketChoices {
		if c.Value == b {
			return true
		}
	}
	return false
}

// Preferences holds the per-user report settings. Exactly one row exists per user.
type Preferences struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Buckets      Bucket     `json:"buckets"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	LastModified time.Time  `json:"last_modified"`
}
