package websession

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultSweepInterval = time.Hour

// Purger drops expired records and reports how many went away.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// StartSweeper runs every purger each interval until ctx is done.
func StartSweeper(ctx context.Context, interval time.Duration, log logrus.FieldLogger, purgers ...Purger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go sweepLoop(ctx, interval, log.WithField("component", "sweeper"), purgers)
}

func sweepLoop(ctx context.Context, interval time.Duration, log logrus.FieldLogger, purgers []Purger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, log, purgers)
		}
	}
}

func sweepOnce(ctx context.Context, log logrus.FieldLogger, purgers []Purger) {
	for _, p := range purgers {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			log.Errorf("purge expired: %v", err)
			continue
		}
		if n > 0 {
			log.Debugf("purged %d expired records", n)
		}
	}
}
