package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler fires a background triage run once a day at a fixed
// wall-clock time. Failures are logged and swallowed: a scheduled run
// never propagates external-service errors, the next day's run starts
// over from fresh data.
type Scheduler struct {
	At   string // "HH:MM", local time
	Name string // label for log lines
	Run  func(ctx context.Context) error
}

// Start blocks until ctx is cancelled, invoking Run at each daily tick.
func (s *Scheduler) Start(ctx context.Context) error {
	at, err := parseClock(s.At)
	if err != nil {
		return fmt.Errorf("parse schedule time: %w", err)
	}

	for {
		next := nextTick(time.Now(), at)
		timer := time.NewTimer(time.Until(next))
		slog.Info("scheduled run", "name", s.Name, "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.Run(ctx); err != nil {
			slog.Error("scheduled run failed", "name", s.Name, "err", err)
		}
	}
}

// clockTime is a wall-clock time of day.
type clockTime struct {
	hour, min int
}

func parseClock(v string) (clockTime, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return clockTime{}, err
	}
	return clockTime{hour: t.Hour(), min: t.Minute()}, nil
}

// nextTick returns the next occurrence of the wall-clock time strictly
// after now.
func nextTick(now time.Time, at clockTime) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), at.hour, at.min, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
