package verify

import (
	"context"
	"time"

	"github.com/ppiankov/athena/internal/model"
)

// Cadence is a linear backoff between attempts: Initial, Initial+Step, ...
// never more than Max
type Cadence struct {
	Initial time.Duration
	Step    time.Duration
	Max     time.Duration
}

// DefaultCadence waits 1s, 2s, 3s, 4s, then 5s between polls
func DefaultCadence() Cadence {
	return Cadence{Initial: time.Second, Step: time.Second, Max: 5 * time.Second}
}

// CadenceFromConfig builds a Cadence from the polling section
func CadenceFromConfig(cfg model.PollingConfig) Cadence {
	return Cadence{Initial: cfg.InitialDelay, Step: cfg.Step, Max: cfg.MaxDelay}
}

// Delay returns the wait after the n-th attempt (n starts at 1)
func (c Cadence) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := c.Initial + c.Step*time.Duration(n-1)
	if c.Max > 0 && d > c.Max {
		d = c.Max
	}
	if d < 0 {
		return 0
	}
	return d
}

// sleepFunc waits between attempts (injectable for tests)
var sleepFunc = defaultSleep

// defaultSleep returns false if ctx ended first
func defaultSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
