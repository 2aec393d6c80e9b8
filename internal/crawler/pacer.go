package crawler

import (
	"context"
	"time"
)

// Pacer spaces out page requests.
// The spider calls Wait before every page fetch except the seed.
type Pacer interface {
	// Wait blocks until the next request may be issued or ctx is done.
	Wait(ctx context.Context) error
}

// FixedDelay waits the same duration before every request.
// A zero or negative delay does not wait at all.
type FixedDelay time.Duration

// Wait implements Pacer.
func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoDelay never waits. It is meant for tests and local crawls.
type NoDelay struct{}

// Wait implements Pacer.
func (NoDelay) Wait(ctx context.Context) error {
	return ctx.Err()
}
