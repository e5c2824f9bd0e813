package service

import (
	"context"
	"time"
)

// Clock abstracts time and sleeping so backoff growth and poll scheduling
// are testable without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff produces exponentially growing delays, capped at Max. Next
// returns Initial on the first call after a Reset.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	current time.Duration
}

func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
	} else {
		b.current *= 2
		if b.current > b.Max {
			b.current = b.Max
		}
	}
	return b.current
}

func (b *Backoff) Reset() {
	b.current = 0
}
