package cache

import (
	"context"
	"time"
)

// Noop is selected when no fast store is reachable. Reads always miss and
// counters never advance, so rate limiting and caching are skipped.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Delete(context.Context, ...string) error { return nil }

func (Noop) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, nil
}

func (Noop) Ping(context.Context) error { return nil }

func (Noop) Enabled() bool { return false }

func (Noop) Close() error { return nil }
