package realtime

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chat-client/internal/logger"
)

// Poller calls fetch every interval. A tick that arrives while the previous
// fetch is still running is skipped.
type Poller struct {
	name     string
	interval time.Duration
	fetch    func(context.Context) error
	inFlight atomic.Bool
	skipped  atomic.Int64
}

func NewPoller(name string, interval time.Duration, fetch func(context.Context) error) *Poller {
	return &Poller{name: name, interval: interval, fetch: fetch}
}

// Run fetches once immediately, then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// Skipped counts ticks dropped because a fetch was in flight.
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return
	}
	go func() {
		defer p.inFlight.Store(false)
		if err := p.fetch(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("poll failed", zap.String("poller", p.name), zap.Error(err))
		}
	}()
}
