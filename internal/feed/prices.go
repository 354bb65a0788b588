package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradeterm/internal/infra"
)

// PricePoller periodically fetches the all-assets price table used for
// portfolio valuation. It runs independently of the primary pair's
// stream and is not synchronized with it; results flow through the
// same inbox as everything else.
type PricePoller struct {
	rest         restAPI
	quote        string
	pollInterval time.Duration
	inbox        chan<- event
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewPricePoller creates a poller for the reference quote currency.
func NewPricePoller(rest restAPI, quote string, pollInterval time.Duration, inbox chan<- event) *PricePoller {
	return &PricePoller{
		rest:         rest,
		quote:        quote,
		pollInterval: pollInterval,
		inbox:        inbox,
	}
}

// Start begins polling. The first fetch happens immediately so the
// portfolio value is populated before the first tick.
func (p *PricePoller) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.fetch(ctx)

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.fetch(ctx)
			}
		}
	}()

	return nil
}

// fetch gets the price table and posts it. Failures are logged and the
// table keeps its last-known values; the next tick retries naturally.
func (p *PricePoller) fetch(ctx context.Context) {
	table, err := p.rest.PriceTable(ctx, p.quote)
	if err != nil {
		slog.Warn("price table fetch failed", slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
		return
	}
	select {
	case p.inbox <- priceTableEvent{prices: table}:
	case <-ctx.Done():
	}
}

// Stop stops the polling.
func (p *PricePoller) Stop() {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
}
