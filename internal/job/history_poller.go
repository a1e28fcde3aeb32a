package job

import (
	"context"
	"time"

	"trendcast/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HistoryRefresher is satisfied by service.MarketService.
type HistoryRefresher interface {
	RefreshHistory(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
}

// HistoryPoller keeps stored history for a watchlist current. Each tick
// refreshes a small round-robin batch so upstream load stays flat.
type HistoryPoller struct {
	tracer       trace.Tracer
	log          zerolog.Logger
	refresher    HistoryRefresher
	symbols      []string
	interval     string
	limit        int
	pollInterval time.Duration
	batchSize    int
	startDelay   time.Duration
}

func NewHistoryPoller(
	tracer trace.Tracer,
	logger zerolog.Logger,
	refresher HistoryRefresher,
	symbols []string,
	interval string,
	limit int,
	pollIntervalSecs int,
) *HistoryPoller {
	return &HistoryPoller{
		tracer:       tracer,
		log:          logger,
		refresher:    refresher,
		symbols:      append([]string(nil), symbols...),
		interval:     interval,
		limit:        limit,
		pollInterval: time.Duration(pollIntervalSecs) * time.Second,
		batchSize:    2,
		startDelay:   5 * time.Second,
	}
}

// Start blocks until ctx is cancelled.
func (p *HistoryPoller) Start(ctx context.Context) {
	if len(p.symbols) == 0 {
		p.log.Info().Msg("history poller disabled: empty watchlist")
		<-ctx.Done()
		return
	}
	p.log.Info().Int("symbols", len(p.symbols)).Dur("every", p.pollInterval).Msg("history poller starting")

	select {
	case <-ctx.Done():
		return
	case <-time.After(p.startDelay):
	}

	// A full pass first, so every symbol has history soon after boot.
	idx := 0
	for range p.symbols {
		p.refreshNext(ctx, &idx)
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("history poller stopped")
			return
		case <-ticker.C:
			p.fetchBatch(ctx, &idx)
		}
	}
}

func (p *HistoryPoller) fetchBatch(ctx context.Context, idx *int) {
	for i := 0; i < p.batchSize && i < len(p.symbols); i++ {
		p.refreshNext(ctx, idx)
	}
}

func (p *HistoryPoller) refreshNext(ctx context.Context, idx *int) {
	symbol := p.symbols[*idx%len(p.symbols)]
	*idx++

	ctx, span := p.tracer.Start(ctx, "history-poller.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	candles, err := p.refresher.RefreshHistory(ctx, symbol, p.interval, p.limit)
	if err != nil {
		span.RecordError(err)
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("history refresh failed")
		return
	}
	p.log.Debug().Str("symbol", symbol).Int("candles", len(candles)).Msg("history refreshed")
}
