package job

import (
	"context"
	"time"

	"trendcast/internal/domain"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type OutcomeStore interface {
	ListUnresolvedDue(ctx context.Context, cutoff time.Time, limit int) ([]domain.ForecastOutcome, error)
	Resolve(ctx context.Context, id int64, actualPrice, realizedPct float64, correct bool) error
}

type HistoryReader interface {
	GetHistory(ctx context.Context, symbol, interval string, limit int) (domain.PriceSeries, error)
}

const (
	resolveBatch   = 200
	resolveHistory = 30
)

// OutcomeResolver scores logged forecasts against the close of their target
// bar once that bar is complete.
type OutcomeResolver struct {
	tracer  trace.Tracer
	log     zerolog.Logger
	store   OutcomeStore
	history HistoryReader
	band    float64
	every   time.Duration
	now     func() time.Time
}

// NewOutcomeResolver scores NEUTRAL calls as hits when the realized move
// stays within band percent.
func NewOutcomeResolver(
	tracer trace.Tracer,
	logger zerolog.Logger,
	store OutcomeStore,
	history HistoryReader,
	band float64,
	every time.Duration,
) *OutcomeResolver {
	if every <= 0 {
		every = time.Hour
	}
	return &OutcomeResolver{
		tracer:  tracer,
		log:     logger,
		store:   store,
		history: history,
		band:    band,
		every:   every,
		now:     time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (r *OutcomeResolver) Start(ctx context.Context) {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("outcome resolver stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Warn().Err(err).Msg("outcome resolution failed")
			}
		}
	}
}

// RunOnce resolves every due outcome whose target bar is available and
// returns how many were resolved.
func (r *OutcomeResolver) RunOnce(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "outcome-resolver.run-once")
	defer span.End()

	now := r.now().UTC()
	due, err := r.store.ListUnresolvedDue(ctx, now, resolveBatch)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	resolved := 0
	series := make(map[string]domain.PriceSeries)
	for _, o := range due {
		step := domain.IntervalStep(o.Interval)
		if step == 0 || o.TargetTime.Add(step).After(now) || o.BasePrice <= 0 {
			continue
		}
		key := o.Symbol + "|" + o.Interval
		s, ok := series[key]
		if !ok {
			s, err = r.history.GetHistory(ctx, o.Symbol, o.Interval, resolveHistory)
			if err != nil {
				r.log.Warn().Err(err).Str("symbol", o.Symbol).Msg("no history to resolve outcome")
				continue
			}
			series[key] = s
		}

		bar, ok := firstBarFrom(s, o.TargetTime)
		if !ok {
			continue
		}
		realized := (bar.Close - o.BasePrice) / o.BasePrice * 100
		correct := domain.DirectionHit(o.Direction, realized, r.band)
		if err := r.store.Resolve(ctx, o.ID, bar.Close, realized, correct); err != nil {
			r.log.Warn().Err(err).Int64("id", o.ID).Msg("outcome resolve failed")
			continue
		}
		resolved++
	}

	span.SetAttributes(attribute.Int("due", len(due)), attribute.Int("resolved", resolved))
	if resolved > 0 {
		r.log.Info().Int("resolved", resolved).Int("due", len(due)).Msg("forecast outcomes resolved")
	}
	return resolved, nil
}

func firstBarFrom(s domain.PriceSeries, at time.Time) (domain.Candle, bool) {
	for i := 0; i < s.Len(); i++ {
		if c := s.At(i); !c.OpenTime.Before(at) {
			return c, true
		}
	}
	return domain.Candle{}, false
}
