// Package predictions logs served forecasts so they can be scored once the
// target bar closes.
package predictions

import (
	"context"
	"fmt"
	"time"

	"trendcast/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

// Record logs f against the next bar. Only the first forecast per symbol
// and target bar is kept; later ones report false.
func (r *Repository) Record(ctx context.Context, f domain.Forecast, interval string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "forecast-outcomes.record")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", f.Symbol))

	if f.IsError() {
		return false, fmt.Errorf("error-only forecast: %w", domain.ErrInvalidInput)
	}
	generated := f.GeneratedAt.UTC()
	if generated.IsZero() {
		generated = time.Now().UTC()
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO forecast_outcomes (
    symbol, interval, stage, model_version,
    direction, confidence, confidence_scale,
    base_price, predicted_price, predicted_change_pct,
    generated_at, target_time
) VALUES (
    $1, $2, $3, $4,
    $5, $6, $7,
    $8, $9, $10,
    $11, $12
)
ON CONFLICT (symbol, interval, target_time) DO NOTHING`,
		f.Symbol,
		interval,
		string(f.Stage),
		f.ModelVersion,
		string(f.Direction),
		f.Confidence,
		string(f.ConfidenceScale),
		f.CurrentPrice,
		f.PredictedPrice,
		f.PredictedChangePct,
		generated,
		domain.NextBarTime(generated, interval),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ListUnresolvedDue(ctx context.Context, cutoff time.Time, limit int) ([]domain.ForecastOutcome, error) {
	ctx, span := r.tracer.Start(ctx, "forecast-outcomes.list-unresolved-due")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, symbol, interval, stage, model_version,
       direction, confidence, confidence_scale,
       base_price, predicted_price, predicted_change_pct,
       generated_at, target_time,
       resolved_at, actual_price, realized_change_pct, is_correct
FROM forecast_outcomes
WHERE resolved_at IS NULL
  AND target_time <= $1
ORDER BY target_time ASC
LIMIT $2`, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ForecastOutcome
	for rows.Next() {
		o, err := scanOutcomeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *Repository) Resolve(ctx context.Context, id int64, actualPrice, realizedPct float64, correct bool) error {
	ctx, span := r.tracer.Start(ctx, "forecast-outcomes.resolve")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE forecast_outcomes
SET resolved_at = NOW(),
    actual_price = $2,
    realized_change_pct = $3,
    is_correct = $4
WHERE id = $1
  AND resolved_at IS NULL`, id, actualPrice, realizedPct, correct)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Accuracy groups outcomes resolved for forecasts generated since the given
// time by stage.
func (r *Repository) Accuracy(ctx context.Context, since time.Time) ([]domain.StageAccuracy, error) {
	ctx, span := r.tracer.Start(ctx, "forecast-outcomes.accuracy")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT stage,
       COUNT(*),
       COUNT(*) FILTER (WHERE is_correct),
       COALESCE(AVG(ABS(realized_change_pct - predicted_change_pct)), 0)
FROM forecast_outcomes
WHERE resolved_at IS NOT NULL
  AND generated_at >= $1
GROUP BY stage
ORDER BY stage`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StageAccuracy
	for rows.Next() {
		var (
			stage string
			acc   domain.StageAccuracy
		)
		if err := rows.Scan(&stage, &acc.Resolved, &acc.Correct, &acc.MeanAbsErrorPct); err != nil {
			return nil, err
		}
		acc.Stage = domain.Stage(stage)
		if acc.Resolved > 0 {
			acc.HitRate = float64(acc.Correct) / float64(acc.Resolved)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOutcomeRow(s scanner) (*domain.ForecastOutcome, error) {
	var out domain.ForecastOutcome
	var stage, direction, scale string
	var resolvedAt pgtype.Timestamptz
	var actualPrice pgtype.Float8
	var realized pgtype.Float8
	var correct pgtype.Bool

	if err := s.Scan(
		&out.ID,
		&out.Symbol,
		&out.Interval,
		&stage,
		&out.ModelVersion,
		&direction,
		&out.Confidence,
		&scale,
		&out.BasePrice,
		&out.PredictedPrice,
		&out.PredictedChangePct,
		&out.GeneratedAt,
		&out.TargetTime,
		&resolvedAt,
		&actualPrice,
		&realized,
		&correct,
	); err != nil {
		return nil, err
	}
	out.Stage = domain.Stage(stage)
	out.Direction = domain.Direction(direction)
	out.ConfidenceScale = domain.ConfidenceScale(scale)
	out.GeneratedAt = out.GeneratedAt.UTC()
	out.TargetTime = out.TargetTime.UTC()

	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		out.ResolvedAt = &t
	}
	if actualPrice.Valid {
		v := actualPrice.Float64
		out.ActualPrice = &v
	}
	if realized.Valid {
		v := realized.Float64
		out.RealizedChangePct = &v
	}
	if correct.Valid {
		v := correct.Bool
		out.Correct = &v
	}
	return &out, nil
}
