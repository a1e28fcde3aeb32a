package repository

import (
	"context"
	"time"

	"trendcast/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const candleColumns = `symbol, interval, open_time, open, high, low, close, volume`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type CandleRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewCandleRepository(pool PgxPool, tracer trace.Tracer) *CandleRepository {
	return &CandleRepository{pool: pool, tracer: tracer}
}

func (r *CandleRepository) UpsertCandles(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "candle-repo.upsert-candles")
	defer span.End()
	span.SetAttributes(attribute.Int("candles", len(candles)))

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(
			`INSERT INTO candles (`+candleColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			c.Symbol, c.Interval, c.OpenTime.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range candles {
		if _, err := br.Exec(); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}

// GetCandles returns the newest limit bars, newest first.
func (r *CandleRepository) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	ctx, span := r.tracer.Start(ctx, "candle-repo.get-candles")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval))

	rows, err := r.pool.Query(ctx,
		`SELECT `+candleColumns+`
		 FROM candles
		 WHERE symbol = $1 AND interval = $2
		 ORDER BY open_time DESC
		 LIMIT $3`,
		symbol, interval, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanCandles(rows)
}

func (r *CandleRepository) GetCandlesInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error) {
	ctx, span := r.tracer.Start(ctx, "candle-repo.get-candles-in-range")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval))

	rows, err := r.pool.Query(ctx,
		`SELECT `+candleColumns+`
		 FROM candles
		 WHERE symbol = $1 AND interval = $2 AND open_time >= $3 AND open_time <= $4
		 ORDER BY open_time DESC`,
		symbol, interval, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return scanCandles(rows)
}

// LatestOpenTime reports the newest stored bar, or the zero time when the
// symbol has no history.
func (r *CandleRepository) LatestOpenTime(ctx context.Context, symbol, interval string) (time.Time, error) {
	ctx, span := r.tracer.Start(ctx, "candle-repo.latest-open-time")
	defer span.End()

	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(open_time) FROM candles WHERE symbol = $1 AND interval = $2`,
		symbol, interval,
	).Scan(&latest)
	if err != nil || latest == nil {
		return time.Time{}, err
	}
	return latest.UTC(), nil
}

// ListSymbols returns every symbol with stored history for interval.
func (r *CandleRepository) ListSymbols(ctx context.Context, interval string) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "candle-repo.list-symbols")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT symbol FROM candles WHERE interval = $1 ORDER BY symbol`,
		interval,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func scanCandles(rows pgx.Rows) ([]*domain.Candle, error) {
	defer rows.Close()

	var candles []*domain.Candle
	for rows.Next() {
		c := &domain.Candle{}
		if err := rows.Scan(&c.Symbol, &c.Interval, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.OpenTime = c.OpenTime.UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}
