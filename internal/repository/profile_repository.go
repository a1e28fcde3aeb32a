package repository

import (
	"context"
	"errors"

	"trendcast/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// ProfileRepository stores company metadata used for factor explanations.
type ProfileRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewProfileRepository(pool PgxPool, tracer trace.Tracer) *ProfileRepository {
	return &ProfileRepository{pool: pool, tracer: tracer}
}

func (r *ProfileRepository) UpsertProfile(ctx context.Context, p *domain.CompanyProfile) error {
	ctx, span := r.tracer.Start(ctx, "profile-repo.upsert-profile")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO company_profiles (symbol, name, market_cap, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (symbol) DO UPDATE SET
		     name = EXCLUDED.name,
		     market_cap = EXCLUDED.market_cap,
		     updated_at = EXCLUDED.updated_at`,
		p.Symbol, p.Name, p.MarketCap, p.UpdatedAt.UTC(),
	)
	return err
}

// GetProfile returns nil, nil for an unknown symbol.
func (r *ProfileRepository) GetProfile(ctx context.Context, symbol string) (*domain.CompanyProfile, error) {
	ctx, span := r.tracer.Start(ctx, "profile-repo.get-profile")
	defer span.End()

	p := &domain.CompanyProfile{}
	err := r.pool.QueryRow(ctx,
		`SELECT symbol, name, market_cap, updated_at FROM company_profiles WHERE symbol = $1`,
		symbol,
	).Scan(&p.Symbol, &p.Name, &p.MarketCap, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
