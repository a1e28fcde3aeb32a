package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	"trendcast/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const versionColumns = `id, model_key, version, feature_spec_version,
       trained_from, trained_to, trained_at,
       hyperparams_json, metrics_json,
       artifact_format, artifact_blob,
       is_active, activated_at, created_at`

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository stores versioned forecast models in ml_model_versions. At most
// one version per model key is active.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) NextVersion(ctx context.Context, modelKey string) (int, error) {
	ctx, span := r.tracer.Start(ctx, "model-registry.next-version")
	defer span.End()
	span.SetAttributes(attribute.String("model_key", modelKey))

	var version int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM ml_model_versions WHERE model_key = $1`, normalizeKey(modelKey)).Scan(&version)
	return version, err
}

func (r *Repository) InsertModelVersion(ctx context.Context, model domain.MLModelVersion) (*domain.MLModelVersion, error) {
	ctx, span := r.tracer.Start(ctx, "model-registry.insert")
	defer span.End()

	model.ModelKey = normalizeKey(model.ModelKey)
	if model.ModelKey == "" || model.Version <= 0 || len(model.ArtifactBlob) == 0 {
		return nil, errors.New("invalid model version payload")
	}
	span.SetAttributes(attribute.String("model_key", model.ModelKey), attribute.Int("version", model.Version))

	row := r.pool.QueryRow(ctx, `
INSERT INTO ml_model_versions (
    model_key, version, feature_spec_version,
    trained_from, trained_to, trained_at,
    hyperparams_json, metrics_json,
    artifact_format, artifact_blob,
    is_active, activated_at
) VALUES (
    $1, $2, $3,
    $4, $5, COALESCE($6, NOW()),
    $7, $8,
    $9, $10,
    $11, $12
)
RETURNING `+versionColumns,
		model.ModelKey,
		model.Version,
		model.FeatureSpecVersion,
		model.TrainedFrom.UTC(),
		model.TrainedTo.UTC(),
		nullIfZeroTime(model.TrainedAt),
		fallbackJSON(model.HyperparamsJSON),
		fallbackJSON(model.MetricsJSON),
		model.ArtifactFormat,
		model.ArtifactBlob,
		model.IsActive,
		nullTime(model.ActivatedAt),
	)
	return scanVersion(row)
}

// GetActiveModel returns nil, nil when the key has no active version.
func (r *Repository) GetActiveModel(ctx context.Context, modelKey string) (*domain.MLModelVersion, error) {
	ctx, span := r.tracer.Start(ctx, "model-registry.get-active")
	defer span.End()
	span.SetAttributes(attribute.String("model_key", modelKey))

	return r.getOne(ctx, `
SELECT `+versionColumns+`
FROM ml_model_versions
WHERE model_key = $1 AND is_active = TRUE
ORDER BY version DESC
LIMIT 1`, normalizeKey(modelKey))
}

func (r *Repository) GetLatestModel(ctx context.Context, modelKey string) (*domain.MLModelVersion, error) {
	ctx, span := r.tracer.Start(ctx, "model-registry.get-latest")
	defer span.End()

	return r.getOne(ctx, `
SELECT `+versionColumns+`
FROM ml_model_versions
WHERE model_key = $1
ORDER BY version DESC
LIMIT 1`, normalizeKey(modelKey))
}

// ListActiveKeys returns every model key with an active version, sorted.
func (r *Repository) ListActiveKeys(ctx context.Context) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "model-registry.list-active-keys")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT DISTINCT model_key FROM ml_model_versions WHERE is_active = TRUE ORDER BY model_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ActivateModel makes version the only active version of modelKey.
func (r *Repository) ActivateModel(ctx context.Context, modelKey string, version int) error {
	ctx, span := r.tracer.Start(ctx, "model-registry.activate")
	defer span.End()
	modelKey = normalizeKey(modelKey)
	span.SetAttributes(attribute.String("model_key", modelKey), attribute.Int("version", version))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE ml_model_versions SET is_active = FALSE, activated_at = NULL WHERE model_key = $1`, modelKey); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE ml_model_versions SET is_active = TRUE, activated_at = NOW() WHERE model_key = $1 AND version = $2`, modelKey, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*domain.MLModelVersion, error) {
	out, err := scanVersion(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return out, err
}

func scanVersion(row pgx.Row) (*domain.MLModelVersion, error) {
	var out domain.MLModelVersion
	err := row.Scan(
		&out.ID,
		&out.ModelKey,
		&out.Version,
		&out.FeatureSpecVersion,
		&out.TrainedFrom,
		&out.TrainedTo,
		&out.TrainedAt,
		&out.HyperparamsJSON,
		&out.MetricsJSON,
		&out.ArtifactFormat,
		&out.ArtifactBlob,
		&out.IsActive,
		&out.ActivatedAt,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalizeModelTimes(&out)
	return &out, nil
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func normalizeModelTimes(model *domain.MLModelVersion) {
	model.TrainedFrom = model.TrainedFrom.UTC()
	model.TrainedTo = model.TrainedTo.UTC()
	model.TrainedAt = model.TrainedAt.UTC()
	model.CreatedAt = model.CreatedAt.UTC()
	if model.ActivatedAt != nil {
		t := model.ActivatedAt.UTC()
		model.ActivatedAt = &t
	}
}

func fallbackJSON(v string) string {
	if v == "" {
		return "{}"
	}
	return v
}

func nullIfZeroTime(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v.UTC()
}

func nullTime(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.UTC()
}
