package main

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type emptyRows struct{ pgx.Rows }

func (emptyRows) Next() bool { return false }
func (emptyRows) Close()     {}
func (emptyRows) Err() error { return nil }

type noRow struct{}

func (noRow) Scan(...any) error { return pgx.ErrNoRows }

type okTx struct{ pgx.Tx }

func (okTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("OK"), nil
}
func (okTx) Commit(context.Context) error   { return nil }
func (okTx) Rollback(context.Context) error { return nil }

type stubPool struct{ begins int }

func (p *stubPool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("OK"), nil
}
func (p *stubPool) Query(context.Context, string, ...any) (pgx.Rows, error) { return emptyRows{}, nil }
func (p *stubPool) QueryRow(context.Context, string, ...any) pgx.Row        { return noRow{} }
func (p *stubPool) Begin(context.Context) (pgx.Tx, error) {
	p.begins++
	return okTx{}, nil
}

func TestExecuteCommands(t *testing.T) {
	ctx := context.Background()

	pool := &stubPool{}
	assert.Equal(t, 0, execute(ctx, pool, []string{"up"}))
	assert.GreaterOrEqual(t, pool.begins, 4)

	assert.Equal(t, 0, execute(ctx, &stubPool{}, []string{"version"}))
	assert.Equal(t, 0, execute(ctx, &stubPool{}, []string{"down", "2"}))
	assert.Equal(t, 2, execute(ctx, &stubPool{}, []string{"down", "zero"}))
	assert.Equal(t, 2, execute(ctx, &stubPool{}, []string{"sideways"}))
}

func TestRunRequiresArgsAndDSN(t *testing.T) {
	assert.Equal(t, 2, run(context.Background(), nil))

	t.Setenv("DATABASE_URL", "")
	assert.Equal(t, 1, run(context.Background(), []string{"up"}))
}
