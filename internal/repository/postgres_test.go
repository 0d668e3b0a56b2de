package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDB captures issued SQL without a live database.
type recordingDB struct {
	queries []string
}

func (d *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.queries = append(d.queries, sql)
	return pgconn.CommandTag{}, nil
}

func (d *recordingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.queries = append(d.queries, sql)
	return nil, pgx.ErrNoRows
}

func (d *recordingDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.queries = append(d.queries, sql)
	return stubRow{}
}

type stubRow struct{}

func (stubRow) Scan(dest ...any) error { return pgx.ErrNoRows }

// Reads inside a transaction must lock the row so two concurrent
// read-modify-write updates of the same ticket serialize instead of the
// second commit reverting the first's field. Plain reads stay lock-free.
func TestGetByIDLocksRowOnlyInsideTransaction(t *testing.T) {
	db := &recordingDB{}
	ctx := context.Background()

	plain := &pgTicketRepository{db: db}
	_, err := plain.GetByID(ctx, "TKT-001")
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.Len(t, db.queries, 1)
	assert.NotContains(t, db.queries[0], "FOR UPDATE")

	txScoped := &pgTicketRepository{db: db, forUpdate: true}
	_, err = txScoped.GetByID(ctx, "TKT-001")
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.Len(t, db.queries, 2)
	assert.Contains(t, db.queries[1], "FOR UPDATE")
}
