package table

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

// connectTestPostgres connects to the database named by
// PIPEFABRIC_TEST_POSTGRES_DSN. Tests are skipped when no database is
// available.
func connectTestPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("PIPEFABRIC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping test - PIPEFABRIC_TEST_POSTGRES_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Skipf("Skipping test - could not connect to PostgreSQL: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Skipf("Skipping test - could not ping PostgreSQL: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// newTestPostgresTable creates a uniquely named table and drops it on
// cleanup.
func newTestPostgresTable(t *testing.T, pool *pgxpool.Pool) *PostgresTable[*tuple.Tuple, int64] {
	t.Helper()
	name := "pf_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	tbl, err := NewPostgresTable[*tuple.Tuple, int64](context.Background(), pool, name, TupleCodec())
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(),
			fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{name}.Sanitize()))
	})
	return tbl
}

func TestPostgresTableCRUD(t *testing.T) {
	pool := connectTestPostgres(t)
	tbl := newTestPostgresTable(t, pool)

	require.NoError(t, tbl.Insert(1, tuple.MustNew(int64(1), "first", 0.5)))
	require.NoError(t, tbl.Insert(2, tuple.MustNew(int64(2), "second", 1.5)))

	rec, err := tbl.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "first", rec.String(1))
	assert.Equal(t, 0.5, rec.Double(2))

	_, err = tbl.Get(99)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	size, err := tbl.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	existed, err := tbl.DeleteByKey(1)
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = tbl.DeleteByKey(1)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestPostgresTableSelectAndUpdate(t *testing.T) {
	pool := connectTestPostgres(t)
	tbl := newTestPostgresTable(t, pool)

	for i := int64(0); i < 10; i++ {
		require.NoError(t, tbl.Insert(i, tuple.MustNew(i, i*10)))
	}

	recs, err := tbl.Select(func(rec *tuple.Tuple) bool { return rec.Int(0) >= 5 })
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	err = tbl.UpdateOrDeleteByKey(0, func(rec *tuple.Tuple) (*tuple.Tuple, bool) {
		return tuple.MustNew(rec.Int(0), rec.Int(1)+1), true
	})
	require.NoError(t, err)
	rec, _ := tbl.Get(0)
	assert.Equal(t, int64(1), rec.Int(1))

	err = tbl.UpdateOrDeleteByKey(1, func(rec *tuple.Tuple) (*tuple.Tuple, bool) {
		return rec, false
	})
	require.NoError(t, err)
	_, err = tbl.Get(1)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestPostgresTableObservers(t *testing.T) {
	pool := connectTestPostgres(t)
	tbl := newTestPostgresTable(t, pool)

	var modes []ModificationMode
	tbl.RegisterObserver(func(rec *tuple.Tuple, mode ModificationMode) {
		modes = append(modes, mode)
	}, Immediate)

	tbl.Insert(1, tuple.MustNew(int64(1)))
	tbl.Insert(1, tuple.MustNew(int64(1))) // replaces: Update
	tbl.DeleteByKey(1)

	assert.Equal(t, []ModificationMode{Insert, Update, Delete}, modes)
}
