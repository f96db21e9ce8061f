package table

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbis-ilm/pipefabric-go/pkg/tuple"
)

func newTestRedisTable(t *testing.T) *RedisTable[*tuple.Tuple, int64] {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	tbl, err := NewRedisTable[*tuple.Tuple, int64](context.Background(), client, "orders", TupleCodec())
	require.NoError(t, err)
	return tbl
}

func TestRedisTableCRUD(t *testing.T) {
	tbl := newTestRedisTable(t)
	assert.Equal(t, "orders", tbl.Name())

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

	size, _ = tbl.Size()
	assert.Equal(t, 1, size)
}

func TestRedisTableSelect(t *testing.T) {
	tbl := newTestRedisTable(t)
	for i := int64(0); i < 10; i++ {
		require.NoError(t, tbl.Insert(i, tuple.MustNew(i, i*10)))
	}

	recs, err := tbl.Select(func(rec *tuple.Tuple) bool { return rec.Int(0) >= 5 })
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	all, err := tbl.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestRedisTableUpdateOrDelete(t *testing.T) {
	tbl := newTestRedisTable(t)
	require.NoError(t, tbl.Insert(1, tuple.MustNew(int64(1), int64(100))))

	err := tbl.UpdateOrDeleteByKey(1, func(rec *tuple.Tuple) (*tuple.Tuple, bool) {
		return tuple.MustNew(rec.Int(0), rec.Int(1)+1), true
	})
	require.NoError(t, err)
	rec, _ := tbl.Get(1)
	assert.Equal(t, int64(101), rec.Int(1))

	err = tbl.UpdateOrDeleteByKey(1, func(rec *tuple.Tuple) (*tuple.Tuple, bool) {
		return rec, false
	})
	require.NoError(t, err)
	_, err = tbl.Get(1)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	err = tbl.UpdateOrDeleteByKey(42, func(rec *tuple.Tuple) (*tuple.Tuple, bool) { return rec, true })
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisTableObservers(t *testing.T) {
	tbl := newTestRedisTable(t)

	var modes []ModificationMode
	tbl.RegisterObserver(func(rec *tuple.Tuple, mode ModificationMode) {
		modes = append(modes, mode)
	}, Immediate)

	tbl.Insert(1, tuple.MustNew(int64(1)))
	tbl.Insert(1, tuple.MustNew(int64(1))) // replaces: Update
	tbl.DeleteByKey(1)

	assert.Equal(t, []ModificationMode{Insert, Update, Delete}, modes)
}

func TestRedisTableOnCommitObserver(t *testing.T) {
	tbl := newTestRedisTable(t)

	var got int
	tbl.RegisterObserver(func(rec *tuple.Tuple, mode ModificationMode) {
		got++
	}, OnCommit)

	txID := tbl.BeginTransaction()
	tbl.Insert(1, tuple.MustNew(int64(1)))
	tbl.Insert(2, tuple.MustNew(int64(2)))
	assert.Zero(t, got)

	require.NoError(t, tbl.CommitTransaction(txID))
	assert.Equal(t, 2, got)
}

func TestRedisTableConnectFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	_, err := NewRedisTable[*tuple.Tuple, int64](context.Background(), client, "orders", TupleCodec())
	require.Error(t, err)
	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
}
