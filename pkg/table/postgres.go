package table

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RowCodec converts between records and their byte representation in a
// backing store. For dynamic tuple streams the tuple binary codec is the
// natural choice.
type RowCodec[T any] struct {
	Encode func(rec T) ([]byte, error)
	Decode func(data []byte) (T, error)
}

// PostgresTable is a table backed by a PostgreSQL relation of (key, value)
// pairs. Records are stored via the given codec; keys are rendered as text.
// Observer notifications are local to this instance: only mutations performed
// through it are reported.
type PostgresTable[T any, K comparable] struct {
	name  string
	pool  *pgxpool.Pool
	codec RowCodec[T]

	// observer handling is shared with the in-memory implementation
	shadow *InMemoryTable[T, K]
}

// NewPostgresTable creates the backing relation if necessary and returns the
// table handle.
func NewPostgresTable[T any, K comparable](ctx context.Context, pool *pgxpool.Pool,
	name string, codec RowCodec[T]) (*PostgresTable[T, K], error) {
	_, err := pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value BYTEA NOT NULL)`, pgx.Identifier{name}.Sanitize()))
	if err != nil {
		return nil, NewStoreError("postgres", name, "create", err)
	}
	return &PostgresTable[T, K]{
		name:   name,
		pool:   pool,
		codec:  codec,
		shadow: NewInMemoryTable[T, K](name),
	}, nil
}

// Name returns the table name.
func (t *PostgresTable[T, K]) Name() string { return t.name }

func (t *PostgresTable[T, K]) keyString(key K) string { return fmt.Sprintf("%v", key) }

// Insert stores rec under key, replacing an existing record.
func (t *PostgresTable[T, K]) Insert(key K, rec T) error {
	data, err := t.codec.Encode(rec)
	if err != nil {
		return NewStoreError("postgres", t.name, "insert", err)
	}
	var inserted bool
	err = t.pool.QueryRow(context.Background(), fmt.Sprintf(
		`INSERT INTO %s (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		 RETURNING (xmax = 0)`,
		pgx.Identifier{t.name}.Sanitize()), t.keyString(key), data).Scan(&inserted)
	if err != nil {
		return NewStoreError("postgres", t.name, "insert", err)
	}
	mode := Insert
	if !inserted {
		mode = Update
	}
	t.shadow.notify(rec, mode)
	return nil
}

// Get returns the record stored under key.
func (t *PostgresTable[T, K]) Get(key K) (T, error) {
	var zero T
	var data []byte
	err := t.pool.QueryRow(context.Background(), fmt.Sprintf(
		`SELECT value FROM %s WHERE key = $1`, pgx.Identifier{t.name}.Sanitize()),
		t.keyString(key)).Scan(&data)
	if err == pgx.ErrNoRows {
		return zero, ErrKeyNotFound
	}
	if err != nil {
		return zero, NewStoreError("postgres", t.name, "get", err)
	}
	return t.codec.Decode(data)
}

// DeleteByKey removes the record stored under key.
func (t *PostgresTable[T, K]) DeleteByKey(key K) (bool, error) {
	rec, err := t.Get(key)
	if err == ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = t.pool.Exec(context.Background(), fmt.Sprintf(
		`DELETE FROM %s WHERE key = $1`, pgx.Identifier{t.name}.Sanitize()), t.keyString(key))
	if err != nil {
		return false, NewStoreError("postgres", t.name, "delete", err)
	}
	t.shadow.notify(rec, Delete)
	return true, nil
}

// UpdateOrDeleteByKey applies fn to the stored record; a false result
// deletes it.
func (t *PostgresTable[T, K]) UpdateOrDeleteByKey(key K, fn func(rec T) (T, bool)) error {
	rec, err := t.Get(key)
	if err != nil {
		return err
	}
	updated, keep := fn(rec)
	if !keep {
		_, err := t.DeleteByKey(key)
		return err
	}
	return t.Insert(key, updated)
}

// Select returns all records satisfying the predicate.
func (t *PostgresTable[T, K]) Select(pred Predicate[T]) ([]T, error) {
	rows, err := t.pool.Query(context.Background(), fmt.Sprintf(
		`SELECT value FROM %s`, pgx.Identifier{t.name}.Sanitize()))
	if err != nil {
		return nil, NewStoreError("postgres", t.name, "select", err)
	}
	defer rows.Close()

	var res []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, NewStoreError("postgres", t.name, "select", err)
		}
		rec, err := t.codec.Decode(data)
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(rec) {
			res = append(res, rec)
		}
	}
	return res, rows.Err()
}

// Size returns the number of stored records.
func (t *PostgresTable[T, K]) Size() (int, error) {
	var n int
	err := t.pool.QueryRow(context.Background(), fmt.Sprintf(
		`SELECT COUNT(*) FROM %s`, pgx.Identifier{t.name}.Sanitize())).Scan(&n)
	if err != nil {
		return 0, NewStoreError("postgres", t.name, "size", err)
	}
	return n, nil
}

// RegisterObserver registers a mutation callback.
func (t *PostgresTable[T, K]) RegisterObserver(fn ObserverFunc[T], mode NotificationMode) {
	t.shadow.RegisterObserver(fn, mode)
}

// BeginTransaction opens a notification batching scope.
func (t *PostgresTable[T, K]) BeginTransaction() uuid.UUID {
	return t.shadow.BeginTransaction()
}

// CommitTransaction flushes buffered notifications.
func (t *PostgresTable[T, K]) CommitTransaction(id uuid.UUID) error {
	return t.shadow.CommitTransaction(id)
}

// AbortTransaction discards buffered notifications.
func (t *PostgresTable[T, K]) AbortTransaction(id uuid.UUID) error {
	return t.shadow.AbortTransaction(id)
}
