package table

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisTable is a table backed by a Redis hash keyed by the table name.
// Records are stored via the given codec; keys are rendered as text.
// Observer notifications are local to this instance.
type RedisTable[T any, K comparable] struct {
	name   string
	client *redis.Client
	codec  RowCodec[T]

	shadow *InMemoryTable[T, K]
}

// NewRedisTable creates a new Redis-backed table handle.
func NewRedisTable[T any, K comparable](ctx context.Context, client *redis.Client,
	name string, codec RowCodec[T]) (*RedisTable[T, K], error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, NewStoreError("redis", name, "connect", err)
	}
	return &RedisTable[T, K]{
		name:   name,
		client: client,
		codec:  codec,
		shadow: NewInMemoryTable[T, K](name),
	}, nil
}

// Name returns the table name.
func (t *RedisTable[T, K]) Name() string { return t.name }

func (t *RedisTable[T, K]) keyString(key K) string { return fmt.Sprintf("%v", key) }

// Insert stores rec under key, replacing an existing record.
func (t *RedisTable[T, K]) Insert(key K, rec T) error {
	data, err := t.codec.Encode(rec)
	if err != nil {
		return NewStoreError("redis", t.name, "insert", err)
	}
	created, err := t.client.HSet(context.Background(), t.name, t.keyString(key), data).Result()
	if err != nil {
		return NewStoreError("redis", t.name, "insert", err)
	}
	mode := Insert
	if created == 0 {
		mode = Update
	}
	t.shadow.notify(rec, mode)
	return nil
}

// Get returns the record stored under key.
func (t *RedisTable[T, K]) Get(key K) (T, error) {
	var zero T
	data, err := t.client.HGet(context.Background(), t.name, t.keyString(key)).Bytes()
	if err == redis.Nil {
		return zero, ErrKeyNotFound
	}
	if err != nil {
		return zero, NewStoreError("redis", t.name, "get", err)
	}
	return t.codec.Decode(data)
}

// DeleteByKey removes the record stored under key.
func (t *RedisTable[T, K]) DeleteByKey(key K) (bool, error) {
	rec, err := t.Get(key)
	if err == ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n, err := t.client.HDel(context.Background(), t.name, t.keyString(key)).Result()
	if err != nil {
		return false, NewStoreError("redis", t.name, "delete", err)
	}
	if n > 0 {
		t.shadow.notify(rec, Delete)
	}
	return n > 0, nil
}

// UpdateOrDeleteByKey applies fn to the stored record; a false result
// deletes it.
func (t *RedisTable[T, K]) UpdateOrDeleteByKey(key K, fn func(rec T) (T, bool)) error {
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
func (t *RedisTable[T, K]) Select(pred Predicate[T]) ([]T, error) {
	vals, err := t.client.HGetAll(context.Background(), t.name).Result()
	if err != nil {
		return nil, NewStoreError("redis", t.name, "select", err)
	}
	var res []T
	for _, v := range vals {
		rec, err := t.codec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(rec) {
			res = append(res, rec)
		}
	}
	return res, nil
}

// Size returns the number of stored records.
func (t *RedisTable[T, K]) Size() (int, error) {
	n, err := t.client.HLen(context.Background(), t.name).Result()
	if err != nil {
		return 0, NewStoreError("redis", t.name, "size", err)
	}
	return int(n), nil
}

// RegisterObserver registers a mutation callback.
func (t *RedisTable[T, K]) RegisterObserver(fn ObserverFunc[T], mode NotificationMode) {
	t.shadow.RegisterObserver(fn, mode)
}

// BeginTransaction opens a notification batching scope.
func (t *RedisTable[T, K]) BeginTransaction() uuid.UUID {
	return t.shadow.BeginTransaction()
}

// CommitTransaction flushes buffered notifications.
func (t *RedisTable[T, K]) CommitTransaction(id uuid.UUID) error {
	return t.shadow.CommitTransaction(id)
}

// AbortTransaction discards buffered notifications.
func (t *RedisTable[T, K]) AbortTransaction(id uuid.UUID) error {
	return t.shadow.AbortTransaction(id)
}
