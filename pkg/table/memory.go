package table

import (
	"sync"

	"github.com/google/uuid"
)

// observerEntry pairs a callback with its notification mode.
type observerEntry[T any] struct {
	fn   ObserverFunc[T]
	mode NotificationMode
}

// notification is a buffered observer invocation.
type notification[T any] struct {
	rec  T
	mode ModificationMode
}

// InMemoryTable is the default table implementation: a mutex-guarded hash map
// with observer support. Observer callbacks are invoked after the data lock
// has been released so that a callback may publish into operators that write
// back to the same table without deadlocking.
type InMemoryTable[T any, K comparable] struct {
	name string

	mu   sync.RWMutex
	data map[K]T

	obsMu     sync.Mutex
	observers []observerEntry[T]

	txMu    sync.Mutex
	txID    uuid.UUID
	txOpen  bool
	pending []notification[T]
}

// NewInMemoryTable creates a new empty in-memory table.
func NewInMemoryTable[T any, K comparable](name string) *InMemoryTable[T, K] {
	return &InMemoryTable[T, K]{
		name: name,
		data: make(map[K]T),
	}
}

// Name returns the table name.
func (t *InMemoryTable[T, K]) Name() string { return t.name }

// Insert stores rec under key, replacing an existing record.
func (t *InMemoryTable[T, K]) Insert(key K, rec T) error {
	t.mu.Lock()
	_, existed := t.data[key]
	t.data[key] = rec
	t.mu.Unlock()

	mode := Insert
	if existed {
		mode = Update
	}
	t.notify(rec, mode)
	return nil
}

// Get returns the record stored under key.
func (t *InMemoryTable[T, K]) Get(key K) (T, error) {
	t.mu.RLock()
	rec, ok := t.data[key]
	t.mu.RUnlock()
	if !ok {
		var zero T
		return zero, ErrKeyNotFound
	}
	return rec, nil
}

// DeleteByKey removes the record stored under key.
func (t *InMemoryTable[T, K]) DeleteByKey(key K) (bool, error) {
	t.mu.Lock()
	rec, ok := t.data[key]
	if ok {
		delete(t.data, key)
	}
	t.mu.Unlock()

	if ok {
		t.notify(rec, Delete)
	}
	return ok, nil
}

// UpdateOrDeleteByKey applies fn to the stored record; a false result
// deletes it.
func (t *InMemoryTable[T, K]) UpdateOrDeleteByKey(key K, fn func(rec T) (T, bool)) error {
	t.mu.Lock()
	rec, ok := t.data[key]
	if !ok {
		t.mu.Unlock()
		return ErrKeyNotFound
	}
	updated, keep := fn(rec)
	if keep {
		t.data[key] = updated
	} else {
		delete(t.data, key)
	}
	t.mu.Unlock()

	if keep {
		t.notify(updated, Update)
	} else {
		t.notify(rec, Delete)
	}
	return nil
}

// Select returns all records satisfying the predicate.
func (t *InMemoryTable[T, K]) Select(pred Predicate[T]) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var res []T
	for _, rec := range t.data {
		if pred == nil || pred(rec) {
			res = append(res, rec)
		}
	}
	return res, nil
}

// Size returns the number of stored records.
func (t *InMemoryTable[T, K]) Size() (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data), nil
}

// RegisterObserver registers a mutation callback.
func (t *InMemoryTable[T, K]) RegisterObserver(fn ObserverFunc[T], mode NotificationMode) {
	t.obsMu.Lock()
	t.observers = append(t.observers, observerEntry[T]{fn: fn, mode: mode})
	t.obsMu.Unlock()
}

// BeginTransaction opens a transaction scope for notification batching.
func (t *InMemoryTable[T, K]) BeginTransaction() uuid.UUID {
	t.txMu.Lock()
	defer t.txMu.Unlock()
	t.txID = uuid.New()
	t.txOpen = true
	t.pending = nil
	return t.txID
}

// CommitTransaction flushes buffered notifications to on-commit observers.
func (t *InMemoryTable[T, K]) CommitTransaction(id uuid.UUID) error {
	t.txMu.Lock()
	if !t.txOpen || t.txID != id {
		t.txMu.Unlock()
		return ErrNoTransaction
	}
	pending := t.pending
	t.pending = nil
	t.txOpen = false
	t.txMu.Unlock()

	for _, n := range pending {
		t.invokeObservers(n.rec, n.mode, OnCommit)
	}
	return nil
}

// AbortTransaction discards buffered notifications.
func (t *InMemoryTable[T, K]) AbortTransaction(id uuid.UUID) error {
	t.txMu.Lock()
	defer t.txMu.Unlock()
	if !t.txOpen || t.txID != id {
		return ErrNoTransaction
	}
	t.pending = nil
	t.txOpen = false
	return nil
}

// notify dispatches a mutation: immediate observers are invoked right away,
// on-commit observers are buffered while a transaction is open.
func (t *InMemoryTable[T, K]) notify(rec T, mode ModificationMode) {
	t.invokeObservers(rec, mode, Immediate)

	t.txMu.Lock()
	if t.txOpen {
		t.pending = append(t.pending, notification[T]{rec: rec, mode: mode})
		t.txMu.Unlock()
		return
	}
	t.txMu.Unlock()
	// no transaction scope: on-commit observers see the mutation immediately
	t.invokeObservers(rec, mode, OnCommit)
}

// invokeObservers calls all observers of the given notification mode. The
// observer list is copied under its lock, the callbacks run without it.
func (t *InMemoryTable[T, K]) invokeObservers(rec T, mode ModificationMode, nmode NotificationMode) {
	t.obsMu.Lock()
	obs := make([]observerEntry[T], len(t.observers))
	copy(obs, t.observers)
	t.obsMu.Unlock()

	for _, o := range obs {
		if o.mode == nmode {
			o.fn(rec, mode)
		}
	}
}
