// Package table provides the keyed table abstraction the stream engine
// collaborates with: a store supporting get/insert/delete/select plus an
// observer registration through which table mutations are turned back into
// stream elements. An in-memory implementation is provided along with
// Postgres- and Redis-backed stores.
package table

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Standard table errors
var (
	// ErrKeyNotFound is returned when a key does not exist in the table
	ErrKeyNotFound = errors.New("key not found")

	// ErrTableExists is returned when a table with the same name was already
	// created in a context
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound is returned when a named table does not exist
	ErrTableNotFound = errors.New("table not found")

	// ErrNoTransaction is returned when committing or aborting without an
	// active transaction
	ErrNoTransaction = errors.New("no active transaction")

	// ErrConnectionFailed names an unreachable backing store. The stores
	// report connection failures as a StoreError, which does not match it
	ErrConnectionFailed = errors.New("table store connection failed")
)

// StoreError wraps store-specific errors with operation context.
type StoreError struct {
	Store     string
	Table     string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("[%s] %s on table %s: %v", e.Store, e.Operation, e.Table, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Cause }

// NewStoreError creates a new StoreError.
func NewStoreError(store, table, operation string, cause error) *StoreError {
	return &StoreError{Store: store, Table: table, Operation: operation, Cause: cause}
}

// ModificationMode describes the kind of a table mutation reported to
// observers.
type ModificationMode int

const (
	Insert ModificationMode = iota
	Update
	Delete
)

func (m ModificationMode) String() string {
	switch m {
	case Insert:
		return "insert"
	case Update:
		return "update"
	default:
		return "delete"
	}
}

// NotificationMode controls when observers are invoked: immediately on each
// mutation or on transaction commit.
type NotificationMode int

const (
	Immediate NotificationMode = iota
	OnCommit
)

// ObserverFunc is the callback registered on a table; it receives the
// affected record and the modification mode.
type ObserverFunc[T any] func(rec T, mode ModificationMode)

// Predicate filters records during a table scan.
type Predicate[T any] func(rec T) bool

// Table is a keyed store observed and mutated by the stream engine.
// Implementations provide their own thread-safety; the engine treats table
// operations as atomic.
type Table[T any, K comparable] interface {
	// Name returns the table name.
	Name() string

	// Insert stores rec under key, replacing an existing record. Observers
	// see Insert for new keys and Update for replaced ones.
	Insert(key K, rec T) error

	// Get returns the record stored under key, or ErrKeyNotFound.
	Get(key K) (T, error)

	// DeleteByKey removes the record stored under key and reports whether a
	// record existed.
	DeleteByKey(key K) (bool, error)

	// UpdateOrDeleteByKey applies fn to the record stored under key. If fn
	// returns false the record is deleted, otherwise the returned record
	// replaces the stored one.
	UpdateOrDeleteByKey(key K, fn func(rec T) (T, bool)) error

	// Select returns all records satisfying the predicate; a nil predicate
	// selects every record.
	Select(pred Predicate[T]) ([]T, error)

	// Size returns the number of stored records.
	Size() (int, error)

	// RegisterObserver registers a callback invoked for table mutations,
	// either immediately or on commit.
	RegisterObserver(fn ObserverFunc[T], mode NotificationMode)

	// BeginTransaction opens a transaction scope for observer notification
	// batching and returns its id.
	BeginTransaction() uuid.UUID

	// CommitTransaction flushes the notifications buffered for the
	// transaction to the on-commit observers.
	CommitTransaction(id uuid.UUID) error

	// AbortTransaction discards the notifications buffered for the
	// transaction.
	AbortTransaction(id uuid.UUID) error
}
