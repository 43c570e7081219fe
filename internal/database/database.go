package database

import (
	"context"
	"errors"
)

// Standard errors for database operations.
// Use errors.Is() to check these error types in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates the record already exists or a unique index rejected it.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure (syntax error, invalid reference, etc.).
	ErrQuery = errors.New("query error")

	// ErrConflict indicates a conditional write lost against a concurrent writer.
	ErrConflict = errors.New("write conflict")
)

// Database defines the interface for database operations
type Database interface {
	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns results
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns a single result
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results (for mutations)
	Execute(ctx context.Context, query string, vars map[string]interface{}) error

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction buffers writes until Commit
type Transaction interface {
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
	Len() int
	Commit() error
	Rollback() error
}

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}

type txKey struct{}

// WithTx returns a context carrying tx. Writes issued through Exec with this
// context are buffered into tx instead of running immediately.
func WithTx(ctx context.Context, tx Transaction) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, if any
func TxFromContext(ctx context.Context) (Transaction, bool) {
	tx, ok := ctx.Value(txKey{}).(Transaction)
	return tx, ok && tx != nil
}

// Exec runs a write against the transaction on ctx, or directly against db
func Exec(ctx context.Context, db Database, query string, vars map[string]interface{}) error {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.Execute(ctx, query, vars)
	}
	return db.Execute(ctx, query, vars)
}

// RunInTx runs fn with a transaction on its context and commits everything fn
// wrote. If fn fails nothing is written. A context that already carries a
// transaction is reused, so nested calls commit with the outermost one.
func RunInTx(ctx context.Context, db Database, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
