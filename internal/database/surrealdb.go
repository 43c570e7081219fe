package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// SurrealDB implements the Database interface over a SurrealDB websocket connection
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates a new SurrealDB instance
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{
		config: cfg,
	}
}

// Connect dials the websocket endpoint, signs in and selects the configured
// namespace and database
func (s *SurrealDB) Connect(ctx context.Context) error {
	db, err := surrealdb.FromEndpointURLString(ctx, fmt.Sprintf("ws://%s:%s", s.config.Host, s.config.Port))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	auth := &surrealdb.Auth{Username: s.config.User, Password: s.config.Password}
	if _, err := db.SignIn(ctx, auth); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: signin failed: %v", ErrConnection, err)
	}
	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: use failed: %v", ErrConnection, err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SurrealDB) Close() error {
	if s.db != nil {
		return s.db.Close(context.Background())
	}
	return nil
}

// Ping asks the server for its version
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query runs every statement of query and returns one
// {"status", "result"} map per statement. The first failed statement
// decides the returned error.
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	if s.db == nil {
		return nil, ErrConnection
	}

	statements, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, classify(err.Error())
	}
	if statements == nil {
		return nil, nil
	}

	out := make([]interface{}, 0, len(*statements))
	for _, st := range *statements {
		if st.Status == "OK" {
			out = append(out, map[string]interface{}{"status": st.Status, "result": st.Result})
			continue
		}
		if st.Error != nil {
			return nil, classify(st.Error.Message)
		}
		return nil, ErrQuery
	}
	return out, nil
}

// classify maps a SurrealDB error message onto the package errors
func classify(msg string) error {
	switch {
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "already contains"):
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case strings.Contains(msg, "write conflict"), strings.Contains(msg, "can be retried"):
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case strings.Contains(msg, "missing record"):
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		return fmt.Errorf("%w: %s", ErrQuery, msg)
	}
}

// QueryOne returns the first row of the first statement, or ErrNotFound
// when it produced none. Scalar results come back as they are.
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	statements, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	if len(statements) == 0 {
		return nil, ErrNotFound
	}

	first, ok := statements[0].(map[string]interface{})
	if !ok {
		return statements[0], nil
	}
	rows, isList := first["result"].([]interface{})
	if !isList {
		return first["result"], nil
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Execute runs query and drops its results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

// BeginTx starts a new batch transaction
func (s *SurrealDB) BeginTx(ctx context.Context) (Transaction, error) {
	if s.db == nil {
		return nil, ErrConnection
	}
	return &SurrealTransaction{db: s, ctx: ctx}, nil
}

// SurrealTransaction buffers writes and sends them as one transaction block
type SurrealTransaction struct {
	db        Database
	ctx       context.Context
	queries   []txQuery
	committed bool
}

type txQuery struct {
	query string
	vars  map[string]interface{}
}

// Execute buffers a write until Commit
func (t *SurrealTransaction) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	if t.committed {
		return fmt.Errorf("%w: transaction already committed", ErrQuery)
	}
	t.queries = append(t.queries, txQuery{query: query, vars: vars})
	return nil
}

// Len returns the number of buffered writes
func (t *SurrealTransaction) Len() int {
	return len(t.queries)
}

// Commit sends every buffered write in one BEGIN/COMMIT block
func (t *SurrealTransaction) Commit() error {
	if t.committed {
		return nil
	}

	tb := NewTxBuilder()
	for _, q := range t.queries {
		tb.Add(q.query, q.vars)
	}
	if _, err := ExecuteTransaction(t.ctx, t.db, tb); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	t.committed = true
	return nil
}

// Rollback discards buffered writes
func (t *SurrealTransaction) Rollback() error {
	t.queries = nil
	return nil
}
