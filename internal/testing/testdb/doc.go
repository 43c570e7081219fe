// Package testdb provides SurrealDB databases for the repository
// integration tests.
//
// # Test Database Setup
//
// Point the tests at a running SurrealDB:
//
//	TEST_DB_HOST=localhost TEST_DB_PORT=8000 go test ./internal/repository/...
//
// Without TEST_DB_HOST every test calling New is skipped.
//
// # Isolation
//
// Each TestDB gets its own namespace with the schema from repository.Migrate
// applied. Close removes the namespace.
package testdb
