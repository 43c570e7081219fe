package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/forgo/chatcore/internal/database"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// Records keep the model's "id" under "key" so it never clashes with the
// SurrealDB record id. Composite keys are arrays, e.g. member:[server, user].

// table is the generic data access shared by every repository
type table[T any] struct {
	db   database.Database
	name string
}

func newTable[T any](db database.Database, name string) table[T] {
	return table[T]{db: db, name: name}
}

// get returns the record with the given key, or nil if it does not exist
func (t table[T]) get(ctx context.Context, key interface{}) (*T, error) {
	query := `SELECT * OMIT id FROM type::thing($tb, $key)`
	vars := map[string]interface{}{"tb": t.name, "key": key}

	result, err := t.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRecord[T](result)
}

// first returns the first record matching where
func (t table[T]) first(ctx context.Context, where string, vars map[string]interface{}) (*T, error) {
	query := fmt.Sprintf(`SELECT * OMIT id FROM type::table($tb) WHERE %s LIMIT 1`, where)
	result, err := t.db.QueryOne(ctx, query, withTable(t.name, vars))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRecord[T](result)
}

// list returns every record matching where, in the given order
func (t table[T]) list(ctx context.Context, where, orderBy string, vars map[string]interface{}) ([]*T, error) {
	query := fmt.Sprintf(`SELECT * OMIT id FROM type::table($tb) WHERE %s ORDER BY %s`, where, orderBy)
	result, err := t.db.Query(ctx, query, withTable(t.name, vars))
	if err != nil {
		return nil, err
	}

	rows, _ := extractQueryResults(result)
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		v, err := decodeRecord[T](row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// create inserts a new record. An existing key surfaces as database.ErrDuplicate.
func (t table[T]) create(ctx context.Context, key interface{}, v *T) error {
	data, err := encodeRecord(v)
	if err != nil {
		return err
	}
	query := `CREATE type::thing($tb, $key) CONTENT $data`
	return database.Exec(ctx, t.db, query, map[string]interface{}{"tb": t.name, "key": key, "data": data})
}

// replace overwrites an existing record. Missing records are left missing.
func (t table[T]) replace(ctx context.Context, key interface{}, v *T) error {
	data, err := encodeRecord(v)
	if err != nil {
		return err
	}
	query := `UPDATE type::thing($tb, $key) CONTENT $data`
	return database.Exec(ctx, t.db, query, map[string]interface{}{"tb": t.name, "key": key, "data": data})
}

// versioned wraps write so it runs only while the record exists and still
// carries $version. It stays one statement, so the check and the write
// commit together with or without a batch.
func versioned(write string) string {
	return `IF type::thing($tb, $key).id = NONE { THROW "missing record" }
	ELSE IF type::thing($tb, $key).version != $version { THROW "write conflict: stale version" }
	ELSE { ` + write + ` }`
}

// parentGuard aborts the enclosing batch unless the parent record exists
const parentGuard = `IF type::thing($parent_tb, $parent).id = NONE { THROW "missing record: parent" }`

// replaceVersioned overwrites a record whose stored version is still
// version. A missing record surfaces as database.ErrNotFound, a moved
// version as database.ErrConflict.
func (t table[T]) replaceVersioned(ctx context.Context, key interface{}, v *T, version int64) error {
	data, err := encodeRecord(v)
	if err != nil {
		return err
	}
	query := versioned(`UPDATE type::thing($tb, $key) CONTENT $data`)
	return database.Exec(ctx, t.db, query, map[string]interface{}{
		"tb":      t.name,
		"key":     key,
		"data":    data,
		"version": version,
	})
}

// createUnder inserts a record only while its parent exists. A missing
// parent surfaces as database.ErrNotFound.
func (t table[T]) createUnder(ctx context.Context, parentTable string, parentKey interface{}, key interface{}, v *T) error {
	data, err := encodeRecord(v)
	if err != nil {
		return err
	}
	batch := database.NewAtomicBatch()
	batch.Add(parentGuard, map[string]interface{}{"parent_tb": parentTable, "parent": parentKey})
	batch.Add(`CREATE type::thing($tb, $key) CONTENT $data`, map[string]interface{}{
		"tb":   t.name,
		"key":  key,
		"data": data,
	})
	return batch.Execute(ctx, t.db)
}

// delete removes a record. Deleting a missing record is a no-op.
func (t table[T]) delete(ctx context.Context, key interface{}) error {
	query := `DELETE type::thing($tb, $key)`
	return database.Exec(ctx, t.db, query, map[string]interface{}{"tb": t.name, "key": key})
}

// deleteWhere removes every record matching where
func (t table[T]) deleteWhere(ctx context.Context, where string, vars map[string]interface{}) error {
	query := fmt.Sprintf(`DELETE type::table($tb) WHERE %s`, where)
	return database.Exec(ctx, t.db, query, withTable(t.name, vars))
}

func withTable(name string, vars map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out["tb"] = name
	return out
}

// encodeRecord converts a model into record content
func encodeRecord(v interface{}) (map[string]interface{}, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return nil, err
	}
	if id, ok := data["id"]; ok {
		data["key"] = id
		delete(data, "id")
	}
	return data, nil
}

// decodeRecord converts a SurrealDB row into a model
func decodeRecord[T any](result interface{}) (*T, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	// Navigate through SurrealDB response structure
	if resp, ok := result.(map[string]interface{}); ok {
		if status, ok := resp["status"].(string); ok && status == "OK" {
			if resultData, ok := resp["result"].([]interface{}); ok {
				if len(resultData) == 0 {
					return nil, database.ErrNotFound
				}
				result = resultData[0]
			}
		}
	}

	data, ok := normalize(result).(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	delete(data, "id")
	if key, ok := data["key"]; ok {
		if _, composite := key.([]interface{}); !composite {
			data["id"] = key
		}
		delete(data, "key")
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(jsonBytes, out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize replaces SurrealDB specific values with JSON friendly ones
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case []interface{}:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	case models.RecordID:
		return extractRecordID(t)
	case *models.RecordID:
		return extractRecordID(t)
	case models.CustomDateTime:
		return t.Time.Format(time.RFC3339Nano)
	case *models.CustomDateTime:
		if t == nil {
			return nil
		}
		return t.Time.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// extractRecordID extracts the string form of a record id
func extractRecordID(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case models.RecordID:
		return v.String()
	case *models.RecordID:
		if v != nil {
			return v.String()
		}
	}
	return ""
}

// extractQueryResults extracts query results array from SurrealDB response
func extractQueryResults(result []interface{}) ([]interface{}, bool) {
	if len(result) == 0 {
		return nil, false
	}
	if firstResult, ok := result[0].(map[string]interface{}); ok {
		if resultArray, ok := firstResult["result"].([]interface{}); ok {
			return resultArray, true
		}
	}
	// Direct array format
	return result, true
}

// affected reports whether a mutation returned at least one record
func affected(result []interface{}) bool {
	rows, ok := extractQueryResults(result)
	if !ok {
		return false
	}
	for _, row := range rows {
		if row != nil {
			return true
		}
	}
	return false
}
