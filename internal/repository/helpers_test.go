package repository

import (
	"context"
	"testing"
	"time"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecord_RenamesID(t *testing.T) {
	t.Parallel()

	data, err := encodeRecord(&model.Channel{ID: "c1", Kind: model.ChannelKindText, Name: "general"})
	require.NoError(t, err)

	assert.Equal(t, "c1", data["key"])
	assert.NotContains(t, data, "id")
	assert.Equal(t, "general", data["name"])
}

func TestDecodeRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	last := "m9"
	in := &model.Channel{
		ID:       "c1",
		ServerID: "s1",
		Kind:     model.ChannelKindText,
		Overwrites: []model.Overwrite{{
			Subject:     "r1",
			SubjectKind: model.SubjectRole,
			Overrides:   model.Overrides{Allow: model.PermSendMessage, Deny: model.PermReact},
		}},
		LastMessageID: &last,
	}
	data, err := encodeRecord(in)
	require.NoError(t, err)
	data["id"] = models.RecordID{Table: "channel", ID: "c1"}

	out, err := decodeRecord[model.Channel](data)
	require.NoError(t, err)
	assert.Equal(t, "c1", out.ID)
	assert.Equal(t, in.Overwrites, out.Overwrites)
	require.NotNil(t, out.LastMessageID)
	assert.Equal(t, "m9", *out.LastMessageID)
}

func TestDecodeRecord_SurrealValues(t *testing.T) {
	t.Parallel()

	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	row := map[string]interface{}{
		"server_id": "s1",
		"user_id":   "u1",
		"roles":     []interface{}{"r1"},
		"joined_at": models.CustomDateTime{Time: when},
	}
	resp := map[string]interface{}{"status": "OK", "result": []interface{}{row}}

	member, err := decodeRecord[model.Member](resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, member.Roles)
	assert.True(t, when.Equal(member.JoinedAt))
}

func TestDecodeRecord_EmptyResult(t *testing.T) {
	t.Parallel()

	_, err := decodeRecord[model.Member](map[string]interface{}{"status": "OK", "result": []interface{}{}})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAffected(t *testing.T) {
	t.Parallel()

	hit := []interface{}{map[string]interface{}{"status": "OK", "result": []interface{}{map[string]interface{}{}}}}
	miss := []interface{}{map[string]interface{}{"status": "OK", "result": []interface{}{}}}

	assert.True(t, affected(hit))
	assert.False(t, affected(miss))
	assert.False(t, affected(nil))
}

// fakeDB answers queries from a canned response and records them
type fakeDB struct {
	queries  []string
	vars     []map[string]interface{}
	response []interface{}
	err      error
}

func (f *fakeDB) Connect(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                      { return nil }
func (f *fakeDB) Ping(ctx context.Context) error    { return nil }

func (f *fakeDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	f.queries = append(f.queries, query)
	f.vars = append(f.vars, vars)
	return f.response, f.err
}

func (f *fakeDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := f.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	rows, _ := extractQueryResults(results)
	if len(rows) == 0 {
		return nil, database.ErrNotFound
	}
	return rows[0], nil
}

func (f *fakeDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := f.Query(ctx, query, vars)
	return err
}

func (f *fakeDB) BeginTx(ctx context.Context) (database.Transaction, error) {
	return &fakeTx{}, nil
}

type fakeTx struct {
	queries []string
}

func (f *fakeTx) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	f.queries = append(f.queries, query)
	return nil
}

func (f *fakeTx) Len() int        { return len(f.queries) }
func (f *fakeTx) Commit() error   { return nil }
func (f *fakeTx) Rollback() error { return nil }

func TestUnreadRepository_CompareAndSwap_CreateDuplicate(t *testing.T) {
	t.Parallel()

	db := &fakeDB{err: database.ErrDuplicate}
	repo := NewUnreadRepository(db)

	ok, err := repo.CompareAndSwap(context.Background(), nil, model.NewUnreadState("u", "c"))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"u", "c"}, db.vars[0]["key"])
}

func TestUnreadRepository_CompareAndSwap_VersionMismatch(t *testing.T) {
	t.Parallel()

	db := &fakeDB{response: []interface{}{map[string]interface{}{"status": "OK", "result": []interface{}{}}}}
	repo := NewUnreadRepository(db)

	prev := &model.UnreadState{UserID: "u", ChannelID: "c", Version: 3}
	ok, err := repo.CompareAndSwap(context.Background(), prev, prev.Clone())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), db.vars[0]["version"])
	assert.Contains(t, db.queries[0], "WHERE version = $version")
}

func TestMemberRepository_GetMissing(t *testing.T) {
	t.Parallel()

	db := &fakeDB{response: []interface{}{map[string]interface{}{"status": "OK", "result": []interface{}{}}}}
	member, err := NewMemberRepository(db).Get(context.Background(), "s", "u")

	assert.NoError(t, err)
	assert.Nil(t, member)
	assert.Equal(t, "member", db.vars[0]["tb"])
	assert.Equal(t, []string{"s", "u"}, db.vars[0]["key"])
}

func TestChannelRepository_WritesJoinContextTransaction(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	repo := NewChannelRepository(db)
	tx := &fakeTx{}
	ctx := database.WithTx(context.Background(), tx)

	require.NoError(t, repo.Delete(ctx, "c1"))
	require.NoError(t, repo.AdvanceLastMessage(ctx, "c1", "m1"))
	assert.Empty(t, db.queries)
	assert.Equal(t, 2, tx.Len())

	// conditional writes bypass the batch
	_, err := repo.SwapLastMessage(ctx, "c1", "m1", nil)
	require.NoError(t, err)
	assert.Len(t, db.queries, 1)
	assert.Nil(t, db.vars[0]["next"])
}
