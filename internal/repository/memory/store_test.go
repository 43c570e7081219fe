package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_UsernameCaseInsensitive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Users.Create(ctx, &model.User{ID: "u1", Username: "Alice"}))
	err := s.Users.Create(ctx, &model.User{ID: "u2", Username: "alice"})
	assert.ErrorIs(t, err, database.ErrDuplicate)

	got, err := s.Users.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)
}

func TestStore_RowsAreCopied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	m := &model.Member{ServerID: "s", UserID: "u", Roles: []string{"r1"}}
	require.NoError(t, s.Members.Create(ctx, m))
	m.Roles[0] = "changed"

	got, err := s.Members.Get(ctx, "s", "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, got.Roles)
}

func TestStore_MissingRowsAreNil(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	srv, err := s.Servers.GetByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, srv)

	assert.ErrorIs(t, s.Servers.Update(ctx, &model.Server{ID: "missing"}), database.ErrNotFound)
}

func TestWithinTransaction_RollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Servers.Create(ctx, &model.Server{ID: "s"}))

	boom := errors.New("boom")
	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Servers.Delete(ctx, "s"))
		require.NoError(t, s.Bans.Create(ctx, &model.Ban{ServerID: "s", UserID: "u"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	srv, _ := s.Servers.GetByID(ctx, "s")
	assert.NotNil(t, srv)
	ban, _ := s.Bans.Get(ctx, "s", "u")
	assert.Nil(t, ban)
}

func TestWithinTransaction_KeepsConcurrentWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Servers.Create(ctx, &model.Server{ID: "s"}))

	boom := errors.New("boom")
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinTransaction(ctx, func(ctx context.Context) error {
			close(started)
			if err := s.Servers.Delete(ctx, "s"); err != nil {
				return err
			}
			time.Sleep(20 * time.Millisecond)
			return boom
		})
	}()

	<-started
	joined := make(chan error, 1)
	go func() {
		joined <- s.Members.Create(ctx, &model.Member{ServerID: "other", UserID: "u"})
	}()

	assert.ErrorIs(t, <-done, boom)
	require.NoError(t, <-joined)

	member, _ := s.Members.Get(ctx, "other", "u")
	assert.NotNil(t, member, "a write outside the failed transaction must survive its rollback")
	srv, _ := s.Servers.GetByID(ctx, "s")
	assert.NotNil(t, srv)
}

func TestWithinTransaction_SharedByGoroutines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		errs := make(chan error, 4)
		for _, id := range []string{"a", "b", "c", "d"} {
			go func() {
				errs <- s.Members.Create(ctx, &model.Member{ServerID: "s", UserID: id})
			}()
		}
		for range 4 {
			if err := <-errs; err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	members, err := s.Members.ListByServer(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, members, 4)
}

func TestUpdate_RejectsStaleVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Servers.Create(ctx, &model.Server{ID: "s", Name: "start"}))
	first, _ := s.Servers.GetByID(ctx, "s")
	second, _ := s.Servers.GetByID(ctx, "s")
	first.Name = "first"
	require.NoError(t, s.Servers.Update(ctx, first))
	assert.Equal(t, int64(1), first.Version)
	second.Name = "second"
	assert.ErrorIs(t, s.Servers.Update(ctx, second), database.ErrConflict)
	srv, _ := s.Servers.GetByID(ctx, "s")
	assert.Equal(t, "first", srv.Name)

	require.NoError(t, s.Members.Create(ctx, &model.Member{ServerID: "s", UserID: "u"}))
	m1, _ := s.Members.Get(ctx, "s", "u")
	m2, _ := s.Members.Get(ctx, "s", "u")
	m1.Roles = []string{"r1"}
	require.NoError(t, s.Members.Update(ctx, m1))
	m2.Roles = []string{"r2"}
	assert.ErrorIs(t, s.Members.Update(ctx, m2), database.ErrConflict)

	require.NoError(t, s.Channels.Create(ctx, &model.Channel{ID: "c", Kind: model.ChannelKindText}))
	c1, _ := s.Channels.GetByID(ctx, "c")
	c2, _ := s.Channels.GetByID(ctx, "c")
	require.NoError(t, s.Channels.AdvanceLastMessage(ctx, "c", "m1"))
	c1.Name = "one"
	require.NoError(t, s.Channels.Update(ctx, c1), "the last message pointer does not bump the version")
	c2.Name = "two"
	assert.ErrorIs(t, s.Channels.Update(ctx, c2), database.ErrConflict)
}

func TestMessageRepository_LedgerSurvivesDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Messages.Create(ctx, &model.Message{ID: "m1", ChannelID: "c"}))
	require.NoError(t, s.Messages.Delete(ctx, "m1"))

	existed, err := s.Messages.HasExisted(ctx, "c", "m1")
	require.NoError(t, err)
	assert.True(t, existed)

	other, _ := s.Messages.HasExisted(ctx, "other", "m1")
	assert.False(t, other)

	require.NoError(t, s.Messages.DeleteByChannel(ctx, "c"))
	existed, _ = s.Messages.HasExisted(ctx, "c", "m1")
	assert.False(t, existed)
}

func TestMessageRepository_Latest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	for _, id := range []string{"m1", "m3", "m2"} {
		require.NoError(t, s.Messages.Create(ctx, &model.Message{ID: id, ChannelID: "c"}))
	}
	latest, err := s.Messages.Latest(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "m3", latest.ID)

	none, err := s.Messages.Latest(ctx, "empty")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestChannelRepository_LastMessagePointer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Channels.Create(ctx, &model.Channel{ID: "c", Kind: model.ChannelKindText}))

	require.NoError(t, s.Channels.AdvanceLastMessage(ctx, "c", "m2"))
	require.NoError(t, s.Channels.AdvanceLastMessage(ctx, "c", "m1"))
	c, _ := s.Channels.GetByID(ctx, "c")
	assert.Equal(t, "m2", *c.LastMessageID)

	swapped, err := s.Channels.SwapLastMessage(ctx, "c", "m1", nil)
	require.NoError(t, err)
	assert.False(t, swapped)

	prev := "m1"
	swapped, err = s.Channels.SwapLastMessage(ctx, "c", "m2", &prev)
	require.NoError(t, err)
	assert.True(t, swapped)

	// plain updates leave the pointer alone
	c.Name = "renamed"
	c.LastMessageID = nil
	require.NoError(t, s.Channels.Update(ctx, c))
	c, _ = s.Channels.GetByID(ctx, "c")
	assert.Equal(t, "m1", *c.LastMessageID)
	assert.Equal(t, "renamed", c.Name)
}

func TestUnreadRepository_CompareAndSwap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	first := model.NewUnreadState("u", "c")
	ok, err := s.Unreads.CompareAndSwap(ctx, nil, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.Unreads.CompareAndSwap(ctx, nil, first)
	assert.False(t, ok, "create must fail when the row exists")

	stored, _ := s.Unreads.Get(ctx, "u", "c")
	next := stored.Clone()
	next.AddMention("m1", 0)
	ok, _ = s.Unreads.CompareAndSwap(ctx, stored, next)
	assert.True(t, ok)

	stale := stored.Clone()
	stale.Acknowledge("m0")
	ok, _ = s.Unreads.CompareAndSwap(ctx, stored, stale)
	assert.False(t, ok, "write based on an old version must lose")

	got, _ := s.Unreads.Get(ctx, "u", "c")
	assert.Equal(t, []string{"m1"}, got.Mentions)
	assert.Nil(t, got.LastID)
}

func TestUnreadRepository_DeleteForUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	for _, c := range []string{"c1", "c2", "c3"} {
		_, err := s.Unreads.CompareAndSwap(ctx, nil, model.NewUnreadState("u", c))
		require.NoError(t, err)
	}
	_, _ = s.Unreads.CompareAndSwap(ctx, nil, model.NewUnreadState("other", "c1"))

	require.NoError(t, s.Unreads.DeleteForUser(ctx, "u", []string{"c1", "c2"}))
	assert.Equal(t, 2, s.Unreads.Count())
}
