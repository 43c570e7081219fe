package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnread_OneRowPerChannel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	outsider := f.user("outsider")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)

	for i := 0; i < 5; i++ {
		f.send(owner, general.ID, "hello", outsider)
	}

	state := f.unread(alice, general.ID)
	require.NotNil(t, state)
	assert.Nil(t, state.LastID)
	assert.Empty(t, state.Mentions)

	// authors and non-members get nothing
	assert.Nil(t, f.unread(owner, general.ID))
	assert.Nil(t, f.unread(outsider, general.ID))
	assert.Equal(t, 1, f.mem.Unreads.Count())
}

func TestAcknowledge_ClearsMentionsUpTo(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)

	m1 := f.send(owner, general.ID, "one", alice)
	f.send(owner, general.ID, "two")
	m3 := f.send(owner, general.ID, "three", alice)
	m4 := f.send(owner, general.ID, "four", alice)
	assert.Equal(t, []string{m1.ID, m3.ID, m4.ID}, f.unread(alice, general.ID).Mentions)

	state, err := f.core.Unreads.Acknowledge(f.ctx, alice, general.ID, m3.ID)
	require.NoError(t, err)
	require.NotNil(t, state.LastID)
	assert.Equal(t, m3.ID, *state.LastID)
	assert.Equal(t, []string{m4.ID}, state.Mentions)

	// the marker never moves backwards
	state, err = f.core.Unreads.Acknowledge(f.ctx, alice, general.ID, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, m3.ID, *state.LastID)
	assert.Equal(t, []string{m4.ID}, state.Mentions)

	stored := f.unread(alice, general.ID)
	assert.Equal(t, state.Version, stored.Version)
}

func TestAcknowledge_UnknownMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)
	voice, err := f.core.Channels.CreateChannel(f.ctx, owner, server.ID, &model.CreateChannelRequest{
		Name: "voice", Kind: model.ChannelKindVoice,
	})
	require.NoError(t, err)

	msg := f.send(owner, general.ID, "hi", alice)
	before := f.unread(alice, general.ID)

	_, err = f.core.Unreads.Acknowledge(f.ctx, alice, general.ID, model.NewID())
	assert.ErrorIs(t, err, ErrStaleAcknowledgement)
	assert.ErrorIs(t, err, model.ErrStaleAcknowledgement)

	// a message of another channel does not count
	_, err = f.core.Unreads.Acknowledge(f.ctx, alice, voice.ID, msg.ID)
	assert.ErrorIs(t, err, ErrStaleAcknowledgement)

	assert.Equal(t, before, f.unread(alice, general.ID))
	assert.Nil(t, f.unread(alice, voice.ID))
}

func TestAcknowledge_DeletedMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)

	msg := f.send(owner, general.ID, "soon gone", alice)
	require.Equal(t, []string{msg.ID}, f.unread(alice, general.ID).Mentions)

	require.NoError(t, f.core.Messages.Delete(f.ctx, owner, msg.ID))
	assert.Empty(t, f.unread(alice, general.ID).Mentions)

	state, err := f.core.Unreads.Acknowledge(f.ctx, alice, general.ID, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, state.LastID)
	assert.Equal(t, msg.ID, *state.LastID)
}

func TestAcknowledge_RequiresView(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	outsider := f.user("outsider")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)
	msg := f.send(owner, general.ID, "hi")

	_, err := f.core.Unreads.Acknowledge(f.ctx, outsider, general.ID, msg.ID)
	assert.ErrorIs(t, err, ErrMissingPermission)

	_, err = f.core.Channels.SetOverwrite(f.ctx, owner, general.ID, &model.OverwriteInput{
		Subject: alice, SubjectKind: model.SubjectUser, Deny: model.PermViewChannel,
	})
	require.NoError(t, err)
	_, err = f.core.Unreads.Acknowledge(f.ctx, alice, general.ID, msg.ID)
	assert.ErrorIs(t, err, ErrMissingPermission)
}

func TestAcknowledge_PublishesToUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)
	msg := f.send(owner, general.ID, "hi")

	sub := f.hub.Subscribe(events.Topic(events.ScopeUser, alice), "test")
	_, err := f.core.Unreads.Acknowledge(f.ctx, alice, general.ID, msg.ID)
	require.NoError(t, err)

	select {
	case e := <-sub.Events:
		assert.Equal(t, events.UnreadAcknowledged, e.Type)
		assert.Equal(t, alice, e.ScopeID)
	default:
		t.Fatal("expected an acknowledgement event")
	}
}

func TestMentionLimit_EvictsOldest(t *testing.T) {
	t.Parallel()
	f := newFixtureWith(t, nil, Options{MaxMentions: 3}, OnboardingConfig{})

	owner := f.user("owner")
	alice := f.user("alice")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.send(owner, general.ID, "ping", alice).ID)
	}
	assert.Equal(t, ids[2:], f.unread(alice, general.ID).Mentions)
}

func TestUnreadState_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	server := f.server(owner)
	general := f.general(server.ID)

	state, err := f.core.Unreads.State(f.ctx, owner, general.ID)
	require.NoError(t, err)
	assert.Nil(t, state.LastID)
	assert.Empty(t, state.Mentions)
	assert.Zero(t, state.Version)
}

func TestUnread_LeavingDropsRows(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)

	f.send(owner, general.ID, "hi", alice)
	require.NotNil(t, f.unread(alice, general.ID))

	require.NoError(t, f.core.Members.Leave(f.ctx, server.ID, alice))
	assert.Nil(t, f.unread(alice, general.ID))
}

func TestUnread_ConcurrentSendAndAcknowledge(t *testing.T) {
	t.Parallel()
	f := newFixtureWith(t, nil, Options{CASRetries: 1000}, OnboardingConfig{})

	owner := f.user("owner")
	alice := f.user("alice")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)

	const n = 10
	first := make([]*model.Message, n)
	for i := range first {
		first[i] = f.send(owner, general.ID, "early", alice)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		second []string
	)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			msg, err := f.core.Messages.Send(f.ctx, owner, general.ID, &model.SendMessageRequest{
				Content:  "late",
				Mentions: []string{alice},
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			second = append(second, msg.ID)
			mu.Unlock()
		}()
		go func(msg *model.Message) {
			defer wg.Done()
			_, err := f.core.Unreads.Acknowledge(f.ctx, alice, general.ID, msg.ID)
			assert.NoError(t, err)
		}(first[n-1-i])
	}
	wg.Wait()

	state := f.unread(alice, general.ID)
	require.NotNil(t, state.LastID)
	assert.Equal(t, first[n-1].ID, *state.LastID)
	assert.ElementsMatch(t, second, state.Mentions)
	for _, id := range state.Mentions {
		assert.False(t, state.IsRead(id))
	}
}

func TestUnread_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	var failing atomic.Bool
	f := newFixtureWith(t, func(s *Store) {
		inner := s.Unreads
		s.Unreads = &stubUnreads{
			UnreadRepository: inner,
			casFunc: func(ctx context.Context, prev, next *model.UnreadState) (bool, error) {
				if failing.Load() {
					attempts.Add(1)
					return false, nil
				}
				return inner.CompareAndSwap(ctx, prev, next)
			},
		}
	}, Options{}, OnboardingConfig{})

	owner := f.user("owner")
	alice := f.user("alice")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)
	msg := f.send(owner, general.ID, "hi")

	failing.Store(true)
	_, err := f.core.Unreads.Acknowledge(f.ctx, alice, general.ID, msg.ID)
	assert.ErrorIs(t, err, ErrUnreadConflict)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, int32(DefaultOptions().CASRetries), attempts.Load())

	// a lost write never reaches the store
	assert.Nil(t, f.unread(alice, general.ID).LastID)
}
