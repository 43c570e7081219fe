package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
	"github.com/forgo/chatcore/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fixture
// ============================================================================

type fixture struct {
	t     *testing.T
	ctx   context.Context
	mem   *memory.Store
	store Store
	hub   *events.Hub
	core  *Core
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil, Options{}, OnboardingConfig{})
}

// newFixtureWith builds the core over the memory store. wrap, when set, may
// replace repositories to inject failures.
func newFixtureWith(t *testing.T, wrap func(*Store), opts Options, onboarding OnboardingConfig) *fixture {
	t.Helper()

	mem := memory.New()
	store := memoryStore(mem)
	if wrap != nil {
		wrap(&store)
	}
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	core := NewCore(store, hub, opts, onboarding)
	core.Webhooks.cost = bcrypt.MinCost

	return &fixture{
		t:     t,
		ctx:   context.Background(),
		mem:   mem,
		store: store,
		hub:   hub,
		core:  core,
	}
}

func memoryStore(mem *memory.Store) Store {
	return Store{
		Users:       mem.Users,
		Servers:     mem.Servers,
		Members:     mem.Members,
		Bans:        mem.Bans,
		Channels:    mem.Channels,
		Messages:    mem.Messages,
		Webhooks:    mem.Webhooks,
		Emoji:       mem.Emoji,
		Invites:     mem.Invites,
		Attachments: mem.Attachments,
		Unreads:     mem.Unreads,
		Tx:          mem,
	}
}

func (f *fixture) user(name string) string {
	f.t.Helper()
	u := &model.User{ID: model.NewID(), Username: name, CreatedOn: time.Now().UTC()}
	require.NoError(f.t, f.mem.Users.Create(f.ctx, u))
	return u.ID
}

func (f *fixture) server(ownerID string) *model.Server {
	f.t.Helper()
	server, err := f.core.Servers.CreateServer(f.ctx, ownerID, &model.CreateServerRequest{Name: "Test Server"})
	require.NoError(f.t, err)
	return server
}

// general returns the default text channel of a server
func (f *fixture) general(serverID string) *model.Channel {
	f.t.Helper()
	channels, err := f.mem.Channels.ListByServer(f.ctx, serverID)
	require.NoError(f.t, err)
	for _, c := range channels {
		if c.Name == defaultChannelName {
			return c
		}
	}
	f.t.Fatalf("server %s has no default channel", serverID)
	return nil
}

func (f *fixture) join(serverID string, userIDs ...string) {
	f.t.Helper()
	for _, id := range userIDs {
		_, err := f.core.Members.Join(f.ctx, serverID, id)
		require.NoError(f.t, err)
	}
}

// role creates a role as the server owner
func (f *fixture) role(server *model.Server, name string, rank int, allow, deny model.Permission) string {
	f.t.Helper()
	role, err := f.core.Servers.CreateRole(f.ctx, server.OwnerID, server.ID, &model.CreateRoleRequest{
		Name:        name,
		Rank:        rank,
		Permissions: model.Overrides{Allow: allow, Deny: deny},
	})
	require.NoError(f.t, err)
	return role.ID
}

// assign gives a member a role as the server owner
func (f *fixture) assign(server *model.Server, userID, roleID string) {
	f.t.Helper()
	_, err := f.core.Members.AssignRole(f.ctx, server.OwnerID, server.ID, userID, roleID)
	require.NoError(f.t, err)
}

func (f *fixture) send(actorID, channelID, content string, mentions ...string) *model.Message {
	f.t.Helper()
	msg, err := f.core.Messages.Send(f.ctx, actorID, channelID, &model.SendMessageRequest{
		Content:  content,
		Mentions: mentions,
	})
	require.NoError(f.t, err)
	return msg
}

func (f *fixture) unread(userID, channelID string) *model.UnreadState {
	f.t.Helper()
	state, err := f.mem.Unreads.Get(f.ctx, userID, channelID)
	require.NoError(f.t, err)
	return state
}

// ============================================================================
// Failure injection
// ============================================================================

type stubMembers struct {
	MemberRepository
	getFunc            func(ctx context.Context, serverID, userID string) (*model.Member, error)
	updateFunc         func(ctx context.Context, member *model.Member) error
	deleteByServerFunc func(ctx context.Context, serverID string) error
}

func (m *stubMembers) Get(ctx context.Context, serverID, userID string) (*model.Member, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, serverID, userID)
	}
	return m.MemberRepository.Get(ctx, serverID, userID)
}

func (m *stubMembers) Update(ctx context.Context, member *model.Member) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, member)
	}
	return m.MemberRepository.Update(ctx, member)
}

func (m *stubMembers) DeleteByServer(ctx context.Context, serverID string) error {
	if m.deleteByServerFunc != nil {
		return m.deleteByServerFunc(ctx, serverID)
	}
	return m.MemberRepository.DeleteByServer(ctx, serverID)
}

type stubBans struct {
	BanRepository
	getFunc func(ctx context.Context, serverID, userID string) (*model.Ban, error)
}

func (m *stubBans) Get(ctx context.Context, serverID, userID string) (*model.Ban, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, serverID, userID)
	}
	return m.BanRepository.Get(ctx, serverID, userID)
}

type stubUnreads struct {
	UnreadRepository
	casFunc func(ctx context.Context, prev, next *model.UnreadState) (bool, error)
}

func (m *stubUnreads) CompareAndSwap(ctx context.Context, prev, next *model.UnreadState) (bool, error) {
	if m.casFunc != nil {
		return m.casFunc(ctx, prev, next)
	}
	return m.UnreadRepository.CompareAndSwap(ctx, prev, next)
}

type stubChannels struct {
	ChannelRepository
	swapFunc   func(ctx context.Context, channelID, expected string, next *string) (bool, error)
	updateFunc func(ctx context.Context, channel *model.Channel) error
}

func (m *stubChannels) Update(ctx context.Context, channel *model.Channel) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, channel)
	}
	return m.ChannelRepository.Update(ctx, channel)
}

func (m *stubChannels) SwapLastMessage(ctx context.Context, channelID, expected string, next *string) (bool, error) {
	if m.swapFunc != nil {
		return m.swapFunc(ctx, channelID, expected, next)
	}
	return m.ChannelRepository.SwapLastMessage(ctx, channelID, expected, next)
}

type stubServers struct {
	ServerRepository
	updateFunc func(ctx context.Context, server *model.Server) error
}

func (m *stubServers) Update(ctx context.Context, server *model.Server) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, server)
	}
	return m.ServerRepository.Update(ctx, server)
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(ctx context.Context, event *events.Event) error {
	p.calls++
	return context.DeadlineExceeded
}
