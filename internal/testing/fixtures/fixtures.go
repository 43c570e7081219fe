// Package fixtures provides test data factories for store integration tests.
//
// Each factory method creates an entity with sensible defaults while allowing
// customization via option functions. Rows are written straight through the
// store's repositories, bypassing authorization.
//
// Usage:
//
//	f := fixtures.New(repository.NewStore(tdb.DB))
//	owner := f.CreateUser(t)
//	server := f.CreateServer(t, owner)
//	channel := f.CreateChannel(t, server)
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/forgo/chatcore/internal/model"
	"github.com/forgo/chatcore/internal/service"
)

// Factory creates test entities in a store
type Factory struct {
	store service.Store
}

// New creates a new fixture factory
func New(store service.Store) *Factory {
	return &Factory{store: store}
}

// randomID generates a random hex suffix
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// Users
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Username string
	Bot      bool
}

// CreateUser creates an onboarded user
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	o := &UserOpts{Username: fmt.Sprintf("user_%s", randomID())}
	for _, fn := range opts {
		fn(o)
	}

	user := &model.User{
		ID:        model.NewID(),
		Username:  o.Username,
		Bot:       o.Bot,
		Status:    model.UserStatusOnline,
		CreatedOn: time.Now().UTC(),
	}
	if err := f.store.Users.Create(ctx(t), user); err != nil {
		t.Fatalf("fixtures: create user: %v", err)
	}
	return user
}

// ============================================================================
// Servers
// ============================================================================

// ServerOpts customizes server creation
type ServerOpts struct {
	Name               string
	DefaultPermissions model.Permission
	Roles              []model.Role
}

// CreateServer creates a server owned by owner, with the owner as its first member
func (f *Factory) CreateServer(t *testing.T, owner *model.User, opts ...func(*ServerOpts)) *model.Server {
	t.Helper()

	o := &ServerOpts{
		Name:               fmt.Sprintf("server_%s", randomID()),
		DefaultPermissions: model.PermDefaultServer,
	}
	for _, fn := range opts {
		fn(o)
	}

	now := time.Now().UTC()
	server := &model.Server{
		ID:                 model.NewID(),
		OwnerID:            owner.ID,
		Name:               o.Name,
		Roles:              make(map[string]model.Role, len(o.Roles)),
		DefaultPermissions: o.DefaultPermissions,
		CreatedOn:          now,
		UpdatedOn:          now,
	}
	for _, r := range o.Roles {
		if r.ID == "" {
			r.ID = model.NewID()
		}
		server.Roles[r.ID] = r
	}
	if err := f.store.Servers.Create(ctx(t), server); err != nil {
		t.Fatalf("fixtures: create server: %v", err)
	}
	f.AddMember(t, server, owner)
	return server
}

// AddMember makes user a member of server with the given roles
func (f *Factory) AddMember(t *testing.T, server *model.Server, user *model.User, roles ...string) *model.Member {
	t.Helper()

	member := &model.Member{
		ServerID: server.ID,
		UserID:   user.ID,
		Roles:    roles,
		JoinedAt: time.Now().UTC(),
	}
	if err := f.store.Members.Create(ctx(t), member); err != nil {
		t.Fatalf("fixtures: create member: %v", err)
	}
	return member
}

// ============================================================================
// Channels and Messages
// ============================================================================

// ChannelOpts customizes channel creation
type ChannelOpts struct {
	Name       string
	Kind       model.ChannelKind
	Overwrites []model.Overwrite
}

// CreateChannel creates a text channel in server
func (f *Factory) CreateChannel(t *testing.T, server *model.Server, opts ...func(*ChannelOpts)) *model.Channel {
	t.Helper()

	o := &ChannelOpts{
		Name: fmt.Sprintf("channel_%s", randomID()[:8]),
		Kind: model.ChannelKindText,
	}
	for _, fn := range opts {
		fn(o)
	}

	channel := &model.Channel{
		ID:         model.NewID(),
		ServerID:   server.ID,
		Kind:       o.Kind,
		Name:       o.Name,
		Overwrites: o.Overwrites,
		CreatedOn:  time.Now().UTC(),
	}
	if err := f.store.Channels.Create(ctx(t), channel); err != nil {
		t.Fatalf("fixtures: create channel: %v", err)
	}
	return channel
}

// CreateMessage stores a message in channel and advances its pointer
func (f *Factory) CreateMessage(t *testing.T, channel *model.Channel, author *model.User, mentions ...string) *model.Message {
	t.Helper()

	message := &model.Message{
		ID:        model.NewID(),
		ChannelID: channel.ID,
		AuthorID:  author.ID,
		Content:   fmt.Sprintf("message %s", randomID()),
		Mentions:  mentions,
		CreatedOn: time.Now().UTC(),
	}
	c := ctx(t)
	if err := f.store.Messages.Create(c, message); err != nil {
		t.Fatalf("fixtures: create message: %v", err)
	}
	if err := f.store.Channels.AdvanceLastMessage(c, channel.ID, message.ID); err != nil {
		t.Fatalf("fixtures: advance last message: %v", err)
	}
	return message
}
