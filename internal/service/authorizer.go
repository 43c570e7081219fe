package service

import (
	"context"

	"github.com/forgo/chatcore/internal/model"
	"github.com/forgo/chatcore/internal/permission"
)

// authorizer loads the snapshots the permission resolver needs
type authorizer struct {
	store Store
}

// serverScope is an actor's view of one server
type serverScope struct {
	Server *model.Server
	// Actor is nil when the actor is not a member
	Actor   *model.Member
	ActorID string
	Perms   model.Permission
}

// channelScope is an actor's view of one channel. Server is nil for private channels.
type channelScope struct {
	Channel *model.Channel
	Server  *model.Server
	Actor   *model.Member
	ActorID string
	Perms   model.Permission
}

func (a authorizer) server(ctx context.Context, id string) (*model.Server, error) {
	server, err := a.store.Servers.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get server", err)
	}
	if server == nil {
		return nil, ErrServerNotFound
	}
	return server, nil
}

func (a authorizer) channel(ctx context.Context, id string) (*model.Channel, error) {
	channel, err := a.store.Channels.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get channel", err)
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	return channel, nil
}

func (a authorizer) user(ctx context.Context, id string) (*model.User, error) {
	user, err := a.store.Users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (a authorizer) member(ctx context.Context, serverID, userID string) (*model.Member, error) {
	member, err := a.store.Members.Get(ctx, serverID, userID)
	if err != nil {
		return nil, storeErr("get member", err)
	}
	return member, nil
}

// requireMember returns the member or ErrMemberNotFound
func (a authorizer) requireMember(ctx context.Context, serverID, userID string) (*model.Member, error) {
	member, err := a.member(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

func (a authorizer) forServer(ctx context.Context, serverID, actorID string) (*serverScope, error) {
	server, err := a.server(ctx, serverID)
	if err != nil {
		return nil, err
	}
	actor, err := a.member(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	return &serverScope{
		Server:  server,
		Actor:   actor,
		ActorID: actorID,
		Perms:   permission.ForServer(server, actorID, actor),
	}, nil
}

func (a authorizer) forChannel(ctx context.Context, channelID, actorID string) (*channelScope, error) {
	channel, err := a.channel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return a.forLoadedChannel(ctx, channel, actorID)
}

func (a authorizer) forLoadedChannel(ctx context.Context, channel *model.Channel, actorID string) (*channelScope, error) {
	scope := &channelScope{Channel: channel, ActorID: actorID}
	if channel.Kind.IsServerScoped() {
		server, err := a.server(ctx, channel.ServerID)
		if err != nil {
			return nil, err
		}
		actor, err := a.member(ctx, channel.ServerID, actorID)
		if err != nil {
			return nil, err
		}
		scope.Server = server
		scope.Actor = actor
	}
	scope.Perms = permission.ForChannel(channel, scope.Server, actorID, scope.Actor)
	return scope, nil
}

func (s *serverScope) require(perm model.Permission) error {
	if !s.Perms.Has(perm) {
		return missing(perm)
	}
	return nil
}

func (s *channelScope) require(perm model.Permission) error {
	if !s.Perms.Has(perm) {
		return missing(perm)
	}
	return nil
}

// isOwner reports whether the actor owns the server
func (s *serverScope) isOwner() bool {
	return s.Server.IsOwner(s.ActorID)
}

// canModerate checks that the actor outranks target. A target that is not a
// member can always be moderated unless it is the owner.
func (s *serverScope) canModerate(targetID string, target *model.Member) error {
	if s.Server.IsOwner(targetID) {
		return ErrOutrankedTarget
	}
	if target == nil {
		return nil
	}
	if !permission.Outranks(s.Server, s.ActorID, s.Actor, target) {
		return ErrOutrankedTarget
	}
	return nil
}

// checkGrant rejects bits a non-owner does not hold itself
func checkGrant(isOwner bool, held model.Permission, o model.Overrides) error {
	if isOwner {
		return nil
	}
	if o.Bits()&^held != 0 {
		return ErrCannotGrantUnheld
	}
	return nil
}
