package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
	"github.com/forgo/chatcore/internal/permission"
)

// MembershipService creates and removes members and bans
type MembershipService struct {
	store     Store
	auth      authorizer
	publisher events.Publisher
}

// NewMembershipService creates a new membership service
func NewMembershipService(store Store, publisher events.Publisher) *MembershipService {
	return &MembershipService{
		store:     store,
		auth:      authorizer{store: store},
		publisher: publisher,
	}
}

// Join makes userID a member of the server with no roles
func (s *MembershipService) Join(ctx context.Context, serverID, userID string) (*model.Member, error) {
	server, err := s.auth.server(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if _, err := s.auth.user(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.checkNotBanned(ctx, serverID, userID); err != nil {
		return nil, err
	}

	member := &model.Member{
		ServerID: server.ID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	err = s.store.createUnder(ctx, s.store.serverExists(serverID), ErrServerNotFound,
		func(ctx context.Context) error { return s.store.Members.Create(ctx, member) },
		func(ctx context.Context) error { return s.store.Members.Delete(ctx, serverID, userID) })
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyMember
		}
		return nil, storeErr("create member", err)
	}

	// A ban created between the check and the insert must still win
	if err := s.checkNotBanned(ctx, serverID, userID); err != nil {
		if delErr := s.store.Members.Delete(ctx, serverID, userID); delErr != nil {
			slog.Error("failed to remove member of banned user",
				slog.String("server_id", serverID),
				slog.String("user_id", userID),
				slog.String("error", delErr.Error()))
		}
		return nil, err
	}

	publish(ctx, s.publisher, events.New(events.MemberJoined, events.ScopeServer, serverID, member))
	return member, nil
}

// Leave removes the actor from the server
func (s *MembershipService) Leave(ctx context.Context, serverID, userID string) error {
	server, err := s.auth.server(ctx, serverID)
	if err != nil {
		return err
	}
	if server.IsOwner(userID) {
		return ErrOwnerCannotLeave
	}
	if _, err := s.auth.requireMember(ctx, serverID, userID); err != nil {
		return err
	}

	if err := s.removeMember(ctx, serverID, userID); err != nil {
		return err
	}
	publish(ctx, s.publisher, events.New(events.MemberLeft, events.ScopeServer, serverID,
		map[string]string{"user_id": userID}))
	return nil
}

// Kick removes another member from the server
func (s *MembershipService) Kick(ctx context.Context, actorID, serverID, userID string) error {
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return err
	}
	if err := scope.require(model.PermKickMembers); err != nil {
		return err
	}
	if scope.Server.IsOwner(userID) {
		return ErrOwnerCannotLeave
	}
	if actorID == userID {
		return ErrCannotTargetSelf
	}
	target, err := s.auth.requireMember(ctx, serverID, userID)
	if err != nil {
		return err
	}
	if err := scope.canModerate(userID, target); err != nil {
		return err
	}

	if err := s.removeMember(ctx, serverID, userID); err != nil {
		return err
	}
	publish(ctx, s.publisher, events.New(events.MemberLeft, events.ScopeServer, serverID,
		map[string]string{"user_id": userID, "kicked_by": actorID}))
	return nil
}

// Ban removes the user's membership, if any, and bans them from the server
func (s *MembershipService) Ban(ctx context.Context, actorID, serverID, userID string, req *model.BanRequest) (*model.Ban, error) {
	if req == nil {
		req = &model.BanRequest{}
	}
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}

	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	if err := scope.require(model.PermBanMembers); err != nil {
		return nil, err
	}
	if scope.Server.IsOwner(userID) {
		return nil, ErrOwnerCannotLeave
	}
	if actorID == userID {
		return nil, ErrCannotTargetSelf
	}
	if _, err := s.auth.user(ctx, userID); err != nil {
		return nil, err
	}
	target, err := s.auth.member(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	if err := scope.canModerate(userID, target); err != nil {
		return nil, err
	}
	existing, err := s.store.Bans.Get(ctx, serverID, userID)
	if err != nil {
		return nil, storeErr("get ban", err)
	}
	if existing != nil {
		return nil, ErrAlreadyBanned
	}

	channelIDs, err := s.serverChannelIDs(ctx, serverID)
	if err != nil {
		return nil, err
	}

	ban := &model.Ban{
		ServerID:  serverID,
		UserID:    userID,
		Reason:    req.Reason,
		CreatedOn: time.Now().UTC(),
	}
	err = s.store.atomically(ctx, func(ctx context.Context) error {
		if target != nil {
			if err := s.store.Members.Delete(ctx, serverID, userID); err != nil {
				return err
			}
			if err := s.store.Unreads.DeleteForUser(ctx, userID, channelIDs); err != nil {
				return err
			}
		}
		return s.store.Bans.Create(ctx, ban)
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyBanned
		}
		return nil, storeErr("ban member", err)
	}

	slog.Info("user banned",
		slog.String("server_id", serverID),
		slog.String("user_id", userID),
		slog.String("actor_id", actorID))
	publish(ctx, s.publisher, events.New(events.MemberBanned, events.ScopeServer, serverID, ban))
	return ban, nil
}

// Unban lifts a ban
func (s *MembershipService) Unban(ctx context.Context, actorID, serverID, userID string) error {
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return err
	}
	if err := scope.require(model.PermBanMembers); err != nil {
		return err
	}
	ban, err := s.store.Bans.Get(ctx, serverID, userID)
	if err != nil {
		return storeErr("get ban", err)
	}
	if ban == nil {
		return ErrBanNotFound
	}
	if err := s.store.Bans.Delete(ctx, serverID, userID); err != nil {
		return storeErr("delete ban", err)
	}
	publish(ctx, s.publisher, events.New(events.MemberUnbanned, events.ScopeServer, serverID,
		map[string]string{"user_id": userID}))
	return nil
}

// Bans lists the bans of a server
func (s *MembershipService) Bans(ctx context.Context, actorID, serverID string) ([]*model.Ban, error) {
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	if err := scope.require(model.PermBanMembers); err != nil {
		return nil, err
	}
	bans, err := s.store.Bans.ListByServer(ctx, serverID)
	if err != nil {
		return nil, storeErr("list bans", err)
	}
	return bans, nil
}

// AssignRole gives a member a role. Assigning a held role is a no-op.
func (s *MembershipService) AssignRole(ctx context.Context, actorID, serverID, userID, roleID string) (*model.Member, error) {
	return s.changeRole(ctx, actorID, serverID, userID, roleID, true)
}

// RevokeRole takes a role from a member. Revoking a role not held is a no-op.
func (s *MembershipService) RevokeRole(ctx context.Context, actorID, serverID, userID, roleID string) (*model.Member, error) {
	return s.changeRole(ctx, actorID, serverID, userID, roleID, false)
}

func (s *MembershipService) changeRole(ctx context.Context, actorID, serverID, userID, roleID string, assign bool) (*model.Member, error) {
	var target *model.Member
	changed := false
	err := retryOnConflict(ctx, "update member", func() error {
		changed = false
		scope, err := s.auth.forServer(ctx, serverID, actorID)
		if err != nil {
			return err
		}
		if err := scope.require(model.PermAssignRoles); err != nil {
			return err
		}
		role, ok := scope.Server.Role(roleID)
		if !ok {
			return ErrRoleNotFound
		}
		if !permission.CanManageRole(scope.Server, actorID, scope.Actor, role.Rank) {
			return ErrRoleAboveActor
		}
		target, err = s.auth.requireMember(ctx, serverID, userID)
		if err != nil {
			return err
		}
		if userID != actorID && !scope.isOwner() {
			if !permission.Outranks(scope.Server, actorID, scope.Actor, target) {
				return ErrOutrankedTarget
			}
		}

		if target.HasRole(roleID) == assign {
			return nil
		}
		if assign {
			target.Roles = append(target.Roles, roleID)
		} else {
			kept := target.Roles[:0]
			for _, id := range target.Roles {
				if id != roleID {
					kept = append(kept, id)
				}
			}
			target.Roles = kept
		}
		changed = true
		return s.store.Members.Update(ctx, target)
	})
	if err != nil {
		return nil, writeErr("update member", err, ErrMemberNotFound)
	}
	if changed {
		publish(ctx, s.publisher, events.New(events.MemberUpdated, events.ScopeServer, serverID, target))
	}
	return target, nil
}

// EditNickname changes a member's nickname. Changing one's own needs
// ChangeNickname; changing another's needs ManageNicknames and rank.
func (s *MembershipService) EditNickname(ctx context.Context, actorID, serverID, userID string, req *model.UpdateNicknameRequest) (*model.Member, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}

	var target *model.Member
	err := retryOnConflict(ctx, "update member", func() error {
		scope, err := s.auth.forServer(ctx, serverID, actorID)
		if err != nil {
			return err
		}
		target, err = s.auth.requireMember(ctx, serverID, userID)
		if err != nil {
			return err
		}

		if userID == actorID {
			if err := scope.require(model.PermChangeNickname); err != nil {
				return err
			}
		} else {
			if err := scope.require(model.PermManageNicknames); err != nil {
				return err
			}
			if err := scope.canModerate(userID, target); err != nil {
				return err
			}
		}

		target.Nickname = req.Nickname
		return s.store.Members.Update(ctx, target)
	})
	if err != nil {
		return nil, writeErr("update member", err, ErrMemberNotFound)
	}
	publish(ctx, s.publisher, events.New(events.MemberUpdated, events.ScopeServer, serverID, target))
	return target, nil
}

// Members lists the members of a server the actor belongs to
func (s *MembershipService) Members(ctx context.Context, actorID, serverID string) ([]*model.Member, error) {
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	if scope.Actor == nil && !scope.isOwner() {
		return nil, ErrMemberNotFound
	}
	members, err := s.store.Members.ListByServer(ctx, serverID)
	if err != nil {
		return nil, storeErr("list members", err)
	}
	return members, nil
}

func (s *MembershipService) checkNotBanned(ctx context.Context, serverID, userID string) error {
	ban, err := s.store.Bans.Get(ctx, serverID, userID)
	if err != nil {
		return storeErr("get ban", err)
	}
	if ban != nil {
		return ErrUserBanned
	}
	return nil
}

// removeMember deletes the member together with their read state in the
// server's channels
func (s *MembershipService) removeMember(ctx context.Context, serverID, userID string) error {
	channelIDs, err := s.serverChannelIDs(ctx, serverID)
	if err != nil {
		return err
	}
	err = s.store.atomically(ctx, func(ctx context.Context) error {
		if err := s.store.Members.Delete(ctx, serverID, userID); err != nil {
			return err
		}
		return s.store.Unreads.DeleteForUser(ctx, userID, channelIDs)
	})
	return storeErr("remove member", err)
}

func (s *MembershipService) serverChannelIDs(ctx context.Context, serverID string) ([]string, error) {
	channels, err := s.store.Channels.ListByServer(ctx, serverID)
	if err != nil {
		return nil, storeErr("list channels", err)
	}
	ids := make([]string, 0, len(channels))
	for _, c := range channels {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
