package service

import (
	"context"
	"time"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
	"github.com/forgo/chatcore/internal/permission"
)

// defaultChannelName names the text channel every new server starts with
const defaultChannelName = "general"

// ServerService creates, edits and deletes servers and their roles
type ServerService struct {
	store     Store
	auth      authorizer
	publisher events.Publisher
}

// NewServerService creates a new server service
func NewServerService(store Store, publisher events.Publisher) *ServerService {
	return &ServerService{
		store:     store,
		auth:      authorizer{store: store},
		publisher: publisher,
	}
}

// CreateServer creates a server owned by the actor, the owner's membership
// and a default text channel
func (s *ServerService) CreateServer(ctx context.Context, actorID string, req *model.CreateServerRequest) (*model.Server, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	if _, err := s.auth.user(ctx, actorID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	server := &model.Server{
		ID:                 model.NewID(),
		OwnerID:            actorID,
		Name:               req.Name,
		Description:        req.Description,
		Roles:              map[string]model.Role{},
		DefaultPermissions: model.PermDefaultServer,
		CreatedOn:          now,
		UpdatedOn:          now,
	}
	owner := &model.Member{ServerID: server.ID, UserID: actorID, JoinedAt: now}
	general := &model.Channel{
		ID:        model.NewID(),
		ServerID:  server.ID,
		Kind:      model.ChannelKindText,
		Name:      defaultChannelName,
		CreatedOn: now,
	}

	err := s.store.atomically(ctx, func(ctx context.Context) error {
		if err := s.store.Servers.Create(ctx, server); err != nil {
			return err
		}
		if err := s.store.Members.Create(ctx, owner); err != nil {
			return err
		}
		return s.store.Channels.Create(ctx, general)
	})
	if err != nil {
		return nil, storeErr("create server", err)
	}

	publish(ctx, s.publisher, events.New(events.ServerCreated, events.ScopeUser, actorID, server))
	return server, nil
}

// GetServer returns a server the actor belongs to
func (s *ServerService) GetServer(ctx context.Context, actorID, serverID string) (*model.Server, error) {
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	if scope.Actor == nil && !scope.isOwner() {
		return nil, ErrServerNotFound
	}
	return scope.Server, nil
}

// Permissions returns the actor's server-level permissions
func (s *ServerService) Permissions(ctx context.Context, actorID, serverID string) (model.Permission, error) {
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return model.PermNone, err
	}
	return scope.Perms, nil
}

// EditServer changes a server's name, description or default permissions
func (s *ServerService) EditServer(ctx context.Context, actorID, serverID string, req *model.UpdateServerRequest) (*model.Server, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}

	var server *model.Server
	err := retryOnConflict(ctx, "update server", func() error {
		scope, err := s.auth.forServer(ctx, serverID, actorID)
		if err != nil {
			return err
		}
		if err := scope.require(model.PermManageServer); err != nil {
			return err
		}

		server = scope.Server
		if req.Name != nil {
			server.Name = *req.Name
		}
		if req.Description != nil {
			server.Description = *req.Description
		}
		if req.DefaultPermissions != nil {
			if err := scope.require(model.PermManagePermissions); err != nil {
				return err
			}
			changed := *req.DefaultPermissions ^ server.DefaultPermissions
			if err := checkGrant(scope.isOwner(), scope.Perms, model.Overrides{Allow: changed}); err != nil {
				return err
			}
			server.DefaultPermissions = *req.DefaultPermissions
		}
		server.UpdatedOn = time.Now().UTC()
		return s.store.Servers.Update(ctx, server)
	})
	if err != nil {
		return nil, writeErr("update server", err, ErrServerNotFound)
	}
	publish(ctx, s.publisher, events.New(events.ServerUpdated, events.ScopeServer, serverID, server))
	return server, nil
}

// DeleteServer deletes a server and everything that belongs to it. Only
// the owner may do this.
func (s *ServerService) DeleteServer(ctx context.Context, actorID, serverID string) error {
	server, err := s.auth.server(ctx, serverID)
	if err != nil {
		return err
	}
	if !server.IsOwner(actorID) {
		return ErrNotOwner
	}
	return s.purge(ctx, server)
}

// Purge deletes a server without an authorization check, for operators
func (s *ServerService) Purge(ctx context.Context, serverID string) error {
	server, err := s.auth.server(ctx, serverID)
	if err != nil {
		return err
	}
	return s.purge(ctx, server)
}

func (s *ServerService) purge(ctx context.Context, server *model.Server) error {
	channels, err := s.store.Channels.ListByServer(ctx, server.ID)
	if err != nil {
		return storeErr("list channels", err)
	}
	if err := serverCascade(s.store, server, channels).run(ctx, s.store); err != nil {
		return err
	}
	publish(ctx, s.publisher, events.New(events.ServerDeleted, events.ScopeServer, server.ID, nil))
	return nil
}

// TransferOwnership hands the server to another member
func (s *ServerService) TransferOwnership(ctx context.Context, actorID, serverID, newOwnerID string) (*model.Server, error) {
	if newOwnerID == actorID {
		return nil, ErrCannotTargetSelf
	}

	var server *model.Server
	err := retryOnConflict(ctx, "transfer ownership", func() error {
		var err error
		server, err = s.auth.server(ctx, serverID)
		if err != nil {
			return err
		}
		if !server.IsOwner(actorID) {
			return ErrNotOwner
		}
		if _, err := s.auth.requireMember(ctx, serverID, newOwnerID); err != nil {
			return err
		}
		server.OwnerID = newOwnerID
		server.UpdatedOn = time.Now().UTC()
		return s.store.Servers.Update(ctx, server)
	})
	if err != nil {
		return nil, writeErr("update server", err, ErrServerNotFound)
	}
	publish(ctx, s.publisher, events.New(events.OwnershipTransfer, events.ScopeServer, serverID,
		map[string]string{"from": actorID, "to": newOwnerID}))
	return server, nil
}

// CreateRole adds a role to a server. Non-owners may only create roles ranked
// below their own and may not grant bits they lack.
func (s *ServerService) CreateRole(ctx context.Context, actorID, serverID string, req *model.CreateRoleRequest) (*model.Role, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}

	role := model.Role{
		ID:          model.NewID(),
		Name:        req.Name,
		Rank:        req.Rank,
		Permissions: req.Permissions,
		Colour:      req.Colour,
		Hoist:       req.Hoist,
	}
	err := retryOnConflict(ctx, "create role", func() error {
		scope, err := s.auth.forServer(ctx, serverID, actorID)
		if err != nil {
			return err
		}
		if err := scope.require(model.PermManageRole); err != nil {
			return err
		}
		if !permission.CanManageRole(scope.Server, actorID, scope.Actor, req.Rank) {
			return ErrRoleAboveActor
		}
		if err := checkGrant(scope.isOwner(), scope.Perms, req.Permissions); err != nil {
			return err
		}

		server := scope.Server
		if server.Roles == nil {
			server.Roles = map[string]model.Role{}
		}
		server.Roles[role.ID] = role
		server.UpdatedOn = time.Now().UTC()
		return s.store.Servers.Update(ctx, server)
	})
	if err != nil {
		return nil, writeErr("update server", err, ErrServerNotFound)
	}
	publish(ctx, s.publisher, events.New(events.RoleCreated, events.ScopeServer, serverID, role))
	return &role, nil
}

// EditRole changes a role. Both its current and new rank must be below the
// actor's own.
func (s *ServerService) EditRole(ctx context.Context, actorID, serverID, roleID string, req *model.UpdateRoleRequest) (*model.Role, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}

	var role model.Role
	err := retryOnConflict(ctx, "edit role", func() error {
		scope, err := s.auth.forServer(ctx, serverID, actorID)
		if err != nil {
			return err
		}
		if err := scope.require(model.PermManageRole); err != nil {
			return err
		}
		var ok bool
		role, ok = scope.Server.Role(roleID)
		if !ok {
			return ErrRoleNotFound
		}
		if !permission.CanManageRole(scope.Server, actorID, scope.Actor, role.Rank) {
			return ErrRoleAboveActor
		}

		if req.Name != nil {
			role.Name = *req.Name
		}
		if req.Rank != nil {
			if !permission.CanManageRole(scope.Server, actorID, scope.Actor, *req.Rank) {
				return ErrRoleAboveActor
			}
			role.Rank = *req.Rank
		}
		if req.Permissions != nil {
			changed := model.Overrides{
				Allow: req.Permissions.Allow ^ role.Permissions.Allow,
				Deny:  req.Permissions.Deny ^ role.Permissions.Deny,
			}
			if err := checkGrant(scope.isOwner(), scope.Perms, changed); err != nil {
				return err
			}
			role.Permissions = *req.Permissions
		}
		if req.Colour != nil {
			role.Colour = *req.Colour
		}
		if req.Hoist != nil {
			role.Hoist = *req.Hoist
		}

		server := scope.Server
		server.Roles[roleID] = role
		server.UpdatedOn = time.Now().UTC()
		return s.store.Servers.Update(ctx, server)
	})
	if err != nil {
		return nil, writeErr("update server", err, ErrServerNotFound)
	}
	publish(ctx, s.publisher, events.New(events.RoleUpdated, events.ScopeServer, serverID, role))
	return &role, nil
}

// DeleteRole removes a role and every reference to it from channel
// overwrites and member assignments. The whole removal is retried if any of
// the records changed underneath it.
func (s *ServerService) DeleteRole(ctx context.Context, actorID, serverID, roleID string) error {
	err := retryOnConflict(ctx, "delete role", func() error {
		scope, err := s.auth.forServer(ctx, serverID, actorID)
		if err != nil {
			return err
		}
		if err := scope.require(model.PermManageRole); err != nil {
			return err
		}
		role, ok := scope.Server.Role(roleID)
		if !ok {
			return ErrRoleNotFound
		}
		if !permission.CanManageRole(scope.Server, actorID, scope.Actor, role.Rank) {
			return ErrRoleAboveActor
		}

		channels, err := s.store.Channels.ListByServer(ctx, serverID)
		if err != nil {
			return storeErr("list channels", err)
		}
		members, err := s.store.Members.ListByServer(ctx, serverID)
		if err != nil {
			return storeErr("list members", err)
		}

		server := scope.Server
		delete(server.Roles, roleID)
		server.UpdatedOn = time.Now().UTC()

		return s.store.atomically(ctx, func(ctx context.Context) error {
			for _, c := range channels {
				if c.RemoveOverwrite(model.SubjectRole, roleID) {
					if err := s.store.Channels.Update(ctx, c); err != nil {
						return err
					}
				}
			}
			for _, m := range members {
				if !m.HasRole(roleID) {
					continue
				}
				kept := make([]string, 0, len(m.Roles)-1)
				for _, id := range m.Roles {
					if id != roleID {
						kept = append(kept, id)
					}
				}
				m.Roles = kept
				if err := s.store.Members.Update(ctx, m); err != nil {
					return err
				}
			}
			return s.store.Servers.Update(ctx, server)
		})
	})
	if err != nil {
		return writeErr("delete role", err, ErrServerNotFound)
	}

	publish(ctx, s.publisher, events.New(events.RoleDeleted, events.ScopeServer, serverID,
		map[string]string{"role_id": roleID}))
	return nil
}
