package memory

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// UserRepository stores users
type UserRepository struct{ s *Store }

// Create stores a new user. The username is unique case-insensitively.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.s.write(ctx, func(t *tables) error {
		key := model.NormalizeUsername(user.Username)
		if _, ok := t.users[user.ID]; ok {
			return database.ErrDuplicate
		}
		if _, ok := t.usernames[key]; ok {
			return database.ErrDuplicate
		}
		t.users[user.ID] = copyOf(user)
		t.usernames[key] = user.ID
		return nil
	})
}

// GetByID returns a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var out *model.User
	r.s.read(ctx, func(t *tables) { out = copyOf(t.users[id]) })
	return out, nil
}

// GetByUsername returns a user by username, ignoring case
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var out *model.User
	r.s.read(ctx, func(t *tables) {
		if id, ok := t.usernames[model.NormalizeUsername(username)]; ok {
			out = copyOf(t.users[id])
		}
	})
	return out, nil
}

// Update replaces a user
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return r.s.write(ctx, func(t *tables) error {
		prev, ok := t.users[user.ID]
		if !ok {
			return database.ErrNotFound
		}
		oldKey := model.NormalizeUsername(prev.Username)
		newKey := model.NormalizeUsername(user.Username)
		if oldKey != newKey {
			if _, taken := t.usernames[newKey]; taken {
				return database.ErrDuplicate
			}
			delete(t.usernames, oldKey)
			t.usernames[newKey] = user.ID
		}
		t.users[user.ID] = copyOf(user)
		return nil
	})
}

// ServerRepository stores servers with their embedded roles
type ServerRepository struct{ s *Store }

// Create stores a new server
func (r *ServerRepository) Create(ctx context.Context, server *model.Server) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.servers[server.ID]; ok {
			return database.ErrDuplicate
		}
		t.servers[server.ID] = copyOf(server)
		return nil
	})
}

// GetByID returns a server by id
func (r *ServerRepository) GetByID(ctx context.Context, id string) (*model.Server, error) {
	var out *model.Server
	r.s.read(ctx, func(t *tables) { out = copyOf(t.servers[id]) })
	return out, nil
}

// Update replaces a server if its stored version still equals server.Version
// and bumps the version on success
func (r *ServerRepository) Update(ctx context.Context, server *model.Server) error {
	return r.s.write(ctx, func(t *tables) error {
		prev, ok := t.servers[server.ID]
		if !ok {
			return database.ErrNotFound
		}
		if prev.Version != server.Version {
			return database.ErrConflict
		}
		server.Version++
		t.servers[server.ID] = copyOf(server)
		return nil
	})
}

// Delete removes a server. Deleting a missing server is a no-op.
func (r *ServerRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(t *tables) error {
		delete(t.servers, id)
		return nil
	})
}

// MemberRepository stores memberships keyed by (server, user)
type MemberRepository struct{ s *Store }

// Create stores a membership
func (r *MemberRepository) Create(ctx context.Context, member *model.Member) error {
	return r.s.write(ctx, func(t *tables) error {
		key := pairKey{member.ServerID, member.UserID}
		if _, ok := t.members[key]; ok {
			return database.ErrDuplicate
		}
		t.members[key] = copyOf(member)
		return nil
	})
}

// Get returns a membership
func (r *MemberRepository) Get(ctx context.Context, serverID, userID string) (*model.Member, error) {
	var out *model.Member
	r.s.read(ctx, func(t *tables) { out = copyOf(t.members[pairKey{serverID, userID}]) })
	return out, nil
}

// Update replaces a membership if its stored version still equals
// member.Version and bumps the version on success
func (r *MemberRepository) Update(ctx context.Context, member *model.Member) error {
	return r.s.write(ctx, func(t *tables) error {
		key := pairKey{member.ServerID, member.UserID}
		prev, ok := t.members[key]
		if !ok {
			return database.ErrNotFound
		}
		if prev.Version != member.Version {
			return database.ErrConflict
		}
		member.Version++
		t.members[key] = copyOf(member)
		return nil
	})
}

// Delete removes a membership
func (r *MemberRepository) Delete(ctx context.Context, serverID, userID string) error {
	return r.s.write(ctx, func(t *tables) error {
		delete(t.members, pairKey{serverID, userID})
		return nil
	})
}

// ListByServer returns the server's members ordered by join time
func (r *MemberRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Member, error) {
	var out []*model.Member
	r.s.read(ctx, func(t *tables) {
		out = collect(t.members,
			func(m *model.Member) bool { return m.ServerID == serverID },
			func(a, b *model.Member) bool {
				if !a.JoinedAt.Equal(b.JoinedAt) {
					return a.JoinedAt.Before(b.JoinedAt)
				}
				return a.UserID < b.UserID
			})
	})
	return out, nil
}

// DeleteByServer removes every membership of a server
func (r *MemberRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for k, m := range t.members {
			if m.ServerID == serverID {
				delete(t.members, k)
			}
		}
		return nil
	})
}

// BanRepository stores bans keyed by (server, user)
type BanRepository struct{ s *Store }

// Create stores a ban
func (r *BanRepository) Create(ctx context.Context, ban *model.Ban) error {
	return r.s.write(ctx, func(t *tables) error {
		key := pairKey{ban.ServerID, ban.UserID}
		if _, ok := t.bans[key]; ok {
			return database.ErrDuplicate
		}
		t.bans[key] = copyOf(ban)
		return nil
	})
}

// Get returns a ban
func (r *BanRepository) Get(ctx context.Context, serverID, userID string) (*model.Ban, error) {
	var out *model.Ban
	r.s.read(ctx, func(t *tables) { out = copyOf(t.bans[pairKey{serverID, userID}]) })
	return out, nil
}

// Delete removes a ban
func (r *BanRepository) Delete(ctx context.Context, serverID, userID string) error {
	return r.s.write(ctx, func(t *tables) error {
		delete(t.bans, pairKey{serverID, userID})
		return nil
	})
}

// ListByServer returns the server's bans
func (r *BanRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Ban, error) {
	var out []*model.Ban
	r.s.read(ctx, func(t *tables) {
		out = collect(t.bans,
			func(b *model.Ban) bool { return b.ServerID == serverID },
			func(a, b *model.Ban) bool { return a.UserID < b.UserID })
	})
	return out, nil
}

// DeleteByServer removes every ban of a server
func (r *BanRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for k, b := range t.bans {
			if b.ServerID == serverID {
				delete(t.bans, k)
			}
		}
		return nil
	})
}
