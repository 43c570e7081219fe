package repository

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// MemberRepository handles membership data access. Records are keyed by
// [server_id, user_id].
type MemberRepository struct {
	members table[model.Member]
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db database.Database) *MemberRepository {
	return &MemberRepository{members: newTable[model.Member](db, "member")}
}

// Create creates a membership of an existing server. An existing membership
// surfaces as database.ErrDuplicate, a missing server as database.ErrNotFound.
func (r *MemberRepository) Create(ctx context.Context, member *model.Member) error {
	return r.members.createUnder(ctx, "server", member.ServerID, []string{member.ServerID, member.UserID}, member)
}

// Get retrieves a membership
func (r *MemberRepository) Get(ctx context.Context, serverID, userID string) (*model.Member, error) {
	return r.members.get(ctx, []string{serverID, userID})
}

// Update replaces a membership if its stored version still equals
// member.Version and bumps the version
func (r *MemberRepository) Update(ctx context.Context, member *model.Member) error {
	version := member.Version
	member.Version++
	if err := r.members.replaceVersioned(ctx, []string{member.ServerID, member.UserID}, member, version); err != nil {
		member.Version = version
		return err
	}
	return nil
}

// Delete removes a membership
func (r *MemberRepository) Delete(ctx context.Context, serverID, userID string) error {
	return r.members.delete(ctx, []string{serverID, userID})
}

// ListByServer lists a server's members by join time
func (r *MemberRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Member, error) {
	return r.members.list(ctx, "server_id = $server_id", "joined_at ASC, user_id ASC",
		map[string]interface{}{"server_id": serverID})
}

// DeleteByServer removes every membership of a server
func (r *MemberRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.members.deleteWhere(ctx, "server_id = $server_id", map[string]interface{}{"server_id": serverID})
}

// BanRepository handles ban data access. Records are keyed by [server_id, user_id].
type BanRepository struct {
	bans table[model.Ban]
}

// NewBanRepository creates a new ban repository
func NewBanRepository(db database.Database) *BanRepository {
	return &BanRepository{bans: newTable[model.Ban](db, "ban")}
}

// Create creates a ban. An existing one surfaces as database.ErrDuplicate.
func (r *BanRepository) Create(ctx context.Context, ban *model.Ban) error {
	return r.bans.create(ctx, []string{ban.ServerID, ban.UserID}, ban)
}

// Get retrieves a ban
func (r *BanRepository) Get(ctx context.Context, serverID, userID string) (*model.Ban, error) {
	return r.bans.get(ctx, []string{serverID, userID})
}

// Delete removes a ban
func (r *BanRepository) Delete(ctx context.Context, serverID, userID string) error {
	return r.bans.delete(ctx, []string{serverID, userID})
}

// ListByServer lists a server's bans
func (r *BanRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Ban, error) {
	return r.bans.list(ctx, "server_id = $server_id", "user_id ASC",
		map[string]interface{}{"server_id": serverID})
}

// DeleteByServer removes every ban of a server
func (r *BanRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.bans.deleteWhere(ctx, "server_id = $server_id", map[string]interface{}{"server_id": serverID})
}
