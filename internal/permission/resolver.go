// Package permission computes effective permission bitsets.
//
// Every function here is a pure fold over model snapshots. Missing or stale
// references (a deleted role still assigned to a member, an overwrite for a
// role that no longer exists) contribute nothing; resolution never fails.
//
// Server level:
//
//	owner            -> PermAll
//	otherwise        -> default, then each held role from lowest to highest precedence
//
// Channel level adds role overwrites in the same order and then the actor's
// user overwrite, which always has the final say.
package permission

import "github.com/forgo/chatcore/internal/model"

// groupOwnerBits are granted on top of the private base to the owner of a group
const groupOwnerBits = model.PermManageChannel | model.PermManagePermissions |
	model.PermInviteOthers | model.PermManageWebhooks

// Query is a snapshot of everything needed to resolve one actor's permissions.
// Server is required for server scoped channels. Member is the actor's
// membership of Server (nil if none). Target, when set, is the member the
// actor wants to act upon.
type Query struct {
	ActorID string
	Server  *model.Server
	Channel *model.Channel
	Member  *model.Member
	Target  *model.Member
}

// Resolve returns the effective permissions described by q
func Resolve(q Query) model.Permission {
	var perms model.Permission
	if q.Channel != nil {
		perms = ForChannel(q.Channel, q.Server, q.ActorID, q.Member)
	} else {
		perms = ForServer(q.Server, q.ActorID, q.Member)
	}
	if q.Target != nil {
		perms = AgainstTarget(perms, q.Server, q.ActorID, q.Member, q.Target)
	}
	return perms
}

// ForServer returns the actor's server level permissions
func ForServer(server *model.Server, actorID string, member *model.Member) model.Permission {
	if server == nil {
		return model.PermNone
	}
	if server.IsOwner(actorID) {
		return model.PermAll
	}
	if !isMember(server, actorID, member) {
		return model.PermNone
	}

	perms := server.DefaultPermissions
	for _, role := range server.RolesOf(member.Roles) {
		perms = role.Permissions.Apply(perms)
	}
	return perms
}

// ForChannel returns the actor's permissions inside a channel.
// For server scoped channels server must be the owning server.
func ForChannel(channel *model.Channel, server *model.Server, actorID string, member *model.Member) model.Permission {
	if channel == nil {
		return model.PermNone
	}
	if !channel.Kind.IsServerScoped() {
		return forPrivateChannel(channel, actorID)
	}

	if server == nil || server.ID != channel.ServerID {
		return model.PermNone
	}
	if server.IsOwner(actorID) {
		return model.PermAll
	}
	// overwrites never grant access to non-members
	if !isMember(server, actorID, member) {
		return model.PermNone
	}

	perms := ForServer(server, actorID, member)
	for _, role := range server.RolesOf(member.Roles) {
		if ow, ok := channel.Overwrite(model.SubjectRole, role.ID); ok {
			perms = ow.Apply(perms)
		}
	}
	if ow, ok := channel.Overwrite(model.SubjectUser, actorID); ok {
		perms = ow.Apply(perms)
	}
	return perms
}

func forPrivateChannel(channel *model.Channel, actorID string) model.Permission {
	var perms model.Permission
	switch channel.Kind {
	case model.ChannelKindSavedNotes:
		if channel.OwnerID == actorID {
			perms = model.PermPrivateChannelBase | model.PermManageChannel
		}
	case model.ChannelKindGroup:
		if channel.HasRecipient(actorID) {
			perms = model.PermPrivateChannelBase
			if channel.OwnerID == actorID {
				perms |= groupOwnerBits
			}
		}
	default:
		if channel.HasRecipient(actorID) {
			perms = model.PermPrivateChannelBase
		}
	}
	if perms == model.PermNone {
		return perms
	}
	if ow, ok := channel.Overwrite(model.SubjectUser, actorID); ok {
		perms = ow.Apply(perms)
	}
	return perms
}

// AgainstTarget strips member moderation bits from perms unless the actor
// outranks target
func AgainstTarget(perms model.Permission, server *model.Server, actorID string, actor, target *model.Member) model.Permission {
	if Outranks(server, actorID, actor, target) {
		return perms
	}
	return perms &^ model.PermMemberModeration
}

// Outranks reports whether the actor may moderate target. The owner outranks
// everyone and is outranked by no one. Otherwise the actor's best rank must be
// strictly lower than every rank the target holds.
func Outranks(server *model.Server, actorID string, actor, target *model.Member) bool {
	if server == nil || target == nil {
		return false
	}
	if server.IsOwner(target.UserID) {
		return false
	}
	if server.IsOwner(actorID) {
		return true
	}
	if !isMember(server, actorID, actor) {
		return false
	}

	targetRoles := server.RolesOf(target.Roles)
	if len(targetRoles) == 0 {
		return true
	}
	best, ok := BestRank(server, actor)
	if !ok {
		return false
	}
	for _, r := range targetRoles {
		if r.Rank <= best {
			return false
		}
	}
	return true
}

// BestRank returns the lowest rank among the member's existing roles
func BestRank(server *model.Server, member *model.Member) (int, bool) {
	if server == nil || member == nil {
		return 0, false
	}
	roles := server.RolesOf(member.Roles)
	if len(roles) == 0 {
		return 0, false
	}
	return roles[len(roles)-1].Rank, true
}

// CanManageRole reports whether the actor may create, edit or delete a role of
// the given rank. Non-owners may only touch roles ranked strictly below their own.
func CanManageRole(server *model.Server, actorID string, actor *model.Member, rank int) bool {
	if server.IsOwner(actorID) {
		return true
	}
	best, ok := BestRank(server, actor)
	return ok && rank > best
}

func isMember(server *model.Server, actorID string, member *model.Member) bool {
	return member != nil && member.UserID == actorID && member.ServerID == server.ID
}
