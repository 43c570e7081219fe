package permission

import (
	"testing"

	"github.com/forgo/chatcore/internal/model"

	"github.com/stretchr/testify/assert"
)

const (
	serverID = "server"
	ownerID  = "owner"
	actorID  = "actor"
)

func newServer(roles ...model.Role) *model.Server {
	s := &model.Server{
		ID:                 serverID,
		OwnerID:            ownerID,
		DefaultPermissions: model.PermViewChannel | model.PermReadMessageHistory,
		Roles:              make(map[string]model.Role),
	}
	for _, r := range roles {
		s.Roles[r.ID] = r
	}
	return s
}

func member(userID string, roles ...string) *model.Member {
	return &model.Member{ServerID: serverID, UserID: userID, Roles: roles}
}

func TestForServer_AdminAndMember(t *testing.T) {
	t.Parallel()

	server := newServer(
		model.Role{ID: "admin", Rank: 0, Permissions: model.Overrides{Allow: model.PermAll}},
		model.Role{ID: "member", Rank: 10, Permissions: model.Overrides{
			Allow: model.PermSendMessage,
			Deny:  model.PermBanMembers,
		}},
	)

	got := ForServer(server, actorID, member(actorID, "member", "admin"))
	assert.Equal(t, model.PermAll, got)

	onlyMember := ForServer(server, actorID, member(actorID, "member"))
	assert.False(t, onlyMember.Has(model.PermBanMembers))
	assert.True(t, onlyMember.Has(model.PermSendMessage|model.PermViewChannel))
}

func TestForServer_HigherPrecedenceDenyWins(t *testing.T) {
	t.Parallel()

	server := newServer(
		model.Role{ID: "muted", Rank: 1, Permissions: model.Overrides{Deny: model.PermSendMessage}},
		model.Role{ID: "talker", Rank: 5, Permissions: model.Overrides{Allow: model.PermSendMessage}},
	)

	got := ForServer(server, actorID, member(actorID, "talker", "muted"))
	assert.False(t, got.Has(model.PermSendMessage))

	// rank changes flip the outcome
	r := server.Roles["muted"]
	r.Rank = 9
	server.Roles["muted"] = r
	got = ForServer(server, actorID, member(actorID, "talker", "muted"))
	assert.True(t, got.Has(model.PermSendMessage))
}

func TestForServer_RankTieBrokenByID(t *testing.T) {
	t.Parallel()

	// equal rank: the older id takes precedence and is applied last
	server := newServer(
		model.Role{ID: "01", Rank: 3, Permissions: model.Overrides{Deny: model.PermReact}},
		model.Role{ID: "02", Rank: 3, Permissions: model.Overrides{Allow: model.PermReact}},
	)

	got := ForServer(server, actorID, member(actorID, "02", "01"))
	assert.False(t, got.Has(model.PermReact))
}

func TestForServer_OwnerBypass(t *testing.T) {
	t.Parallel()

	server := newServer()
	server.DefaultPermissions = model.PermNone

	assert.Equal(t, model.PermAll, ForServer(server, ownerID, nil))
}

func TestForServer_NoRolesFallsThroughToDefault(t *testing.T) {
	t.Parallel()

	server := newServer()
	assert.Equal(t, server.DefaultPermissions, ForServer(server, actorID, member(actorID)))
}

func TestForServer_StaleRoleSkipped(t *testing.T) {
	t.Parallel()

	server := newServer(model.Role{ID: "kept", Rank: 1, Permissions: model.Overrides{Allow: model.PermReact}})

	got := ForServer(server, actorID, member(actorID, "deleted", "kept"))
	assert.Equal(t, server.DefaultPermissions|model.PermReact, got)
}

func TestForServer_NonMember(t *testing.T) {
	t.Parallel()

	server := newServer()
	assert.Equal(t, model.PermNone, ForServer(server, actorID, nil))

	elsewhere := &model.Member{ServerID: "other", UserID: actorID}
	assert.Equal(t, model.PermNone, ForServer(server, actorID, elsewhere))
}

func TestForChannel_OverwritePrecedence(t *testing.T) {
	t.Parallel()

	server := newServer(
		model.Role{ID: "mod", Rank: 1},
		model.Role{ID: "regular", Rank: 5},
	)
	server.DefaultPermissions |= model.PermSendMessage

	channel := &model.Channel{
		ID:       "channel",
		ServerID: serverID,
		Kind:     model.ChannelKindText,
		Overwrites: []model.Overwrite{
			{Subject: "regular", SubjectKind: model.SubjectRole, Overrides: model.Overrides{Deny: model.PermSendMessage}},
			{Subject: "mod", SubjectKind: model.SubjectRole, Overrides: model.Overrides{Allow: model.PermSendMessage}},
		},
	}

	regular := ForChannel(channel, server, actorID, member(actorID, "regular"))
	assert.False(t, regular.Has(model.PermSendMessage))

	both := ForChannel(channel, server, actorID, member(actorID, "regular", "mod"))
	assert.True(t, both.Has(model.PermSendMessage))

	// the user overwrite always has the final say
	channel.SetOverwrite(model.Overwrite{
		Subject:     actorID,
		SubjectKind: model.SubjectUser,
		Overrides:   model.Overrides{Deny: model.PermSendMessage, Allow: model.PermManageMessages},
	})
	withUser := ForChannel(channel, server, actorID, member(actorID, "regular", "mod"))
	assert.False(t, withUser.Has(model.PermSendMessage))
	assert.True(t, withUser.Has(model.PermManageMessages))
}

func TestForChannel_OverwriteForRoleNotHeldIgnored(t *testing.T) {
	t.Parallel()

	server := newServer(model.Role{ID: "vip", Rank: 1})
	channel := &model.Channel{
		ServerID: serverID,
		Kind:     model.ChannelKindText,
		Overwrites: []model.Overwrite{
			{Subject: "vip", SubjectKind: model.SubjectRole, Overrides: model.Overrides{Allow: model.PermSendMessage}},
			{Subject: "ghost", SubjectKind: model.SubjectRole, Overrides: model.Overrides{Allow: model.PermAll}},
		},
	}

	got := ForChannel(channel, server, actorID, member(actorID, "ghost"))
	assert.Equal(t, server.DefaultPermissions, got)
}

func TestForChannel_NonMemberGetsNothing(t *testing.T) {
	t.Parallel()

	server := newServer()
	channel := &model.Channel{
		ServerID: serverID,
		Kind:     model.ChannelKindText,
		Overwrites: []model.Overwrite{
			{Subject: actorID, SubjectKind: model.SubjectUser, Overrides: model.Overrides{Allow: model.PermAll}},
		},
	}

	assert.Equal(t, model.PermNone, ForChannel(channel, server, actorID, nil))
}

func TestForChannel_OwnerBypass(t *testing.T) {
	t.Parallel()

	server := newServer()
	channel := &model.Channel{
		ServerID: serverID,
		Kind:     model.ChannelKindText,
		Overwrites: []model.Overwrite{
			{Subject: ownerID, SubjectKind: model.SubjectUser, Overrides: model.Overrides{Deny: model.PermAll}},
		},
	}

	assert.Equal(t, model.PermAll, ForChannel(channel, server, ownerID, nil))
}

func TestForChannel_WrongServer(t *testing.T) {
	t.Parallel()

	channel := &model.Channel{ServerID: "other", Kind: model.ChannelKindText}
	assert.Equal(t, model.PermNone, ForChannel(channel, newServer(), ownerID, nil))
}

func TestForChannel_Private(t *testing.T) {
	t.Parallel()

	dm := &model.Channel{Kind: model.ChannelKindDirectMessage, Recipients: []string{"a", "b"}}
	assert.Equal(t, model.PermPrivateChannelBase, ForChannel(dm, nil, "a", nil))
	assert.Equal(t, model.PermNone, ForChannel(dm, nil, "c", nil))

	group := &model.Channel{Kind: model.ChannelKindGroup, OwnerID: "a", Recipients: []string{"a", "b"}}
	assert.True(t, ForChannel(group, nil, "a", nil).Has(model.PermManageChannel))
	assert.False(t, ForChannel(group, nil, "b", nil).Has(model.PermManageChannel))

	group.SetOverwrite(model.Overwrite{
		Subject:     "b",
		SubjectKind: model.SubjectUser,
		Overrides:   model.Overrides{Deny: model.PermSendMessage},
	})
	assert.False(t, ForChannel(group, nil, "b", nil).Has(model.PermSendMessage))

	notes := &model.Channel{Kind: model.ChannelKindSavedNotes, OwnerID: "a"}
	assert.True(t, ForChannel(notes, nil, "a", nil).Has(model.PermSendMessage))
	assert.Equal(t, model.PermNone, ForChannel(notes, nil, "b", nil))
}

func TestResolve_TargetStripsModeration(t *testing.T) {
	t.Parallel()

	server := newServer(
		model.Role{ID: "mod", Rank: 2, Permissions: model.Overrides{Allow: model.PermBanMembers | model.PermKickMembers}},
		model.Role{ID: "senior", Rank: 1},
		model.Role{ID: "junior", Rank: 8},
	)
	actor := member(actorID, "mod")

	juniorTarget := member("t1", "junior")
	got := Resolve(Query{ActorID: actorID, Server: server, Member: actor, Target: juniorTarget})
	assert.True(t, got.Has(model.PermBanMembers))

	seniorTarget := member("t2", "senior", "junior")
	got = Resolve(Query{ActorID: actorID, Server: server, Member: actor, Target: seniorTarget})
	assert.False(t, got.Has(model.PermBanMembers))
	assert.False(t, got.Has(model.PermKickMembers))
	assert.True(t, got.Has(model.PermViewChannel))

	peer := member("t3", "mod")
	got = Resolve(Query{ActorID: actorID, Server: server, Member: actor, Target: peer})
	assert.False(t, got.Has(model.PermBanMembers))
}

func TestOutranks(t *testing.T) {
	t.Parallel()

	server := newServer(model.Role{ID: "mod", Rank: 2}, model.Role{ID: "junior", Rank: 8})

	assert.True(t, Outranks(server, ownerID, nil, member(actorID, "mod")))
	assert.False(t, Outranks(server, actorID, member(actorID, "mod"), member(ownerID)))
	assert.True(t, Outranks(server, actorID, member(actorID, "mod"), member("t", "junior")))
	assert.True(t, Outranks(server, actorID, member(actorID), member("t")))
	assert.False(t, Outranks(server, actorID, member(actorID), member("t", "junior")))
	assert.True(t, Outranks(server, actorID, member(actorID, "mod"), member("t", "deleted")))
}

func TestCanManageRole(t *testing.T) {
	t.Parallel()

	server := newServer(model.Role{ID: "mod", Rank: 2})

	assert.True(t, CanManageRole(server, ownerID, nil, 0))
	assert.True(t, CanManageRole(server, actorID, member(actorID, "mod"), 3))
	assert.False(t, CanManageRole(server, actorID, member(actorID, "mod"), 2))
	assert.False(t, CanManageRole(server, actorID, member(actorID), 50))
}
