package model

// Permission is a bitset of capabilities an actor holds against a server or channel
type Permission uint64

// Server and member management bits
const (
	PermManageChannel       Permission = 1 << 0
	PermManageServer        Permission = 1 << 1
	PermManagePermissions   Permission = 1 << 2
	PermManageRole          Permission = 1 << 3
	PermManageCustomisation Permission = 1 << 4

	PermKickMembers     Permission = 1 << 6
	PermBanMembers      Permission = 1 << 7
	PermTimeoutMembers  Permission = 1 << 8
	PermAssignRoles     Permission = 1 << 9
	PermChangeNickname  Permission = 1 << 10
	PermManageNicknames Permission = 1 << 11
	PermChangeAvatar    Permission = 1 << 12
	PermRemoveAvatars   Permission = 1 << 13
)

// Channel bits
const (
	PermViewChannel        Permission = 1 << 20
	PermReadMessageHistory Permission = 1 << 21
	PermSendMessage        Permission = 1 << 22
	PermManageMessages     Permission = 1 << 23
	PermManageWebhooks     Permission = 1 << 24
	PermInviteOthers       Permission = 1 << 25
	PermSendEmbeds         Permission = 1 << 26
	PermUploadFiles        Permission = 1 << 27
	PermMasquerade         Permission = 1 << 28
	PermReact              Permission = 1 << 29

	PermConnect       Permission = 1 << 30
	PermSpeak         Permission = 1 << 31
	PermVideo         Permission = 1 << 32
	PermMuteMembers   Permission = 1 << 33
	PermDeafenMembers Permission = 1 << 34
	PermMoveMembers   Permission = 1 << 35
)

const (
	// PermNone grants nothing
	PermNone Permission = 0

	// PermAll is every defined bit
	PermAll Permission = PermManageChannel | PermManageServer | PermManagePermissions | PermManageRole |
		PermManageCustomisation | PermKickMembers | PermBanMembers | PermTimeoutMembers | PermAssignRoles |
		PermChangeNickname | PermManageNicknames | PermChangeAvatar | PermRemoveAvatars |
		PermViewChannel | PermReadMessageHistory | PermSendMessage | PermManageMessages | PermManageWebhooks |
		PermInviteOthers | PermSendEmbeds | PermUploadFiles | PermMasquerade | PermReact |
		PermConnect | PermSpeak | PermVideo | PermMuteMembers | PermDeafenMembers | PermMoveMembers

	// PermPrivateChannelBase is granted to every recipient of a channel without a server
	PermPrivateChannelBase Permission = PermViewChannel | PermReadMessageHistory | PermSendMessage |
		PermSendEmbeds | PermUploadFiles | PermReact

	// PermMemberModeration are the bits that act on another member and
	// therefore require the actor to outrank the target
	PermMemberModeration Permission = PermKickMembers | PermBanMembers | PermTimeoutMembers |
		PermAssignRoles | PermManageNicknames | PermRemoveAvatars

	// PermDefaultServer is the default permission set of a newly created server
	PermDefaultServer Permission = PermViewChannel | PermReadMessageHistory | PermSendMessage |
		PermChangeNickname | PermChangeAvatar | PermInviteOthers | PermSendEmbeds | PermUploadFiles |
		PermReact | PermConnect | PermSpeak | PermVideo
)

// Has reports whether every bit of want is set
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// Overrides is a pair of explicit allow and deny bitsets. Bits in neither
// set inherit from the layer below.
type Overrides struct {
	Allow Permission `json:"allow"`
	Deny  Permission `json:"deny"`
}

// Apply folds the overrides over base: allow bits are set, then deny bits cleared
func (o Overrides) Apply(base Permission) Permission {
	return (base | o.Allow) &^ o.Deny
}

// Bits returns every bit the overrides touch
func (o Overrides) Bits() Permission {
	return o.Allow | o.Deny
}
