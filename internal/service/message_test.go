package service

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastMessage(t *testing.T, f *fixture, channelID string) *string {
	t.Helper()
	channel, err := f.mem.Channels.GetByID(f.ctx, channelID)
	require.NoError(t, err)
	require.NotNil(t, channel)
	return channel.LastMessageID
}

func TestSend(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	server := f.server(owner)
	general := f.general(server.ID)
	assert.Nil(t, lastMessage(t, f, general.ID))

	sub := f.hub.Subscribe(events.Topic(events.ScopeChannel, general.ID), "test")
	first := f.send(owner, general.ID, "first")
	second := f.send(owner, general.ID, "second")

	last := lastMessage(t, f, general.ID)
	require.NotNil(t, last)
	assert.Equal(t, second.ID, *last)
	assert.Less(t, first.ID, second.ID)

	e := <-sub.Events
	assert.Equal(t, events.MessageCreated, e.Type)
	assert.Equal(t, first, e.Data)

	got, err := f.core.Messages.GetMessage(f.ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Content)
}

func TestSend_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	server := f.server(owner)
	general := f.general(server.ID)

	_, err := f.core.Messages.Send(f.ctx, owner, general.ID, &model.SendMessageRequest{})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.core.Messages.Send(f.ctx, owner, "missing", &model.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestSend_Permissions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	bob := f.user("bob")
	outsider := f.user("outsider")
	server := f.server(owner)
	f.join(server.ID, alice, bob)
	general := f.general(server.ID)

	_, err := f.core.Messages.Send(f.ctx, outsider, general.ID, &model.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrMissingPermission)

	_, err = f.core.Channels.SetOverwrite(f.ctx, owner, general.ID, &model.OverwriteInput{
		Subject: alice, SubjectKind: model.SubjectUser, Deny: model.PermSendMessage,
	})
	require.NoError(t, err)
	_, err = f.core.Messages.Send(f.ctx, alice, general.ID, &model.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrMissingPermission)

	noFiles := f.role(server, "NoFiles", 1, 0, model.PermUploadFiles)
	f.assign(server, bob, noFiles)
	withFile := &model.SendMessageRequest{
		Attachments: []model.AttachmentInput{{Filename: "a.txt", ContentType: "text/plain", Size: 1}},
	}
	_, err = f.core.Messages.Send(f.ctx, bob, general.ID, withFile)
	assert.ErrorIs(t, err, ErrMissingPermission)

	msg, err := f.core.Messages.Send(f.ctx, owner, general.ID, withFile)
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	files, err := f.mem.Attachments.ListByMessage(f.ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, general.ID, files[0].ParentID)
	assert.Equal(t, msg.Attachments[0], files[0].ID)
}

func TestGetMessage_Hidden(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	outsider := f.user("outsider")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)
	msg := f.send(owner, general.ID, "secret")

	_, err := f.core.Messages.GetMessage(f.ctx, outsider, msg.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = f.core.Channels.SetOverwrite(f.ctx, owner, general.ID, &model.OverwriteInput{
		Subject: alice, SubjectKind: model.SubjectUser, Deny: model.PermReadMessageHistory,
	})
	require.NoError(t, err)
	_, err = f.core.Messages.GetMessage(f.ctx, alice, msg.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = f.core.Messages.GetMessage(f.ctx, owner, model.NewID())
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestEdit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	bob := f.user("bob")
	carol := f.user("carol")
	mod := f.user("mod")
	server := f.server(owner)
	f.join(server.ID, alice, bob, carol, mod)
	general := f.general(server.ID)
	f.assign(server, mod, f.role(server, "Mod", 1, model.PermManageMessages, 0))

	msg := f.send(alice, general.ID, "hey bob", bob)
	assert.Equal(t, []string{msg.ID}, f.unread(bob, general.ID).Mentions)

	_, err := f.core.Messages.Edit(f.ctx, bob, msg.ID, &model.EditMessageRequest{Content: "nope"})
	assert.ErrorIs(t, err, ErrNotAuthor)

	edited, err := f.core.Messages.Edit(f.ctx, alice, msg.ID, &model.EditMessageRequest{
		Content:  "hey carol",
		Mentions: []string{carol, alice},
	})
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.NotNil(t, edited.EditedOn)

	assert.Empty(t, f.unread(bob, general.ID).Mentions)
	assert.Equal(t, []string{msg.ID}, f.unread(carol, general.ID).Mentions)
	// authors are never mentioned by their own messages
	assert.Nil(t, f.unread(alice, general.ID))

	// a mention added after the reader moved past the message is ignored
	_, err = f.core.Unreads.Acknowledge(f.ctx, bob, general.ID, msg.ID)
	require.NoError(t, err)
	_, err = f.core.Messages.Edit(f.ctx, mod, msg.ID, &model.EditMessageRequest{
		Content:  "hey bob again",
		Mentions: []string{carol, bob},
	})
	require.NoError(t, err)
	assert.Empty(t, f.unread(bob, general.ID).Mentions)

	stored, err := f.mem.Messages.GetByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hey bob again", stored.Content)
	assert.Equal(t, alice, stored.AuthorID)
}

func TestEditDelete_RequireView(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	bob := f.user("bob")
	server := f.server(owner)
	f.join(server.ID, alice)
	general := f.general(server.ID)

	msg := f.send(alice, general.ID, "before the ban")
	_, err := f.core.Members.Ban(f.ctx, owner, server.ID, alice, nil)
	require.NoError(t, err)

	_, err = f.core.Messages.Edit(f.ctx, alice, msg.ID, &model.EditMessageRequest{Content: "after"})
	assert.ErrorIs(t, err, ErrMissingPermission)
	assert.ErrorIs(t, f.core.Messages.Delete(f.ctx, alice, msg.ID), ErrMissingPermission)

	stored, err := f.mem.Messages.GetByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "before the ban", stored.Content)

	// a recipient removed from a group can no longer touch what they sent
	group, err := f.core.Channels.CreateGroup(f.ctx, owner, &model.CreateGroupRequest{
		Name:       "g",
		Recipients: []string{bob},
	})
	require.NoError(t, err)
	note := f.send(bob, group.ID, "hi")
	require.NoError(t, f.core.Channels.RemoveGroupRecipient(f.ctx, owner, group.ID, bob))

	_, err = f.core.Messages.Edit(f.ctx, bob, note.ID, &model.EditMessageRequest{Content: "edited"})
	assert.ErrorIs(t, err, ErrMissingPermission)
	assert.ErrorIs(t, f.core.Messages.Delete(f.ctx, bob, note.ID), ErrMissingPermission)
}

func TestDelete_RepointsLastMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	server := f.server(owner)
	general := f.general(server.ID)

	m1 := f.send(owner, general.ID, "one")
	m2 := f.send(owner, general.ID, "two")
	m3 := f.send(owner, general.ID, "three")

	// deleting an older message leaves the pointer alone
	require.NoError(t, f.core.Messages.Delete(f.ctx, owner, m2.ID))
	assert.Equal(t, m3.ID, *lastMessage(t, f, general.ID))

	require.NoError(t, f.core.Messages.Delete(f.ctx, owner, m3.ID))
	assert.Equal(t, m1.ID, *lastMessage(t, f, general.ID))

	require.NoError(t, f.core.Messages.Delete(f.ctx, owner, m1.ID))
	assert.Nil(t, lastMessage(t, f, general.ID))

	err := f.core.Messages.Delete(f.ctx, owner, m1.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestDelete_Authorization(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := f.user("owner")
	alice := f.user("alice")
	bob := f.user("bob")
	server := f.server(owner)
	f.join(server.ID, alice, bob)
	general := f.general(server.ID)

	msg, err := f.core.Messages.Send(f.ctx, alice, general.ID, &model.SendMessageRequest{
		Content:     "with file",
		Attachments: []model.AttachmentInput{{Filename: "a.txt", ContentType: "text/plain", Size: 1}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.core.Messages.Delete(f.ctx, bob, msg.ID), ErrMissingPermission)

	require.NoError(t, f.core.Messages.Delete(f.ctx, owner, msg.ID))
	files, err := f.mem.Attachments.ListByMessage(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, files)

	existed, err := f.mem.Messages.HasExisted(f.ctx, general.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, existed)
}

func TestDelete_PointerConflict(t *testing.T) {
	t.Parallel()
	var swaps int
	f := newFixtureWith(t, func(s *Store) {
		s.Channels = &stubChannels{
			ChannelRepository: s.Channels,
			swapFunc: func(ctx context.Context, channelID, expected string, next *string) (bool, error) {
				swaps++
				return false, nil
			},
		}
	}, Options{CASRetries: 3}, OnboardingConfig{})

	owner := f.user("owner")
	server := f.server(owner)
	general := f.general(server.ID)
	msg := f.send(owner, general.ID, "hi")

	err := f.core.Messages.Delete(f.ctx, owner, msg.ID)
	assert.ErrorIs(t, err, ErrLastMessageConflict)
	assert.Equal(t, 3, swaps)

	// the message itself is gone even though the pointer could not move
	stored, err := f.mem.Messages.GetByID(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSend_PublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	pub := &failingPublisher{}
	f.core = NewCore(f.store, pub, Options{}, OnboardingConfig{})
	f.core.Webhooks.cost = bcrypt.MinCost

	owner := f.user("owner")
	server := f.server(owner)
	general := f.general(server.ID)

	msg, err := f.core.Messages.Send(f.ctx, owner, general.ID, &model.SendMessageRequest{Content: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.GreaterOrEqual(t, pub.calls, 2)
}
