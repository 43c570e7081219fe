package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
)

// MessageService sends, edits and deletes messages and keeps the channel's
// last message pointer and read state in step
type MessageService struct {
	store     Store
	auth      authorizer
	publisher events.Publisher
	unreads   *UnreadService
	retries   int
}

// NewMessageService creates a new message service
func NewMessageService(store Store, publisher events.Publisher, unreads *UnreadService) *MessageService {
	return &MessageService{
		store:     store,
		auth:      authorizer{store: store},
		publisher: publisher,
		unreads:   unreads,
		retries:   unreads.opts.CASRetries,
	}
}

// Send posts a message as the actor
func (s *MessageService) Send(ctx context.Context, actorID, channelID string, req *model.SendMessageRequest) (*model.Message, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	scope, err := s.auth.forChannel(ctx, channelID, actorID)
	if err != nil {
		return nil, err
	}
	if err := scope.require(model.PermViewChannel | model.PermSendMessage); err != nil {
		return nil, err
	}
	if len(req.Attachments) > 0 {
		if err := scope.require(model.PermUploadFiles); err != nil {
			return nil, err
		}
	}
	return s.post(ctx, scope.Channel, actorID, req)
}

// post persists a message with its attachments, then advances the channel
// pointer and propagates read state. Once the message is stored, later
// failures are logged and the message is still returned.
func (s *MessageService) post(ctx context.Context, channel *model.Channel, authorID string, req *model.SendMessageRequest) (*model.Message, error) {
	now := time.Now().UTC()
	message := &model.Message{
		ID:        model.NewID(),
		ChannelID: channel.ID,
		AuthorID:  authorID,
		Content:   req.Content,
		Mentions:  model.UniqueIDs(req.Mentions),
		CreatedOn: now,
	}

	attachments := make([]*model.Attachment, 0, len(req.Attachments))
	for _, in := range req.Attachments {
		a := &model.Attachment{
			ID:          model.NewID(),
			ParentID:    channel.ID,
			MessageID:   message.ID,
			UploaderID:  authorID,
			Filename:    in.Filename,
			ContentType: in.ContentType,
			Size:        in.Size,
			CreatedOn:   now,
		}
		attachments = append(attachments, a)
		message.Attachments = append(message.Attachments, a.ID)
	}

	create := func(ctx context.Context) error {
		if err := s.store.Messages.Create(ctx, message); err != nil {
			return err
		}
		for _, a := range attachments {
			if err := s.store.Attachments.Create(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}
	// the channel is gone, so everything still filed under it goes too
	undo := func(ctx context.Context) error {
		if err := s.store.Attachments.DeleteByParent(ctx, channel.ID); err != nil {
			return err
		}
		return s.store.Messages.DeleteByChannel(ctx, channel.ID)
	}
	err := s.store.createUnder(ctx, s.store.channelExists(channel.ID), ErrChannelNotFound, create, undo)
	if err != nil {
		return nil, storeErr("create message", err)
	}

	if err := s.store.Channels.AdvanceLastMessage(ctx, channel.ID, message.ID); err != nil {
		slog.Error("failed to advance last message",
			slog.String("channel_id", channel.ID),
			slog.String("message_id", message.ID),
			slog.String("error", err.Error()))
	}
	if err := s.unreads.OnMessageCreated(ctx, channel, message); err != nil {
		slog.Error("unread propagation failed",
			slog.String("channel_id", channel.ID),
			slog.String("message_id", message.ID),
			slog.String("error", err.Error()))
	}

	publish(ctx, s.publisher, events.New(events.MessageCreated, events.ScopeChannel, channel.ID, message))
	return message, nil
}

// GetMessage returns a message from a channel whose history the actor can read
func (s *MessageService) GetMessage(ctx context.Context, actorID, messageID string) (*model.Message, error) {
	message, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	scope, err := s.auth.forChannel(ctx, message.ChannelID, actorID)
	if err != nil {
		return nil, err
	}
	if !scope.Perms.Has(model.PermViewChannel | model.PermReadMessageHistory) {
		return nil, ErrMessageNotFound
	}
	return message, nil
}

// Edit replaces a message's content and mentions. Authors may edit their own
// messages; others need ManageMessages. Either way the actor must still see
// the channel.
func (s *MessageService) Edit(ctx context.Context, actorID, messageID string, req *model.EditMessageRequest) (*model.Message, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	message, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	scope, err := s.auth.forChannel(ctx, message.ChannelID, actorID)
	if err != nil {
		return nil, err
	}
	if err := scope.require(model.PermViewChannel); err != nil {
		return nil, err
	}
	if message.AuthorID != actorID && !scope.Perms.Has(model.PermManageMessages) {
		return nil, ErrNotAuthor
	}

	before := message.Mentions
	now := time.Now().UTC()
	message.Content = req.Content
	message.Mentions = model.UniqueIDs(req.Mentions)
	message.Edited = true
	message.EditedOn = &now

	if err := s.store.Messages.Update(ctx, message); err != nil {
		return nil, storeErr("update message", err)
	}

	diff := model.DiffMentions(before, message.Mentions)
	if err := s.unreads.OnMentionsChanged(ctx, scope.Channel, message, diff); err != nil {
		slog.Error("unread propagation failed",
			slog.String("channel_id", message.ChannelID),
			slog.String("message_id", message.ID),
			slog.String("error", err.Error()))
	}

	publish(ctx, s.publisher, events.New(events.MessageUpdated, events.ScopeChannel, message.ChannelID, message))
	return message, nil
}

// Delete removes a message with its attachments. Authors may delete their
// own messages while they can see the channel; others need ManageMessages.
// If the message was the channel's last, the pointer moves to the latest
// message that remains.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID string) error {
	message, err := s.load(ctx, messageID)
	if err != nil {
		return err
	}
	scope, err := s.auth.forChannel(ctx, message.ChannelID, actorID)
	if err != nil {
		return err
	}
	if err := scope.require(model.PermViewChannel); err != nil {
		return err
	}
	if message.AuthorID != actorID {
		if err := scope.require(model.PermManageMessages); err != nil {
			return err
		}
	}

	err = s.store.atomically(ctx, func(ctx context.Context) error {
		if err := s.store.Attachments.DeleteByMessage(ctx, message.ID); err != nil {
			return err
		}
		return s.store.Messages.Delete(ctx, message.ID)
	})
	if err != nil {
		return storeErr("delete message", err)
	}

	if err := s.unreads.OnMessageDeleted(ctx, message); err != nil {
		slog.Error("unread propagation failed",
			slog.String("channel_id", message.ChannelID),
			slog.String("message_id", message.ID),
			slog.String("error", err.Error()))
	}
	publish(ctx, s.publisher, events.New(events.MessageDeleted, events.ScopeChannel, message.ChannelID,
		map[string]string{"message_id": message.ID}))

	return s.repointLastMessage(ctx, message)
}

// repointLastMessage moves the channel pointer off a deleted message. A
// concurrent send that advanced the pointer in the meantime wins.
func (s *MessageService) repointLastMessage(ctx context.Context, deleted *model.Message) error {
	for attempt := 0; attempt < s.retries; attempt++ {
		channel, err := s.store.Channels.GetByID(ctx, deleted.ChannelID)
		if err != nil {
			return storeErr("get channel", err)
		}
		if channel == nil || channel.LastMessageID == nil || *channel.LastMessageID != deleted.ID {
			return nil
		}

		latest, err := s.store.Messages.Latest(ctx, channel.ID)
		if err != nil {
			return storeErr("latest message", err)
		}
		var next *string
		if latest != nil {
			id := latest.ID
			next = &id
		}

		ok, err := s.store.Channels.SwapLastMessage(ctx, channel.ID, deleted.ID, next)
		if err != nil {
			return storeErr("swap last message", err)
		}
		if ok {
			return nil
		}
	}
	return ErrLastMessageConflict
}

func (s *MessageService) load(ctx context.Context, id string) (*model.Message, error) {
	message, err := s.store.Messages.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get message", err)
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}
	return message, nil
}
