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

// ChannelService creates, edits and deletes channels and their overwrites
type ChannelService struct {
	store     Store
	auth      authorizer
	publisher events.Publisher
}

// NewChannelService creates a new channel service
func NewChannelService(store Store, publisher events.Publisher) *ChannelService {
	return &ChannelService{
		store:     store,
		auth:      authorizer{store: store},
		publisher: publisher,
	}
}

// CreateChannel creates a text or voice channel in a server. Initial
// overwrites must name a role of the server or a current member.
func (s *ChannelService) CreateChannel(ctx context.Context, actorID, serverID string, req *model.CreateChannelRequest) (*model.Channel, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	if err := scope.require(model.PermManageChannel); err != nil {
		return nil, err
	}

	channel := &model.Channel{
		ID:          model.NewID(),
		ServerID:    serverID,
		Kind:        req.Kind,
		Name:        req.Name,
		Description: req.Description,
		CreatedOn:   time.Now().UTC(),
	}
	if len(req.Overwrites) > 0 {
		if err := scope.require(model.PermManagePermissions); err != nil {
			return nil, err
		}
	}
	for _, in := range req.Overwrites {
		ow := in.Overwrite()
		if err := s.validateSubject(ctx, channel, scope.Server, ow); err != nil {
			return nil, err
		}
		if err := checkGrant(scope.isOwner(), scope.Perms, ow.Overrides); err != nil {
			return nil, err
		}
		channel.SetOverwrite(ow)
	}

	err = s.store.createUnder(ctx, s.store.serverExists(serverID), ErrServerNotFound,
		func(ctx context.Context) error { return s.store.Channels.Create(ctx, channel) },
		func(ctx context.Context) error { return s.store.Channels.Delete(ctx, channel.ID) })
	if err != nil {
		return nil, storeErr("create channel", err)
	}
	publish(ctx, s.publisher, events.New(events.ChannelCreated, events.ScopeServer, serverID, channel))
	return channel, nil
}

// GetChannel returns a channel the actor can view
func (s *ChannelService) GetChannel(ctx context.Context, actorID, channelID string) (*model.Channel, error) {
	scope, err := s.auth.forChannel(ctx, channelID, actorID)
	if err != nil {
		return nil, err
	}
	if !scope.Perms.Has(model.PermViewChannel) {
		return nil, ErrChannelNotFound
	}
	return scope.Channel, nil
}

// ListChannels returns the channels of a server the actor can view
func (s *ChannelService) ListChannels(ctx context.Context, actorID, serverID string) ([]*model.Channel, error) {
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	channels, err := s.store.Channels.ListByServer(ctx, serverID)
	if err != nil {
		return nil, storeErr("list channels", err)
	}
	visible := make([]*model.Channel, 0, len(channels))
	for _, c := range channels {
		if permission.ForChannel(c, scope.Server, actorID, scope.Actor).Has(model.PermViewChannel) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// Permissions returns the actor's permissions in a channel
func (s *ChannelService) Permissions(ctx context.Context, actorID, channelID string) (model.Permission, error) {
	scope, err := s.auth.forChannel(ctx, channelID, actorID)
	if err != nil {
		return model.PermNone, err
	}
	return scope.Perms, nil
}

// EditChannel changes a channel's name or description
func (s *ChannelService) EditChannel(ctx context.Context, actorID, channelID string, req *model.UpdateChannelRequest) (*model.Channel, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}

	var channel *model.Channel
	err := retryOnConflict(ctx, "update channel", func() error {
		scope, err := s.auth.forChannel(ctx, channelID, actorID)
		if err != nil {
			return err
		}
		if scope.Channel.Kind == model.ChannelKindDirectMessage {
			return ErrNotChannelType
		}
		if err := scope.require(model.PermManageChannel); err != nil {
			return err
		}

		channel = scope.Channel
		if req.Name != nil {
			channel.Name = *req.Name
		}
		if req.Description != nil {
			channel.Description = *req.Description
		}
		return s.store.Channels.Update(ctx, channel)
	})
	if err != nil {
		return nil, writeErr("update channel", err, ErrChannelNotFound)
	}
	s.publishChannel(ctx, events.ChannelUpdated, channel)
	return channel, nil
}

// SetOverwrite creates or replaces the overwrite of one subject. Existing
// overwrites whose subject no longer qualifies are dropped in the same write.
func (s *ChannelService) SetOverwrite(ctx context.Context, actorID, channelID string, in *model.OverwriteInput) (*model.Channel, error) {
	if err := invalid(model.Validate(in)); err != nil {
		return nil, err
	}

	var channel *model.Channel
	err := retryOnConflict(ctx, "update channel", func() error {
		scope, err := s.auth.forChannel(ctx, channelID, actorID)
		if err != nil {
			return err
		}
		if err := s.checkOverwritable(scope); err != nil {
			return err
		}

		ow := in.Overwrite()
		if err := s.validateSubject(ctx, scope.Channel, scope.Server, ow); err != nil {
			return err
		}
		changed := ow.Overrides
		if prev, ok := scope.Channel.Overwrite(ow.SubjectKind, ow.Subject); ok {
			changed = model.Overrides{Allow: prev.Allow ^ ow.Allow, Deny: prev.Deny ^ ow.Deny}
		}
		if err := checkGrant(s.bypassesGrant(scope), scope.Perms, changed); err != nil {
			return err
		}

		channel = scope.Channel
		channel.SetOverwrite(ow)
		if err := s.pruneOverwrites(ctx, channel, scope.Server); err != nil {
			return err
		}
		return s.store.Channels.Update(ctx, channel)
	})
	if err != nil {
		return nil, writeErr("update channel", err, ErrChannelNotFound)
	}
	s.publishChannel(ctx, events.ChannelUpdated, channel)
	return channel, nil
}

// RemoveOverwrite deletes the overwrite of one subject
func (s *ChannelService) RemoveOverwrite(ctx context.Context, actorID, channelID string, kind model.SubjectKind, subject string) (*model.Channel, error) {
	var channel *model.Channel
	err := retryOnConflict(ctx, "update channel", func() error {
		scope, err := s.auth.forChannel(ctx, channelID, actorID)
		if err != nil {
			return err
		}
		if err := s.checkOverwritable(scope); err != nil {
			return err
		}

		channel = scope.Channel
		prev, ok := channel.Overwrite(kind, subject)
		if !ok {
			return ErrOverwriteNotFound
		}
		if err := checkGrant(s.bypassesGrant(scope), scope.Perms, prev.Overrides); err != nil {
			return err
		}
		channel.RemoveOverwrite(kind, subject)
		if err := s.pruneOverwrites(ctx, channel, scope.Server); err != nil {
			return err
		}
		return s.store.Channels.Update(ctx, channel)
	})
	if err != nil {
		return nil, writeErr("update channel", err, ErrChannelNotFound)
	}
	s.publishChannel(ctx, events.ChannelUpdated, channel)
	return channel, nil
}

func (s *ChannelService) checkOverwritable(scope *channelScope) error {
	switch scope.Channel.Kind {
	case model.ChannelKindDirectMessage, model.ChannelKindSavedNotes:
		return ErrNotChannelType
	}
	return scope.require(model.PermManagePermissions)
}

func (s *ChannelService) bypassesGrant(scope *channelScope) bool {
	if scope.Server != nil {
		return scope.Server.IsOwner(scope.ActorID)
	}
	return scope.Channel.OwnerID == scope.ActorID
}

// validateSubject checks that an overwrite names a role of the channel's
// server or a current member. Group overwrites may only name recipients.
func (s *ChannelService) validateSubject(ctx context.Context, channel *model.Channel, server *model.Server, ow model.Overwrite) error {
	ok, err := s.subjectExists(ctx, channel, server, ow)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOverwriteSubject
	}
	return nil
}

func (s *ChannelService) subjectExists(ctx context.Context, channel *model.Channel, server *model.Server, ow model.Overwrite) (bool, error) {
	switch {
	case channel.Kind == model.ChannelKindGroup:
		return ow.SubjectKind == model.SubjectUser && channel.HasRecipient(ow.Subject), nil
	case server == nil:
		return false, nil
	case ow.SubjectKind == model.SubjectRole:
		_, ok := server.Role(ow.Subject)
		return ok, nil
	case ow.SubjectKind == model.SubjectUser:
		member, err := s.auth.member(ctx, server.ID, ow.Subject)
		if err != nil {
			return false, err
		}
		return member != nil, nil
	}
	return false, nil
}

// pruneOverwrites drops overwrites whose subject was deleted or left
func (s *ChannelService) pruneOverwrites(ctx context.Context, channel *model.Channel, server *model.Server) error {
	kept := channel.Overwrites[:0]
	for _, ow := range channel.Overwrites {
		ok, err := s.subjectExists(ctx, channel, server, ow)
		if err != nil {
			return err
		}
		if !ok {
			slog.Debug("dropping stale overwrite",
				slog.String("channel_id", channel.ID),
				slog.String("subject", ow.Subject))
			continue
		}
		kept = append(kept, ow)
	}
	channel.Overwrites = kept
	return nil
}

// DeleteChannel deletes a server channel or a group with everything in it
func (s *ChannelService) DeleteChannel(ctx context.Context, actorID, channelID string) error {
	scope, err := s.auth.forChannel(ctx, channelID, actorID)
	if err != nil {
		return err
	}
	switch scope.Channel.Kind {
	case model.ChannelKindDirectMessage, model.ChannelKindSavedNotes:
		return ErrNotChannelType
	case model.ChannelKindGroup:
		if scope.Channel.OwnerID != actorID {
			return ErrNotOwner
		}
	default:
		if err := scope.require(model.PermManageChannel); err != nil {
			return err
		}
	}
	return s.purge(ctx, scope.Channel)
}

// Purge deletes any channel without an authorization check, for operators
func (s *ChannelService) Purge(ctx context.Context, channelID string) error {
	channel, err := s.auth.channel(ctx, channelID)
	if err != nil {
		return err
	}
	return s.purge(ctx, channel)
}

func (s *ChannelService) purge(ctx context.Context, channel *model.Channel) error {
	if err := channelCascade(s.store, channel).run(ctx, s.store); err != nil {
		return err
	}
	s.publishChannel(ctx, events.ChannelDeleted, channel)
	return nil
}

// OpenDirectMessage returns the direct message channel between the actor and
// another user, creating it on first use. Messaging oneself opens saved notes.
func (s *ChannelService) OpenDirectMessage(ctx context.Context, actorID, userID string) (*model.Channel, error) {
	if userID == actorID {
		return s.SavedNotes(ctx, actorID)
	}
	if _, err := s.auth.user(ctx, userID); err != nil {
		return nil, err
	}

	existing, err := s.store.Channels.FindDirectMessage(ctx, actorID, userID)
	if err != nil {
		return nil, storeErr("find direct message", err)
	}
	if existing != nil {
		return existing, nil
	}

	channel := &model.Channel{
		ID:         model.DirectMessageID(actorID, userID),
		Kind:       model.ChannelKindDirectMessage,
		Recipients: []string{actorID, userID},
		CreatedOn:  time.Now().UTC(),
	}
	created, err := s.createPrivate(ctx, channel)
	if err != nil {
		return nil, err
	}
	if created {
		s.publishChannel(ctx, events.ChannelCreated, channel)
	}
	return channel, nil
}

// SavedNotes returns the actor's saved notes channel, creating it on first use
func (s *ChannelService) SavedNotes(ctx context.Context, actorID string) (*model.Channel, error) {
	existing, err := s.store.Channels.FindSavedNotes(ctx, actorID)
	if err != nil {
		return nil, storeErr("find saved notes", err)
	}
	if existing != nil {
		return existing, nil
	}

	channel := &model.Channel{
		ID:         model.SavedNotesID(actorID),
		Kind:       model.ChannelKindSavedNotes,
		OwnerID:    actorID,
		Recipients: []string{actorID},
		CreatedOn:  time.Now().UTC(),
	}
	if _, err := s.createPrivate(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// createPrivate inserts a direct message or saved notes channel under its
// derived id. When a concurrent call won the insert, channel is replaced by
// the stored copy and created is false.
func (s *ChannelService) createPrivate(ctx context.Context, channel *model.Channel) (created bool, err error) {
	err = s.store.Channels.Create(ctx, channel)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, database.ErrDuplicate) {
		return false, storeErr("create channel", err)
	}
	stored, err := s.store.Channels.GetByID(ctx, channel.ID)
	if err != nil {
		return false, storeErr("get channel", err)
	}
	if stored == nil {
		return false, ErrChannelNotFound
	}
	*channel = *stored
	return false, nil
}

// CreateGroup creates a group owned by the actor
func (s *ChannelService) CreateGroup(ctx context.Context, actorID string, req *model.CreateGroupRequest) (*model.Channel, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	recipients := []string{actorID}
	for _, id := range model.UniqueIDs(req.Recipients) {
		if id == actorID {
			continue
		}
		if _, err := s.auth.user(ctx, id); err != nil {
			return nil, err
		}
		recipients = append(recipients, id)
	}
	return s.createGroup(ctx, actorID, req.Name, req.Description, recipients)
}

func (s *ChannelService) createGroup(ctx context.Context, ownerID, name, description string, recipients []string) (*model.Channel, error) {
	if len(recipients) > model.MaxGroupRecipients {
		return nil, ErrGroupFull
	}
	channel := &model.Channel{
		ID:          model.NewID(),
		Kind:        model.ChannelKindGroup,
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Recipients:  recipients,
		CreatedOn:   time.Now().UTC(),
	}
	if err := s.store.Channels.Create(ctx, channel); err != nil {
		return nil, storeErr("create channel", err)
	}
	s.publishChannel(ctx, events.ChannelCreated, channel)
	return channel, nil
}

// AddGroupRecipient adds a user to a group
func (s *ChannelService) AddGroupRecipient(ctx context.Context, actorID, channelID, userID string) (*model.Channel, error) {
	var channel *model.Channel
	err := retryOnConflict(ctx, "update channel", func() error {
		scope, err := s.auth.forChannel(ctx, channelID, actorID)
		if err != nil {
			return err
		}
		channel = scope.Channel
		if channel.Kind != model.ChannelKindGroup {
			return ErrNotChannelType
		}
		if err := scope.require(model.PermInviteOthers); err != nil {
			return err
		}
		if channel.HasRecipient(userID) {
			return ErrAlreadyRecipient
		}
		if len(channel.Recipients) >= model.MaxGroupRecipients {
			return ErrGroupFull
		}
		if _, err := s.auth.user(ctx, userID); err != nil {
			return err
		}

		channel.Recipients = append(channel.Recipients, userID)
		return s.store.Channels.Update(ctx, channel)
	})
	if err != nil {
		return nil, writeErr("update channel", err, ErrChannelNotFound)
	}
	s.publishChannel(ctx, events.RecipientAdded, channel)
	return channel, nil
}

// RemoveGroupRecipient removes a user from a group. Recipients may remove
// themselves; removing others is for the owner. An owner who leaves hands the
// group to the next recipient, and the last recipient leaving deletes it.
func (s *ChannelService) RemoveGroupRecipient(ctx context.Context, actorID, channelID, userID string) error {
	var channel *model.Channel
	purged := false
	err := retryOnConflict(ctx, "remove recipient", func() error {
		purged = false
		scope, err := s.auth.forChannel(ctx, channelID, actorID)
		if err != nil {
			return err
		}
		channel = scope.Channel
		if channel.Kind != model.ChannelKindGroup {
			return ErrNotChannelType
		}
		if userID != actorID && channel.OwnerID != actorID {
			return ErrNotOwner
		}
		if !channel.HasRecipient(userID) {
			return ErrRecipientNotFound
		}

		remaining := make([]string, 0, len(channel.Recipients))
		for _, id := range channel.Recipients {
			if id != userID {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == 0 {
			purged = true
			return s.purge(ctx, channel)
		}

		channel.Recipients = remaining
		if channel.OwnerID == userID {
			channel.OwnerID = remaining[0]
		}
		channel.RemoveOverwrite(model.SubjectUser, userID)

		return s.store.atomically(ctx, func(ctx context.Context) error {
			if err := s.store.Channels.Update(ctx, channel); err != nil {
				return err
			}
			return s.store.Unreads.DeleteForUser(ctx, userID, []string{channel.ID})
		})
	})
	if err != nil {
		return writeErr("remove recipient", err, ErrChannelNotFound)
	}
	if !purged {
		s.publishChannel(ctx, events.RecipientRemoved, channel)
	}
	return nil
}

func (s *ChannelService) publishChannel(ctx context.Context, t events.Type, channel *model.Channel) {
	if channel.ServerID != "" {
		publish(ctx, s.publisher, events.New(t, events.ScopeServer, channel.ServerID, channel))
		return
	}
	publish(ctx, s.publisher, events.New(t, events.ScopeChannel, channel.ID, channel))
}
