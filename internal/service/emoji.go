package service

import (
	"context"
	"time"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
)

// EmojiService manages custom server emoji
type EmojiService struct {
	store     Store
	auth      authorizer
	publisher events.Publisher
}

// NewEmojiService creates a new emoji service
func NewEmojiService(store Store, publisher events.Publisher) *EmojiService {
	return &EmojiService{
		store:     store,
		auth:      authorizer{store: store},
		publisher: publisher,
	}
}

// CreateEmoji adds a custom emoji to a server
func (s *EmojiService) CreateEmoji(ctx context.Context, actorID, serverID string, req *model.CreateEmojiRequest) (*model.Emoji, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	scope, err := s.auth.forServer(ctx, serverID, actorID)
	if err != nil {
		return nil, err
	}
	if err := scope.require(model.PermManageCustomisation); err != nil {
		return nil, err
	}

	emoji := &model.Emoji{
		ID:        model.NewID(),
		ServerID:  serverID,
		CreatorID: actorID,
		Name:      req.Name,
		Animated:  req.Animated,
		CreatedOn: time.Now().UTC(),
	}
	err = s.store.createUnder(ctx, s.store.serverExists(serverID), ErrServerNotFound,
		func(ctx context.Context) error { return s.store.Emoji.Create(ctx, emoji) },
		func(ctx context.Context) error { return s.store.Emoji.Delete(ctx, emoji.ID) })
	if err != nil {
		return nil, storeErr("create emoji", err)
	}
	publish(ctx, s.publisher, events.New(events.EmojiCreated, events.ScopeServer, serverID, emoji))
	return emoji, nil
}

// ListEmoji returns the custom emoji of a server
func (s *EmojiService) ListEmoji(ctx context.Context, serverID string) ([]*model.Emoji, error) {
	emoji, err := s.store.Emoji.ListByServer(ctx, serverID)
	if err != nil {
		return nil, storeErr("list emoji", err)
	}
	return emoji, nil
}

// DeleteEmoji removes a custom emoji. Its creator may always delete it.
func (s *EmojiService) DeleteEmoji(ctx context.Context, actorID, emojiID string) error {
	emoji, err := s.store.Emoji.GetByID(ctx, emojiID)
	if err != nil {
		return storeErr("get emoji", err)
	}
	if emoji == nil {
		return ErrEmojiNotFound
	}
	if emoji.CreatorID != actorID {
		scope, err := s.auth.forServer(ctx, emoji.ServerID, actorID)
		if err != nil {
			return err
		}
		if err := scope.require(model.PermManageCustomisation); err != nil {
			return err
		}
	}

	if err := s.store.Emoji.Delete(ctx, emojiID); err != nil {
		return storeErr("delete emoji", err)
	}
	publish(ctx, s.publisher, events.New(events.EmojiDeleted, events.ScopeServer, emoji.ServerID,
		map[string]string{"emoji_id": emojiID}))
	return nil
}
