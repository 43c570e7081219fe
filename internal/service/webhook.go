package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
)

const (
	webhookTokenBytes = 32
	bcryptCost        = 12
)

// WebhookService manages channel webhooks and posts on their behalf
type WebhookService struct {
	store     Store
	auth      authorizer
	publisher events.Publisher
	messages  *MessageService
	cost      int
}

// NewWebhookService creates a new webhook service
func NewWebhookService(store Store, publisher events.Publisher, messages *MessageService) *WebhookService {
	return &WebhookService{
		store:     store,
		auth:      authorizer{store: store},
		publisher: publisher,
		messages:  messages,
		cost:      bcryptCost,
	}
}

// CreateWebhook creates a webhook in a channel. The returned token is shown
// once; only its hash is stored.
func (s *WebhookService) CreateWebhook(ctx context.Context, actorID, channelID string, req *model.CreateWebhookRequest) (*model.Webhook, string, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, "", err
	}
	scope, err := s.auth.forChannel(ctx, channelID, actorID)
	if err != nil {
		return nil, "", err
	}
	switch scope.Channel.Kind {
	case model.ChannelKindDirectMessage, model.ChannelKindSavedNotes:
		return nil, "", ErrNotChannelType
	}
	if err := scope.require(model.PermManageWebhooks); err != nil {
		return nil, "", err
	}

	token, err := generateToken(webhookTokenBytes)
	if err != nil {
		return nil, "", model.NewStoreError("generate token", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.cost)
	if err != nil {
		return nil, "", model.NewStoreError("hash token", err)
	}

	webhook := &model.Webhook{
		ID:        model.NewID(),
		ChannelID: channelID,
		ServerID:  scope.Channel.ServerID,
		CreatorID: actorID,
		Name:      req.Name,
		TokenHash: hash,
		CreatedOn: time.Now().UTC(),
	}
	err = s.store.createUnder(ctx, s.store.channelExists(channelID), ErrChannelNotFound,
		func(ctx context.Context) error { return s.store.Webhooks.Create(ctx, webhook) },
		func(ctx context.Context) error { return s.store.Webhooks.Delete(ctx, webhook.ID) })
	if err != nil {
		return nil, "", storeErr("create webhook", err)
	}
	publish(ctx, s.publisher, events.New(events.WebhookCreated, events.ScopeChannel, channelID, redactWebhook(webhook)))
	return webhook, token, nil
}

// ListWebhooks returns the webhooks of a channel without their token hashes
func (s *WebhookService) ListWebhooks(ctx context.Context, actorID, channelID string) ([]*model.Webhook, error) {
	scope, err := s.auth.forChannel(ctx, channelID, actorID)
	if err != nil {
		return nil, err
	}
	if err := scope.require(model.PermManageWebhooks); err != nil {
		return nil, err
	}
	webhooks, err := s.store.Webhooks.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, storeErr("list webhooks", err)
	}
	for i, w := range webhooks {
		webhooks[i] = redactWebhook(w)
	}
	return webhooks, nil
}

// DeleteWebhook removes a webhook
func (s *WebhookService) DeleteWebhook(ctx context.Context, actorID, webhookID string) error {
	webhook, err := s.load(ctx, webhookID)
	if err != nil {
		return err
	}
	scope, err := s.auth.forChannel(ctx, webhook.ChannelID, actorID)
	if err != nil {
		return err
	}
	if err := scope.require(model.PermManageWebhooks); err != nil {
		return err
	}
	if err := s.store.Webhooks.Delete(ctx, webhookID); err != nil {
		return storeErr("delete webhook", err)
	}
	publish(ctx, s.publisher, events.New(events.WebhookDeleted, events.ScopeChannel, webhook.ChannelID,
		map[string]string{"webhook_id": webhookID}))
	return nil
}

// VerifyToken checks a webhook token and returns the webhook
func (s *WebhookService) VerifyToken(ctx context.Context, webhookID, token string) (*model.Webhook, error) {
	webhook, err := s.load(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(webhook.TokenHash, []byte(token)); err != nil {
		return nil, ErrInvalidToken
	}
	return webhook, nil
}

// Execute posts a message as the webhook
func (s *WebhookService) Execute(ctx context.Context, webhookID, token string, req *model.SendMessageRequest) (*model.Message, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}
	webhook, err := s.VerifyToken(ctx, webhookID, token)
	if err != nil {
		return nil, err
	}
	channel, err := s.auth.channel(ctx, webhook.ChannelID)
	if err != nil {
		return nil, err
	}
	return s.messages.post(ctx, channel, webhook.ID, req)
}

func (s *WebhookService) load(ctx context.Context, id string) (*model.Webhook, error) {
	webhook, err := s.store.Webhooks.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get webhook", err)
	}
	if webhook == nil {
		return nil, ErrWebhookNotFound
	}
	return webhook, nil
}

func redactWebhook(w *model.Webhook) *model.Webhook {
	c := *w
	c.TokenHash = nil
	return &c
}

// generateToken creates a cryptographically secure random hex token
func generateToken(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
