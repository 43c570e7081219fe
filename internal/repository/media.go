package repository

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// WebhookRepository handles webhook data access
type WebhookRepository struct {
	webhooks table[model.Webhook]
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db database.Database) *WebhookRepository {
	return &WebhookRepository{webhooks: newTable[model.Webhook](db, "webhook")}
}

// Create creates a webhook
func (r *WebhookRepository) Create(ctx context.Context, webhook *model.Webhook) error {
	return r.webhooks.createUnder(ctx, "channel", webhook.ChannelID, webhook.ID, webhook)
}

// GetByID retrieves a webhook by ID
func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*model.Webhook, error) {
	return r.webhooks.get(ctx, id)
}

// Delete deletes a webhook
func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	return r.webhooks.delete(ctx, id)
}

// ListByChannel lists the webhooks of a channel
func (r *WebhookRepository) ListByChannel(ctx context.Context, channelID string) ([]*model.Webhook, error) {
	return r.webhooks.list(ctx, "channel_id = $channel_id", "key ASC",
		map[string]interface{}{"channel_id": channelID})
}

// DeleteByChannel removes every webhook of a channel
func (r *WebhookRepository) DeleteByChannel(ctx context.Context, channelID string) error {
	return r.webhooks.deleteWhere(ctx, "channel_id = $channel_id", map[string]interface{}{"channel_id": channelID})
}

// EmojiRepository handles custom emoji data access
type EmojiRepository struct {
	emoji table[model.Emoji]
}

// NewEmojiRepository creates a new emoji repository
func NewEmojiRepository(db database.Database) *EmojiRepository {
	return &EmojiRepository{emoji: newTable[model.Emoji](db, "emoji")}
}

// Create creates an emoji
func (r *EmojiRepository) Create(ctx context.Context, emoji *model.Emoji) error {
	return r.emoji.createUnder(ctx, "server", emoji.ServerID, emoji.ID, emoji)
}

// GetByID retrieves an emoji by ID
func (r *EmojiRepository) GetByID(ctx context.Context, id string) (*model.Emoji, error) {
	return r.emoji.get(ctx, id)
}

// Delete deletes an emoji
func (r *EmojiRepository) Delete(ctx context.Context, id string) error {
	return r.emoji.delete(ctx, id)
}

// ListByServer lists the emoji of a server
func (r *EmojiRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Emoji, error) {
	return r.emoji.list(ctx, "server_id = $server_id", "key ASC",
		map[string]interface{}{"server_id": serverID})
}

// DeleteByServer removes every emoji of a server
func (r *EmojiRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.emoji.deleteWhere(ctx, "server_id = $server_id", map[string]interface{}{"server_id": serverID})
}

// InviteRepository handles invite data access. Records are keyed by code.
type InviteRepository struct {
	invites table[model.Invite]
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db database.Database) *InviteRepository {
	return &InviteRepository{invites: newTable[model.Invite](db, "invite")}
}

// Create creates an invite
func (r *InviteRepository) Create(ctx context.Context, invite *model.Invite) error {
	return r.invites.createUnder(ctx, "channel", invite.ChannelID, invite.Code, invite)
}

// GetByCode retrieves an invite
func (r *InviteRepository) GetByCode(ctx context.Context, code string) (*model.Invite, error) {
	return r.invites.get(ctx, code)
}

// Delete deletes an invite
func (r *InviteRepository) Delete(ctx context.Context, code string) error {
	return r.invites.delete(ctx, code)
}

// DeleteByServer removes every invite of a server
func (r *InviteRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.invites.deleteWhere(ctx, "server_id = $server_id", map[string]interface{}{"server_id": serverID})
}

// DeleteByChannel removes every invite pointing at a channel
func (r *InviteRepository) DeleteByChannel(ctx context.Context, channelID string) error {
	return r.invites.deleteWhere(ctx, "channel_id = $channel_id", map[string]interface{}{"channel_id": channelID})
}

// AttachmentRepository handles attachment metadata access
type AttachmentRepository struct {
	attachments table[model.Attachment]
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db database.Database) *AttachmentRepository {
	return &AttachmentRepository{attachments: newTable[model.Attachment](db, "attachment")}
}

// Create creates an attachment record
func (r *AttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	return r.attachments.create(ctx, attachment.ID, attachment)
}

// ListByMessage lists the attachments of a message
func (r *AttachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]*model.Attachment, error) {
	return r.attachments.list(ctx, "message_id = $message_id", "key ASC",
		map[string]interface{}{"message_id": messageID})
}

// DeleteByMessage removes the attachments of a message
func (r *AttachmentRepository) DeleteByMessage(ctx context.Context, messageID string) error {
	return r.attachments.deleteWhere(ctx, "message_id = $message_id", map[string]interface{}{"message_id": messageID})
}

// DeleteByParent removes every attachment owned by a channel or server
func (r *AttachmentRepository) DeleteByParent(ctx context.Context, parentID string) error {
	return r.attachments.deleteWhere(ctx, "parent_id = $parent_id", map[string]interface{}{"parent_id": parentID})
}
