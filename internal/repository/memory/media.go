package memory

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// WebhookRepository stores webhooks
type WebhookRepository struct{ s *Store }

// Create stores a webhook
func (r *WebhookRepository) Create(ctx context.Context, webhook *model.Webhook) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.webhooks[webhook.ID]; ok {
			return database.ErrDuplicate
		}
		t.webhooks[webhook.ID] = copyOf(webhook)
		return nil
	})
}

// GetByID returns a webhook by id
func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*model.Webhook, error) {
	var out *model.Webhook
	r.s.read(ctx, func(t *tables) { out = copyOf(t.webhooks[id]) })
	return out, nil
}

// Delete removes a webhook
func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(t *tables) error {
		delete(t.webhooks, id)
		return nil
	})
}

// ListByChannel returns the webhooks of a channel
func (r *WebhookRepository) ListByChannel(ctx context.Context, channelID string) ([]*model.Webhook, error) {
	var out []*model.Webhook
	r.s.read(ctx, func(t *tables) {
		out = collect(t.webhooks,
			func(w *model.Webhook) bool { return w.ChannelID == channelID },
			func(a, b *model.Webhook) bool { return a.ID < b.ID })
	})
	return out, nil
}

// DeleteByChannel removes every webhook of a channel
func (r *WebhookRepository) DeleteByChannel(ctx context.Context, channelID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, w := range t.webhooks {
			if w.ChannelID == channelID {
				delete(t.webhooks, id)
			}
		}
		return nil
	})
}

// EmojiRepository stores custom emoji
type EmojiRepository struct{ s *Store }

// Create stores an emoji
func (r *EmojiRepository) Create(ctx context.Context, emoji *model.Emoji) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.emoji[emoji.ID]; ok {
			return database.ErrDuplicate
		}
		t.emoji[emoji.ID] = copyOf(emoji)
		return nil
	})
}

// GetByID returns an emoji by id
func (r *EmojiRepository) GetByID(ctx context.Context, id string) (*model.Emoji, error) {
	var out *model.Emoji
	r.s.read(ctx, func(t *tables) { out = copyOf(t.emoji[id]) })
	return out, nil
}

// Delete removes an emoji
func (r *EmojiRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(t *tables) error {
		delete(t.emoji, id)
		return nil
	})
}

// ListByServer returns the emoji of a server
func (r *EmojiRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Emoji, error) {
	var out []*model.Emoji
	r.s.read(ctx, func(t *tables) {
		out = collect(t.emoji,
			func(e *model.Emoji) bool { return e.ServerID == serverID },
			func(a, b *model.Emoji) bool { return a.ID < b.ID })
	})
	return out, nil
}

// DeleteByServer removes every emoji of a server
func (r *EmojiRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, e := range t.emoji {
			if e.ServerID == serverID {
				delete(t.emoji, id)
			}
		}
		return nil
	})
}

// InviteRepository stores invites keyed by code
type InviteRepository struct{ s *Store }

// Create stores an invite
func (r *InviteRepository) Create(ctx context.Context, invite *model.Invite) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.invites[invite.Code]; ok {
			return database.ErrDuplicate
		}
		t.invites[invite.Code] = copyOf(invite)
		return nil
	})
}

// GetByCode returns an invite
func (r *InviteRepository) GetByCode(ctx context.Context, code string) (*model.Invite, error) {
	var out *model.Invite
	r.s.read(ctx, func(t *tables) { out = copyOf(t.invites[code]) })
	return out, nil
}

// Delete removes an invite
func (r *InviteRepository) Delete(ctx context.Context, code string) error {
	return r.s.write(ctx, func(t *tables) error {
		delete(t.invites, code)
		return nil
	})
}

// DeleteByServer removes every invite of a server
func (r *InviteRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for code, inv := range t.invites {
			if inv.ServerID == serverID {
				delete(t.invites, code)
			}
		}
		return nil
	})
}

// DeleteByChannel removes every invite pointing at a channel
func (r *InviteRepository) DeleteByChannel(ctx context.Context, channelID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for code, inv := range t.invites {
			if inv.ChannelID == channelID {
				delete(t.invites, code)
			}
		}
		return nil
	})
}

// AttachmentRepository stores attachment metadata
type AttachmentRepository struct{ s *Store }

// Create stores an attachment
func (r *AttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.attachments[attachment.ID]; ok {
			return database.ErrDuplicate
		}
		t.attachments[attachment.ID] = copyOf(attachment)
		return nil
	})
}

// ListByMessage returns the attachments of a message
func (r *AttachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]*model.Attachment, error) {
	var out []*model.Attachment
	r.s.read(ctx, func(t *tables) {
		out = collect(t.attachments,
			func(a *model.Attachment) bool { return a.MessageID == messageID },
			func(a, b *model.Attachment) bool { return a.ID < b.ID })
	})
	return out, nil
}

// DeleteByMessage removes the attachments of a message
func (r *AttachmentRepository) DeleteByMessage(ctx context.Context, messageID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, a := range t.attachments {
			if a.MessageID == messageID {
				delete(t.attachments, id)
			}
		}
		return nil
	})
}

// DeleteByParent removes every attachment owned by a channel or server
func (r *AttachmentRepository) DeleteByParent(ctx context.Context, parentID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, a := range t.attachments {
			if a.ParentID == parentID {
				delete(t.attachments, id)
			}
		}
		return nil
	})
}
