package memory

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// MessageRepository stores messages and the ledger of every id a channel has held
type MessageRepository struct{ s *Store }

// Create stores a message and records it in the ledger
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.messages[message.ID]; ok {
			return database.ErrDuplicate
		}
		t.messages[message.ID] = copyOf(message)
		t.ledger[pairKey{message.ChannelID, message.ID}] = struct{}{}
		return nil
	})
}

// GetByID returns a message by id
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var out *model.Message
	r.s.read(ctx, func(t *tables) { out = copyOf(t.messages[id]) })
	return out, nil
}

// Update replaces a message
func (r *MessageRepository) Update(ctx context.Context, message *model.Message) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.messages[message.ID]; !ok {
			return database.ErrNotFound
		}
		t.messages[message.ID] = copyOf(message)
		return nil
	})
}

// Delete removes a message. Its ledger entry is kept.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(t *tables) error {
		delete(t.messages, id)
		return nil
	})
}

// Latest returns the newest remaining message of a channel
func (r *MessageRepository) Latest(ctx context.Context, channelID string) (*model.Message, error) {
	var out *model.Message
	r.s.read(ctx, func(t *tables) {
		var latest *model.Message
		for _, m := range t.messages {
			if m.ChannelID != channelID {
				continue
			}
			if latest == nil || model.CompareIDs(m.ID, latest.ID) > 0 {
				latest = m
			}
		}
		out = copyOf(latest)
	})
	return out, nil
}

// HasExisted reports whether the ledger holds the message for the channel
func (r *MessageRepository) HasExisted(ctx context.Context, channelID, messageID string) (bool, error) {
	var ok bool
	r.s.read(ctx, func(t *tables) { _, ok = t.ledger[pairKey{channelID, messageID}] })
	return ok, nil
}

// DeleteByChannel removes every message of a channel and its ledger
func (r *MessageRepository) DeleteByChannel(ctx context.Context, channelID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for id, m := range t.messages {
			if m.ChannelID == channelID {
				delete(t.messages, id)
			}
		}
		for k := range t.ledger {
			if k.a == channelID {
				delete(t.ledger, k)
			}
		}
		return nil
	})
}

// Count returns the number of stored messages in a channel
func (r *MessageRepository) Count(channelID string) int {
	n := 0
	r.s.read(context.Background(), func(t *tables) {
		for _, m := range t.messages {
			if m.ChannelID == channelID {
				n++
			}
		}
	})
	return n
}
