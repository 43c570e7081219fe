package repository

import (
	"context"
	"errors"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// ledgerEntry remembers that a message id existed in a channel
type ledgerEntry struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// MessageRepository handles message data access. Every created message is
// also written to message_ledger, which outlives the message itself.
type MessageRepository struct {
	db       database.Database
	messages table[model.Message]
	ledger   table[ledgerEntry]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db database.Database) *MessageRepository {
	return &MessageRepository{
		db:       db,
		messages: newTable[model.Message](db, "message"),
		ledger:   newTable[ledgerEntry](db, "message_ledger"),
	}
}

// Create persists a message and its ledger entry atomically, only while the
// channel exists. A missing channel surfaces as database.ErrNotFound.
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	data, err := encodeRecord(message)
	if err != nil {
		return err
	}

	batch := database.NewAtomicBatch()
	batch.Add(parentGuard, map[string]interface{}{"parent_tb": "channel", "parent": message.ChannelID})
	batch.Add(`CREATE type::thing('message', $key) CONTENT $data`, map[string]interface{}{
		"key":  message.ID,
		"data": data,
	})
	batch.Add(`UPSERT type::thing('message_ledger', [$channel_id, $message_id]) CONTENT {
		channel_id: $channel_id,
		message_id: $message_id
	}`, map[string]interface{}{
		"channel_id": message.ChannelID,
		"message_id": message.ID,
	})
	return batch.Execute(ctx, r.db)
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	return r.messages.get(ctx, id)
}

// Update replaces a message
func (r *MessageRepository) Update(ctx context.Context, message *model.Message) error {
	return r.messages.replace(ctx, message.ID, message)
}

// Delete deletes a message. The ledger entry stays.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	return r.messages.delete(ctx, id)
}

// Latest returns the newest remaining message of a channel
func (r *MessageRepository) Latest(ctx context.Context, channelID string) (*model.Message, error) {
	query := `SELECT * OMIT id FROM message WHERE channel_id = $channel_id ORDER BY key DESC LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"channel_id": channelID})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRecord[model.Message](result)
}

// HasExisted reports whether the ledger holds the message for the channel
func (r *MessageRepository) HasExisted(ctx context.Context, channelID, messageID string) (bool, error) {
	entry, err := r.ledger.get(ctx, []string{channelID, messageID})
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// DeleteByChannel removes every message of a channel and its ledger
func (r *MessageRepository) DeleteByChannel(ctx context.Context, channelID string) error {
	batch := database.NewAtomicBatch()
	vars := map[string]interface{}{"channel_id": channelID}
	batch.Add(`DELETE message WHERE channel_id = $channel_id`, vars)
	batch.Add(`DELETE message_ledger WHERE channel_id = $channel_id`, vars)
	return batch.Execute(ctx, r.db)
}
