package repository

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// ChannelRepository handles channel data access. Overwrites live inside the
// channel record.
type ChannelRepository struct {
	db       database.Database
	channels table[model.Channel]
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db database.Database) *ChannelRepository {
	return &ChannelRepository{db: db, channels: newTable[model.Channel](db, "channel")}
}

// Create creates a channel. A server channel is only created while its
// server exists.
func (r *ChannelRepository) Create(ctx context.Context, channel *model.Channel) error {
	if channel.ServerID == "" {
		return r.channels.create(ctx, channel.ID, channel)
	}
	return r.channels.createUnder(ctx, "server", channel.ServerID, channel.ID, channel)
}

// GetByID retrieves a channel by ID
func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	return r.channels.get(ctx, id)
}

// Update writes the mutable fields of a channel if its stored version still
// equals channel.Version. The last message pointer is only written by
// AdvanceLastMessage and SwapLastMessage.
func (r *ChannelRepository) Update(ctx context.Context, channel *model.Channel) error {
	data, err := encodeRecord(channel)
	if err != nil {
		return err
	}

	query := versioned(`
		UPDATE type::thing($tb, $key) SET
			name = $name,
			description = $description,
			owner_id = $owner_id,
			recipients = $recipients,
			overwrites = $overwrites,
			version = $version + 1
	`)
	vars := map[string]interface{}{
		"tb":          "channel",
		"key":         channel.ID,
		"version":     channel.Version,
		"name":        channel.Name,
		"description": channel.Description,
		"owner_id":    channel.OwnerID,
		"recipients":  data["recipients"],
		"overwrites":  data["overwrites"],
	}
	if err := database.Exec(ctx, r.db, query, vars); err != nil {
		return err
	}
	channel.Version++
	return nil
}

// Delete deletes a channel
func (r *ChannelRepository) Delete(ctx context.Context, id string) error {
	return r.channels.delete(ctx, id)
}

// ListByServer lists a server's channels in creation order
func (r *ChannelRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Channel, error) {
	return r.channels.list(ctx, "server_id = $server_id", "key ASC",
		map[string]interface{}{"server_id": serverID})
}

// FindDirectMessage finds the direct message channel between two users
func (r *ChannelRepository) FindDirectMessage(ctx context.Context, userA, userB string) (*model.Channel, error) {
	return r.channels.first(ctx, "kind = 'direct_message' AND recipients CONTAINSALL $users",
		map[string]interface{}{"users": []string{userA, userB}})
}

// FindSavedNotes finds a user's saved notes channel
func (r *ChannelRepository) FindSavedNotes(ctx context.Context, userID string) (*model.Channel, error) {
	return r.channels.first(ctx, "kind = 'saved_notes' AND owner_id = $user_id",
		map[string]interface{}{"user_id": userID})
}

// AdvanceLastMessage moves the last message pointer forward only
func (r *ChannelRepository) AdvanceLastMessage(ctx context.Context, channelID, messageID string) error {
	query := `
		UPDATE type::thing('channel', $key)
		SET last_message_id = $message_id
		WHERE last_message_id = NONE OR last_message_id = NULL OR last_message_id < $message_id
	`
	return database.Exec(ctx, r.db, query, map[string]interface{}{
		"key":        channelID,
		"message_id": messageID,
	})
}

// SwapLastMessage sets the pointer to next if it still equals expected. It
// always runs immediately, outside any batch on ctx.
func (r *ChannelRepository) SwapLastMessage(ctx context.Context, channelID, expected string, next *string) (bool, error) {
	query := `
		UPDATE type::thing('channel', $key)
		SET last_message_id = $next
		WHERE last_message_id = $expected
		RETURN AFTER
	`
	var nextVal interface{}
	if next != nil {
		nextVal = *next
	}
	result, err := r.db.Query(ctx, query, map[string]interface{}{
		"key":      channelID,
		"expected": expected,
		"next":     nextVal,
	})
	if err != nil {
		return false, err
	}
	return affected(result), nil
}
