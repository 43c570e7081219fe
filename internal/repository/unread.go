package repository

import (
	"context"
	"errors"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// UnreadRepository handles read state data access. Records are keyed by
// [user_id, channel_id] and carry a version for optimistic concurrency.
type UnreadRepository struct {
	db      database.Database
	unreads table[model.UnreadState]
}

// NewUnreadRepository creates a new unread repository
func NewUnreadRepository(db database.Database) *UnreadRepository {
	return &UnreadRepository{db: db, unreads: newTable[model.UnreadState](db, "unread")}
}

// Get retrieves the read state of a user in a channel
func (r *UnreadRepository) Get(ctx context.Context, userID, channelID string) (*model.UnreadState, error) {
	return r.unreads.get(ctx, []string{userID, channelID})
}

// ListByChannel lists every read state of a channel
func (r *UnreadRepository) ListByChannel(ctx context.Context, channelID string) ([]*model.UnreadState, error) {
	return r.unreads.list(ctx, "channel_id = $channel_id", "user_id ASC",
		map[string]interface{}{"channel_id": channelID})
}

// CompareAndSwap writes next if the stored version still equals prev's.
// It always runs immediately, outside any batch on ctx.
func (r *UnreadRepository) CompareAndSwap(ctx context.Context, prev, next *model.UnreadState) (bool, error) {
	data, err := encodeRecord(next)
	if err != nil {
		return false, err
	}
	key := []string{next.UserID, next.ChannelID}

	if prev == nil {
		query := `CREATE type::thing('unread', $key) CONTENT $data`
		_, err := r.db.Query(ctx, query, map[string]interface{}{"key": key, "data": data})
		if errors.Is(err, database.ErrDuplicate) {
			return false, nil
		}
		return err == nil, err
	}

	query := `UPDATE type::thing('unread', $key) CONTENT $data WHERE version = $version RETURN AFTER`
	result, err := r.db.Query(ctx, query, map[string]interface{}{
		"key":     key,
		"data":    data,
		"version": prev.Version,
	})
	if err != nil {
		return false, err
	}
	return affected(result), nil
}

// DeleteByChannel removes every read state of a channel
func (r *UnreadRepository) DeleteByChannel(ctx context.Context, channelID string) error {
	return r.unreads.deleteWhere(ctx, "channel_id = $channel_id", map[string]interface{}{"channel_id": channelID})
}

// DeleteForUser removes a user's read state in the given channels
func (r *UnreadRepository) DeleteForUser(ctx context.Context, userID string, channelIDs []string) error {
	if len(channelIDs) == 0 {
		return nil
	}
	return r.unreads.deleteWhere(ctx, "user_id = $user_id AND channel_id IN $channel_ids", map[string]interface{}{
		"user_id":     userID,
		"channel_ids": channelIDs,
	})
}
