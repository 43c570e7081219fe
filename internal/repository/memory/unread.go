package memory

import (
	"context"

	"github.com/forgo/chatcore/internal/model"
)

// UnreadRepository stores read state keyed by (user, channel)
type UnreadRepository struct{ s *Store }

// Get returns the read state of a user in a channel
func (r *UnreadRepository) Get(ctx context.Context, userID, channelID string) (*model.UnreadState, error) {
	var out *model.UnreadState
	r.s.read(ctx, func(t *tables) { out = copyOf(t.unreads[pairKey{userID, channelID}]) })
	return out, nil
}

// ListByChannel returns every read state of a channel
func (r *UnreadRepository) ListByChannel(ctx context.Context, channelID string) ([]*model.UnreadState, error) {
	var out []*model.UnreadState
	r.s.read(ctx, func(t *tables) {
		out = collect(t.unreads,
			func(u *model.UnreadState) bool { return u.ChannelID == channelID },
			func(a, b *model.UnreadState) bool { return a.UserID < b.UserID })
	})
	return out, nil
}

// CompareAndSwap writes next if the stored version still matches prev
func (r *UnreadRepository) CompareAndSwap(ctx context.Context, prev, next *model.UnreadState) (bool, error) {
	swapped := false
	err := r.s.write(ctx, func(t *tables) error {
		key := pairKey{next.UserID, next.ChannelID}
		cur, exists := t.unreads[key]
		switch {
		case prev == nil && exists:
			return nil
		case prev != nil && (!exists || cur.Version != prev.Version):
			return nil
		}
		t.unreads[key] = copyOf(next)
		swapped = true
		return nil
	})
	return swapped, err
}

// DeleteByChannel removes every read state of a channel
func (r *UnreadRepository) DeleteByChannel(ctx context.Context, channelID string) error {
	return r.s.write(ctx, func(t *tables) error {
		for k, u := range t.unreads {
			if u.ChannelID == channelID {
				delete(t.unreads, k)
			}
		}
		return nil
	})
}

// DeleteForUser removes a user's read state in the given channels
func (r *UnreadRepository) DeleteForUser(ctx context.Context, userID string, channelIDs []string) error {
	return r.s.write(ctx, func(t *tables) error {
		for _, id := range channelIDs {
			delete(t.unreads, pairKey{userID, id})
		}
		return nil
	})
}

// Count returns the number of read state rows, for tests and diagnostics
func (r *UnreadRepository) Count() int {
	n := 0
	r.s.read(context.Background(), func(t *tables) { n = len(t.unreads) })
	return n
}
