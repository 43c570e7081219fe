package memory

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// ChannelRepository stores channels with their embedded overwrites
type ChannelRepository struct{ s *Store }

// Create stores a new channel
func (r *ChannelRepository) Create(ctx context.Context, channel *model.Channel) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.channels[channel.ID]; ok {
			return database.ErrDuplicate
		}
		t.channels[channel.ID] = copyOf(channel)
		return nil
	})
}

// GetByID returns a channel by id
func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	var out *model.Channel
	r.s.read(ctx, func(t *tables) { out = copyOf(t.channels[id]) })
	return out, nil
}

// Update replaces a channel if its stored version still equals
// channel.Version. The last message pointer is owned by AdvanceLastMessage
// and SwapLastMessage and is never overwritten here.
func (r *ChannelRepository) Update(ctx context.Context, channel *model.Channel) error {
	return r.s.write(ctx, func(t *tables) error {
		prev, ok := t.channels[channel.ID]
		if !ok {
			return database.ErrNotFound
		}
		if prev.Version != channel.Version {
			return database.ErrConflict
		}
		channel.Version++
		next := copyOf(channel)
		next.LastMessageID = prev.LastMessageID
		t.channels[channel.ID] = next
		return nil
	})
}

// Delete removes a channel
func (r *ChannelRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(t *tables) error {
		delete(t.channels, id)
		return nil
	})
}

// ListByServer returns the channels of a server in creation order
func (r *ChannelRepository) ListByServer(ctx context.Context, serverID string) ([]*model.Channel, error) {
	var out []*model.Channel
	r.s.read(ctx, func(t *tables) {
		out = collect(t.channels,
			func(c *model.Channel) bool { return serverID != "" && c.ServerID == serverID },
			func(a, b *model.Channel) bool { return a.ID < b.ID })
	})
	return out, nil
}

// FindDirectMessage returns the direct message channel between two users
func (r *ChannelRepository) FindDirectMessage(ctx context.Context, userA, userB string) (*model.Channel, error) {
	var out *model.Channel
	r.s.read(ctx, func(t *tables) {
		for _, c := range t.channels {
			if c.Kind == model.ChannelKindDirectMessage && c.HasRecipient(userA) && c.HasRecipient(userB) {
				out = copyOf(c)
				return
			}
		}
	})
	return out, nil
}

// FindSavedNotes returns the saved notes channel of a user
func (r *ChannelRepository) FindSavedNotes(ctx context.Context, userID string) (*model.Channel, error) {
	var out *model.Channel
	r.s.read(ctx, func(t *tables) {
		for _, c := range t.channels {
			if c.Kind == model.ChannelKindSavedNotes && c.OwnerID == userID {
				out = copyOf(c)
				return
			}
		}
	})
	return out, nil
}

// AdvanceLastMessage moves the pointer forward only
func (r *ChannelRepository) AdvanceLastMessage(ctx context.Context, channelID, messageID string) error {
	return r.s.write(ctx, func(t *tables) error {
		c, ok := t.channels[channelID]
		if !ok {
			return nil
		}
		if c.LastMessageID == nil || model.CompareIDs(messageID, *c.LastMessageID) > 0 {
			id := messageID
			c.LastMessageID = &id
		}
		return nil
	})
}

// SwapLastMessage replaces the pointer if it still equals expected
func (r *ChannelRepository) SwapLastMessage(ctx context.Context, channelID, expected string, next *string) (bool, error) {
	swapped := false
	err := r.s.write(ctx, func(t *tables) error {
		c, ok := t.channels[channelID]
		if !ok || c.LastMessageID == nil || *c.LastMessageID != expected {
			return nil
		}
		if next == nil {
			c.LastMessageID = nil
		} else {
			id := *next
			c.LastMessageID = &id
		}
		swapped = true
		return nil
	})
	return swapped, err
}

// ListByRecipient returns the private channels userID receives, oldest first
func (r *ChannelRepository) ListByRecipient(userID string) []*model.Channel {
	var out []*model.Channel
	r.s.read(context.Background(), func(t *tables) {
		out = collect(t.channels,
			func(c *model.Channel) bool { return !c.Kind.IsServerScoped() && c.HasRecipient(userID) },
			func(a, b *model.Channel) bool { return a.ID < b.ID })
	})
	return out
}
