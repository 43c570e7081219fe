package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
)

// UnreadService keeps per (user, channel) read markers and pending mentions.
//
// Every write is a compare-and-swap on the row version, retried on
// contention. Mention insertion ignores messages at or before the read
// marker and the marker only moves forward, so concurrent sends and
// acknowledgements converge by message id order whatever order they land in.
type UnreadService struct {
	store     Store
	auth      authorizer
	publisher events.Publisher
	opts      Options
}

// NewUnreadService creates a new unread service
func NewUnreadService(store Store, publisher events.Publisher, opts Options) *UnreadService {
	return &UnreadService{
		store:     store,
		auth:      authorizer{store: store},
		publisher: publisher,
		opts:      opts.withDefaults(),
	}
}

// mutation edits a read state in place and reports whether it changed
type mutation func(state *model.UnreadState) bool

// update applies fn to the stored state of (userID, channelID) until the
// write wins. When create is false an absent row is left absent.
func (s *UnreadService) update(ctx context.Context, userID, channelID string, create bool, fn mutation) (*model.UnreadState, error) {
	for attempt := 0; attempt < s.opts.CASRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prev, err := s.store.Unreads.Get(ctx, userID, channelID)
		if err != nil {
			return nil, storeErr("get read state", err)
		}

		var next *model.UnreadState
		if prev == nil {
			if !create {
				return nil, nil
			}
			next = model.NewUnreadState(userID, channelID)
			next.Version = 1
			fn(next)
		} else {
			next = prev.Clone()
			if !fn(next) {
				return prev, nil
			}
		}

		ok, err := s.store.Unreads.CompareAndSwap(ctx, prev, next)
		if err != nil {
			return nil, storeErr("write read state", err)
		}
		if ok {
			return next, nil
		}
		slog.Debug("read state write lost, retrying",
			slog.String("user_id", userID),
			slog.String("channel_id", channelID),
			slog.Int("attempt", attempt+1))
	}
	return nil, ErrUnreadConflict
}

// recipients returns everyone who receives messages in the channel
func (s *UnreadService) recipients(ctx context.Context, channel *model.Channel) ([]string, error) {
	if !channel.Kind.IsServerScoped() {
		return channel.Recipients, nil
	}
	members, err := s.store.Members.ListByServer(ctx, channel.ServerID)
	if err != nil {
		return nil, storeErr("list members", err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

// fanout runs fn for every user with bounded concurrency and returns the
// first failure after all have run
func (s *UnreadService) fanout(ctx context.Context, users []string, fn func(ctx context.Context, userID string) error) error {
	var g errgroup.Group
	g.SetLimit(s.opts.FanoutLimit)
	for _, userID := range users {
		g.Go(func() error {
			return fn(ctx, userID)
		})
	}
	return g.Wait()
}

// OnMessageCreated ensures every recipient except the author has a read
// state row for the channel and records the message as pending for those it
// mentions
func (s *UnreadService) OnMessageCreated(ctx context.Context, channel *model.Channel, message *model.Message) error {
	users, err := s.recipients(ctx, channel)
	if err != nil {
		return err
	}
	mentioned := make(map[string]struct{}, len(message.Mentions))
	for _, id := range message.Mentions {
		mentioned[id] = struct{}{}
	}

	targets := make([]string, 0, len(users))
	for _, id := range users {
		if id != message.AuthorID {
			targets = append(targets, id)
		}
	}

	return s.fanout(ctx, targets, func(ctx context.Context, userID string) error {
		_, isMentioned := mentioned[userID]
		_, err := s.update(ctx, userID, channel.ID, true, func(state *model.UnreadState) bool {
			if !isMentioned {
				return false
			}
			return state.AddMention(message.ID, s.opts.MaxMentions)
		})
		return err
	})
}

// OnMessageDeleted removes the message from every pending mention set.
// Read markers are left where they are.
func (s *UnreadService) OnMessageDeleted(ctx context.Context, message *model.Message) error {
	states, err := s.store.Unreads.ListByChannel(ctx, message.ChannelID)
	if err != nil {
		return storeErr("list read state", err)
	}
	var users []string
	for _, st := range states {
		if st.HasMention(message.ID) {
			users = append(users, st.UserID)
		}
	}
	return s.fanout(ctx, users, func(ctx context.Context, userID string) error {
		_, err := s.update(ctx, userID, message.ChannelID, false, func(state *model.UnreadState) bool {
			return state.RemoveMention(message.ID)
		})
		return err
	})
}

// OnMentionsChanged applies the mention diff of an edit. Only current
// recipients other than the author gain mentions.
func (s *UnreadService) OnMentionsChanged(ctx context.Context, channel *model.Channel, message *model.Message, diff model.MentionDiff) error {
	if diff.Empty() {
		return nil
	}
	users, err := s.recipients(ctx, channel)
	if err != nil {
		return err
	}
	current := make(map[string]struct{}, len(users))
	for _, id := range users {
		current[id] = struct{}{}
	}

	var added []string
	for _, id := range diff.Added {
		if _, ok := current[id]; ok && id != message.AuthorID {
			added = append(added, id)
		}
	}

	err = s.fanout(ctx, added, func(ctx context.Context, userID string) error {
		_, err := s.update(ctx, userID, channel.ID, true, func(state *model.UnreadState) bool {
			return state.AddMention(message.ID, s.opts.MaxMentions)
		})
		return err
	})
	if err != nil {
		return err
	}
	return s.fanout(ctx, diff.Removed, func(ctx context.Context, userID string) error {
		_, err := s.update(ctx, userID, channel.ID, false, func(state *model.UnreadState) bool {
			return state.RemoveMention(message.ID)
		})
		return err
	})
}

// Acknowledge marks everything up to messageID as read for the actor. The
// message must have existed in the channel at some point.
func (s *UnreadService) Acknowledge(ctx context.Context, actorID, channelID, messageID string) (*model.UnreadState, error) {
	scope, err := s.auth.forChannel(ctx, channelID, actorID)
	if err != nil {
		return nil, err
	}
	if err := scope.require(model.PermViewChannel); err != nil {
		return nil, err
	}
	existed, err := s.store.Messages.HasExisted(ctx, channelID, messageID)
	if err != nil {
		return nil, storeErr("check message", err)
	}
	if !existed {
		return nil, ErrStaleAcknowledgement
	}

	state, err := s.update(ctx, actorID, channelID, true, func(state *model.UnreadState) bool {
		return state.Acknowledge(messageID)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.New(events.UnreadAcknowledged, events.ScopeUser, actorID, state))
	return state, nil
}

// State returns the actor's read state in a channel. A channel with no row
// yet reads as nothing read and nothing pending.
func (s *UnreadService) State(ctx context.Context, userID, channelID string) (*model.UnreadState, error) {
	state, err := s.store.Unreads.Get(ctx, userID, channelID)
	if err != nil {
		return nil, storeErr("get read state", err)
	}
	if state == nil {
		return model.NewUnreadState(userID, channelID), nil
	}
	return state, nil
}
