package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// Repositories return (nil, nil) for rows that do not exist. Create methods
// report an existing row as database.ErrDuplicate. List methods return a
// finite snapshot; calling again restarts the listing.
//
// Servers, members and channels are versioned: Update writes only if the
// stored version still equals the entity's Version, bumps it, and otherwise
// fails with database.ErrConflict. A missing row is database.ErrNotFound.

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}

// ServerRepository defines the interface for server storage. Roles are
// embedded in the server record.
type ServerRepository interface {
	Create(ctx context.Context, server *model.Server) error
	GetByID(ctx context.Context, id string) (*model.Server, error)
	Update(ctx context.Context, server *model.Server) error
	Delete(ctx context.Context, id string) error
}

// MemberRepository defines the interface for membership storage
type MemberRepository interface {
	Create(ctx context.Context, member *model.Member) error
	Get(ctx context.Context, serverID, userID string) (*model.Member, error)
	Update(ctx context.Context, member *model.Member) error
	Delete(ctx context.Context, serverID, userID string) error
	ListByServer(ctx context.Context, serverID string) ([]*model.Member, error)
	DeleteByServer(ctx context.Context, serverID string) error
}

// BanRepository defines the interface for ban storage
type BanRepository interface {
	Create(ctx context.Context, ban *model.Ban) error
	Get(ctx context.Context, serverID, userID string) (*model.Ban, error)
	Delete(ctx context.Context, serverID, userID string) error
	ListByServer(ctx context.Context, serverID string) ([]*model.Ban, error)
	DeleteByServer(ctx context.Context, serverID string) error
}

// ChannelRepository defines the interface for channel storage. Overwrites
// are embedded in the channel record.
type ChannelRepository interface {
	Create(ctx context.Context, channel *model.Channel) error
	GetByID(ctx context.Context, id string) (*model.Channel, error)
	Update(ctx context.Context, channel *model.Channel) error
	Delete(ctx context.Context, id string) error
	ListByServer(ctx context.Context, serverID string) ([]*model.Channel, error)
	FindDirectMessage(ctx context.Context, userA, userB string) (*model.Channel, error)
	FindSavedNotes(ctx context.Context, userID string) (*model.Channel, error)

	// AdvanceLastMessage moves the last message pointer to messageID unless
	// it already points at a later message
	AdvanceLastMessage(ctx context.Context, channelID, messageID string) error
	// SwapLastMessage sets the pointer to next only if it still equals
	// expected, and reports whether it did
	SwapLastMessage(ctx context.Context, channelID, expected string, next *string) (bool, error)
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	// Create persists the message and records it in the channel's ledger
	Create(ctx context.Context, message *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	Update(ctx context.Context, message *model.Message) error
	Delete(ctx context.Context, id string) error
	// Latest returns the most recent message remaining in the channel
	Latest(ctx context.Context, channelID string) (*model.Message, error)
	// HasExisted reports whether the message was ever created in the
	// channel, even if it has since been deleted
	HasExisted(ctx context.Context, channelID, messageID string) (bool, error)
	// DeleteByChannel removes every message of the channel and its ledger
	DeleteByChannel(ctx context.Context, channelID string) error
}

// WebhookRepository defines the interface for webhook storage
type WebhookRepository interface {
	Create(ctx context.Context, webhook *model.Webhook) error
	GetByID(ctx context.Context, id string) (*model.Webhook, error)
	Delete(ctx context.Context, id string) error
	ListByChannel(ctx context.Context, channelID string) ([]*model.Webhook, error)
	DeleteByChannel(ctx context.Context, channelID string) error
}

// EmojiRepository defines the interface for custom emoji storage
type EmojiRepository interface {
	Create(ctx context.Context, emoji *model.Emoji) error
	GetByID(ctx context.Context, id string) (*model.Emoji, error)
	Delete(ctx context.Context, id string) error
	ListByServer(ctx context.Context, serverID string) ([]*model.Emoji, error)
	DeleteByServer(ctx context.Context, serverID string) error
}

// InviteRepository defines the interface for invite storage
type InviteRepository interface {
	Create(ctx context.Context, invite *model.Invite) error
	GetByCode(ctx context.Context, code string) (*model.Invite, error)
	Delete(ctx context.Context, code string) error
	DeleteByServer(ctx context.Context, serverID string) error
	DeleteByChannel(ctx context.Context, channelID string) error
}

// AttachmentRepository defines the interface for attachment metadata storage
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *model.Attachment) error
	ListByMessage(ctx context.Context, messageID string) ([]*model.Attachment, error)
	DeleteByMessage(ctx context.Context, messageID string) error
	DeleteByParent(ctx context.Context, parentID string) error
}

// UnreadRepository defines the interface for read state storage
type UnreadRepository interface {
	Get(ctx context.Context, userID, channelID string) (*model.UnreadState, error)
	ListByChannel(ctx context.Context, channelID string) ([]*model.UnreadState, error)
	// CompareAndSwap writes next only if the stored row still carries
	// prev's version. A nil prev creates the row only if it is absent.
	CompareAndSwap(ctx context.Context, prev, next *model.UnreadState) (bool, error)
	DeleteByChannel(ctx context.Context, channelID string) error
	DeleteForUser(ctx context.Context, userID string, channelIDs []string) error
}

// Transactor runs fn so that every store write it makes commits together
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories the core consumes. Tx is optional: when nil,
// multi-entity operations run as ordered idempotent steps and a failure part
// way leaves only entities that a retry will remove.
type Store struct {
	Users       UserRepository
	Servers     ServerRepository
	Members     MemberRepository
	Bans        BanRepository
	Channels    ChannelRepository
	Messages    MessageRepository
	Webhooks    WebhookRepository
	Emoji       EmojiRepository
	Invites     InviteRepository
	Attachments AttachmentRepository
	Unreads     UnreadRepository
	Tx          Transactor
}

// atomically runs fn inside a store transaction when one is available
func (s Store) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithinTransaction(ctx, fn)
}

// writeAttempts bounds the read-modify-write rounds on one versioned record
const writeAttempts = 8

// retryOnConflict reruns fn while it loses a versioned write. A row deleted
// under the write also earns another round, whose reload reports it gone.
// fn must reload and re-authorize everything it writes on each call.
func retryOnConflict(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if !errors.Is(err, database.ErrConflict) && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		slog.Debug("versioned write lost, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt+1))
	}
	return ErrConcurrentUpdate
}

// createUnder runs create and then checks that the parent still exists, all
// in one transaction. A parent deleted after authorization makes undo remove
// what create wrote and the call fail with gone.
func (s Store) createUnder(ctx context.Context, parentExists func(ctx context.Context) (bool, error), gone error, create, undo func(ctx context.Context) error) error {
	err := s.atomically(ctx, func(ctx context.Context) error {
		if err := create(ctx); err != nil {
			return err
		}
		ok, err := parentExists(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := undo(ctx); err != nil {
			return err
		}
		return gone
	})
	if errors.Is(err, database.ErrNotFound) {
		return gone
	}
	return err
}

func (s Store) serverExists(id string) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		server, err := s.Servers.GetByID(ctx, id)
		return server != nil, err
	}
}

func (s Store) channelExists(id string) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		channel, err := s.Channels.GetByID(ctx, id)
		return channel != nil, err
	}
}
