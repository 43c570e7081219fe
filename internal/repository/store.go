package repository

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/service"
)

// Transactor runs functions inside a batch transaction carried on the context
type Transactor struct {
	db database.Database
}

// NewTransactor creates a transactor for db
func NewTransactor(db database.Database) *Transactor {
	return &Transactor{db: db}
}

// WithinTransaction buffers every repository write fn makes and commits them together
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.RunInTx(ctx, t.db, fn)
}

// NewStore wires every SurrealDB repository into a service.Store
func NewStore(db database.Database) service.Store {
	return service.Store{
		Users:       NewUserRepository(db),
		Servers:     NewServerRepository(db),
		Members:     NewMemberRepository(db),
		Bans:        NewBanRepository(db),
		Channels:    NewChannelRepository(db),
		Messages:    NewMessageRepository(db),
		Webhooks:    NewWebhookRepository(db),
		Emoji:       NewEmojiRepository(db),
		Invites:     NewInviteRepository(db),
		Attachments: NewAttachmentRepository(db),
		Unreads:     NewUnreadRepository(db),
		Tx:          NewTransactor(db),
	}
}
