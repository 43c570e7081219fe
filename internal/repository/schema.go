package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgo/chatcore/internal/database"
)

// schema defines every table and index. Statements are idempotent.
var schema = []string{
	`DEFINE TABLE IF NOT EXISTS user SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS user_username ON user FIELDS username_key UNIQUE`,

	`DEFINE TABLE IF NOT EXISTS server SCHEMALESS`,

	`DEFINE TABLE IF NOT EXISTS member SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS member_server ON member FIELDS server_id`,
	`DEFINE INDEX IF NOT EXISTS member_user ON member FIELDS user_id`,

	`DEFINE TABLE IF NOT EXISTS ban SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS ban_server ON ban FIELDS server_id`,

	`DEFINE TABLE IF NOT EXISTS channel SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS channel_server ON channel FIELDS server_id`,
	`DEFINE INDEX IF NOT EXISTS channel_kind_owner ON channel FIELDS kind, owner_id`,

	`DEFINE TABLE IF NOT EXISTS message SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS message_channel ON message FIELDS channel_id, key`,
	`DEFINE TABLE IF NOT EXISTS message_ledger SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS message_ledger_channel ON message_ledger FIELDS channel_id`,

	`DEFINE TABLE IF NOT EXISTS webhook SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS webhook_channel ON webhook FIELDS channel_id`,

	`DEFINE TABLE IF NOT EXISTS emoji SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS emoji_server ON emoji FIELDS server_id`,

	`DEFINE TABLE IF NOT EXISTS invite SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS invite_server ON invite FIELDS server_id`,
	`DEFINE INDEX IF NOT EXISTS invite_channel ON invite FIELDS channel_id`,

	`DEFINE TABLE IF NOT EXISTS attachment SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS attachment_message ON attachment FIELDS message_id`,
	`DEFINE INDEX IF NOT EXISTS attachment_parent ON attachment FIELDS parent_id`,

	`DEFINE TABLE IF NOT EXISTS unread SCHEMALESS`,
	`DEFINE INDEX IF NOT EXISTS unread_channel ON unread FIELDS channel_id`,
	`DEFINE INDEX IF NOT EXISTS unread_user ON unread FIELDS user_id`,
}

// Migrate applies the schema
func Migrate(ctx context.Context, db database.Database) error {
	for i, stmt := range schema {
		if err := db.Execute(ctx, stmt, nil); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	slog.Info("schema applied", slog.Int("statements", len(schema)))
	return nil
}
