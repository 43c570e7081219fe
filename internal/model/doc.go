// Package model defines the entities of the chat consistency core.
//
// Entities never own each other. They reference one another by id and every
// relationship is resolved through the repositories declared in the service
// package, which keeps cascade deletion a matter of walking ids.
//
// # Entities
//
//   - User: account with a case-insensitive unique username
//   - Server: owner, name, embedded Role definitions and default permissions
//   - Member / Ban: keyed by (server, user)
//   - Channel: server-scoped (text, voice) or private (direct message, group, saved notes)
//   - Message: channel message with mentions and attachments
//   - Webhook, Emoji, Invite, Attachment: owned by a Server or a Channel
//   - UnreadState: per (user, channel) read marker and pending mentions
//
// # Identifiers
//
// Ids are UUIDv7 strings produced by NewID. Their lexical order is their
// creation order, which the unread tracker relies on.
//
// # Errors
//
// Error carries an ErrorCode. Kind sentinels such as ErrNotFound match every
// error of the same code:
//
//	if errors.Is(err, model.ErrNotFound) {
//	    // any missing entity
//	}
package model
