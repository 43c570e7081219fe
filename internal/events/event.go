// Package events carries domain events from the core to whatever delivers
// them to clients: an in-process Hub for a single node or Redis pub/sub when
// several gateway nodes share the load.
//
// Events are routed by topic, "<scope>:<id>" (server:..., channel:..., user:...).
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type names what happened
type Type string

const (
	// Server events
	ServerCreated     Type = "server.created"
	ServerUpdated     Type = "server.updated"
	ServerDeleted     Type = "server.deleted"
	RoleCreated       Type = "server.role_created"
	RoleUpdated       Type = "server.role_updated"
	RoleDeleted       Type = "server.role_deleted"
	OwnershipTransfer Type = "server.ownership_transferred"

	// Membership events
	MemberJoined   Type = "member.joined"
	MemberLeft     Type = "member.left"
	MemberUpdated  Type = "member.updated"
	MemberBanned   Type = "member.banned"
	MemberUnbanned Type = "member.unbanned"

	// Channel events
	ChannelCreated   Type = "channel.created"
	ChannelUpdated   Type = "channel.updated"
	ChannelDeleted   Type = "channel.deleted"
	RecipientAdded   Type = "channel.recipient_added"
	RecipientRemoved Type = "channel.recipient_removed"

	// Message events
	MessageCreated Type = "message.created"
	MessageUpdated Type = "message.updated"
	MessageDeleted Type = "message.deleted"

	// Read state events
	UnreadAcknowledged Type = "unread.acknowledged"

	// Customisation events
	EmojiCreated   Type = "emoji.created"
	EmojiDeleted   Type = "emoji.deleted"
	WebhookCreated Type = "webhook.created"
	WebhookDeleted Type = "webhook.deleted"
	InviteCreated  Type = "invite.created"
	InviteDeleted  Type = "invite.deleted"
)

// Scope is the kind of entity an event is routed to
type Scope string

const (
	ScopeServer  Scope = "server"
	ScopeChannel Scope = "channel"
	ScopeUser    Scope = "user"
)

// Event is one domain event
type Event struct {
	Type    Type        `json:"type"`
	Scope   Scope       `json:"scope"`
	ScopeID string      `json:"scope_id"`
	Data    interface{} `json:"data,omitempty"`
	At      time.Time   `json:"at"`
}

// New creates an event stamped with the current time
func New(t Type, scope Scope, scopeID string, data interface{}) *Event {
	return &Event{Type: t, Scope: scope, ScopeID: scopeID, Data: data, At: time.Now().UTC()}
}

// Topic returns the routing key of the event
func (e *Event) Topic() string {
	return Topic(e.Scope, e.ScopeID)
}

// Topic builds a routing key
func Topic(scope Scope, id string) string {
	return string(scope) + ":" + id
}

// Encode returns the wire form of the event
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an encoded event. Data is left as generic JSON.
func Decode(payload []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Nop discards every event
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(ctx context.Context, event *Event) error { return nil }
