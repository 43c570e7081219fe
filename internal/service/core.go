package service

import (
	"context"
	"log/slog"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
)

// Options tunes unread propagation
type Options struct {
	// MaxMentions bounds pending mentions per (user, channel); the oldest are evicted first
	MaxMentions int
	// CASRetries bounds attempts of one read state update under contention
	CASRetries int
	// FanoutLimit bounds concurrent read state writes for one message
	FanoutLimit int
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		MaxMentions: model.DefaultMaxMentions,
		CASRetries:  8,
		FanoutLimit: 16,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxMentions <= 0 {
		o.MaxMentions = d.MaxMentions
	}
	if o.CASRetries <= 0 {
		o.CASRetries = d.CASRetries
	}
	if o.FanoutLimit <= 0 {
		o.FanoutLimit = d.FanoutLimit
	}
	return o
}

// OnboardingConfig is the read-only configuration used when a user onboards
type OnboardingConfig struct {
	// OfficialBots are placed in a welcome group with every new user
	OfficialBots     []string
	GroupName        string
	GroupDescription string
}

// Core wires every lifecycle service over one store
type Core struct {
	Members    *MembershipService
	Servers    *ServerService
	Channels   *ChannelService
	Messages   *MessageService
	Unreads    *UnreadService
	Webhooks   *WebhookService
	Emoji      *EmojiService
	Invites    *InviteService
	Onboarding *OnboardingService
}

// NewCore creates every service. A nil publisher discards events.
func NewCore(store Store, publisher events.Publisher, opts Options, onboarding OnboardingConfig) *Core {
	if publisher == nil {
		publisher = events.Nop{}
	}
	opts = opts.withDefaults()

	unreads := NewUnreadService(store, publisher, opts)
	members := NewMembershipService(store, publisher)
	channels := NewChannelService(store, publisher)
	messages := NewMessageService(store, publisher, unreads)

	return &Core{
		Members:    members,
		Servers:    NewServerService(store, publisher),
		Channels:   channels,
		Messages:   messages,
		Unreads:    unreads,
		Webhooks:   NewWebhookService(store, publisher, messages),
		Emoji:      NewEmojiService(store, publisher),
		Invites:    NewInviteService(store, publisher, members),
		Onboarding: NewOnboardingService(store, channels, onboarding),
	}
}

// publish delivers an event. Delivery failures never fail the mutation that
// produced the event.
func publish(ctx context.Context, publisher events.Publisher, event *events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		slog.Warn("event publish failed",
			slog.String("type", string(event.Type)),
			slog.String("topic", event.Topic()),
			slog.String("error", err.Error()))
	}
}
