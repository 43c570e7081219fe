package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgo/chatcore/internal/model"
)

// cascadeStep is one idempotent deletion. Running a step that already
// completed is a no-op.
type cascadeStep struct {
	name string
	run  func(ctx context.Context) error
}

// cascade deletes an entity and everything that depends on it. Steps run in
// the order added: dependents first, the entity itself last, so an aborted
// cascade leaves the root in place and a retry finishes the job. When the
// store supports transactions the whole cascade commits at once.
type cascade struct {
	kind  string
	id    string
	steps []cascadeStep
}

func newCascade(kind, id string) *cascade {
	return &cascade{kind: kind, id: id}
}

func (c *cascade) add(name string, run func(ctx context.Context) error) {
	c.steps = append(c.steps, cascadeStep{name: name, run: run})
}

func (c *cascade) run(ctx context.Context, store Store) error {
	start := time.Now()
	err := store.atomically(ctx, func(ctx context.Context) error {
		for _, step := range c.steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			slog.Debug("cascade step",
				slog.String("kind", c.kind),
				slog.String("id", c.id),
				slog.String("step", step.name))
			if err := step.run(ctx); err != nil {
				return storeErr("delete "+c.kind+": "+step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("cascade failed",
			slog.String("kind", c.kind),
			slog.String("id", c.id),
			slog.String("error", err.Error()))
		return storeErr("delete "+c.kind, err)
	}

	slog.Info("cascade completed",
		slog.String("kind", c.kind),
		slog.String("id", c.id),
		slog.Int("steps", len(c.steps)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// addChannel appends the deletion of one channel and its dependents:
// attachments and messages, read state, webhooks, invites, then the channel
// record with its overwrites
func (c *cascade) addChannel(store Store, channel *model.Channel) {
	id := channel.ID
	c.add("attachments of "+id, func(ctx context.Context) error {
		return store.Attachments.DeleteByParent(ctx, id)
	})
	c.add("messages of "+id, func(ctx context.Context) error {
		return store.Messages.DeleteByChannel(ctx, id)
	})
	c.add("read state of "+id, func(ctx context.Context) error {
		return store.Unreads.DeleteByChannel(ctx, id)
	})
	c.add("webhooks of "+id, func(ctx context.Context) error {
		return store.Webhooks.DeleteByChannel(ctx, id)
	})
	c.add("invites of "+id, func(ctx context.Context) error {
		return store.Invites.DeleteByChannel(ctx, id)
	})
	c.add("channel "+id, func(ctx context.Context) error {
		return store.Channels.Delete(ctx, id)
	})
}

// channelCascade builds the deletion of one channel
func channelCascade(store Store, channel *model.Channel) *cascade {
	c := newCascade("channel", channel.ID)
	c.addChannel(store, channel)
	return c
}

// serverCascade builds the deletion of a server. Channels go first, then
// emoji, invites, bans and members, then the server record with its roles.
func serverCascade(store Store, server *model.Server, channels []*model.Channel) *cascade {
	id := server.ID
	c := newCascade("server", id)
	for _, channel := range channels {
		c.addChannel(store, channel)
	}
	c.add("emoji", func(ctx context.Context) error {
		return store.Emoji.DeleteByServer(ctx, id)
	})
	c.add("invites", func(ctx context.Context) error {
		return store.Invites.DeleteByServer(ctx, id)
	})
	c.add("bans", func(ctx context.Context) error {
		return store.Bans.DeleteByServer(ctx, id)
	})
	c.add("members", func(ctx context.Context) error {
		return store.Members.DeleteByServer(ctx, id)
	})
	c.add("server", func(ctx context.Context) error {
		return store.Servers.Delete(ctx, id)
	})
	return c
}
