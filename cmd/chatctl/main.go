package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgo/chatcore/internal/config"
	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
	"github.com/forgo/chatcore/internal/repository"
	"github.com/forgo/chatcore/internal/service"
)

const usage = `usage: chatctl <command> [flags]

commands:
  migrate                              apply the database schema
  delete-server  -id <server>          delete a server and everything in it
  delete-channel -id <channel>         delete a channel and everything in it
  permissions    -user <user> (-server <server> | -channel <channel>)
                                       print a user's effective permissions
  onboard        -account <id> -username <name>
                                       create the user for an account
  watch          -scope <scope> -id <id>
                                       print events published on a topic
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("command failed",
			slog.String("command", os.Args[1]),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	switch command {
	case "migrate":
		return withDatabase(ctx, cfg, repository.Migrate)
	case "delete-server", "delete-channel":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		id := fs.String("id", "", "id of the entity to delete")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("-id is required")
		}
		return withCore(ctx, cfg, func(ctx context.Context, core *service.Core) error {
			if command == "delete-server" {
				return core.Servers.Purge(ctx, *id)
			}
			return core.Channels.Purge(ctx, *id)
		})
	case "permissions":
		return permissions(ctx, cfg, args)
	case "onboard":
		return onboard(ctx, cfg, args)
	case "watch":
		return watch(ctx, cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func permissions(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("permissions", flag.ContinueOnError)
	userID := fs.String("user", "", "user id")
	serverID := fs.String("server", "", "server id")
	channelID := fs.String("channel", "", "channel id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" || (*serverID == "") == (*channelID == "") {
		return errors.New("-user and exactly one of -server or -channel are required")
	}

	return withCore(ctx, cfg, func(ctx context.Context, core *service.Core) error {
		var (
			perms model.Permission
			err   error
		)
		if *serverID != "" {
			perms, err = core.Servers.Permissions(ctx, *userID, *serverID)
		} else {
			perms, err = core.Channels.Permissions(ctx, *userID, *channelID)
		}
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"user_id":     *userID,
			"server_id":   *serverID,
			"channel_id":  *channelID,
			"permissions": uint64(perms),
			"hex":         fmt.Sprintf("%#x", uint64(perms)),
		})
	})
}

func onboard(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("onboard", flag.ContinueOnError)
	accountID := fs.String("account", "", "account id, becomes the user id")
	username := fs.String("username", "", "username to claim")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == "" {
		return errors.New("-account is required")
	}

	return withCore(ctx, cfg, func(ctx context.Context, core *service.Core) error {
		user, err := core.Onboarding.Complete(ctx, *accountID, &model.OnboardRequest{Username: *username})
		if err != nil {
			return err
		}
		return printJSON(user)
	})
}

// watch prints the events of one topic. With the redis backend events from
// every node are relayed into a local hub first.
func watch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	scope := fs.String("scope", string(events.ScopeServer), "server, channel or user")
	id := fs.String("id", "", "scope id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}
	if cfg.Events.Backend != config.EventsRedis {
		return fmt.Errorf("watch needs EVENTS_BACKEND=%s", config.EventsRedis)
	}

	client, err := events.NewRedisClient(ctx, redisConfig(cfg))
	if err != nil {
		return err
	}
	remote := events.NewRedisPublisher(client, cfg.Events.Prefix)
	defer func() { _ = remote.Close() }()

	topic := events.Topic(events.Scope(*scope), *id)
	hub := events.NewHub()
	defer hub.Close()
	sub := hub.Subscribe(topic, "chatctl")

	relayErr := make(chan error, 1)
	go func() { relayErr <- remote.Relay(ctx, hub, topic) }()

	slog.Info("watching", slog.String("topic", topic))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-relayErr:
			return err
		case e, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if err := printJSON(e); err != nil {
				return err
			}
		}
	}
}

func withDatabase(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, db database.Database) error) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	defer cancel()

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})
	if err := db.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	slog.Debug("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database))
	return fn(ctx, db)
}

func withCore(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, core *service.Core) error) error {
	publisher, closePublisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	return withDatabase(ctx, cfg, func(ctx context.Context, db database.Database) error {
		core := service.NewCore(repository.NewStore(db), publisher,
			service.Options{
				MaxMentions: cfg.Unread.MaxMentions,
				CASRetries:  cfg.Unread.CASRetries,
				FanoutLimit: cfg.Unread.FanoutLimit,
			},
			service.OnboardingConfig{
				OfficialBots:     cfg.Onboarding.OfficialBots,
				GroupName:        cfg.Onboarding.GroupName,
				GroupDescription: cfg.Onboarding.GroupDescription,
			})
		return fn(ctx, core)
	})
}

// newPublisher builds the configured event backend. The local hub has no
// subscribers in a one-shot command, so events are delivered nowhere.
func newPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, func(), error) {
	switch cfg.Events.Backend {
	case config.EventsRedis:
		client, err := events.NewRedisClient(ctx, redisConfig(cfg))
		if err != nil {
			return nil, nil, err
		}
		p := events.NewRedisPublisher(client, cfg.Events.Prefix)
		return p, func() { _ = p.Close() }, nil
	case config.EventsLocal:
		hub := events.NewHub()
		return hub, hub.Close, nil
	default:
		return events.Nop{}, func() {}, nil
	}
}

func redisConfig(cfg *config.Config) events.RedisConfig {
	return events.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Events.Prefix,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
