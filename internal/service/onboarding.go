package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// OnboardingService turns an authenticated account into a user
type OnboardingService struct {
	store    Store
	auth     authorizer
	channels *ChannelService
	config   OnboardingConfig
}

// NewOnboardingService creates a new onboarding service
func NewOnboardingService(store Store, channels *ChannelService, config OnboardingConfig) *OnboardingService {
	return &OnboardingService{
		store:    store,
		auth:     authorizer{store: store},
		channels: channels,
		config:   config,
	}
}

// Complete creates the user for accountID. When official bots are configured
// the new user is placed in a group with them.
func (s *OnboardingService) Complete(ctx context.Context, accountID string, req *model.OnboardRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := invalid(req.Validate()); err != nil {
		return nil, err
	}

	existing, err := s.store.Users.GetByID(ctx, accountID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if existing != nil {
		return nil, ErrAlreadyOnboarded
	}
	taken, err := s.store.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if taken != nil {
		return nil, ErrUsernameTaken
	}

	user := &model.User{
		ID:        accountID,
		Username:  req.Username,
		Status:    model.UserStatusOnline,
		CreatedOn: time.Now().UTC(),
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// lost a race for the id or the username
			if again, getErr := s.store.Users.GetByID(ctx, accountID); getErr == nil && again != nil {
				return nil, ErrAlreadyOnboarded
			}
			return nil, ErrUsernameTaken
		}
		return nil, storeErr("create user", err)
	}

	if len(s.config.OfficialBots) > 0 {
		s.welcome(ctx, user)
	}
	return user, nil
}

// welcome creates the new user's group with the official bots. Failures are
// logged; the user stays onboarded.
func (s *OnboardingService) welcome(ctx context.Context, user *model.User) {
	recipients := []string{user.ID}
	for _, id := range model.UniqueIDs(s.config.OfficialBots) {
		if id == user.ID {
			continue
		}
		if _, err := s.auth.user(ctx, id); err != nil {
			slog.Warn("skipping official bot",
				slog.String("bot_id", id),
				slog.String("error", err.Error()))
			continue
		}
		recipients = append(recipients, id)
	}
	if len(recipients) == 1 {
		return
	}

	if _, err := s.channels.createGroup(ctx, user.ID, s.config.GroupName, s.config.GroupDescription, recipients); err != nil {
		slog.Error("failed to create welcome group",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()))
	}
}
