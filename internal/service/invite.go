package service

import (
	"context"
	"time"

	"github.com/forgo/chatcore/internal/events"
	"github.com/forgo/chatcore/internal/model"
)

const inviteCodeBytes = 4

// InviteService creates and redeems server invites
type InviteService struct {
	store     Store
	auth      authorizer
	publisher events.Publisher
	members   *MembershipService
}

// NewInviteService creates a new invite service
func NewInviteService(store Store, publisher events.Publisher, members *MembershipService) *InviteService {
	return &InviteService{
		store:     store,
		auth:      authorizer{store: store},
		publisher: publisher,
		members:   members,
	}
}

// CreateInvite creates an invite through a server channel
func (s *InviteService) CreateInvite(ctx context.Context, actorID, channelID string) (*model.Invite, error) {
	scope, err := s.auth.forChannel(ctx, channelID, actorID)
	if err != nil {
		return nil, err
	}
	if !scope.Channel.Kind.IsServerScoped() {
		return nil, ErrNotChannelType
	}
	if err := scope.require(model.PermInviteOthers); err != nil {
		return nil, err
	}

	code, err := generateToken(inviteCodeBytes)
	if err != nil {
		return nil, model.NewStoreError("generate invite code", err)
	}
	invite := &model.Invite{
		Code:      code,
		ServerID:  scope.Channel.ServerID,
		ChannelID: channelID,
		CreatorID: actorID,
		CreatedOn: time.Now().UTC(),
	}
	err = s.store.createUnder(ctx, s.store.channelExists(channelID), ErrChannelNotFound,
		func(ctx context.Context) error { return s.store.Invites.Create(ctx, invite) },
		func(ctx context.Context) error { return s.store.Invites.Delete(ctx, invite.Code) })
	if err != nil {
		return nil, storeErr("create invite", err)
	}
	publish(ctx, s.publisher, events.New(events.InviteCreated, events.ScopeServer, invite.ServerID, invite))
	return invite, nil
}

// AcceptInvite joins the actor to the invite's server
func (s *InviteService) AcceptInvite(ctx context.Context, actorID, code string) (*model.Member, error) {
	invite, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.members.Join(ctx, invite.ServerID, actorID)
}

// DeleteInvite revokes an invite. Its creator may always revoke it.
func (s *InviteService) DeleteInvite(ctx context.Context, actorID, code string) error {
	invite, err := s.load(ctx, code)
	if err != nil {
		return err
	}
	if invite.CreatorID != actorID {
		scope, err := s.auth.forServer(ctx, invite.ServerID, actorID)
		if err != nil {
			return err
		}
		if err := scope.require(model.PermManageServer); err != nil {
			return err
		}
	}
	if err := s.store.Invites.Delete(ctx, code); err != nil {
		return storeErr("delete invite", err)
	}
	publish(ctx, s.publisher, events.New(events.InviteDeleted, events.ScopeServer, invite.ServerID,
		map[string]string{"code": code}))
	return nil
}

func (s *InviteService) load(ctx context.Context, code string) (*model.Invite, error) {
	invite, err := s.store.Invites.GetByCode(ctx, code)
	if err != nil {
		return nil, storeErr("get invite", err)
	}
	if invite == nil {
		return nil, ErrInviteNotFound
	}
	return invite, nil
}
