// Package memory is an in-process implementation of every repository the
// service layer consumes. It backs the service tests and embedded use where
// no database is available.
//
// Rows are deep-copied on the way in and out, so callers never share state
// with the store. Store.WithinTransaction holds the write lock for the whole
// function, so a rollback only ever undoes the transaction's own writes.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/forgo/chatcore/internal/model"
)

type pairKey struct{ a, b string }

// Store holds every table behind one lock
type Store struct {
	mu   sync.RWMutex
	data *tables

	Users       *UserRepository
	Servers     *ServerRepository
	Members     *MemberRepository
	Bans        *BanRepository
	Channels    *ChannelRepository
	Messages    *MessageRepository
	Webhooks    *WebhookRepository
	Emoji       *EmojiRepository
	Invites     *InviteRepository
	Attachments *AttachmentRepository
	Unreads     *UnreadRepository
}

type tables struct {
	users       map[string]*model.User
	usernames   map[string]string
	servers     map[string]*model.Server
	members     map[pairKey]*model.Member
	bans        map[pairKey]*model.Ban
	channels    map[string]*model.Channel
	messages    map[string]*model.Message
	ledger      map[pairKey]struct{}
	webhooks    map[string]*model.Webhook
	emoji       map[string]*model.Emoji
	invites     map[string]*model.Invite
	attachments map[string]*model.Attachment
	unreads     map[pairKey]*model.UnreadState
}

func newTables() *tables {
	return &tables{
		users:       make(map[string]*model.User),
		usernames:   make(map[string]string),
		servers:     make(map[string]*model.Server),
		members:     make(map[pairKey]*model.Member),
		bans:        make(map[pairKey]*model.Ban),
		channels:    make(map[string]*model.Channel),
		messages:    make(map[string]*model.Message),
		ledger:      make(map[pairKey]struct{}),
		webhooks:    make(map[string]*model.Webhook),
		emoji:       make(map[string]*model.Emoji),
		invites:     make(map[string]*model.Invite),
		attachments: make(map[string]*model.Attachment),
		unreads:     make(map[pairKey]*model.UnreadState),
	}
}

// New creates an empty store
func New() *Store {
	s := &Store{data: newTables()}
	s.Users = &UserRepository{s: s}
	s.Servers = &ServerRepository{s: s}
	s.Members = &MemberRepository{s: s}
	s.Bans = &BanRepository{s: s}
	s.Channels = &ChannelRepository{s: s}
	s.Messages = &MessageRepository{s: s}
	s.Webhooks = &WebhookRepository{s: s}
	s.Emoji = &EmojiRepository{s: s}
	s.Invites = &InviteRepository{s: s}
	s.Attachments = &AttachmentRepository{s: s}
	s.Unreads = &UnreadRepository{s: s}
	return s
}

// WithinTransaction runs fn with every other caller locked out and rolls
// the tables back if fn fails. Store calls inside fn must use the ctx it is
// given; calls made with any other context block until fn returns.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.joined(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, &txState{store: s})); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type txKey struct{}

// txState marks a context as running inside a transaction. The store lock is
// already held; mu serializes goroutines sharing the transaction.
type txState struct {
	store *Store
	mu    sync.Mutex
}

// joined returns the transaction of this store carried by ctx
func (s *Store) joined(ctx context.Context) *txState {
	tx, _ := ctx.Value(txKey{}).(*txState)
	if tx == nil || tx.store != s {
		return nil
	}
	return tx
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = copyOf(v)
	}
	for k, v := range t.usernames {
		c.usernames[k] = v
	}
	for k, v := range t.servers {
		c.servers[k] = copyOf(v)
	}
	for k, v := range t.members {
		c.members[k] = copyOf(v)
	}
	for k, v := range t.bans {
		c.bans[k] = copyOf(v)
	}
	for k, v := range t.channels {
		c.channels[k] = copyOf(v)
	}
	for k, v := range t.messages {
		c.messages[k] = copyOf(v)
	}
	for k := range t.ledger {
		c.ledger[k] = struct{}{}
	}
	for k, v := range t.webhooks {
		c.webhooks[k] = copyOf(v)
	}
	for k, v := range t.emoji {
		c.emoji[k] = copyOf(v)
	}
	for k, v := range t.invites {
		c.invites[k] = copyOf(v)
	}
	for k, v := range t.attachments {
		c.attachments[k] = copyOf(v)
	}
	for k, v := range t.unreads {
		c.unreads[k] = copyOf(v)
	}
	return c
}

// copyOf deep-copies a row through its JSON form, the same shape the
// database stores
func copyOf[T any](v *T) *T {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

// collect copies the rows matching keep, sorted by less
func collect[K comparable, T any](rows map[K]*T, keep func(*T) bool, less func(a, b *T) bool) []*T {
	out := make([]*T, 0)
	for _, row := range rows {
		if keep(row) {
			out = append(out, copyOf(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *Store) read(ctx context.Context, fn func(t *tables)) {
	if tx := s.joined(ctx); tx != nil {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		fn(s.data)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(ctx context.Context, fn func(t *tables) error) error {
	if tx := s.joined(ctx); tx != nil {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}
