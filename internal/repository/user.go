package repository

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// userRecord adds the collation key the unique index is built on
type userRecord struct {
	model.User
	UsernameKey string `json:"username_key"`
}

// UserRepository handles user data access
type UserRepository struct {
	users table[userRecord]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{users: newTable[userRecord](db, "user")}
}

// Create creates a user. A taken username surfaces as database.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	rec := &userRecord{User: *user, UsernameKey: model.NormalizeUsername(user.Username)}
	return r.users.create(ctx, user.ID, rec)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	rec, err := r.users.get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return &rec.User, nil
}

// GetByUsername retrieves a user by username, ignoring case
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	rec, err := r.users.first(ctx, "username_key = $username", map[string]interface{}{
		"username": model.NormalizeUsername(username),
	})
	if err != nil || rec == nil {
		return nil, err
	}
	return &rec.User, nil
}

// Update replaces a user
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	rec := &userRecord{User: *user, UsernameKey: model.NormalizeUsername(user.Username)}
	return r.users.replace(ctx, user.ID, rec)
}
