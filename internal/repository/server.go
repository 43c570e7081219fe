package repository

import (
	"context"

	"github.com/forgo/chatcore/internal/database"
	"github.com/forgo/chatcore/internal/model"
)

// ServerRepository handles server data access. Roles live inside the server record.
type ServerRepository struct {
	servers table[model.Server]
}

// NewServerRepository creates a new server repository
func NewServerRepository(db database.Database) *ServerRepository {
	return &ServerRepository{servers: newTable[model.Server](db, "server")}
}

// Create creates a server
func (r *ServerRepository) Create(ctx context.Context, server *model.Server) error {
	return r.servers.create(ctx, server.ID, server)
}

// GetByID retrieves a server by ID
func (r *ServerRepository) GetByID(ctx context.Context, id string) (*model.Server, error) {
	return r.servers.get(ctx, id)
}

// Update replaces a server if its stored version still equals server.Version
// and bumps the version
func (r *ServerRepository) Update(ctx context.Context, server *model.Server) error {
	version := server.Version
	server.Version++
	if err := r.servers.replaceVersioned(ctx, server.ID, server, version); err != nil {
		server.Version = version
		return err
	}
	return nil
}

// Delete deletes a server
func (r *ServerRepository) Delete(ctx context.Context, id string) error {
	return r.servers.delete(ctx, id)
}
