package model

import (
	"sort"
	"time"
)

// Server is a community owning channels, roles and members. Version
// increases on every update; a write carrying an older version is rejected.
type Server struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"owner_id"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	Roles              map[string]Role `json:"roles,omitempty"`
	DefaultPermissions Permission      `json:"default_permissions"`
	Version            int64           `json:"version"`
	CreatedOn          time.Time       `json:"created_on"`
	UpdatedOn          time.Time       `json:"updated_on"`
}

// Role is a ranked permission layer of one server. A lower rank means higher authority.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Rank        int       `json:"rank"`
	Permissions Overrides `json:"permissions"`
	Colour      string    `json:"colour,omitempty"`
	Hoist       bool      `json:"hoist,omitempty"`
}

// Outranks reports whether r takes precedence over other. Ties in rank are
// broken by id, the older role winning.
func (r Role) Outranks(other Role) bool {
	if r.Rank != other.Rank {
		return r.Rank < other.Rank
	}
	return CompareIDs(r.ID, other.ID) < 0
}

// IsOwner reports whether userID owns the server
func (s *Server) IsOwner(userID string) bool {
	return s != nil && s.OwnerID == userID
}

// Role returns the role with the given id
func (s *Server) Role(id string) (Role, bool) {
	if s == nil || s.Roles == nil {
		return Role{}, false
	}
	r, ok := s.Roles[id]
	return r, ok
}

// RolesOf returns the existing roles among ids ordered from lowest to highest
// precedence. Ids that no longer name a role are skipped.
func (s *Server) RolesOf(ids []string) []Role {
	roles := make([]Role, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if r, ok := s.Role(id); ok {
			roles = append(roles, r)
		}
	}
	sort.Slice(roles, func(i, j int) bool {
		return roles[j].Outranks(roles[i])
	})
	return roles
}

// Member is the membership of a user in a server. Version works as on Server.
type Member struct {
	ServerID string    `json:"server_id"`
	UserID   string    `json:"user_id"`
	Roles    []string  `json:"roles,omitempty"`
	Nickname string    `json:"nickname,omitempty"`
	Version  int64     `json:"version"`
	JoinedAt time.Time `json:"joined_at"`
}

// HasRole reports whether the member is assigned roleID
func (m *Member) HasRole(roleID string) bool {
	if m == nil {
		return false
	}
	for _, id := range m.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// Ban forbids a user from holding membership of a server
type Ban struct {
	ServerID  string    `json:"server_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedOn time.Time `json:"created_on"`
}

// Invite lets a user join a server through one of its channels
type Invite struct {
	Code      string    `json:"code"`
	ServerID  string    `json:"server_id"`
	ChannelID string    `json:"channel_id"`
	CreatorID string    `json:"creator_id"`
	CreatedOn time.Time `json:"created_on"`
}
