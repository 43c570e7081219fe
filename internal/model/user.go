package model

import (
	"strings"
	"time"
)

// UserStatus is the presence a user advertises
type UserStatus string

const (
	UserStatusOnline    UserStatus = "online"
	UserStatusIdle      UserStatus = "idle"
	UserStatusBusy      UserStatus = "busy"
	UserStatusInvisible UserStatus = "invisible"
)

// User is an onboarded account. Users are never hard-deleted, only disabled.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Status    UserStatus `json:"status,omitempty"`
	Bot       bool       `json:"bot,omitempty"`
	Disabled  bool       `json:"disabled,omitempty"`
	CreatedOn time.Time  `json:"created_on"`
}

// NormalizeUsername returns the collation key used for username uniqueness
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
