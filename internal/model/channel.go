package model

import "time"

// ChannelKind distinguishes server channels from private ones
type ChannelKind string

const (
	ChannelKindText          ChannelKind = "text"
	ChannelKindVoice         ChannelKind = "voice"
	ChannelKindDirectMessage ChannelKind = "direct_message"
	ChannelKindGroup         ChannelKind = "group"
	ChannelKindSavedNotes    ChannelKind = "saved_notes"
)

// IsServerScoped reports whether channels of this kind belong to a server
func (k ChannelKind) IsServerScoped() bool {
	return k == ChannelKindText || k == ChannelKindVoice
}

// IsValid returns true if the kind is known
func (k ChannelKind) IsValid() bool {
	switch k {
	case ChannelKindText, ChannelKindVoice, ChannelKindDirectMessage, ChannelKindGroup, ChannelKindSavedNotes:
		return true
	default:
		return false
	}
}

// SubjectKind says what an overwrite subject id refers to
type SubjectKind string

const (
	SubjectRole SubjectKind = "role"
	SubjectUser SubjectKind = "user"
)

// Overwrite layers allow/deny bits for one role or user on top of ambient authority
type Overwrite struct {
	Subject     string      `json:"subject"`
	SubjectKind SubjectKind `json:"subject_kind"`
	Overrides
}

// Channel is a message stream. ServerID is empty for private channels.
// Version guards the editable fields; the last message pointer moves
// independently of it.
type Channel struct {
	ID            string      `json:"id"`
	ServerID      string      `json:"server_id,omitempty"`
	Kind          ChannelKind `json:"kind"`
	Name          string      `json:"name,omitempty"`
	Description   string      `json:"description,omitempty"`
	OwnerID       string      `json:"owner_id,omitempty"`
	Recipients    []string    `json:"recipients,omitempty"`
	Overwrites    []Overwrite `json:"overwrites,omitempty"`
	LastMessageID *string     `json:"last_message_id,omitempty"`
	Version       int64       `json:"version"`
	CreatedOn     time.Time   `json:"created_on"`
}

// HasRecipient reports whether userID is a recipient of a private channel
func (c *Channel) HasRecipient(userID string) bool {
	for _, id := range c.Recipients {
		if id == userID {
			return true
		}
	}
	return false
}

// Overwrite returns the overwrite for the given subject
func (c *Channel) Overwrite(kind SubjectKind, subject string) (Overwrite, bool) {
	for _, o := range c.Overwrites {
		if o.SubjectKind == kind && o.Subject == subject {
			return o, true
		}
	}
	return Overwrite{}, false
}

// SetOverwrite replaces or appends the overwrite for its subject
func (c *Channel) SetOverwrite(ow Overwrite) {
	for i, o := range c.Overwrites {
		if o.SubjectKind == ow.SubjectKind && o.Subject == ow.Subject {
			c.Overwrites[i] = ow
			return
		}
	}
	c.Overwrites = append(c.Overwrites, ow)
}

// RemoveOverwrite drops the overwrite for the subject and reports whether one existed
func (c *Channel) RemoveOverwrite(kind SubjectKind, subject string) bool {
	for i, o := range c.Overwrites {
		if o.SubjectKind == kind && o.Subject == subject {
			c.Overwrites = append(c.Overwrites[:i], c.Overwrites[i+1:]...)
			return true
		}
	}
	return false
}
