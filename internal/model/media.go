package model

import "time"

// Webhook posts into a channel using a secret token
type Webhook struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	ServerID  string    `json:"server_id,omitempty"`
	CreatorID string    `json:"creator_id"`
	Name      string    `json:"name"`
	TokenHash []byte    `json:"token_hash,omitempty"`
	CreatedOn time.Time `json:"created_on"`
}

// Emoji is a custom emoji of a server
type Emoji struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"server_id"`
	CreatorID string    `json:"creator_id"`
	Name      string    `json:"name"`
	Animated  bool      `json:"animated,omitempty"`
	CreatedOn time.Time `json:"created_on"`
}

// Attachment is metadata for an uploaded file. The bytes live in external storage.
type Attachment struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_id"`
	MessageID   string    `json:"message_id,omitempty"`
	UploaderID  string    `json:"uploader_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedOn   time.Time `json:"created_on"`
}
