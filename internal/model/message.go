package model

import "time"

// Message is a single post in a channel. Only content and mentions change after creation.
type Message struct {
	ID          string     `json:"id"`
	ChannelID   string     `json:"channel_id"`
	AuthorID    string     `json:"author_id"`
	Content     string     `json:"content"`
	Mentions    []string   `json:"mentions,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	Edited      bool       `json:"edited,omitempty"`
	EditedOn    *time.Time `json:"edited_on,omitempty"`
	CreatedOn   time.Time  `json:"created_on"`
}

// MentionsUser returns true if the message mentions userID
func (m *Message) MentionsUser(userID string) bool {
	for _, id := range m.Mentions {
		if id == userID {
			return true
		}
	}
	return false
}

// MentionDiff is the change in mentioned users caused by an edit
type MentionDiff struct {
	Added   []string
	Removed []string
}

// Empty reports whether the edit left mentions unchanged
func (d MentionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffMentions computes which users were added and removed between two mention lists
func DiffMentions(before, after []string) MentionDiff {
	old := make(map[string]struct{}, len(before))
	for _, id := range before {
		old[id] = struct{}{}
	}
	next := make(map[string]struct{}, len(after))
	for _, id := range after {
		next[id] = struct{}{}
	}

	var diff MentionDiff
	for _, id := range UniqueIDs(after) {
		if _, ok := old[id]; !ok {
			diff.Added = append(diff.Added, id)
		}
	}
	for _, id := range UniqueIDs(before) {
		if _, ok := next[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}
	return diff
}

// UniqueIDs returns ids with duplicates and empty strings removed, preserving order
func UniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
