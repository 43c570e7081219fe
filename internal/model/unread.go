package model

import "sort"

// DefaultMaxMentions bounds pending mentions kept per (user, channel)
const DefaultMaxMentions = 100

// UnreadState is the read marker and pending mentions of one user in one channel.
//
// Mentions is kept sorted by id. Version increases on every write and is the
// token the store compares on CompareAndSwap.
type UnreadState struct {
	UserID    string   `json:"user_id"`
	ChannelID string   `json:"channel_id"`
	LastID    *string  `json:"last_id,omitempty"`
	Mentions  []string `json:"mentions,omitempty"`
	Version   int64    `json:"version"`
}

// NewUnreadState returns an empty state with nothing read
func NewUnreadState(userID, channelID string) *UnreadState {
	return &UnreadState{UserID: userID, ChannelID: channelID}
}

// Clone returns a deep copy with the version bumped, ready to be written back
func (u *UnreadState) Clone() *UnreadState {
	c := &UnreadState{
		UserID:    u.UserID,
		ChannelID: u.ChannelID,
		Version:   u.Version + 1,
	}
	if u.LastID != nil {
		last := *u.LastID
		c.LastID = &last
	}
	if len(u.Mentions) > 0 {
		c.Mentions = append([]string(nil), u.Mentions...)
	}
	return c
}

// IsRead reports whether messageID is at or before the read marker
func (u *UnreadState) IsRead(messageID string) bool {
	return u.LastID != nil && IDAtOrBefore(messageID, *u.LastID)
}

// HasMention reports whether messageID is pending
func (u *UnreadState) HasMention(messageID string) bool {
	i := sort.SearchStrings(u.Mentions, messageID)
	return i < len(u.Mentions) && u.Mentions[i] == messageID
}

// AddMention records a pending mention. Mentions of messages already covered
// by the read marker are ignored. When more than limit mentions are pending the
// oldest are evicted first. It reports whether the state changed.
func (u *UnreadState) AddMention(messageID string, limit int) bool {
	if u.IsRead(messageID) || u.HasMention(messageID) {
		return false
	}
	i := sort.SearchStrings(u.Mentions, messageID)
	u.Mentions = append(u.Mentions, "")
	copy(u.Mentions[i+1:], u.Mentions[i:])
	u.Mentions[i] = messageID

	if limit > 0 && len(u.Mentions) > limit {
		u.Mentions = append([]string(nil), u.Mentions[len(u.Mentions)-limit:]...)
	}
	// an older mention than everything pending is evicted straight away
	return u.HasMention(messageID)
}

// RemoveMention drops a pending mention and reports whether it was present
func (u *UnreadState) RemoveMention(messageID string) bool {
	i := sort.SearchStrings(u.Mentions, messageID)
	if i >= len(u.Mentions) || u.Mentions[i] != messageID {
		return false
	}
	u.Mentions = append(u.Mentions[:i], u.Mentions[i+1:]...)
	if len(u.Mentions) == 0 {
		u.Mentions = nil
	}
	return true
}

// Acknowledge advances the read marker to messageID and clears every pending
// mention at or before it. The marker never moves backwards. It reports
// whether the state changed.
func (u *UnreadState) Acknowledge(messageID string) bool {
	changed := false
	if u.LastID == nil || CompareIDs(messageID, *u.LastID) > 0 {
		last := messageID
		u.LastID = &last
		changed = true
	}

	keep := sort.Search(len(u.Mentions), func(i int) bool {
		return CompareIDs(u.Mentions[i], messageID) > 0
	})
	if keep > 0 {
		u.Mentions = append([]string(nil), u.Mentions[keep:]...)
		if len(u.Mentions) == 0 {
			u.Mentions = nil
		}
		changed = true
	}
	return changed
}
