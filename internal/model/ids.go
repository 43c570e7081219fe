package model

import "github.com/google/uuid"

// NewID returns a fresh globally unique id. UUIDv7 embeds a millisecond
// timestamp and a monotonic counter, so ids sort lexically in creation order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CompareIDs orders two ids by creation time.
// It returns -1 if a < b, 0 if a == b and +1 if a > b.
func CompareIDs(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IDAtOrBefore reports whether id was created no later than ref
func IDAtOrBefore(id, ref string) bool {
	return CompareIDs(id, ref) <= 0
}

var privateChannelSpace = uuid.MustParse("6f1c2a4e-3b8d-5e7f-9a01-c4d2b6e8f0a3")

// DirectMessageID returns the channel id shared by a pair of users. It does
// not depend on argument order.
func DirectMessageID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return uuid.NewSHA1(privateChannelSpace, []byte("dm:"+a+":"+b)).String()
}

// SavedNotesID returns the id of a user's saved notes channel
func SavedNotesID(userID string) string {
	return uuid.NewSHA1(privateChannelSpace, []byte("notes:"+userID)).String()
}
