package models

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one browser (or CLI) caller. The current RenderResult
// is keyed by Session.ID in the session store.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSession allocates a session with a random ID.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// SessionFromID rebuilds a handle from a cookie value. Malformed IDs are
// rejected so callers can mint a fresh session instead.
func SessionFromID(id string) (*Session, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	return &Session{ID: parsed.String()}, true
}
