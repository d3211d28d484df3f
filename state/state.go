// Package state holds the little mutable state the app has: the admin's
// browser session and the per-page feed state. Both live behind stores
// that can be kept in memory or shared through redis.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/JerryLinyx/PressGO/models"
)

var ErrNotFound = errors.New("state: not found")

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot message shown on the next dashboard render. A zero
// HideAfter keeps it visible until dismissed.
type Flash struct {
	Kind      FlashKind     `json:"kind"`
	Text      string        `json:"text"`
	HideAfter time.Duration `json:"hide_after"`
}

// Record is one browser's admin session.
type Record struct {
	ID        string         `json:"id"`
	Session   models.Session `json:"session"`
	Flash     *Flash         `json:"flash,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (r *Record) UserID() string {
	return r.Session.User.ID
}

// TakeFlash returns the pending flash and clears it.
func (r *Record) TakeFlash() *Flash {
	f := r.Flash
	r.Flash = nil
	return f
}

type SessionStore interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	// DeleteUser removes every record of userID and reports how many went.
	DeleteUser(ctx context.Context, userID string) (int, error)
}

// PageStore keeps JSON-encodable per-page state for a limited time.
type PageStore interface {
	Load(ctx context.Context, pageID string, v any) (bool, error)
	Store(ctx context.Context, pageID string, v any) error
}
