// Package backend is the contract with the hosted data/auth service and its
// drivers.
//
// Every driver implements Client:
//   - RESTClient talks to a Supabase-style service (GoTrue auth + PostgREST).
//   - PostgresClient keeps articles and admin accounts in Postgres via gorm.
//   - MemoryClient keeps everything in process, for development and tests.
//
// Reads are anonymous. Writes carry the signed-in user's session so the
// backend can apply its row-level rules. Failures are reported as *Error,
// which matches ErrUnauthorized and ErrNotFound under errors.Is.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JerryLinyx/PressGO/models"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// ListQuery selects articles newest first. A zero Limit returns all rows.
type ListQuery struct {
	Limit int
}

type Client interface {
	// GetSession validates s against the backend, refreshing it when the
	// access token has expired. The returned session may differ from s.
	GetSession(ctx context.Context, s *models.Session) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	RefreshSession(ctx context.Context, s *models.Session) (*models.Session, error)
	SignOut(ctx context.Context, s *models.Session) error
	// Subscribe returns the auth event stream and a func that ends the
	// subscription and closes the channel.
	Subscribe() (<-chan models.AuthEvent, func())

	InsertArticle(ctx context.Context, s *models.Session, in models.ArticleInput) (*models.Article, error)
	ListArticles(ctx context.Context, q ListQuery) ([]models.Article, error)
	DeleteArticle(ctx context.Context, s *models.Session, id string) error
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	FindArticleByURL(ctx context.Context, url string) (*models.Article, error)

	Ping(ctx context.Context) error
	Close() error
}

// Error is a failed backend call with the backend's own message.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// sessionGoneCodes are the auth error codes that mean the session can no
// longer be used, whatever status they arrive with. A revoked refresh token
// comes back as 400.
var sessionGoneCodes = map[string]bool{
	"invalid_grant":              true,
	"refresh_token_not_found":    true,
	"refresh_token_already_used": true,
	"session_not_found":          true,
	"session_expired":            true,
	"bad_jwt":                    true,
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden || sessionGoneCodes[e.Code]
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

func unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Message: msg}
}

// Message returns the human-readable text of err, or fallback when err has
// none.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var be *Error
	if errors.As(err, &be) {
		if be.Message != "" {
			return be.Message
		}
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

// authEvent builds an event that identifies the user but carries no tokens,
// since events may leave the process.
func authEvent(t models.AuthEventType, s *models.Session) models.AuthEvent {
	if s == nil {
		return models.AuthEvent{Type: t}
	}
	return models.AuthEvent{Type: t, Session: &models.Session{User: s.User}}
}
