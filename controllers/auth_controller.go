package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JerryLinyx/PressGO/backend"
	"github.com/JerryLinyx/PressGO/middlewares"
	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/state"
	"github.com/JerryLinyx/PressGO/views"
)

var errMissingCredentials = errors.New("email and password are required")

// DefaultMaxEventStreams caps the open /admin/events connections.
const DefaultMaxEventStreams = 64

type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthController owns the admin's browser sessions and follows the
// backend's auth event stream.
type AuthController struct {
	client   backend.Client
	sessions state.SessionStore
	cookies  *state.CookieCodec
	cookie   CookieConfig
	articles *ArticleController
	// hub fans auth events out to open admin pages.
	hub *backend.Broker
	log *zap.SugaredLogger
	now func() time.Time

	maxStreams int64
	streams    atomic.Int64
}

func NewAuthController(client backend.Client, sessions state.SessionStore, cookies *state.CookieCodec, cookie CookieConfig, articles *ArticleController, log *zap.SugaredLogger) *AuthController {
	if cookie.Name == "" {
		cookie.Name = "pressgo_session"
	}
	return &AuthController{
		client:   client,
		sessions: sessions,
		cookies:  cookies,
		cookie:   cookie,
		articles: articles,
		hub:      backend.NewBroker(8),
		log:      log,
		now:      time.Now,

		maxStreams: DefaultMaxEventStreams,
	}
}

// CheckSession returns the live session behind sessionID. A session the
// backend no longer accepts is dropped and reported as an error, same as a
// missing one.
func (a *AuthController) CheckSession(ctx context.Context, sessionID string) (*state.Record, error) {
	rec, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s, err := a.client.GetSession(ctx, &rec.Session)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			if derr := a.sessions.Delete(ctx, rec.ID); derr != nil {
				a.log.Warnw("drop rejected session", "session_id", rec.ID, "error", derr)
			}
		}
		return nil, fmt.Errorf("check session: %w", err)
	}

	if s.AccessToken != rec.Session.AccessToken || s.RefreshToken != rec.Session.RefreshToken {
		rec.Session = *s
		if err := a.sessions.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("store refreshed session: %w", err)
		}
	}
	return rec, nil
}

func (a *AuthController) Login(ctx context.Context, email, password string) (*state.Record, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errMissingCredentials
	}

	s, err := a.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	rec := &state.Record{
		ID:        uuid.NewString(),
		Session:   *s,
		CreatedAt: a.now().UTC(),
	}
	if err := a.sessions.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return rec, nil
}

// Logout signs out at the backend and always drops the local session.
func (a *AuthController) Logout(ctx context.Context, rec *state.Record) error {
	if err := a.client.SignOut(ctx, &rec.Session); err != nil {
		a.log.Warnw("backend sign-out failed", "user_id", rec.UserID(), "error", err)
	}
	if err := a.sessions.Delete(ctx, rec.ID); err != nil && !errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("drop session: %w", err)
	}
	return nil
}

// Run follows the backend's auth events until ctx ends.
func (a *AuthController) Run(ctx context.Context) {
	events, unsubscribe := a.client.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.handleEvent(ctx, ev)
		}
	}
}

func (a *AuthController) handleEvent(ctx context.Context, ev models.AuthEvent) {
	switch ev.Type {
	case models.SignedOut:
		if uid := ev.UserID(); uid != "" {
			n, err := a.sessions.DeleteUser(ctx, uid)
			if err != nil {
				a.log.Errorw("drop sessions after sign-out", "user_id", uid, "error", err)
			} else if n > 0 {
				a.log.Infow("dropped sessions after sign-out", "user_id", uid, "count", n)
			}
		}
	case models.SignedIn:
	default:
		return
	}
	_ = a.hub.Publish(ctx, ev)
}

// Resolve implements middlewares.SessionResolver.
func (a *AuthController) Resolve(c *gin.Context) (*state.Record, error) {
	raw, err := c.Cookie(a.cookie.Name)
	if err != nil || raw == "" {
		return nil, state.ErrNotFound
	}
	id, err := a.cookies.Decode(raw)
	if err != nil {
		return nil, err
	}
	return a.CheckSession(c.Request.Context(), id)
}

func (a *AuthController) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.cookie.Name, value, maxAge, "/", "", a.cookie.Secure, true)
}

func (a *AuthController) renderLogin(c *gin.Context, status int, email, message string) {
	page := views.AdminPage{
		Title:      a.articles.title + " Admin",
		Mode:       views.ModeLogin,
		LoginEmail: email,
	}
	if message != "" {
		page.LoginError = views.Escape(message)
	}
	c.HTML(status, "admin.html", page)
}

// ShowAdmin renders the dashboard for a live session, else the login view.
func (a *AuthController) ShowAdmin(c *gin.Context) {
	rec, err := a.Resolve(c)
	if err != nil || rec == nil {
		a.renderLogin(c, http.StatusOK, "", "")
		return
	}

	flash := rec.TakeFlash()
	if flash != nil {
		if err := a.sessions.Save(c.Request.Context(), rec); err != nil {
			middlewares.Logger(c).Warnw("clear flash", "error", err)
		}
	}
	a.articles.renderDashboard(c, http.StatusOK, rec, views.ArticleForm{}, views.NewFlashView(flash), false)
}

func (a *AuthController) LoginHandler(c *gin.Context) {
	var input struct {
		Email    string `form:"email"`
		Password string `form:"password"`
	}
	if err := c.ShouldBind(&input); err != nil {
		a.renderLogin(c, http.StatusBadRequest, "", views.LoginFailedText)
		return
	}

	rec, err := a.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		msg := views.LoginFailedText
		if !errors.Is(err, errMissingCredentials) {
			msg = backend.Message(err, views.LoginFailedText)
		}
		middlewares.Logger(c).Infow("login failed", "email", input.Email, "error", err)
		a.renderLogin(c, http.StatusUnauthorized, input.Email, msg)
		return
	}

	value, err := a.cookies.Encode(rec.ID)
	if err != nil {
		middlewares.Logger(c).Errorw("encode session cookie", "error", err)
		a.renderLogin(c, http.StatusInternalServerError, input.Email, views.LoginFailedText)
		return
	}
	a.setCookie(c, value, int(a.cookies.TTL().Seconds()))
	c.Redirect(http.StatusSeeOther, "/admin")
}

func (a *AuthController) LogoutHandler(c *gin.Context) {
	if rec, err := a.Resolve(c); err == nil && rec != nil {
		if err := a.Logout(c.Request.Context(), rec); err != nil {
			middlewares.Logger(c).Errorw("logout", "error", err)
		}
	}
	a.setCookie(c, "", -1)
	c.Redirect(http.StatusSeeOther, "/admin")
}

// streamable reports whether ev goes to a page viewed by viewer. A page
// without a session only learns that someone signed in, so its login form
// can reload. A signed-in page follows its own user only.
func streamable(ev models.AuthEvent, viewer *state.Record) bool {
	if viewer == nil {
		return ev.Type == models.SignedIn
	}
	return ev.UserID() == viewer.UserID()
}

// Events streams SIGNED_IN and SIGNED_OUT to an open admin page.
func (a *AuthController) Events(c *gin.Context) {
	if a.streams.Add(1) > a.maxStreams {
		a.streams.Add(-1)
		c.String(http.StatusServiceUnavailable, "too many event streams")
		return
	}
	defer a.streams.Add(-1)

	viewer, err := a.Resolve(c)
	if err != nil {
		viewer = nil
	}

	events, unsubscribe := a.hub.Subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if streamable(ev, viewer) {
				c.SSEvent("auth", gin.H{"type": ev.Type})
			}
			return true
		}
	})
}
