package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/JerryLinyx/PressGO/backend"
	"github.com/JerryLinyx/PressGO/importer"
	"github.com/JerryLinyx/PressGO/logging"
	"github.com/JerryLinyx/PressGO/middlewares"
	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/state"
	"github.com/JerryLinyx/PressGO/views"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "s3cret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// faultyClient wraps a real client, counting calls and failing on demand.
type faultyClient struct {
	backend.Client

	listErr    error
	insertErr  error
	deleteErr  error
	sessionErr error
	// insertGate, when set, holds InsertArticle until it is closed.
	insertGate chan struct{}

	lists   atomic.Int32
	deletes atomic.Int32
}

func (f *faultyClient) GetSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.Client.GetSession(ctx, s)
}

func (f *faultyClient) ListArticles(ctx context.Context, q backend.ListQuery) ([]models.Article, error) {
	f.lists.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Client.ListArticles(ctx, q)
}

func (f *faultyClient) InsertArticle(ctx context.Context, s *models.Session, in models.ArticleInput) (*models.Article, error) {
	if f.insertGate != nil {
		<-f.insertGate
	}
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return f.Client.InsertArticle(ctx, s, in)
}

func (f *faultyClient) DeleteArticle(ctx context.Context, s *models.Session, id string) error {
	f.deletes.Add(1)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Client.DeleteArticle(ctx, s, id)
}

type harness struct {
	bus      *backend.Broker
	memory   *backend.MemoryClient
	client   *faultyClient
	sessions *state.MemorySessionStore
	pages    *state.MemoryPageStore
	auth     *AuthController
	articles *ArticleController
	feed     *FeedController
	engine   *gin.Engine
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bus: backend.NewBroker(16),
		now: time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC),
	}
	h.memory = backend.NewMemoryClient(
		backend.WithMemoryEventBus(h.bus),
		backend.WithClock(func() time.Time { return h.now }),
	)
	require.NoError(t, h.memory.AddUser(adminEmail, adminPassword))
	h.client = &faultyClient{Client: h.memory}

	log := logging.Nop()
	h.sessions = state.NewMemorySessionStore(time.Hour)
	h.pages = state.NewMemoryPageStore(time.Hour)
	h.articles = NewArticleController(h.client, h.sessions, importer.New(nil, 0), ArticleOptions{Title: "PressGO"}, log)
	h.auth = NewAuthController(h.client, h.sessions, state.NewCookieCodec("test-secret", time.Hour), CookieConfig{Name: "sid"}, h.articles, log)
	h.feed = NewFeedController(h.client, h.pages, nil, "PressGO", 0, log)

	r := gin.New()
	r.SetHTMLTemplate(views.Templates())
	r.GET("/", h.feed.Home)
	r.GET("/articles", h.feed.Articles)
	r.GET("/api/articles", h.feed.API)
	r.GET("/api/health", NewHealthController(h.client).Health)
	r.GET("/admin", h.auth.ShowAdmin)
	r.POST("/admin/login", h.auth.LoginHandler)
	r.POST("/admin/logout", h.auth.LogoutHandler)
	admin := r.Group("/admin", middlewares.RequireAdmin(h.auth))
	admin.GET("/articles", h.articles.Recent)
	admin.POST("/articles", h.articles.Create)
	admin.GET("/articles/:id/delete", h.articles.ConfirmDelete)
	admin.POST("/articles/:id/delete", h.articles.Delete)
	admin.POST("/import", h.articles.Import)
	h.engine = r
	return h
}

func (h *harness) login(t *testing.T) *state.Record {
	t.Helper()
	rec, err := h.auth.Login(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)
	return rec
}

func (h *harness) do(method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

// browserLogin signs in through the form and returns the session cookie.
func (h *harness) browserLogin(t *testing.T) *http.Cookie {
	t.Helper()
	w := h.do(http.MethodPost, "/admin/login", url.Values{"email": {adminEmail}, "password": {adminPassword}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func (h *harness) insert(t *testing.T, rec *state.Record, in models.ArticleInput) *models.Article {
	t.Helper()
	art, err := h.memory.InsertArticle(context.Background(), &rec.Session, in)
	require.NoError(t, err)
	return art
}
