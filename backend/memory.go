package backend

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/utils"
	"github.com/google/uuid"
)

type memoryUser struct {
	id   string
	hash string
}

type memoryArticle struct {
	seq     int
	article models.Article
}

// MemoryClient is a complete in-process backend. It signs users out of all
// of their sessions at once, like the hosted service's global sign-out.
type MemoryClient struct {
	mu        sync.Mutex
	users     map[string]memoryUser
	sessions  map[string]models.Session
	refreshes map[string]models.User
	articles  []memoryArticle
	seq       int
	ttl       time.Duration
	now       func() time.Time
	bus       EventBus
}

type MemoryOption func(*MemoryClient)

func WithMemoryEventBus(bus EventBus) MemoryOption {
	return func(c *MemoryClient) { c.bus = bus }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryClient) { c.now = now }
}

func WithSessionTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryClient) { c.ttl = ttl }
}

func NewMemoryClient(opts ...MemoryOption) *MemoryClient {
	c := &MemoryClient{
		users:     make(map[string]memoryUser),
		sessions:  make(map[string]models.Session),
		refreshes: make(map[string]models.User),
		ttl:       time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = NewBroker(0)
	}
	return c
}

func (c *MemoryClient) AddUser(email, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[email] = memoryUser{id: uuid.NewString(), hash: hash}
	return nil
}

// newSessionLocked must be called with c.mu held.
func (c *MemoryClient) newSessionLocked(user models.User) *models.Session {
	s := models.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    c.now().Add(c.ttl),
		User:         user,
	}
	c.sessions[s.AccessToken] = s
	c.refreshes[s.RefreshToken] = user
	return &s
}

func (c *MemoryClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	c.mu.Lock()
	u, ok := c.users[email]
	if !ok || !utils.CheckPassword(password, u.hash) {
		c.mu.Unlock()
		return nil, errInvalidCredentials
	}
	s := c.newSessionLocked(models.User{ID: u.id, Email: email})
	c.mu.Unlock()

	_ = c.bus.Publish(ctx, authEvent(models.SignedIn, s))
	return s, nil
}

func (c *MemoryClient) RefreshSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil || s.RefreshToken == "" {
		return nil, unauthorized("no refresh token")
	}
	c.mu.Lock()
	user, ok := c.refreshes[s.RefreshToken]
	if !ok {
		c.mu.Unlock()
		return nil, unauthorized("invalid refresh token")
	}
	delete(c.refreshes, s.RefreshToken)
	delete(c.sessions, s.AccessToken)
	refreshed := c.newSessionLocked(user)
	c.mu.Unlock()

	_ = c.bus.Publish(ctx, authEvent(models.TokenRefreshed, refreshed))
	return refreshed, nil
}

func (c *MemoryClient) GetSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil || s.AccessToken == "" {
		return nil, unauthorized("no session")
	}
	c.mu.Lock()
	stored, ok := c.sessions[s.AccessToken]
	c.mu.Unlock()
	if !ok {
		return nil, unauthorized("session not found")
	}
	if stored.Expired(c.now()) {
		return c.RefreshSession(ctx, &stored)
	}
	return &stored, nil
}

func (c *MemoryClient) verify(s *models.Session) (models.User, error) {
	if s == nil {
		return models.User{}, unauthorized("no session")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.sessions[s.AccessToken]
	if !ok || stored.Expired(c.now()) {
		return models.User{}, unauthorized("invalid or expired session")
	}
	return stored.User, nil
}

func (c *MemoryClient) SignOut(ctx context.Context, s *models.Session) error {
	user, err := c.verify(s)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for token, stored := range c.sessions {
		if stored.User.ID == user.ID {
			delete(c.sessions, token)
		}
	}
	for token, u := range c.refreshes {
		if u.ID == user.ID {
			delete(c.refreshes, token)
		}
	}
	c.mu.Unlock()

	_ = c.bus.Publish(ctx, authEvent(models.SignedOut, &models.Session{User: user}))
	return nil
}

func (c *MemoryClient) Subscribe() (<-chan models.AuthEvent, func()) {
	return c.bus.Subscribe()
}

func (c *MemoryClient) InsertArticle(ctx context.Context, s *models.Session, in models.ArticleInput) (*models.Article, error) {
	if _, err := c.verify(s); err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, &Error{Status: http.StatusBadRequest, Code: "23514", Message: `new row for relation "articles" violates check constraint "articles_title_check"`}
	}
	article := in.Article()
	article.ID = uuid.NewString()
	article.CreatedAt = c.now().UTC()

	c.mu.Lock()
	c.seq++
	c.articles = append(c.articles, memoryArticle{seq: c.seq, article: article})
	c.mu.Unlock()
	return &article, nil
}

func (c *MemoryClient) ListArticles(ctx context.Context, q ListQuery) ([]models.Article, error) {
	c.mu.Lock()
	rows := make([]memoryArticle, len(c.articles))
	copy(rows, c.articles)
	c.mu.Unlock()

	// Equal timestamps fall back to insertion order so the newest insert
	// still comes first.
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].article.CreatedAt.Equal(rows[j].article.CreatedAt) {
			return rows[i].article.CreatedAt.After(rows[j].article.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	articles := make([]models.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, r.article)
	}
	return articles, nil
}

func (c *MemoryClient) DeleteArticle(ctx context.Context, s *models.Session, id string) error {
	if _, err := c.verify(s); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.articles {
		if r.article.ID == id {
			c.articles = append(c.articles[:i], c.articles[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *MemoryClient) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.articles {
		if r.article.ID == id {
			article := r.article
			return &article, nil
		}
	}
	return nil, &Error{Status: http.StatusNotFound, Message: "article not found"}
}

func (c *MemoryClient) FindArticleByURL(ctx context.Context, link string) (*models.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.articles {
		if r.article.URL != nil && *r.article.URL == link {
			article := r.article
			return &article, nil
		}
	}
	return nil, &Error{Status: http.StatusNotFound, Message: "article not found"}
}

func (c *MemoryClient) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (c *MemoryClient) Close() error {
	return nil
}
