package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/utils"
)

const maxResponseBody = 2 << 20

// RESTClient talks to a Supabase-style backend: GoTrue under /auth/v1 and
// PostgREST under /rest/v1.
type RESTClient struct {
	baseURL    string
	anonKey    string
	table      string
	httpClient *http.Client
	bus        EventBus
	now        func() time.Time
}

type RESTOption func(*RESTClient)

func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *RESTClient) { r.httpClient = c }
}

func WithRESTEventBus(bus EventBus) RESTOption {
	return func(r *RESTClient) { r.bus = bus }
}

func NewRESTClient(baseURL, anonKey, table string, timeout time.Duration, opts ...RESTOption) *RESTClient {
	if table == "" {
		table = "articles"
	}
	c := &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		table:      table,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = NewBroker(0)
	}
	return c
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

func (c *RESTClient) toSession(tr tokenResponse) *models.Session {
	s := &models.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		User:         tr.User,
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		if exp, ok := utils.TokenExpiry(tr.AccessToken); ok {
			s.ExpiresAt = exp
		}
	}
	return s
}

func (c *RESTClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var tr tokenResponse
	body := map[string]string{"email": email, "password": password}
	query := url.Values{"grant_type": {"password"}}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, body, "", nil, &tr); err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, &Error{Status: http.StatusBadGateway, Message: "backend did not return an access token"}
	}

	s := c.toSession(tr)
	_ = c.bus.Publish(ctx, authEvent(models.SignedIn, s))
	return s, nil
}

func (c *RESTClient) RefreshSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil || s.RefreshToken == "" {
		return nil, unauthorized("no refresh token")
	}
	var tr tokenResponse
	body := map[string]string{"refresh_token": s.RefreshToken}
	query := url.Values{"grant_type": {"refresh_token"}}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, body, "", nil, &tr); err != nil {
		return nil, err
	}

	refreshed := c.toSession(tr)
	if refreshed.User.ID == "" {
		refreshed.User = s.User
	}
	_ = c.bus.Publish(ctx, authEvent(models.TokenRefreshed, refreshed))
	return refreshed, nil
}

func (c *RESTClient) GetSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil || s.AccessToken == "" {
		return nil, unauthorized("no session")
	}
	if s.Expired(c.now()) {
		return c.RefreshSession(ctx, s)
	}

	var user models.User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, s.AccessToken, nil, &user); err != nil {
		return nil, err
	}
	current := *s
	current.User = user
	return &current, nil
}

func (c *RESTClient) SignOut(ctx context.Context, s *models.Session) error {
	if s == nil || s.AccessToken == "" {
		return unauthorized("no session")
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, s.AccessToken, nil, nil); err != nil {
		return err
	}
	_ = c.bus.Publish(ctx, authEvent(models.SignedOut, s))
	return nil
}

func (c *RESTClient) Subscribe() (<-chan models.AuthEvent, func()) {
	return c.bus.Subscribe()
}

func (c *RESTClient) tablePath() string {
	return "/rest/v1/" + url.PathEscape(c.table)
}

func (c *RESTClient) InsertArticle(ctx context.Context, s *models.Session, in models.ArticleInput) (*models.Article, error) {
	if s == nil || s.AccessToken == "" {
		return nil, unauthorized("sign in to publish articles")
	}
	var created []models.Article
	headers := map[string]string{"Prefer": "return=representation"}
	if err := c.do(ctx, http.MethodPost, c.tablePath(), nil, []models.ArticleInput{in}, s.AccessToken, headers, &created); err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, &Error{Status: http.StatusBadGateway, Message: "backend did not return the inserted article"}
	}
	return &created[0], nil
}

func (c *RESTClient) ListArticles(ctx context.Context, q ListQuery) ([]models.Article, error) {
	query := url.Values{
		"select": {"*"},
		"order":  {"created_at.desc"},
	}
	if q.Limit > 0 {
		query.Set("limit", fmt.Sprint(q.Limit))
	}
	articles := []models.Article{}
	if err := c.do(ctx, http.MethodGet, c.tablePath(), query, nil, "", nil, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (c *RESTClient) DeleteArticle(ctx context.Context, s *models.Session, id string) error {
	if s == nil || s.AccessToken == "" {
		return unauthorized("sign in to delete articles")
	}
	query := url.Values{"id": {"eq." + id}}
	return c.do(ctx, http.MethodDelete, c.tablePath(), query, nil, s.AccessToken, nil, nil)
}

func (c *RESTClient) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	query := url.Values{
		"select": {"*"},
		"id":     {"eq." + id},
		"limit":  {"1"},
	}
	var articles []models.Article
	if err := c.do(ctx, http.MethodGet, c.tablePath(), query, nil, "", nil, &articles); err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, &Error{Status: http.StatusNotFound, Message: "article not found"}
	}
	return &articles[0], nil
}

func (c *RESTClient) FindArticleByURL(ctx context.Context, link string) (*models.Article, error) {
	query := url.Values{
		"select": {"*"},
		"url":    {"eq." + link},
		"limit":  {"1"},
	}
	var articles []models.Article
	if err := c.do(ctx, http.MethodGet, c.tablePath(), query, nil, "", nil, &articles); err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, &Error{Status: http.StatusNotFound, Message: "article not found"}
	}
	return &articles[0], nil
}

func (c *RESTClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/v1/health", nil, nil, "", nil, nil)
}

func (c *RESTClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// do sends one request. token is the user's access token; the anon key is
// used when it is empty.
func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, body any, token string, headers map[string]string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return extractBackendError(data, resp.StatusCode)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

// extractBackendError understands GoTrue ({error, error_description} and
// {code, error_code, msg}) and PostgREST ({code, message, details}) bodies.
func extractBackendError(body []byte, statusCode int) *Error {
	e := &Error{Status: statusCode}

	var errResp map[string]interface{}
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, key := range []string{"error_code", "code", "error"} {
			if code, ok := errResp[key].(string); ok && code != "" {
				e.Code = code
				break
			}
		}
		for _, key := range []string{"error_description", "msg", "message", "error"} {
			if msg, ok := errResp[key].(string); ok && msg != "" {
				e.Message = msg
				return e
			}
		}
		if detail, ok := errResp["detail"]; ok {
			switch d := detail.(type) {
			case string:
				if d != "" {
					e.Message = d
					return e
				}
			case []interface{}:
				if len(d) > 0 {
					if first, ok := d[0].(map[string]interface{}); ok {
						if msg, ok := first["msg"].(string); ok && msg != "" {
							e.Message = msg
							return e
						}
					}
				}
			}
		}
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && !strings.HasPrefix(trimmed, "{") {
		e.Message = trimmed
		return e
	}
	e.Message = fmt.Sprintf("backend returned status %d", statusCode)
	return e
}
