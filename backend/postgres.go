package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

var errInvalidCredentials = &Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}

// PostgresClient keeps articles and admin accounts in Postgres. Tokens are
// stateless JWTs signed with secret.
type PostgresClient struct {
	db         *gorm.DB
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bus        EventBus
}

type PostgresOption func(*PostgresClient)

func WithPostgresEventBus(bus EventBus) PostgresOption {
	return func(c *PostgresClient) { c.bus = bus }
}

func WithTokenTTL(access, refresh time.Duration) PostgresOption {
	return func(c *PostgresClient) {
		c.accessTTL = access
		c.refreshTTL = refresh
	}
}

func NewPostgresClient(db *gorm.DB, secret string, opts ...PostgresOption) *PostgresClient {
	c := &PostgresClient{
		db:         db,
		secret:     []byte(secret),
		accessTTL:  time.Hour,
		refreshTTL: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = NewBroker(0)
	}
	return c
}

// EnsureAdmin creates the bootstrap admin account when it does not exist.
// An existing account keeps its password.
func (c *PostgresClient) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	user := models.AdminUser{Email: email}
	return c.db.WithContext(ctx).
		Where("email = ?", email).
		Attrs(models.AdminUser{PasswordHash: hash}).
		FirstOrCreate(&user).Error
}

func (c *PostgresClient) issue(user models.User) (*models.Session, error) {
	access, expiresAt, err := utils.GenerateJWT(c.secret, user.ID, utils.Claims{Email: user.Email, Kind: tokenKindAccess}, c.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := utils.GenerateJWT(c.secret, user.ID, utils.Claims{Email: user.Email, Kind: tokenKindRefresh}, c.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func (c *PostgresClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var admin models.AdminUser
	if err := c.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, admin.PasswordHash) {
		return nil, errInvalidCredentials
	}

	s, err := c.issue(models.User{ID: admin.ID, Email: admin.Email})
	if err != nil {
		return nil, err
	}
	_ = c.bus.Publish(ctx, authEvent(models.SignedIn, s))
	return s, nil
}

func (c *PostgresClient) RefreshSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil || s.RefreshToken == "" {
		return nil, unauthorized("no refresh token")
	}
	claims, err := utils.ParseJWT(c.secret, s.RefreshToken)
	if err != nil || claims.Kind != tokenKindRefresh {
		return nil, unauthorized("invalid refresh token")
	}

	var admin models.AdminUser
	if err := c.db.WithContext(ctx).Where("id = ?", claims.Subject).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unauthorized("user no longer exists")
		}
		return nil, err
	}

	refreshed, err := c.issue(models.User{ID: admin.ID, Email: admin.Email})
	if err != nil {
		return nil, err
	}
	_ = c.bus.Publish(ctx, authEvent(models.TokenRefreshed, refreshed))
	return refreshed, nil
}

func (c *PostgresClient) GetSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s == nil || s.AccessToken == "" {
		return nil, unauthorized("no session")
	}
	user, err := c.verify(s)
	if err != nil {
		if s.RefreshToken != "" {
			return c.RefreshSession(ctx, s)
		}
		return nil, err
	}
	current := *s
	current.User = user
	return &current, nil
}

func (c *PostgresClient) verify(s *models.Session) (models.User, error) {
	if s == nil || s.AccessToken == "" {
		return models.User{}, unauthorized("no session")
	}
	claims, err := utils.ParseJWT(c.secret, s.AccessToken)
	if err != nil || claims.Kind != tokenKindAccess {
		return models.User{}, unauthorized("invalid or expired session")
	}
	return models.User{ID: claims.Subject, Email: claims.Email}, nil
}

func (c *PostgresClient) SignOut(ctx context.Context, s *models.Session) error {
	user, err := c.verify(s)
	if err != nil {
		return err
	}
	_ = c.bus.Publish(ctx, authEvent(models.SignedOut, &models.Session{User: user}))
	return nil
}

func (c *PostgresClient) Subscribe() (<-chan models.AuthEvent, func()) {
	return c.bus.Subscribe()
}

func (c *PostgresClient) InsertArticle(ctx context.Context, s *models.Session, in models.ArticleInput) (*models.Article, error) {
	if _, err := c.verify(s); err != nil {
		return nil, err
	}
	article := in.Article()
	if err := c.db.WithContext(ctx).Create(&article).Error; err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}
	return &article, nil
}

func (c *PostgresClient) ListArticles(ctx context.Context, q ListQuery) ([]models.Article, error) {
	articles := []models.Article{}
	tx := c.db.WithContext(ctx).Order("created_at DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (c *PostgresClient) DeleteArticle(ctx context.Context, s *models.Session, id string) error {
	if _, err := c.verify(s); err != nil {
		return err
	}
	return c.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Article{}).Error
}

func (c *PostgresClient) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &Error{Status: http.StatusNotFound, Message: "article not found"}
	}
	var article models.Article
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &Error{Status: http.StatusNotFound, Message: "article not found"}
		}
		return nil, err
	}
	return &article, nil
}

func (c *PostgresClient) FindArticleByURL(ctx context.Context, link string) (*models.Article, error) {
	var article models.Article
	if err := c.db.WithContext(ctx).Where("url = ?", link).First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &Error{Status: http.StatusNotFound, Message: "article not found"}
		}
		return nil, err
	}
	return &article, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
