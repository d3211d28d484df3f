package backend

import (
	"context"
	"errors"
	"time"

	"github.com/JerryLinyx/PressGO/metrics"
	"github.com/JerryLinyx/PressGO/models"
)

type instrumented struct {
	next Client
	m    *metrics.Metrics
}

// Instrument records call counts and latency of every backend operation.
func Instrument(c Client, m *metrics.Metrics) Client {
	if m == nil {
		return c
	}
	return &instrumented{next: c, m: m}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthorized):
		outcome = "unauthorized"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	i.m.BackendCalls.WithLabelValues(op, outcome).Inc()
	i.m.BackendLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) GetSession(ctx context.Context, s *models.Session) (_ *models.Session, err error) {
	defer func(start time.Time) { i.observe("get_session", start, err) }(time.Now())
	return i.next.GetSession(ctx, s)
}

func (i *instrumented) SignInWithPassword(ctx context.Context, email, password string) (_ *models.Session, err error) {
	defer func(start time.Time) { i.observe("sign_in", start, err) }(time.Now())
	return i.next.SignInWithPassword(ctx, email, password)
}

func (i *instrumented) RefreshSession(ctx context.Context, s *models.Session) (_ *models.Session, err error) {
	defer func(start time.Time) { i.observe("refresh_session", start, err) }(time.Now())
	return i.next.RefreshSession(ctx, s)
}

func (i *instrumented) SignOut(ctx context.Context, s *models.Session) (err error) {
	defer func(start time.Time) { i.observe("sign_out", start, err) }(time.Now())
	return i.next.SignOut(ctx, s)
}

func (i *instrumented) Subscribe() (<-chan models.AuthEvent, func()) {
	return i.next.Subscribe()
}

func (i *instrumented) InsertArticle(ctx context.Context, s *models.Session, in models.ArticleInput) (_ *models.Article, err error) {
	defer func(start time.Time) { i.observe("insert_article", start, err) }(time.Now())
	return i.next.InsertArticle(ctx, s, in)
}

func (i *instrumented) ListArticles(ctx context.Context, q ListQuery) (_ []models.Article, err error) {
	defer func(start time.Time) { i.observe("list_articles", start, err) }(time.Now())
	return i.next.ListArticles(ctx, q)
}

func (i *instrumented) DeleteArticle(ctx context.Context, s *models.Session, id string) (err error) {
	defer func(start time.Time) { i.observe("delete_article", start, err) }(time.Now())
	return i.next.DeleteArticle(ctx, s, id)
}

func (i *instrumented) GetArticle(ctx context.Context, id string) (_ *models.Article, err error) {
	defer func(start time.Time) { i.observe("get_article", start, err) }(time.Now())
	return i.next.GetArticle(ctx, id)
}

func (i *instrumented) FindArticleByURL(ctx context.Context, link string) (_ *models.Article, err error) {
	defer func(start time.Time) { i.observe("find_article_by_url", start, err) }(time.Now())
	return i.next.FindArticleByURL(ctx, link)
}

func (i *instrumented) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { i.observe("ping", start, err) }(time.Now())
	return i.next.Ping(ctx)
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
