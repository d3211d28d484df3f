package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JerryLinyx/PressGO/backend"
	"github.com/JerryLinyx/PressGO/metrics"
	"github.com/JerryLinyx/PressGO/middlewares"
	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/state"
	"github.com/JerryLinyx/PressGO/views"
)

const (
	TabHome     = "home"
	TabArticles = "articles"
)

// FeedController serves the public pages. The articles of a page are
// fetched once per page id; later requests for that id reuse the result.
type FeedController struct {
	client       backend.Client
	pages        state.PageStore
	metrics      *metrics.Metrics
	log          *zap.SugaredLogger
	title        string
	excerptLimit int

	group singleflight.Group
}

func NewFeedController(client backend.Client, pages state.PageStore, m *metrics.Metrics, title string, excerptLimit int, log *zap.SugaredLogger) *FeedController {
	if excerptLimit <= 0 {
		excerptLimit = views.DefaultExcerptLimit
	}
	return &FeedController{
		client:       client,
		pages:        pages,
		metrics:      m,
		log:          log,
		title:        title,
		excerptLimit: excerptLimit,
	}
}

// settled reports whether v is final for its page. A failed fetch is not:
// the next load of the page tries the backend again.
func settled(v *views.FeedView) bool {
	return v.Is(views.StatePopulated) || v.Is(views.StateEmpty)
}

// Load returns the articles view of pageID, fetching from the backend until
// one fetch succeeds. Concurrent first loads share one fetch.
func (f *FeedController) Load(ctx context.Context, pageID string) *views.FeedView {
	var stored views.FeedView
	if ok, err := f.pages.Load(ctx, pageID, &stored); err != nil {
		f.log.Warnw("load page state", "page_id", pageID, "error", err)
	} else if ok && settled(&stored) {
		return &stored
	}

	v, _, _ := f.group.Do(pageID, func() (any, error) {
		var again views.FeedView
		if ok, err := f.pages.Load(ctx, pageID, &again); err == nil && ok && settled(&again) {
			return &again, nil
		}
		view := f.fetch(ctx, pageID)
		if !settled(view) {
			return view, nil
		}
		if err := f.pages.Store(ctx, pageID, view); err != nil {
			f.log.Warnw("store page state", "page_id", pageID, "error", err)
		}
		return view, nil
	})
	return v.(*views.FeedView)
}

func (f *FeedController) fetch(ctx context.Context, pageID string) *views.FeedView {
	view := &views.FeedView{PageID: pageID, State: views.StateLoading}
	if f.metrics != nil {
		f.metrics.FeedFetches.Inc()
	}

	articles, err := f.client.ListArticles(ctx, backend.ListQuery{})
	if err != nil {
		f.log.Errorw("load articles", "page_id", pageID, "error", err)
		view.State = views.StateError
		return view
	}
	if len(articles) == 0 {
		view.State = views.StateEmpty
		return view
	}

	view.Cards = make([]views.FeedCard, 0, len(articles))
	for _, art := range articles {
		view.Cards = append(view.Cards, views.NewFeedCard(art, f.excerptLimit))
	}
	view.State = views.StatePopulated
	return view
}

// Home renders the page shell under a fresh page id.
func (f *FeedController) Home(c *gin.Context) {
	page := views.PublicPage{
		Title:  f.title,
		Tab:    TabHome,
		PageID: uuid.NewString(),
	}
	if c.Query("tab") == TabArticles {
		page.Tab = TabArticles
		page.Feed = f.Load(c.Request.Context(), page.PageID)
	}
	c.HTML(http.StatusOK, "public.html", page)
}

// Articles renders the articles fragment for the page named by ?page=.
// Without a page id the fragment is fetched but not kept.
func (f *FeedController) Articles(c *gin.Context) {
	pageID := c.Query("page")
	if pageID == "" {
		c.HTML(http.StatusOK, "articles.html", f.fetch(c.Request.Context(), uuid.NewString()))
		return
	}
	c.HTML(http.StatusOK, "articles.html", f.Load(c.Request.Context(), pageID))
}

func (f *FeedController) API(c *gin.Context) {
	articles, err := f.client.ListArticles(c.Request.Context(), backend.ListQuery{})
	if err != nil {
		middlewares.Logger(c).Errorw("list articles", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": backend.Message(err, "failed to load articles")})
		return
	}
	if articles == nil {
		articles = []models.Article{}
	}
	c.JSON(http.StatusOK, articles)
}
