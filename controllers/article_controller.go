package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JerryLinyx/PressGO/backend"
	"github.com/JerryLinyx/PressGO/importer"
	"github.com/JerryLinyx/PressGO/middlewares"
	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/state"
	"github.com/JerryLinyx/PressGO/views"
)

var (
	ErrSubmitInFlight = errors.New("submission already in progress")
	ErrNotConfirmed   = errors.New("delete not confirmed")
	ErrTitleRequired  = errors.New("title is required")
)

const (
	DefaultRecentLimit = 10
	DefaultImportLimit = 5
)

type ArticleOptions struct {
	Title       string
	RecentLimit int
	ImportLimit int
}

// ArticleController handles the admin dashboard's article operations.
type ArticleController struct {
	client   backend.Client
	sessions state.SessionStore
	importer *importer.Importer
	log      *zap.SugaredLogger

	title       string
	recentLimit int
	importLimit int

	// inflight holds the record ids with a submission pending.
	inflight sync.Map
}

func NewArticleController(client backend.Client, sessions state.SessionStore, imp *importer.Importer, opts ArticleOptions, log *zap.SugaredLogger) *ArticleController {
	if opts.Title == "" {
		opts.Title = "PressGO"
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if opts.ImportLimit <= 0 {
		opts.ImportLimit = DefaultImportLimit
	}
	return &ArticleController{
		client:      client,
		sessions:    sessions,
		importer:    imp,
		log:         log,
		title:       opts.Title,
		recentLimit: opts.RecentLimit,
		importLimit: opts.ImportLimit,
	}
}

// articleInput trims the form. An empty author becomes the default author
// and an empty image URL is stored as null.
func articleInput(form views.ArticleForm) models.ArticleInput {
	in := models.ArticleInput{
		Title:   strings.TrimSpace(form.Title),
		Author:  strings.TrimSpace(form.Author),
		Excerpt: strings.TrimSpace(form.Excerpt),
		Content: strings.TrimSpace(form.Content),
	}
	if in.Author == "" {
		in.Author = models.DefaultAuthor
	}
	if img := strings.TrimSpace(form.ImageURL); img != "" {
		in.ImageURL = &img
	}
	return in
}

func (a *ArticleController) SubmitArticle(ctx context.Context, rec *state.Record, form views.ArticleForm) (*models.Article, error) {
	if _, busy := a.inflight.LoadOrStore(rec.ID, struct{}{}); busy {
		return nil, ErrSubmitInFlight
	}
	defer a.inflight.Delete(rec.ID)

	in := articleInput(form)
	if in.Title == "" {
		return nil, ErrTitleRequired
	}
	return a.client.InsertArticle(ctx, &rec.Session, in)
}

// LoadRecentArticles never fails; a backend error becomes the error state.
func (a *ArticleController) LoadRecentArticles(ctx context.Context) views.RecentList {
	articles, err := a.client.ListArticles(ctx, backend.ListQuery{Limit: a.recentLimit})
	if err != nil {
		a.log.Errorw("load recent articles", "error", err)
		return views.RecentList{State: views.StateError, Message: views.RecentErrorText}
	}
	if len(articles) == 0 {
		return views.RecentList{State: views.StateEmpty, Message: views.RecentEmptyText}
	}

	rows := make([]views.RecentRow, 0, len(articles))
	for _, art := range articles {
		rows = append(rows, views.NewRecentRow(art))
	}
	return views.RecentList{State: views.StatePopulated, Rows: rows}
}

func (a *ArticleController) DeleteArticle(ctx context.Context, rec *state.Record, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	return a.client.DeleteArticle(ctx, &rec.Session, id)
}

// ImportFeed inserts the newest feed items whose link is not stored yet and
// reports how many were added.
func (a *ArticleController) ImportFeed(ctx context.Context, rec *state.Record, feedURL string) (int, error) {
	items, err := a.importer.Fetch(ctx, feedURL)
	if err != nil {
		return 0, fmt.Errorf("fetch feed: %w", err)
	}

	author := rec.Session.User.Email
	if author == "" {
		author = models.DefaultAuthor
	}

	inserted := 0
	for _, item := range items {
		if inserted >= a.importLimit {
			break
		}
		if _, err := a.client.FindArticleByURL(ctx, item.Link); err == nil {
			continue
		} else if !errors.Is(err, backend.ErrNotFound) {
			return inserted, err
		}

		in, err := a.importer.Input(item, author)
		if err != nil {
			a.log.Warnw("skip feed item", "link", item.Link, "error", err)
			continue
		}
		if _, err := a.client.InsertArticle(ctx, &rec.Session, in); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (a *ArticleController) renderDashboard(c *gin.Context, status int, rec *state.Record, form views.ArticleForm, flash *views.FlashView, submitting bool) {
	c.HTML(status, "admin.html", views.AdminPage{
		Title:      a.title + " Admin",
		Mode:       views.ModeDashboard,
		Email:      views.Escape(rec.Session.User.Email),
		Flash:      flash,
		Form:       form,
		Recent:     a.LoadRecentArticles(c.Request.Context()),
		Submitting: submitting,
	})
}

// flashAndRedirect parks a flash on the session and sends the browser back
// to the dashboard.
func (a *ArticleController) flashAndRedirect(c *gin.Context, rec *state.Record, flash *state.Flash) {
	rec.Flash = flash
	if err := a.sessions.Save(c.Request.Context(), rec); err != nil {
		middlewares.Logger(c).Warnw("store flash", "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

func errorFlash(text string) *views.FlashView {
	return views.NewFlashView(&state.Flash{Kind: state.FlashError, Text: text})
}

func (a *ArticleController) Create(c *gin.Context) {
	rec := middlewares.AdminRecord(c)

	var form views.ArticleForm
	if err := c.ShouldBind(&form); err != nil {
		a.renderDashboard(c, http.StatusBadRequest, rec, form, errorFlash(fmt.Sprintf(views.PublishFailedFmt, err.Error())), false)
		return
	}

	_, err := a.SubmitArticle(c.Request.Context(), rec, form)
	switch {
	case err == nil:
		a.flashAndRedirect(c, rec, &state.Flash{Kind: state.FlashSuccess, Text: views.PublishedText, HideAfter: views.AutoHide})
	case errors.Is(err, ErrSubmitInFlight):
		a.renderDashboard(c, http.StatusConflict, rec, form, errorFlash(views.SubmitInFlightText), true)
	default:
		middlewares.Logger(c).Errorw("publish article", "error", err)
		msg := fmt.Sprintf(views.PublishFailedFmt, backend.Message(err, "unknown error"))
		a.renderDashboard(c, http.StatusOK, rec, form, errorFlash(msg), false)
	}
}

func (a *ArticleController) Recent(c *gin.Context) {
	c.HTML(http.StatusOK, "recent.html", a.LoadRecentArticles(c.Request.Context()))
}

// ConfirmDelete renders the confirmation step for browsers without script.
func (a *ArticleController) ConfirmDelete(c *gin.Context) {
	id := c.Param("id")
	page := views.ConfirmDeletePage{Title: a.title + " Admin", ArticleID: id}
	art, err := a.client.GetArticle(c.Request.Context(), id)
	switch {
	case err == nil:
		page.ArticleTitle = views.Escape(art.Title)
	case !errors.Is(err, backend.ErrNotFound):
		middlewares.Logger(c).Warnw("load article for delete", "article_id", id, "error", err)
	}
	c.HTML(http.StatusOK, "confirm_delete.html", page)
}

func (a *ArticleController) Delete(c *gin.Context) {
	rec := middlewares.AdminRecord(c)
	id := c.Param("id")

	err := a.DeleteArticle(c.Request.Context(), rec, id, c.PostForm("confirmed") == "yes")
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/admin")
	case errors.Is(err, ErrNotConfirmed):
		c.Redirect(http.StatusSeeOther, "/admin/articles/"+id+"/delete")
	default:
		middlewares.Logger(c).Errorw("delete article", "article_id", id, "error", err)
		c.HTML(http.StatusBadGateway, "alert.html", views.AlertPage{
			Title:   a.title + " Admin",
			Message: views.Escape(fmt.Sprintf(views.DeleteFailedFmt, backend.Message(err, "unknown error"))),
			Back:    "/admin",
		})
	}
}

func (a *ArticleController) Import(c *gin.Context) {
	rec := middlewares.AdminRecord(c)
	feedURL := strings.TrimSpace(c.PostForm("feed_url"))
	if feedURL == "" {
		a.renderDashboard(c, http.StatusBadRequest, rec, views.ArticleForm{}, errorFlash(fmt.Sprintf(views.ImportFailedFmt, "feed URL is required")), false)
		return
	}

	n, err := a.ImportFeed(c.Request.Context(), rec, feedURL)
	if err != nil {
		middlewares.Logger(c).Errorw("import feed", "feed_url", feedURL, "imported", n, "error", err)
		a.renderDashboard(c, http.StatusOK, rec, views.ArticleForm{}, errorFlash(fmt.Sprintf(views.ImportFailedFmt, backend.Message(err, "unknown error"))), false)
		return
	}
	a.flashAndRedirect(c, rec, &state.Flash{Kind: state.FlashSuccess, Text: fmt.Sprintf(views.ImportedFmt, n), HideAfter: views.AutoHide})
}
