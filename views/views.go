package views

import (
	"html/template"
	"time"

	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/state"
)

// LoadState is the lifecycle every list view goes through:
// idle → loading → populated | empty | error.
type LoadState string

const (
	StateIdle      LoadState = "idle"
	StateLoading   LoadState = "loading"
	StatePopulated LoadState = "populated"
	StateEmpty     LoadState = "empty"
	StateError     LoadState = "error"
)

const (
	FeedEmptyText      = "No articles published yet."
	FeedErrorText      = "Failed to load articles. Please try again later."
	RecentEmptyText    = "No articles yet. Create your first one!"
	RecentErrorText    = "Failed to load articles."
	LoginFailedText    = "Failed to login. Please check your credentials."
	PublishedText      = "Article published successfully!"
	SubmitInFlightText = "A submission is already in progress."
	PublishFailedFmt   = "Failed to publish article: %s"
	DeleteFailedFmt    = "Failed to delete article: %s"
	ImportFailedFmt    = "Failed to import feed: %s"
	ImportedFmt        = "Imported %d new articles."
)

type FeedCard struct {
	ID       string        `json:"id"`
	Title    template.HTML `json:"title"`
	Excerpt  template.HTML `json:"excerpt"`
	Author   template.HTML `json:"author"`
	Date     string        `json:"date"`
	ImageURL string        `json:"image_url,omitempty"`
	Link     string        `json:"link,omitempty"`
}

func NewFeedCard(a models.Article, excerptLimit int) FeedCard {
	card := FeedCard{
		ID:      a.ID,
		Title:   Escape(a.Title),
		Excerpt: Escape(ExcerptOf(a, excerptLimit)),
		Author:  Escape(AuthorOf(a)),
		Date:    FormatDate(a.CreatedAt),
	}
	if a.ImageURL != nil {
		card.ImageURL = *a.ImageURL
	}
	if a.URL != nil {
		card.Link = *a.URL
	}
	return card
}

// Clickable reports whether the card opens an external page.
func (c FeedCard) Clickable() bool {
	return c.Link != ""
}

// FeedView is the articles tab of one page load.
type FeedView struct {
	PageID string     `json:"page_id"`
	State  LoadState  `json:"state"`
	Cards  []FeedCard `json:"cards"`
}

func (v *FeedView) Is(s LoadState) bool {
	return v != nil && v.State == s
}

func (v *FeedView) EmptyText() string { return FeedEmptyText }
func (v *FeedView) ErrorText() string { return FeedErrorText }

type RecentRow struct {
	ID     string
	Title  template.HTML
	Author template.HTML
	Date   string
}

func NewRecentRow(a models.Article) RecentRow {
	return RecentRow{
		ID:     a.ID,
		Title:  Escape(a.Title),
		Author: Escape(AuthorOf(a)),
		Date:   FormatDateTime(a.CreatedAt),
	}
}

// RecentList is the dashboard's list of latest articles. Message is set for
// the empty and error states.
type RecentList struct {
	State   LoadState
	Rows    []RecentRow
	Message string
}

type FlashView struct {
	Kind       string
	Text       template.HTML
	AutoHideMS int64
}

func NewFlashView(f *state.Flash) *FlashView {
	if f == nil {
		return nil
	}
	return &FlashView{
		Kind:       string(f.Kind),
		Text:       Escape(f.Text),
		AutoHideMS: f.HideAfter.Milliseconds(),
	}
}

// ArticleForm holds submitted values so a failed publish can be retried.
type ArticleForm struct {
	Title    string `form:"title"`
	Author   string `form:"author"`
	Excerpt  string `form:"excerpt"`
	Content  string `form:"content"`
	ImageURL string `form:"image_url"`
}

type AdminMode string

const (
	ModeLogin     AdminMode = "login"
	ModeDashboard AdminMode = "dashboard"
)

type AdminPage struct {
	Title      string
	Mode       AdminMode
	Email      template.HTML
	LoginEmail string
	LoginError template.HTML
	Flash      *FlashView
	Form       ArticleForm
	Recent     RecentList
	Submitting bool
}

type PublicPage struct {
	Title  string
	Tab    string
	PageID string
	Feed   *FeedView
}

type ConfirmDeletePage struct {
	Title        string
	ArticleID    string
	ArticleTitle template.HTML
}

type AlertPage struct {
	Title   string
	Message template.HTML
	Back    string
}

// AutoHide is how long a success flash stays on screen.
const AutoHide = 5 * time.Second
