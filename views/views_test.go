package views

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/state"
)

func strPtr(s string) *string { return &s }

func TestEscape(t *testing.T) {
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", string(Escape("<script>alert(1)</script>")))
	assert.Equal(t, "Tom &amp; Jerry &#34;quoted&#34;", string(Escape(`Tom & Jerry "quoted"`)))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := Truncate(long, DefaultExcerptLimit)
	assert.Equal(t, strings.Repeat("a", 150)+"...", got)

	short := strings.Repeat("b", 100)
	assert.Equal(t, short, Truncate(short, DefaultExcerptLimit))

	multibyte := strings.Repeat("é", 151)
	assert.Equal(t, strings.Repeat("é", 150)+"...", Truncate(multibyte, DefaultExcerptLimit))
}

func TestExcerptOfFallbacks(t *testing.T) {
	assert.Equal(t, "summary", ExcerptOf(models.Article{Excerpt: "summary", Content: "body"}, 150))
	assert.Equal(t, "body", ExcerptOf(models.Article{Excerpt: "  ", Content: "body"}, 150))
	assert.Equal(t, NoDescription, ExcerptOf(models.Article{}, 150))
}

func TestAuthorOf(t *testing.T) {
	assert.Equal(t, "Anonymous", AuthorOf(models.Article{Author: "   "}))
	assert.Equal(t, "Ada", AuthorOf(models.Article{Author: "Ada"}))
}

func TestFormatDates(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)
	assert.Equal(t, "Mar 5, 2024", FormatDate(ts))
	assert.Equal(t, "Mar 5, 2024, 02:07 PM", FormatDateTime(ts))
	assert.Empty(t, FormatDate(time.Time{}))
}

func TestNewFlashView(t *testing.T) {
	assert.Nil(t, NewFlashView(nil))

	fv := NewFlashView(&state.Flash{Kind: state.FlashSuccess, Text: PublishedText, HideAfter: AutoHide})
	require.NotNil(t, fv)
	assert.Equal(t, int64(5000), fv.AutoHideMS)

	fv = NewFlashView(&state.Flash{Kind: state.FlashError, Text: "<b>nope</b>"})
	assert.Zero(t, fv.AutoHideMS)
	assert.Equal(t, "&lt;b&gt;nope&lt;/b&gt;", string(fv.Text))
}

func render(t *testing.T, name string, data any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Templates().ExecuteTemplate(&buf, name, data))
	return buf.String()
}

// visibleStates reports which of the four feed regions lack the hidden class.
func visibleStates(html string) []string {
	regions := map[string]string{
		"loading":   `id="loading" class="loading"`,
		"error":     `id="error" class="error"`,
		"empty":     `id="no-articles" class="empty"`,
		"populated": `id="articles-list" class="articles-list"`,
	}
	var visible []string
	for _, name := range []string{"loading", "error", "empty", "populated"} {
		if strings.Contains(html, regions[name]+">") {
			visible = append(visible, name)
		}
	}
	return visible
}

func TestFeedFragmentShowsExactlyOneState(t *testing.T) {
	cases := []struct {
		state LoadState
		cards []FeedCard
	}{
		{StateLoading, nil},
		{StateError, nil},
		{StateEmpty, nil},
		{StatePopulated, []FeedCard{NewFeedCard(models.Article{ID: "1", Title: "One"}, 150)}},
	}
	for _, tc := range cases {
		t.Run(string(tc.state), func(t *testing.T) {
			out := render(t, "articles.html", &FeedView{PageID: "p", State: tc.state, Cards: tc.cards})
			assert.Equal(t, []string{string(tc.state)}, visibleStates(out))
		})
	}
}

func TestFeedFragmentEscapesAndLinks(t *testing.T) {
	linked := models.Article{
		ID:        "1",
		Title:     "<script>alert(1)</script>",
		URL:       strPtr("https://example.com/post"),
		ImageURL:  strPtr("https://example.com/cover.png"),
		CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	inert := models.Article{ID: "2", Title: "Plain", Excerpt: strings.Repeat("x", 200)}

	view := &FeedView{State: StatePopulated, Cards: []FeedCard{NewFeedCard(linked, 150), NewFeedCard(inert, 150)}}
	out := render(t, "articles.html", view)

	assert.Contains(t, out, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, out, "<script>alert(1)")
	assert.Contains(t, out, `href="https://example.com/post" target="_blank" rel="noopener noreferrer"`)
	assert.Contains(t, out, `src="https://example.com/cover.png"`)
	assert.Contains(t, out, "Jan 2, 2024")
	assert.Contains(t, out, strings.Repeat("x", 150)+"...")
	assert.Equal(t, 1, strings.Count(out, "<a class=\"article-item clickable\""))
	assert.Contains(t, out, "Anonymous")
}

func TestAdminPageModes(t *testing.T) {
	login := render(t, "admin.html", AdminPage{
		Title:      "PressGO Admin",
		Mode:       ModeLogin,
		LoginEmail: "a@example.com",
		LoginError: Escape("Invalid login credentials"),
	})
	assert.Contains(t, login, `id="login-error"`)
	assert.Contains(t, login, "Invalid login credentials")
	assert.NotContains(t, login, `id="dashboard-section"`)

	dash := render(t, "admin.html", AdminPage{
		Title:      "PressGO Admin",
		Mode:       ModeDashboard,
		Email:      Escape("admin@example.com"),
		Flash:      &FlashView{Kind: "success", Text: Escape(PublishedText), AutoHideMS: 5000},
		Submitting: true,
		Recent: RecentList{State: StatePopulated, Rows: []RecentRow{
			NewRecentRow(models.Article{ID: "abc", Title: "<i>t</i>"}),
		}},
	})
	assert.Contains(t, dash, `id="login-section" class="hidden"`)
	assert.Contains(t, dash, `data-autohide="5000"`)
	assert.Contains(t, dash, `id="submit-btn" disabled`)
	assert.Contains(t, dash, `action="/admin/articles/abc/delete"`)
	assert.Contains(t, dash, "&lt;i&gt;t&lt;/i&gt;")
	assert.Contains(t, dash, "By Anonymous")
}

func TestRecentFragmentPlaceholder(t *testing.T) {
	out := render(t, "recent.html", RecentList{State: StateEmpty, Message: RecentEmptyText})
	assert.Contains(t, out, RecentEmptyText)

	out = render(t, "recent.html", RecentList{State: StateError, Message: RecentErrorText})
	assert.Contains(t, out, RecentErrorText)
}
