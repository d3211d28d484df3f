package views

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JerryLinyx/PressGO/models"
)

const (
	NoDescription = "No description available."
	Ellipsis      = "..."

	DefaultExcerptLimit = 150
)

// Truncate keeps the first limit runes of s and marks the cut with an
// ellipsis. Strings within the limit are returned unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + Ellipsis
}

// ExcerptOf picks the excerpt, then the content, then the placeholder.
func ExcerptOf(a models.Article, limit int) string {
	text := strings.TrimSpace(a.Excerpt)
	if text == "" {
		text = strings.TrimSpace(a.Content)
	}
	if text == "" {
		return NoDescription
	}
	return Truncate(text, limit)
}

func AuthorOf(a models.Article) string {
	if strings.TrimSpace(a.Author) == "" {
		return models.DefaultAuthor
	}
	return a.Author
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006, 03:04 PM")
}
