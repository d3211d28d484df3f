package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/JerryLinyx/PressGO/models"
)

const (
	maxFeedBytes = 2 << 20

	// DefaultExcerptLimit bounds the stored plain-text excerpt.
	DefaultExcerptLimit = 280
)

// Importer fetches feeds and converts their items.
type Importer struct {
	client       *http.Client
	converter    *md.Converter
	excerptLimit int
}

func New(client *http.Client, excerptLimit int) *Importer {
	if client == nil {
		client = http.DefaultClient
	}
	if excerptLimit <= 0 {
		excerptLimit = DefaultExcerptLimit
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Importer{client: client, converter: converter, excerptLimit: excerptLimit}
}

// Fetch downloads and parses the feed at url, newest items first.
func (im *Importer) Fetch(ctx context.Context, url string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.5")

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Input converts an item into an article: markdown content from the HTML
// description, a plain-text excerpt, and the item link as external URL.
func (im *Importer) Input(it Item, author string) (models.ArticleInput, error) {
	content, err := im.converter.ConvertString(it.Description)
	if err != nil {
		return models.ArticleInput{}, fmt.Errorf("convert %q: %w", it.Link, err)
	}
	content = strings.TrimSpace(content)

	excerpt := truncate(plainText(it.Description), im.excerptLimit)
	if content == "" {
		content = it.Title
	}

	link := it.Link
	return models.ArticleInput{
		Title:   it.Title,
		Author:  author,
		Excerpt: excerpt,
		Content: content,
		URL:     &link,
	}, nil
}

// plainText flattens an HTML fragment into whitespace-normalised text.
func plainText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.P, atom.Br, atom.Div, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.Blockquote:
				b.WriteByte(' ')
				defer b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
