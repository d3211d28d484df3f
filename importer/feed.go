// Package importer pulls items from RSS and Atom feeds and turns them into
// article inputs.
package importer

import (
	"encoding/xml"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"
)

var ErrUnknownFormat = errors.New("not an RSS or Atom document")

// Item is one feed entry, regardless of the feed flavour.
type Item struct {
	Title       string
	Link        string
	Description string
	PublishedAt *time.Time
}

type rssEnvelope struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			Encoded     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
			GUID        string `xml:"guid"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomEnvelope struct {
	Entries []struct {
		Title     string     `xml:"title"`
		Links     []atomLink `xml:"link"`
		Summary   string     `xml:"summary"`
		Content   string     `xml:"content"`
		ID        string     `xml:"id"`
		Updated   string     `xml:"updated"`
		Published string     `xml:"published"`
	} `xml:"entry"`
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// Parse detects the feed flavour from the root element and returns its
// items newest first. Entries without a title or link are skipped.
func Parse(data []byte) ([]Item, error) {
	var root struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	var (
		items []Item
		err   error
	)
	switch strings.ToLower(root.XMLName.Local) {
	case "feed":
		items, err = parseAtom(data)
	case "rss":
		items, err = parseRSS(data)
	default:
		return nil, ErrUnknownFormat
	}
	if err != nil {
		return nil, err
	}

	// Undated items keep feed order behind the dated ones.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PublishedAt == nil {
			return false
		}
		if items[j].PublishedAt == nil {
			return true
		}
		return items[i].PublishedAt.After(*items[j].PublishedAt)
	})
	return items, nil
}

func parseRSS(data []byte) ([]Item, error) {
	var rss rssEnvelope
	if err := xml.Unmarshal(data, &rss); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rss.Channel.Items))
	for _, it := range rss.Channel.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			link = permalink(it.GUID)
		}
		title := strings.TrimSpace(it.Title)
		if link == "" || title == "" {
			continue
		}
		desc := it.Encoded
		if strings.TrimSpace(desc) == "" {
			desc = it.Description
		}
		items = append(items, Item{
			Title:       title,
			Link:        link,
			Description: desc,
			PublishedAt: parseTime(it.PubDate),
		})
	}
	return items, nil
}

func parseAtom(data []byte) ([]Item, error) {
	var atom atomEnvelope
	if err := xml.Unmarshal(data, &atom); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		link := atomAlternate(entry.Links)
		if link == "" {
			link = permalink(entry.ID)
		}
		title := strings.TrimSpace(entry.Title)
		if link == "" || title == "" {
			continue
		}
		published := parseTime(entry.Published)
		if published == nil {
			published = parseTime(entry.Updated)
		}
		desc := entry.Content
		if strings.TrimSpace(desc) == "" {
			desc = entry.Summary
		}
		items = append(items, Item{
			Title:       title,
			Link:        link,
			Description: desc,
			PublishedAt: published,
		})
	}
	return items, nil
}

// atomAlternate prefers rel="alternate" (or no rel), else the first href.
func atomAlternate(links []atomLink) string {
	first := ""
	for _, l := range links {
		href := strings.TrimSpace(l.Href)
		if href == "" {
			continue
		}
		if l.Rel == "" || l.Rel == "alternate" {
			return href
		}
		if first == "" {
			first = href
		}
	}
	return first
}

// permalink returns id when it is an absolute http(s) URL. Feeds often leave
// out the item link when the guid already is one.
func permalink(id string) string {
	id = strings.TrimSpace(id)
	u, err := url.Parse(id)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return id
}
