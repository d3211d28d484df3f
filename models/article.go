package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultAuthor is stored when an article is submitted without an author.
const DefaultAuthor = "Anonymous"

type Article struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Author    string    `json:"author"`
	Excerpt   string    `json:"excerpt"`
	Content   string    `gorm:"type:text" json:"content"`
	ImageURL  *string   `json:"image_url"`
	URL       *string   `gorm:"index" json:"url"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Article) TableName() string {
	return "articles"
}

// BeforeCreate assigns the identifier and timestamp when the database is
// the backend.
func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ArticleInput is the insert payload. ImageURL and URL are sent as null
// when empty.
type ArticleInput struct {
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Excerpt  string  `json:"excerpt"`
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
	URL      *string `json:"url,omitempty"`
}

func (in ArticleInput) Article() Article {
	return Article{
		Title:    in.Title,
		Author:   in.Author,
		Excerpt:  in.Excerpt,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		URL:      in.URL,
	}
}
