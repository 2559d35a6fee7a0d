package models

import "time"

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

type BlogPost struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	Tags        []string   `json:"tags,omitempty"`
	Category    string     `json:"category,omitempty"`
	Status      string     `json:"status"`
	CoverImage  string     `json:"coverImage,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

func (b BlogPost) GetID() string { return b.ID }

func (b BlogPost) IsPublished() bool {
	return b.Status == PostStatusPublished
}

func (b BlogPost) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

const BlogPostSchema = `{
  "type": "object",
  "required": ["title", "slug", "content", "author", "status"],
  "properties": {
    "title":   {"type": "string", "minLength": 1, "maxLength": 300},
    "slug":    {"type": "string", "pattern": "^[a-z0-9]+(?:-[a-z0-9]+)*$"},
    "content": {"type": "string"},
    "author":  {"type": "string", "minLength": 1},
    "status":  {"type": "string", "enum": ["draft", "published"]},
    "tags":    {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`
