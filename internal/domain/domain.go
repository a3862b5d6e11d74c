package domain

import "time"

type FeedStatus string

const (
	FeedStatusActive FeedStatus = "active"
	FeedStatusError  FeedStatus = "error"
	FeedStatusPaused FeedStatus = "paused"
)

type Feed struct {
	ID           string
	URL          string
	Title        string
	Description  string
	SiteURL      string
	IconURL      string
	CategoryID   *string
	Tags         []string
	Status       FeedStatus
	ErrorMessage *string
	LastFetched  *time.Time
	ETag         *string
	LastModified *string
	ArticleCount int64
	UnreadCount  int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy so callers never share pointers with the
// manager's cache.
func (f Feed) Clone() Feed {
	c := f
	c.CategoryID = cloneString(f.CategoryID)
	c.ErrorMessage = cloneString(f.ErrorMessage)
	c.ETag = cloneString(f.ETag)
	c.LastModified = cloneString(f.LastModified)
	if f.LastFetched != nil {
		t := *f.LastFetched
		c.LastFetched = &t
	}
	if f.Tags != nil {
		c.Tags = append([]string(nil), f.Tags...)
	}
	return c
}

type Category struct {
	ID        string
	Name      string
	Color     string
	FeedCount int64
	CreatedAt time.Time
}

type Enclosure struct {
	URL       string
	MediaType string
}

type Article struct {
	ID         string
	FeedID     string
	Title      string
	Link       string
	Content    string
	Summary    string
	Author     string
	ImageURL   string
	Enclosures []Enclosure
	Published  time.Time
	Fetched    time.Time
	IsRead     bool
	IsStarred  bool
	Topics     []string
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
