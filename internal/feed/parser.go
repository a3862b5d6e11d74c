package feed

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedctx/internal/domain"

	"github.com/mmcdole/gofeed"
)

// ParsedFeed is the feed-level metadata plus items in document order.
type ParsedFeed struct {
	Title       string
	Description string
	Link        string
	Icon        string
	Items       []ParsedItem
}

type ParsedItem struct {
	Title       string
	Link        string
	GUID        string
	Author      string
	Content     string
	Description string
	// Published is the raw date string from the document; PublishedParsed is
	// nil when it could not be understood.
	Published       string
	PublishedParsed *time.Time
	Image           string
	Categories      []string
	Enclosures      []domain.Enclosure
}

type Parser struct {
	log *slog.Logger
}

func NewParser(log *slog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse understands RSS, Atom and JSON Feed documents, plus Telegram channel
// preview pages.
func (p *Parser) Parse(raw []byte) (*ParsedFeed, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: document is empty", domain.ErrParse)
	}

	if isTelegramChannelPage(raw) {
		parsed, err := parseTelegramChannelPage(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: parse Telegram channel page: %w", domain.ErrParse, err)
		}
		return parsed, nil
	}

	// gofeed.Parser keeps per-document state, so it is not shared.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %w", domain.ErrParse, err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("%w: parse feed: %w", domain.ErrParse, errors.New("no feed in document"))
	}

	out := &ParsedFeed{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
		Link:        strings.TrimSpace(parsed.Link),
		Items:       make([]ParsedItem, 0, len(parsed.Items)),
	}
	if parsed.Image != nil {
		out.Icon = strings.TrimSpace(parsed.Image.URL)
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		out.Items = append(out.Items, convertItem(item))
	}

	return out, nil
}

func convertItem(item *gofeed.Item) ParsedItem {
	out := ParsedItem{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		GUID:        strings.TrimSpace(item.GUID),
		Content:     item.Content,
		Description: item.Description,
		Published:   item.Published,
		Categories:  item.Categories,
	}

	if item.PublishedParsed != nil {
		out.PublishedParsed = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		out.Published = item.Updated
		out.PublishedParsed = item.UpdatedParsed
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		out.Author = strings.TrimSpace(item.Authors[0].Name)
	}

	if item.Image != nil {
		out.Image = strings.TrimSpace(item.Image.URL)
	}

	for _, enc := range item.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		out.Enclosures = append(out.Enclosures, domain.Enclosure{
			URL:       strings.TrimSpace(enc.URL),
			MediaType: strings.TrimSpace(enc.Type),
		})
	}

	return out
}
