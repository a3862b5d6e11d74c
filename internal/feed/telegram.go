package feed

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	minPartsForTelegramChannelSlugStartingWithS = 2

	telegramHost             = "t.me"
	telegramPostTitleMaxRune = 100
)

var (
	telegramSlugRe = regexp.MustCompile(`^\w{5,32}$`)

	feedDocumentPrefixes = [][]byte{
		[]byte("<?xml"),
		[]byte("<rss"),
		[]byte("<feed"),
		[]byte("<rdf"),
		[]byte("{"),
	}

	telegramPageMarkers = [][]byte{
		[]byte("tgme_widget_message"),
		[]byte("tgme_channel_info"),
	}
)

func TelegramMessageCanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

func TelegramChannelCanonicalURL(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}

	return fmt.Sprintf("https://%s/s/%s", telegramHost, slug)
}

func isTelegramChannelURL(raw string) (bool, string) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return false, ""
	}

	if u.Host != telegramHost {
		return false, ""
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return false, ""
	}

	parts := strings.Split(path, "/")

	var slug string

	switch parts[0] {
	case "s":
		if len(parts) < minPartsForTelegramChannelSlugStartingWithS {
			return false, ""
		}
		slug = parts[1]
	default:
		slug = parts[0]
	}

	slug = strings.TrimSpace(slug)

	if !telegramSlugRe.MatchString(slug) {
		return false, ""
	}

	return true, slug
}

func isTelegramChannelPage(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	for _, prefix := range feedDocumentPrefixes {
		if bytes.HasPrefix(trimmed, prefix) {
			return false
		}
	}

	for _, marker := range telegramPageMarkers {
		if bytes.Contains(trimmed, marker) {
			return true
		}
	}

	return false
}

func parseTelegramChannelPage(raw []byte) (*ParsedFeed, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create document from reader: %w", err)
	}

	out := &ParsedFeed{}

	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		out.Title = strings.TrimSpace(content)
	}
	if out.Title == "" {
		out.Title = strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").Text())
	}

	if content, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		out.Description = strings.TrimSpace(content)
	}

	if content, ok := doc.Find("meta[property='og:image']").Attr("content"); ok {
		out.Icon = strings.TrimSpace(content)
	}

	if href, ok := doc.Find("link[rel='canonical']").Attr("href"); ok {
		out.Link = TelegramMessageCanonicalURL(href)
	}

	var errs []error

	doc.Find("a.tgme_widget_message_date").Each(func(_ int, s *goquery.Selection) {
		item, processErr := processFoundDocItem(s)
		if processErr != nil {
			errs = append(errs, fmt.Errorf("process found doc item: %w", processErr))
			return
		}

		out.Items = append(out.Items, item)
	})

	if len(out.Items) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return out, nil
}

func processFoundDocItem(s *goquery.Selection) (ParsedItem, error) {
	href, ok := s.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ParsedItem{}, errors.New("href empty")
	}

	href = TelegramMessageCanonicalURL(href)

	var textBuilder strings.Builder
	var htmlBuilder strings.Builder
	message := s.ParentsFiltered(".tgme_widget_message").First()
	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			if html, htmlErr := inner.Html(); htmlErr == nil {
				htmlBuilder.WriteString(html)
			}
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})
			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n")
			}
			textBuilder.WriteString(fragment)
		},
	)
	text := strings.TrimSpace(textBuilder.String())

	item := ParsedItem{
		Title:       telegramPostTitle(text, href),
		Link:        href,
		GUID:        href,
		Content:     strings.TrimSpace(htmlBuilder.String()),
		Description: text,
	}

	datetime := strings.TrimSpace(s.Find("time").AttrOr("datetime", ""))
	if datetime != "" {
		parsed, timeParseErr := time.Parse(time.RFC3339, datetime)
		if timeParseErr != nil {
			return ParsedItem{}, fmt.Errorf("parse datetime: %w", timeParseErr)
		}
		item.Published = datetime
		item.PublishedParsed = &parsed
	}

	return item, nil
}

// telegramPostTitle derives a title from the first line of a post, since
// channel posts have none.
func telegramPostTitle(text string, itemURL string) string {
	firstLine, _, _ := strings.Cut(text, "\n")
	normalized := strings.Join(strings.Fields(firstLine), " ")
	if normalized == "" {
		return itemURL
	}

	runes := []rune(normalized)
	if len(runes) <= telegramPostTitleMaxRune {
		return normalized
	}

	trimmed := strings.TrimSpace(string(runes[:telegramPostTitleMaxRune]))
	if trimmed == "" {
		return normalized
	}

	return trimmed + "..."
}
