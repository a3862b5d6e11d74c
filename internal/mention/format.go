package mention

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"feedctx/internal/domain"

	"github.com/lestrrat-go/strftime"
	"github.com/samber/lo"
)

const (
	maxPreviewRunes = 500
	unknownFeed     = "unknown"
	blockSeparator  = "\n\n---\n\n"
)

const (
	noticeNotConfigured = "[Feed context: no feeds are configured yet. Add a feed to use @rss mentions.]"
	noticeUnavailable   = "[Feed context: recent articles are unavailable right now.]"
)

var (
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	dateFormat = lo.Must(strftime.New("%b %d, %Y"))
)

func categoryNotFound(query string) string {
	return fmt.Sprintf("[Feed context: no category matching %q was found.]", query)
}

func feedNotFound(query string) string {
	return fmt.Sprintf("[Feed context: no feed matching %q was found.]", query)
}

func noArticles(f Filters) string {
	labels := f.labels()
	if len(labels) == 0 {
		return fmt.Sprintf("[Feed context: no articles in the last %d hours.]", WindowHours)
	}
	return fmt.Sprintf("[Feed context: no articles in the last %d hours (%s).]",
		WindowHours, strings.Join(labels, ", "))
}

func formatBlock(mc *Context, feeds []domain.Feed, now time.Time) string {
	titles := make(map[string]string, len(feeds))
	for _, f := range feeds {
		titles[f.ID] = f.Title
	}

	var b strings.Builder

	b.WriteString(header(mc))
	b.WriteString("\n\n")

	for i, a := range mc.Articles {
		if i > 0 {
			b.WriteString(blockSeparator)
		}
		b.WriteString(formatArticle(i+1, a, titles, now))
	}

	b.WriteString("\n\n=== End of feed context ===")

	return b.String()
}

func header(mc *Context) string {
	h := fmt.Sprintf("=== Feed context: %d feeds, %d recent articles",
		mc.FeedCount, len(mc.Articles))
	if labels := mc.Filters.labels(); len(labels) > 0 {
		h += " (" + strings.Join(labels, ", ") + ")"
	}
	return h + " ==="
}

func formatArticle(n int, a domain.Article, titles map[string]string, now time.Time) string {
	feedTitle, ok := titles[a.FeedID]
	if !ok || feedTitle == "" {
		feedTitle = unknownFeed
	}

	lines := []string{
		fmt.Sprintf("%d. %s", n, lo.CoalesceOrEmpty(a.Title, "(untitled)")),
		fmt.Sprintf("Feed: %s | %s", feedTitle, relativeTime(a.Published, now)),
	}
	if a.Link != "" {
		lines = append(lines, "Link: "+a.Link)
	}
	if preview := previewText(lo.CoalesceOrEmpty(a.Content, a.Summary)); preview != "" {
		lines = append(lines, preview)
	}

	return strings.Join(lines, "\n")
}

func relativeTime(t, now time.Time) string {
	d := max(now.Sub(t), 0)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	case d < 7*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	default:
		return dateFormat.FormatString(t)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// previewText strips tags in one pass and cuts the result to
// maxPreviewRunes. Entities are left as they are.
func previewText(content string) string {
	text := strings.Join(strings.Fields(tagRe.ReplaceAllString(content, " ")), " ")

	runes := []rune(text)
	if len(runes) <= maxPreviewRunes {
		return text
	}

	return strings.TrimRightFunc(string(runes[:maxPreviewRunes]), unicode.IsSpace) + "..."
}
