package mention

import (
	"fmt"
	"strings"
)

const maxFeedSuggestions = 5

type Suggestion struct {
	Trigger     string
	Description string
}

// Suggestions lists the bare triggers, one entry per category and the first
// few feeds. It is meant for autocomplete hints.
func (p *Processor) Suggestions() []Suggestion {
	suggestions := []Suggestion{
		{Trigger: "@rss", Description: "Recent articles from all feeds"},
		{Trigger: "@news", Description: "Same as @rss"},
	}

	for _, c := range p.source.Categories() {
		suggestions = append(suggestions, Suggestion{
			Trigger:     "@rss:" + qualifier(c.Name),
			Description: fmt.Sprintf("%s (%d feeds)", c.Name, c.FeedCount),
		})
	}

	feeds := p.source.Feeds()
	for _, f := range feeds[:min(len(feeds), maxFeedSuggestions)] {
		suggestions = append(suggestions, Suggestion{
			Trigger:     "@feed:" + qualifier(f.Title),
			Description: f.Title,
		})
	}

	return suggestions
}

// qualifier quotes values that would not survive the trigger syntax as a
// single word.
func qualifier(value string) string {
	for _, t := range scanTriggers("@feed:" + value) {
		if t.kind == triggerFeed && t.value == value {
			return value
		}
	}
	return `"` + strings.ReplaceAll(value, `"`, "") + `"`
}
