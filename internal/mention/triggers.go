package mention

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type triggerKind int

const (
	triggerAll triggerKind = iota
	triggerCategory
	triggerFeed
)

type trigger struct {
	kind  triggerKind
	value string
}

// @rss and @news are aliases; with a qualifier they filter by category.
// @feed always needs a qualifier. A qualifier is a word (dots and dashes
// allowed inside) or a double quoted phrase.
var triggerRe = regexp.MustCompile(
	`(?i)@(rss|news|feed)(?::(?:"([^"\n]+)"|([\p{L}\p{N}_]+(?:[.\-][\p{L}\p{N}_]+)*)))?`,
)

// scanTriggers returns the triggers in text order. Matches glued to a
// surrounding word character, like e-mail addresses, are ignored.
func scanTriggers(text string) []trigger {
	var triggers []trigger

	for _, loc := range triggerRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]

		if r, _ := utf8.DecodeLastRuneInString(text[:start]); start > 0 && isWordRune(r) {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(text[end:]); end < len(text) && isWordRune(r) {
			continue
		}

		keyword := strings.ToLower(text[loc[2]:loc[3]])

		var value string
		switch {
		case loc[4] >= 0:
			value = strings.TrimSpace(text[loc[4]:loc[5]])
		case loc[6] >= 0:
			value = text[loc[6]:loc[7]]
		}

		switch {
		case keyword == "feed" && value == "":
			continue
		case keyword == "feed":
			triggers = append(triggers, trigger{kind: triggerFeed, value: value})
		case value == "":
			triggers = append(triggers, trigger{kind: triggerAll})
		default:
			triggers = append(triggers, trigger{kind: triggerCategory, value: value})
		}
	}

	return triggers
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// HasMention reports whether text contains any feed mention.
func HasMention(text string) bool {
	return len(scanTriggers(text)) > 0
}

// filters picks the first category and the first feed qualifier in text
// order; later conflicting ones are ignored.
func filters(triggers []trigger) (category, feed string) {
	for _, t := range triggers {
		switch t.kind {
		case triggerCategory:
			if category == "" {
				category = t.value
			}
		case triggerFeed:
			if feed == "" {
				feed = t.value
			}
		case triggerAll:
		}
	}

	return category, feed
}
