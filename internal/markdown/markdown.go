package markdown

import (
	"strings"
	"unicode/utf8"
)

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `_*[]()~` + "`" + `>#+-=|{}.!\`

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = lookup(mdV2SpecialChars)

// Inside the (...) part of inline links only ')' and '\' must be escaped.
//
//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2URLLookup = lookup(`)\`)

func lookup(chars string) [256]bool {
	var m [256]bool
	for i := range len(chars) {
		m[chars[i]] = true
	}
	return m
}

func EscapeV2(input string) string {
	return escape(input, &mdV2Lookup)
}

func EscapeURLV2(input string) string {
	return escape(input, &mdV2URLLookup)
}

func escape(input string, table *[256]bool) string {
	charsToEscape := 0

	for i := range len(input) {
		if table[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if table[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func Bold(text string) string {
	return "*" + EscapeV2(text) + "*"
}

func Code(text string) string {
	return "`" + escape(text, &mdV2CodeLookup) + "`"
}

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2CodeLookup = lookup("`\\")

func Link(title, url string) string {
	return "[" + EscapeV2(title) + "](" + EscapeURLV2(url) + ")"
}

// Split cuts already escaped text into chunks of at most limit runes,
// preferring line breaks. A chunk never ends inside an escape sequence.
func Split(text string, limit int) []string {
	if limit <= 1 {
		return []string{text}
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)

		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		} else if trailingBackslashes(text[:cut])%2 == 1 {
			cut--
		}

		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = text[cut:]
	}

	if text != "" || len(chunks) == 0 {
		chunks = append(chunks, text)
	}

	return chunks
}

func byteOffset(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}
