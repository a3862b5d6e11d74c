package mention

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		ago  time.Duration
		want string
	}{
		{ago: 0, want: "just now"},
		{ago: -time.Hour, want: "just now"},
		{ago: 59 * time.Second, want: "just now"},
		{ago: time.Minute, want: "1 minute ago"},
		{ago: 45 * time.Minute, want: "45 minutes ago"},
		{ago: time.Hour, want: "1 hour ago"},
		{ago: 23 * time.Hour, want: "23 hours ago"},
		{ago: 24 * time.Hour, want: "1 day ago"},
		{ago: 6 * 24 * time.Hour, want: "6 days ago"},
		{ago: 7 * 24 * time.Hour, want: "Oct 10, 2026"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeTime(now.Add(-tt.ago), now), tt.ago.String())
	}
}

func TestPreviewText(t *testing.T) {
	assert.Equal(t, "Hello world &amp; more", previewText("<p>Hello <b>world</b></p>\n &amp; more"))
	assert.Empty(t, previewText("<img src=x>"))

	long := strings.Repeat("я", maxPreviewRunes+10)
	got := previewText(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, maxPreviewRunes+3, len([]rune(got)))

	exact := strings.Repeat("a", maxPreviewRunes)
	assert.Equal(t, exact, previewText(exact))
}
