package feed_test

import (
	"testing"

	"feedctx/internal/feed"
)

func TestTelegramMessageCanonicalURL(t *testing.T) {
	raw := "https://t.me/example/123?single=1"
	got := feed.TelegramMessageCanonicalURL(raw)
	want := "https://t.me/example/123"
	if got != want {
		t.Fatalf("canonicalized URL mismatch: got %q want %q", got, want)
	}
}

func TestTelegramMessageCanonicalURLInvalid(t *testing.T) {
	raw := "::not a url::"
	if got := feed.TelegramMessageCanonicalURL(raw); got != raw {
		t.Fatalf("expected invalid URLs to be returned verbatim, got %q", got)
	}
}

func TestTelegramChannelCanonicalURL(t *testing.T) {
	if got := feed.TelegramChannelCanonicalURL("  example  "); got != "https://t.me/s/example" {
		t.Fatalf("expected trimmed slug, got %q", got)
	}

	if got := feed.TelegramChannelCanonicalURL("   "); got != "" {
		t.Fatalf("expected empty slug to return empty URL, got %q", got)
	}
}

func TestFetchResultNotModified(t *testing.T) {
	var nilResult *feed.FetchResult
	if nilResult.NotModified() {
		t.Fatalf("nil result must not report not modified")
	}

	if !(&feed.FetchResult{StatusCode: 304}).NotModified() {
		t.Fatalf("304 must report not modified")
	}

	if (&feed.FetchResult{StatusCode: 200}).NotModified() {
		t.Fatalf("200 must not report not modified")
	}
}
