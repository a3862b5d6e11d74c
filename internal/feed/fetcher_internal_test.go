package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"feedctx/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(slog.Default(), WithRateLimiter(nil), WithMaxRetries(1))
}

func TestFetchReturnsContentAndValidators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		assert.Empty(t, r.Header.Get("If-Modified-Since"))

		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		_, _ = w.Write([]byte("<rss></rss>"))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Fetch(context.Background(), srv.URL, "", "")
	require.NoError(t, err)

	assert.False(t, res.NotModified())
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "<rss></rss>", string(res.Content))
	assert.Equal(t, `"v1"`, res.ETag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", res.LastModified)
}

func TestFetchSendsValidatorsAndDetectsNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` &&
			r.Header.Get("If-Modified-Since") == "Mon, 02 Jan 2006 15:04:05 GMT" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("changed"))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Fetch(context.Background(), srv.URL, `"v1"`, "Mon, 02 Jan 2006 15:04:05 GMT")
	require.NoError(t, err)

	assert.True(t, res.NotModified())
	assert.Empty(t, res.Content)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	res, err := newTestFetcher().Fetch(context.Background(), srv.URL, "", "")
	require.NoError(t, err)

	assert.Equal(t, "ok", string(res.Content))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL, "", "")
	require.Error(t, err)

	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRejectsMalformedURL(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "ftp://example.com/feed", "", "")
	require.Error(t, err)

	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"https", "https://example.com/feed.xml", false},
		{"http with spaces", "  http://example.com/rss  ", false},
		{"empty", "", true},
		{"no scheme", "example.com/feed", true},
		{"unsupported scheme", "file:///etc/passwd", true},
		{"no host", "https:///feed", true},
		{"garbage", "::not a url::", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveFetchURLUsesTelegramPreview(t *testing.T) {
	u, err := resolveFetchURL("https://t.me/example_channel")
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/s/example_channel", u.String())

	u, err = resolveFetchURL("https://example.com/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/feed.xml", u.String())
}

func TestIsTelegramChannelURL(t *testing.T) {
	tests := []struct {
		raw      string
		wantOK   bool
		wantSlug string
	}{
		{"https://t.me/example_channel", true, "example_channel"},
		{"https://t.me/s/example_channel", true, "example_channel"},
		{"https://t.me/s/", false, ""},
		{"https://t.me/abc", false, ""},
		{"https://example.com/example_channel", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ok, slug := isTelegramChannelURL(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSlug, slug)
		})
	}
}
