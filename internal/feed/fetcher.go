package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedctx/internal/domain"
	"feedctx/internal/ratelimiter"

	"github.com/cenkalti/backoff/v4"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	fetchClientTimeout  = 20 * time.Second
	fetchMaxRetries     = 2
	fetchInitialBackoff = 500 * time.Millisecond
	perHostInterval     = 500 * time.Millisecond
	maxFeedBodyBytes    = 10 << 20
)

// FetchResult is the outcome of a conditional fetch. StatusCode is
// http.StatusNotModified when the stored validators still match.
type FetchResult struct {
	StatusCode   int
	Content      []byte
	ETag         string
	LastModified string
}

func (r *FetchResult) NotModified() bool {
	return r != nil && r.StatusCode == http.StatusNotModified
}

type HTTPFetcher struct {
	client  *http.Client
	limiter *ratelimiter.Limiter
	retries uint64
	log     *slog.Logger
}

type FetcherOption func(*HTTPFetcher)

func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = client }
}

func WithRateLimiter(l *ratelimiter.Limiter) FetcherOption {
	return func(f *HTTPFetcher) { f.limiter = l }
}

func WithMaxRetries(n uint64) FetcherOption {
	return func(f *HTTPFetcher) { f.retries = n }
}

func NewHTTPFetcher(log *slog.Logger, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  &http.Client{Timeout: fetchClientTimeout},
		limiter: ratelimiter.New(perHostInterval, log),
		retries: fetchMaxRetries,
		log:     log,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch performs a conditional GET. Empty validators are not sent.
func (f *HTTPFetcher) Fetch(
	ctx context.Context,
	rawURL string,
	etag string,
	lastModified string,
) (*FetchResult, error) {
	fetchURL, err := resolveFetchURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	attempt := 0
	op := func() (*FetchResult, error) {
		attempt++

		if waitErr := f.limiter.Wait(ctx, fetchURL.Host); waitErr != nil {
			return nil, backoff.Permanent(waitErr)
		}

		res, doErr := f.do(ctx, fetchURL.String(), etag, lastModified)
		if doErr != nil {
			f.log.DebugContext(ctx, "Feed fetch attempt failed",
				"error", doErr,
				"url", fetchURL.String(),
				"attempt", attempt)
		}

		return res, doErr
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = fetchInitialBackoff

	res, err := backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(b, f.retries), ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrTransport, rawURL, err)
	}

	return res, nil
}

func (f *HTTPFetcher) do(
	ctx context.Context,
	fetchURL string,
	etag string,
	lastModified string,
) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, "+
		"application/xml;q=0.9, text/html;q=0.8, */*;q=0.5")

	if etag = strings.TrimSpace(etag); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified = strings.TrimSpace(lastModified); lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req) //nolint:gosec // User-provided feed URL
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("do request: %w", err))
		}
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", fetchURL,
				"operation", "Fetch")
		}
	}()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{
			StatusCode:   resp.StatusCode,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
		if isRetryableStatus(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxFeedBodyBytes {
		return nil, backoff.Permanent(errors.New("read body: response is too large"))
	}

	return &FetchResult{
		StatusCode:   resp.StatusCode,
		Content:      body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, errors.New("URL is empty")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return nil, errors.New("URL has no host")
	}

	return u, nil
}

// resolveFetchURL maps Telegram channel links onto their public preview page.
func resolveFetchURL(rawURL string) (*url.URL, error) {
	if ok, slug := isTelegramChannelURL(rawURL); ok {
		rawURL = TelegramChannelCanonicalURL(slug)
	}

	return ValidateURL(rawURL)
}
