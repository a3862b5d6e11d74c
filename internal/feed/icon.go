package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var iconSelectors = []string{
	"link[rel~='icon']",
	"link[rel='shortcut icon']",
	"link[rel='apple-touch-icon']",
}

// Fetcher is the conditional fetch contract shared by the manager and the
// icon finder.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, etag string, lastModified string) (*FetchResult, error)
}

// IconFinder looks up a site's icon from its home page.
type IconFinder struct {
	fetcher Fetcher
}

func NewIconFinder(fetcher Fetcher) *IconFinder {
	return &IconFinder{fetcher: fetcher}
}

// Find returns an absolute icon URL for siteURL. When the page declares no
// icon, the conventional /favicon.ico location is returned.
func (f *IconFinder) Find(ctx context.Context, siteURL string) (string, error) {
	base, err := ValidateURL(siteURL)
	if err != nil {
		return "", fmt.Errorf("validate site URL: %w", err)
	}

	fallback := (&url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/favicon.ico"}).String()

	res, err := f.fetcher.Fetch(ctx, base.String(), "", "")
	if err != nil {
		return "", fmt.Errorf("fetch site page: %w", err)
	}
	if res.NotModified() || len(res.Content) == 0 {
		return fallback, nil
	}

	href, err := findIconHref(res.Content)
	if err != nil {
		return "", err
	}
	if href == "" {
		return fallback, nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return fallback, nil //nolint:nilerr // Broken markup falls back to the default icon.
	}

	return base.ResolveReference(ref).String(), nil
}

func findIconHref(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	for _, selector := range iconSelectors {
		if href, ok := doc.Find(selector).First().Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				return href, nil
			}
		}
	}

	return "", nil
}
