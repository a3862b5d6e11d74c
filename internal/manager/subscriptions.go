package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"feedctx/internal/config"
	"feedctx/internal/domain"
)

// ApplySubscriptions creates the categories and feeds declared in subs that
// do not exist yet. Existing ones are left alone, so applying the same file
// on every start is safe. Failures are collected and do not stop the rest.
func (m *Manager) ApplySubscriptions(ctx context.Context, subs *config.Subscriptions) error {
	if subs == nil {
		return nil
	}

	var errs []error

	categoryIDs := make(map[string]string)
	for _, c := range m.Categories() {
		categoryIDs[strings.ToLower(c.Name)] = c.ID
	}

	for _, sc := range subs.Categories {
		key := strings.ToLower(strings.TrimSpace(sc.Name))
		if _, ok := categoryIDs[key]; ok {
			continue
		}

		c, err := m.CreateCategory(ctx, sc.Name, sc.Color)
		if err != nil {
			errs = append(errs, fmt.Errorf("create category %q: %w", sc.Name, err))
			continue
		}
		categoryIDs[key] = c.ID
	}

	existing := make(map[string]bool)
	for _, f := range m.Feeds() {
		existing[f.URL] = true
	}

	added := 0
	for _, sf := range subs.Feeds {
		url := strings.TrimSpace(sf.URL)
		if existing[url] {
			continue
		}

		opts := AddFeedOptions{Title: sf.Title, Tags: sf.Tags}
		if name := strings.ToLower(strings.TrimSpace(sf.Category)); name != "" {
			id, ok := categoryIDs[name]
			if !ok {
				errs = append(errs, fmt.Errorf("add feed %s: %w: category %q", url, domain.ErrNotFound, sf.Category))
				continue
			}
			opts.CategoryID = id
		}

		f, err := m.AddFeed(ctx, url, opts)
		if f.ID != "" {
			existing[url] = true
			added++
		}
		if err != nil && !errors.Is(err, domain.ErrDuplicate) {
			errs = append(errs, fmt.Errorf("add feed %s: %w", url, err))
		}
	}

	m.log.InfoContext(ctx, "Subscriptions are applied",
		"declaredFeeds", len(subs.Feeds),
		"addedFeeds", added,
		"errors", len(errs))

	return errors.Join(errs...)
}
