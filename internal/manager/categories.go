package manager

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"feedctx/internal/domain"
)

func (m *Manager) CreateCategory(ctx context.Context, name, color string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name is empty", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.categories {
		if strings.EqualFold(c.Name, name) {
			return domain.Category{}, fmt.Errorf("%w: category %q already exists (id = %s)",
				domain.ErrDuplicate, name, c.ID)
		}
	}

	c := domain.Category{
		ID:        m.newID(),
		Name:      name,
		Color:     strings.TrimSpace(color),
		CreatedAt: m.now().UTC(),
	}

	if err := m.store.InsertCategory(ctx, &c); err != nil {
		return domain.Category{}, fmt.Errorf("insert category: %w", classify(err, domain.ErrStore))
	}

	m.categories[c.ID] = &c

	m.log.InfoContext(ctx, "Category is created",
		"categoryID", c.ID,
		"categoryName", c.Name)

	return c, nil
}

// DeleteCategory removes the category only. Feeds keep their now dangling
// category id.
func (m *Manager) DeleteCategory(ctx context.Context, categoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteCategory(ctx, categoryID); err != nil {
		return fmt.Errorf("delete category: %w", classify(err, domain.ErrStore))
	}

	delete(m.categories, categoryID)

	return nil
}

// Categories returns copies ordered by name.
func (m *Manager) Categories() []domain.Category {
	m.mu.Lock()
	categories := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, *c)
	}
	m.mu.Unlock()

	slices.SortFunc(categories, func(a, b domain.Category) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return categories
}

// adjustCategoryLocked keeps the denormalized feed count in step. A failed
// write is logged and the cache is left as it was.
func (m *Manager) adjustCategoryLocked(ctx context.Context, categoryID *string, delta int64) {
	if categoryID == nil {
		return
	}

	cached, ok := m.categories[*categoryID]
	if !ok {
		return
	}

	updated := *cached
	updated.FeedCount = max(updated.FeedCount+delta, 0)

	if err := m.store.UpdateCategory(ctx, &updated); err != nil {
		m.log.ErrorContext(ctx, "Failed to update category feed count",
			"error", err,
			"categoryID", updated.ID)
		return
	}

	m.categories[updated.ID] = &updated
}
