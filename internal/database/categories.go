package database

import (
	"context"
	"fmt"

	"feedctx/internal/domain"

	"github.com/huandu/go-sqlbuilder"
)

func (d *Database) InsertCategory(ctx context.Context, c *domain.Category) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("categories").
		Cols("id", "name", "color", "feed_count", "created_at").
		Values(c.ID, c.Name, c.Color, c.FeedCount, toMillis(c.CreatedAt))

	query, args := ib.Build()
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("insert category", err)
	}

	return nil
}

func (d *Database) UpdateCategory(ctx context.Context, c *domain.Category) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("categories").Set(
		ub.Assign("name", c.Name),
		ub.Assign("color", c.Color),
		ub.Assign("feed_count", c.FeedCount),
	).Where(ub.Equal("id", c.ID))

	query, args := ub.Build()
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr("update category", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("update category", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: category %s", domain.ErrNotFound, c.ID)
	}

	return nil
}

// DeleteCategory leaves feeds that reference the category untouched.
func (d *Database) DeleteCategory(ctx context.Context, categoryID string) error {
	if _, err := d.db.ExecContext(ctx, "delete from categories where id = ?", categoryID); err != nil {
		return wrapErr("delete category", err)
	}

	return nil
}

func (d *Database) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := "select id, name, color, feed_count, created_at from categories order by name, id"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("list categories", err)
	}
	defer d.closeRows(ctx, rows, "ListCategories")

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		var createdAt int64
		if err = rows.Scan(&c.ID, &c.Name, &c.Color, &c.FeedCount, &createdAt); err != nil {
			return nil, wrapErr("list categories", fmt.Errorf("scan row: %w", err))
		}

		c.CreatedAt = fromMillis(createdAt)
		categories = append(categories, c)
	}

	if err = rows.Err(); err != nil {
		return nil, wrapErr("list categories", fmt.Errorf("iterate rows: %w", err))
	}

	return categories, nil
}
