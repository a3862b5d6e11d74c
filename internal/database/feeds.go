package database

import (
	"context"
	"database/sql"
	"fmt"

	"feedctx/internal/domain"

	"github.com/huandu/go-sqlbuilder"
)

var feedColumns = []string{
	"id", "url", "title", "description", "site_url", "icon_url", "category_id", "tags",
	"status", "error_message", "last_fetched", "etag", "last_modified",
	"article_count", "unread_count", "created_at", "updated_at",
}

func (d *Database) InsertFeed(ctx context.Context, feed *domain.Feed) error {
	tags, err := marshalJSON(nonNilStrings(feed.Tags))
	if err != nil {
		return wrapErr("insert feed", err)
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("feeds").Cols(feedColumns...).Values(
		feed.ID, feed.URL, feed.Title, feed.Description, feed.SiteURL, feed.IconURL,
		nullString(feed.CategoryID), tags, string(feed.Status), nullString(feed.ErrorMessage),
		nullMillis(feed.LastFetched), nullString(feed.ETag), nullString(feed.LastModified),
		feed.ArticleCount, feed.UnreadCount, toMillis(feed.CreatedAt), toMillis(feed.UpdatedAt),
	)

	query, args := ib.Build()
	if _, err = d.db.ExecContext(ctx, query, args...); err != nil {
		return wrapErr("insert feed", err)
	}

	return nil
}

func (d *Database) UpdateFeed(ctx context.Context, feed *domain.Feed) error {
	tags, err := marshalJSON(nonNilStrings(feed.Tags))
	if err != nil {
		return wrapErr("update feed", err)
	}

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("feeds").Set(
		ub.Assign("url", feed.URL),
		ub.Assign("title", feed.Title),
		ub.Assign("description", feed.Description),
		ub.Assign("site_url", feed.SiteURL),
		ub.Assign("icon_url", feed.IconURL),
		ub.Assign("category_id", nullString(feed.CategoryID)),
		ub.Assign("tags", tags),
		ub.Assign("status", string(feed.Status)),
		ub.Assign("error_message", nullString(feed.ErrorMessage)),
		ub.Assign("last_fetched", nullMillis(feed.LastFetched)),
		ub.Assign("etag", nullString(feed.ETag)),
		ub.Assign("last_modified", nullString(feed.LastModified)),
		ub.Assign("article_count", feed.ArticleCount),
		ub.Assign("unread_count", feed.UnreadCount),
		ub.Assign("updated_at", toMillis(feed.UpdatedAt)),
	).Where(ub.Equal("id", feed.ID))

	query, args := ub.Build()
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr("update feed", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return wrapErr("update feed", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: feed %s", domain.ErrNotFound, feed.ID)
	}

	return nil
}

// DeleteFeed removes the feed and, through the foreign key, its articles.
// Deleting a missing feed is not an error.
func (d *Database) DeleteFeed(ctx context.Context, feedID string) error {
	if _, err := d.db.ExecContext(ctx, "delete from feeds where id = ?", feedID); err != nil {
		return wrapErr("delete feed", err)
	}

	return nil
}

func (d *Database) ListFeeds(ctx context.Context) ([]domain.Feed, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds").OrderBy("created_at", "id")

	query, args := sb.Build()
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list feeds", err)
	}
	defer d.closeRows(ctx, rows, "ListFeeds")

	var feeds []domain.Feed
	for rows.Next() {
		f, scanErr := scanFeed(rows)
		if scanErr != nil {
			return nil, wrapErr("list feeds", scanErr)
		}
		feeds = append(feeds, f)
	}

	if err = rows.Err(); err != nil {
		return nil, wrapErr("list feeds", fmt.Errorf("iterate rows: %w", err))
	}

	return feeds, nil
}

func scanFeed(rows *sql.Rows) (domain.Feed, error) {
	var (
		f                        domain.Feed
		status, tags             string
		categoryID, errorMessage sql.NullString
		etag, lastModified       sql.NullString
		lastFetched              sql.NullInt64
		createdAt, updatedAt     int64
	)

	if err := rows.Scan(
		&f.ID, &f.URL, &f.Title, &f.Description, &f.SiteURL, &f.IconURL, &categoryID, &tags,
		&status, &errorMessage, &lastFetched, &etag, &lastModified,
		&f.ArticleCount, &f.UnreadCount, &createdAt, &updatedAt,
	); err != nil {
		return domain.Feed{}, fmt.Errorf("scan row: %w", err)
	}

	if err := unmarshalJSON(tags, &f.Tags); err != nil {
		return domain.Feed{}, err
	}

	f.Status = domain.FeedStatus(status)
	f.CategoryID = stringPtr(categoryID)
	f.ErrorMessage = stringPtr(errorMessage)
	f.ETag = stringPtr(etag)
	f.LastModified = stringPtr(lastModified)
	f.LastFetched = timePtr(lastFetched)
	f.CreatedAt = fromMillis(createdAt)
	f.UpdatedAt = fromMillis(updatedAt)

	return f, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
