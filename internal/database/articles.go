package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedctx/internal/domain"

	"github.com/huandu/go-sqlbuilder"
)

var articleColumns = []string{
	"feed_id", "id", "title", "link", "content", "summary", "author", "image_url",
	"enclosures", "topics", "published_at", "fetched_at", "is_read", "is_starred",
}

// UpsertArticles inserts articles whose (feed_id, id) is not stored yet and
// reports how many rows were new. Existing rows are never overwritten.
func (d *Database) UpsertArticles(ctx context.Context, articles []domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("begin upsert articles", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			d.log.ErrorContext(ctx, "Failed to rollback transaction",
				"error", rollbackErr,
				"operation", "UpsertArticles")
		}
	}()

	inserted := 0
	for i := range articles {
		a := &articles[i]

		enclosures, marshalErr := marshalJSON(nonNilEnclosures(a.Enclosures))
		if marshalErr != nil {
			return 0, wrapErr("upsert articles", marshalErr)
		}
		topics, marshalErr := marshalJSON(nonNilStrings(a.Topics))
		if marshalErr != nil {
			return 0, wrapErr("upsert articles", marshalErr)
		}

		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertIgnoreInto("articles").Cols(articleColumns...).Values(
			a.FeedID, a.ID, a.Title, a.Link, a.Content, a.Summary, a.Author, a.ImageURL,
			enclosures, topics, toMillis(a.Published), toMillis(a.Fetched),
			boolToInt(a.IsRead), boolToInt(a.IsStarred),
		)

		query, args := ib.Build()
		res, execErr := tx.ExecContext(ctx, query, args...)
		if execErr != nil {
			return 0, wrapErr("upsert articles", execErr)
		}

		affected, affectedErr := res.RowsAffected()
		if affectedErr != nil {
			return 0, wrapErr("upsert articles", affectedErr)
		}
		inserted += int(affected)
	}

	if err = tx.Commit(); err != nil {
		return 0, wrapErr("commit upsert articles", err)
	}

	return inserted, nil
}

// RecentArticles returns articles published at or after since, newest
// first, ties broken by feed id then article id. An empty feedIDs means all
// feeds.
func (d *Database) RecentArticles(
	ctx context.Context,
	since time.Time,
	limit int,
	feedIDs []string,
) ([]domain.Article, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(articleColumns...).From("articles").
		Where(sb.GreaterEqualThan("published_at", toMillis(since)))

	if len(feedIDs) > 0 {
		sb.Where(sb.In("feed_id", sqlbuilder.Flatten(feedIDs)...))
	}

	sb.OrderBy("published_at DESC", "feed_id", "id").Limit(limit)

	return d.queryArticles(ctx, sb, "RecentArticles")
}

// SearchArticles matches query as a case-insensitive substring of the
// title, summary or content.
func (d *Database) SearchArticles(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	pattern := "%" + escapeLike(query) + "%"

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(articleColumns...).From("articles").Where(sb.Or(
		sb.Like("title", pattern)+" escape '\\'",
		sb.Like("summary", pattern)+" escape '\\'",
		sb.Like("content", pattern)+" escape '\\'",
	)).OrderBy("published_at DESC", "feed_id", "id").Limit(limit)

	return d.queryArticles(ctx, sb, "SearchArticles")
}

func (d *Database) StarredArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(articleColumns...).From("articles").
		Where(sb.Equal("is_starred", 1)).
		OrderBy("published_at DESC", "feed_id", "id").
		Limit(limit)

	return d.queryArticles(ctx, sb, "StarredArticles")
}

// SetArticleRead reports whether the flag actually changed.
func (d *Database) SetArticleRead(ctx context.Context, feedID, articleID string, read bool) (bool, error) {
	return d.setArticleFlag(ctx, "is_read", feedID, articleID, read)
}

// SetArticleStarred reports whether the flag actually changed.
func (d *Database) SetArticleStarred(ctx context.Context, feedID, articleID string, starred bool) (bool, error) {
	return d.setArticleFlag(ctx, "is_starred", feedID, articleID, starred)
}

func (d *Database) setArticleFlag(
	ctx context.Context,
	column string,
	feedID string,
	articleID string,
	value bool,
) (bool, error) {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("articles").Set(ub.Assign(column, boolToInt(value))).Where(
		ub.Equal("feed_id", feedID),
		ub.Equal("id", articleID),
		ub.NotEqual(column, boolToInt(value)),
	)

	query, args := ub.Build()
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, wrapErr("set article "+column, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("set article "+column, err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists int
	err = d.db.QueryRowContext(ctx,
		"select count(*) from articles where feed_id = ? and id = ?", feedID, articleID,
	).Scan(&exists)
	if err != nil {
		return false, wrapErr("set article "+column, err)
	}
	if exists == 0 {
		return false, fmt.Errorf("%w: article %s in feed %s", domain.ErrNotFound, articleID, feedID)
	}

	return false, nil
}

// DeleteArticlesBefore purges articles published before cutoff. Starred
// articles survive when keepStarred is set.
func (d *Database) DeleteArticlesBefore(ctx context.Context, cutoff time.Time, keepStarred bool) (int64, error) {
	db := sqlbuilder.SQLite.NewDeleteBuilder()
	db.DeleteFrom("articles").Where(db.LessThan("published_at", toMillis(cutoff)))
	if keepStarred {
		db.Where(db.Equal("is_starred", 0))
	}

	query, args := db.Build()
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapErr("delete old articles", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("delete old articles", err)
	}

	return affected, nil
}

func (d *Database) queryArticles(
	ctx context.Context,
	sb *sqlbuilder.SelectBuilder,
	operation string,
) ([]domain.Article, error) {
	query, args := sb.Build()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("query articles", err)
	}
	defer d.closeRows(ctx, rows, operation)

	var articles []domain.Article
	for rows.Next() {
		a, scanErr := scanArticle(rows)
		if scanErr != nil {
			return nil, wrapErr("query articles", scanErr)
		}
		articles = append(articles, a)
	}

	if err = rows.Err(); err != nil {
		return nil, wrapErr("query articles", fmt.Errorf("iterate rows: %w", err))
	}

	return articles, nil
}

func scanArticle(rows *sql.Rows) (domain.Article, error) {
	var (
		a                      domain.Article
		enclosures, topics     string
		publishedAt, fetchedAt int64
		isRead, isStarred      int
	)

	if err := rows.Scan(
		&a.FeedID, &a.ID, &a.Title, &a.Link, &a.Content, &a.Summary, &a.Author, &a.ImageURL,
		&enclosures, &topics, &publishedAt, &fetchedAt, &isRead, &isStarred,
	); err != nil {
		return domain.Article{}, fmt.Errorf("scan row: %w", err)
	}

	if err := unmarshalJSON(enclosures, &a.Enclosures); err != nil {
		return domain.Article{}, err
	}
	if err := unmarshalJSON(topics, &a.Topics); err != nil {
		return domain.Article{}, err
	}

	a.Published = fromMillis(publishedAt)
	a.Fetched = fromMillis(fetchedAt)
	a.IsRead = isRead != 0
	a.IsStarred = isStarred != 0

	return a, nil
}

func nonNilEnclosures(e []domain.Enclosure) []domain.Enclosure {
	if e == nil {
		return []domain.Enclosure{}
	}
	return e
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
