package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"FinMuse/internal/domain"
	"FinMuse/internal/ports"
)

// SQLiteRepository persists articles and meta settings in a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ ports.ArticleRepository = (*SQLiteRepository)(nil)
	_ ports.MetaStore         = (*SQLiteRepository)(nil)
	_ ports.QuotaStore        = (*SQLiteRepository)(nil)
)

// Open creates the database file if needed and ensures both tables exist.
// Transactions take the write lock up front so concurrent quota updates wait
// on busy_timeout instead of failing with SQLITE_BUSY.
func Open(path string) (*SQLiteRepository, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if isMemoryDSN(path) {
		// each connection to an in-memory database sees its own empty copy
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func isMemoryDSN(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, ":memory:?") || strings.Contains(path, "mode=memory")
}

// Close releases the underlying pool.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertArticle stores a new row; a row whose original_url already exists is
// left untouched and reported as not inserted.
func (r *SQLiteRepository) InsertArticle(ctx context.Context, article domain.Article) (bool, error) {
	query, args, err := r.sb.Insert("articles").
		Columns("id", "title", "source", "original_url", "published_at", "raw_text", "status", "created_at").
		Values(article.ID, article.Title, article.Source, article.OriginalURL, article.PublishedAt,
			article.RawText, string(article.Status), article.CreatedAt).
		Suffix("ON CONFLICT(original_url) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: insert article: %v", domain.ErrStore, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", domain.ErrStore, err)
	}
	return n > 0, nil
}

// ExistsByURL reports whether an article with the given original URL is stored.
func (r *SQLiteRepository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	query, args, err := r.sb.Select("1").From("articles").Where(sq.Eq{"original_url": url}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: exists by url: %v", domain.ErrStore, err)
	}
	return true, nil
}

// UpdateSummary writes the summarizer output and the terminal status.
func (r *SQLiteRepository) UpdateSummary(ctx context.Context, id string, summary domain.Summary, status domain.Status) error {
	evidence := summary.Evidence
	if evidence == nil {
		evidence = []domain.Evidence{}
	}
	encoded, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}

	query, args, err := r.sb.Update("articles").
		Set("tl_dr", summary.TLDR).
		Set("summary_pro", summary.Long).
		Set("evidence", string(encoded)).
		Set("confidence", summary.Confidence).
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: update article %s: %v", domain.ErrStore, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update article %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByStatus returns up to limit rows with the given status, oldest first.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Article, error) {
	return r.list(ctx, r.sb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)))
}

// ListPublished returns up to limit published rows, newest publication first.
func (r *SQLiteRepository) ListPublished(ctx context.Context, limit int) ([]domain.Article, error) {
	return r.list(ctx, r.sb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"status": string(domain.StatusPublished)}).
		OrderBy("COALESCE(published_at, created_at) DESC", "id ASC").
		Limit(uint64(limit)))
}

// ListRecent returns up to limit rows of any status, newest publication first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]domain.Article, error) {
	return r.list(ctx, r.sb.Select(articleColumns...).From("articles").
		OrderBy("published_at DESC", "id ASC").
		Limit(uint64(limit)))
}

// GetArticle loads one row by id or returns domain.ErrNotFound.
func (r *SQLiteRepository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	articles, err := r.list(ctx, r.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).Limit(1))
	if err != nil {
		return domain.Article{}, err
	}
	if len(articles) == 0 {
		return domain.Article{}, fmt.Errorf("article %s: %w", id, domain.ErrNotFound)
	}
	return articles[0], nil
}

func (r *SQLiteRepository) list(ctx context.Context, builder sq.SelectBuilder) ([]domain.Article, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query articles: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %v", domain.ErrStore, err)
	}
	return articles, nil
}

func scanArticle(rows *sql.Rows) (domain.Article, error) {
	var (
		a                                          domain.Article
		title, source, url, published, raw, status sql.NullString
		tldr, summaryPro, evidence, createdAt      sql.NullString
		confidence                                 sql.NullFloat64
	)
	err := rows.Scan(&a.ID, &title, &source, &url, &published, &raw,
		&tldr, &summaryPro, &evidence, &confidence, &status, &createdAt)
	if err != nil {
		return domain.Article{}, fmt.Errorf("%w: scan article: %v", domain.ErrStore, err)
	}

	a.Title = title.String
	a.Source = source.String
	a.OriginalURL = url.String
	a.PublishedAt = published.String
	a.RawText = raw.String
	a.Status = domain.Status(status.String)
	a.CreatedAt = createdAt.String
	if tldr.Valid {
		a.TLDR = &tldr.String
	}
	if summaryPro.Valid {
		a.SummaryPro = &summaryPro.String
	}
	if confidence.Valid {
		a.Confidence = &confidence.Float64
	}
	a.Evidence = []domain.Evidence{}
	if evidence.Valid && evidence.String != "" {
		if err := json.Unmarshal([]byte(evidence.String), &a.Evidence); err != nil {
			return domain.Article{}, fmt.Errorf("decode evidence for %s: %w", a.ID, err)
		}
	}
	return a, nil
}
