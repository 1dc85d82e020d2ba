package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"digestbot/internal/domain"
	"digestbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite store, creating the schema if needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if log.IsZero() {
		log = logx.Nop()
	}
	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- content ----

func (s *sqliteStore) HasArticle(ctx context.Context, url string) (bool, error) {
	query, args, err := sq.Select("1").From("articles").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) InsertArticle(ctx context.Context, item domain.ContentItem) (int64, error) {
	// OR IGNORE keeps the unique constraint the source of truth: a racing
	// duplicate insert surfaces as zero affected rows, not a driver error.
	query, args, err := sq.Insert("articles").Options("OR IGNORE").
		Columns("url", "title", "summary", "category", "source", "published_at").
		Values(item.URL, item.Title, item.Summary, item.Category, item.Source, item.PublishedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrDuplicateURL
	}
	return res.LastInsertId()
}

func (s *sqliteStore) RecentByCategory(ctx context.Context, category string, limit int) ([]domain.ContentItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	query, args, err := sq.Select("id", "url", "title", "summary", "category", "source", "published_at").
		From("articles").
		Where(sq.Eq{"category": category}).
		OrderBy("published_at DESC", "id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		var it domain.ContentItem
		var pub int64
		if err := rows.Scan(&it.ID, &it.URL, &it.Title, &it.Summary, &it.Category, &it.Source, &pub); err != nil {
			return nil, err
		}
		it.PublishedAt = time.UnixMilli(pub)
		items = append(items, it)
	}
	return items, rows.Err()
}

// ---- subscribers ----

func (s *sqliteStore) EnsureSubscriber(ctx context.Context, id int64, firstName, defaultTime string) (domain.Subscriber, bool, error) {
	query, args, err := sq.Insert("subscribers").Options("OR IGNORE").
		Columns("id", "first_name", "digest_time", "active", "created_at").
		Values(id, firstName, defaultTime, 1, time.Now().UnixMilli()).
		ToSql()
	if err != nil {
		return domain.Subscriber{}, false, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Subscriber{}, false, err
	}
	n, _ := res.RowsAffected()
	sub, err := s.Subscriber(ctx, id)
	return sub, n > 0, err
}

func (s *sqliteStore) Subscriber(ctx context.Context, id int64) (domain.Subscriber, error) {
	query, args, err := sq.Select("id", "first_name", "digest_time", "active").
		From("subscribers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Subscriber{}, err
	}
	var sub domain.Subscriber
	var active int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&sub.ID, &sub.FirstName, &sub.DigestTime, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscriber{}, ErrNotFound
	}
	if err != nil {
		return domain.Subscriber{}, err
	}
	sub.Active = active != 0
	sub.Categories, err = s.categoriesOf(ctx, id)
	return sub, err
}

func (s *sqliteStore) ActiveSubscribersDueAt(ctx context.Context, hhmm string) ([]domain.Subscriber, error) {
	return s.querySubscribers(ctx, sq.Eq{"active": 1, "digest_time": hhmm})
}

func (s *sqliteStore) ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	return s.querySubscribers(ctx, sq.Eq{"active": 1})
}

func (s *sqliteStore) querySubscribers(ctx context.Context, cond sq.Eq) ([]domain.Subscriber, error) {
	query, args, err := sq.Select("id", "first_name", "digest_time", "active").
		From("subscribers").Where(cond).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		var active int
		if err := rows.Scan(&sub.ID, &sub.FirstName, &sub.DigestTime, &active); err != nil {
			return nil, err
		}
		sub.Active = active != 0
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].Categories, err = s.categoriesOf(ctx, subs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (s *sqliteStore) categoriesOf(ctx context.Context, id int64) ([]string, error) {
	query, args, err := sq.Select("category").From("subscriber_categories").
		Where(sq.Eq{"subscriber_id": id}).OrderBy("position ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *sqliteStore) SetDigestTime(ctx context.Context, id int64, hhmm string) error {
	return s.updateSubscriber(ctx, id, sq.Eq{"digest_time": hhmm})
}

func (s *sqliteStore) SetActive(ctx context.Context, id int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	return s.updateSubscriber(ctx, id, sq.Eq{"active": v})
}

func (s *sqliteStore) updateSubscriber(ctx context.Context, id int64, set sq.Eq) error {
	q := sq.Update("subscribers").Where(sq.Eq{"id": id})
	for k, v := range set {
		q = q.Set(k, v)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) SetCategories(ctx context.Context, id int64, categories []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM subscriber_categories WHERE subscriber_id = ?", id); err != nil {
		return err
	}
	for i, cat := range categories {
		query, args, err := sq.Insert("subscriber_categories").
			Columns("subscriber_id", "category", "position").
			Values(id, cat, i).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---- delivery markers ----

func (s *sqliteStore) WasDelivered(ctx context.Context, id int64, slot domain.Slot) (bool, error) {
	query, args, err := sq.Select("1").From("deliveries").
		Where(sq.Eq{"subscriber_id": id, "slot_date": slot.Date, "slot_time": slot.Time}).
		ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) MarkDelivered(ctx context.Context, id int64, slot domain.Slot) error {
	// Idempotent: the composite primary key makes a repeated mark a no-op.
	query, args, err := sq.Insert("deliveries").Options("OR IGNORE").
		Columns("subscriber_id", "slot_date", "slot_time", "delivered_at").
		Values(id, slot.Date, slot.Time, time.Now().UnixMilli()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// ---- conversations ----

func (s *sqliteStore) SaveExcerpt(ctx context.Context, subscriberID int64, message, response string) error {
	query, args, err := sq.Insert("conversations").
		Columns("subscriber_id", "message", "response", "created_at").
		Values(subscriberID, message, response, time.Now().UnixMilli()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqliteStore) RecentExcerpts(ctx context.Context, subscriberID int64, limit int) ([]domain.Excerpt, error) {
	if limit <= 0 {
		return nil, nil
	}
	query, args, err := sq.Select("message", "response", "created_at").
		From("conversations").
		Where(sq.Eq{"subscriber_id": subscriberID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Excerpt
	for rows.Next() {
		var e domain.Excerpt
		var at int64
		if err := rows.Scan(&e.Message, &e.Response, &at); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
