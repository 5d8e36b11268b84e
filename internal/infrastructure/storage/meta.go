package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"FinMuse/internal/domain"
)

type queryExecer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetMeta returns the value stored under key and whether it exists.
func (r *SQLiteRepository) GetMeta(ctx context.Context, key string) (string, bool, error) {
	return r.getMeta(ctx, r.db, key)
}

// SetMeta inserts or replaces the value stored under key.
func (r *SQLiteRepository) SetMeta(ctx context.Context, key, value string) error {
	return r.setMeta(ctx, r.db, key, value)
}

// LLMCallsToday resets the counter when the stored reset date is not today,
// then returns the current count.
func (r *SQLiteRepository) LLMCallsToday(ctx context.Context, today string) (int, error) {
	var calls int
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		calls, err = r.callsToday(ctx, tx, today)
		return err
	})
	return calls, err
}

// IncrementLLMCalls resets the counter when stale, adds one and returns the new count.
func (r *SQLiteRepository) IncrementLLMCalls(ctx context.Context, today string) (int, error) {
	var calls int
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		current, err := r.callsToday(ctx, tx, today)
		if err != nil {
			return err
		}
		calls = current + 1
		return r.setMeta(ctx, tx, metaCallsToday, strconv.Itoa(calls))
	})
	return calls, err
}

func (r *SQLiteRepository) callsToday(ctx context.Context, q queryExecer, today string) (int, error) {
	last, _, err := r.getMeta(ctx, q, metaLastReset)
	if err != nil {
		return 0, err
	}
	if last != today {
		if err := r.setMeta(ctx, q, metaLastReset, today); err != nil {
			return 0, err
		}
		if err := r.setMeta(ctx, q, metaCallsToday, "0"); err != nil {
			return 0, err
		}
		return 0, nil
	}

	raw, _, err := r.getMeta(ctx, q, metaCallsToday)
	if err != nil {
		return 0, err
	}
	calls, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return calls, nil
}

func (r *SQLiteRepository) getMeta(ctx context.Context, q queryExecer, key string) (string, bool, error) {
	query, args, err := r.sb.Select("v").From("meta").Where(sq.Eq{"k": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build meta select: %w", err)
	}

	var v sql.NullString
	err = q.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get meta %s: %v", domain.ErrStore, key, err)
	}
	return v.String, true, nil
}

func (r *SQLiteRepository) setMeta(ctx context.Context, q queryExecer, key, value string) error {
	query, args, err := r.sb.Insert("meta").Options("OR REPLACE").Columns("k", "v").Values(key, value).ToSql()
	if err != nil {
		return fmt.Errorf("build meta upsert: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: set meta %s: %v", domain.ErrStore, key, err)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStore, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStore, err)
	}
	return nil
}
