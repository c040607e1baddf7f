package dbx

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Observer receives the duration and outcome of every statement, labelled by
// the statement's leading keyword (select, insert, update, delete).
type Observer func(op string, d time.Duration, err error)

type observed struct {
	db  DBTX
	obs Observer
}

// Observe wraps db so that each call is reported to obs. A nil obs returns db
// unchanged.
func Observe(db DBTX, obs Observer) DBTX {
	if obs == nil {
		return db
	}
	return &observed{db: db, obs: obs}
}

func (o *observed) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := o.db.ExecContext(ctx, query, args...)
	o.obs(statementKind(query), time.Since(start), err)
	return res, err
}

func (o *observed) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := o.db.QueryContext(ctx, query, args...)
	o.obs(statementKind(query), time.Since(start), err)
	return rows, err
}

func (o *observed) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := o.db.QueryRowContext(ctx, query, args...)
	o.obs(statementKind(query), time.Since(start), row.Err())
	return row
}

func statementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
