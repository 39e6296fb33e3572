package orm

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"
)

// Conn is the connection-like resource a caller hands in. *sql.DB, *sql.Tx
// and *sql.Conn all satisfy it; its lifecycle stays with the caller.
type Conn interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is what the finder runs statements against. Only *DB implements it,
// which ties every statement to a Dialect.
type Querier interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	dialect() Dialect
}

// DB wraps a Conn with a Dialect and satisfies Querier.
type DB struct {
	raw    Conn
	d      Dialect
	logger logrus.FieldLogger
}

// New wraps a Conn with the given Dialect.
func New(conn Conn, d Dialect) *DB {
	return &DB{raw: conn, d: d}
}

// Debug returns a new *DB that logs every statement at debug level.
// The original DB is not modified.
func (db *DB) Debug(l logrus.FieldLogger) *DB {
	return &DB{raw: db.raw, d: db.d, logger: l}
}

// Dialect returns the dialect statements are rendered with.
func (db *DB) Dialect() Dialect { return db.d }

func (db *DB) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	db.log("prepare", query, nil)
	return db.raw.PrepareContext(ctx, query) //nolint:wrapcheck // thin wrapper
}

// QueryContext runs query after rewriting ? placeholders for the dialect.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = rewritePlaceholders(db.d, query)
	db.log("query", query, args)
	return db.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// ExecContext runs query after rewriting ? placeholders for the dialect.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = rewritePlaceholders(db.d, query)
	db.log("exec", query, args)
	return db.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (db *DB) dialect() Dialect { return db.d }

func (db *DB) log(op, query string, args []any) {
	if db.logger == nil {
		return
	}
	entry := db.logger.WithField("op", op).WithField("query", query)
	if len(args) > 0 {
		entry = entry.WithField("args", args)
	}
	entry.Debug("orm: statement")
}
