package orm_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

// handler answers one statement execution with columns and rows.
type handler func(query string, args []any) (cols []string, rows [][]driver.Value, err error)

// result is a canned answer for byQuery.
type result struct {
	cols []string
	rows [][]driver.Value
	err  error
}

// byQuery answers from a fixed table keyed by statement text.
func byQuery(results map[string]result) handler {
	return func(query string, _ []any) ([]string, [][]driver.Value, error) {
		r, ok := results[query]
		if !ok {
			return nil, nil, fmt.Errorf("fake: unexpected query %q", query)
		}
		return r.cols, r.rows, r.err
	}
}

type recordedQuery struct {
	SQL  string
	Args []any
}

// fakeDB counts statement and cursor lifecycles across every connection it
// hands out.
type fakeDB struct {
	h            handler
	prepareErr   error
	stmtCloseErr error
	rowsCloseErr error

	mu         sync.Mutex
	prepared   int
	stmtClosed int
	opened     int
	rowsClosed int
	queries    []recordedQuery
}

type counts struct {
	Prepared, StmtClosed, Opened, RowsClosed int
}

func (f *fakeDB) counts() counts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return counts{f.prepared, f.stmtClosed, f.opened, f.rowsClosed}
}

func (f *fakeDB) recorded() []recordedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedQuery(nil), f.queries...)
}

// open returns a single-connection *sql.DB backed by f. One connection is
// enough because the finder never holds a cursor while running nested loads.
func (f *fakeDB) open(t *testing.T) *sql.DB {
	t.Helper()
	db := sql.OpenDB(&fakeConnector{db: f})
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeConnector struct{ db *fakeDB }

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: c.db}, nil }
func (c *fakeConnector) Driver() driver.Driver                        { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("fake: use sql.OpenDB with a connector")
}

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	if c.db.prepareErr != nil {
		return nil, c.db.prepareErr
	}
	c.db.mu.Lock()
	c.db.prepared++
	c.db.mu.Unlock()
	return &fakeStmt{db: c.db, query: query}, nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("fake: transactions not supported")
}

type fakeStmt struct {
	db    *fakeDB
	query string
}

func (s *fakeStmt) Close() error {
	s.db.mu.Lock()
	s.db.stmtClosed++
	s.db.mu.Unlock()
	return s.db.stmtCloseErr
}

func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, errors.New("fake: exec not supported")
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a
	}
	return s.run(vals)
}

func (s *fakeStmt) QueryContext(_ context.Context, args []driver.NamedValue) (driver.Rows, error) {
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	return s.run(vals)
}

func (s *fakeStmt) run(args []any) (driver.Rows, error) {
	s.db.mu.Lock()
	s.db.queries = append(s.db.queries, recordedQuery{SQL: s.query, Args: args})
	s.db.mu.Unlock()

	cols, data, err := s.db.h(s.query, args)
	if err != nil {
		return nil, err
	}

	s.db.mu.Lock()
	s.db.opened++
	s.db.mu.Unlock()
	return &fakeRows{db: s.db, cols: cols, data: data}, nil
}

type fakeRows struct {
	db   *fakeDB
	cols []string
	data [][]driver.Value
	i    int
}

func (r *fakeRows) Columns() []string { return append([]string(nil), r.cols...) }

func (r *fakeRows) Close() error {
	r.db.mu.Lock()
	r.db.rowsClosed++
	r.db.mu.Unlock()
	return r.db.rowsCloseErr
}

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	r.i++
	return nil
}
