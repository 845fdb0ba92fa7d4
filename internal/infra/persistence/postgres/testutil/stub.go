// Package testutil provides an in-memory database/sql driver that understands
// the statements the postgres store issues: CREATE TABLE, TRUNCATE TABLE,
// INSERT INTO t (cols) VALUES and SELECT cols FROM t.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// Row maps lower-case column names to stored values.
type Row map[string]any

// StubConn keeps rows per table and the text of every Exec call. The Fail*
// switches make the matching driver call return an error.
type StubConn struct {
	Execs  []string
	Tables map[string][]Row

	FailExec   bool
	FailBegin  bool
	FailCommit bool
	// FailTables fails inserts into and selects from the named tables.
	FailTables map[string]bool
}

var stubSeq atomic.Int64

// NewStubDB registers a fresh driver and returns a sql.DB bound to it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]Row)}
	name := fmt.Sprintf("pidcheck-stub-%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn. Statements always go through ExecContext
// and QueryContext.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements unsupported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger and fails with FailExec.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return errors.New("stub: ping failed")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx. The tables are restored on rollback
// or a failed commit.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin failed")
	}
	snapshot := make(map[string][]Row, len(c.Tables))
	for table, rows := range c.Tables {
		snapshot[table] = append([]Row(nil), rows...)
	}
	return &stubTx{conn: c, snapshot: snapshot}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("stub: exec failed")
	}
	words := strings.Fields(strings.ToLower(query))
	switch {
	case len(words) >= 3 && words[0] == "truncate":
		delete(c.Tables, words[2])
		return driver.RowsAffected(0), nil
	case len(words) >= 3 && words[0] == "insert":
		return c.insert(query, args)
	}
	return driver.RowsAffected(0), nil
}

func (c *StubConn) insert(query string, args []driver.NamedValue) (driver.Result, error) {
	head, _, _ := strings.Cut(strings.ToLower(query), ")")
	table, cols, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(head), "insert into")), "(")
	if !ok {
		return nil, fmt.Errorf("stub: cannot parse %q", query)
	}
	table = strings.TrimSpace(table)
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: insert into %s failed", table)
	}
	names := columns(cols)
	if len(names) != len(args) {
		return nil, fmt.Errorf("stub: %d columns, %d args", len(names), len(args))
	}
	row := make(Row, len(names))
	for i, name := range names {
		row[name] = args[i].Value
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	cols, rest, ok := strings.Cut(strings.TrimPrefix(lower, "select "), " from ")
	if !ok || !strings.HasPrefix(lower, "select ") || len(strings.Fields(rest)) == 0 {
		return nil, fmt.Errorf("stub: cannot parse %q", query)
	}
	table := strings.Fields(rest)[0]
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: select from %s failed", table)
	}
	rows := &stubRows{cols: columns(cols)}
	for _, row := range c.Tables[table] {
		vals := make([]driver.Value, len(rows.cols))
		for i, col := range rows.cols {
			vals[i] = row[col]
		}
		rows.data = append(rows.data, vals)
	}
	return rows, nil
}

func columns(list string) []string {
	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

type stubTx struct {
	conn     *StubConn
	snapshot map[string][]Row
	done     bool
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		t.rollback()
		return errors.New("stub: commit failed")
	}
	t.done = true
	return nil
}

func (t *stubTx) Rollback() error {
	t.rollback()
	return nil
}

func (t *stubTx) rollback() {
	if !t.done {
		t.conn.Tables = t.snapshot
		t.done = true
	}
}

type stubRows struct {
	cols []string
	data [][]driver.Value
	next int
}

func (r *stubRows) Columns() []string { return r.cols }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.next])
	r.next++
	return nil
}
