// Package trace records bridge traffic in a sqlite journal.
//
// Wrap a Bridge with Wrap and every call that crosses it is appended to the
// journal: the operation, the member it targeted, its signature, a short
// rendering of the arguments, the outcome and how long it took.
package trace

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          INTEGER NOT NULL,
	op          TEXT    NOT NULL,
	qualifier   TEXT    NOT NULL DEFAULT '',
	signature   TEXT    NOT NULL DEFAULT '',
	args        TEXT    NOT NULL DEFAULT '',
	outcome     TEXT    NOT NULL DEFAULT '',
	error_kind  TEXT    NOT NULL DEFAULT '',
	duration_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS calls_op ON calls (op);
`

// Call is one journal entry.
type Call struct {
	ID        int64
	At        time.Time
	Op        string
	Qualifier string
	Signature string
	Args      string
	Outcome   string
	ErrorKind string
	Duration  time.Duration
}

func (c Call) String() string {
	s := fmt.Sprintf("%s %s %s [%s]", c.Op, c.Qualifier, c.Signature, c.Args)
	if c.ErrorKind != "" {
		return s + " !" + c.ErrorKind + " " + c.Outcome
	}
	if c.Outcome != "" {
		s += " = " + c.Outcome
	}
	return s
}

// Stat aggregates the calls of one operation.
type Stat struct {
	Op     string
	Calls  int
	Errors int
	Total  time.Duration
}

// Mean returns the average call duration.
func (s Stat) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// Journal is an append-only call log backed by sqlite.
type Journal struct {
	db   *sql.DB
	path string
	log  commonlog.Logger
}

// Open opens (creating if needed) the journal at path. ":memory:" gives a
// private in-memory journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace: create schema in %s: %w", path, err)
	}
	return &Journal{db: db, path: path, log: commonlog.GetLogger("jnibind.trace")}, nil
}

// Path returns the path the journal was opened with.
func (j *Journal) Path() string { return j.path }

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record appends c. At defaults to now.
func (j *Journal) Record(c Call) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO calls (at, op, qualifier, signature, args, outcome, error_kind, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.At.UnixNano(), c.Op, c.Qualifier, c.Signature, c.Args, c.Outcome, c.ErrorKind, int64(c.Duration),
	)
	if err != nil {
		return fmt.Errorf("trace: record %s: %w", c.Op, err)
	}
	return nil
}

// Filter narrows Calls. Zero values match everything.
type Filter struct {
	Op       string
	Failures bool
	Limit    int
}

// Calls returns journal entries, newest first.
func (j *Journal) Calls(f Filter) ([]Call, error) {
	var (
		where []string
		args  []any
	)
	if f.Op != "" {
		where = append(where, "op = ?")
		args = append(args, f.Op)
	}
	if f.Failures {
		where = append(where, "error_kind != ''")
	}
	q := "SELECT id, at, op, qualifier, signature, args, outcome, error_kind, duration_ns FROM calls"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("trace: query calls: %w", err)
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var (
			c      Call
			at, ns int64
		)
		if err := rows.Scan(&c.ID, &at, &c.Op, &c.Qualifier, &c.Signature, &c.Args, &c.Outcome, &c.ErrorKind, &ns); err != nil {
			return nil, fmt.Errorf("trace: scan call: %w", err)
		}
		c.At = time.Unix(0, at)
		c.Duration = time.Duration(ns)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats aggregates the journal per operation, busiest first.
func (j *Journal) Stats() ([]Stat, error) {
	rows, err := j.db.Query(`
		SELECT op, COUNT(*), SUM(CASE WHEN error_kind != '' THEN 1 ELSE 0 END), SUM(duration_ns)
		FROM calls GROUP BY op ORDER BY COUNT(*) DESC, op`)
	if err != nil {
		return nil, fmt.Errorf("trace: query stats: %w", err)
	}
	defer rows.Close()

	var out []Stat
	for rows.Next() {
		var (
			s  Stat
			ns int64
		)
		if err := rows.Scan(&s.Op, &s.Calls, &s.Errors, &ns); err != nil {
			return nil, fmt.Errorf("trace: scan stat: %w", err)
		}
		s.Total = time.Duration(ns)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Reset deletes every entry.
func (j *Journal) Reset() error {
	_, err := j.db.Exec("DELETE FROM calls")
	return err
}
