// Package storetest provides an in-memory transactional database that
// understands the statements the store package generates. It lets store and
// service tests observe commit and rollback behaviour without PostgreSQL.
//
// Supported statement shapes:
//
//	INSERT INTO t (c, ...) VALUES ($n, ...) [RETURNING id]
//	SELECT c, ... FROM t [WHERE c = $n AND ...] [ORDER BY c ASC|DESC]
//	UPDATE t SET c = $n, ... [WHERE c = $n AND ...]
//	DELETE FROM t [WHERE c = $n AND ...]
//	SELECT pg_advisory_xact_lock(...)
//
// Every table has an implicit "id" column fed by a sequence that, as in
// PostgreSQL, is not rolled back.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Row is one stored record keyed by column name.
type Row map[string]any

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type tables map[string][]Row

func (t tables) clone() tables {
	out := make(tables, len(t))
	for name, rows := range t {
		cp := make([]Row, len(rows))
		for i, r := range rows {
			cp[i] = r.clone()
		}
		out[name] = cp
	}
	return out
}

type failure struct {
	substr string
	n      int
	seen   int
	err    error
}

type uniqueKey struct {
	table string
	cols  []string
}

// DB is an in-memory database. The zero value is not usable; call New.
type DB struct {
	mu        sync.Mutex
	committed tables
	seq       map[string]int64
	beginErr  error
	commitErr error
	failures  []*failure
	uniques   []uniqueKey
	log       []string
	commits   int
	rollbacks int
}

// New returns an empty database.
func New() *DB {
	return &DB{
		committed: make(tables),
		seq:       make(map[string]int64),
	}
}

// FailBegin makes every following Begin return err. Pass nil to clear.
func (db *DB) FailBegin(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.beginErr = err
}

// FailCommit makes every following Commit return err and discard the
// transaction. Pass nil to clear.
func (db *DB) FailCommit(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.commitErr = err
}

// FailOn makes the n-th (1-based) statement containing substr fail with err.
// Counting starts when FailOn is called and spans transactions.
func (db *DB) FailOn(substr string, n int, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures = append(db.failures, &failure{substr: substr, n: n, err: err})
}

// Unique declares a unique constraint. Violations fail with a
// *pgconn.PgError carrying SQLSTATE 23505.
func (db *DB) Unique(table string, cols ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.uniques = append(db.uniques, uniqueKey{table: table, cols: cols})
}

// Seed inserts a committed row and returns its id.
func (db *DB) Seed(table string, row Row) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.nextID(table)
	r := row.clone()
	r["id"] = id
	db.committed[table] = append(db.committed[table], r)
	return id
}

// Rows returns copies of the committed rows of table in insertion order.
func (db *DB) Rows(table string) []Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	rows := db.committed[table]
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.clone()
	}
	return out
}

// Count returns the number of committed rows in table.
func (db *DB) Count(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.committed[table])
}

// Statements returns every statement executed so far, in order.
func (db *DB) Statements() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.log...)
}

// Commits returns the number of successful commits.
func (db *DB) Commits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

// Rollbacks returns the number of rollbacks.
func (db *DB) Rollbacks() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rollbacks
}

func (db *DB) nextID(table string) int64 {
	db.seq[table]++
	return db.seq[table]
}

// Begin opens a transaction over a snapshot of the committed tables.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	return &Tx{db: db, data: db.committed.clone()}, nil
}

// Tx is a transaction on a DB. Only the methods the store uses are
// implemented; the rest of pgx.Tx panics.
type Tx struct {
	pgx.Tx

	db     *DB
	data   tables
	closed bool
}

// Commit publishes the transaction's tables.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.db.commitErr != nil {
		tx.db.rollbacks++
		return tx.db.commitErr
	}
	if err := ctx.Err(); err != nil {
		tx.db.rollbacks++
		return err
	}
	tx.db.committed = tx.data
	tx.db.commits++
	return nil
}

// Rollback discards the transaction.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.rollbacks++
	return nil
}

// Exec runs a statement that returns no rows.
func (tx *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	res, err := tx.run(ctx, sql, args)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return res.tag, nil
}

// Query runs a statement and returns its rows.
func (tx *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	res, err := tx.run(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	return &rows{result: res, pos: -1}, nil
}

// QueryRow runs a statement and returns its first row.
func (tx *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	res, err := tx.run(ctx, sql, args)
	return &row{result: res, err: err}
}

type result struct {
	tag    pgconn.CommandTag
	values [][]any
}

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	insertRe = regexp.MustCompile(`^INSERT INTO (\w+) ?\(([^)]*)\) VALUES ?\(([^)]*)\)(?: RETURNING ([\w, ]+))?$`)
	selectRe = regexp.MustCompile(`^SELECT (.+?) FROM (\w+)(?: WHERE (.+?))?(?: ORDER BY (\w+)(?: (ASC|DESC))?)?(?: LIMIT (\$?\d+))?$`)
	updateRe = regexp.MustCompile(`^UPDATE (\w+) SET (.+?)(?: WHERE (.+))?$`)
	deleteRe = regexp.MustCompile(`^DELETE FROM (\w+)(?: WHERE (.+))?$`)
	assignRe = regexp.MustCompile(`^(\w+) = \$(\d+)$`)
)

func (tx *Tx) run(ctx context.Context, sql string, args []any) (*result, error) {
	if tx.closed {
		return nil, pgx.ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stmt := strings.TrimSpace(spaceRe.ReplaceAllString(sql, " "))
	if err := tx.db.record(stmt); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(stmt, "SELECT pg_advisory"):
		return &result{tag: pgconn.NewCommandTag("SELECT 1"), values: [][]any{{nil}}}, nil
	case strings.HasPrefix(stmt, "INSERT "):
		return tx.insert(stmt, args)
	case strings.HasPrefix(stmt, "SELECT "):
		return tx.selectRows(stmt, args)
	case strings.HasPrefix(stmt, "UPDATE "):
		return tx.update(stmt, args)
	case strings.HasPrefix(stmt, "DELETE "):
		return tx.delete(stmt, args)
	}
	return nil, fmt.Errorf("storetest: unsupported statement %q", stmt)
}

func (db *DB) record(stmt string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.log = append(db.log, stmt)
	for _, f := range db.failures {
		if !strings.Contains(stmt, f.substr) {
			continue
		}
		f.seen++
		if f.seen == f.n {
			return f.err
		}
	}
	return nil
}

func arg(args []any, placeholder string) (any, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(placeholder), "$"))
	if err != nil || n < 1 || n > len(args) {
		return nil, fmt.Errorf("storetest: bad placeholder %q", placeholder)
	}
	return args[n-1], nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (tx *Tx) insert(stmt string, args []any) (*result, error) {
	m := insertRe.FindStringSubmatch(stmt)
	if m == nil {
		return nil, fmt.Errorf("storetest: cannot parse %q", stmt)
	}
	table, cols, vals := m[1], splitList(m[2]), splitList(m[3])
	if len(cols) != len(vals) {
		return nil, fmt.Errorf("storetest: %d columns, %d values", len(cols), len(vals))
	}

	r := make(Row, len(cols)+1)
	for i, c := range cols {
		v, err := arg(args, vals[i])
		if err != nil {
			return nil, err
		}
		r[c] = v
	}
	if err := tx.checkUnique(table, r); err != nil {
		return nil, err
	}

	tx.db.mu.Lock()
	r["id"] = tx.db.nextID(table)
	tx.db.mu.Unlock()
	tx.data[table] = append(tx.data[table], r)

	res := &result{tag: pgconn.NewCommandTag("INSERT 0 1")}
	if m[4] != "" {
		var out []any
		for _, c := range splitList(m[4]) {
			out = append(out, r[c])
		}
		res.values = [][]any{out}
	}
	return res, nil
}

func (tx *Tx) checkUnique(table string, r Row) error {
	tx.db.mu.Lock()
	uniques := tx.db.uniques
	tx.db.mu.Unlock()

	for _, u := range uniques {
		if u.table != table {
			continue
		}
		for _, existing := range tx.data[table] {
			same := true
			for _, c := range u.cols {
				if !reflect.DeepEqual(existing[c], r[c]) {
					same = false
					break
				}
			}
			if same {
				return &pgconn.PgError{
					Severity:       "ERROR",
					Code:           "23505",
					Message:        "duplicate key value violates unique constraint",
					TableName:      table,
					ConstraintName: table + "_" + strings.Join(u.cols, "_") + "_key",
				}
			}
		}
	}
	return nil
}

type condition struct {
	col string
	val any
}

func parseWhere(where string, args []any) ([]condition, error) {
	if where == "" {
		return nil, nil
	}
	var conds []condition
	for _, part := range strings.Split(where, " AND ") {
		m := assignRe.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("storetest: unsupported condition %q", part)
		}
		v, err := arg(args, "$"+m[2])
		if err != nil {
			return nil, err
		}
		conds = append(conds, condition{col: m[1], val: v})
	}
	return conds, nil
}

func (c condition) match(r Row) bool {
	return equal(r[c.col], c.val)
}

// equal compares stored and argument values across integer widths.
func equal(a, b any) bool {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return ai == bi
		}
	}
	return reflect.DeepEqual(a, b)
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	}
	return 0, false
}

func matchAll(conds []condition, r Row) bool {
	for _, c := range conds {
		if !c.match(r) {
			return false
		}
	}
	return true
}

func (tx *Tx) selectRows(stmt string, args []any) (*result, error) {
	m := selectRe.FindStringSubmatch(stmt)
	if m == nil {
		return nil, fmt.Errorf("storetest: cannot parse %q", stmt)
	}
	cols, table := splitList(m[1]), m[2]
	conds, err := parseWhere(m[3], args)
	if err != nil {
		return nil, err
	}

	var matched []Row
	for _, r := range tx.data[table] {
		if matchAll(conds, r) {
			matched = append(matched, r)
		}
	}
	if orderCol := m[4]; orderCol != "" {
		desc := m[5] == "DESC"
		sort.SliceStable(matched, func(i, j int) bool {
			a, _ := toInt64(matched[i][orderCol])
			b, _ := toInt64(matched[j][orderCol])
			if desc {
				return a > b
			}
			return a < b
		})
	}

	if raw := m[6]; raw != "" {
		limit, err := parseLimit(raw, args)
		if err != nil {
			return nil, err
		}
		if int64(len(matched)) > limit {
			matched = matched[:limit]
		}
	}

	res := &result{tag: pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(matched)))}
	for _, r := range matched {
		out := make([]any, len(cols))
		for i, c := range cols {
			if base, ok := strings.CutSuffix(c, "::text"); ok {
				if v := r[base]; v != nil {
					out[i] = fmt.Sprint(v)
				}
				continue
			}
			out[i] = r[c]
		}
		res.values = append(res.values, out)
	}
	return res, nil
}

// parseLimit reads a LIMIT operand, either inline or a placeholder.
func parseLimit(raw string, args []any) (int64, error) {
	if !strings.HasPrefix(raw, "$") {
		return strconv.ParseInt(raw, 10, 64)
	}
	v, err := arg(args, raw)
	if err != nil {
		return 0, err
	}
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return 0, fmt.Errorf("storetest: bad LIMIT %v", v)
	}
	return n, nil
}

func (tx *Tx) update(stmt string, args []any) (*result, error) {
	m := updateRe.FindStringSubmatch(stmt)
	if m == nil {
		return nil, fmt.Errorf("storetest: cannot parse %q", stmt)
	}
	table := m[1]
	sets, err := parseWhere(strings.ReplaceAll(m[2], ", ", " AND "), args)
	if err != nil {
		return nil, err
	}
	conds, err := parseWhere(m[3], args)
	if err != nil {
		return nil, err
	}

	n := 0
	for _, r := range tx.data[table] {
		if !matchAll(conds, r) {
			continue
		}
		for _, s := range sets {
			r[s.col] = s.val
		}
		n++
	}
	return &result{tag: pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n))}, nil
}

func (tx *Tx) delete(stmt string, args []any) (*result, error) {
	m := deleteRe.FindStringSubmatch(stmt)
	if m == nil {
		return nil, fmt.Errorf("storetest: cannot parse %q", stmt)
	}
	table := m[1]
	conds, err := parseWhere(m[2], args)
	if err != nil {
		return nil, err
	}

	kept := tx.data[table][:0:0]
	n := 0
	for _, r := range tx.data[table] {
		if matchAll(conds, r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	tx.data[table] = kept
	return &result{tag: pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n))}, nil
}

type row struct {
	result *result
	err    error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(r.result.values) == 0 {
		return pgx.ErrNoRows
	}
	return scanInto(r.result.values[0], dest)
}

type rows struct {
	pgx.Rows

	result *result
	pos    int
	closed bool
}

func (r *rows) Next() bool {
	if r.closed {
		return false
	}
	r.pos++
	if r.pos >= len(r.result.values) {
		r.closed = true
		return false
	}
	return true
}

func (r *rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.result.values) {
		return errors.New("storetest: Scan called without a current row")
	}
	return scanInto(r.result.values[r.pos], dest)
}

func (r *rows) Err() error                    { return nil }
func (r *rows) Close()                        { r.closed = true }
func (r *rows) CommandTag() pgconn.CommandTag { return r.result.tag }

func scanInto(values []any, dest []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("storetest: %d destinations for %d columns", len(dest), len(values))
	}
	for i, d := range dest {
		if d == nil {
			continue
		}
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("storetest: destination %d is not a non-nil pointer", i)
		}
		target := dv.Elem()
		if values[i] == nil {
			target.SetZero()
			continue
		}
		src := reflect.ValueOf(values[i])
		switch {
		case src.Type().AssignableTo(target.Type()):
			target.Set(src)
		case target.Kind() == reflect.String:
			target.SetString(fmt.Sprint(values[i]))
		case src.Type().ConvertibleTo(target.Type()) && src.Kind() != reflect.String:
			target.Set(src.Convert(target.Type()))
		default:
			return fmt.Errorf("storetest: cannot scan %T into %s", values[i], target.Type())
		}
	}
	return nil
}
