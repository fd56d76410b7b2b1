package store

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/sldstore/internal/flatline"
)

var (
	// ErrNotFound is returned when a query that expects exactly one row
	// returns none. It is a data-absence condition, not a database fault.
	ErrNotFound = errors.New("store: no rows")

	// ErrClosed is returned by any call on a UnitOfWork after Commit or
	// Rollback. It indicates a caller bug.
	ErrClosed = errors.New("store: unit of work is closed")

	// ErrDuplicateParam is returned when a config value replacement names
	// the same param more than once.
	ErrDuplicateParam = errors.New("store: duplicate param in config values")
)

// ConnectionError reports a failure to acquire a connection or begin a
// transaction.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store: begin transaction: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatementError wraps a database error raised by a single statement,
// including commit.
type StatementError struct {
	Stmt string
	Err  error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("store: statement failed: %v", e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// OrphanRuleError reports a Rule line with no preceding FeatureType line.
type OrphanRuleError struct {
	Line int
}

func (e *OrphanRuleError) Error() string {
	return fmt.Sprintf("rule on line %d has no enclosing feature type", e.Line)
}

// OrphanFieldError reports a Field line with no preceding Rule line.
type OrphanFieldError struct {
	Line int
}

func (e *OrphanFieldError) Error() string {
	return fmt.Sprintf("field on line %d has no enclosing rule", e.Line)
}

// LineError attaches the position and kind of the flat record being loaded
// when an ingest failed.
type LineError struct {
	Line int // 1-based position in the ingested sequence
	Kind flatline.Kind
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("ingest line %d (%s): %v", e.Line, e.Kind, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ValueError attaches the param being written when a config value
// replacement failed.
type ValueError struct {
	ParamID int64
	Err     error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("config value for param %d: %v", e.ParamID, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }
