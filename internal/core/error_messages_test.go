package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/sldstore/internal/flatline"
	"github.com/JonMunkholm/sldstore/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "orphan rule through line context",
			err:         &store.LineError{Line: 1, Kind: flatline.KindRule, Err: &store.OrphanRuleError{Line: 1}},
			wantCode:    "ING001",
			wantMessage: "A rule appears before any feature type",
		},
		{
			name:        "orphan field",
			err:         &store.LineError{Line: 2, Kind: flatline.KindField, Err: &store.OrphanFieldError{Line: 2}},
			wantCode:    "ING002",
			wantMessage: "A field appears before any rule",
		},
		{
			name:        "syntax error",
			err:         &flatline.SyntaxError{Line: 4, Text: "Bogus", Reason: "unknown record kind"},
			wantCode:    "ING003",
			wantMessage: "A flat template line could not be read",
		},
		{
			name:        "wrapped sentinel",
			err:         fmt.Errorf("config 7: %w", ErrNotOwner),
			wantCode:    "CFG002",
			wantMessage: "You do not own this config",
		},
		{
			name:        "duplicate param",
			err:         store.ErrDuplicateParam,
			wantCode:    "CFG003",
			wantMessage: "A param is listed more than once",
		},
		{
			name: "unique violation by sqlstate",
			err: &store.ValueError{ParamID: 3, Err: &store.StatementError{
				Stmt: "INSERT INTO config_values",
				Err:  &pgconn.PgError{Code: "23505", Message: "conflict"},
			}},
			wantCode:    "DB001",
			wantMessage: "A value with this key already exists",
		},
		{
			name:        "foreign key by sqlstate",
			err:         &store.StatementError{Err: &pgconn.PgError{Code: "23503"}},
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "serialization failure by sqlstate",
			err:         &store.StatementError{Err: &pgconn.PgError{Code: "40001"}},
			wantCode:    "DB007",
			wantMessage: "Database was busy with conflicting operations",
		},
		{
			name:        "connection error",
			err:         &store.ConnectionError{Err: errors.New("pool closed")},
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "cancellation inside statement error",
			err:         &store.StatementError{Stmt: "COMMIT", Err: context.Canceled},
			wantCode:    "UPL004",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("ingest: %w", context.DeadlineExceeded),
			wantCode:    "UPL005",
			wantMessage: "Request timed out",
		},
		{
			name:        "busy",
			err:         ErrTooManyIngests,
			wantCode:    "UPL002",
			wantMessage: "System is busy processing other templates",
		},
		{
			name:        "text pattern fallback",
			err:         errors.New("pq: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A value with this key already exists",
		},
		{
			name:        "connection refused text",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "body too large text",
			err:         errors.New("http: request body too large"),
			wantCode:    "UPL006",
			wantMessage: "Request body is too large",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DEADLOCK detected"),
			wantCode:    "DB007",
			wantMessage: "Database was busy with conflicting operations",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestMapError_UnknownSQLStateFallsBackToText(t *testing.T) {
	err := &store.StatementError{Err: &pgconn.PgError{Code: "XX000", Message: "lock timeout"}}
	assert.Equal(t, "DB006", MapError(err).Code)
}

func TestFormatUserError(t *testing.T) {
	assert.Equal(t, "", FormatUserError(nil))
	assert.Equal(t,
		"Config not found (Code: CFG001). Verify the config id",
		FormatUserError(fmt.Errorf("config 1: %w", ErrConfigNotFound)),
	)
}

func TestAllCodesHaveMessageAndAction(t *testing.T) {
	var all []UserMessage
	for _, s := range sentinelMessages {
		all = append(all, s.msg)
	}
	for _, m := range pgCodeMessages {
		all = append(all, m)
	}
	for _, p := range errorPatterns {
		all = append(all, p.msg)
	}
	all = append(all, msgOrphanRule, msgOrphanField, msgSyntax, msgUnavailable, defaultMessage)

	for _, m := range all {
		assert.NotEmpty(t, m.Code)
		assert.NotEmpty(t, m.Message, m.Code)
		assert.NotEmpty(t, m.Action, m.Code)
	}
}
