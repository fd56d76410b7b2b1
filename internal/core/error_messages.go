package core

// # Error Codes Reference
//
// Every failure shown to an API client carries a code that support staff can
// look up here.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate value: a value violates a unique constraint
//	        Typed: SQLSTATE 23505. Patterns: "duplicate key", "violates unique"
//	DB003 - Missing reference: a referenced row does not exist
//	        Typed: SQLSTATE 23503. Patterns: "violates foreign key"
//	DB004 - Database unavailable: a connection or transaction could not start
//	        Typed: *store.ConnectionError. Patterns: "connection refused"
//	DB005 - Connection reset
//	        Patterns: "connection reset"
//	DB006 - Timeout: the statement was cancelled by the server
//	        Typed: SQLSTATE 57014. Patterns: "timeout"
//	DB007 - Conflict: deadlock or serialization failure
//	        Typed: SQLSTATE 40P01, 40001. Patterns: "deadlock"
//
// # Ingest Errors (ING001-ING099)
//
//	ING001 - Rule before any feature type       (*store.OrphanRuleError)
//	ING002 - Field before any rule               (*store.OrphanFieldError)
//	ING003 - Unreadable flat line                (*flatline.SyntaxError)
//	ING004 - Too many flat lines                 (ErrTooManyLines)
//	ING005 - Missing template name               (ErrEmptyName)
//	ING006 - Empty template                      (ErrEmptyTemplate)
//	ING007 - Template not found                  (ErrTemplateNotFound)
//
// # Config Errors (CFG001-CFG099)
//
//	CFG001 - Config not found                    (ErrConfigNotFound)
//	CFG002 - Owner token does not match          (ErrNotOwner)
//	CFG003 - Param listed twice                  (store.ErrDuplicateParam)
//	CFG004 - Owner token missing or malformed    (ErrInvalidOwner)
//	CFG005 - Missing config name                 (ErrEmptyConfigName)
//
// # Request Errors (UPL001-UPL099)
//
//	UPL002 - System busy                         (ErrTooManyIngests)
//	UPL004 - Request cancelled                   (context.Canceled)
//	UPL005 - Request timed out                   (context.DeadlineExceeded)
//	UPL006 - Request body too large              ("request body too large")
//	UPL007 - Malformed request                   (ErrInvalidRequest)
//
// # Default Error (ERR000)
//
// Fallback when nothing matches; check the application log for the
// underlying error.
//
// Typed checks run first so a wrapped error keeps its precise code. Pattern
// matching is the fallback for errors that arrive as plain text, such as
// driver failures without a PgError.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/sldstore/internal/flatline"
	"github.com/JonMunkholm/sldstore/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgDuplicate = UserMessage{
		Message: "A value with this key already exists",
		Action:  "Remove the duplicate entry and try again",
		Code:    "DB001",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Check that every referenced id exists",
		Code:    "DB003",
	}
	msgUnavailable = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}
	msgReset = UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}
	msgDBTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller template or try again later",
		Code:    "DB006",
	}
	msgConflict = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}

	msgOrphanRule = UserMessage{
		Message: "A rule appears before any feature type",
		Action:  "Start the flat template with a FeatureType line",
		Code:    "ING001",
	}
	msgOrphanField = UserMessage{
		Message: "A field appears before any rule",
		Action:  "Place every Field line after a Rule line",
		Code:    "ING002",
	}
	msgSyntax = UserMessage{
		Message: "A flat template line could not be read",
		Action:  "Check the line kind and that the offset is a whole number",
		Code:    "ING003",
	}
	msgTooManyLines = UserMessage{
		Message: "The flat template has too many lines",
		Action:  "Split the template into smaller templates",
		Code:    "ING004",
	}
	msgEmptyName = UserMessage{
		Message: "Template name is required",
		Action:  "Provide a non-empty name",
		Code:    "ING005",
	}
	msgEmptyTemplate = UserMessage{
		Message: "The flat template has no lines",
		Action:  "Provide at least one FeatureType line",
		Code:    "ING006",
	}
	msgTemplateNotFound = UserMessage{
		Message: "Template not found",
		Action:  "Verify the template id",
		Code:    "ING007",
	}

	msgConfigNotFound = UserMessage{
		Message: "Config not found",
		Action:  "Verify the config id",
		Code:    "CFG001",
	}
	msgNotOwner = UserMessage{
		Message: "You do not own this config",
		Action:  "Send the token returned when the config was created",
		Code:    "CFG002",
	}
	msgDuplicateParam = UserMessage{
		Message: "A param is listed more than once",
		Action:  "Send each param id at most once",
		Code:    "CFG003",
	}
	msgInvalidOwner = UserMessage{
		Message: "Owner token is missing or malformed",
		Action:  "Send the config token in the X-Config-Owner header",
		Code:    "CFG004",
	}
	msgEmptyConfigName = UserMessage{
		Message: "Config name is required",
		Action:  "Provide a non-empty name",
		Code:    "CFG005",
	}

	msgBusy = UserMessage{
		Message: "System is busy processing other templates",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgCanceled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller template or check your connection",
		Code:    "UPL005",
	}
	msgBodyTooLarge = UserMessage{
		Message: "Request body is too large",
		Action:  "Split the template into smaller templates",
		Code:    "UPL006",
	}
	msgInvalidRequest = UserMessage{
		Message: "The request could not be understood",
		Action:  "Check the request path and JSON body",
		Code:    "UPL007",
	}
)

// sentinelMessages maps errors matched with errors.Is. Order matters: the
// first match wins.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrTooManyIngests, msgBusy},
	{ErrTooManyLines, msgTooManyLines},
	{ErrEmptyName, msgEmptyName},
	{ErrEmptyTemplate, msgEmptyTemplate},
	{ErrTemplateNotFound, msgTemplateNotFound},
	{ErrConfigNotFound, msgConfigNotFound},
	{ErrNotOwner, msgNotOwner},
	{ErrInvalidOwner, msgInvalidOwner},
	{ErrEmptyConfigName, msgEmptyConfigName},
	{store.ErrDuplicateParam, msgDuplicateParam},
	{ErrInvalidRequest, msgInvalidRequest},
	{context.DeadlineExceeded, msgDeadline},
	{context.Canceled, msgCanceled},
}

// pgCodeMessages maps PostgreSQL SQLSTATE codes.
var pgCodeMessages = map[string]UserMessage{
	pgerrcode.UniqueViolation:      msgDuplicate,
	pgerrcode.ForeignKeyViolation:  msgForeignKey,
	pgerrcode.QueryCanceled:        msgDBTimeout,
	pgerrcode.DeadlockDetected:     msgConflict,
	pgerrcode.SerializationFailure: msgConflict,
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "duplicate key", msg: msgDuplicate},
	{pattern: "violates unique", msg: msgDuplicate},
	{pattern: "violates foreign key", msg: msgForeignKey},
	{pattern: "connection refused", msg: msgUnavailable},
	{pattern: "connection reset", msg: msgReset},
	{pattern: "request body too large", msg: msgBodyTooLarge},
	{pattern: "timeout", msg: msgDBTimeout},
	{pattern: "deadlock", msg: msgConflict},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Typed
// errors are matched through the wrap chain first, then the error text is
// searched for known patterns. If nothing matches, ERR000 is returned.
//
// Example:
//
//	err := &store.LineError{Line: 3, Err: &store.OrphanFieldError{Line: 3}}
//	msg := MapError(err)
//	// msg.Code == "ING002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		orphanRule  *store.OrphanRuleError
		orphanField *store.OrphanFieldError
		syntaxErr   *flatline.SyntaxError
		pgErr       *pgconn.PgError
		connErr     *store.ConnectionError
	)

	switch {
	case errors.As(err, &orphanRule):
		return msgOrphanRule, true
	case errors.As(err, &orphanField):
		return msgOrphanField, true
	case errors.As(err, &syntaxErr):
		return msgSyntax, true
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg, true
		}
	}

	if errors.As(err, &pgErr) {
		if msg, ok := pgCodeMessages[pgErr.Code]; ok {
			return msg, true
		}
	}
	if errors.As(err, &connErr) {
		return msgUnavailable, true
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
