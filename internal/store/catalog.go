package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CatalogLocking selects how ResolveType guards against concurrent
// transactions creating the same symbolizer key.
type CatalogLocking string

const (
	// LockingNone performs a plain select-then-insert. Concurrent ingests of
	// a new key may each create a row; later resolutions converge on the
	// oldest one.
	LockingNone CatalogLocking = "none"

	// LockingAdvisory takes a transaction-scoped advisory lock on the key
	// before the select, so at most one transaction creates it.
	LockingAdvisory CatalogLocking = "advisory"
)

// ParseCatalogLocking converts a config value to a CatalogLocking.
func ParseCatalogLocking(s string) (CatalogLocking, error) {
	switch CatalogLocking(strings.ToLower(strings.TrimSpace(s))) {
	case "", LockingNone:
		return LockingNone, nil
	case LockingAdvisory:
		return LockingAdvisory, nil
	default:
		return "", fmt.Errorf("unknown catalog locking mode %q", s)
	}
}

// Catalog resolves parameter types by symbolizer key with find-or-create
// semantics.
type Catalog struct {
	locking CatalogLocking
}

// NewCatalog returns a resolver using the given locking mode.
func NewCatalog(locking CatalogLocking) *Catalog {
	if locking == "" {
		locking = LockingNone
	}
	return &Catalog{locking: locking}
}

// ResolveType returns the id of the param_types row for symbolizer,
// inserting one with an empty display name if none exists. It runs inside
// the caller's unit of work, so a row it creates disappears on rollback.
func (c *Catalog) ResolveType(ctx context.Context, uow *UnitOfWork, symbolizer string) (int64, error) {
	if c.locking == LockingAdvisory {
		if _, err := uow.Exec(ctx, lockSymbolizerStmt, symbolizer); err != nil {
			return 0, err
		}
	}

	var id int64
	stmt, args := oldestParamTypeStmt(symbolizer)
	err := uow.QueryOne(ctx, stmt, args, &id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	stmt, args = insertParamTypeStmt("", symbolizer)
	if err := uow.QueryOne(ctx, stmt, args, &id); err != nil {
		return 0, err
	}
	return id, nil
}
