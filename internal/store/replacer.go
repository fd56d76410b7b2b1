package store

import (
	"context"
	"fmt"
	"time"
)

// Replacer writes the complete value set of a config.
type Replacer struct {
	now func() time.Time
}

// NewReplacer returns a config value replacer.
func NewReplacer() *Replacer {
	return &Replacer{now: time.Now}
}

// Replace deletes every stored value of configID and inserts values in
// order, inside uow. Returns ErrNotFound if the config does not exist.
// Failures on an individual value are wrapped in a *ValueError.
func (r *Replacer) Replace(ctx context.Context, uow *UnitOfWork, configID int64, values []ConfigValue) error {
	stmt, args := touchConfigStmt(configID, r.now().UTC())
	tag, err := uow.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("touch config %d: %w", configID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("config %d: %w", configID, ErrNotFound)
	}

	stmt, args = deleteConfigValuesStmt(configID)
	if _, err := uow.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("clear config %d values: %w", configID, err)
	}

	for _, v := range values {
		stmt, args := insertConfigValueStmt(configID, v.ParamID, v.Value)
		if _, err := uow.Exec(ctx, stmt, args...); err != nil {
			return &ValueError{ParamID: v.ParamID, Err: err}
		}
	}

	return nil
}

// checkDistinctParams rejects value sets naming a param twice.
func checkDistinctParams(values []ConfigValue) error {
	seen := make(map[int64]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v.ParamID]; dup {
			return &ValueError{ParamID: v.ParamID, Err: ErrDuplicateParam}
		}
		seen[v.ParamID] = struct{}{}
	}
	return nil
}
