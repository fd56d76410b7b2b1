package store

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/sldstore/internal/flatline"
)

// ScanState is the parent context carried across a single pass over flat
// lines. A zero id means "none seen yet".
type ScanState struct {
	TemplateID    int64
	FeatureTypeID int64
	RuleID        int64
}

// Parent returns the id a line of the given kind attaches to, or an orphan
// error when the required ancestor has not been inserted. lineNum is
// 1-based and only used for error reporting.
func (s ScanState) Parent(kind flatline.Kind, lineNum int) (int64, error) {
	switch kind {
	case flatline.KindFeatureType:
		return s.TemplateID, nil
	case flatline.KindRule:
		if s.FeatureTypeID == 0 {
			return 0, &OrphanRuleError{Line: lineNum}
		}
		return s.FeatureTypeID, nil
	case flatline.KindField:
		if s.RuleID == 0 {
			return 0, &OrphanFieldError{Line: lineNum}
		}
		return s.RuleID, nil
	default:
		return 0, fmt.Errorf("unknown line kind %q", kind)
	}
}

// Advance records a newly inserted row of the given kind as the current
// parent for following lines. The current rule survives a new feature type:
// a Field always attaches to the most recently inserted Rule.
func (s ScanState) Advance(kind flatline.Kind, id int64) ScanState {
	switch kind {
	case flatline.KindFeatureType:
		s.FeatureTypeID = id
	case flatline.KindRule:
		s.RuleID = id
	}
	return s
}

// Loader walks flat lines and inserts the template hierarchy.
type Loader struct {
	catalog *Catalog
	now     func() time.Time
}

// NewLoader returns a loader resolving param types through catalog.
func NewLoader(catalog *Catalog) *Loader {
	return &Loader{catalog: catalog, now: time.Now}
}

// Load inserts the template row and every line beneath it inside uow and
// returns the new template id. It does not commit; the caller's unit of
// work decides the outcome.
func (l *Loader) Load(ctx context.Context, uow *UnitOfWork, content, name string, lines []flatline.Line) (int64, error) {
	var templateID int64
	stmt, args := insertTemplateStmt(name, content, l.now().UTC())
	if err := uow.QueryOne(ctx, stmt, args, &templateID); err != nil {
		return 0, fmt.Errorf("insert template: %w", err)
	}

	state := ScanState{TemplateID: templateID}
	for i, line := range lines {
		next, err := l.Step(ctx, uow, state, i+1, line)
		if err != nil {
			return 0, &LineError{Line: i + 1, Kind: line.Kind, Err: err}
		}
		state = next
	}

	return templateID, nil
}

// Step inserts a single line under the parent recorded in state and returns
// the state for the next line.
func (l *Loader) Step(ctx context.Context, uow *UnitOfWork, state ScanState, lineNum int, line flatline.Line) (ScanState, error) {
	parentID, err := state.Parent(line.Kind, lineNum)
	if err != nil {
		return state, err
	}

	var id int64
	switch line.Kind {
	case flatline.KindFeatureType:
		stmt, args := insertFeatureTypeStmt(parentID, line.Name, line.Title)
		err = uow.QueryOne(ctx, stmt, args, &id)

	case flatline.KindRule:
		stmt, args := insertRuleStmt(parentID, line.Name, line.Title, line.Abstract)
		err = uow.QueryOne(ctx, stmt, args, &id)

	case flatline.KindField:
		var typeID int64
		typeID, err = l.catalog.ResolveType(ctx, uow, line.Symbolizer)
		if err != nil {
			return state, fmt.Errorf("resolve type %q: %w", line.Symbolizer, err)
		}
		stmt, args := insertParamStmt(parentID, line.Offset, typeID, line.Default)
		err = uow.QueryOne(ctx, stmt, args, &id)
	}
	if err != nil {
		return state, err
	}

	return state.Advance(line.Kind, id), nil
}
