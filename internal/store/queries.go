package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func scanTemplate(withContent bool) pgx.RowToFunc[Template] {
	return func(row pgx.CollectableRow) (Template, error) {
		var t Template
		if withContent {
			err := row.Scan(&t.ID, &t.Name, &t.Content, &t.CreatedAt, &t.UpdatedAt)
			return t, err
		}
		err := row.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
		return t, err
	}
}

func scanFeatureType(row pgx.CollectableRow) (FeatureType, error) {
	var f FeatureType
	err := row.Scan(&f.ID, &f.TemplateID, &f.Name, &f.Title)
	return f, err
}

func scanRule(row pgx.CollectableRow) (Rule, error) {
	var r Rule
	err := row.Scan(&r.ID, &r.FeatureTypeID, &r.Name, &r.Title, &r.Abstract)
	return r, err
}

func scanParam(row pgx.CollectableRow) (Param, error) {
	var p Param
	err := row.Scan(&p.ID, &p.RuleID, &p.Offset, &p.ParamTypeID, &p.Default)
	return p, err
}

func scanConfigValue(row pgx.CollectableRow) (ConfigValue, error) {
	var v ConfigValue
	err := row.Scan(&v.ParamID, &v.Value)
	return v, err
}

// GetTemplate returns one template. Returns ErrNotFound if id is unknown.
func GetTemplate(ctx context.Context, uow *UnitOfWork, id int64, withContent bool) (Template, error) {
	if id <= 0 {
		return Template{}, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	stmt, args := selectTemplatesStmt(withContent, id)
	rows, err := QueryMany(ctx, uow, stmt, args, scanTemplate(withContent))
	if err != nil {
		return Template{}, err
	}
	if len(rows) == 0 {
		return Template{}, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	return rows[0], nil
}

// ListTemplates returns every template ordered by id.
func ListTemplates(ctx context.Context, uow *UnitOfWork, withContent bool) ([]Template, error) {
	stmt, args := selectTemplatesStmt(withContent, 0)
	return QueryMany(ctx, uow, stmt, args, scanTemplate(withContent))
}

// GetFeatureTypes returns the feature types of a template in insertion order.
func GetFeatureTypes(ctx context.Context, uow *UnitOfWork, templateID int64) ([]FeatureType, error) {
	stmt, args := selectFeatureTypesStmt(templateID)
	return QueryMany(ctx, uow, stmt, args, scanFeatureType)
}

// GetRules returns the rules of a feature type in insertion order.
func GetRules(ctx context.Context, uow *UnitOfWork, featureTypeID int64) ([]Rule, error) {
	stmt, args := selectRulesStmt(featureTypeID)
	return QueryMany(ctx, uow, stmt, args, scanRule)
}

// GetParams returns the params of a rule in insertion order.
func GetParams(ctx context.Context, uow *UnitOfWork, ruleID int64) ([]Param, error) {
	stmt, args := selectParamsStmt(ruleID)
	return QueryMany(ctx, uow, stmt, args, scanParam)
}

// GetParamType returns one catalog entry.
func GetParamType(ctx context.Context, uow *UnitOfWork, id int64) (ParamType, error) {
	var pt ParamType
	stmt, args := selectParamTypeStmt(id)
	err := uow.QueryOne(ctx, stmt, args, &pt.ID, &pt.Name, &pt.Symbolizer)
	return pt, err
}

// GetConfigOwner returns the ownership token of a config. found is false,
// with a nil error, when the config does not exist.
func GetConfigOwner(ctx context.Context, uow *UnitOfWork, configID int64) (owner uuid.UUID, found bool, err error) {
	var raw string
	stmt, args := selectConfigOwnerStmt(configID)
	err = uow.QueryOne(ctx, stmt, args, &raw)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}

	owner, err = uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("config %d has malformed owner: %w", configID, err)
	}
	return owner, true, nil
}

// GetConfig returns one config. Returns ErrNotFound if configID is unknown.
func GetConfig(ctx context.Context, uow *UnitOfWork, configID int64) (Config, error) {
	var (
		c     Config
		owner string
	)
	stmt, args := selectConfigStmt(configID)
	err := uow.QueryOne(ctx, stmt, args,
		&c.ID, &c.TemplateID, &owner, &c.Name, &c.OutputPath, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Config{}, err
	}
	if c.UUID, err = uuid.Parse(owner); err != nil {
		return Config{}, fmt.Errorf("config %d has malformed owner: %w", configID, err)
	}
	return c, nil
}

// GetConfigValues returns the stored values of a config in insertion order.
func GetConfigValues(ctx context.Context, uow *UnitOfWork, configID int64) ([]ConfigValue, error) {
	stmt, args := selectConfigValuesStmt(configID)
	return QueryMany(ctx, uow, stmt, args, scanConfigValue)
}

// CreateConfig inserts a config row and returns its id.
func CreateConfig(ctx context.Context, uow *UnitOfWork, c NewConfig, now time.Time) (int64, error) {
	var id int64
	stmt, args := insertConfigStmt(c, now)
	if err := uow.QueryOne(ctx, stmt, args, &id); err != nil {
		return 0, err
	}
	return id, nil
}
