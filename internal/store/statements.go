package store

import (
	"time"

	"github.com/huandu/go-sqlbuilder"
)

// Table names.
const (
	tableTemplates    = "templates"
	tableFeatureTypes = "feature_types"
	tableRules        = "rules"
	tableParamTypes   = "param_types"
	tableParams       = "params"
	tableConfigs      = "configs"
	tableConfigValues = "config_values"
)

// lockSymbolizerStmt serialises catalog resolution for one symbolizer key
// across concurrent transactions. The lock is released at commit/rollback.
const lockSymbolizerStmt = "SELECT pg_advisory_xact_lock(hashtext($1))"

var flavor = sqlbuilder.PostgreSQL

func insertReturningID(table string, cols []string, values ...any) (string, []any) {
	ib := flavor.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(cols...)
	ib.Values(values...)
	ib.Returning("id")
	return ib.Build()
}

func insertTemplateStmt(name, content string, now time.Time) (string, []any) {
	return insertReturningID(tableTemplates,
		[]string{"name", "content", "created_at", "updated_at"},
		name, content, now, now)
}

func insertFeatureTypeStmt(templateID int64, name, title string) (string, []any) {
	return insertReturningID(tableFeatureTypes,
		[]string{"template_id", "name", "title"},
		templateID, name, title)
}

func insertRuleStmt(featureTypeID int64, name, title, abstract string) (string, []any) {
	return insertReturningID(tableRules,
		[]string{"feature_type_id", "name", "title", "abstract"},
		featureTypeID, name, title, abstract)
}

func insertParamTypeStmt(name, symbolizer string) (string, []any) {
	return insertReturningID(tableParamTypes,
		[]string{"name", "symbolizer"},
		name, symbolizer)
}

func insertParamStmt(ruleID int64, offset int, paramTypeID int64, def string) (string, []any) {
	return insertReturningID(tableParams,
		[]string{"rule_id", "template_offset", "param_type_id", "default_value"},
		ruleID, offset, paramTypeID, def)
}

func insertConfigStmt(c NewConfig, now time.Time) (string, []any) {
	return insertReturningID(tableConfigs,
		[]string{"template_id", "uuid", "name", "output_path", "created_at", "updated_at"},
		c.TemplateID, c.Owner.String(), c.Name, c.OutputPath, now, now)
}

func insertConfigValueStmt(configID, paramID int64, value string) (string, []any) {
	ib := flavor.NewInsertBuilder()
	ib.InsertInto(tableConfigValues)
	ib.Cols("config_id", "param_id", "value")
	ib.Values(configID, paramID, value)
	return ib.Build()
}

func deleteConfigValuesStmt(configID int64) (string, []any) {
	db := flavor.NewDeleteBuilder()
	db.DeleteFrom(tableConfigValues)
	db.Where(db.Equal("config_id", configID))
	return db.Build()
}

func touchConfigStmt(configID int64, now time.Time) (string, []any) {
	ub := flavor.NewUpdateBuilder()
	ub.Update(tableConfigs)
	ub.Set(ub.Assign("updated_at", now))
	ub.Where(ub.Equal("id", configID))
	return ub.Build()
}

// oldestParamTypeStmt picks the lowest id when concurrent ingests have left
// duplicate keys behind, so every resolver converges on the same row.
func oldestParamTypeStmt(symbolizer string) (string, []any) {
	sb := flavor.NewSelectBuilder()
	sb.Select("id")
	sb.From(tableParamTypes)
	sb.Where(sb.Equal("symbolizer", symbolizer))
	sb.OrderBy("id").Asc()
	sb.Limit(1)
	return sb.Build()
}

var (
	templateCols         = []string{"id", "name", "created_at", "updated_at"}
	templateColsWithBody = []string{"id", "name", "content", "created_at", "updated_at"}
	featureTypeCols      = []string{"id", "template_id", "name", "title"}
	ruleCols             = []string{"id", "feature_type_id", "name", "title", "abstract"}
	paramCols            = []string{"id", "rule_id", "template_offset", "param_type_id", "default_value"}
	paramTypeCols        = []string{"id", "name", "symbolizer"}
	configCols           = []string{"id", "template_id", "uuid::text", "name", "output_path", "created_at", "updated_at"}
	configValueCols      = []string{"param_id", "value"}
)

func selectTemplatesStmt(withContent bool, id int64) (string, []any) {
	cols := templateCols
	if withContent {
		cols = templateColsWithBody
	}
	sb := flavor.NewSelectBuilder()
	sb.Select(cols...)
	sb.From(tableTemplates)
	if id > 0 {
		sb.Where(sb.Equal("id", id))
	}
	sb.OrderBy("id").Asc()
	return sb.Build()
}

func selectChildrenStmt(table string, cols []string, parentCol string, parentID int64) (string, []any) {
	sb := flavor.NewSelectBuilder()
	sb.Select(cols...)
	sb.From(table)
	sb.Where(sb.Equal(parentCol, parentID))
	sb.OrderBy("id").Asc()
	return sb.Build()
}

func selectFeatureTypesStmt(templateID int64) (string, []any) {
	return selectChildrenStmt(tableFeatureTypes, featureTypeCols, "template_id", templateID)
}

func selectRulesStmt(featureTypeID int64) (string, []any) {
	return selectChildrenStmt(tableRules, ruleCols, "feature_type_id", featureTypeID)
}

func selectParamsStmt(ruleID int64) (string, []any) {
	return selectChildrenStmt(tableParams, paramCols, "rule_id", ruleID)
}

func selectParamTypeStmt(id int64) (string, []any) {
	return selectChildrenStmt(tableParamTypes, paramTypeCols, "id", id)
}

func selectConfigValuesStmt(configID int64) (string, []any) {
	return selectChildrenStmt(tableConfigValues, configValueCols, "config_id", configID)
}

func selectConfigStmt(configID int64) (string, []any) {
	return selectChildrenStmt(tableConfigs, configCols, "id", configID)
}

func selectConfigOwnerStmt(configID int64) (string, []any) {
	sb := flavor.NewSelectBuilder()
	sb.Select("uuid::text")
	sb.From(tableConfigs)
	sb.Where(sb.Equal("id", configID))
	return sb.Build()
}
