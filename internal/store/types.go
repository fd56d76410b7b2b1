package store

import (
	"time"

	"github.com/google/uuid"
)

// Template is the root of an ingested hierarchy.
type Template struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content,omitempty"` // empty unless requested
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FeatureType groups rules within a template.
type FeatureType struct {
	ID         int64  `json:"id"`
	TemplateID int64  `json:"templateId"`
	Name       string `json:"name"`
	Title      string `json:"title"`
}

// Rule is a styling directive within a feature type.
type Rule struct {
	ID            int64  `json:"id"`
	FeatureTypeID int64  `json:"featureTypeId"`
	Name          string `json:"name"`
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
}

// ParamType is a shared catalog entry keyed by symbolizer.
type ParamType struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Symbolizer string `json:"symbolizer"`
}

// Param is one modifiable placeholder within a rule.
type Param struct {
	ID          int64  `json:"id"`
	RuleID      int64  `json:"ruleId"`
	Offset      int    `json:"offset"` // index into the template's placeholder sequence
	ParamTypeID int64  `json:"paramTypeId"`
	Default     string `json:"default"`
}

// Config is one user's instantiation of a template. UUID is the ownership
// token.
type Config struct {
	ID         int64     `json:"id"`
	TemplateID int64     `json:"templateId"`
	UUID       uuid.UUID `json:"uuid"`
	Name       string    `json:"name"`
	OutputPath string    `json:"outputPath"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ConfigValue is a customised value for one param of a config.
type ConfigValue struct {
	ParamID int64  `json:"paramId"`
	Value   string `json:"value"`
}

// NewConfig holds the fields the API layer supplies when creating a config.
type NewConfig struct {
	TemplateID int64
	Owner      uuid.UUID
	Name       string
	OutputPath string
}
