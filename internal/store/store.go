package store

import (
	"context"
	"time"

	"github.com/JonMunkholm/sldstore/internal/flatline"
	"github.com/google/uuid"
)

// Store runs each public operation in its own unit of work.
// It holds no mutable state and is safe for concurrent use; concurrency
// control is left to the database's transaction isolation.
type Store struct {
	db       TxStarter
	loader   *Loader
	replacer *Replacer
}

// Options configures a Store.
type Options struct {
	CatalogLocking CatalogLocking
}

// New returns a Store over db.
func New(db TxStarter, opts Options) *Store {
	return &Store{
		db:       db,
		loader:   NewLoader(NewCatalog(opts.CatalogLocking)),
		replacer: NewReplacer(),
	}
}

// IngestTemplate stores a template and its flat hierarchy atomically and
// returns the template id. On any failure nothing from the call persists.
func (s *Store) IngestTemplate(ctx context.Context, content, name string, lines []flatline.Line) (int64, error) {
	var templateID int64
	err := Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		id, err := s.loader.Load(ctx, uow, content, name, lines)
		templateID = id
		return err
	})
	if err != nil {
		return 0, err
	}
	return templateID, nil
}

// ReplaceConfigValues atomically makes values the complete value set of
// configID.
func (s *Store) ReplaceConfigValues(ctx context.Context, configID int64, values []ConfigValue) error {
	if err := checkDistinctParams(values); err != nil {
		return err
	}
	return Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		return s.replacer.Replace(ctx, uow, configID, values)
	})
}

// GetTemplate returns one template.
func (s *Store) GetTemplate(ctx context.Context, id int64, withContent bool) (Template, error) {
	var t Template
	err := Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		var err error
		t, err = GetTemplate(ctx, uow, id, withContent)
		return err
	})
	return t, err
}

// ListTemplates returns every template.
func (s *Store) ListTemplates(ctx context.Context, withContent bool) ([]Template, error) {
	var out []Template
	err := Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		var err error
		out, err = ListTemplates(ctx, uow, withContent)
		return err
	})
	return out, err
}

// GetFeatureTypes returns the feature types of a template.
func (s *Store) GetFeatureTypes(ctx context.Context, templateID int64) ([]FeatureType, error) {
	var out []FeatureType
	err := Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		var err error
		out, err = GetFeatureTypes(ctx, uow, templateID)
		return err
	})
	return out, err
}

// GetConfigOwner returns the ownership token of a config; found is false
// when the config does not exist.
func (s *Store) GetConfigOwner(ctx context.Context, configID int64) (uuid.UUID, bool, error) {
	var (
		owner uuid.UUID
		found bool
	)
	err := Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		var err error
		owner, found, err = GetConfigOwner(ctx, uow, configID)
		return err
	})
	return owner, found, err
}

// GetConfigValues returns the stored values of a config.
func (s *Store) GetConfigValues(ctx context.Context, configID int64) ([]ConfigValue, error) {
	var out []ConfigValue
	err := Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		var err error
		out, err = GetConfigValues(ctx, uow, configID)
		return err
	})
	return out, err
}

// CreateConfig stores a new config and returns it.
func (s *Store) CreateConfig(ctx context.Context, c NewConfig) (Config, error) {
	var out Config
	err := Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		if _, err := GetTemplate(ctx, uow, c.TemplateID, false); err != nil {
			return err
		}
		id, err := CreateConfig(ctx, uow, c, time.Now().UTC())
		if err != nil {
			return err
		}
		out, err = GetConfig(ctx, uow, id)
		return err
	})
	return out, err
}

// TemplateTree is a template with its full hierarchy and the catalog
// entries its params reference.
type TemplateTree struct {
	Template     Template            `json:"template"`
	FeatureTypes []FeatureTypeNode   `json:"featureTypes"`
	ParamTypes   map[int64]ParamType `json:"paramTypes"`
}

// FeatureTypeNode is a feature type with its rules.
type FeatureTypeNode struct {
	FeatureType
	Rules []RuleNode `json:"rules"`
}

// RuleNode is a rule with its params.
type RuleNode struct {
	Rule
	Params []Param `json:"params"`
}

// GetTemplateTree reads a template's hierarchy in one consistent snapshot.
func (s *Store) GetTemplateTree(ctx context.Context, templateID int64) (TemplateTree, error) {
	tree := TemplateTree{ParamTypes: make(map[int64]ParamType)}
	err := Run(ctx, s.db, func(ctx context.Context, uow *UnitOfWork) error {
		t, err := GetTemplate(ctx, uow, templateID, false)
		if err != nil {
			return err
		}
		tree.Template = t

		fts, err := GetFeatureTypes(ctx, uow, templateID)
		if err != nil {
			return err
		}
		for _, ft := range fts {
			ftNode := FeatureTypeNode{FeatureType: ft, Rules: []RuleNode{}}

			rules, err := GetRules(ctx, uow, ft.ID)
			if err != nil {
				return err
			}
			for _, r := range rules {
				params, err := GetParams(ctx, uow, r.ID)
				if err != nil {
					return err
				}
				for _, p := range params {
					if _, ok := tree.ParamTypes[p.ParamTypeID]; ok {
						continue
					}
					pt, err := GetParamType(ctx, uow, p.ParamTypeID)
					if err != nil {
						return err
					}
					tree.ParamTypes[pt.ID] = pt
				}
				ftNode.Rules = append(ftNode.Rules, RuleNode{Rule: r, Params: params})
			}
			tree.FeatureTypes = append(tree.FeatureTypes, ftNode)
		}
		return nil
	})
	if err != nil {
		return TemplateTree{}, err
	}
	if tree.FeatureTypes == nil {
		tree.FeatureTypes = []FeatureTypeNode{}
	}
	return tree, nil
}
