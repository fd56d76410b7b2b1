package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sldstore/internal/flatline"
	"github.com/JonMunkholm/sldstore/internal/logging"
	"github.com/JonMunkholm/sldstore/internal/store"
)

var (
	ErrEmptyName        = errors.New("template name is required")
	ErrEmptyTemplate    = errors.New("flat template has no lines")
	ErrTooManyLines     = errors.New("flat template has too many lines")
	ErrTemplateNotFound = errors.New("template not found")
	ErrConfigNotFound   = errors.New("config not found")
	ErrNotOwner         = errors.New("owner token does not match config")
	ErrInvalidOwner     = errors.New("owner token is missing or malformed")
	ErrEmptyConfigName  = errors.New("config name is required")
	ErrInvalidRequest   = errors.New("invalid request")
)

// Default service limits, used when ServiceConfig leaves a field at zero.
const (
	DefaultIngestTimeout = 2 * time.Minute
	DefaultMaxLines      = 100000
)

// ServiceConfig holds the limits applied around store calls.
type ServiceConfig struct {
	MaxConcurrentIngests int
	MaxWaitTime          time.Duration
	IngestTimeout        time.Duration
	MaxLines             int
}

// Service is the business API over the store. Transport layers call it and
// never touch the store directly.
type Service struct {
	store         *store.Store
	limiter       *IngestLimiter
	ingestTimeout time.Duration
	maxLines      int
	newOwner      func() uuid.UUID
}

// NewService returns a Service over st.
func NewService(st *store.Store, cfg ServiceConfig) *Service {
	if cfg.IngestTimeout <= 0 {
		cfg.IngestTimeout = DefaultIngestTimeout
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = DefaultMaxLines
	}

	return &Service{
		store:         st,
		limiter:       NewIngestLimiter(cfg.MaxConcurrentIngests, cfg.MaxWaitTime),
		ingestTimeout: cfg.IngestTimeout,
		maxLines:      cfg.MaxLines,
		newOwner:      uuid.New,
	}
}

// IngestTimeout returns the per-ingest transaction timeout.
func (s *Service) IngestTimeout() time.Duration {
	return s.ingestTimeout
}

// IngestStatus reports ingest slot usage.
func (s *Service) IngestStatus() IngestLimiterStatus {
	return s.limiter.Status()
}

// WaitForIngests blocks until no ingest is running or ctx ends.
func (s *Service) WaitForIngests(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// IngestResult summarises a stored template.
type IngestResult struct {
	TemplateID   int64         `json:"templateId"`
	Name         string        `json:"name"`
	Lines        int           `json:"lines"`
	FeatureTypes int           `json:"featureTypes"`
	Rules        int           `json:"rules"`
	Params       int           `json:"params"`
	Duration     time.Duration `json:"durationNs"`
}

// IngestTemplate parses flat and stores the template with its hierarchy in
// one transaction. Validation errors are returned before a slot is taken.
func (s *Service) IngestTemplate(ctx context.Context, name, content, flat string) (IngestResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return IngestResult{}, ErrEmptyName
	}

	lines, err := flatline.ParseString(flat)
	if err != nil {
		return IngestResult{}, err
	}
	if len(lines) == 0 {
		return IngestResult{}, ErrEmptyTemplate
	}
	if len(lines) > s.maxLines {
		return IngestResult{}, fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyLines, len(lines), s.maxLines)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return IngestResult{}, err
	}
	defer s.limiter.Release()

	ingestCtx, cancel := context.WithTimeout(ctx, s.ingestTimeout)
	defer cancel()

	logger := logging.WithFields(ctx, "template", name, "lines", len(lines))
	start := time.Now()

	id, err := s.store.IngestTemplate(ingestCtx, content, name, lines)
	if err != nil {
		logger.Warn("ingest failed", "error", err, "code", MapError(err).Code)
		return IngestResult{}, err
	}

	result := IngestResult{
		TemplateID: id,
		Name:       name,
		Lines:      len(lines),
		Duration:   time.Since(start),
	}
	for _, l := range lines {
		switch l.Kind {
		case flatline.KindFeatureType:
			result.FeatureTypes++
		case flatline.KindRule:
			result.Rules++
		case flatline.KindField:
			result.Params++
		}
	}

	logger.Info("template ingested",
		"template_id", id,
		"feature_types", result.FeatureTypes,
		"rules", result.Rules,
		"params", result.Params,
		"duration", result.Duration,
	)
	return result, nil
}

// CreateConfig creates a config for a template under a fresh owner token.
// The returned Config carries the token; it is not retrievable later.
func (s *Service) CreateConfig(ctx context.Context, templateID int64, name, outputPath string) (store.Config, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Config{}, ErrEmptyConfigName
	}

	cfg, err := s.store.CreateConfig(ctx, store.NewConfig{
		TemplateID: templateID,
		Owner:      s.newOwner(),
		Name:       name,
		OutputPath: outputPath,
	})
	if errors.Is(err, store.ErrNotFound) {
		return store.Config{}, fmt.Errorf("template %d: %w", templateID, ErrTemplateNotFound)
	}
	if err != nil {
		return store.Config{}, err
	}

	logging.WithFields(ctx, "config_id", cfg.ID, "template_id", templateID).Info("config created")
	return cfg, nil
}

// authorize checks that owner is the token of configID.
func (s *Service) authorize(ctx context.Context, configID int64, owner uuid.UUID) error {
	if owner == uuid.Nil {
		return ErrInvalidOwner
	}

	stored, found, err := s.store.GetConfigOwner(ctx, configID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("config %d: %w", configID, ErrConfigNotFound)
	}
	if stored != owner {
		return fmt.Errorf("config %d: %w", configID, ErrNotOwner)
	}
	return nil
}

// ReplaceConfigValues makes values the complete value set of configID after
// checking ownership. On failure the previous set is kept.
func (s *Service) ReplaceConfigValues(ctx context.Context, configID int64, owner uuid.UUID, values []store.ConfigValue) error {
	if err := s.authorize(ctx, configID, owner); err != nil {
		return err
	}

	err := s.store.ReplaceConfigValues(ctx, configID, values)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("config %d: %w", configID, ErrConfigNotFound)
	}
	if err != nil {
		logging.WithFields(ctx, "config_id", configID).Warn("replace config values failed",
			"error", err, "code", MapError(err).Code)
		return err
	}

	logging.WithFields(ctx, "config_id", configID, "values", len(values)).Info("config values replaced")
	return nil
}

// GetConfigValues returns the stored values of configID after checking
// ownership.
func (s *Service) GetConfigValues(ctx context.Context, configID int64, owner uuid.UUID) ([]store.ConfigValue, error) {
	if err := s.authorize(ctx, configID, owner); err != nil {
		return nil, err
	}
	return s.store.GetConfigValues(ctx, configID)
}

// GetTemplate returns one template.
func (s *Service) GetTemplate(ctx context.Context, id int64, withContent bool) (store.Template, error) {
	t, err := s.store.GetTemplate(ctx, id, withContent)
	if errors.Is(err, store.ErrNotFound) {
		return store.Template{}, fmt.Errorf("template %d: %w", id, ErrTemplateNotFound)
	}
	return t, err
}

// ListTemplates returns every template ordered by id.
func (s *Service) ListTemplates(ctx context.Context, withContent bool) ([]store.Template, error) {
	return s.store.ListTemplates(ctx, withContent)
}

// GetFeatureTypes returns the feature types of an existing template.
func (s *Service) GetFeatureTypes(ctx context.Context, templateID int64) ([]store.FeatureType, error) {
	if _, err := s.GetTemplate(ctx, templateID, false); err != nil {
		return nil, err
	}
	return s.store.GetFeatureTypes(ctx, templateID)
}

// GetTemplateTree returns a template with its full hierarchy.
func (s *Service) GetTemplateTree(ctx context.Context, templateID int64) (store.TemplateTree, error) {
	tree, err := s.store.GetTemplateTree(ctx, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return store.TemplateTree{}, fmt.Errorf("template %d: %w", templateID, ErrTemplateNotFound)
	}
	return tree, err
}
