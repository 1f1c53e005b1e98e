package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/explain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/rules"
)

var tracer = otel.Tracer("kestrel-engine")

// ErrNoRepository is returned by lookups on a service without storage.
var ErrNoRepository = errors.New("no repository configured")

// ServiceConfig holds the collaborators of a Service. Every field is optional.
type ServiceConfig struct {
	Repository domain.Repository
	EventBus   domain.EventBus
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Builder    *explain.Builder

	// Base is the catalog content that definitions extend. Defaults to
	// the built-in catalog.
	Base *rules.Spec

	// RulesFile is an optional YAML file of CEL rule definitions.
	RulesFile string

	// LoadStoredDefinitions appends enabled definitions from the repository.
	LoadStoredDefinitions bool

	// BatchConcurrency caps concurrent evaluations in EvaluateBatch.
	BatchConcurrency int
}

// Service is the evaluation front door used by the API, the worker and
// the CLI. It publishes whole catalogs atomically: an evaluation always
// sees one consistent catalog, and reloads never mutate a published one.
type Service struct {
	catalog atomic.Pointer[rules.Catalog]

	base        rules.Spec
	rulesFile   string
	loadStored  bool
	concurrency int

	repo    domain.Repository
	bus     domain.EventBus
	metrics *metrics.Metrics
	logger  *slog.Logger
	builder *explain.Builder
}

// NewService creates a service and loads its first catalog.
func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	s := &Service{
		base:        rules.DefaultSpec(),
		rulesFile:   cfg.RulesFile,
		loadStored:  cfg.LoadStoredDefinitions && cfg.Repository != nil,
		concurrency: cfg.BatchConcurrency,
		repo:        cfg.Repository,
		bus:         cfg.EventBus,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		builder:     cfg.Builder,
	}
	if cfg.Base != nil {
		s.base = *cfg.Base
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.builder == nil {
		s.builder = explain.NewBuilder()
	}
	if s.concurrency <= 0 {
		s.concurrency = 8
	}

	if _, err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Catalog returns the active catalog.
func (s *Service) Catalog() *rules.Catalog {
	return s.catalog.Load()
}

// Definitions gathers the rule definitions that extend the base catalog:
// the rules file first, then stored definitions.
func (s *Service) Definitions(ctx context.Context) ([]*domain.RuleDefinition, error) {
	defs, err := s.fileDefinitions()
	if err != nil {
		return nil, err
	}
	stored, err := s.storedDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	return append(defs, stored...), nil
}

func (s *Service) fileDefinitions() ([]*domain.RuleDefinition, error) {
	if s.rulesFile == "" {
		return nil, nil
	}
	return rules.LoadDefinitionsFile(s.rulesFile)
}

func (s *Service) storedDefinitions(ctx context.Context) ([]*domain.RuleDefinition, error) {
	if !s.loadStored {
		return nil, nil
	}
	stored, err := s.repo.ListRuleDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rule definitions: %w", err)
	}
	return stored, nil
}

// Reload rebuilds the catalog from the base and the current definitions
// and swaps it in. On failure the active catalog is left untouched.
func (s *Service) Reload(ctx context.Context) (*rules.Catalog, error) {
	defs, err := s.Definitions(ctx)
	if err == nil {
		var catalog *rules.Catalog
		catalog, err = rules.LoadCatalog(s.base, defs)
		if err == nil {
			s.catalog.Store(catalog)
			s.metrics.RecordReload(catalog.Len(), nil)
			s.logger.Info("rule catalog loaded",
				"version", catalog.Version(),
				"rules_count", catalog.Len(),
				"definitions", len(defs),
			)
			s.publish(ctx, domain.TopicCatalogReloaded, map[string]any{
				"version": catalog.Version(),
				"rules":   catalog.Len(),
			})
			return catalog, nil
		}
	}

	s.metrics.RecordReload(0, err)
	s.logger.Error("rule catalog reload failed", "error", err)
	return nil, err
}

// ValidateDefinition compiles a definition and builds the catalog it
// would produce once stored, so a definition that would break the next
// reload is rejected before it is saved. Reusing the id of a stored
// definition replaces it; reusing a built-in or rules-file id is an error.
func (s *Service) ValidateDefinition(ctx context.Context, def *domain.RuleDefinition) error {
	compiler, err := rules.NewCompiler(s.base.Schema)
	if err != nil {
		return err
	}
	if err := compiler.Validate(def); err != nil {
		return err
	}
	for _, r := range s.base.Rules {
		if r.ID == def.ID {
			return fmt.Errorf("rule %s is a built-in rule and cannot be redefined", def.ID)
		}
	}

	fromFile, err := s.fileDefinitions()
	if err != nil {
		return err
	}
	for _, d := range fromFile {
		if d.ID == def.ID {
			return fmt.Errorf("rule %s is defined in the rules file and cannot be redefined", def.ID)
		}
	}
	stored, err := s.storedDefinitions(ctx)
	if err != nil {
		return err
	}

	defs := make([]*domain.RuleDefinition, 0, len(fromFile)+len(stored)+1)
	defs = append(defs, fromFile...)
	for _, d := range stored {
		if d.ID != def.ID {
			defs = append(defs, d)
		}
	}
	// Checked as enabled so a disabled definition cannot be parked on an id
	// that would collide once it is switched on.
	candidate := *def
	candidate.Enabled = true
	defs = append(defs, &candidate)

	if _, err := rules.LoadCatalog(s.base, defs); err != nil {
		return err
	}
	return nil
}

// Evaluate validates and evaluates one supplier, then records the result
// in the audit log and publishes it. Storage and bus failures are logged,
// never turned into evaluation failures.
func (s *Service) Evaluate(ctx context.Context, req domain.SupplierRequest) (*domain.EvaluationRecord, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "engine.Evaluate",
		trace.WithAttributes(attribute.String("supplier.id", req.SupplierID)),
	)
	defer span.End()

	catalog := s.Catalog()
	result, err := EvaluateSupplier(req.Indicators, catalog,
		WithBuilder(s.builder),
		WithEvalOptions(
			rules.WithLogger(s.logger),
			rules.WithFailureHook(s.metrics.RecordRuleFailure),
		),
	)
	if err != nil {
		s.metrics.IncrementValidationFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		s.logger.Debug("supplier rejected", "supplier_id", req.SupplierID, "error", err)
		return nil, err
	}

	s.metrics.ObserveEvaluation(start, result)
	span.SetAttributes(
		attribute.String("evaluation.tier", string(result.FinalTier)),
		attribute.Int("evaluation.score", result.Score),
		attribute.Int("evaluation.activations", len(result.Activations)),
	)

	rec := &domain.EvaluationRecord{
		ID:           uuid.New().String(),
		SupplierID:   req.SupplierID,
		SupplierName: req.Name,
		Indicators:   req.Indicators,
		Result:       result,
		DurationMs:   time.Since(start).Milliseconds(),
		CreatedAt:    result.GeneratedAt,
	}
	if sc := span.SpanContext(); sc.TraceID().IsValid() {
		rec.TraceID = sc.TraceID().String()
	}

	if s.repo != nil {
		if err := s.repo.SaveEvaluation(ctx, rec); err != nil {
			s.logger.Error("failed to save evaluation", "evaluation_id", rec.ID, "error", err)
		}
	}

	s.publish(ctx, domain.TopicEvaluationCompleted, rec)
	if result.FinalTier.Rank() >= domain.TierHigh.Rank() {
		s.publish(ctx, domain.TopicAlert, rec)
	}

	s.logger.Info("supplier evaluated",
		"evaluation_id", rec.ID,
		"supplier_id", req.SupplierID,
		"tier", result.FinalTier,
		"score", result.Score,
		"decided_by", result.DecidedBy,
		"activations", len(result.Activations),
		"duration_ms", rec.DurationMs,
	)

	return rec, nil
}

// BatchItem is the outcome of one supplier in a batch.
type BatchItem struct {
	Index  int                      `json:"index"`
	Record *domain.EvaluationRecord `json:"record,omitempty"`
	Err    error                    `json:"-"`
}

// EvaluateBatch evaluates suppliers concurrently. Per-item failures are
// reported in the item; the batch fails only if ctx is cancelled.
func (s *Service) EvaluateBatch(ctx context.Context, reqs []domain.SupplierRequest) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := s.Evaluate(gctx, req)
			items[i] = BatchItem{Index: i, Record: rec, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns an audited evaluation.
func (s *Service) Get(ctx context.Context, id string) (*domain.EvaluationRecord, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.GetEvaluation(ctx, id)
}

// History returns the audited evaluations of one supplier, newest first.
func (s *Service) History(ctx context.Context, supplierID string, limit int) ([]*domain.EvaluationRecord, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	return s.repo.ListEvaluationsBySupplier(ctx, supplierID, limit)
}

// Report renders an audited evaluation as Markdown.
func (s *Service) Report(rec *domain.EvaluationRecord) string {
	return explain.Markdown(rec.Result, explain.ReportMeta{
		SupplierID:   rec.SupplierID,
		SupplierName: rec.SupplierName,
		EvaluationID: rec.ID,
	})
}

func (s *Service) publish(ctx context.Context, topic string, v any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode event", "topic", topic, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, topic, payload); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
