// Package extraction routes uploaded documents through classification to the
// schema lifecycle: extract against an active schema, hold for review, or
// trigger generation for a lineage nobody has seen before.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"docextract/internal/docai"
	extmetrics "docextract/internal/extraction/metrics"
	"docextract/internal/schema/models"
	"docextract/pkg/domerr"
	"docextract/pkg/sentinel"
)

// SchemaReader is the read-only store surface routing needs.
type SchemaReader interface {
	FindActive(ctx context.Context, lineage models.Lineage) (*models.Record, error)
	FindInReview(ctx context.Context, lineage models.Lineage) (*models.Record, error)
	FindAll(ctx context.Context) ([]*models.Record, error)
}

// Lifecycle persists a generated schema definition as a new IN_REVIEW record.
type Lifecycle interface {
	Generate(ctx context.Context, lineage models.Lineage, def models.Definition) (*models.Record, error)
}

// Outcome of routing a document upload.
type Outcome string

const (
	OutcomeExtracted       Outcome = "extracted"
	OutcomePendingReview   Outcome = "pending_review"
	OutcomeSchemaGenerated Outcome = "schema_generated"
	OutcomeUncertain       Outcome = "classification_uncertain"
)

// Result carries the routing decision and whatever the decision produced.
type Result struct {
	Outcome        Outcome
	Classification *docai.Classification
	Record         *models.Record // nil for OutcomeUncertain
	Extracted      map[string]any // set only for OutcomeExtracted
}

// Config bounds the collaborator calls and the routing decision.
type Config struct {
	ConfidenceThreshold float64
	ClassifyTimeout     time.Duration
	GenerateTimeout     time.Duration
	ExtractTimeout      time.Duration
}

func (c *Config) applyDefaults() {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.8
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = 240 * time.Second
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 240 * time.Second
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 120 * time.Second
	}
}

// Service is the extraction router.
type Service struct {
	classifier docai.Classifier
	generator  docai.SchemaGenerator
	extractor  docai.Extractor
	store      SchemaReader
	lifecycle  Lifecycle
	cfg        Config
	cache      *RedisCache
	logger     *slog.Logger
	metrics    *extmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *extmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCache installs the active-schema routing cache.
func WithCache(cache *RedisCache) Option {
	return func(s *Service) { s.cache = cache }
}

func New(classifier docai.Classifier, generator docai.SchemaGenerator, extractor docai.Extractor,
	store SchemaReader, lifecycle Lifecycle, cfg Config, opts ...Option) *Service {
	cfg.applyDefaults()
	s := &Service{
		classifier: classifier,
		generator:  generator,
		extractor:  extractor,
		store:      store,
		lifecycle:  lifecycle,
		cfg:        cfg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process classifies the uploaded documents and routes them. Below the
// confidence threshold it returns immediately with the classification and
// alternatives; no store lookup happens on that path.
func (s *Service) Process(ctx context.Context, docs []docai.Document) (*Result, error) {
	if len(docs) == 0 {
		return nil, domerr.New(domerr.CodeBadRequest, "no documents provided")
	}
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveDuration(time.Since(start))
		}
	}()

	classification, err := s.classify(ctx, docs)
	if err != nil {
		return nil, err
	}

	if classification.Confidence < s.cfg.ConfidenceThreshold {
		s.logger.Info("classification below threshold",
			"document_type", classification.DocumentType,
			"confidence", classification.Confidence,
			"threshold", s.cfg.ConfidenceThreshold,
		)
		return s.decided(&Result{Outcome: OutcomeUncertain, Classification: classification}), nil
	}

	if err := s.reconcileDocumentType(ctx, classification); err != nil {
		return nil, err
	}
	return s.route(ctx, docs, classification)
}

// route walks the decision tree for a confident classification.
func (s *Service) route(ctx context.Context, docs []docai.Document, classification *docai.Classification) (*Result, error) {
	lineage := models.Lineage{DocumentType: classification.DocumentType, Country: classification.Country}

	active, inReview, err := s.lookup(ctx, lineage)
	if err != nil {
		return nil, domerr.Wrap(err, domerr.CodeInternal, "schema lookup failed")
	}

	switch {
	case active != nil:
		values, err := s.extract(ctx, docs, active.Schema)
		if err != nil {
			return nil, err
		}
		s.logger.Info("documents extracted",
			"lineage", lineage.String(),
			"schema_id", active.ID,
			"schema_version", active.Version,
			"fields", len(values),
		)
		return s.decided(&Result{
			Outcome:        OutcomeExtracted,
			Classification: classification,
			Record:         active,
			Extracted:      values,
		}), nil

	case inReview != nil:
		// Extraction is withheld until a reviewer approves; returning the
		// pending record also stops a second upload from generating a
		// divergent schema for the same lineage.
		s.logger.Info("schema pending review", "lineage", lineage.String(), "schema_id", inReview.ID)
		return s.decided(&Result{
			Outcome:        OutcomePendingReview,
			Classification: classification,
			Record:         inReview,
		}), nil

	default:
		record, err := s.generateSchema(ctx, docs, lineage)
		if err != nil {
			return nil, err
		}
		s.logger.Info("schema generated for new lineage",
			"lineage", lineage.String(),
			"schema_id", record.ID,
			"fields", len(record.Schema),
		)
		return s.decided(&Result{
			Outcome:        OutcomeSchemaGenerated,
			Classification: classification,
			Record:         record,
		}), nil
	}
}

// lookup fetches ACTIVE and IN_REVIEW for the lineage concurrently. A cached
// ACTIVE record short-circuits both reads.
func (s *Service) lookup(ctx context.Context, lineage models.Lineage) (active, inReview *models.Record, err error) {
	if s.cache != nil {
		if record, ok := s.cache.GetActive(ctx, lineage); ok {
			if s.metrics != nil {
				s.metrics.IncrementCacheHit()
			}
			return record, nil, nil
		}
		if s.metrics != nil {
			s.metrics.IncrementCacheMiss()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record, err := s.store.FindActive(gctx, lineage)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		active = record
		return err
	})
	g.Go(func() error {
		record, err := s.store.FindInReview(gctx, lineage)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		inReview = record
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if active != nil && s.cache != nil {
		s.cache.SetActive(ctx, active)
	}
	return active, inReview, nil
}

// reconcileDocumentType snaps a near-miss classified type onto an existing
// lineage's type for the same country, so "drivers_licence" does not fork a
// second lineage next to "drivers_license".
func (s *Service) reconcileDocumentType(ctx context.Context, classification *docai.Classification) error {
	records, err := s.store.FindAll(ctx)
	if err != nil {
		return domerr.Wrap(err, domerr.CodeInternal, "schema lookup failed")
	}
	seen := make(map[string]struct{})
	var existing []string
	for _, record := range records {
		if record.Country != classification.Country {
			continue
		}
		if _, ok := seen[record.DocumentType]; ok {
			continue
		}
		seen[record.DocumentType] = struct{}{}
		existing = append(existing, record.DocumentType)
	}
	if matched, ok := docai.BestMatch(classification.DocumentType, existing, 0.7); ok && matched != classification.DocumentType {
		s.logger.Info("document type reconciled",
			"classified", classification.DocumentType,
			"matched", matched,
			"country", classification.Country,
		)
		classification.DocumentType = matched
	}
	return nil
}

func (s *Service) classify(ctx context.Context, docs []docai.Document) (*docai.Classification, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.ClassifyTimeout)
	defer cancel()
	classification, err := s.classifier.Classify(cctx, docs)
	if err != nil {
		return nil, collaboratorError(err, domerr.CodeClassificationFailed, "classification failed")
	}
	return classification, nil
}

func (s *Service) generateSchema(ctx context.Context, docs []docai.Document, lineage models.Lineage) (*models.Record, error) {
	gctx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()
	def, err := s.generator.GenerateSchema(gctx, docs, lineage.DocumentType, lineage.Country)
	if err != nil {
		return nil, collaboratorError(err, domerr.CodeGenerationFailed, "schema generation failed")
	}
	// Lifecycle errors already carry domain codes; a racing upload for the
	// same lineage surfaces as Conflict here.
	return s.lifecycle.Generate(ctx, lineage, def)
}

func (s *Service) extract(ctx context.Context, docs []docai.Document, def models.Definition) (map[string]any, error) {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()
	values, err := s.extractor.Extract(ectx, docs, def)
	if err != nil {
		return nil, collaboratorError(err, domerr.CodeExtractionFailed, "extraction failed")
	}
	return values, nil
}

func (s *Service) decided(r *Result) *Result {
	if s.metrics != nil {
		s.metrics.IncrementDecision(string(r.Outcome))
	}
	return r
}

// collaboratorError maps a failed model call to the domain taxonomy. A
// deadline expiry is Timeout, never conflated with the collaborator's own
// failure mode.
func collaboratorError(err error, code domerr.Code, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domerr.Wrap(err, domerr.CodeTimeout, message+": deadline exceeded")
	}
	return domerr.Wrap(err, code, message)
}
