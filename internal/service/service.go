package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"receipt-schema-api/internal/cache"
	"receipt-schema-api/internal/codec"
	"receipt-schema-api/internal/database"
	"receipt-schema-api/internal/events"
	"receipt-schema-api/internal/features"
	"receipt-schema-api/internal/metrics"
	"receipt-schema-api/internal/models"
	"receipt-schema-api/internal/tracing"
	"receipt-schema-api/internal/validation"
)

// MaxBatchSize caps the number of documents per batch request.
const MaxBatchSize = 1000

var (
	ErrEmptyBatch    = errors.New("no receipts provided")
	ErrBatchTooLarge = fmt.Errorf("cannot validate more than %d receipts per request", MaxBatchSize)
)

// Options holds the collaborators of a Service. Cache, Events and Metrics
// may be nil.
type Options struct {
	DB       *database.DB
	Cache    cache.Cache
	CacheTTL time.Duration
	Events   *events.Manager
	Features *features.Manager
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Service validates receipt documents and records their outcomes.
type Service struct {
	db       *database.DB
	cache    cache.Cache
	cacheTTL time.Duration
	events   *events.Manager
	features *features.Manager
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new service instance and subscribes the audit log
// writer to validation events.
func NewService(opts Options) *Service {
	s := &Service{
		db:       opts.DB,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		events:   opts.Events,
		features: opts.Features,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if s.features == nil {
		s.features = features.NewManager()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}

	if s.events != nil && s.db != nil {
		s.events.Subscribe(events.EventReceiptAccepted, s.auditAccepted)
		s.events.Subscribe(events.EventReceiptRejected, s.auditRejected)
	}

	return s
}

// ValidateReceipt validates one raw JSON document. A contract violation is
// reported in the response with Valid=false; the returned error is reserved
// for malformed JSON (codec.ErrMalformed).
func (s *Service) ValidateReceipt(ctx context.Context, body []byte) (models.ValidateResponse, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "Service.ValidateReceipt")
	defer span.End()

	digest := Digest(body)
	span.SetAttributes(attribute.String("receipt.digest", digest))

	if resp, ok := s.cachedOutcome(ctx, digest, body); ok {
		span.SetAttributes(attribute.Bool("receipt.cached", true))
		return resp, nil
	}

	start := s.now()
	receipt, err := codec.ParseJSON(body)
	if s.metrics != nil {
		s.metrics.ValidationDuration.Observe(s.now().Sub(start).Seconds())
	}

	var resp models.ValidateResponse
	if err != nil {
		ve, ok := validation.IsValidationError(err)
		if !ok {
			return models.ValidateResponse{}, err
		}
		resp = s.rejected(ctx, digest, ve)
	} else {
		resp = s.accepted(ctx, digest, receipt)
	}

	span.SetAttributes(attribute.Bool("receipt.valid", resp.Valid))
	s.storeOutcome(ctx, digest, resp)

	return resp, nil
}

// ValidateBatch validates each document independently and returns the
// outcomes in submission order. Malformed documents are reported as
// rejections on field "receipt".
func (s *Service) ValidateBatch(ctx context.Context, docs []json.RawMessage) (models.BatchValidateResponse, error) {
	if len(docs) == 0 {
		return models.BatchValidateResponse{}, ErrEmptyBatch
	}
	if len(docs) > MaxBatchSize {
		return models.BatchValidateResponse{}, ErrBatchTooLarge
	}

	ctx, span := tracing.GetTracer().StartSpan(ctx, "Service.ValidateBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(docs)))

	out := models.BatchValidateResponse{
		Results: make([]models.ValidateResponse, 0, len(docs)),
	}
	for i, doc := range docs {
		resp, err := s.ValidateReceipt(ctx, doc)
		if err != nil {
			if !errors.Is(err, codec.ErrMalformed) {
				return models.BatchValidateResponse{}, fmt.Errorf("receipt at index %d: %w", i, err)
			}
			resp = models.ValidateResponse{
				Digest: Digest(doc),
				Error: &models.FieldError{
					Field:   "receipt",
					Kind:    string(validation.KindWrongType),
					Message: "must be a well-formed JSON object",
				},
			}
		}

		if resp.Valid {
			out.Accepted++
		} else {
			out.Rejected++
		}
		out.Results = append(out.Results, resp)
	}

	s.logger.Info("validated receipt batch",
		zap.Int("size", len(docs)),
		zap.Int("accepted", out.Accepted),
		zap.Int("rejected", out.Rejected),
	)

	return out, nil
}

// RecentAudits returns the newest audit entries.
func (s *Service) RecentAudits(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if s.db == nil {
		return []models.AuditEntry{}, nil
	}
	entries, err := s.db.ListAudits(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// AuditSummary counts recorded outcomes.
func (s *Service) AuditSummary(ctx context.Context) (models.AuditSummary, error) {
	if s.db == nil {
		return models.AuditSummary{}, nil
	}
	return s.db.SummarizeAudits(ctx)
}

// Digest identifies a document by the sha256 of its exact bytes.
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (s *Service) accepted(ctx context.Context, digest string, receipt models.Receipt) models.ValidateResponse {
	resp := models.ValidateResponse{
		Valid:   true,
		Digest:  digest,
		Receipt: &receipt,
	}

	resp.Warnings = s.warnings(receipt)

	if s.metrics != nil {
		s.metrics.ObserveAccepted()
	}
	s.logger.Debug("receipt accepted",
		zap.String("digest", digest),
		zap.String("receipt_id", receipt.ID),
		zap.Int("warnings", len(resp.Warnings)),
	)
	if s.events != nil && s.features.IsEnabled(features.FeatureEventHooksEnabled) {
		s.events.PublishReceiptAccepted(ctx, digest, receipt, resp.Warnings)
	}

	return resp
}

func (s *Service) rejected(ctx context.Context, digest string, ve *validation.ValidationError) models.ValidateResponse {
	fieldErr := models.FieldError{
		Field:   ve.Field,
		Kind:    string(ve.Kind),
		Message: ve.Message,
	}

	if s.metrics != nil {
		s.metrics.ObserveRejected(fieldErr.Kind)
	}
	s.logger.Debug("receipt rejected",
		zap.String("digest", digest),
		zap.String("field", ve.Field),
		zap.String("kind", string(ve.Kind)),
	)
	if s.events != nil && s.features.IsEnabled(features.FeatureEventHooksEnabled) {
		s.events.PublishReceiptRejected(ctx, digest, fieldErr)
	}

	return models.ValidateResponse{
		Digest: digest,
		Error:  &fieldErr,
	}
}

// warnings runs the consistency hints when the flag is on. Hints are
// recomputed on every request, cache hits included.
func (s *Service) warnings(receipt models.Receipt) []string {
	if !s.features.IsEnabled(features.FeatureConsistencyWarnings) {
		return nil
	}
	var out []string
	for _, w := range validation.CheckConsistency(receipt) {
		out = append(out, w.String())
	}
	return out
}

// outcome is what the cache holds for a digest. The receipt itself is not
// stored; an accepted document is parsed again from the request body.
type outcome struct {
	Valid bool               `json:"valid"`
	Error *models.FieldError `json:"error,omitempty"`
}

func (s *Service) cachedOutcome(ctx context.Context, digest string, body []byte) (models.ValidateResponse, bool) {
	if s.cache == nil || !s.features.IsEnabled(features.FeatureCacheEnabled) {
		return models.ValidateResponse{}, false
	}

	var o outcome
	err := cache.GetJSON(ctx, s.cache, cache.OutcomeKey(digest), &o)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn("outcome cache read failed", zap.String("digest", digest), zap.Error(err))
		}
		return models.ValidateResponse{}, false
	}

	resp := models.ValidateResponse{Valid: o.Valid, Digest: digest, Error: o.Error, Cached: true}
	if !o.Valid {
		if o.Error == nil {
			return models.ValidateResponse{}, false
		}
		return resp, true
	}

	receipt, err := codec.ParseJSON(body)
	if err != nil {
		// The entry disagrees with the document; validate from scratch.
		s.logger.Warn("stale outcome cache entry", zap.String("digest", digest), zap.Error(err))
		return models.ValidateResponse{}, false
	}
	resp.Receipt = &receipt
	resp.Warnings = s.warnings(receipt)
	return resp, true
}

func (s *Service) storeOutcome(ctx context.Context, digest string, resp models.ValidateResponse) {
	if s.cache == nil || !s.features.IsEnabled(features.FeatureCacheEnabled) {
		return
	}
	o := outcome{Valid: resp.Valid, Error: resp.Error}
	if err := cache.SetJSON(ctx, s.cache, cache.OutcomeKey(digest), o, s.cacheTTL); err != nil {
		s.logger.Warn("outcome cache write failed", zap.String("digest", digest), zap.Error(err))
	}
}

func (s *Service) auditAccepted(ctx context.Context, e events.Event) error {
	data, ok := e.Data.(events.ReceiptAcceptedData)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", e.Data, e.Type)
	}
	return s.writeAudit(ctx, models.AuditEntry{
		Digest:    data.Digest,
		ReceiptID: data.Receipt.ID,
		Valid:     true,
		CheckedAt: e.Timestamp,
	})
}

func (s *Service) auditRejected(ctx context.Context, e events.Event) error {
	data, ok := e.Data.(events.ReceiptRejectedData)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", e.Data, e.Type)
	}
	return s.writeAudit(ctx, models.AuditEntry{
		Digest:     data.Digest,
		ErrorField: data.Error.Field,
		ErrorKind:  data.Error.Kind,
		CheckedAt:  e.Timestamp,
	})
}

func (s *Service) writeAudit(ctx context.Context, entry models.AuditEntry) error {
	if !s.features.IsEnabled(features.FeatureAuditLog) {
		return nil
	}
	entry.ID = uuid.NewString()
	return s.db.InsertAudit(ctx, entry)
}
