package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"receipt-schema-api/internal/codec"
	"receipt-schema-api/internal/models"
	"receipt-schema-api/internal/service"
	"receipt-schema-api/internal/validation"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
	logger      *zap.Logger
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Logger      *zap.Logger
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
		Logger:      zap.NewNop(),
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
		logger:      opts.Logger,
	}
}

// ValidateReceipt handles POST /receipts/validate
func (h *Handler) ValidateReceipt(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ValidateReceipt(r.Context(), body)
	if err != nil {
		if errors.Is(err, codec.ErrMalformed) {
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
			return
		}
		h.logger.Error("receipt validation failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if !resp.Valid {
		status = http.StatusUnprocessableEntity
	}
	h.respondJSON(w, status, resp)
}

// ValidateBatch handles POST /receipts/validate/batch
func (h *Handler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req models.BatchValidateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	resp, err := h.service.ValidateBatch(r.Context(), req.Receipts)
	if err != nil {
		if errors.Is(err, service.ErrEmptyBatch) || errors.Is(err, service.ErrBatchTooLarge) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("batch validation failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// GetReceiptSchema handles GET /schema/receipt
func (h *Handler) GetReceiptSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	w.Write(codec.SchemaDocument())
}

// ListAudits handles GET /audit
func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit, err := validation.ValidateLimit(r.URL.Query().Get("limit"), defaultAuditLimit, maxAuditLimit)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.service.RecentAudits(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing audit entries failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.respondJSON(w, http.StatusOK, models.AuditListResponse{Entries: entries})
}

// GetAuditSummary handles GET /audit/summary
func (h *Handler) GetAuditSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.AuditSummary(r.Context())
	if err != nil {
		h.logger.Error("summarizing audit entries failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readBody reads a size-limited request body and writes the error response
// itself when it cannot.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		h.respondError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if len(body) == 0 {
		h.respondError(w, http.StatusBadRequest, "request body is required")
		return nil, false
	}
	return body, true
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
