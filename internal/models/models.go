package models

import (
	"encoding/json"
	"time"
)

// FieldError describes the contract violation that rejected a receipt.
type FieldError struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ValidateResponse is the outcome of validating one raw receipt.
type ValidateResponse struct {
	Valid    bool        `json:"valid"`
	Digest   string      `json:"digest"`           // sha256 of the submitted body
	Receipt  *Receipt    `json:"receipt,omitempty"` // normalized receipt when valid
	Error    *FieldError `json:"error,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Cached   bool        `json:"cached"`
}

// BatchValidateRequest is the request body for batch validation.
type BatchValidateRequest struct {
	Receipts []json.RawMessage `json:"receipts"`
}

// BatchValidateResponse holds per-document outcomes in submission order.
type BatchValidateResponse struct {
	Results  []ValidateResponse `json:"results"`
	Accepted int                `json:"accepted"`
	Rejected int                `json:"rejected"`
}

// AuditEntry records the outcome of one validation. The receipt body is
// never stored.
type AuditEntry struct {
	ID         string    `json:"id"`
	Digest     string    `json:"digest"`
	ReceiptID  string    `json:"receipt_id,omitempty"`
	Valid      bool      `json:"valid"`
	ErrorField string    `json:"error_field,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// AuditListResponse is the response for GET /audit.
type AuditListResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// AuditSummary counts recorded outcomes.
type AuditSummary struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
