package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"receipt-schema-api/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	db, err := NewDB(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndListAudits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 21, 10, 0, 0, 0, time.UTC)

	entries := []models.AuditEntry{
		{ID: uuid.NewString(), Digest: "d1", ReceiptID: "r1", Valid: true, CheckedAt: base},
		{ID: uuid.NewString(), Digest: "d2", Valid: false, ErrorField: "currency", ErrorKind: "not_allowed", CheckedAt: base.Add(time.Minute)},
		{ID: uuid.NewString(), Digest: "d3", ReceiptID: "r3", Valid: true, CheckedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := db.InsertAudit(ctx, e); err != nil {
			t.Fatalf("Failed to insert audit entry: %v", err)
		}
	}

	got, err := db.ListAudits(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list audits: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(got))
	}
	if got[0].Digest != "d3" || got[1].Digest != "d2" {
		t.Errorf("Expected newest first, got %s, %s", got[0].Digest, got[1].Digest)
	}
	if got[1].ErrorField != "currency" || got[1].ErrorKind != "not_allowed" || got[1].Valid {
		t.Errorf("Unexpected rejected entry: %+v", got[1])
	}
	if got[1].ReceiptID != "" {
		t.Errorf("Expected empty receipt id, got %q", got[1].ReceiptID)
	}
	if !got[0].CheckedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Unexpected checked_at %v", got[0].CheckedAt)
	}

	summary, err := db.SummarizeAudits(ctx)
	if err != nil {
		t.Fatalf("Failed to summarize: %v", err)
	}
	if summary.Accepted != 2 || summary.Rejected != 1 {
		t.Errorf("Expected 2 accepted / 1 rejected, got %+v", summary)
	}
}

func TestSummarizeAudits_Empty(t *testing.T) {
	db := setupTestDB(t)

	summary, err := db.SummarizeAudits(context.Background())
	if err != nil {
		t.Fatalf("Failed to summarize: %v", err)
	}
	if summary.Accepted != 0 || summary.Rejected != 0 {
		t.Errorf("Expected empty summary, got %+v", summary)
	}

	entries, err := db.ListAudits(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failed to list audits: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}
