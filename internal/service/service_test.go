package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"receipt-schema-api/internal/cache"
	"receipt-schema-api/internal/codec"
	"receipt-schema-api/internal/database"
	"receipt-schema-api/internal/events"
	"receipt-schema-api/internal/features"
	"receipt-schema-api/internal/metrics"
)

const validReceipt = `{"id":"r1","currency":"usd","amount":12.50,"subtotal":11.00,"date_time":1700000000000,
	"merchant_id":"m1","line_items":[{"description":"Coffee","total":11.00}],"actions":[]}`

type testEnv struct {
	svc    *Service
	db     *database.DB
	events *events.Manager
	flags  *features.Manager
	cache  *cache.InMemoryCache
}

func setupTestService(t *testing.T, defaults features.Defaults) *testEnv {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	env := &testEnv{
		db:     db,
		events: events.NewManager(true, zap.NewNop()),
		flags:  features.NewManagerWithDefaults(defaults),
		cache:  cache.NewInMemoryCache(),
	}
	env.svc = NewService(Options{
		DB:       db,
		Cache:    env.cache,
		CacheTTL: time.Minute,
		Events:   env.events,
		Features: env.flags,
		Metrics:  metrics.New(),
		Logger:   zap.NewNop(),
	})

	t.Cleanup(func() {
		env.events.Shutdown()
		db.Close()
	})
	return env
}

func allFeatures() features.Defaults {
	return features.Defaults{Cache: true, EventHooks: true, AuditLog: true, ConsistencyWarnings: true}
}

func TestValidateReceipt_Accepted(t *testing.T) {
	env := setupTestService(t, allFeatures())

	resp, err := env.svc.ValidateReceipt(context.Background(), []byte(validReceipt))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !resp.Valid || resp.Error != nil {
		t.Fatalf("Expected valid receipt, got %+v", resp)
	}
	if resp.Receipt == nil || resp.Receipt.ID != "r1" {
		t.Errorf("Expected normalized receipt r1, got %+v", resp.Receipt)
	}
	if resp.Receipt.MCC.IsSet() || resp.Receipt.ThirdParty.IsSet() {
		t.Error("Expected mcc and third_party to be absent")
	}
	if resp.Digest != Digest([]byte(validReceipt)) {
		t.Errorf("Unexpected digest %s", resp.Digest)
	}
	if resp.Cached {
		t.Error("First validation should not be served from cache")
	}
}

func TestValidateReceipt_Rejected(t *testing.T) {
	env := setupTestService(t, allFeatures())
	body := strings.Replace(validReceipt, `"usd"`, `"btc"`, 1)

	resp, err := env.svc.ValidateReceipt(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Valid || resp.Receipt != nil {
		t.Fatalf("Expected rejection, got %+v", resp)
	}
	if resp.Error == nil || resp.Error.Field != "currency" || resp.Error.Kind != "not_allowed" {
		t.Errorf("Expected currency not_allowed error, got %+v", resp.Error)
	}
}

func TestValidateReceipt_Malformed(t *testing.T) {
	env := setupTestService(t, allFeatures())

	_, err := env.svc.ValidateReceipt(context.Background(), []byte(`{"id":`))
	if !errors.Is(err, codec.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestValidateReceipt_CacheHit(t *testing.T) {
	env := setupTestService(t, allFeatures())
	ctx := context.Background()

	first, err := env.svc.ValidateReceipt(ctx, []byte(validReceipt))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := env.svc.ValidateReceipt(ctx, []byte(validReceipt))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !second.Cached {
		t.Error("Expected second validation to be served from cache")
	}
	if second.Receipt == nil || second.Receipt.LineItems[0].Description != first.Receipt.LineItems[0].Description {
		t.Errorf("Cached receipt differs: %+v", second.Receipt)
	}
	if second.Receipt.MCC.IsSet() {
		t.Error("Absent mcc must stay absent through the cache")
	}
}

func TestValidateReceipt_CacheHoldsOutcomeOnly(t *testing.T) {
	env := setupTestService(t, allFeatures())
	ctx := context.Background()

	resp, err := env.svc.ValidateReceipt(ctx, []byte(validReceipt))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := env.cache.Get(ctx, cache.OutcomeKey(resp.Digest))
	if err != nil {
		t.Fatalf("Expected cached outcome: %v", err)
	}
	for _, field := range []string{"receipt", "r1", "Coffee", "merchant_id", "line_items", "currency"} {
		if strings.Contains(string(data), field) {
			t.Errorf("Cached outcome must not contain %q: %s", field, data)
		}
	}
}

func TestValidateReceipt_CachedRejection(t *testing.T) {
	env := setupTestService(t, allFeatures())
	ctx := context.Background()
	body := []byte(strings.Replace(validReceipt, `"usd"`, `"btc"`, 1))

	env.svc.ValidateReceipt(ctx, body)
	resp, err := env.svc.ValidateReceipt(ctx, body)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !resp.Cached || resp.Valid || resp.Receipt != nil {
		t.Fatalf("Expected cached rejection, got %+v", resp)
	}
	if resp.Error == nil || resp.Error.Field != "currency" {
		t.Errorf("Expected currency error from cache, got %+v", resp.Error)
	}
}

func TestValidateReceipt_WarningsFollowFlagOnCacheHit(t *testing.T) {
	defaults := allFeatures()
	defaults.ConsistencyWarnings = false
	env := setupTestService(t, defaults)
	ctx := context.Background()
	body := []byte(strings.Replace(validReceipt, `"amount":12.50`, `"amount":1.00`, 1))

	resp, _ := env.svc.ValidateReceipt(ctx, body)
	if len(resp.Warnings) != 0 {
		t.Fatalf("Expected no warnings with flag off, got %v", resp.Warnings)
	}

	env.flags.Enable(features.FeatureConsistencyWarnings)
	resp, _ = env.svc.ValidateReceipt(ctx, body)
	if !resp.Cached {
		t.Fatal("Expected second validation to be served from cache")
	}
	if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "amount_below_subtotal") {
		t.Errorf("Expected warning after enabling the flag, got %v", resp.Warnings)
	}

	env.flags.Disable(features.FeatureConsistencyWarnings)
	resp, _ = env.svc.ValidateReceipt(ctx, body)
	if len(resp.Warnings) != 0 {
		t.Errorf("Expected no warnings after disabling the flag, got %v", resp.Warnings)
	}
}

func TestValidateReceipt_CacheDisabled(t *testing.T) {
	defaults := allFeatures()
	defaults.Cache = false
	env := setupTestService(t, defaults)
	ctx := context.Background()

	env.svc.ValidateReceipt(ctx, []byte(validReceipt))
	resp, _ := env.svc.ValidateReceipt(ctx, []byte(validReceipt))

	if resp.Cached {
		t.Error("Expected no cache use when the flag is off")
	}
}

func TestValidateReceipt_ConsistencyWarnings(t *testing.T) {
	body := strings.Replace(validReceipt, `"amount":12.50`, `"amount":5.00`, 1)

	env := setupTestService(t, allFeatures())
	resp, _ := env.svc.ValidateReceipt(context.Background(), []byte(body))
	if !resp.Valid {
		t.Fatalf("Consistency hints must not reject a receipt: %+v", resp.Error)
	}
	if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "amount_below_subtotal") {
		t.Errorf("Expected amount_below_subtotal warning, got %v", resp.Warnings)
	}

	defaults := allFeatures()
	defaults.ConsistencyWarnings = false
	env = setupTestService(t, defaults)
	resp, _ = env.svc.ValidateReceipt(context.Background(), []byte(body))
	if len(resp.Warnings) != 0 {
		t.Errorf("Expected no warnings with flag off, got %v", resp.Warnings)
	}
}

func TestValidateReceipt_WritesAuditLog(t *testing.T) {
	env := setupTestService(t, allFeatures())
	ctx := context.Background()

	env.svc.ValidateReceipt(ctx, []byte(validReceipt))
	env.svc.ValidateReceipt(ctx, []byte(strings.Replace(validReceipt, `"id":"r1",`, ``, 1)))
	env.events.Wait()

	summary, err := env.svc.AuditSummary(ctx)
	if err != nil {
		t.Fatalf("Failed to summarize: %v", err)
	}
	if summary.Accepted != 1 || summary.Rejected != 1 {
		t.Errorf("Expected 1 accepted / 1 rejected, got %+v", summary)
	}

	entries, err := env.svc.RecentAudits(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list audits: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 audit entries, got %d", len(entries))
	}
	for _, e := range entries {
		if !e.Valid && (e.ErrorField != "id" || e.ErrorKind != "missing") {
			t.Errorf("Unexpected rejected entry %+v", e)
		}
		if e.Valid && e.ReceiptID != "r1" {
			t.Errorf("Unexpected accepted entry %+v", e)
		}
	}
}

func TestValidateReceipt_AuditDisabled(t *testing.T) {
	defaults := allFeatures()
	defaults.AuditLog = false
	env := setupTestService(t, defaults)
	ctx := context.Background()

	env.svc.ValidateReceipt(ctx, []byte(validReceipt))
	env.events.Wait()

	summary, _ := env.svc.AuditSummary(ctx)
	if summary.Accepted != 0 {
		t.Errorf("Expected empty audit log, got %+v", summary)
	}
}

func TestValidateBatch(t *testing.T) {
	env := setupTestService(t, allFeatures())

	docs := []json.RawMessage{
		json.RawMessage(validReceipt),
		json.RawMessage(strings.Replace(validReceipt, `"actions":[]`, `"actions":{}`, 1)),
		json.RawMessage(`"not an object"`),
	}

	resp, err := env.svc.ValidateBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Accepted != 1 || resp.Rejected != 2 {
		t.Errorf("Expected 1 accepted / 2 rejected, got %d / %d", resp.Accepted, resp.Rejected)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[1].Error == nil || resp.Results[1].Error.Field != "actions" {
		t.Errorf("Expected actions error at index 1, got %+v", resp.Results[1].Error)
	}
	if resp.Results[2].Error == nil || resp.Results[2].Error.Field != "receipt" {
		t.Errorf("Expected receipt error at index 2, got %+v", resp.Results[2].Error)
	}
}

func TestValidateBatch_Limits(t *testing.T) {
	env := setupTestService(t, allFeatures())

	if _, err := env.svc.ValidateBatch(context.Background(), nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Expected ErrEmptyBatch, got %v", err)
	}

	docs := make([]json.RawMessage, MaxBatchSize+1)
	if _, err := env.svc.ValidateBatch(context.Background(), docs); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("Expected ErrBatchTooLarge, got %v", err)
	}
}
