package audit

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-relay/internal/broker"
	"github.com/nerrad567/gray-relay/internal/infrastructure/database"
)

func testRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLiteRepository(db.DB)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return repo
}

func sampleLog(target, messageID string, success bool) *DeliveryLog {
	entry := &DeliveryLog{
		TargetName: target,
		Protocol:   "file",
		MessageID:  messageID,
		PayloadID:  "pay-1",
		Async:      true,
		Success:    success,
		DurationMS: 12,
	}
	if !success {
		entry.Error = "write failed"
	}
	return entry
}

// ============================================================================
// Schema Tests
// ============================================================================

func TestEnsureSchema_Idempotent(t *testing.T) {
	repo := testRepository(t)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Errorf("second EnsureSchema = %v, want nil", err)
	}
}

// ============================================================================
// Record Tests
// ============================================================================

func TestRecord_GeneratesIDAndTimestamp(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	entry := sampleLog("archive", "capture", true)
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if !strings.HasPrefix(entry.ID, "dlv-") {
		t.Errorf("generated ID = %q, want dlv- prefix", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt should be generated")
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	in := sampleLog("archive", "capture", false)
	if err := repo.Record(ctx, in); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || len(result.Logs) != 1 {
		t.Fatalf("Total = %d, len = %d, want 1/1", result.Total, len(result.Logs))
	}

	got := result.Logs[0]
	if got.ID != in.ID {
		t.Errorf("ID = %q, want %q", got.ID, in.ID)
	}
	if got.TargetName != "archive" || got.Protocol != "file" || got.MessageID != "capture" {
		t.Errorf("identity fields = %s/%s/%s", got.TargetName, got.Protocol, got.MessageID)
	}
	if !got.Async || got.Success {
		t.Errorf("Async = %v, Success = %v, want true/false", got.Async, got.Success)
	}
	if got.Error != "write failed" {
		t.Errorf("Error = %q, want %q", got.Error, "write failed")
	}
	if got.DurationMS != 12 {
		t.Errorf("DurationMS = %d, want 12", got.DurationMS)
	}
}

func TestRecord_SuccessHasNoError(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if err := repo.Record(ctx, sampleLog("archive", "capture", true)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Logs[0].Error != "" {
		t.Errorf("Error = %q, want empty for success", result.Logs[0].Error)
	}
}

// ============================================================================
// List Tests
// ============================================================================

func seedLogs(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	entries := []*DeliveryLog{
		sampleLog("archive", "capture", true),
		sampleLog("archive", "capture", false),
		sampleLog("cloud", "capture", true),
		sampleLog("cloud", "alert", false),
	}
	for i, e := range entries {
		// Distinct timestamps give a deterministic DESC order.
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("seeding entry %d: %v", i, err)
		}
	}
}

func TestList_Filters(t *testing.T) {
	repo := testRepository(t)
	seedLogs(t, repo)
	ctx := context.Background()

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
	}{
		{"all", Filter{}, 4},
		{"by target", Filter{TargetName: "archive"}, 2},
		{"by message id", Filter{MessageID: "alert"}, 1},
		{"failures only", Filter{OnlyFailures: true}, 2},
		{"combined", Filter{TargetName: "cloud", OnlyFailures: true}, 1},
		{"no match", Filter{TargetName: "ghost"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
			if len(result.Logs) != tt.wantTotal {
				t.Errorf("len(Logs) = %d, want %d", len(result.Logs), tt.wantTotal)
			}
		})
	}
}

func TestList_OrderAndPagination(t *testing.T) {
	repo := testRepository(t)
	seedLogs(t, repo)
	ctx := context.Background()

	page, err := repo.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 4 || len(page.Logs) != 2 {
		t.Fatalf("Total = %d, len = %d, want 4/2", page.Total, len(page.Logs))
	}
	// Most recent first.
	if page.Logs[0].CreatedAt.Before(page.Logs[1].CreatedAt) {
		t.Error("logs should be ordered most recent first")
	}

	next, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(next.Logs) != 2 {
		t.Fatalf("len(next.Logs) = %d, want 2", len(next.Logs))
	}
	if next.Logs[0].ID == page.Logs[0].ID {
		t.Error("offset page should not repeat entries")
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	result, err := repo.List(ctx, Filter{Limit: 100000})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Limit != maxListLimit {
		t.Errorf("Limit = %d, want clamp to %d", result.Limit, maxListLimit)
	}

	result, err = repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Limit != defaultListLimit {
		t.Errorf("Limit = %d, want default %d", result.Limit, defaultListLimit)
	}
}

// ============================================================================
// Prune Tests
// ============================================================================

func TestPrune(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	old := sampleLog("archive", "capture", true)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	recent := sampleLog("archive", "capture", true)

	if err := repo.Record(ctx, old); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := repo.Record(ctx, recent); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune deleted %d rows, want 1", deleted)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || result.Logs[0].ID != recent.ID {
		t.Errorf("remaining = %+v, want only the recent entry", result.Logs)
	}
}

// ============================================================================
// Recorder Tests
// ============================================================================

func TestRecorder_PersistsDeliveryRecord(t *testing.T) {
	repo := testRepository(t)
	rec := NewRecorder(repo, nil)

	rec.DeliveryCompleted(broker.DeliveryRecord{
		TargetName:  "archive",
		Protocol:    "file",
		MessageID:   "capture",
		PayloadID:   "pay-7",
		Async:       true,
		Success:     false,
		Err:         errors.New("disk full"),
		Duration:    1500 * time.Millisecond,
		CompletedAt: time.Now().UTC(),
	})

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("Total = %d, want 1", result.Total)
	}

	got := result.Logs[0]
	if got.TargetName != "archive" || got.PayloadID != "pay-7" {
		t.Errorf("entry = %+v", got)
	}
	if got.Success {
		t.Error("Success should be false")
	}
	if got.Error != "disk full" {
		t.Errorf("Error = %q, want disk full", got.Error)
	}
	if got.DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", got.DurationMS)
	}
}

type failingRepo struct{}

func (failingRepo) Record(context.Context, *DeliveryLog) error {
	return errors.New("db locked")
}
func (failingRepo) List(context.Context, Filter) (*ListResult, error) { return nil, nil }
func (failingRepo) Prune(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func TestRecorder_SwallowsRepositoryErrors(t *testing.T) {
	rec := NewRecorder(failingRepo{}, nil)

	// Must not panic; recording failures never propagate to deliveries.
	rec.DeliveryCompleted(broker.DeliveryRecord{TargetName: "x"})
}
