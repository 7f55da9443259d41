package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_AppendAndRecent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	older := &Record{
		ProjectDir: "/projects/a",
		Operation:  "generate",
		Prompt:     "a red circle",
		Model:      "nano-banana-pro",
		Provider:   "openrouter",
		OutputPath: "/projects/a/generated-images/gen_001.png",
		Cost:       0.12,
		Timestamp:  time.Now().Add(-time.Hour),
	}
	newer := &Record{
		ProjectDir: "/projects/a",
		Operation:  "edit",
		Prompt:     "make it blue",
		Model:      "gpt-image-1.5",
		Provider:   "openai",
		InputPath:  "/projects/a/generated-images/gen_001.png",
		OutputPath: "/projects/a/generated-images/gen_002.png",
		Cost:       0.05,
		Timestamp:  time.Now(),
	}

	if err := store.Append(ctx, older); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, newer); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if older.ID == "" || newer.ID == "" {
		t.Error("Append() did not assign IDs")
	}
	if older.ID == newer.ID {
		t.Error("Append() assigned duplicate IDs")
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Recent() returned %d records, want 2", len(records))
	}
	if records[0].Prompt != "make it blue" {
		t.Errorf("Recent()[0].Prompt = %q, want the newest record first", records[0].Prompt)
	}
	if records[0].InputPath != newer.InputPath {
		t.Errorf("InputPath = %q, want %q", records[0].InputPath, newer.InputPath)
	}
	if records[1].InputPath != "" {
		t.Errorf("InputPath = %q, want empty", records[1].InputPath)
	}
}

func TestStore_Recent_Limit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := &Record{
			ProjectDir: "/p",
			Operation:  "generate",
			Prompt:     "p",
			Model:      "m",
			Provider:   "openrouter",
			OutputPath: "/p/out.png",
			Timestamp:  time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	records, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Recent(3) returned %d records", len(records))
	}
}

func TestStore_CostSummaries(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	entries := []struct {
		provider string
		cost     float64
	}{
		{"openrouter", 0.12},
		{"openrouter", 0.039},
		{"openai", 0.05},
	}
	for _, e := range entries {
		rec := &Record{
			ProjectDir: "/p",
			Operation:  "generate",
			Prompt:     "p",
			Model:      "m",
			Provider:   e.provider,
			OutputPath: "/p/out.png",
			Cost:       e.cost,
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	total, err := store.TotalCost(ctx)
	if err != nil {
		t.Fatalf("TotalCost() error = %v", err)
	}
	if total.ImageCount != 3 {
		t.Errorf("ImageCount = %d, want 3", total.ImageCount)
	}
	wantTotal := 0.12 + 0.039 + 0.05
	if diff := total.TotalCost - wantTotal; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalCost = %v, want %v", total.TotalCost, wantTotal)
	}

	byProvider, err := store.CostByProvider(ctx)
	if err != nil {
		t.Fatalf("CostByProvider() error = %v", err)
	}
	if len(byProvider) != 2 {
		t.Fatalf("CostByProvider() returned %d groups, want 2", len(byProvider))
	}
	if byProvider[0].Provider != "openai" || byProvider[0].ImageCount != 1 {
		t.Errorf("byProvider[0] = %+v", byProvider[0])
	}
	if byProvider[1].Provider != "openrouter" || byProvider[1].ImageCount != 2 {
		t.Errorf("byProvider[1] = %+v", byProvider[1])
	}
}

func TestStore_EmptyDatabase(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Recent() = %v, want empty", records)
	}

	total, err := store.TotalCost(ctx)
	if err != nil {
		t.Fatalf("TotalCost() error = %v", err)
	}
	if total.TotalCost != 0 || total.ImageCount != 0 {
		t.Errorf("TotalCost() = %+v, want zeros", total)
	}
}
