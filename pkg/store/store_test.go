package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/plan"
)

func samplePlan(id string, created time.Time) *plan.Plan {
	return &plan.Plan{
		ID:        id,
		Name:      "Tower " + id,
		CreatedAt: created,
		Branches:  []plan.Branch{{Label: "NAC-001", Devices: []string{"d1"}}},
		Supplies:  []plan.Supply{{Label: "PS-01", Branches: []string{"NAC-001"}}},
	}
}

// testStore runs the behavior every backend shares.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, errors.ErrCodePlanNotFound) {
		t.Errorf("Get(missing) error = %v, want PLAN_NOT_FOUND", err)
	}

	for i, id := range []string{"alpha", "bravo", "charlie"} {
		if err := s.Save(ctx, samplePlan(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	got, err := s.Get(ctx, "bravo")
	if err != nil {
		t.Fatalf("Get(bravo) error = %v", err)
	}
	if got.Name != "Tower bravo" || len(got.Branches) != 1 || !got.CreatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("Get(bravo) = %+v", got)
	}

	// Mutating the returned plan must not change the stored one
	got.Name = "changed"
	again, _ := s.Get(ctx, "bravo")
	if again.Name != "Tower bravo" {
		t.Error("stored plan changed through a returned copy")
	}

	list, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 || list[0].ID != "charlie" || list[2].ID != "alpha" {
		t.Errorf("List() = %+v, want newest first", list)
	}
	if list[0].Branches != 1 || list[0].Supplies != 1 {
		t.Errorf("summary counts = %d/%d, want 1/1", list[0].Branches, list[0].Supplies)
	}

	limited, _ := s.List(ctx, ListOptions{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("List(limit 2) returned %d", len(limited))
	}

	// Save replaces
	replacement := samplePlan("alpha", base)
	replacement.Name = "renamed"
	if err := s.Save(ctx, replacement); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.Get(ctx, "alpha"); p.Name != "renamed" {
		t.Errorf("Save should replace, got name %q", p.Name)
	}

	if err := s.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "alpha"); !errors.Is(err, errors.ErrCodePlanNotFound) {
		t.Errorf("second Delete() error = %v, want PLAN_NOT_FOUND", err)
	}

	// Invalid ids never reach the backend
	for _, id := range []string{"", "../etc/passwd", "a/b"} {
		if _, err := s.Get(ctx, id); !errors.Is(err, errors.ErrCodeInvalidPlanID) {
			t.Errorf("Get(%q) error = %v, want INVALID_PLAN_ID", id, err)
		}
	}
	if err := s.Save(ctx, &plan.Plan{}); !errors.Is(err, errors.ErrCodeInvalidPlanID) {
		t.Errorf("Save(no id) error = %v, want INVALID_PLAN_ID", err)
	}
	if err := s.Save(ctx, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Save(nil) error = %v, want INVALID_INPUT", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStore(t, s)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestFileStoreSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), samplePlan("real", time.Now())); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0600)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0600)

	list, err := s.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "real" {
		t.Errorf("List() = %+v, want only the real plan", list)
	}
	if s.Path() != dir {
		t.Errorf("Path() = %q, want %q", s.Path(), dir)
	}
}

func TestPrepare(t *testing.T) {
	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.FixedZone("X", 3600))
	p := &plan.Plan{}
	Prepare(p, now)
	if err := errors.ValidatePlanID(p.ID); err != nil {
		t.Errorf("generated id %q is invalid: %v", p.ID, err)
	}
	if !p.CreatedAt.Equal(now) || p.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want %v in UTC", p.CreatedAt, now)
	}

	kept := &plan.Plan{ID: "mine", CreatedAt: now}
	Prepare(kept, now.Add(time.Hour))
	if kept.ID != "mine" || !kept.CreatedAt.Equal(now) {
		t.Error("Prepare should not overwrite existing fields")
	}

	if NewID() == NewID() {
		t.Error("NewID should be unique")
	}
}

func TestMongoConfigDefaults(t *testing.T) {
	var empty MongoConfig
	if err := empty.setDefaults(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty config error = %v, want INVALID_INPUT", err)
	}

	cfg := MongoConfig{URI: "mongodb://localhost:27017"}
	if err := cfg.setDefaults(); err != nil {
		t.Fatal(err)
	}
	if cfg.Database != DefaultMongoDatabase || cfg.Collection != DefaultMongoCollection || cfg.Timeout != 10*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
}
