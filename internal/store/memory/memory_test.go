package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

func mustCreateTree(t *testing.T, s *Store) (taxonomy.Sector, taxonomy.Category, taxonomy.Subcategory, taxonomy.Job) {
	t.Helper()
	ctx := context.Background()

	sec := taxonomy.Sector{Name: "Automotive", IsActive: true}
	if err := s.CreateSector(ctx, &sec); err != nil {
		t.Fatalf("create sector: %v", err)
	}
	cat := taxonomy.Category{SectorID: sec.ID, Name: "BrakeJobs"}
	if err := s.CreateCategory(ctx, &cat); err != nil {
		t.Fatalf("create category: %v", err)
	}
	sub := taxonomy.Subcategory{CategoryID: cat.ID, Name: "Brakes"}
	if err := s.CreateSubcategory(ctx, &sub); err != nil {
		t.Fatalf("create subcategory: %v", err)
	}
	job := taxonomy.Job{SubcategoryID: sub.ID, Name: "Pad Replacement"}
	if err := s.CreateJob(ctx, &job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return sec, cat, sub, job
}

func TestStore_CreateAssignsIDs(t *testing.T) {
	s := New()
	sec, cat, sub, job := mustCreateTree(t, s)

	for name, id := range map[string]uuid.UUID{"sector": sec.ID, "category": cat.ID, "subcategory": sub.ID, "job": job.ID} {
		if id == uuid.Nil {
			t.Errorf("%s id not assigned", name)
		}
	}
	if s.Writes() != 4 {
		t.Errorf("Writes() = %d, want 4", s.Writes())
	}
}

func TestStore_Uniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	sec, cat, sub, _ := mustCreateTree(t, s)

	tests := []struct {
		name string
		err  error
	}{
		{"sector", s.CreateSector(ctx, &taxonomy.Sector{Name: " AUTOMOTIVE "})},
		{"category", s.CreateCategory(ctx, &taxonomy.Category{SectorID: sec.ID, Name: "brakejobs"})},
		{"subcategory", s.CreateSubcategory(ctx, &taxonomy.Subcategory{CategoryID: cat.ID, Name: "BRAKES"})},
		{"job", s.CreateJob(ctx, &taxonomy.Job{SubcategoryID: sub.ID, Name: "pad  replacement"})},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, taxonomy.ErrDuplicate) {
			t.Errorf("%s: err = %v, want ErrDuplicate", tt.name, tt.err)
		}
	}

	// The same name under a different parent is fine.
	other := taxonomy.Sector{Name: "Marine"}
	if err := s.CreateSector(ctx, &other); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateCategory(ctx, &taxonomy.Category{SectorID: other.ID, Name: "BrakeJobs"}); err != nil {
		t.Errorf("same name in another sector: %v", err)
	}
}

func TestStore_MissingParent(t *testing.T) {
	s := New()
	ctx := context.Background()

	errs := []error{
		s.CreateCategory(ctx, &taxonomy.Category{SectorID: uuid.New(), Name: "x"}),
		s.CreateSubcategory(ctx, &taxonomy.Subcategory{CategoryID: uuid.New(), Name: "x"}),
		s.CreateJob(ctx, &taxonomy.Job{SubcategoryID: uuid.New(), Name: "x"}),
	}
	for i, err := range errs {
		if !errors.Is(err, taxonomy.ErrMissingParent) {
			t.Errorf("case %d: err = %v, want ErrMissingParent", i, err)
		}
	}
}

func TestStore_FindAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, cat, sub, job := mustCreateTree(t, s)

	got, err := s.FindJob(ctx, taxonomy.Key{Parent: sub.ID, Name: "pad replacement"})
	if err != nil || got.ID != job.ID {
		t.Errorf("FindJob = %+v, %v", got, err)
	}
	if _, err := s.FindJob(ctx, taxonomy.Key{Parent: sub.ID, Name: "rotor"}); !errors.Is(err, taxonomy.ErrNotFound) {
		t.Errorf("FindJob missing: err = %v", err)
	}
	if _, err := s.GetCategory(ctx, uuid.New()); !errors.Is(err, taxonomy.ErrNotFound) {
		t.Errorf("GetCategory missing: err = %v", err)
	}
	if c, err := s.GetCategory(ctx, cat.ID); err != nil || c.Name != "BrakeJobs" {
		t.Errorf("GetCategory = %+v, %v", c, err)
	}
}

func TestStore_UpdateRekeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _, sub, job := mustCreateTree(t, s)

	other := taxonomy.Job{SubcategoryID: sub.ID, Name: "Rotor Resurface"}
	if err := s.CreateJob(ctx, &other); err != nil {
		t.Fatal(err)
	}

	job.Name = "Front Pads"
	if err := s.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if _, err := s.FindJob(ctx, taxonomy.Key{Parent: sub.ID, Name: "pad replacement"}); !errors.Is(err, taxonomy.ErrNotFound) {
		t.Errorf("old key still resolves: %v", err)
	}
	if got, err := s.FindJob(ctx, taxonomy.Key{Parent: sub.ID, Name: "front pads"}); err != nil || got.ID != job.ID {
		t.Errorf("new key: %+v, %v", got, err)
	}

	job.Name = "rotor resurface"
	if err := s.UpdateJob(ctx, job); !errors.Is(err, taxonomy.ErrDuplicate) {
		t.Errorf("rename onto sibling: err = %v, want ErrDuplicate", err)
	}
}

func TestStore_DeleteRefusesChildren(t *testing.T) {
	s := New()
	ctx := context.Background()
	sec, cat, sub, job := mustCreateTree(t, s)

	if err := s.DeleteSector(ctx, sec.ID); err == nil {
		t.Error("deleted sector with categories")
	}
	if err := s.DeleteCategory(ctx, cat.ID); err == nil {
		t.Error("deleted category with subcategories")
	}
	if err := s.DeleteSubcategory(ctx, sub.ID); err == nil {
		t.Error("deleted subcategory with jobs")
	}

	for _, del := range []func() error{
		func() error { return s.DeleteJob(ctx, job.ID) },
		func() error { return s.DeleteSubcategory(ctx, sub.ID) },
		func() error { return s.DeleteCategory(ctx, cat.ID) },
		func() error { return s.DeleteSector(ctx, sec.ID) },
	} {
		if err := del(); err != nil {
			t.Fatalf("children-first delete: %v", err)
		}
	}

	c, _ := s.Counts(ctx)
	if c.Total() != 0 {
		t.Errorf("counts after delete = %+v", c)
	}
}

func TestStore_PurgeAll(t *testing.T) {
	s := New()
	ctx := context.Background()
	mustCreateTree(t, s)

	if _, err := s.PurgeAll(ctx, taxonomy.LevelSector); err == nil {
		t.Error("purged sectors while categories remain")
	}

	for _, level := range taxonomy.PurgeOrder {
		n, err := s.PurgeAll(ctx, level)
		if err != nil {
			t.Fatalf("purge %s: %v", level, err)
		}
		if n != 1 {
			t.Errorf("purge %s deleted %d, want 1", level, n)
		}
	}

	// Keys are cleared with the rows.
	if err := s.CreateSector(ctx, &taxonomy.Sector{Name: "Automotive"}); err != nil {
		t.Errorf("recreate after purge: %v", err)
	}
}

func TestStore_HonorsContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.CreateSector(ctx, &taxonomy.Sector{Name: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, err := s.Counts(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
