package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/catalog/internal/mapper"
	"github.com/JonMunkholm/catalog/internal/reconcile"
	"github.com/JonMunkholm/catalog/internal/store/memory"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tree(sector, category string, subs map[string][]string) *mapper.Tree {
	cat := &mapper.CategoryNode{Name: category}
	for _, name := range []string{"Brakes", "Engine", "Tyres"} {
		jobs, ok := subs[name]
		if !ok {
			continue
		}
		sn := &mapper.SubcategoryNode{Name: name}
		for _, j := range jobs {
			sn.Jobs = append(sn.Jobs, &mapper.JobNode{Name: j})
		}
		cat.Subcategories = append(cat.Subcategories, sn)
	}
	return &mapper.Tree{SectorName: sector, Categories: []*mapper.CategoryNode{cat}}
}

// seed loads two sectors and returns the store and their reconcile results.
func seed(t *testing.T) (*memory.Store, *reconcile.Result, *reconcile.Result) {
	t.Helper()

	store := memory.New()
	engine := reconcile.New(store, reconcile.Options{}, nil)

	auto, err := engine.Reconcile(context.Background(), tree("Automotive", "BrakeJobs", map[string][]string{
		"Brakes": {"Pad Replacement", "Rotor Resurface"},
		"Engine": {"Oil Change"},
	}), nil)
	require.NoError(t, err)

	marine, err := engine.Reconcile(context.Background(), tree("Marine", "HullJobs", map[string][]string{
		"Tyres": {"Fender Swap"},
	}), nil)
	require.NoError(t, err)

	return store, auto, marine
}

func categoryID(t *testing.T, s taxonomy.Store, sectorID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	c, err := s.FindCategory(context.Background(), taxonomy.Key{Parent: sectorID, Name: taxonomy.NormalizeName(name)})
	require.NoError(t, err)
	return c.ID
}

// ============================================================================
// Reset Tests
// ============================================================================

func TestResetAll(t *testing.T) {
	store, _, _ := seed(t)
	svc := New(store, 0, nil)
	ctx := context.Background()

	before, err := svc.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, taxonomy.Counts{Sectors: 2, Categories: 2, Subcategories: 3, Jobs: 4}, before)

	deleted, err := svc.ResetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, deleted)

	after, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Counts{}, after)
}

func TestResetAll_Empty(t *testing.T) {
	deleted, err := New(memory.New(), 0, nil).ResetAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted.Total())
}

type failingPurge struct {
	*memory.Store
	failAt taxonomy.Level
}

func (f *failingPurge) PurgeAll(ctx context.Context, level taxonomy.Level) (int64, error) {
	if level == f.failAt {
		return 0, errors.New("lock timeout")
	}
	return f.Store.PurgeAll(ctx, level)
}

func TestResetAll_StopsAtFirstFailure(t *testing.T) {
	store, _, _ := seed(t)
	svc := New(&failingPurge{Store: store, failAt: taxonomy.LevelSubcategory}, 0, nil)

	deleted, err := svc.ResetAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge subcategory level")
	assert.Equal(t, taxonomy.Counts{Jobs: 4}, deleted)

	c, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.Subcategories, "parents survive a failed purge")
}

// ============================================================================
// Relocation Tests
// ============================================================================

func TestRelocateCategory(t *testing.T) {
	store, auto, marine := seed(t)
	svc := New(store, 0, nil)
	ctx := context.Background()

	brakeJobs := categoryID(t, store, auto.SectorID, "BrakeJobs")
	require.NoError(t, svc.RelocateCategory(ctx, brakeJobs, marine.SectorID))

	moved, err := store.GetCategory(ctx, brakeJobs)
	require.NoError(t, err)
	assert.Equal(t, marine.SectorID, moved.SectorID)

	subs, err := store.ListSubcategories(ctx, brakeJobs)
	require.NoError(t, err)
	assert.Len(t, subs, 2, "subtree moves with the category")

	left, err := store.ListCategories(ctx, auto.SectorID)
	require.NoError(t, err)
	assert.Empty(t, left)

	c, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Counts{Sectors: 2, Categories: 2, Subcategories: 3, Jobs: 4}, c)
}

func TestRelocateCategory_Errors(t *testing.T) {
	store, auto, marine := seed(t)
	svc := New(store, 0, nil)
	ctx := context.Background()

	brakeJobs := categoryID(t, store, auto.SectorID, "BrakeJobs")

	err := svc.RelocateCategory(ctx, uuid.New(), marine.SectorID)
	assert.ErrorIs(t, err, taxonomy.ErrNotFound)

	err = svc.RelocateCategory(ctx, brakeJobs, uuid.New())
	assert.ErrorIs(t, err, taxonomy.ErrNotFound)

	err = svc.RelocateCategory(ctx, brakeJobs, auto.SectorID)
	assert.ErrorIs(t, err, ErrSameSector)

	// A same-named category already lives in the target sector.
	engine := reconcile.New(store, reconcile.Options{}, nil)
	_, err = engine.Reconcile(ctx, tree("Marine", "brakejobs", map[string][]string{"Brakes": {"Bilge"}}), nil)
	require.NoError(t, err)

	err = svc.RelocateCategory(ctx, brakeJobs, marine.SectorID)
	assert.ErrorIs(t, err, taxonomy.ErrDuplicate)
}

// ============================================================================
// Cascade Tests
// ============================================================================

func TestDeleteSector_Cascades(t *testing.T) {
	store, auto, _ := seed(t)
	svc := New(store, 0, nil)
	ctx := context.Background()

	deleted, err := svc.DeleteSector(ctx, auto.SectorID)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Counts{Sectors: 1, Categories: 1, Subcategories: 2, Jobs: 3}, deleted)

	c, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Counts{Sectors: 1, Categories: 1, Subcategories: 1, Jobs: 1}, c)

	_, err = svc.DeleteSector(ctx, auto.SectorID)
	assert.ErrorIs(t, err, taxonomy.ErrNotFound)
}

func TestDeleteCategoryAndSubcategory(t *testing.T) {
	store, auto, _ := seed(t)
	svc := New(store, 0, nil)
	ctx := context.Background()

	catID := categoryID(t, store, auto.SectorID, "BrakeJobs")
	engine, err := store.FindSubcategory(ctx, taxonomy.Key{Parent: catID, Name: "engine"})
	require.NoError(t, err)

	deleted, err := svc.DeleteSubcategory(ctx, engine.ID)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Counts{Subcategories: 1, Jobs: 1}, deleted)

	deleted, err = svc.DeleteCategory(ctx, catID)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Counts{Categories: 1, Subcategories: 1, Jobs: 2}, deleted)

	sectors, err := store.ListSectors(ctx)
	require.NoError(t, err)
	assert.Len(t, sectors, 2, "sectors are untouched")
}

func TestDeleteJob(t *testing.T) {
	store, auto, _ := seed(t)
	svc := New(store, 0, nil)
	ctx := context.Background()

	catID := categoryID(t, store, auto.SectorID, "BrakeJobs")
	sub, err := store.FindSubcategory(ctx, taxonomy.Key{Parent: catID, Name: "engine"})
	require.NoError(t, err)
	jobs, err := store.ListJobs(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, svc.DeleteJob(ctx, jobs[0].ID))
	assert.ErrorIs(t, svc.DeleteJob(ctx, jobs[0].ID), taxonomy.ErrNotFound)
}
