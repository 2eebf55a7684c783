package taxonomy

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistent catalog. Implementations must:
//   - generate ids on Create and write them back into the passed entity,
//   - return ErrNotFound from Find*/Get* when nothing matches,
//   - reject a second node with the same (parent, NormalizeName(name)) with ErrDuplicate,
//   - reject writes whose parent id does not exist with ErrMissingParent,
//   - refuse to delete a node that still has children,
//   - provide read-after-write consistency within one caller.
//
// Every method honors context cancellation and deadlines.
type Store interface {
	SectorStore
	CategoryStore
	SubcategoryStore
	JobStore

	// PurgeAll deletes every row on one level. Callers must purge children first.
	PurgeAll(ctx context.Context, level Level) (int64, error)

	// Counts returns the row count per level.
	Counts(ctx context.Context) (Counts, error)
}

// SectorStore persists sectors.
type SectorStore interface {
	FindSector(ctx context.Context, key Key) (Sector, error)
	GetSector(ctx context.Context, id uuid.UUID) (Sector, error)
	ListSectors(ctx context.Context) ([]Sector, error)
	CreateSector(ctx context.Context, s *Sector) error
	UpdateSector(ctx context.Context, s Sector) error
	DeleteSector(ctx context.Context, id uuid.UUID) error
}

// CategoryStore persists categories.
type CategoryStore interface {
	FindCategory(ctx context.Context, key Key) (Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (Category, error)
	ListCategories(ctx context.Context, sectorID uuid.UUID) ([]Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// SubcategoryStore persists subcategories.
type SubcategoryStore interface {
	FindSubcategory(ctx context.Context, key Key) (Subcategory, error)
	GetSubcategory(ctx context.Context, id uuid.UUID) (Subcategory, error)
	ListSubcategories(ctx context.Context, categoryID uuid.UUID) ([]Subcategory, error)
	CreateSubcategory(ctx context.Context, s *Subcategory) error
	UpdateSubcategory(ctx context.Context, s Subcategory) error
	DeleteSubcategory(ctx context.Context, id uuid.UUID) error
}

// JobStore persists jobs.
type JobStore interface {
	FindJob(ctx context.Context, key Key) (Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
	ListJobs(ctx context.Context, subcategoryID uuid.UUID) ([]Job, error)
	CreateJob(ctx context.Context, j *Job) error
	UpdateJob(ctx context.Context, j Job) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
}

// PurgeOrder is the children-before-parents order for bulk deletes.
var PurgeOrder = []Level{LevelJob, LevelSubcategory, LevelCategory, LevelSector}
