// Package memory is an in-process taxonomy.Store. It enforces the same
// uniqueness and referential rules as the PostgreSQL schema and is used by
// tests and by the CLI's dry-run mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

var _ taxonomy.Store = (*Store)(nil)

// Store keeps the catalog in maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	sectors       map[uuid.UUID]taxonomy.Sector
	categories    map[uuid.UUID]taxonomy.Category
	subcategories map[uuid.UUID]taxonomy.Subcategory
	jobs          map[uuid.UUID]taxonomy.Job

	// keys maps a level's business key to the owning id.
	keys map[taxonomy.Level]map[taxonomy.Key]uuid.UUID

	writes int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sectors:       make(map[uuid.UUID]taxonomy.Sector),
		categories:    make(map[uuid.UUID]taxonomy.Category),
		subcategories: make(map[uuid.UUID]taxonomy.Subcategory),
		jobs:          make(map[uuid.UUID]taxonomy.Job),
		keys: map[taxonomy.Level]map[taxonomy.Key]uuid.UUID{
			taxonomy.LevelSector:      {},
			taxonomy.LevelCategory:    {},
			taxonomy.LevelSubcategory: {},
			taxonomy.LevelJob:         {},
		},
	}
}

// Writes returns the number of successful create, update and delete calls.
func (s *Store) Writes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// lookup resolves a business key on one level. Caller holds the lock.
func (s *Store) lookup(level taxonomy.Level, key taxonomy.Key) (uuid.UUID, bool) {
	id, ok := s.keys[level][key]
	return id, ok
}

// rekey moves id from oldKey to newKey, failing if newKey is taken by another id.
func (s *Store) rekey(level taxonomy.Level, id uuid.UUID, oldKey, newKey taxonomy.Key) error {
	if owner, ok := s.keys[level][newKey]; ok && owner != id {
		return fmt.Errorf("%s %q: %w", level, newKey.Name, taxonomy.ErrDuplicate)
	}
	delete(s.keys[level], oldKey)
	s.keys[level][newKey] = id
	return nil
}

// ----------------------------------------------------------------------------
// Sectors
// ----------------------------------------------------------------------------

func (s *Store) FindSector(ctx context.Context, key taxonomy.Key) (taxonomy.Sector, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Sector{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.lookup(taxonomy.LevelSector, key); ok {
		return s.sectors[id], nil
	}
	return taxonomy.Sector{}, taxonomy.ErrNotFound
}

func (s *Store) GetSector(ctx context.Context, id uuid.UUID) (taxonomy.Sector, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Sector{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, ok := s.sectors[id]
	if !ok {
		return taxonomy.Sector{}, taxonomy.ErrNotFound
	}
	return sec, nil
}

func (s *Store) ListSectors(ctx context.Context) ([]taxonomy.Sector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]taxonomy.Sector, 0, len(s.sectors))
	for _, sec := range s.sectors {
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateSector(ctx context.Context, sec *taxonomy.Sector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sec.Key()
	if _, ok := s.lookup(taxonomy.LevelSector, key); ok {
		return fmt.Errorf("sector %q: %w", sec.Name, taxonomy.ErrDuplicate)
	}
	sec.ID = uuid.New()
	s.sectors[sec.ID] = *sec
	s.keys[taxonomy.LevelSector][key] = sec.ID
	s.writes++
	return nil
}

func (s *Store) UpdateSector(ctx context.Context, sec taxonomy.Sector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sectors[sec.ID]
	if !ok {
		return taxonomy.ErrNotFound
	}
	if err := s.rekey(taxonomy.LevelSector, sec.ID, old.Key(), sec.Key()); err != nil {
		return err
	}
	s.sectors[sec.ID] = sec
	s.writes++
	return nil
}

func (s *Store) DeleteSector(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.sectors[id]
	if !ok {
		return taxonomy.ErrNotFound
	}
	for _, c := range s.categories {
		if c.SectorID == id {
			return fmt.Errorf("sector %q still has categories", sec.Name)
		}
	}
	delete(s.keys[taxonomy.LevelSector], sec.Key())
	delete(s.sectors, id)
	s.writes++
	return nil
}

// ----------------------------------------------------------------------------
// Categories
// ----------------------------------------------------------------------------

func (s *Store) FindCategory(ctx context.Context, key taxonomy.Key) (taxonomy.Category, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Category{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.lookup(taxonomy.LevelCategory, key); ok {
		return s.categories[id], nil
	}
	return taxonomy.Category{}, taxonomy.ErrNotFound
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (taxonomy.Category, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Category{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return taxonomy.Category{}, taxonomy.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, sectorID uuid.UUID) ([]taxonomy.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []taxonomy.Category
	for _, c := range s.categories {
		if c.SectorID == sectorID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *taxonomy.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sectors[c.SectorID]; !ok {
		return fmt.Errorf("category %q: %w", c.Name, taxonomy.ErrMissingParent)
	}
	key := c.Key()
	if _, ok := s.lookup(taxonomy.LevelCategory, key); ok {
		return fmt.Errorf("category %q: %w", c.Name, taxonomy.ErrDuplicate)
	}
	c.ID = uuid.New()
	s.categories[c.ID] = *c
	s.keys[taxonomy.LevelCategory][key] = c.ID
	s.writes++
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c taxonomy.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.categories[c.ID]
	if !ok {
		return taxonomy.ErrNotFound
	}
	if _, ok := s.sectors[c.SectorID]; !ok {
		return fmt.Errorf("category %q: %w", c.Name, taxonomy.ErrMissingParent)
	}
	if err := s.rekey(taxonomy.LevelCategory, c.ID, old.Key(), c.Key()); err != nil {
		return err
	}
	s.categories[c.ID] = c
	s.writes++
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return taxonomy.ErrNotFound
	}
	for _, sub := range s.subcategories {
		if sub.CategoryID == id {
			return fmt.Errorf("category %q still has subcategories", c.Name)
		}
	}
	delete(s.keys[taxonomy.LevelCategory], c.Key())
	delete(s.categories, id)
	s.writes++
	return nil
}

// ----------------------------------------------------------------------------
// Subcategories
// ----------------------------------------------------------------------------

func (s *Store) FindSubcategory(ctx context.Context, key taxonomy.Key) (taxonomy.Subcategory, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Subcategory{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.lookup(taxonomy.LevelSubcategory, key); ok {
		return s.subcategories[id], nil
	}
	return taxonomy.Subcategory{}, taxonomy.ErrNotFound
}

func (s *Store) GetSubcategory(ctx context.Context, id uuid.UUID) (taxonomy.Subcategory, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Subcategory{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subcategories[id]
	if !ok {
		return taxonomy.Subcategory{}, taxonomy.ErrNotFound
	}
	return sub, nil
}

func (s *Store) ListSubcategories(ctx context.Context, categoryID uuid.UUID) ([]taxonomy.Subcategory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []taxonomy.Subcategory
	for _, sub := range s.subcategories {
		if sub.CategoryID == categoryID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateSubcategory(ctx context.Context, sub *taxonomy.Subcategory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[sub.CategoryID]; !ok {
		return fmt.Errorf("subcategory %q: %w", sub.Name, taxonomy.ErrMissingParent)
	}
	key := sub.Key()
	if _, ok := s.lookup(taxonomy.LevelSubcategory, key); ok {
		return fmt.Errorf("subcategory %q: %w", sub.Name, taxonomy.ErrDuplicate)
	}
	sub.ID = uuid.New()
	s.subcategories[sub.ID] = *sub
	s.keys[taxonomy.LevelSubcategory][key] = sub.ID
	s.writes++
	return nil
}

func (s *Store) UpdateSubcategory(ctx context.Context, sub taxonomy.Subcategory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.subcategories[sub.ID]
	if !ok {
		return taxonomy.ErrNotFound
	}
	if _, ok := s.categories[sub.CategoryID]; !ok {
		return fmt.Errorf("subcategory %q: %w", sub.Name, taxonomy.ErrMissingParent)
	}
	if err := s.rekey(taxonomy.LevelSubcategory, sub.ID, old.Key(), sub.Key()); err != nil {
		return err
	}
	s.subcategories[sub.ID] = sub
	s.writes++
	return nil
}

func (s *Store) DeleteSubcategory(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subcategories[id]
	if !ok {
		return taxonomy.ErrNotFound
	}
	for _, j := range s.jobs {
		if j.SubcategoryID == id {
			return fmt.Errorf("subcategory %q still has jobs", sub.Name)
		}
	}
	delete(s.keys[taxonomy.LevelSubcategory], sub.Key())
	delete(s.subcategories, id)
	s.writes++
	return nil
}

// ----------------------------------------------------------------------------
// Jobs
// ----------------------------------------------------------------------------

func (s *Store) FindJob(ctx context.Context, key taxonomy.Key) (taxonomy.Job, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Job{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.lookup(taxonomy.LevelJob, key); ok {
		return s.jobs[id], nil
	}
	return taxonomy.Job{}, taxonomy.ErrNotFound
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (taxonomy.Job, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Job{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return taxonomy.Job{}, taxonomy.ErrNotFound
	}
	return j, nil
}

func (s *Store) ListJobs(ctx context.Context, subcategoryID uuid.UUID) ([]taxonomy.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []taxonomy.Job
	for _, j := range s.jobs {
		if j.SubcategoryID == subcategoryID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateJob(ctx context.Context, j *taxonomy.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subcategories[j.SubcategoryID]; !ok {
		return fmt.Errorf("job %q: %w", j.Name, taxonomy.ErrMissingParent)
	}
	key := j.Key()
	if _, ok := s.lookup(taxonomy.LevelJob, key); ok {
		return fmt.Errorf("job %q: %w", j.Name, taxonomy.ErrDuplicate)
	}
	j.ID = uuid.New()
	s.jobs[j.ID] = *j
	s.keys[taxonomy.LevelJob][key] = j.ID
	s.writes++
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, j taxonomy.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.jobs[j.ID]
	if !ok {
		return taxonomy.ErrNotFound
	}
	if _, ok := s.subcategories[j.SubcategoryID]; !ok {
		return fmt.Errorf("job %q: %w", j.Name, taxonomy.ErrMissingParent)
	}
	if err := s.rekey(taxonomy.LevelJob, j.ID, old.Key(), j.Key()); err != nil {
		return err
	}
	s.jobs[j.ID] = j
	s.writes++
	return nil
}

func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return taxonomy.ErrNotFound
	}
	delete(s.keys[taxonomy.LevelJob], j.Key())
	delete(s.jobs, id)
	s.writes++
	return nil
}

// ----------------------------------------------------------------------------
// Bulk
// ----------------------------------------------------------------------------

// PurgeAll deletes every row on one level. It fails if a lower level still
// holds rows, mirroring the foreign keys of the SQL schema.
func (s *Store) PurgeAll(ctx context.Context, level taxonomy.Level) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	switch level {
	case taxonomy.LevelJob:
		n = int64(len(s.jobs))
		s.jobs = make(map[uuid.UUID]taxonomy.Job)
	case taxonomy.LevelSubcategory:
		if len(s.jobs) > 0 {
			return 0, fmt.Errorf("purge subcategories: jobs remain: %w", taxonomy.ErrMissingParent)
		}
		n = int64(len(s.subcategories))
		s.subcategories = make(map[uuid.UUID]taxonomy.Subcategory)
	case taxonomy.LevelCategory:
		if len(s.subcategories) > 0 {
			return 0, fmt.Errorf("purge categories: subcategories remain: %w", taxonomy.ErrMissingParent)
		}
		n = int64(len(s.categories))
		s.categories = make(map[uuid.UUID]taxonomy.Category)
	case taxonomy.LevelSector:
		if len(s.categories) > 0 {
			return 0, fmt.Errorf("purge sectors: categories remain: %w", taxonomy.ErrMissingParent)
		}
		n = int64(len(s.sectors))
		s.sectors = make(map[uuid.UUID]taxonomy.Sector)
	default:
		return 0, fmt.Errorf("unknown level: %q", level)
	}
	s.keys[level] = make(map[taxonomy.Key]uuid.UUID)
	s.writes++
	return n, nil
}

func (s *Store) Counts(ctx context.Context) (taxonomy.Counts, error) {
	if err := ctx.Err(); err != nil {
		return taxonomy.Counts{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return taxonomy.Counts{
		Sectors:       int64(len(s.sectors)),
		Categories:    int64(len(s.categories)),
		Subcategories: int64(len(s.subcategories)),
		Jobs:          int64(len(s.jobs)),
	}, nil
}
