package admin

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

// DeleteSector removes a sector and everything below it, children first.
func (s *Service) DeleteSector(ctx context.Context, id uuid.UUID) (taxonomy.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var deleted taxonomy.Counts
	sec, err := s.store.GetSector(ctx, id)
	if err != nil {
		return deleted, fmt.Errorf("sector %s: %w", id, err)
	}
	err = s.deleteSector(ctx, sec, &deleted)
	s.logDelete(taxonomy.LevelSector, sec.Name, deleted, err)
	return deleted, err
}

// DeleteCategory removes a category, its subcategories and their jobs.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) (taxonomy.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var deleted taxonomy.Counts
	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return deleted, fmt.Errorf("category %s: %w", id, err)
	}
	err = s.deleteCategory(ctx, cat, &deleted)
	s.logDelete(taxonomy.LevelCategory, cat.Name, deleted, err)
	return deleted, err
}

// DeleteSubcategory removes a subcategory and its jobs.
func (s *Service) DeleteSubcategory(ctx context.Context, id uuid.UUID) (taxonomy.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var deleted taxonomy.Counts
	sub, err := s.store.GetSubcategory(ctx, id)
	if err != nil {
		return deleted, fmt.Errorf("subcategory %s: %w", id, err)
	}
	err = s.deleteSubcategory(ctx, sub, &deleted)
	s.logDelete(taxonomy.LevelSubcategory, sub.Name, deleted, err)
	return deleted, err
}

// DeleteJob removes a single job.
func (s *Service) DeleteJob(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.DeleteJob(ctx, id); err != nil {
		return fmt.Errorf("job %s: %w", id, err)
	}
	s.logger.Info("job deleted", "job_id", id)
	return nil
}

func (s *Service) deleteSector(ctx context.Context, sec taxonomy.Sector, deleted *taxonomy.Counts) error {
	cats, err := s.store.ListCategories(ctx, sec.ID)
	if err != nil {
		return fmt.Errorf("list categories of %q: %w", sec.Name, err)
	}
	for _, c := range cats {
		if err := s.deleteCategory(ctx, c, deleted); err != nil {
			return err
		}
	}
	if err := s.store.DeleteSector(ctx, sec.ID); err != nil {
		return fmt.Errorf("delete sector %q: %w", sec.Name, err)
	}
	deleted.Sectors++
	return nil
}

func (s *Service) deleteCategory(ctx context.Context, cat taxonomy.Category, deleted *taxonomy.Counts) error {
	subs, err := s.store.ListSubcategories(ctx, cat.ID)
	if err != nil {
		return fmt.Errorf("list subcategories of %q: %w", cat.Name, err)
	}
	for _, sub := range subs {
		if err := s.deleteSubcategory(ctx, sub, deleted); err != nil {
			return err
		}
	}
	if err := s.store.DeleteCategory(ctx, cat.ID); err != nil {
		return fmt.Errorf("delete category %q: %w", cat.Name, err)
	}
	deleted.Categories++
	return nil
}

func (s *Service) deleteSubcategory(ctx context.Context, sub taxonomy.Subcategory, deleted *taxonomy.Counts) error {
	jobs, err := s.store.ListJobs(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("list jobs of %q: %w", sub.Name, err)
	}
	for _, j := range jobs {
		if err := s.store.DeleteJob(ctx, j.ID); err != nil {
			return fmt.Errorf("delete job %q: %w", j.Name, err)
		}
		deleted.Jobs++
	}
	if err := s.store.DeleteSubcategory(ctx, sub.ID); err != nil {
		return fmt.Errorf("delete subcategory %q: %w", sub.Name, err)
	}
	deleted.Subcategories++
	return nil
}

func (s *Service) logDelete(level taxonomy.Level, name string, deleted taxonomy.Counts, err error) {
	if err != nil {
		s.logger.Error("cascade delete failed", "level", level, "name", name, "deleted", deleted.Total(), "error", err)
		return
	}
	s.logger.Info("cascade delete",
		"level", level,
		"name", name,
		"categories", deleted.Categories,
		"subcategories", deleted.Subcategories,
		"jobs", deleted.Jobs,
	)
}
