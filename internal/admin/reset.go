// Package admin provides destructive maintenance operations on the catalog:
// full reset, cascading deletes and category relocation.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
)

// DefaultResetTimeout is the maximum duration for one admin operation.
const DefaultResetTimeout = 30 * time.Second

// Service runs admin operations against a store.
type Service struct {
	store   taxonomy.Store
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Service. A non-positive timeout uses DefaultResetTimeout.
func New(store taxonomy.Store, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultResetTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, timeout: timeout, logger: logger}
}

type purgeFn struct {
	level taxonomy.Level
	run   func(ctx context.Context) (int64, error)
}

// ResetAll deletes every job, subcategory, category and sector, in that
// order. It is irreversible and takes no backup. The returned counts are the
// rows deleted per level; on error they cover the levels already purged.
func (s *Service) ResetAll(ctx context.Context) (taxonomy.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	before, err := s.store.Counts(ctx)
	if err != nil {
		return taxonomy.Counts{}, fmt.Errorf("count before reset: %w", err)
	}

	resets := make([]purgeFn, 0, len(taxonomy.PurgeOrder))
	for _, level := range taxonomy.PurgeOrder {
		resets = append(resets, purgeFn{
			level: level,
			run:   func(ctx context.Context) (int64, error) { return s.store.PurgeAll(ctx, level) },
		})
	}

	deleted, err := s.runResets(ctx, resets)
	if err != nil {
		s.logger.Error("catalog reset failed", "deleted", deleted, "error", err)
		return deleted, err
	}

	s.logger.Warn("catalog reset",
		"sectors", deleted.Sectors,
		"categories", deleted.Categories,
		"subcategories", deleted.Subcategories,
		"jobs", deleted.Jobs,
		"total_before", before.Total(),
	)
	return deleted, nil
}

func (s *Service) runResets(ctx context.Context, resets []purgeFn) (taxonomy.Counts, error) {
	var deleted taxonomy.Counts
	for _, reset := range resets {
		n, err := reset.run(ctx)
		if err != nil {
			return deleted, fmt.Errorf("purge %s level: %w", reset.level, err)
		}
		addCount(&deleted, reset.level, n)
	}
	return deleted, nil
}

func addCount(c *taxonomy.Counts, level taxonomy.Level, n int64) {
	switch level {
	case taxonomy.LevelSector:
		c.Sectors += n
	case taxonomy.LevelCategory:
		c.Categories += n
	case taxonomy.LevelSubcategory:
		c.Subcategories += n
	case taxonomy.LevelJob:
		c.Jobs += n
	}
}

// Counts returns the number of rows per level.
func (s *Service) Counts(ctx context.Context) (taxonomy.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Counts(ctx)
}

// ErrSameSector is returned when a category is relocated to its own sector.
var ErrSameSector = errors.New("category already belongs to that sector")

// RelocateCategory moves a category, and with it the whole subtree, to
// another sector. Only the category's sector id changes.
func (s *Service) RelocateCategory(ctx context.Context, categoryID, newSectorID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("category %s: %w", categoryID, err)
	}
	target, err := s.store.GetSector(ctx, newSectorID)
	if err != nil {
		return fmt.Errorf("sector %s: %w", newSectorID, err)
	}
	if cat.SectorID == newSectorID {
		return ErrSameSector
	}

	moved := cat
	moved.SectorID = newSectorID
	if clash, err := s.store.FindCategory(ctx, moved.Key()); err == nil && clash.ID != cat.ID {
		return fmt.Errorf("sector %q already has category %q: %w", target.Name, cat.Name, taxonomy.ErrDuplicate)
	} else if err != nil && !errors.Is(err, taxonomy.ErrNotFound) {
		return fmt.Errorf("check target sector: %w", err)
	}

	if err := s.store.UpdateCategory(ctx, moved); err != nil {
		return fmt.Errorf("relocate category %q: %w", cat.Name, err)
	}

	s.logger.Info("category relocated",
		"category", cat.Name,
		"category_id", cat.ID,
		"from_sector", cat.SectorID,
		"to_sector", target.ID,
	)
	return nil
}
