package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/catalog/internal/admin"
	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/dedup"
	"github.com/JonMunkholm/catalog/internal/mapper"
	"github.com/JonMunkholm/catalog/internal/progress"
	"github.com/JonMunkholm/catalog/internal/reconcile"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service is the entry point for imports and catalog maintenance.
type Service struct {
	store    taxonomy.Store
	cfg      config.ImportConfig
	engine   *reconcile.Engine
	admin    *admin.Service
	detector dedup.Detector
	limiter  *ImportLimiter
	logger   *slog.Logger

	mu   sync.RWMutex
	runs map[string]*activeRun
}

// NewService wires the import pipeline over store. A nil cfg uses the
// loader defaults.
func NewService(store taxonomy.Store, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("core: nil store")
	}
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	mode, err := reconcile.ParseMode(cfg.Import.DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("default mode: %w", err)
	}

	ic := withDefaults(cfg.Import)
	return &Service{
		store: store,
		cfg:   ic,
		engine: reconcile.New(store, reconcile.Options{
			Mode:         mode,
			StoreTimeout: ic.StoreTimeout,
		}, logger.With("component", "reconcile")),
		admin:    admin.New(store, ic.ResetTimeout, logger.With("component", "admin")),
		detector: dedup.New(ic.DuplicateThreshold),
		limiter:  NewImportLimiter(ic.MaxConcurrent, ic.MaxWaitTime),
		logger:   logger,
		runs:     make(map[string]*activeRun),
	}, nil
}

// Import runs one import synchronously. fn may be nil and always receives
// one terminal event. The stats are returned even when err is non-nil,
// except when no import slot was free.
func (s *Service) Import(ctx context.Context, req ImportRequest, fn progress.Func) (*ImportStats, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		progress.New(fn).Fail(err)
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	return s.runImport(ctx, uuid.NewString(), req, progress.New(fn))
}

// ImportMany imports independent sectors concurrently, at most
// ParallelSectors at a time. One failing request does not stop the others;
// stats[i] belongs to reqs[i] and the returned error joins every failure.
func (s *Service) ImportMany(ctx context.Context, reqs []ImportRequest, fn func(i int, e progress.Event)) ([]*ImportStats, error) {
	stats := make([]*ImportStats, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.cfg.ParallelSectors)
	for i, req := range reqs {
		var pf progress.Func
		if fn != nil {
			pf = func(e progress.Event) { fn(i, e) }
		}
		g.Go(func() error {
			st, err := s.Import(ctx, req, pf)
			stats[i] = st
			if err != nil {
				errs[i] = fmt.Errorf("sector %q: %w", req.SectorName, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return stats, errors.Join(errs...)
}

// ResetAll deletes the whole catalog.
func (s *Service) ResetAll(ctx context.Context) (taxonomy.Counts, error) {
	s.logger.Info("catalog reset requested", callerAttrs(ctx)...)
	return s.admin.ResetAll(ctx)
}

// GetCounts returns the number of records per level.
func (s *Service) GetCounts(ctx context.Context) (taxonomy.Counts, error) {
	return s.admin.Counts(ctx)
}

// RelocateCategory moves a category and its subtree to another sector.
func (s *Service) RelocateCategory(ctx context.Context, categoryID, newSectorID uuid.UUID) error {
	s.logger.Info("category relocation requested",
		append([]any{"category_id", categoryID, "sector_id", newSectorID}, callerAttrs(ctx)...)...)
	return s.admin.RelocateCategory(ctx, categoryID, newSectorID)
}

// Admin exposes the cascade delete operations.
func (s *Service) Admin() *admin.Service { return s.admin }

// ListSectors returns every sector.
func (s *Service) ListSectors(ctx context.Context) ([]taxonomy.Sector, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.ListSectors(ctx)
}

// FindDuplicateNames compares a flat list of sibling names.
func (s *Service) FindDuplicateNames(names []string) []dedup.Pair {
	return s.detector.Find(names)
}

// FindSectorDuplicates scans every sibling set stored under one sector.
func (s *Service) FindSectorDuplicates(ctx context.Context, sectorID uuid.UUID) ([]dedup.Finding, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ResetTimeout)
	defer cancel()

	tree, err := s.loadTree(ctx, sectorID)
	if err != nil {
		return nil, err
	}
	return s.detector.ScanTree(tree), nil
}

// loadTree reads a stored sector back into mapper form.
func (s *Service) loadTree(ctx context.Context, sectorID uuid.UUID) (*mapper.Tree, error) {
	sec, err := s.store.GetSector(ctx, sectorID)
	if err != nil {
		return nil, fmt.Errorf("sector %s: %w", sectorID, err)
	}
	cats, err := s.store.ListCategories(ctx, sec.ID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	tree := &mapper.Tree{SectorName: sec.Name}
	for _, c := range cats {
		cn := &mapper.CategoryNode{Name: c.Name}
		subs, err := s.store.ListSubcategories(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list subcategories of %q: %w", c.Name, err)
		}
		for _, sub := range subs {
			sn := &mapper.SubcategoryNode{Name: sub.Name}
			jobs, err := s.store.ListJobs(ctx, sub.ID)
			if err != nil {
				return nil, fmt.Errorf("list jobs of %q: %w", sub.Name, err)
			}
			for _, j := range jobs {
				sn.Jobs = append(sn.Jobs, &mapper.JobNode{Name: j.Name})
			}
			cn.Subcategories = append(cn.Subcategories, sn)
		}
		tree.Categories = append(tree.Categories, cn)
	}
	return tree, nil
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import released its slot.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// MaxFileSize returns the configured per-file size limit in bytes.
func (s *Service) MaxFileSize() int64 { return s.cfg.MaxFileSize }

// MaxFiles returns the configured per-run file limit.
func (s *Service) MaxFiles() int { return s.cfg.MaxFiles }

// DefaultMode returns the conflict mode used when a request names none.
func (s *Service) DefaultMode() reconcile.Mode { return s.engine.Mode() }

// withDefaults fills in zero values so a hand-built config still works.
func withDefaults(ic config.ImportConfig) config.ImportConfig {
	if ic.MaxFileSize <= 0 {
		ic.MaxFileSize = 50 << 20
	}
	if ic.MaxFiles <= 0 {
		ic.MaxFiles = 20
	}
	if ic.ParallelSectors <= 0 {
		ic.ParallelSectors = 1
	}
	if ic.Timeout <= 0 {
		ic.Timeout = 10 * time.Minute
	}
	if ic.StoreTimeout <= 0 {
		ic.StoreTimeout = reconcile.DefaultStoreTimeout
	}
	if ic.ResetTimeout <= 0 {
		ic.ResetTimeout = admin.DefaultResetTimeout
	}
	if ic.RunRetention <= 0 {
		ic.RunRetention = 5 * time.Minute
	}
	return ic
}
