package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/catalog/internal/progress"
	"github.com/google/uuid"
)

// listenerBuffer is the per-subscriber event buffer. A slow subscriber loses
// intermediate events, never the terminal one.
const listenerBuffer = 16

// activeRun tracks one asynchronous import.
type activeRun struct {
	ID         string
	SectorName string
	Files      []string
	Cancel     context.CancelFunc
	StartedAt  time.Time

	mu         sync.Mutex
	progress   progress.Event
	status     RunStatus
	result     *ImportStats
	err        error
	finishedAt *time.Time
	listeners  []chan progress.Event
	done       chan struct{}
}

func newActiveRun(id string, req ImportRequest, cancel context.CancelFunc) *activeRun {
	files := make([]string, len(req.Files))
	for i, f := range req.Files {
		files[i] = f.Name
	}
	return &activeRun{
		ID:         id,
		SectorName: req.SectorName,
		Files:      files,
		Cancel:     cancel,
		StartedAt:  time.Now(),
		progress:   progress.Event{Stage: progress.StageParsing, Message: "queued"},
		status:     RunRunning,
		done:       make(chan struct{}),
	}
}

// notify records e and fans it out to every listener.
func (r *activeRun) notify(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = e
	for _, ch := range r.listeners {
		select {
		case ch <- e:
		default:
			if !e.Stage.Terminal() {
				continue
			}
			// Make room for the terminal event.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// finish stores the outcome and releases everyone waiting on the run.
func (r *activeRun) finish(stats *ImportStats, err error) {
	now := time.Now()

	r.mu.Lock()
	r.result = stats
	r.err = err
	r.finishedAt = &now
	switch {
	case err == nil:
		r.status = RunCompleted
	case errors.Is(err, ErrImportCancelled):
		r.status = RunCancelled
	default:
		r.status = RunFailed
	}
	r.closeListeners()
	r.mu.Unlock()

	close(r.done)
}

// closeListeners must be called with mu held.
func (r *activeRun) closeListeners() {
	for _, ch := range r.listeners {
		close(ch)
	}
	r.listeners = nil
}

func (r *activeRun) info() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunInfo{
		ID:         r.ID,
		SectorName: r.SectorName,
		Files:      r.Files,
		Status:     r.status,
		Progress:   r.progress,
		StartedAt:  r.StartedAt,
		FinishedAt: r.finishedAt,
	}
}

// StartImport begins an asynchronous import and returns its run id at once.
// Use SubscribeProgress to follow it and GetImportResult for the stats.
//
// The request is validated before a slot is taken, so a malformed request
// fails here rather than in the run. Returns ErrTooManyImports if no slot
// frees up within the configured wait.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (string, error) {
	if _, err := s.validateRequest(req); err != nil {
		return "", err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.NewString()

	// The run outlives the request that started it but keeps its values.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	run := newActiveRun(runID, req, cancel)

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go func() {
		defer s.limiter.Release()
		defer cancel()

		rep := progress.New(run.notify)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in import",
					"run_id", runID,
					"sector", req.SectorName,
					"panic", r,
				)
				err := fmt.Errorf("internal error: %v", r)
				rep.Fail(err)
				run.finish(nil, err)
				s.cleanup(runID, s.cfg.RunRetention)
			}
		}()

		stats, err := s.runImport(runCtx, runID, req, rep)
		run.finish(stats, err)
		s.cleanup(runID, s.cfg.RunRetention)
	}()

	return runID, nil
}

func (s *Service) run(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// SubscribeProgress returns a channel that receives the run's events,
// starting with the current one. The channel is closed after the terminal
// event.
func (s *Service) SubscribeProgress(runID string) (<-chan progress.Event, error) {
	run, err := s.run(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan progress.Event, listenerBuffer)

	run.mu.Lock()
	defer run.mu.Unlock()

	ch <- run.progress
	if run.finishedAt != nil {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// CancelImport stops a running import at the next bucket boundary.
// Cancelling a finished run is a no-op.
func (s *Service) CancelImport(runID string) error {
	run, err := s.run(runID)
	if err != nil {
		return err
	}
	run.Cancel()
	s.logger.Info("import cancel requested", "run_id", runID, "sector", run.SectorName)
	return nil
}

// GetImportResult blocks until the run finishes or ctx ends, then returns
// the run's stats and error.
func (s *Service) GetImportResult(ctx context.Context, runID string) (*ImportStats, error) {
	run, err := s.run(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.result, run.err
}

// GetImportProgress returns a snapshot of the run without blocking.
func (s *Service) GetImportProgress(runID string) (RunInfo, error) {
	run, err := s.run(runID)
	if err != nil {
		return RunInfo{}, err
	}
	return run.info(), nil
}

// ListImports returns the tracked runs, newest first.
func (s *Service) ListImports() []RunInfo {
	s.mu.RLock()
	runs := make([]*activeRun, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	infos := make([]RunInfo, len(runs))
	for i, r := range runs {
		infos[i] = r.info()
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.After(infos[j].StartedAt)
	})
	return infos
}

// cleanup forgets a finished run after delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}
