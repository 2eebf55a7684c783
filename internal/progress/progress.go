// Package progress emits staged progress events for one import run.
//
// A Reporter guarantees that percentages never go backwards and that exactly
// one terminal event (complete or error) is delivered. Consumers can ignore
// intermediate events; final statistics are returned separately.
package progress

import (
	"fmt"
	"sync"
)

// Stage names a step of the import pipeline.
type Stage string

const (
	StageParsing     Stage = "parsing"
	StageClearing    Stage = "clearing"
	StageMapping     Stage = "mapping"
	StageDuplicates  Stage = "duplicates"
	StageReconciling Stage = "reconciling"
	StageComplete    Stage = "complete"
	StageError       Stage = "error"
)

// Terminal reports whether s ends a run.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Event is one progress notification.
type Event struct {
	Stage     Stage  `json:"stage"`
	Message   string `json:"message"`
	Percent   int    `json:"progressPercent"`
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

// Func receives events. It is called synchronously, in order, and must not
// call back into the Reporter that invoked it.
type Func func(Event)

// Reporter serializes the events of one run.
type Reporter struct {
	mu   sync.Mutex
	fn   Func
	last Event
	done bool
}

// New returns a Reporter delivering to fn. A nil fn discards events but the
// Reporter still tracks the latest state.
func New(fn Func) *Reporter {
	return &Reporter{fn: fn}
}

// Report emits a non-terminal event. The percentage is clamped to [0, 100]
// and raised to the previous value if lower. Terminal stages are routed to
// Complete or Fail.
func (r *Reporter) Report(stage Stage, percent int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch stage {
	case StageComplete:
		r.Complete(msg)
		return
	case StageError:
		r.Fail(fmt.Errorf("%s", msg))
		return
	}

	r.emit(Event{Stage: stage, Message: msg, Percent: percent})
}

// Complete emits the terminal success event at 100%.
func (r *Reporter) Complete(message string) {
	r.emit(Event{Stage: StageComplete, Message: message, Percent: 100, Completed: true})
}

// Fail emits the terminal error event. The percentage stays where the run
// stopped.
func (r *Reporter) Fail(err error) {
	msg := "import failed"
	if err != nil {
		msg = err.Error()
	}
	r.emit(Event{Stage: StageError, Message: msg, Error: msg})
}

// Last returns the most recent event.
func (r *Reporter) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Done reports whether the terminal event has been emitted.
func (r *Reporter) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Reporter) emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}

	e.Percent = min(max(e.Percent, 0), 100)
	if e.Percent < r.last.Percent {
		e.Percent = r.last.Percent
	}
	if e.Stage.Terminal() {
		r.done = true
	}

	r.last = e
	if r.fn != nil {
		r.fn(e)
	}
}

// Span maps the sub-steps of one stage into the percentage window [lo, hi].
type Span struct {
	r      *Reporter
	stage  Stage
	lo, hi int
}

// Span returns a window of the overall progress for stage.
func (r *Reporter) Span(stage Stage, lo, hi int) *Span {
	if hi < lo {
		lo, hi = hi, lo
	}
	return &Span{r: r, stage: stage, lo: lo, hi: hi}
}

// Step reports done out of total sub-steps. A zero total reports the start
// of the window.
func (s *Span) Step(done, total int, format string, args ...any) {
	pct := s.lo
	if total > 0 {
		done = min(max(done, 0), total)
		pct = s.lo + (s.hi-s.lo)*done/total
	}
	s.r.Report(s.stage, pct, format, args...)
}

// Start reports the beginning of the window.
func (s *Span) Start(format string, args ...any) {
	s.r.Report(s.stage, s.lo, format, args...)
}

// End reports the end of the window.
func (s *Span) End(format string, args ...any) {
	s.r.Report(s.stage, s.hi, format, args...)
}
