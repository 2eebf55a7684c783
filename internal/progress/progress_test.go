package progress

import (
	"errors"
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestReporter_MonotonicAndClamped(t *testing.T) {
	rec := &recorder{}
	r := New(rec.record)

	r.Report(StageParsing, -5, "start")
	r.Report(StageParsing, 40, "parsed")
	r.Report(StageMapping, 20, "went backwards")
	r.Report(StageReconciling, 250, "overshoot")

	want := []int{0, 40, 40, 100}
	if len(rec.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(rec.events), len(want))
	}
	for i, e := range rec.events {
		if e.Percent != want[i] {
			t.Errorf("event %d percent = %d, want %d", i, e.Percent, want[i])
		}
	}
	if rec.events[2].Stage != StageMapping {
		t.Errorf("stage not preserved: %s", rec.events[2].Stage)
	}
}

func TestReporter_SingleTerminalEvent(t *testing.T) {
	rec := &recorder{}
	r := New(rec.record)

	r.Report(StageParsing, 10, "parsing %s", "a.csv")
	r.Complete("done")
	r.Fail(errors.New("late failure"))
	r.Report(StageMapping, 50, "late progress")
	r.Complete("again")

	if len(rec.events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(rec.events), rec.events)
	}
	last := rec.events[1]
	if last.Stage != StageComplete || !last.Completed || last.Percent != 100 {
		t.Errorf("unexpected terminal event %+v", last)
	}
	if rec.events[0].Message != "parsing a.csv" {
		t.Errorf("message = %q", rec.events[0].Message)
	}
	if !r.Done() {
		t.Error("Done() = false after completion")
	}
}

func TestReporter_Fail(t *testing.T) {
	rec := &recorder{}
	r := New(rec.record)

	r.Report(StageReconciling, 60, "writing")
	r.Fail(errors.New("store unavailable"))

	last := r.Last()
	if last.Stage != StageError || last.Error != "store unavailable" {
		t.Errorf("unexpected terminal event %+v", last)
	}
	if last.Completed {
		t.Error("error event must not be completed")
	}
	if last.Percent != 60 {
		t.Errorf("percent = %d, want 60", last.Percent)
	}
}

func TestReporter_TerminalStagesViaReport(t *testing.T) {
	rec := &recorder{}
	r := New(rec.record)

	r.Report(StageError, 0, "boom")
	if len(rec.events) != 1 || rec.events[0].Error != "boom" {
		t.Errorf("unexpected events %+v", rec.events)
	}
}

func TestReporter_NilFunc(t *testing.T) {
	r := New(nil)
	r.Report(StageParsing, 30, "x")
	r.Complete("ok")
	if got := r.Last(); got.Stage != StageComplete {
		t.Errorf("Last() = %+v", got)
	}
}

func TestSpan(t *testing.T) {
	rec := &recorder{}
	r := New(rec.record)

	s := r.Span(StageReconciling, 40, 90)
	s.Start("begin")
	s.Step(1, 2, "half")
	s.Step(5, 2, "overflow")
	s.Step(0, 0, "no total")
	s.End("end")

	want := []int{40, 65, 90, 90, 90}
	for i, e := range rec.events {
		if e.Percent != want[i] {
			t.Errorf("event %d percent = %d, want %d", i, e.Percent, want[i])
		}
		if e.Stage != StageReconciling {
			t.Errorf("event %d stage = %s", i, e.Stage)
		}
	}
}

func TestReporter_ConcurrentReports(t *testing.T) {
	var (
		mu   sync.Mutex
		last = -1
		bad  bool
	)
	r := New(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Percent < last {
			bad = true
		}
		last = e.Percent
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			r.Report(StageReconciling, p*5, "step")
		}(i)
	}
	wg.Wait()

	if bad {
		t.Error("percent decreased under concurrent reports")
	}
}
