package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingWorker counts cycles and signals each one on a channel. The
// optional behave hook controls what each numbered cycle does.
type recordingWorker struct {
	mu     sync.Mutex
	count  int
	runs   chan struct{}
	behave func(n int) error
}

func newRecordingWorker() *recordingWorker {
	return &recordingWorker{runs: make(chan struct{}, 100)}
}

func (w *recordingWorker) Name() string { return "recording" }

func (w *recordingWorker) Run(ctx context.Context) error {
	w.mu.Lock()
	w.count++
	n := w.count
	w.mu.Unlock()

	w.runs <- struct{}{}

	if w.behave != nil {
		return w.behave(n)
	}
	return nil
}

func (w *recordingWorker) cycles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func waitCycle(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker cycle")
	}
}

func TestPeriodicWorkerRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newRecordingWorker()
	pw := NewPeriodicWorker(w, time.Hour)
	pw.Start(ctx)

	waitCycle(t, w.runs)
	if got := w.cycles(); got != 1 {
		t.Errorf("got %d cycles before first tick, want 1", got)
	}

	cancel()
	pw.Stop(2 * time.Second)
}

func TestPeriodicWorkerStartIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newRecordingWorker()
	pw := NewPeriodicWorker(w, time.Hour)
	pw.Start(ctx)
	pw.Start(ctx)
	pw.Start(ctx)

	waitCycle(t, w.runs)

	// A second loop would have produced its own immediate cycle.
	select {
	case <-w.runs:
		t.Fatal("extra cycle observed, Start launched more than one loop")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	pw.Stop(2 * time.Second)
}

func TestPeriodicWorkerSurvivesFailuresAndPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newRecordingWorker()
	w.behave = func(n int) error {
		switch n {
		case 1:
			panic("cycle exploded")
		case 2:
			return errors.New("transient failure")
		default:
			return nil
		}
	}

	pw := NewPeriodicWorker(w, 20*time.Millisecond)
	pw.Start(ctx)

	// Panic on cycle 1 and error on cycle 2 must not stop the loop.
	waitCycle(t, w.runs)
	waitCycle(t, w.runs)
	waitCycle(t, w.runs)

	cancel()
	pw.Stop(2 * time.Second)

	if got := w.cycles(); got < 3 {
		t.Errorf("got %d cycles, want at least 3", got)
	}
}

func TestWorkerGroupStartStop(t *testing.T) {
	group := NewWorkerGroup(context.Background())

	first := newRecordingWorker()
	second := newRecordingWorker()
	group.Add(first, time.Hour)
	group.Add(second, time.Hour)

	group.Start()
	waitCycle(t, first.runs)
	waitCycle(t, second.runs)

	done := make(chan struct{})
	go func() {
		group.Stop(2 * time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("group stop did not return")
	}
}
