package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"BullionWatch/internal/model"
	"BullionWatch/internal/snapshot"
)

// spyBuilder records how many builds overlap.
type spyBuilder struct {
	release  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	err      error
}

func (b *spyBuilder) Build(ctx context.Context) (*model.Snapshot, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		m := b.maxSeen.Load()
		if n <= m || b.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	b.calls.Add(1)
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return &model.Snapshot{ID: "run", Alerts: []string{}}, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []*model.Snapshot
	errors    []string
}

func (p *recordingPublisher) PublishSnapshot(s *model.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
}

func (p *recordingPublisher) PublishError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, msg)
}

func (p *recordingPublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshots), len(p.errors)
}

func newTestScheduler(b Builder, pub Publisher, holder *snapshot.Holder) *Scheduler {
	return NewScheduler(context.Background(), b, holder, pub, time.Hour, 5*time.Second, zap.NewNop())
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Running() {
		if time.Now().After(deadline) {
			t.Fatal("run did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.wg.Wait()
}

func TestTrigger_ManualDuringRunIsDropped(t *testing.T) {
	b := &spyBuilder{release: make(chan struct{})}
	pub := &recordingPublisher{}
	s := newTestScheduler(b, pub, &snapshot.Holder{})

	if !s.Trigger(TriggerTimer) {
		t.Fatal("first trigger should start a run")
	}
	for b.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.RequestUpdate() {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	close(b.release)
	waitIdle(t, s)

	if accepted.Load() != 0 {
		t.Errorf("expected all manual requests dropped, %d accepted", accepted.Load())
	}
	if b.maxSeen.Load() != 1 {
		t.Errorf("expected at most one build in flight, saw %d", b.maxSeen.Load())
	}
	if b.calls.Load() != 1 {
		t.Errorf("expected one build, got %d", b.calls.Load())
	}
	if snaps, _ := pub.counts(); snaps != 1 {
		t.Errorf("expected one published snapshot, got %d", snaps)
	}

	// The guard is released after the run.
	b.release = nil
	if !s.RequestUpdate() {
		t.Error("manual request after the run should be accepted")
	}
	waitIdle(t, s)
	if b.calls.Load() != 2 {
		t.Errorf("expected a second build, got %d", b.calls.Load())
	}
}

func TestRunNow_FailureKeepsPreviousSnapshot(t *testing.T) {
	holder := &snapshot.Holder{}
	good := &model.Snapshot{ID: "good"}
	holder.Store(good)
	pub := &recordingPublisher{}
	s := newTestScheduler(&spyBuilder{err: snapshot.ErrAssembly}, pub, holder)

	err := s.RunNow(TriggerStartup)
	if !errors.Is(err, snapshot.ErrAssembly) {
		t.Fatalf("expected assembly error, got %v", err)
	}
	if holder.Load() != good {
		t.Error("previous snapshot should be kept after a failed run")
	}
	snaps, errs := pub.counts()
	if snaps != 0 || errs != 1 {
		t.Errorf("expected one error event and no snapshot, got %d/%d", snaps, errs)
	}
	if s.Running() {
		t.Error("guard should be released after a failed run")
	}
}

func TestRunNow_StoresAndPublishes(t *testing.T) {
	holder := &snapshot.Holder{}
	pub := &recordingPublisher{}
	s := newTestScheduler(&spyBuilder{}, pub, holder)

	if err := s.RunNow(TriggerStartup); err != nil {
		t.Fatalf("run: %v", err)
	}
	if holder.Load() == nil || holder.Load().ID != "run" {
		t.Errorf("expected stored snapshot, got %+v", holder.Load())
	}
	if snaps, _ := pub.counts(); snaps != 1 {
		t.Errorf("expected one published snapshot, got %d", snaps)
	}
}

func TestRun_TimeoutBoundsBuild(t *testing.T) {
	b := &spyBuilder{release: make(chan struct{})}
	pub := &recordingPublisher{}
	s := NewScheduler(context.Background(), b, &snapshot.Holder{}, pub, time.Hour, 20*time.Millisecond, zap.NewNop())

	if err := s.RunNow(TriggerManual); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(&spyBuilder{}, &recordingPublisher{}, &snapshot.Holder{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(s.Cron.Entries()) != 1 {
		t.Errorf("expected one cron entry, got %d", len(s.Cron.Entries()))
	}
	s.Stop()

	bad := NewScheduler(context.Background(), &spyBuilder{}, &snapshot.Holder{}, &recordingPublisher{}, 0, time.Second, zap.NewNop())
	if err := bad.Start(); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestTrigger_RefusedAfterStop(t *testing.T) {
	b := &spyBuilder{}
	pub := &recordingPublisher{}
	s := newTestScheduler(b, pub, &snapshot.Holder{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()

	if s.RequestUpdate() {
		t.Error("manual request after stop should be refused")
	}
	if s.Trigger(TriggerTimer) {
		t.Error("timer trigger after stop should be refused")
	}
	if err := s.RunNow(TriggerStartup); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if b.calls.Load() != 0 {
		t.Errorf("expected no builds after stop, got %d", b.calls.Load())
	}
	if snaps, errs := pub.counts(); snaps != 0 || errs != 0 {
		t.Errorf("expected nothing published after stop, got %d/%d", snaps, errs)
	}
}
