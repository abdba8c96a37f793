package watchdog

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	fired []uint
}

func (r *recorder) handle(logID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, logID)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestWatchdogFiresAfterTimeout(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	wd := New(20 * time.Millisecond)
	wd.SetHandler(rec.handle)

	wd.Arm(1)

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count() != 1 {
		t.Fatalf("fired %d times, want 1", rec.count())
	}
	if wd.Armed(1) {
		t.Error("expected timer removed after firing")
	}
}

func TestWatchdogDisarmPreventsFiring(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	wd := New(20 * time.Millisecond)
	wd.SetHandler(rec.handle)

	wd.Arm(1)
	wd.Disarm(1)

	time.Sleep(60 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("fired %d times, want 0", rec.count())
	}
}

func TestWatchdogRearmResetsTimer(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	wd := New(50 * time.Millisecond)
	wd.SetHandler(rec.handle)

	wd.Arm(1)
	time.Sleep(30 * time.Millisecond)
	wd.Arm(1)
	time.Sleep(30 * time.Millisecond)

	// 60ms elapsed but the second Arm reset the 50ms deadline
	if rec.count() != 0 {
		t.Fatalf("fired %d times, want 0", rec.count())
	}

	time.Sleep(40 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("fired %d times, want 1", rec.count())
	}
}

func TestWatchdogTracksIndependentDispenses(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	wd := New(20 * time.Millisecond)
	wd.SetHandler(rec.handle)

	wd.Arm(1)
	wd.Arm(2)
	wd.Disarm(1)

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.fired) != 1 || rec.fired[0] != 2 {
		t.Fatalf("fired = %v, want [2]", rec.fired)
	}
}
