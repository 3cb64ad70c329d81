package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/icao-pkd/pkd/internal/log"
)

// noopLogger satisfies log.Logger for unit tests that don't care about
// log output.
type noopLogger struct{}

func (noopLogger) Debug(string)   {}
func (noopLogger) Info(string)    {}
func (noopLogger) Notice(string)  {}
func (noopLogger) Warning(string) {}
func (noopLogger) Err(string)     {}
func (noopLogger) AuditErr(error) {}
func (l noopLogger) WithField(key string, value interface{}) log.Logger { return l }

// fakeResource is always healthy until explicitly closed, letting tests
// drive Pool's bookkeeping without a real network or database.
type fakeResource struct {
	mu     sync.Mutex
	closed bool
}

func (r *fakeResource) Healthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

func (r *fakeResource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func fakeFactory() Factory {
	return func(ctx context.Context) (Resource, error) {
		return &fakeResource{}, nil
	}
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(fakeFactory(), 0, 2, time.Second, noopLogger{})

	h, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := p.Stats(); stats.Outstanding != 1 {
		t.Fatalf("expected 1 outstanding, got %d", stats.Outstanding)
	}
	h.Release(context.Background())
	if stats := p.Stats(); stats.Outstanding != 0 || stats.Free != 1 {
		t.Fatalf("expected 0 outstanding/1 free after release, got %+v", stats)
	}
}

// TestAcquireBlocksThenWakesOnRelease exercises the wait-for-free-slot
// branch: a second Acquire beyond max blocks until the first Handle is
// released, rather than timing out or corrupting the pool's counters.
func TestAcquireBlocksThenWakesOnRelease(t *testing.T) {
	p := New(fakeFactory(), 0, 1, 2*time.Second, noopLogger{})

	h1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired := make(chan *Handle, 1)
	go func() {
		h2, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("second acquire failed: %v", err)
			return
		}
		acquired <- h2
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire returned before the pool had a free slot")
	case <-time.After(50 * time.Millisecond):
	}

	h1.Release(context.Background())

	select {
	case h2 := <-acquired:
		h2.Release(context.Background())
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never woke up after release")
	}

	if stats := p.Stats(); stats.Outstanding != 0 {
		t.Fatalf("expected 0 outstanding once both handles are released, got %d", stats.Outstanding)
	}
}

// TestAcquireTimesOutWhenExhausted confirms a saturated pool returns
// PoolExhausted once the caller's deadline passes, instead of blocking
// forever or racing the release path's own locking.
func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	p := New(fakeFactory(), 0, 1, 50*time.Millisecond, noopLogger{})

	h1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer h1.Release(context.Background())

	_, err = p.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected a timeout error from an exhausted pool")
	}
}

// TestConcurrentAcquireRelease hammers the pool from many goroutines to
// flush out the kind of double-unlock/lost-wakeup bug that only shows
// up under contention.
func TestConcurrentAcquireRelease(t *testing.T) {
	p := New(fakeFactory(), 0, 4, time.Second, noopLogger{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			h, err := p.Acquire(ctx)
			if err != nil {
				t.Errorf("acquire failed under contention: %v", err)
				return
			}
			time.Sleep(time.Millisecond)
			h.Release(context.Background())
		}()
	}
	wg.Wait()

	if stats := p.Stats(); stats.Outstanding != 0 {
		t.Fatalf("expected 0 outstanding once all goroutines released, got %d", stats.Outstanding)
	}
}
