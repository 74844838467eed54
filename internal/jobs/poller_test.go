package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeCounter struct {
	mu    sync.Mutex
	count int
	err   error
	calls int
}

func (f *fakeCounter) RunningCrawlCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func (f *fakeCounter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCounter) setCount(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count = n
}

func TestPollerObservesCount(t *testing.T) {
	counter := &fakeCounter{count: 3}
	notified := make(chan struct{}, 1)
	p := NewPoller(counter, func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never reported the count")
	}
	if got := p.Count(); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
}

func TestPollerStopWaitsForInFlight(t *testing.T) {
	counter := &fakeCounter{}
	p := NewPoller(counter, nil)

	p.Start(context.Background())
	// Let the immediate first poll go through.
	deadline := time.Now().Add(2 * time.Second)
	for counter.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	p.Stop()

	calls := counter.callCount()
	time.Sleep(20 * time.Millisecond)
	if got := counter.callCount(); got != calls {
		t.Errorf("poller kept polling after Stop: %d -> %d", calls, got)
	}
}

func TestPollerSurvivesErrors(t *testing.T) {
	counter := &fakeCounter{err: errors.New("backend down")}
	p := NewPoller(counter, nil)

	p.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for counter.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	p.Stop()

	if got := p.Count(); got != 0 {
		t.Errorf("Count = %d after errors, want 0", got)
	}
}

func TestPollerParksAtZeroUntilNudged(t *testing.T) {
	counter := &fakeCounter{}
	p := NewPoller(counter, nil)

	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for counter.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	calls := counter.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := counter.callCount(); got != calls {
		t.Fatalf("poller kept polling at zero: %d -> %d", calls, got)
	}

	// A commit may have started crawls; a nudge triggers an immediate poll.
	counter.setCount(2)
	p.Nudge()
	deadline = time.Now().Add(2 * time.Second)
	for p.Count() != 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := p.Count(); got != 2 {
		t.Fatalf("Count = %d after nudge, want 2", got)
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	counter := &fakeCounter{}
	p := NewPoller(counter, nil)

	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()

	// Stop after double start must not hang or panic; a second Stop is
	// also safe.
	p.Stop()
}
