// Package jobs polls the backend for the number of running crawl jobs so
// the console can show an activity banner while crawls are in flight.
package jobs

import (
	"context"
	"sync"
	"time"

	"crawldesk/internal/logging"
)

// Counter is the slice of the backend client the poller needs.
type Counter interface {
	RunningCrawlCount(ctx context.Context) (int, error)
}

const (
	// fastInterval applies while at least one crawl is running.
	fastInterval = 5 * time.Second
	// slowInterval is the retry cadence after a failed poll.
	slowInterval = 30 * time.Second
)

// Poller periodically fetches the running-crawl count. Each tick is
// scheduled only after the previous request resolves, so a slow backend
// never stacks requests. Once the count drops to zero the poller parks
// until Nudge wakes it; crawls only start through this console's commits,
// so there is nothing to poll for while everything is quiet.
type Poller struct {
	counter Counter
	notify  func()
	nudge   chan struct{}

	mu     sync.Mutex
	count  int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. notify is invoked (outside the lock) whenever
// the count changes; pass nil when polling the getter instead.
func NewPoller(counter Counter, notify func()) *Poller {
	return &Poller{counter: counter, notify: notify, nudge: make(chan struct{}, 1)}
}

// Nudge wakes a parked poller for an immediate poll. Called after a commit
// that may have started crawl jobs. Safe to call at any time.
func (p *Poller) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

// Start begins polling. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go p.loop(runCtx, done)
}

// Stop halts polling and waits for the in-flight request, if any, to settle.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Count returns the most recently observed running-crawl count.
func (p *Poller) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0) // first poll immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-p.nudge:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		count, err := p.counter.RunningCrawlCount(reqCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.JobsDebug("count poll failed: %v", err)
			timer.Reset(slowInterval)
			continue
		}

		p.mu.Lock()
		changed := count != p.count
		p.count = count
		p.mu.Unlock()
		if changed {
			logging.Jobs("running crawls: %d", count)
			if p.notify != nil {
				p.notify()
			}
		}

		if count > 0 {
			timer.Reset(fastInterval)
		}
		// At zero the timer stays spent; the next poll waits for a nudge.
	}
}
