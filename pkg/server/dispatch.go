package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// DispatchOptions configures a Dispatcher.
type DispatchOptions struct {
	// ImmediateThreshold is the corpus size at which queries stop running inline.
	ImmediateThreshold int

	// Interval is the minimum spacing of delayed runs. Zero disables pacing.
	Interval time.Duration
	Burst    int

	Logger *log.Logger
}

type job struct {
	seq uint64
	fn  func()
}

// Dispatcher decides when a query runs.
//
// Below the threshold a job runs inline. At or above it jobs are paced by a
// token bucket and coalesced: only the latest submitted job runs once a token
// is available, older pending ones are dropped. Jobs never run out of
// submission order; a job older than one already run is skipped.
type Dispatcher struct {
	threshold int
	limiter   *rate.Limiter
	log       *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	seq     uint64
	pending *job
	running bool
	stopped bool
	ran     int
	dropped int

	runMu sync.Mutex
	done  uint64
}

// NewDispatcher creates a dispatcher. It owns one worker goroutine at most,
// started on demand and exiting when nothing is pending.
// Submit, Flush and Stop must be called from a single goroutine.
func NewDispatcher(opts DispatchOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		threshold: opts.ImmediateThreshold,
		limiter:   rate.NewLimiter(limit, burst),
		log:       opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
	}
}

// Immediate reports whether a corpus of size n runs inline.
func (d *Dispatcher) Immediate(n int) bool {
	return n < d.threshold
}

// Submit runs fn now or schedules it, depending on size.
// It reports whether fn ran before returning.
func (d *Dispatcher) Submit(size int, fn func()) bool {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.log.Debug("dispatcher stopped, dropping job")
		return false
	}
	d.seq++
	j := &job{seq: d.seq, fn: fn}

	if d.Immediate(size) {
		if d.pending != nil {
			d.pending = nil
			d.dropped++
		}
		d.mu.Unlock()
		return d.run(j)
	}

	if d.pending != nil {
		d.dropped++
	}
	d.pending = j
	if !d.running {
		d.running = true
		d.wg.Add(1)
		go d.work()
	}
	d.mu.Unlock()
	return false
}

// run executes j unless a newer job already ran.
func (d *Dispatcher) run(j *job) bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if j.seq < d.done {
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		return false
	}
	d.done = j.seq
	j.fn()

	d.mu.Lock()
	d.ran++
	d.mu.Unlock()
	return true
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		r := d.limiter.Reserve()
		timer := time.NewTimer(r.Delay())
		select {
		case <-timer.C:
		case <-d.wake:
			timer.Stop()
			r.Cancel()
		case <-d.ctx.Done():
			timer.Stop()
			r.Cancel()
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return
		}

		d.mu.Lock()
		j := d.pending
		d.pending = nil
		if j == nil {
			d.running = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		d.run(j)
	}
}

// Flush runs the pending job right away and waits for the worker to exit.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	j := d.pending
	d.pending = nil
	running := d.running
	d.mu.Unlock()

	if j != nil {
		d.run(j)
	}
	if running {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
	d.wg.Wait()
}

// Stop drops the pending job and waits for the worker. Later submissions are ignored.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.pending != nil {
		d.dropped++
	}
	d.pending = nil
	d.stopped = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()

	ran, dropped := d.Counts()
	d.log.Debug("dispatcher stopped", "ran", ran, "dropped", dropped)
}

// Counts returns how many jobs ran and how many were coalesced away.
func (d *Dispatcher) Counts() (ran, dropped int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ran, d.dropped
}
