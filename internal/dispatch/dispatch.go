package dispatch

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deflectd/deflectd/internal/calc"
	"github.com/deflectd/deflectd/internal/callback"
	"github.com/deflectd/deflectd/internal/config"
	"github.com/deflectd/deflectd/internal/metrics"
)

// Deliverer is the outbound side of a job. callback.Sender satisfies it;
// tests inject fakes.
type Deliverer interface {
	Deliver(ctx context.Context, res *calc.Result, ov callback.Override) error
}

// job is one queued unit of work. The delay is drawn at submission time so
// the acceptance log can report it.
type job struct {
	id    uuid.UUID
	req   calc.Request
	ov    callback.Override
	delay time.Duration
}

// Dispatcher owns the worker pool and its intake queue. The queue is the
// only shared mutable state in the process; everything else the workers
// touch is immutable configuration.
type Dispatcher struct {
	cfg    config.Jobs
	sender Deliverer
	m      *metrics.Metrics
	now    func() time.Time // injectable for deterministic tests

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []job
	closed bool
}

// New creates a Dispatcher. Run must be called for jobs to execute.
func New(cfg config.Jobs, sender Deliverer, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		m:      m,
		now:    time.Now,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Submit enqueues req and returns immediately. It never blocks on pool
// saturation and never rejects — backpressure is absorbed by the queue.
// Under sustained overload the queue grows without bound; that is the
// accepted contract, not an oversight.
func (d *Dispatcher) Submit(req calc.Request, ov callback.Override) {
	j := job{
		id:    uuid.New(),
		req:   req,
		ov:    ov,
		delay: d.pickDelay(),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.m.JobsDropped.Add(1)
		slog.Warn("dispatch: pool shut down, job dropped",
			"job", j.id, "identifier", req.Identifier)
		return
	}
	d.queue = append(d.queue, j)
	d.mu.Unlock()
	d.cond.Signal()

	d.m.JobsAccepted.Add(1)
	d.m.QueueDepth.Add(1)
	slog.Info("dispatch: job accepted",
		"job", j.id,
		"identifier", req.Identifier,
		"items", len(req.Items),
		"delay", j.delay,
	)
}

// Run starts the worker pool and blocks until ctx is cancelled. On shutdown
// it drops whatever is still queued (logged and counted — delivery is
// best-effort) and waits for in-flight jobs to finish.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("dispatch: worker pool started",
		"workers", d.cfg.Workers,
		"delay_min", d.cfg.DelayMin,
		"delay_max", d.cfg.DelayMax,
	)

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}

	<-ctx.Done()

	d.mu.Lock()
	d.closed = true
	dropped := len(d.queue)
	d.queue = nil
	d.cond.Broadcast()
	d.mu.Unlock()

	if dropped > 0 {
		d.m.JobsDropped.Add(int64(dropped))
		d.m.QueueDepth.Add(-int64(dropped))
		slog.Warn("dispatch: dropped queued jobs at shutdown", "count", dropped)
	}

	wg.Wait()
	slog.Info("dispatch: worker pool stopped")
}

// worker pulls jobs until the intake closes.
func (d *Dispatcher) worker(ctx context.Context) {
	for {
		j, ok := d.next()
		if !ok {
			return
		}
		d.process(ctx, j)
	}
}

// next blocks until a job is available or the intake is closed.
func (d *Dispatcher) next() (job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.queue) == 0 && !d.closed {
		d.cond.Wait()
	}
	if len(d.queue) == 0 {
		return job{}, false
	}

	j := d.queue[0]
	d.queue = d.queue[1:]
	d.m.QueueDepth.Add(-1)
	return j, true
}

// process runs one job: delay, compute, deliver. Every failure path is
// terminal for the job — the original caller already got its 202 and there
// is no channel back to it.
func (d *Dispatcher) process(ctx context.Context, j job) {
	d.m.JobsInflight.Add(1)
	defer d.m.JobsInflight.Add(-1)

	if j.delay > 0 {
		t := time.NewTimer(j.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			d.m.JobsDropped.Add(1)
			slog.Warn("dispatch: shutdown during delay, job dropped",
				"job", j.id, "identifier", j.req.Identifier)
			return
		case <-t.C:
		}
	}

	res, err := calc.Compute(j.req, d.now().UTC())
	if err != nil {
		d.m.JobsComputeFailed.Add(1)
		slog.Error("dispatch: computation failed, no callback sent",
			"job", j.id, "identifier", j.req.Identifier, "err", err)
		return
	}

	if err := d.sender.Deliver(ctx, res, j.ov); err != nil {
		slog.Error("dispatch: callback delivery failed",
			"job", j.id, "identifier", j.req.Identifier, "err", err)
		return
	}

	d.m.JobsCompleted.Add(1)
	slog.Info("dispatch: job completed",
		"job", j.id,
		"identifier", j.req.Identifier,
		"within_norm", res.WithinNorm,
	)
}

// pickDelay draws the artificial delay uniformly from the configured bounds,
// both ends inclusive.
func (d *Dispatcher) pickDelay() time.Duration {
	min, max := d.cfg.DelayMin, d.cfg.DelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1)) //nolint:gosec // not crypto
}
