// Package stress hammers a reentrant read/write lock with concurrent readers
// and writers and checks that mutual exclusion is never broken.
package stress

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thetarby/rrwlock"
)

var (
	// ErrViolation is returned when a contender observes another holder it
	// must exclude.
	ErrViolation = errors.New("mutual exclusion violated")
	// ErrDeadlock is returned when a trial does not finish in time.
	ErrDeadlock = errors.New("trial did not finish")
)

// Result summarizes a finished run.
type Result struct {
	Trials   int
	Elapsed  time.Duration
	Slowest  time.Duration
	Reads    int64
	Writes   int64
	Upgrades int64
}

// Harness runs trials against one lock.
type Harness struct {
	lock    rrwlock.ReentrantRWLock
	cfg     Config
	log     *zap.Logger
	clock   clockwork.Clock
	metrics *Metrics

	activeReaders atomic.Int32
	activeWriters atomic.Int32

	reads, writes, upgrades atomic.Int64
}

type Option func(h *Harness)

func WithLogger(log *zap.Logger) Option {
	return func(h *Harness) { h.log = log }
}

func WithClock(clock clockwork.Clock) Option {
	return func(h *Harness) { h.clock = clock }
}

func WithMetrics(m *Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// New returns a Harness for lock. cfg is assumed to be valid.
func New(lock rrwlock.ReentrantRWLock, cfg Config, opts ...Option) *Harness {
	h := &Harness{
		lock:  lock,
		cfg:   cfg,
		log:   zap.NewNop(),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return h
}

// Run executes cfg.Trials trials and stops at the first failing one.
func (h *Harness) Run(ctx context.Context) (Result, error) {
	var res Result
	start := h.clock.Now()
	for i := 0; i < h.cfg.Trials; i++ {
		elapsed, err := h.trial(ctx)
		if err != nil {
			h.log.Error("trial failed", zap.Int("trial", i), zap.Error(err))
			return h.result(res, start), fmt.Errorf("trial %d: %w", i, err)
		}
		res.Trials++
		if elapsed > res.Slowest {
			res.Slowest = elapsed
		}
		if h.cfg.LogEvery > 0 && i%h.cfg.LogEvery == 0 {
			h.log.Info("trial done", zap.Int("trial", i), zap.Duration("elapsed", elapsed))
		}
	}
	res = h.result(res, start)
	h.log.Info("run done",
		zap.Int("trials", res.Trials),
		zap.Duration("elapsed", res.Elapsed),
		zap.Duration("slowest", res.Slowest),
		zap.Int64("reads", res.Reads),
		zap.Int64("writes", res.Writes),
		zap.Int64("upgrades", res.Upgrades),
	)
	return res, nil
}

func (h *Harness) result(res Result, start time.Time) Result {
	res.Elapsed = h.clock.Since(start)
	res.Reads = h.reads.Load()
	res.Writes = h.writes.Load()
	res.Upgrades = h.upgrades.Load()
	return res
}

// trial starts cfg.Contenders readers and writers and waits for all of them.
func (h *Harness) trial(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.TrialTimeout)
	defer cancel()

	start := h.clock.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < h.cfg.Contenders; i++ {
		g.Go(func() error { return h.read(ctx, rrwlock.NewOwner()) })
		g.Go(func() error { return h.write(ctx, rrwlock.NewOwner()) })
	}
	err := g.Wait()
	elapsed := h.clock.Since(start)
	h.metrics.trialSeconds.Observe(elapsed.Seconds())
	return elapsed, err
}

func (h *Harness) read(ctx context.Context, o rrwlock.Owner) error {
	for d := 0; d < h.cfg.Depth; d++ {
		if err := h.lock.EnterReadContext(ctx, o); err != nil {
			h.exitRead(o, d)
			return fmt.Errorf("%w: reader: %w", ErrDeadlock, err)
		}
	}
	defer h.exitRead(o, h.cfg.Depth)

	h.activeReaders.Add(1)
	defer h.activeReaders.Add(-1)
	h.reads.Add(1)
	h.metrics.acquisitions.WithLabelValues(kindRead).Inc()

	if n := h.activeWriters.Load(); n != 0 {
		return h.violation("reader observed %d active writers", n)
	}
	if h.cfg.Upgrades && h.lock.TryEnterWrite(o) {
		defer h.lock.ExitWrite(o)
		return h.upgraded()
	}
	return nil
}

// upgraded checks exclusion while a reader holds its own upgrade.
func (h *Harness) upgraded() error {
	h.upgrades.Add(1)
	h.metrics.acquisitions.WithLabelValues(kindUpgrade).Inc()

	w := h.activeWriters.Add(1)
	defer h.activeWriters.Add(-1)
	if r := h.activeReaders.Load(); w != 1 || r != 1 {
		return h.violation("upgraded reader observed %d readers and %d writers", r, w)
	}
	return nil
}

func (h *Harness) write(ctx context.Context, o rrwlock.Owner) error {
	for d := 0; d < h.cfg.Depth; d++ {
		if err := h.lock.EnterWriteContext(ctx, o); err != nil {
			h.exitWrite(o, d)
			return fmt.Errorf("%w: writer: %w", ErrDeadlock, err)
		}
	}
	defer h.exitWrite(o, h.cfg.Depth)

	w := h.activeWriters.Add(1)
	defer h.activeWriters.Add(-1)
	h.writes.Add(1)
	h.metrics.acquisitions.WithLabelValues(kindWrite).Inc()

	if r := h.activeReaders.Load(); r != 0 || w != 1 {
		return h.violation("writer observed %d readers and %d writers", r, w)
	}
	return nil
}

func (h *Harness) exitRead(o rrwlock.Owner, n int) {
	for ; n > 0; n-- {
		h.lock.ExitRead(o)
	}
}

func (h *Harness) exitWrite(o rrwlock.Owner, n int) {
	for ; n > 0; n-- {
		h.lock.ExitWrite(o)
	}
}

func (h *Harness) violation(format string, args ...any) error {
	h.metrics.violations.Inc()
	return fmt.Errorf("%w: %s", ErrViolation, fmt.Sprintf(format, args...))
}
