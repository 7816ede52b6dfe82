package stress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/thetarby/rrwlock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun(t *testing.T) {
	for _, tc := range []struct {
		name     string
		depth    int
		upgrades bool
	}{
		{"plain", 1, false},
		{"recursive", 3, false},
		{"upgrades", 2, true},
	} {
		for _, variant := range Variants() {
			t.Run(tc.name+"/"+variant, func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.Variant = variant
				cfg.Depth = tc.depth
				cfg.Upgrades = tc.upgrades
				cfg.LogEvery = 100
				if testing.Short() {
					cfg.Trials = 20
				}
				require.NoError(t, cfg.Validate())

				lock, err := NewLock(variant)
				require.NoError(t, err)

				reg := prometheus.NewRegistry()
				m := NewMetrics(reg)
				h := New(lock, cfg, WithLogger(zaptest.NewLogger(t)), WithMetrics(m))

				res, err := h.Run(context.Background())
				require.NoError(t, err)

				want := int64(cfg.Trials * cfg.Contenders)
				assert.Equal(t, cfg.Trials, res.Trials)
				assert.Equal(t, want, res.Reads)
				assert.Equal(t, want, res.Writes)
				if !tc.upgrades {
					assert.Zero(t, res.Upgrades)
				}
				assert.Equal(t, float64(want), testutil.ToFloat64(m.acquisitions.WithLabelValues(kindWrite)))
				assert.Zero(t, testutil.ToFloat64(m.violations))

				require.True(t, lock.Stats().Free())
				lock.Close()
			})
		}
	}
}

func TestRunFakeClock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trials = 3
	lock := rrwlock.New()

	res, err := New(lock, cfg, WithClock(clockwork.NewFakeClock())).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Trials: 3, Reads: 12, Writes: 12}, res)
}

func TestRunDeadlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrialTimeout = 50 * time.Millisecond
	lock := rrwlock.New2()

	holder := rrwlock.NewOwner()
	lock.EnterWrite(holder)
	defer lock.ExitWrite(holder)

	res, err := New(lock, cfg).Run(context.Background())
	require.ErrorIs(t, err, ErrDeadlock)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, res.Trials)

	// Nothing the contenders entered may be left behind.
	st := lock.Stats()
	assert.Equal(t, holder, st.Writer)
	assert.Equal(t, 1, st.WriterDepth)
	assert.Empty(t, st.Readers)
	assert.Zero(t, st.WaitingWriters)
}

// handshakeLock admits everybody. The writer is let in only while the
// upgrading reader is inside, and the reader stays inside until the writer
// has left, so the two always overlap.
type handshakeLock struct {
	rrwlock.ReentrantRWLock

	readerIn   chan struct{}
	writerDone chan struct{}
}

func (l *handshakeLock) EnterReadContext(context.Context, rrwlock.Owner) error { return nil }
func (l *handshakeLock) ExitRead(rrwlock.Owner)                                {}

func (l *handshakeLock) EnterWriteContext(ctx context.Context, _ rrwlock.Owner) error {
	select {
	case <-l.readerIn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *handshakeLock) ExitWrite(rrwlock.Owner) { close(l.writerDone) }

func (l *handshakeLock) TryEnterWrite(rrwlock.Owner) bool {
	close(l.readerIn)
	<-l.writerDone
	return false
}

func TestRunViolation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Contenders = 1
	cfg.Trials = 1
	cfg.Upgrades = true

	lock := &handshakeLock{
		readerIn:   make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	m := NewMetrics(prometheus.NewRegistry())

	_, err := New(lock, cfg, WithMetrics(m), WithLogger(zaptest.NewLogger(t))).Run(context.Background())
	require.ErrorIs(t, err, ErrViolation)
	assert.False(t, errors.Is(err, ErrDeadlock))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.violations))
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(c *Config)
	}{
		{"contenders", func(c *Config) { c.Contenders = 0 }},
		{"trials", func(c *Config) { c.Trials = -1 }},
		{"depth", func(c *Config) { c.Depth = 0 }},
		{"timeout", func(c *Config) { c.TrialTimeout = 0 }},
		{"log every", func(c *Config) { c.LogEvery = -1 }},
		{"variant", func(c *Config) { c.Variant = "buggy" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}
