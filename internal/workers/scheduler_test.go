package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketregime/pkg/errors"
)

type stubWorker struct {
	*BaseWorker
	runs  atomic.Int32
	runFn func(ctx context.Context) error
}

func newStubWorker(name string, interval time.Duration, enabled bool) *stubWorker {
	return &stubWorker{BaseWorker: NewBaseWorker(name, interval, enabled)}
}

func (w *stubWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	if w.runFn != nil {
		return w.runFn(ctx)
	}
	return nil
}

func TestScheduler_RunsImmediatelyAndOnTicker(t *testing.T) {
	scheduler := NewScheduler()
	worker := newStubWorker("regime", 50*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	assert.Eventually(t, func() bool { return worker.runs.Load() >= 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())
}

func TestScheduler_SkipsDisabledWorker(t *testing.T) {
	scheduler := NewScheduler()
	enabled := newStubWorker("enabled", 50*time.Millisecond, true)
	disabled := newStubWorker("disabled", 50*time.Millisecond, false)
	scheduler.RegisterWorker(enabled)
	scheduler.RegisterWorker(disabled)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool { return enabled.runs.Load() > 0 }, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Equal(t, int32(0), disabled.runs.Load())
}

func TestScheduler_SurvivesFailingAndPanickingWorkers(t *testing.T) {
	scheduler := NewScheduler()

	failing := newStubWorker("failing", 20*time.Millisecond, true)
	failing.runFn = func(context.Context) error { return errors.ErrUnavailable }

	panicking := newStubWorker("panicking", 20*time.Millisecond, true)
	panicking.runFn = func(context.Context) error { panic("boom") }

	scheduler.RegisterWorker(failing)
	scheduler.RegisterWorker(panicking)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return failing.runs.Load() >= 2 && panicking.runs.Load() >= 2
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())
}

func TestScheduler_StopAfterContextCancellation(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newStubWorker("regime", 50*time.Millisecond, true))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	cancel()

	require.NoError(t, scheduler.Stop())
}

func TestScheduler_ShutdownTimeout(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.SetShutdownTimeout(20 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{})
	var once atomic.Bool
	slow := newStubWorker("slow", time.Hour, true)
	slow.runFn = func(context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-release
		return nil
	}
	scheduler.RegisterWorker(slow)

	require.NoError(t, scheduler.Start(context.Background()))
	<-started

	err := scheduler.Stop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestScheduler_StartTwiceAndStopUnstarted(t *testing.T) {
	scheduler := NewScheduler()
	assert.Error(t, scheduler.Stop())

	scheduler.RegisterWorker(newStubWorker("regime", time.Hour, true))
	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))

	scheduler.RegisterWorker(newStubWorker("late", time.Hour, true))
	assert.Len(t, scheduler.GetWorkers(), 1, "registration after start is ignored")

	require.NoError(t, scheduler.Stop())
}

func TestBaseWorker_Health(t *testing.T) {
	w := NewBaseWorker("regime", time.Minute, true)

	w.Record(nil, 2*time.Second)
	w.Record(errors.ErrUnavailable, 4*time.Second)

	h := w.Health()
	assert.Equal(t, int64(2), h.RunCount)
	assert.Equal(t, int64(1), h.ErrorCount)
	assert.Equal(t, 3*time.Second, h.AvgDuration)
	assert.True(t, errors.Is(h.LastError, errors.ErrUnavailable))
	assert.True(t, h.Enabled)

	w.SetEnabled(false)
	assert.False(t, w.Enabled())
}
