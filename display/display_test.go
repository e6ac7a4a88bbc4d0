package display

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-scope/analysis"
	"github.com/RyanBlaney/sonido-scope/analysis/config"
	"github.com/RyanBlaney/sonido-scope/logging"
	"github.com/RyanBlaney/sonido-scope/queue"
)

type passThrough struct{}

func (passThrough) Reduce(f *analysis.Frame) []float64 { return f.Bins }

type testClock struct {
	now atomic.Int64
}

func (c *testClock) read() int64 { return c.now.Load() }

func newTestDisplay(t *testing.T, size int) (*Display, *testClock, *logging.CaptureLogger) {
	t.Helper()
	clock := &testClock{}
	clock.now.Store(10_000)
	logger := logging.NewCaptureLogger()

	d, err := New(size, config.DefaultConfig(), passThrough{}, WithClock(clock.read), WithLogger(logger))
	require.NoError(t, err)
	return d, clock, logger
}

func frame(time int64, bins ...float64) *analysis.Frame {
	return &analysis.Frame{Time: time, Bins: bins}
}

func TestApplyDecaysOrTakesNewMax(t *testing.T) {
	d, _, _ := newTestDisplay(t, 3)

	d.Apply([]float64{8, 2, 0})
	assert.Equal(t, []float64{8, 2, 0}, d.Levels())

	d.Apply([]float64{1, 3, 0})
	assert.Equal(t, []float64{4, 3, 0}, d.Levels())

	d.Apply([]float64{0, 0, 0, 99})
	assert.Equal(t, []float64{2, 1.5, 0}, d.Levels())
}

func TestUpdateDrainsOnlyDueFrames(t *testing.T) {
	d, clock, _ := newTestDisplay(t, 1)
	q := queue.New[*analysis.Frame](0)
	q.Push(frame(9_990, 4), frame(10_000, 2), frame(10_040, 100))

	delay, active := d.Update(q)
	assert.True(t, active)
	assert.Equal(t, 40*time.Millisecond, delay)
	// 4, then max(4*0.5, 2)
	assert.Equal(t, []float64{2}, d.Levels())
	assert.Equal(t, 1, q.Len())

	clock.now.Store(10_040)
	delay, active = d.Update(q)
	assert.True(t, active)
	assert.Equal(t, 100*time.Millisecond, delay)
	assert.Equal(t, []float64{100}, d.Levels())
	assert.Equal(t, uint64(1), d.Stats().Underruns)
}

func TestUpdateRetriesOnUnderrun(t *testing.T) {
	d, _, _ := newTestDisplay(t, 1)
	q := queue.New[*analysis.Frame](0)

	delay, active := d.Update(q)
	assert.True(t, active)
	assert.Equal(t, 100*time.Millisecond, delay)
}

func TestUpdateInactiveWithoutQueue(t *testing.T) {
	d, _, _ := newTestDisplay(t, 1)
	_, active := d.Update(nil)
	assert.False(t, active)
}

func TestUpdateSkipsStaleFrames(t *testing.T) {
	d, _, _ := newTestDisplay(t, 1)
	q := queue.New[*analysis.Frame](0)
	// consumer grace is 250 ms
	q.Push(frame(9_700, 50), frame(9_800, 3))

	d.Update(q)
	assert.Equal(t, []float64{3}, d.Levels())
	assert.Equal(t, uint64(1), d.Stats().Frames)
}

func TestUpdateNeverGoesBackInTime(t *testing.T) {
	d, clock, _ := newTestDisplay(t, 1)
	q := queue.New[*analysis.Frame](0)

	q.Push(frame(10_000, 1))
	d.Update(q)

	// arrives late with an earlier timestamp
	q.Push(frame(9_990, 50))
	clock.now.Store(10_010)
	d.Update(q)

	assert.Equal(t, []float64{1}, d.Levels())
	assert.Equal(t, uint64(1), d.Stats().Discarded)
}

func TestUpdateWarnsOnOverflow(t *testing.T) {
	d, _, logger := newTestDisplay(t, 1)
	q := queue.New[*analysis.Frame](2)
	d.Update(q)

	q.Push(frame(20_000, 1), frame(20_001, 1), frame(20_002, 1))
	d.Update(q)
	assert.Equal(t, 1, logger.Count(logging.WarnLevel))
}

func TestNewQueueResetsOrdering(t *testing.T) {
	d, _, _ := newTestDisplay(t, 1)

	first := queue.New[*analysis.Frame](0)
	first.Push(frame(10_000, 1))
	d.Update(first)

	second := queue.New[*analysis.Frame](0)
	second.Push(frame(9_900, 7))
	d.Update(second)

	assert.Equal(t, []float64{7}, d.Levels())
}

func TestRunStopsWhenAnalysisDisabled(t *testing.T) {
	d, _, _ := newTestDisplay(t, 2)
	q := queue.New[*analysis.Frame](0)
	q.Push(frame(9_000+800, 1, 2))

	var current atomic.Pointer[queue.Queue[*analysis.Frame]]
	current.Store(q)

	var rendered [][]float64
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := d.Run(ctx,
		func() *queue.Queue[*analysis.Frame] { return current.Load() },
		func(levels []float64) {
			rendered = append(rendered, levels)
			current.Store(nil)
		},
	)
	require.NoError(t, err)
	require.Len(t, rendered, 1)
	assert.Equal(t, []float64{1, 2}, rendered[0])
}

func TestRunStopsOnCancel(t *testing.T) {
	d, _, _ := newTestDisplay(t, 1)
	q := queue.New[*analysis.Frame](0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Run(ctx, func() *queue.Queue[*analysis.Frame] { return q }, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReset(t *testing.T) {
	d, _, _ := newTestDisplay(t, 2)
	d.Apply([]float64{1, 1})
	d.Reset()
	assert.Equal(t, []float64{0, 0}, d.Levels())
}

func TestDecibelsAndProminence(t *testing.T) {
	assert.Equal(t, -60.0, Decibels(0, -60))
	assert.InDelta(t, 20.0, Decibels(100, -60), 1e-9)
	assert.Equal(t, -60.0, Decibels(1e-9, -60))

	assert.InDelta(t, 1.0, Prominence([]float64{0, 5, 0}, 1), 1e-9)
	assert.InDelta(t, 0.0, Prominence([]float64{2, 2, 2}, 1), 1e-9)
	assert.Equal(t, 0.0, Prominence([]float64{2, 2, 2}, 0))
}

func TestNewValidates(t *testing.T) {
	_, err := New(0, config.DefaultConfig(), passThrough{})
	assert.Error(t, err)
	_, err = New(4, config.DefaultConfig(), nil)
	assert.Error(t, err)
}
