// Package display implements the render side of the analysis pipeline: it
// drains due frames in playback order and keeps per-bin levels that decay
// exponentially between updates.
package display

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-scope/algorithms/common"
	"github.com/RyanBlaney/sonido-scope/analysis"
	"github.com/RyanBlaney/sonido-scope/analysis/config"
	"github.com/RyanBlaney/sonido-scope/logging"
	"github.com/RyanBlaney/sonido-scope/queue"
)

// Reducer converts a frame into perceptual bins
type Reducer interface {
	Reduce(frame *analysis.Frame) []float64
}

// Option customizes a Display
type Option func(*Display)

// WithLogger replaces the component logger
func WithLogger(logger logging.Logger) Option {
	return func(d *Display) {
		d.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(clock analysis.Clock) Option {
	return func(d *Display) {
		d.clock = clock
	}
}

// Stats reports consumer counters
type Stats struct {
	Updates   uint64
	Frames    uint64 // frames applied to the levels
	Discarded uint64 // frames behind an already drained one
	Underruns uint64
}

// Display holds the smoothed levels shown to the user.
//
// It is not safe for concurrent use; one render loop owns it.
type Display struct {
	decay   float64
	retry   time.Duration
	graceMs int64

	reducer Reducer
	clock   analysis.Clock
	logger  logging.Logger

	levels []float64

	source      *queue.Queue[*analysis.Frame]
	lastTime    int64
	drained     bool
	lastDropped uint64

	stats Stats
}

// New creates a display of size bins. reducer turns frames into bins.
func New(size int, cfg *config.Config, reducer Reducer, opts ...Option) (*Display, error) {
	if size <= 0 {
		return nil, errors.New("display size must be positive")
	}
	if reducer == nil {
		return nil, errors.New("reducer cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Display{
		decay:   cfg.Display.DecayFactor,
		retry:   cfg.Display.RetryInterval,
		graceMs: cfg.Queue.ConsumerGraceMs,
		reducer: reducer,
		clock:   analysis.SystemClock,
		levels:  make([]float64, size),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.WithFields(logging.Fields{
			"component": "display",
			"bins":      size,
		})
	}
	return d, nil
}

// Apply folds one frame's bins into the levels:
// level = max(level*decay, bin). Extra bins on either side are ignored.
func (d *Display) Apply(bins []float64) {
	n := min(len(bins), len(d.levels))
	for i := range n {
		d.levels[i] = max(d.levels[i]*d.decay, bins[i])
	}
}

// Update drains every frame of q whose playback time has arrived and returns
// how long to wait before the next call. active is false when q is nil, which
// means analysis has been disabled and no further calls should be scheduled.
func (d *Display) Update(q *queue.Queue[*analysis.Frame]) (delay time.Duration, active bool) {
	if q == nil {
		return 0, false
	}
	if q != d.source {
		d.attach(q)
	}
	d.stats.Updates++

	now := d.clock()
	if n := q.PruneStale(now, d.graceMs); n > 0 {
		d.logger.Debug("Skipped stale frames", logging.Fields{
			"skipped":  n,
			"grace_ms": d.graceMs,
		})
	}

	for {
		frame, ok := q.PopDue(now)
		if !ok {
			break
		}
		if d.drained && frame.Time < d.lastTime {
			d.stats.Discarded++
			continue
		}
		d.lastTime = frame.Time
		d.drained = true
		d.Apply(d.reducer.Reduce(frame))
		d.stats.Frames++
	}

	d.checkDropped(q)

	next, ok := q.Peek()
	if !ok {
		d.stats.Underruns++
		d.logger.Debug("Data underrun", logging.Fields{
			"retry": d.retry,
		})
		return d.retry, true
	}
	return max(time.Duration(next.Time-now)*time.Millisecond, 0), true
}

func (d *Display) attach(q *queue.Queue[*analysis.Frame]) {
	d.source = q
	d.drained = false
	d.lastTime = 0
	d.lastDropped = q.Stats().Dropped
}

// checkDropped reports frames the queue evicted at capacity since last time
func (d *Display) checkDropped(q *queue.Queue[*analysis.Frame]) {
	dropped := q.Stats().Dropped
	if dropped > d.lastDropped {
		d.logger.Warn("Frame queue overflowed", logging.Fields{
			"dropped": dropped - d.lastDropped,
		})
	}
	d.lastDropped = dropped
}

// Run calls Update on a timer until ctx is done or source reports no queue.
// render receives a copy of the levels after every update that applied at
// least one frame.
func (d *Display) Run(ctx context.Context, source func() *queue.Queue[*analysis.Frame], render func(levels []float64)) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		applied := d.stats.Frames
		delay, active := d.Update(source())
		if !active {
			d.logger.Info("Analysis disabled, stopping updates")
			return nil
		}
		if render != nil && d.stats.Frames != applied {
			render(d.Levels())
		}
		timer.Reset(delay)
	}
}

// Levels returns a copy of the current levels
func (d *Display) Levels() []float64 {
	out := make([]float64, len(d.levels))
	copy(out, d.levels)
	return out
}

// Reset clears the levels, e.g. when a new track starts
func (d *Display) Reset() {
	clear(d.levels)
	d.drained = false
	d.lastTime = 0
}

// Stats returns the consumer counters
func (d *Display) Stats() Stats {
	return d.stats
}

// Decibels converts a linear energy level to dB, clamped below at floorDB
func Decibels(level, floorDB float64) float64 {
	if level <= common.Epsilon {
		return floorDB
	}
	return max(10*math.Log10(level), floorDB)
}

// Prominence measures how much bin i stands out from its two neighbours, in
// [0, 1]. A lone peak approaches 1 and a flat spectrum gives 0.
func Prominence(levels []float64, i int) float64 {
	if i <= 0 || i >= len(levels)-1 {
		return 0
	}
	hump := 2 * levels[i] / (levels[i-1] + levels[i+1] + common.Epsilon)
	return common.Clamp(hump-1, 0, 1)
}
