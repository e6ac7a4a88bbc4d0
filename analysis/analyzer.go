package analysis

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-scope/algorithms/filters"
	"github.com/RyanBlaney/sonido-scope/analysis/config"
	"github.com/RyanBlaney/sonido-scope/logging"
	"github.com/RyanBlaney/sonido-scope/queue"
)

var (
	ErrOddLength         = errors.New("interleaved stereo input must have an even length")
	ErrOutOfRange        = errors.New("sample range outside input slice")
	ErrNotConfigured     = errors.New("output format not configured")
	ErrInvalidSampleRate = errors.New("invalid sample rate")
	ErrInvalidSize       = errors.New("invalid size")
)

// Analyzer turns interleaved 16-bit stereo PCM into queued frames.
//
// Configure and Feed are called from the audio producer only and never block
// on the consumer.
type Analyzer interface {
	// Configure (re)sets the output format used for timestamps
	Configure(sampleRate, bufferFrames int) error
	// Feed consumes samples[offset:offset+length]
	Feed(samples []int16, offset, length int) error
	// Reset drops accumulated audio and spectral history
	Reset()
}

// Option customizes an analyzer or session
type Option func(*options)

type options struct {
	logger logging.Logger
	clock  Clock
}

// WithLogger replaces the component logger
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.WithFields(logging.Fields{
			"component": component,
		})
	}
	return o
}

// New creates the analyzer selected by cfg.Analysis.Strategy
func New(cfg *config.Config, q *queue.Queue[*Frame], opts ...Option) (Analyzer, error) {
	switch cfg.Analysis.Strategy {
	case config.StrategyPhaseVocoder:
		return NewPhaseVocoder(cfg, q, opts...)
	case config.StrategyOctaveCascade:
		return NewOctaveCascade(cfg, q, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStrategy, cfg.Analysis.Strategy)
	}
}

// producer holds what both strategies share: timing, the output queue, the
// staleness rule and the mono mixdown.
type producer struct {
	timing  Timing
	queue   *queue.Queue[*Frame]
	clock   Clock
	logger  logging.Logger
	graceMs int64

	dc       *filters.DCRemoval
	dcCutoff float64

	cycles uint64
}

func newProducer(cfg *config.Config, q *queue.Queue[*Frame], o options) (producer, error) {
	if q == nil {
		return producer{}, errors.New("frame queue cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return producer{}, err
	}

	p := producer{
		queue:   q,
		clock:   o.clock,
		logger:  o.logger,
		graceMs: cfg.Queue.ProducerGraceMs,
	}
	if cfg.Analysis.RemoveDC {
		p.dc = filters.NewDCRemoval()
		p.dcCutoff = cfg.Analysis.DCCutoffHz
	}
	return p, nil
}

func (p *producer) configure(sampleRate, bufferFrames int) error {
	if err := p.timing.Configure(sampleRate, bufferFrames); err != nil {
		return err
	}
	if p.dc != nil {
		p.dc.SetCutoffFrequency(sampleRate, p.dcCutoff)
		p.dc.Reset()
	}

	p.logger.Info("Output format configured", logging.Fields{
		"sample_rate":   sampleRate,
		"buffer_frames": bufferFrames,
		"buffering_ms":  p.timing.BufferingMs(),
	})
	return nil
}

// checkFeed rejects malformed producer input before any state changes
func (p *producer) checkFeed(samples []int16, offset, length int) error {
	if !p.timing.Configured() {
		return ErrNotConfigured
	}
	if length%2 != 0 {
		return fmt.Errorf("%w: %d", ErrOddLength, length)
	}
	if offset < 0 || length < 0 || offset+length > len(samples) {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfRange, offset, offset+length, len(samples))
	}
	return nil
}

// mono mixes one stereo frame down by summing both channels
func (p *producer) mono(left, right int16) float64 {
	m := float64(left) + float64(right)
	if p.dc != nil {
		m = p.dc.Process(m)
	}
	return m
}

// prune drops frames the consumer has fallen too far behind on. It skips the
// work entirely when the consumer holds the lock.
func (p *producer) prune(nowMs int64) {
	grace := p.graceMs
	if grace < 0 {
		grace = p.timing.BufferingMs()
	}
	if n, ok := p.queue.TryPruneStale(nowMs, grace); ok && n > 0 {
		p.logger.Debug("Pruned stale frames", logging.Fields{
			"pruned":   n,
			"grace_ms": grace,
		})
	}
}

func (p *producer) reset() {
	if p.dc != nil {
		p.dc.Reset()
	}
	p.cycles = 0
}
