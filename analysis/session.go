package analysis

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-scope/algorithms/chroma"
	"github.com/RyanBlaney/sonido-scope/analysis/config"
	"github.com/RyanBlaney/sonido-scope/logging"
	"github.com/RyanBlaney/sonido-scope/queue"
)

type pipeline struct {
	analyzer Analyzer
	queue    *queue.Queue[*Frame]
	id       uint64
}

// Session ties an analyzer and its queue to the lifetime of one track.
//
// Start publishes a fresh pipeline and Stop withdraws it. The producer calls
// Feed and SetOutputFormat, the consumer polls Queue, and a nil queue tells
// it that analysis is disabled.
type Session struct {
	cfg    *config.Config
	opts   []Option
	logger logging.Logger
	scale  *chroma.NoteScale

	mu           sync.Mutex // serializes Start, Stop and SetOutputFormat
	sampleRate   int
	bufferFrames int
	started      uint64

	active atomic.Pointer[pipeline]
}

// NewSession validates cfg and returns a stopped session
func NewSession(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	scale, err := chroma.NewNoteScale(cfg.Analysis.MinFreq, cfg.Analysis.Octaves, cfg.Analysis.SubBins)
	if err != nil {
		return nil, err
	}

	o := buildOptions("analysis_session", opts)
	return &Session{
		cfg:    cfg,
		opts:   opts,
		logger: o.logger,
		scale:  scale,
	}, nil
}

// SetOutputFormat records the output device format and reconfigures the
// running analyzer, if any.
func (s *Session) SetOutputFormat(sampleRate, bufferFrames int) error {
	var timing Timing
	if err := timing.Configure(sampleRate, bufferFrames); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sampleRate = sampleRate
	s.bufferFrames = bufferFrames
	if p := s.active.Load(); p != nil {
		return p.analyzer.Configure(sampleRate, bufferFrames)
	}
	return nil
}

// Start begins analysis for a new track and returns the queue the consumer
// should drain. Any running pipeline is replaced.
func (s *Session) Start() (*queue.Queue[*Frame], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := queue.New[*Frame](s.cfg.Queue.Capacity)
	analyzer, err := New(s.cfg, q, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	if s.sampleRate > 0 {
		if err := analyzer.Configure(s.sampleRate, s.bufferFrames); err != nil {
			return nil, err
		}
	}

	s.started++
	s.active.Store(&pipeline{analyzer: analyzer, queue: q, id: s.started})

	s.logger.Info("Analysis started", logging.Fields{
		"strategy": s.cfg.Analysis.Strategy,
		"pipeline": s.started,
	})
	return q, nil
}

// Stop disables analysis. Later Feed calls are no-ops and Queue returns nil.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.active.Swap(nil); p != nil {
		stats := p.queue.Stats()
		s.logger.Info("Analysis stopped", logging.Fields{
			"pipeline": p.id,
			"pushed":   stats.Pushed,
			"popped":   stats.Popped,
			"pruned":   stats.Pruned,
			"dropped":  stats.Dropped,
		})
	}
}

// Feed forwards PCM to the running analyzer. With analysis stopped it does
// nothing, but the input is still checked.
func (s *Session) Feed(samples []int16, offset, length int) error {
	p := s.active.Load()
	if p == nil {
		if length%2 != 0 {
			return fmt.Errorf("%w: %d", ErrOddLength, length)
		}
		return nil
	}
	return p.analyzer.Feed(samples, offset, length)
}

// Queue returns the current frame queue, or nil when analysis is disabled
func (s *Session) Queue() *queue.Queue[*Frame] {
	if p := s.active.Load(); p != nil {
		return p.queue
	}
	return nil
}

// Running reports whether a pipeline is active
func (s *Session) Running() bool {
	return s.active.Load() != nil
}

// Scale returns the note scale frames are rendered on
func (s *Session) Scale() *chroma.NoteScale {
	return s.scale
}

// Merger returns a reducer that turns this session's frames into bins
func (s *Session) Merger() *BandMerger {
	return NewBandMerger(s.scale)
}

// Config returns the session configuration
func (s *Session) Config() *config.Config {
	return s.cfg
}
