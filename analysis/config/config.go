package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-scope/algorithms/common"
	"github.com/RyanBlaney/sonido-scope/algorithms/spectral"
	"github.com/RyanBlaney/sonido-scope/algorithms/windowing"
)

// Strategy selects how spectra are refined into perceptual bins
type Strategy string

const (
	// StrategyPhaseVocoder refines a single resolution by comparing the phase
	// of two overlapping spectra.
	StrategyPhaseVocoder Strategy = "phase_vocoder"
	// StrategyOctaveCascade transforms a cascade of 4:1 decimated bands and
	// leaves merging to the consumer.
	StrategyOctaveCascade Strategy = "octave_cascade"
)

// AnalysisConfig configures the producer side of the pipeline
type AnalysisConfig struct {
	Strategy   Strategy             `json:"strategy"`
	WindowSize int                  `json:"window_size"` // samples per analysis window, power of two
	Overlap    int                  `json:"overlap"`     // new samples between cycles (phase vocoder)
	WindowType windowing.Type       `json:"window_type"`
	FFTBackend spectral.BackendName `json:"fft_backend"`

	// Perceptual scale
	MinFreq float64 `json:"min_freq"` // Hz at bin 0
	Octaves int     `json:"octaves"`
	SubBins int     `json:"sub_bins"` // bins per semitone

	// Octave cascade depth, band k runs at sampleRate/4^k
	Bands int `json:"bands"`

	MagnitudeScale float64 `json:"magnitude_scale"`
	Epsilon        float64 `json:"epsilon"`

	RemoveDC   bool    `json:"remove_dc"`
	DCCutoffHz float64 `json:"dc_cutoff_hz"`
}

// QueueConfig configures the frame queue and its staleness rules
type QueueConfig struct {
	Capacity int `json:"capacity"`
	// ProducerGraceMs < 0 uses the current output buffering latency
	ProducerGraceMs int64 `json:"producer_grace_ms"`
	ConsumerGraceMs int64 `json:"consumer_grace_ms"`
}

// DisplayConfig configures the consumer contract
type DisplayConfig struct {
	DecayFactor   float64       `json:"decay_factor"`
	RetryInterval time.Duration `json:"retry_interval"`
}

// Config is the complete pipeline configuration
type Config struct {
	Analysis AnalysisConfig `json:"analysis"`
	Queue    QueueConfig    `json:"queue"`
	Display  DisplayConfig  `json:"display"`
	LogLevel string         `json:"log_level"`
}

// DefaultConfig returns the phase vocoder setup: 2048-sample Hamming window
// re-analyzed every 768 samples, 3 bins per semitone over 9 octaves from A0.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Strategy:       StrategyPhaseVocoder,
			WindowSize:     2048,
			Overlap:        768,
			WindowType:     windowing.TypeHamming,
			FFTBackend:     spectral.BackendGonum,
			MinFreq:        27.5,
			Octaves:        9,
			SubBins:        3,
			Bands:          4,
			MagnitudeScale: 1.0 / 65536.0,
			Epsilon:        common.Epsilon,
			RemoveDC:       false,
			DCCutoffHz:     8,
		},
		Queue: QueueConfig{
			Capacity:        256,
			ProducerGraceMs: -1,
			ConsumerGraceMs: 250,
		},
		Display: DisplayConfig{
			DecayFactor:   0.5,
			RetryInterval: 100 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// ConfigForStrategy returns defaults tuned for a strategy
func ConfigForStrategy(strategy Strategy) *Config {
	cfg := DefaultConfig()

	switch strategy {
	case StrategyOctaveCascade:
		cfg.Analysis.Strategy = StrategyOctaveCascade
		cfg.Analysis.WindowSize = 1024
		cfg.Analysis.Overlap = 1024
		cfg.Analysis.WindowType = windowing.TypeRectangular
		cfg.Analysis.MinFreq = 55
		cfg.Analysis.Octaves = 8
		cfg.Queue.Capacity = 512

	case StrategyPhaseVocoder:
		// defaults
	}

	return cfg
}

var (
	ErrUnknownStrategy = errors.New("unknown analysis strategy")
	ErrInvalidWindow   = errors.New("invalid analysis window")
	ErrInvalidScale    = errors.New("invalid perceptual scale")
	ErrInvalidDisplay  = errors.New("invalid display settings")
)

// Validate checks the configuration for internal consistency
func (c *Config) Validate() error {
	a := c.Analysis

	switch a.Strategy {
	case StrategyPhaseVocoder, StrategyOctaveCascade:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, a.Strategy)
	}

	if !common.IsPowerOfTwo(a.WindowSize) || a.WindowSize < 16 {
		return fmt.Errorf("%w: size %d must be a power of two >= 16", ErrInvalidWindow, a.WindowSize)
	}
	if a.Strategy == StrategyPhaseVocoder && (a.Overlap <= 0 || a.Overlap >= a.WindowSize) {
		return fmt.Errorf("%w: overlap %d must be in [1, %d)", ErrInvalidWindow, a.Overlap, a.WindowSize)
	}
	if a.Strategy == StrategyOctaveCascade {
		if a.Bands < 1 {
			return fmt.Errorf("%w: bands must be >= 1", ErrInvalidWindow)
		}
		// every band must receive a whole number of fresh samples per cycle
		if a.WindowSize%pow4(a.Bands-1) != 0 || a.WindowSize/pow4(a.Bands-1) < 1 {
			return fmt.Errorf("%w: size %d cannot feed %d bands", ErrInvalidWindow, a.WindowSize, a.Bands)
		}
	}
	if _, err := windowing.ParseType(string(a.WindowType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	switch a.FFTBackend {
	case spectral.BackendGonum, spectral.BackendGoDSP:
	default:
		return fmt.Errorf("%w: unknown fft backend %q", ErrInvalidWindow, a.FFTBackend)
	}

	if a.MinFreq <= 0 || a.Octaves <= 0 || a.SubBins <= 0 {
		return fmt.Errorf("%w: min_freq=%f octaves=%d sub_bins=%d", ErrInvalidScale, a.MinFreq, a.Octaves, a.SubBins)
	}
	if a.MagnitudeScale <= 0 || a.Epsilon <= 0 {
		return fmt.Errorf("%w: magnitude scale and epsilon must be positive", ErrInvalidScale)
	}

	d := c.Display
	if d.DecayFactor <= 0 || d.DecayFactor >= 1 {
		return fmt.Errorf("%w: decay factor %f must be in (0, 1)", ErrInvalidDisplay, d.DecayFactor)
	}
	if d.RetryInterval <= 0 {
		return fmt.Errorf("%w: retry interval must be positive", ErrInvalidDisplay)
	}
	if c.Queue.ConsumerGraceMs < 0 {
		return fmt.Errorf("%w: consumer grace must be >= 0", ErrInvalidDisplay)
	}

	return nil
}

// BinCount returns the number of perceptual bins
func (a AnalysisConfig) BinCount() int {
	return 12 * a.Octaves * a.SubBins
}

func pow4(k int) int {
	return 1 << (2 * k)
}
