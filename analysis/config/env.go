package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/RyanBlaney/sonido-scope/algorithms/spectral"
	"github.com/RyanBlaney/sonido-scope/algorithms/windowing"
)

const envPrefix = "SONIDO_"

// envSource resolves keys from the process environment first and the parsed
// .env files second.
type envSource struct {
	file map[string]string
	errs []error
}

func (e *envSource) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v, true
	}
	v, ok := e.file[envPrefix+key]
	return v, ok && v != ""
}

func (e *envSource) envStr(key, fallback string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return fallback
}

func (e *envSource) envInt(key string, fallback int) int {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return fallback
		}
		return n
	}
	return fallback
}

func (e *envSource) envInt64(key string, fallback int64) int64 {
	return int64(e.envInt(key, int(fallback)))
}

func (e *envSource) envFloat(key string, fallback float64) float64 {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return fallback
		}
		return f
	}
	return fallback
}

func (e *envSource) envBool(key string, fallback bool) bool {
	if v, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
			return fallback
		}
		return b
	}
	return fallback
}

// LoadEnv builds a Config from SONIDO_* variables. Values come from the
// process environment, then from the given .env files, then from the strategy
// defaults. With no files, a .env in the working directory is read if present.
func LoadEnv(files ...string) (*Config, error) {
	src := &envSource{file: map[string]string{}}

	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		values, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("failed to read env files: %w", err)
		}
		src.file = values
	}

	cfg := ConfigForStrategy(Strategy(src.envStr("STRATEGY", string(StrategyPhaseVocoder))))
	a := &cfg.Analysis
	a.Strategy = Strategy(src.envStr("STRATEGY", string(a.Strategy)))
	a.WindowSize = src.envInt("WINDOW_SIZE", a.WindowSize)
	a.Overlap = src.envInt("OVERLAP", a.Overlap)
	a.WindowType = windowing.Type(src.envStr("WINDOW_TYPE", string(a.WindowType)))
	a.FFTBackend = spectral.BackendName(src.envStr("FFT_BACKEND", string(a.FFTBackend)))
	a.MinFreq = src.envFloat("MIN_FREQ", a.MinFreq)
	a.Octaves = src.envInt("OCTAVES", a.Octaves)
	a.SubBins = src.envInt("SUB_BINS", a.SubBins)
	a.Bands = src.envInt("BANDS", a.Bands)
	a.RemoveDC = src.envBool("REMOVE_DC", a.RemoveDC)
	a.DCCutoffHz = src.envFloat("DC_CUTOFF_HZ", a.DCCutoffHz)

	q := &cfg.Queue
	q.Capacity = src.envInt("QUEUE_CAPACITY", q.Capacity)
	q.ProducerGraceMs = src.envInt64("PRODUCER_GRACE_MS", q.ProducerGraceMs)
	q.ConsumerGraceMs = src.envInt64("CONSUMER_GRACE_MS", q.ConsumerGraceMs)

	d := &cfg.Display
	d.DecayFactor = src.envFloat("DECAY", d.DecayFactor)
	d.RetryInterval = time.Duration(src.envInt("RETRY_MS", int(d.RetryInterval/time.Millisecond))) * time.Millisecond

	cfg.LogLevel = src.envStr("LOG_LEVEL", cfg.LogLevel)

	if len(src.errs) > 0 {
		return nil, errors.Join(src.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
