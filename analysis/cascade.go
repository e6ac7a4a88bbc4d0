package analysis

import (
	"fmt"

	"github.com/RyanBlaney/sonido-scope/algorithms/common"
	"github.com/RyanBlaney/sonido-scope/algorithms/filters"
	"github.com/RyanBlaney/sonido-scope/algorithms/spectral"
	"github.com/RyanBlaney/sonido-scope/algorithms/windowing"
	"github.com/RyanBlaney/sonido-scope/analysis/config"
	"github.com/RyanBlaney/sonido-scope/logging"
	"github.com/RyanBlaney/sonido-scope/queue"
)

// OctaveCascade runs same-size transforms over a chain of 4:1 decimated
// copies of the input, so band k covers two octaves below band k-1 at four
// times the frequency resolution.
//
// Band 0 collects windowSize fresh samples per cycle without overlap. Every
// cycle band k+1 slides left by a quarter of band k's fresh samples and fills
// the gap by decimating them, so deeper bands overlap heavily and still update
// every cycle.
type OctaveCascade struct {
	producer

	size      int
	input     *common.OverlapBuffer
	bands     []*common.OverlapBuffer // bands[0] is unused, input feeds band 0
	decimate  []*filters.HalfBand     // decimate[k] produces band k+1
	transform *spectral.Transform

	coeffs         []complex128
	magnitudeScale float64
}

// NewOctaveCascade creates a cascade analyzer that offers frames to q
func NewOctaveCascade(cfg *config.Config, q *queue.Queue[*Frame], opts ...Option) (*OctaveCascade, error) {
	o := buildOptions("octave_cascade", opts)
	p, err := newProducer(cfg, q, o)
	if err != nil {
		return nil, err
	}
	a := cfg.Analysis

	input, err := common.NewOverlapBuffer(a.WindowSize, a.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create band 0 window: %w", err)
	}

	oc := &OctaveCascade{
		producer:       p,
		size:           a.WindowSize,
		input:          input,
		bands:          make([]*common.OverlapBuffer, a.Bands),
		decimate:       make([]*filters.HalfBand, a.Bands-1),
		coeffs:         make([]complex128, a.WindowSize/2),
		magnitudeScale: a.MagnitudeScale,
	}
	for k := 1; k < a.Bands; k++ {
		// deeper bands slide by their fresh count, hop is informational only
		band, err := common.NewOverlapBuffer(a.WindowSize, a.WindowSize>>(2*k))
		if err != nil {
			return nil, fmt.Errorf("failed to create band %d window: %w", k, err)
		}
		oc.bands[k] = band
		oc.decimate[k-1] = filters.NewHalfBand()
	}

	window, err := windowing.New(a.WindowType, a.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create taper: %w", err)
	}
	backend, err := spectral.NewBackend(a.FFTBackend, a.WindowSize)
	if err != nil {
		return nil, err
	}
	if oc.transform, err = spectral.NewTransform(a.WindowSize, window, backend); err != nil {
		return nil, fmt.Errorf("failed to create transform: %w", err)
	}

	oc.logger.Debug("Octave cascade created", logging.Fields{
		"window_size": a.WindowSize,
		"bands":       a.Bands,
		"window_type": a.WindowType,
	})
	return oc, nil
}

// Configure sets the output format used for timestamps
func (oc *OctaveCascade) Configure(sampleRate, bufferFrames int) error {
	return oc.configure(sampleRate, bufferFrames)
}

// Feed mixes samples[offset:offset+length] to mono and runs one cascade cycle
// per windowSize input frames.
func (oc *OctaveCascade) Feed(samples []int16, offset, length int) error {
	if err := oc.checkFeed(samples, offset, length); err != nil {
		return err
	}

	now := oc.clock()
	end := offset + length
	for i := offset; i < end; i += 2 {
		if !oc.input.Push(oc.mono(samples[i], samples[i+1])) {
			continue
		}
		if err := oc.cycle(now, oc.timing.EstimateFrameTime(now, i-end)); err != nil {
			return err
		}
		oc.input.Advance()
	}
	return nil
}

// cycle transforms every band. headTime is the playback time of the newest
// input sample; band k's window centre lies size/2 * 4^k input samples
// earlier.
func (oc *OctaveCascade) cycle(nowMs, headTime int64) error {
	oc.prune(nowMs)

	sampleRate := float64(oc.timing.SampleRate())
	spectra := make([]BandSpectrum, len(oc.bands))

	source := oc.input.Samples()
	fresh := oc.size
	for k := range oc.bands {
		if k > 0 {
			fresh >>= 2
			dst := oc.bands[k].Slide(fresh)
			if err := oc.decimate[k-1].ProcessBlock(dst, source[len(source)-4*fresh:]); err != nil {
				return err
			}
			source = oc.bands[k].Samples()
		}

		spectrum, err := oc.power(source)
		if err != nil {
			return fmt.Errorf("band %d: %w", k, err)
		}
		spectra[k] = BandSpectrum{
			Band:       k,
			SampleRate: sampleRate / float64(int(1)<<(2*k)),
			Time:       headTime - oc.timing.WindowCentreMs(oc.size/2<<(2*k)),
			Spectrum:   spectrum,
		}
	}

	oc.queue.Offer(&Frame{Time: spectra[0].Time, Bands: spectra})
	oc.cycles++
	return nil
}

func (oc *OctaveCascade) power(samples []float64) ([]float64, error) {
	coeffs, err := oc.transform.Compute(oc.coeffs, samples)
	if err != nil {
		return nil, err
	}
	oc.coeffs = coeffs
	return spectral.Power(nil, coeffs, oc.magnitudeScale), nil
}

// Reset clears every band and the decimator state
func (oc *OctaveCascade) Reset() {
	oc.input.Reset()
	for k := 1; k < len(oc.bands); k++ {
		oc.bands[k].Reset()
		oc.decimate[k-1].Reset()
	}
	oc.reset()
}

// Bands returns the cascade depth
func (oc *OctaveCascade) Bands() int {
	return len(oc.bands)
}
