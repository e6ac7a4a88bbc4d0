package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-scope/algorithms/chroma"
	"github.com/RyanBlaney/sonido-scope/algorithms/common"
	"github.com/RyanBlaney/sonido-scope/algorithms/spectral"
	"github.com/RyanBlaney/sonido-scope/algorithms/windowing"
	"github.com/RyanBlaney/sonido-scope/analysis/config"
	"github.com/RyanBlaney/sonido-scope/logging"
	"github.com/RyanBlaney/sonido-scope/queue"
)

// PhaseVocoder analyzes one resolution and sharpens each FFT bin's frequency
// from the phase advance between two windows hop samples apart.
//
// A stationary sinusoid at f Hz advances by 2*pi*f*hop/fs radians between the
// windows. Bin i expects the advance of its own centre frequency (zerobin);
// the difference, unwrapped into (-pi, pi], is the offset from the centre in
// units of 2*pi*hop/N.
type PhaseVocoder struct {
	producer

	size int
	hop  int

	buffer    *common.OverlapBuffer
	transform *spectral.Transform
	scale     *chroma.NoteScale

	// spectra[active] holds the most recent transform. Only Feed toggles it.
	spectra [2][]complex128
	active  int

	magnitudeScale float64
	epsilon        float64
}

// NewPhaseVocoder creates a phase vocoder analyzer that offers frames to q
func NewPhaseVocoder(cfg *config.Config, q *queue.Queue[*Frame], opts ...Option) (*PhaseVocoder, error) {
	o := buildOptions("phase_vocoder", opts)
	p, err := newProducer(cfg, q, o)
	if err != nil {
		return nil, err
	}
	a := cfg.Analysis

	buffer, err := common.NewOverlapBuffer(a.WindowSize, a.Overlap)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis window: %w", err)
	}
	window, err := windowing.New(a.WindowType, a.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create taper: %w", err)
	}
	backend, err := spectral.NewBackend(a.FFTBackend, a.WindowSize)
	if err != nil {
		return nil, err
	}
	transform, err := spectral.NewTransform(a.WindowSize, window, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create transform: %w", err)
	}
	scale, err := chroma.NewNoteScale(a.MinFreq, a.Octaves, a.SubBins)
	if err != nil {
		return nil, fmt.Errorf("failed to create note scale: %w", err)
	}

	pv := &PhaseVocoder{
		producer:       p,
		size:           a.WindowSize,
		hop:            a.Overlap,
		buffer:         buffer,
		transform:      transform,
		scale:          scale,
		magnitudeScale: a.MagnitudeScale,
		epsilon:        a.Epsilon,
	}
	pv.spectra[0] = make([]complex128, a.WindowSize/2)
	pv.spectra[1] = make([]complex128, a.WindowSize/2)

	pv.logger.Debug("Phase vocoder created", logging.Fields{
		"window_size": a.WindowSize,
		"overlap":     a.Overlap,
		"window_type": a.WindowType,
		"bins":        scale.Len(),
	})
	return pv, nil
}

// Configure sets the output format used for timestamps
func (pv *PhaseVocoder) Configure(sampleRate, bufferFrames int) error {
	return pv.configure(sampleRate, bufferFrames)
}

// Feed mixes samples[offset:offset+length] to mono and analyzes every window
// that fills up. Each completed window yields one frame.
func (pv *PhaseVocoder) Feed(samples []int16, offset, length int) error {
	if err := pv.checkFeed(samples, offset, length); err != nil {
		return err
	}

	now := pv.clock()
	end := offset + length
	for i := offset; i < end; i += 2 {
		if !pv.buffer.Push(pv.mono(samples[i], samples[i+1])) {
			continue
		}

		frameTime := pv.timing.EstimateFrameTime(now, i-end) - pv.timing.WindowCentreMs(pv.size/2)
		if err := pv.analyze(now, frameTime); err != nil {
			return err
		}
		pv.buffer.Advance()
	}
	return nil
}

func (pv *PhaseVocoder) analyze(nowMs, frameTime int64) error {
	pv.prune(nowMs)

	next := 1 - pv.active
	current, err := pv.transform.Compute(pv.spectra[next], pv.buffer.Samples())
	if err != nil {
		return err
	}
	pv.spectra[next] = current
	previous := pv.spectra[pv.active]
	pv.active = next

	bins := make([]float64, pv.scale.Len())
	pv.refine(bins, previous, current)

	pv.queue.Offer(&Frame{Time: frameTime, Bins: bins})
	pv.cycles++
	return nil
}

// refine distributes the magnitude of bins 1 <= i < N/2-1 onto the note
// scale at their phase-corrected frequencies.
func (pv *PhaseVocoder) refine(bins []float64, previous, current []complex128) {
	n := float64(pv.size)
	hop := float64(pv.hop)
	fs := float64(pv.timing.SampleRate())
	binWidth := 2 * math.Pi * hop / n

	for i := 1; i < pv.size/2-1; i++ {
		magnitude := cmplx.Abs(current[i])
		if magnitude < pv.epsilon {
			continue
		}

		k := float64(i)
		// without usable history the bin centre is the best estimate
		if cmplx.Abs(previous[i]) >= pv.epsilon {
			zeroBin := common.Fract(hop*k/n) * 2 * math.Pi
			delta := common.WrapPhase(spectral.Phase(current[i]) - spectral.Phase(previous[i]) - zeroBin)
			k += delta / binWidth
		}

		freq := fs * k / n
		if freq <= 0 {
			continue
		}
		pos, ok := pv.scale.Position(freq)
		if !ok {
			continue
		}
		pv.scale.Accumulate(bins, pos, magnitude*pv.magnitudeScale)
	}
}

// Reset forgets the accumulated window and both spectra. The next frame
// falls back to bin-centre frequencies.
func (pv *PhaseVocoder) Reset() {
	pv.buffer.Reset()
	clear(pv.spectra[0])
	clear(pv.spectra[1])
	pv.active = 0
	pv.reset()
}

// Scale returns the perceptual scale frames are binned on
func (pv *PhaseVocoder) Scale() *chroma.NoteScale {
	return pv.scale
}
