package analysis

import (
	"math"

	"github.com/RyanBlaney/sonido-scope/algorithms/chroma"
)

// BandMerger renders frames onto a note scale. Bins frames pass through;
// bands frames are resampled from the linear spectra, taking each perceptual
// bin from the shallowest band that resolves it well.
type BandMerger struct {
	scale *chroma.NoteScale

	// plan caches the band choice per perceptual bin for one band layout
	plan    []binSource
	planKey []float64
	planN   int
}

type binSource struct {
	band int // -1 when no band covers the bin
	pos  float64
}

// NewBandMerger creates a merger producing scale.Len() bins
func NewBandMerger(scale *chroma.NoteScale) *BandMerger {
	return &BandMerger{scale: scale}
}

// Len returns the number of perceptual bins Reduce produces
func (m *BandMerger) Len() int {
	return m.scale.Len()
}

// Reduce converts a frame to perceptual bins. The result of a bins frame
// aliases frame.Bins and must not be modified.
func (m *BandMerger) Reduce(frame *Frame) []float64 {
	if frame.Kind() == KindBins {
		return frame.Bins
	}

	bins := make([]float64, m.scale.Len())
	if len(frame.Bands) == 0 {
		return bins
	}
	m.updatePlan(frame.Bands)

	for j, src := range m.plan {
		if src.band < 0 || src.band >= len(frame.Bands) {
			continue
		}
		spectrum := frame.Bands[src.band].Spectrum
		lo := int(math.Floor(src.pos))
		hi := int(math.Ceil(src.pos))
		if lo < 0 || hi >= len(spectrum) {
			continue
		}
		bins[j] = max(spectrum[lo], spectrum[hi])
	}
	return bins
}

// SourceBand reports which band Reduce reads bin j from for the given layout,
// or -1 when none covers it.
func (m *BandMerger) SourceBand(bands []BandSpectrum, j int) int {
	m.updatePlan(bands)
	if j < 0 || j >= len(m.plan) {
		return -1
	}
	return m.plan[j].band
}

func (m *BandMerger) updatePlan(bands []BandSpectrum) {
	n := bands[0].WindowSize()
	if m.plan != nil && m.planN == n && len(m.planKey) == len(bands) {
		same := true
		for k, b := range bands {
			if m.planKey[k] != b.SampleRate {
				same = false
				break
			}
		}
		if same {
			return
		}
	}

	m.planN = n
	m.planKey = m.planKey[:0]
	for _, b := range bands {
		m.planKey = append(m.planKey, b.SampleRate)
	}
	m.plan = make([]binSource, m.scale.Len())

	size := float64(n)
	lowest := size / 8
	highest := size/2 - 1

	for j := range m.plan {
		freq := m.scale.Frequency(float64(j))
		src := binSource{band: -1}

		for k, b := range bands {
			if b.SampleRate <= 0 {
				continue
			}
			pos := freq * size / b.SampleRate
			if pos >= highest {
				continue
			}
			// deepest band below Nyquist unless a shallower one resolves it
			src = binSource{band: k, pos: pos}
			if pos >= lowest {
				break
			}
		}
		if src.band >= 0 && src.pos < 1 {
			src.band = -1
		}
		m.plan[j] = src
	}
}
