package chroma

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-scope/algorithms/common"
)

var pitchClassNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteScale maps frequencies onto a logarithmic array of perceptual bins:
// subBins per semitone, 12 semitones per octave, starting at minFreq.
//
// Bin b is centred on minFreq * 2^(b / (12*subBins)).
type NoteScale struct {
	minFreq float64
	octaves int
	subBins int
	count   int
}

// NewNoteScale creates a scale of 12*octaves*subBins bins
func NewNoteScale(minFreq float64, octaves, subBins int) (*NoteScale, error) {
	if minFreq <= 0 {
		return nil, fmt.Errorf("minimum frequency must be positive: %f", minFreq)
	}
	if octaves <= 0 || subBins <= 0 {
		return nil, fmt.Errorf("octaves (%d) and sub-bins (%d) must be positive", octaves, subBins)
	}
	return &NoteScale{
		minFreq: minFreq,
		octaves: octaves,
		subBins: subBins,
		count:   12 * octaves * subBins,
	}, nil
}

// Len returns the number of perceptual bins
func (ns *NoteScale) Len() int {
	return ns.count
}

// SubBins returns bins per semitone
func (ns *NoteScale) SubBins() int {
	return ns.subBins
}

// MinFreq returns the frequency of bin 0
func (ns *NoteScale) MinFreq() float64 {
	return ns.minFreq
}

// Position returns the fractional bin index of freq. It reports false for
// frequencies too small to place on a log scale.
func (ns *NoteScale) Position(freq float64) (float64, bool) {
	if freq <= common.Epsilon || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, false
	}
	return math.Log2(freq/ns.minFreq) * 12 * float64(ns.subBins), true
}

// Frequency returns the frequency at a (fractional) bin position
func (ns *NoteScale) Frequency(pos float64) float64 {
	return ns.minFreq * math.Exp2(pos/(12*float64(ns.subBins)))
}

// Nearest returns the integer bin closest to freq, or -1 when it falls
// outside the scale.
func (ns *NoteScale) Nearest(freq float64) int {
	pos, ok := ns.Position(freq)
	if !ok {
		return -1
	}
	b := int(math.Round(pos))
	if b < 0 || b >= ns.count {
		return -1
	}
	return b
}

// Accumulate splits energy between the two integer bins around pos by linear
// interpolation. Halves landing outside the scale are dropped.
func (ns *NoteScale) Accumulate(bins []float64, pos, energy float64) {
	if energy <= 0 || math.IsNaN(pos) {
		return
	}
	lower := math.Floor(pos)
	frac := pos - lower
	lo := int(lower)

	if lo >= 0 && lo < len(bins) {
		bins[lo] += energy * (1 - frac)
	}
	if hi := lo + 1; frac > 0 && hi >= 0 && hi < len(bins) {
		bins[hi] += energy * frac
	}
}

// NoteName returns the note label of a bin, e.g. "A4", using the nearest
// equal-tempered MIDI note (A4 = 440 Hz).
func (ns *NoteScale) NoteName(bin int) string {
	midi := int(math.Round(69 + 12*math.Log2(ns.Frequency(float64(bin))/440)))
	if midi < 0 {
		return "?"
	}
	return fmt.Sprintf("%s%d", pitchClassNames[midi%12], midi/12-1)
}

// NoteLevels collapses sub-bins into one level per semitone, taking the mean
// of the sub-bins centred on each note.
func (ns *NoteScale) NoteLevels(dst, bins []float64) []float64 {
	semitones := len(bins) / ns.subBins
	if cap(dst) < semitones {
		dst = make([]float64, semitones)
	}
	dst = dst[:semitones]

	half := ns.subBins / 2
	for s := range semitones {
		centre := s * ns.subBins
		sum, n := 0.0, 0
		for b := centre - half; b <= centre+half; b++ {
			if b >= 0 && b < len(bins) {
				sum += bins[b]
				n++
			}
		}
		dst[s] = sum / float64(max(n, 1))
	}
	return dst
}

// PitchClassProfile folds bins into 12 pitch classes (C..B), summing energy.
func (ns *NoteScale) PitchClassProfile(bins []float64) []float64 {
	profile := make([]float64, 12)
	for b, e := range bins {
		if e <= 0 {
			continue
		}
		midi := int(math.Round(69 + 12*math.Log2(ns.Frequency(float64(b))/440)))
		if midi < 0 {
			continue
		}
		profile[midi%12] += e
	}
	return profile
}
