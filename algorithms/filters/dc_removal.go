package filters

import (
	"math"
)

// DCRemoval is a one-pole DC blocker applied to the mono feed before
// windowing, so a constant offset in the PCM stream does not smear into the
// lowest analysis bins.
//
// Difference equation: y[n] = x[n] - x[n-1] + R*y[n-1]
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	poleLocation float64 // R, 0 < R < 1

	x1 float64 // x[n-1]
	y1 float64 // y[n-1]
}

// NewDCRemoval creates a DC blocker with R = 0.995 (about 35 Hz at 44.1 kHz).
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff derives R from the desired -3dB cutoff using
// R = 1 - 2*pi*fc/fs, clamped to (0, 1).
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	dc := NewDCRemoval()
	dc.SetCutoffFrequency(sampleRate, cutoffFreq)
	return dc
}

// SetCutoffFrequency recomputes the pole for a new rate or cutoff. The filter
// history is kept.
func (dc *DCRemoval) SetCutoffFrequency(sampleRate int, cutoffFreq float64) {
	if sampleRate <= 0 || cutoffFreq <= 0 {
		return
	}
	r := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
	switch {
	case r >= 1.0:
		r = 0.999
	case r <= 0.0:
		r = 0.001
	}
	dc.poleLocation = r
}

// Process filters one sample
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// Reset clears the filter history. Call it between unrelated tracks.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}

// PoleLocation returns R
func (dc *DCRemoval) PoleLocation() float64 {
	return dc.poleLocation
}

// CutoffFrequency returns the approximate -3dB cutoff, fc = (1-R)*fs/(2*pi).
func (dc *DCRemoval) CutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.poleLocation) * float64(sampleRate) / (2.0 * math.Pi)
}
