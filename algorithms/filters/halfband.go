package filters

import (
	"fmt"
)

// halfBandTaps is the first half of a sinc*hamming low-pass kernel with a
// 25% transition band and roughly 30 dB of alias suppression, in Q16.
// The full kernel is the 8-tap symmetric sequence taps[0..3], taps[3..0].
var halfBandTaps = [4]float64{
	-483.0 / 65536.0,
	-2140.0 / 65536.0,
	7018.0 / 65536.0,
	28374.0 / 65536.0,
}

// HalfBand is a streaming 4:1 decimating FIR filter.
//
// Each call consumes four input samples and yields one output sample. The
// kernel spans eight inputs, so the contribution of the current four samples
// to the next output is evaluated ahead of time and carried in state. No other
// history is kept.
type HalfBand struct {
	state float64
}

// NewHalfBand creates a decimator with zero history
func NewHalfBand() *HalfBand {
	return &HalfBand{}
}

// Input performs one 4:1 decimation step
func (hb *HalfBand) Input(x1, x2, x3, x4 float64) float64 {
	y := hb.state +
		x1*halfBandTaps[3] +
		x2*halfBandTaps[2] +
		x3*halfBandTaps[1] +
		x4*halfBandTaps[0]

	hb.state = x1*halfBandTaps[0] +
		x2*halfBandTaps[1] +
		x3*halfBandTaps[2] +
		x4*halfBandTaps[3]

	return y
}

// ProcessBlock decimates src into dst. len(src) must be 4*len(dst).
func (hb *HalfBand) ProcessBlock(dst, src []float64) error {
	if len(src) != 4*len(dst) {
		return fmt.Errorf("source length (%d) must be four times destination length (%d)", len(src), len(dst))
	}
	for i := range dst {
		j := i << 2
		dst[i] = hb.Input(src[j], src[j+1], src[j+2], src[j+3])
	}
	return nil
}

// Reset clears the carried partial sum
func (hb *HalfBand) Reset() {
	hb.state = 0
}

// Gain returns the DC gain of the full kernel (sum of all eight taps).
func (hb *HalfBand) Gain() float64 {
	g := 0.0
	for _, tap := range halfBandTaps {
		g += 2 * tap
	}
	return g
}

// Taps returns the full symmetric kernel
func (hb *HalfBand) Taps() []float64 {
	return []float64{
		halfBandTaps[0], halfBandTaps[1], halfBandTaps[2], halfBandTaps[3],
		halfBandTaps[3], halfBandTaps[2], halfBandTaps[1], halfBandTaps[0],
	}
}
