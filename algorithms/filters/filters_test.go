package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, sampleRate, amplitude float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func peakAbs(data []float64) float64 {
	peak := 0.0
	for _, v := range data {
		peak = math.Max(peak, math.Abs(v))
	}
	return peak
}

func TestHalfBandDCConvergesToGain(t *testing.T) {
	hb := NewHalfBand()
	const dc = 1000.0

	var y float64
	for range 16 {
		y = hb.Input(dc, dc, dc, dc)
	}

	assert.InDelta(t, 65538.0/65536.0, hb.Gain(), 1e-12)
	assert.InDelta(t, dc*hb.Gain(), y, 1e-9)
}

func TestHalfBandFirstOutputUsesHalfKernel(t *testing.T) {
	hb := NewHalfBand()
	y := hb.Input(1, 1, 1, 1)
	assert.InDelta(t, hb.Gain()/2, y, 1e-12)
}

func TestHalfBandIsLinear(t *testing.T) {
	a := NewHalfBand()
	b := NewHalfBand()
	sum := NewHalfBand()

	x := sine(300, 8000, 1, 64)
	z := sine(1700, 8000, 0.5, 64)
	for i := 0; i < len(x); i += 4 {
		ya := a.Input(x[i], x[i+1], x[i+2], x[i+3])
		yb := b.Input(z[i], z[i+1], z[i+2], z[i+3])
		ys := sum.Input(x[i]+z[i], x[i+1]+z[i+1], x[i+2]+z[i+2], x[i+3]+z[i+3])
		require.InDelta(t, ya+yb, ys, 1e-12)
	}
}

func TestHalfBandPassesLowAndSuppressesHigh(t *testing.T) {
	const fs = 44100.0
	const n = 4096

	low := make([]float64, n/4)
	high := make([]float64, n/4)

	require.NoError(t, NewHalfBand().ProcessBlock(low, sine(fs/32, fs, 1, n)))
	require.NoError(t, NewHalfBand().ProcessBlock(high, sine(fs*3/8, fs, 1, n)))

	// skip the first outputs while the carried state fills
	assert.Greater(t, peakAbs(low[8:]), 0.9)
	assert.Less(t, peakAbs(high[8:]), 0.12)
}

func TestHalfBandProcessBlockRejectsMismatch(t *testing.T) {
	err := NewHalfBand().ProcessBlock(make([]float64, 3), make([]float64, 11))
	assert.Error(t, err)
}

func TestHalfBandTapsAreSymmetric(t *testing.T) {
	taps := NewHalfBand().Taps()
	require.Len(t, taps, 8)
	for i := range 4 {
		assert.Equal(t, taps[i], taps[7-i])
	}
}

func TestDCRemovalBlocksOffset(t *testing.T) {
	dc := NewDCRemovalWithCutoff(44100, 8)

	var y float64
	for range 44100 {
		y = dc.Process(500)
	}
	assert.Less(t, math.Abs(y), 1.0)
	assert.InDelta(t, 8.0, dc.CutoffFrequency(44100), 1e-9)

	dc.Reset()
	assert.InDelta(t, 500.0, dc.Process(500), 1e-12)
}

func TestDCRemovalIgnoresInvalidCutoff(t *testing.T) {
	dc := NewDCRemoval()
	dc.SetCutoffFrequency(0, 10)
	assert.Equal(t, 0.995, dc.PoleLocation())
}
