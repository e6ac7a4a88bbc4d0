package spectral

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-scope/algorithms/windowing"
)

func sine(freq, sampleRate, amplitude float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func TestTransformPeaksAtBinCentreTone(t *testing.T) {
	const n = 1024
	const fs = 44100.0
	bin := 37
	freq := float64(bin) * fs / n

	tr, err := NewTransform(n, nil, nil)
	require.NoError(t, err)

	out, err := tr.Compute(nil, sine(freq, fs, 1, n))
	require.NoError(t, err)
	require.Len(t, out, n/2)

	mags := Magnitude(nil, out, 1)
	assert.Equal(t, bin, PeakBin(mags))
	assert.InDelta(t, n/2, mags[bin], 1e-6)
}

func TestTransformDC(t *testing.T) {
	const n = 16
	tr, err := NewTransform(n, nil, nil)
	require.NoError(t, err)

	src := make([]float64, n)
	for i := range src {
		src[i] = 5
	}
	out, err := tr.Compute(nil, src)
	require.NoError(t, err)

	assert.InDelta(t, 80.0, real(out[0]), 1e-9)
	for k := 1; k < len(out); k++ {
		assert.InDelta(t, 0.0, cmplx.Abs(out[k]), 1e-9)
	}
}

func TestTransformBackendsAgree(t *testing.T) {
	const n = 256
	src := sine(1234.5, 44100, 3000, n)

	gonumTr, err := NewTransform(n, nil, nil)
	require.NoError(t, err)
	dspBackend, err := NewBackend(BackendGoDSP, n)
	require.NoError(t, err)
	dspTr, err := NewTransform(n, nil, dspBackend)
	require.NoError(t, err)

	a, err := gonumTr.Compute(nil, src)
	require.NoError(t, err)
	b, err := dspTr.Compute(nil, src)
	require.NoError(t, err)

	for k := range a {
		assert.InDelta(t, real(a[k]), real(b[k]), 1e-4, "re bin %d", k)
		assert.InDelta(t, imag(a[k]), imag(b[k]), 1e-4, "im bin %d", k)
	}
}

func TestTransformDoesNotModifyInputAndIsRepeatable(t *testing.T) {
	const n = 64
	w, err := windowing.New(windowing.TypeHamming, n)
	require.NoError(t, err)
	tr, err := NewTransform(n, w, nil)
	require.NoError(t, err)

	src := sine(3000, 44100, 1, n)
	orig := append([]float64(nil), src...)

	first, err := tr.Compute(nil, src)
	require.NoError(t, err)
	second, err := tr.Compute(nil, src)
	require.NoError(t, err)

	assert.Equal(t, orig, src)
	assert.Equal(t, first, second)
}

func TestTransformReusesDestination(t *testing.T) {
	tr, err := NewTransform(32, nil, nil)
	require.NoError(t, err)

	dst := make([]complex128, 16)
	out, err := tr.Compute(dst, make([]float64, 32))
	require.NoError(t, err)
	assert.Same(t, &dst[0], &out[0])
}

func TestTransformSilenceIsZero(t *testing.T) {
	tr, err := NewTransform(128, nil, nil)
	require.NoError(t, err)
	out, err := tr.Compute(nil, make([]float64, 128))
	require.NoError(t, err)

	for _, c := range out {
		assert.Equal(t, 0.0, cmplx.Abs(c))
		assert.Equal(t, 0.0, Phase(c))
	}
}

func TestTransformValidation(t *testing.T) {
	_, err := NewTransform(1000, nil, nil)
	assert.Error(t, err)

	w, err := windowing.New(windowing.TypeHann, 32)
	require.NoError(t, err)
	_, err = NewTransform(64, w, nil)
	assert.Error(t, err)

	tr, err := NewTransform(64, nil, nil)
	require.NoError(t, err)
	_, err = tr.Compute(nil, make([]float64, 63))
	assert.Error(t, err)

	_, err = NewBackend("fftw", 64)
	assert.Error(t, err)
}

func TestPowerAndDecibels(t *testing.T) {
	p := Power(nil, []complex128{3 + 4i, 0}, 0.5)
	assert.InDelta(t, 6.25, p[0], 1e-12)

	db := ToDecibels(nil, []float64{100, 0}, -90)
	assert.InDelta(t, 20.0, db[0], 1e-12)
	assert.Equal(t, -90.0, db[1])
}
