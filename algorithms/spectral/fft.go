package spectral

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/RyanBlaney/sonido-scope/algorithms/common"
	"github.com/RyanBlaney/sonido-scope/algorithms/windowing"
)

// Backend computes the non-negative frequency half of a real DFT using the
// e^{-i2πkn/N} sign convention. dst has length len(seq)/2+1 when non-nil.
type Backend interface {
	Coefficients(dst []complex128, seq []float64) []complex128
}

// BackendName selects a Backend implementation
type BackendName string

const (
	BackendGonum BackendName = "gonum"
	BackendGoDSP BackendName = "go-dsp"
)

// NewBackend creates the named backend for transforms of length size
func NewBackend(name BackendName, size int) (Backend, error) {
	switch name {
	case BackendGonum, "":
		return fourier.NewFFT(size), nil
	case BackendGoDSP:
		return GoDSPBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown fft backend: %q", name)
	}
}

// GoDSPBackend adapts mjibson/go-dsp to Backend. It allocates per call.
type GoDSPBackend struct{}

// Coefficients computes the half spectrum with fft.FFTReal
func (GoDSPBackend) Coefficients(dst []complex128, seq []float64) []complex128 {
	full := fft.FFTReal(seq)
	half := len(seq)/2 + 1
	if dst == nil {
		dst = make([]complex128, half)
	}
	copy(dst, full[:half])
	return dst
}

// Transform computes the complex half-spectrum of a fixed-size real buffer.
//
// The optional window is applied to an internal copy, so the input is never
// modified. Scratch memory is overwritten on every call; results depend only
// on the input buffer.
type Transform struct {
	size    int
	window  *windowing.Window
	backend Backend
	scratch []float64
	coeffs  []complex128
}

// NewTransform creates a transform of the given power-of-two size. window may
// be nil for an unwindowed transform; backend nil selects gonum.
func NewTransform(size int, window *windowing.Window, backend Backend) (*Transform, error) {
	if !common.IsPowerOfTwo(size) || size < 4 {
		return nil, fmt.Errorf("transform size must be a power of two >= 4: %d", size)
	}
	if window != nil && window.Size() != size {
		return nil, fmt.Errorf("window size (%d) doesn't match transform size (%d)", window.Size(), size)
	}
	if backend == nil {
		backend = fourier.NewFFT(size)
	}
	return &Transform{
		size:    size,
		window:  window,
		backend: backend,
		scratch: make([]float64, size),
		coeffs:  make([]complex128, size/2+1),
	}, nil
}

// Compute transforms src and writes N/2 coefficients (DC up to, but not
// including, Nyquist) into dst, which is allocated when nil or too short.
func (t *Transform) Compute(dst []complex128, src []float64) ([]complex128, error) {
	if len(src) != t.size {
		return nil, fmt.Errorf("input length (%d) doesn't match transform size (%d)", len(src), t.size)
	}

	if t.window != nil {
		if err := t.window.ApplyTo(t.scratch, src); err != nil {
			return nil, err
		}
	} else {
		copy(t.scratch, src)
	}

	t.coeffs = t.backend.Coefficients(t.coeffs, t.scratch)

	half := t.size / 2
	if cap(dst) < half {
		dst = make([]complex128, half)
	}
	dst = dst[:half]
	copy(dst, t.coeffs[:half])
	return dst, nil
}

// Size returns the transform length N
func (t *Transform) Size() int {
	return t.size
}

// Bins returns the number of coefficients Compute produces (N/2)
func (t *Transform) Bins() int {
	return t.size / 2
}
