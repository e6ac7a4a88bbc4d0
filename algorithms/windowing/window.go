package windowing

import (
	"fmt"
	"math"
)

// Type identifies a taper function
type Type string

const (
	TypeRectangular Type = "rectangular"
	TypeHamming     Type = "hamming"
	TypeHann        Type = "hann"
	TypeBlackman    Type = "blackman"
)

// Window holds precomputed taper coefficients for one analysis size.
// Coefficients are symmetric (denominator size-1).
type Window struct {
	typ          Type
	coefficients []float64
}

// New generates a window of the given type and size
func New(typ Type, size int) (*Window, error) {
	if size <= 1 {
		return nil, fmt.Errorf("window size must be > 1: %d", size)
	}

	coeffs := make([]float64, size)
	denominator := float64(size - 1)

	switch typ {
	case TypeRectangular:
		for i := range coeffs {
			coeffs[i] = 1.0
		}
	case TypeHamming:
		// Optimal equiripple Hamming coefficients rather than 0.54/0.46.
		for i := range coeffs {
			coeffs[i] = 0.53836 - 0.46164*math.Cos(2*math.Pi*float64(i)/denominator)
		}
	case TypeHann:
		for i := range coeffs {
			coeffs[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
		}
	case TypeBlackman:
		for i := range coeffs {
			phase := 2 * math.Pi * float64(i) / denominator
			coeffs[i] = 0.42 - 0.5*math.Cos(phase) + 0.08*math.Cos(2*phase)
		}
	default:
		return nil, fmt.Errorf("unknown window type: %q", typ)
	}

	return &Window{typ: typ, coefficients: coeffs}, nil
}

// ParseType validates a window type name
func ParseType(name string) (Type, error) {
	switch t := Type(name); t {
	case TypeRectangular, TypeHamming, TypeHann, TypeBlackman:
		return t, nil
	default:
		return "", fmt.Errorf("unknown window type: %q", name)
	}
}

// ApplyTo writes src*window into dst. Both must match the window size.
func (w *Window) ApplyTo(dst, src []float64) error {
	if len(src) != len(w.coefficients) || len(dst) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d -> %d) doesn't match window size (%d)", len(src), len(dst), len(w.coefficients))
	}
	for i, c := range w.coefficients {
		dst[i] = src[i] * c
	}
	return nil
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	return w.ApplyTo(signal, signal)
}

// CoherentGain is the mean coefficient, the amplitude scaling a centred
// sinusoid receives.
func (w *Window) CoherentGain() float64 {
	sum := 0.0
	for _, c := range w.coefficients {
		sum += c
	}
	return sum / float64(len(w.coefficients))
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window size
func (w *Window) Size() int {
	return len(w.coefficients)
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.typ
}
