package spectral

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-scope/algorithms/common"
)

// Magnitude writes |X[k]|*scale into dst, allocating it when too short.
func Magnitude(dst []float64, spectrum []complex128, scale float64) []float64 {
	dst = resize(dst, len(spectrum))
	for i, c := range spectrum {
		dst[i] = cmplx.Abs(c)
	}
	floats.Scale(scale, dst)
	return dst
}

// Power writes (|X[k]|*scale)^2 into dst, allocating it when too short.
func Power(dst []float64, spectrum []complex128, scale float64) []float64 {
	dst = resize(dst, len(spectrum))
	for i, c := range spectrum {
		re := real(c) * scale
		im := imag(c) * scale
		dst[i] = re*re + im*im
	}
	return dst
}

// Phase returns the argument of c, or 0 when |c| is below common.Epsilon so
// silent bins never produce noise-driven angles.
func Phase(c complex128) float64 {
	if math.Abs(real(c)) < common.Epsilon && math.Abs(imag(c)) < common.Epsilon {
		return 0
	}
	return math.Atan2(imag(c), real(c))
}

// PeakBin returns the index of the strongest bin, ignoring DC
func PeakBin(magnitudes []float64) int {
	if len(magnitudes) < 2 {
		return common.MaxIndex(magnitudes)
	}
	return 1 + common.MaxIndex(magnitudes[1:])
}

// ToDecibels converts linear power values to dB with a floor
func ToDecibels(dst, power []float64, floorDB float64) []float64 {
	dst = resize(dst, len(power))
	for i, p := range power {
		if p <= common.Epsilon {
			dst[i] = floorDB
			continue
		}
		dst[i] = math.Max(10*math.Log10(p), floorDB)
	}
	return dst
}

func resize(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}
