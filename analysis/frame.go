package analysis

import "time"

// Kind tells a consumer how to turn a Frame into perceptual bins
type Kind int

const (
	// KindBins frames carry finished perceptual bins
	KindBins Kind = iota
	// KindBands frames carry one power spectrum per decimated band
	KindBands
)

func (k Kind) String() string {
	switch k {
	case KindBins:
		return "bins"
	case KindBands:
		return "bands"
	default:
		return "unknown"
	}
}

// BandSpectrum is the power spectrum of one octave band. Spectrum holds N/2
// linear bins at the band's own (decimated) sample rate.
type BandSpectrum struct {
	Band       int
	SampleRate float64
	Time       int64 // playback time of this band's window centre
	Spectrum   []float64
}

// WindowSize returns the transform length the spectrum came from
func (b BandSpectrum) WindowSize() int {
	return 2 * len(b.Spectrum)
}

// Frame is one analysis result stamped with its estimated playback time.
// Frames are never modified after they are queued.
type Frame struct {
	Time int64 // wall-clock ms at which the (first) window centre plays

	Bins  []float64      // set for KindBins
	Bands []BandSpectrum // set for KindBands, ordered by band index
}

// PlaybackTime implements queue.Timed
func (f *Frame) PlaybackTime() int64 {
	return f.Time
}

// Kind reports which payload the frame carries
func (f *Frame) Kind() Kind {
	if f.Bands != nil {
		return KindBands
	}
	return KindBins
}

// Clock returns the current wall-clock time in milliseconds
type Clock func() int64

// SystemClock reads time.Now
func SystemClock() int64 {
	return time.Now().UnixMilli()
}
