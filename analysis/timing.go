package analysis

import "fmt"

// Timing converts positions in the fed audio into wall-clock playback times.
//
// Audio handed to Feed is assumed to start playing after the output device
// has drained its buffer, bufferingMs from now.
type Timing struct {
	sampleRate      int
	bufferingFrames int
	bufferingMs     int64
}

// Configure records the output format. bufferingFrames is the device buffer
// length in stereo frames.
func (t *Timing) Configure(sampleRate, bufferingFrames int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	if bufferingFrames < 0 {
		return fmt.Errorf("%w: negative buffer length %d", ErrInvalidSize, bufferingFrames)
	}
	t.sampleRate = sampleRate
	t.bufferingFrames = bufferingFrames
	t.bufferingMs = int64(bufferingFrames) * 1000 / int64(sampleRate)
	return nil
}

// Configured reports whether Configure has succeeded
func (t *Timing) Configured() bool {
	return t.sampleRate > 0
}

// SampleRate returns the configured output rate
func (t *Timing) SampleRate() int {
	return t.sampleRate
}

// BufferingMs returns the output buffer latency in milliseconds
func (t *Timing) BufferingMs() int64 {
	return t.bufferingMs
}

// EstimateFrameTime returns when the sample at offset (in interleaved int16
// units, relative to the end of the fed block, so normally <= 0) plays.
func (t *Timing) EstimateFrameTime(nowMs int64, offset int) int64 {
	return EstimateFrameTime(nowMs, t.bufferingMs, offset, t.sampleRate)
}

// WindowCentreMs returns the duration of samples mono samples. Analyzers
// subtract it to date a frame at the centre of its window.
func (t *Timing) WindowCentreMs(samples int) int64 {
	if t.sampleRate <= 0 {
		return 0
	}
	return int64(samples) * 1000 / int64(t.sampleRate)
}

// EstimateFrameTime is the stateless form of Timing.EstimateFrameTime.
// Integer division truncates toward zero.
func EstimateFrameTime(nowMs, bufferingMs int64, offset, sampleRate int) int64 {
	if sampleRate <= 0 {
		return nowMs + bufferingMs
	}
	return nowMs + bufferingMs + int64(offset)*1000/2/int64(sampleRate)
}
