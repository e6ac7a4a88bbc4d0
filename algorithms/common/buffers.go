package common

import (
	"fmt"
)

// OverlapBuffer accumulates mono samples into a fixed-size analysis window.
//
// Once the window is full the caller analyzes Samples() and then calls
// Advance, which discards the oldest hop samples and keeps the remaining
// size-hop as the head of the next window. With hop == size the windows do not
// overlap at all.
type OverlapBuffer struct {
	buffer   []float64
	size     int
	hop      int
	writePos int
}

// NewOverlapBuffer creates a buffer of size samples that advances by hop.
func NewOverlapBuffer(size, hop int) (*OverlapBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}
	if hop <= 0 || hop > size {
		return nil, fmt.Errorf("hop must be in [1, %d]: %d", size, hop)
	}
	return &OverlapBuffer{
		buffer: make([]float64, size),
		size:   size,
		hop:    hop,
	}, nil
}

// Push writes one sample into the next free slot and reports whether the
// window is now full. Pushing into a full window is a no-op that returns true;
// the caller is expected to Advance first.
func (ob *OverlapBuffer) Push(sample float64) bool {
	if ob.writePos >= ob.size {
		return true
	}
	ob.buffer[ob.writePos] = sample
	ob.writePos++
	return ob.writePos == ob.size
}

// Full reports whether every slot holds a sample.
func (ob *OverlapBuffer) Full() bool {
	return ob.writePos == ob.size
}

// Samples returns the window contents. The slice aliases the buffer and is
// only valid until the next Push, Advance or Slide.
func (ob *OverlapBuffer) Samples() []float64 {
	return ob.buffer
}

// Advance drops the oldest hop samples and resumes writing after the kept tail.
func (ob *OverlapBuffer) Advance() {
	if ob.hop < ob.size {
		copy(ob.buffer, ob.buffer[ob.hop:])
		ob.writePos = ob.size - ob.hop
		return
	}
	ob.writePos = 0
}

// Slide shifts the window left by n samples and returns the n freed slots at
// the end for the caller to fill. The window stays full.
func (ob *OverlapBuffer) Slide(n int) []float64 {
	n = min(max(n, 0), ob.size)
	copy(ob.buffer, ob.buffer[n:])
	ob.writePos = ob.size
	return ob.buffer[ob.size-n:]
}

// Reset clears the window
func (ob *OverlapBuffer) Reset() {
	ob.writePos = 0
	clear(ob.buffer)
}

// Size returns the window size
func (ob *OverlapBuffer) Size() int {
	return ob.size
}

// Hop returns the number of samples between consecutive full windows
func (ob *OverlapBuffer) Hop() int {
	return ob.hop
}

// Pending returns how many samples are currently written
func (ob *OverlapBuffer) Pending() int {
	return ob.writePos
}
