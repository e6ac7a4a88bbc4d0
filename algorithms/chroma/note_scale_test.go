package chroma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScale(t *testing.T) *NoteScale {
	t.Helper()
	ns, err := NewNoteScale(27.5, 9, 3)
	require.NoError(t, err)
	return ns
}

func TestNoteScalePositions(t *testing.T) {
	ns := newScale(t)
	assert.Equal(t, 324, ns.Len())

	pos, ok := ns.Position(440)
	require.True(t, ok)
	assert.InDelta(t, 144.0, pos, 1e-9)

	pos, ok = ns.Position(27.5)
	require.True(t, ok)
	assert.InDelta(t, 0.0, pos, 1e-12)

	_, ok = ns.Position(0)
	assert.False(t, ok)

	assert.InDelta(t, 440.0, ns.Frequency(144), 1e-9)
	assert.Equal(t, 144, ns.Nearest(441))
	assert.Equal(t, -1, ns.Nearest(10))
}

func TestAccumulateSplitsLinearly(t *testing.T) {
	ns := newScale(t)
	bins := make([]float64, ns.Len())

	ns.Accumulate(bins, 10.25, 4)
	assert.InDelta(t, 3.0, bins[10], 1e-12)
	assert.InDelta(t, 1.0, bins[11], 1e-12)

	ns.Accumulate(bins, 20, 2)
	assert.InDelta(t, 2.0, bins[20], 1e-12)
	assert.Equal(t, 0.0, bins[21])
}

func TestAccumulateDropsOutOfRange(t *testing.T) {
	ns := newScale(t)
	bins := make([]float64, ns.Len())

	ns.Accumulate(bins, -0.5, 2)
	assert.InDelta(t, 1.0, bins[0], 1e-12)

	ns.Accumulate(bins, float64(ns.Len())-0.5, 2)
	assert.InDelta(t, 1.0, bins[ns.Len()-1], 1e-12)

	ns.Accumulate(bins, -5, 2)
	ns.Accumulate(bins, 1000, 2)
	total := 0.0
	for _, v := range bins {
		total += v
	}
	assert.InDelta(t, 2.0, total, 1e-12)
}

func TestNoteNames(t *testing.T) {
	ns := newScale(t)
	assert.Equal(t, "A0", ns.NoteName(0))
	assert.Equal(t, "A4", ns.NoteName(144))
	assert.Equal(t, "C1", ns.NoteName(9))
	assert.Equal(t, "A#4", ns.NoteName(147))
}

func TestNoteLevelsAndPitchClasses(t *testing.T) {
	ns := newScale(t)
	bins := make([]float64, ns.Len())
	bins[143], bins[144], bins[145] = 3, 6, 3

	levels := ns.NoteLevels(nil, bins)
	require.Len(t, levels, 108)
	assert.InDelta(t, 4.0, levels[48], 1e-12)
	assert.Equal(t, 0.0, levels[47])

	profile := ns.PitchClassProfile(bins)
	assert.InDelta(t, 12.0, profile[9], 1e-12)
}

func TestNewNoteScaleValidation(t *testing.T) {
	_, err := NewNoteScale(0, 9, 3)
	assert.Error(t, err)
	_, err = NewNoteScale(27.5, 0, 3)
	assert.Error(t, err)
}
