package puzzle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumbersForDate(t *testing.T) {
	assert.Equal(t, []float64{-11, 2, 8, 14, 19}, Numbers(Date{2026, 10, 15}))
	assert.Equal(t, []float64{-7, 1, 2, 9, 14}, Numbers(Date{2024, 1, 1}))
	assert.Equal(t, []float64{-15, -14, -5, 15, 16}, Numbers(Date{2023, 6, 19}))
}

func TestNumbersAreDistinctAndInRange(t *testing.T) {
	d := Date{2025, 1, 1}
	for i := 0; i < 400; i++ {
		nums := Numbers(d)
		require.Len(t, nums, Count)
		seen := map[float64]bool{}
		for _, n := range nums {
			assert.False(t, seen[n], "duplicate %v on %s", n, d)
			seen[n] = true
			assert.True(t, n != 0 && n >= -20 && n <= 20, "%v out of range on %s", n, d)
		}
		assert.IsNonDecreasing(t, nums)
		d = FromTime(d.Time().AddDate(0, 0, 1))
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-10-15")
	require.NoError(t, err)
	assert.Equal(t, Date{2026, 10, 15}, d)
	assert.Equal(t, "2026-10-15", d.String())
	assert.Equal(t, "Thursday 15 October 2026", d.Label())

	_, err = ParseDate("2026-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseNumbers(t *testing.T) {
	nums, err := ParseNumbers("-16 -10, 2 13,16")
	require.NoError(t, err)
	assert.Equal(t, []float64{-16, -10, 2, 13, 16}, nums)

	_, err = ParseNumbers("  ")
	assert.Error(t, err)
	_, err = ParseNumbers("1 two")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }

	p, err := Resolve(Request{Now: now})
	require.NoError(t, err)
	assert.Equal(t, Date{2026, 10, 15}, p.Date)
	assert.Equal(t, 15.0, p.Goal)
	assert.Equal(t, []float64{-11, 2, 8, 14, 19}, p.Numbers)
	assert.True(t, p.Generated)

	p, err = Resolve(Request{Date: Date{Day: 1, Month: 1}, Now: now})
	require.NoError(t, err)
	assert.Equal(t, Date{2026, 1, 1}, p.Date)
	assert.Equal(t, 1.0, p.Goal)

	goal := 19.0
	p, err = Resolve(Request{Numbers: []float64{-16, -10, 2, 13, 16}, Goal: &goal, Now: now})
	require.NoError(t, err)
	assert.Equal(t, 19.0, p.Goal)
	assert.Equal(t, []float64{-16, -10, 2, 13, 16}, p.Numbers)
	assert.False(t, p.Generated)

	_, err = Resolve(Request{Date: Date{Month: 2, Day: 30}, Now: now})
	assert.ErrorIs(t, err, ErrInvalidDate)
}
