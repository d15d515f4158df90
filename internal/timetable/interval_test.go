package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		startA, durA, startB, durB int
		want                       bool
	}{
		{"identical", 480, 60, 480, 60, true},
		{"adjacent after", 480, 60, 540, 30, false},
		{"adjacent before", 540, 30, 480, 60, false},
		{"contained", 480, 120, 510, 30, true},
		{"partial", 480, 90, 540, 60, true},
		{"disjoint", 480, 30, 600, 30, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.startA, tc.durA, tc.startB, tc.durB))
		})
	}
}

func TestOverlapsSelfAndTouching(t *testing.T) {
	for s := 0; s < 1440; s += 45 {
		for d := 1; d < 300; d += 37 {
			assert.True(t, Overlaps(s, d, s, d))
			assert.False(t, Overlaps(s, d, s+d, 15))
			assert.False(t, Overlaps(s, d, s+d, 600))
		}
	}
}

func TestInBreak(t *testing.T) {
	assert.False(t, InBreak(660, 60), "11:00-12:00 ends at the break")
	assert.True(t, InBreak(690, 60))
	assert.True(t, InBreak(720, 1))
	assert.True(t, InBreak(600, 240))
	assert.False(t, InBreak(780, 60), "13:00 starts after the break")
}

func TestWindowStarts(t *testing.T) {
	starts := DaytimeWindow.Starts(60)
	require.NotEmpty(t, starts)
	assert.Equal(t, 480, starts[0])
	assert.Equal(t, 960, starts[len(starts)-1])
	assert.Len(t, starts, 14)
	assert.Contains(t, starts, 660)
	assert.Contains(t, starts, 780)
	assert.NotContains(t, starts, 690)
	assert.NotContains(t, starts, 720)
	assert.NotContains(t, starts, 750)

	assert.Empty(t, DaytimeWindow.Starts(1200))
	assert.False(t, DaytimeWindow.Fits(1200))
	assert.False(t, DaytimeWindow.Fits(270), "4h30 cannot avoid the break inside 08:00-17:00")
	assert.True(t, DaytimeWindow.Fits(240))

	assert.Equal(t, []int{1050, 1080, 1110, 1140}, OverloadWindow.Starts(90))
	assert.Equal(t, 360, ExtendedWindow.Starts(60)[0])
}

func TestClockAndDuration(t *testing.T) {
	assert.Equal(t, "08:05", FormatClock(485))
	assert.Equal(t, "17:30", FormatClock(1050))

	m, err := ParseClock("13:30")
	require.NoError(t, err)
	assert.Equal(t, 810, m)
	_, err = ParseClock("25:00")
	assert.Error(t, err)

	d, err := ParseDuration("1:30")
	require.NoError(t, err)
	assert.Equal(t, 90, d)
	d, err = ParseDuration(" 2 ")
	require.NoError(t, err)
	assert.Equal(t, 120, d)
	for _, raw := range []string{"", "0:00", "x", "1:75", "-1"} {
		_, err := ParseDuration(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday(" saturday")
	require.NoError(t, err)
	assert.Equal(t, Saturday, d)
	assert.Equal(t, 5, d.Index())

	_, err = ParseWeekday("Funday")
	assert.Error(t, err)
}
