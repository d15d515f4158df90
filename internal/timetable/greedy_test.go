package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGreedyPlacesSingleRequestAtWindowStart(t *testing.T) {
	r := newRequest("MATH", "S1", "E1", 60, []string{"R1"})
	res := NewGreedy(GreedyOptions{}, zap.NewNop()).Schedule(New(), []*Request{r})

	require.True(t, res.Success)
	require.Len(t, res.Bookings, 1)
	b := res.Bookings[0]
	assert.Equal(t, Monday, b.Day)
	assert.Equal(t, 480, b.Start)
	assert.Equal(t, 540, b.End)
	assert.Equal(t, "08:00", b.StartClock())
	assert.False(t, b.Forced)
}

func TestGreedySameSectionDifferentCoursesShareDay(t *testing.T) {
	r1 := newRequest("MATH", "S1", "E1", 60, []string{"R1"}, Monday)
	r2 := newRequest("PHYS", "S1", "E2", 60, []string{"R2"}, Monday)
	res := NewGreedy(GreedyOptions{}, nil).Schedule(New(), []*Request{r1, r2})

	require.True(t, res.Success)
	b1, b2 := bookingOf(t, res, r1), bookingOf(t, res, r2)
	assert.Equal(t, Monday, b1.Day)
	assert.Equal(t, Monday, b2.Day)
	assert.Equal(t, 480, b1.Start)
	assert.Equal(t, 540, b2.Start)
}

func TestGreedySameCourseSpreadsAcrossDays(t *testing.T) {
	r1 := newRequest("MATH", "S1", "E1", 60, []string{"R1"}, Monday, Tuesday)
	r2 := newRequest("MATH", "S1", "E1", 60, []string{"R1"}, Monday, Tuesday)
	res := NewGreedy(GreedyOptions{}, nil).Schedule(New(), []*Request{r1, r2})

	require.True(t, res.Success)
	assert.Equal(t, Monday, bookingOf(t, res, r1).Day)
	assert.Equal(t, Tuesday, bookingOf(t, res, r2).Day)
}

func TestGreedyBalancesSectionLoad(t *testing.T) {
	r1 := newRequest("MATH", "S1", "E1", 60, []string{"R1"}, Monday)
	r2 := newRequest("PHYS", "S1", "E2", 60, []string{"R2"}, Monday, Wednesday)
	res := NewGreedy(GreedyOptions{}, nil).Schedule(New(), []*Request{r1, r2})

	require.True(t, res.Success)
	assert.Equal(t, Wednesday, bookingOf(t, res, r2).Day)
}

func TestGreedyReportsUnplacedWithReason(t *testing.T) {
	var reqs []*Request
	for _, c := range []string{"A", "B", "C"} {
		reqs = append(reqs, newRequest(c, "S"+c, "E1", 240, []string{"R" + c}))
	}
	tt := New()
	res := NewGreedy(GreedyOptions{}, nil).Schedule(tt, reqs)

	assert.False(t, res.Success)
	require.Len(t, res.Unplaced, 1)
	assert.Same(t, reqs[2], res.Unplaced[0].Request)
	assert.Contains(t, res.Unplaced[0].Reason, "Employee conflict at 08:00 on Monday")
	assert.Contains(t, res.Unplaced[0].Reason, "Break time overlap")
	assert.Empty(t, tt.Validate())
	assertNoBreak(t, res.Bookings)
}

func TestGreedyForcedPlacementIsFlagged(t *testing.T) {
	var reqs []*Request
	for _, c := range []string{"A", "B", "C"} {
		reqs = append(reqs, newRequest(c, "S"+c, "E1", 240, []string{"R" + c}))
	}
	tt := New()
	res := NewGreedy(GreedyOptions{AllowForced: true}, zap.NewNop()).Schedule(tt, reqs)

	assert.False(t, res.Success)
	assert.Empty(t, res.Unplaced)
	forced := res.Forced()
	require.Len(t, forced, 1)
	assert.Same(t, reqs[2], forced[0].Request)
	assert.Equal(t, 480, forced[0].Start)
	assert.NotEmpty(t, tt.Validate())
}

func TestGreedyNeverPlacesOversizedRequest(t *testing.T) {
	long := newRequest("LONG", "S1", "E1", 1200, []string{"R1"}, Monday, Tuesday)
	for _, forced := range []bool{false, true} {
		res := NewGreedy(GreedyOptions{AllowForced: forced}, nil).Schedule(New(), []*Request{long})
		assert.False(t, res.Success)
		assert.Empty(t, res.Bookings)
		require.Len(t, res.Unplaced, 1)
		assert.Equal(t, ReasonTooLong, res.Unplaced[0].Reason)
	}
}

func TestGreedyExtendedWindowStartsAtSix(t *testing.T) {
	r := newRequest("MATH", "S1", "E1", 60, []string{"R1"})
	res := NewGreedy(GreedyOptions{Window: ExtendedWindow}, nil).Schedule(New(), []*Request{r})
	require.True(t, res.Success)
	assert.Equal(t, 360, res.Bookings[0].Start)
}

func TestGreedyOverloadUsesEveningWindow(t *testing.T) {
	r := newRequest("NIGHT", "S1", "E1", 90, []string{"R1"})
	r.Kind = KindOverload
	res := NewGreedy(GreedyOptions{}, nil).Schedule(New(), []*Request{r})
	require.True(t, res.Success)
	assert.Equal(t, "17:30", res.Bookings[0].StartClock())
}

func TestGreedyAnyRoomPicksFreeRoom(t *testing.T) {
	r1 := newRequest("MATH", "S1", "E1", 60, []string{"R1"})
	r2 := newRequest("LAB", "S2", "E2", 60, []string{"R1", "R2"})
	r2.AnyRoom = true
	res := NewGreedy(GreedyOptions{}, nil).Schedule(New(), []*Request{r1, r2})

	require.True(t, res.Success)
	b := bookingOf(t, res, r2)
	assert.Equal(t, 480, b.Start)
	assert.Equal(t, []string{"R2"}, b.Rooms)
}

func TestGreedyResetsTimetable(t *testing.T) {
	tt := New()
	r := newRequest("MATH", "S1", "E1", 60, []string{"R1"})
	g := NewGreedy(GreedyOptions{}, nil)
	g.Schedule(tt, []*Request{r})
	res := g.Schedule(tt, []*Request{r})
	require.True(t, res.Success)
	assert.Equal(t, 1, tt.Len())
}
