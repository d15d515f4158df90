package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	reqs := []*Request{
		newRequest("MATH", "S1", "E1", 90, []string{"R1"}, Monday),
		newRequest("PHYS", "S1", "E1", 60, []string{"R1", "R2"}, Monday),
		newRequest("LONG", "S2", "E2", 1200, []string{"R3"}, Monday),
	}
	res := NewGreedy(GreedyOptions{}, nil).Schedule(New(), reqs)
	st := Summarize(len(reqs), res)

	assert.Equal(t, 3, st.Requests)
	assert.Equal(t, 2, st.Placed)
	assert.Equal(t, 1, st.Unplaced)
	assert.Equal(t, 0, st.Forced)
	assert.Equal(t, 0, st.Conflicts)
	assert.Equal(t, 150, st.TotalMinutes)
	assert.Equal(t, 2, st.PerDay[Monday])

	require.Contains(t, st.Rooms, "R1")
	assert.Equal(t, 2, st.Rooms["R1"].Sessions)
	assert.Equal(t, 150, st.Rooms["R1"].Minutes)
	assert.InDelta(t, 150.0/540*100, st.Rooms["R1"].Percent, 1e-9)
	assert.Equal(t, 60, st.Rooms["R2"].Minutes)
	assert.Equal(t, 2, st.Instructors["E1"].Sessions)
}
