package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/timetable"
)

func TestRunResponseCarriesMinuteOffsetsThroughStorage(t *testing.T) {
	requests := []*timetable.Request{
		{ID: 0, CourseID: "C1", CourseName: "Mathematics", Section: "S1", Duration: 60, Rooms: []string{"R1"}, Instructor: "E1", Days: []timetable.Weekday{timetable.Monday}, Kind: timetable.KindRegular},
		{ID: 1, CourseID: "C2", CourseName: "Chemistry", Section: "S1", Duration: 90, Rooms: []string{"R2"}, Instructor: "E2", Days: []timetable.Weekday{timetable.Monday}, Kind: timetable.KindOverload},
	}
	res := timetable.NewGreedy(timetable.GreedyOptions{}, nil).Schedule(timetable.New(), requests)
	require.True(t, res.Success)

	resp := buildRunResponse("run-1", 3, time.Now().UTC(), time.Second, len(requests), timetable.Outcome{Result: res}, nil)
	require.Len(t, resp.Bookings, 2)

	byCourse := map[string]int{}
	for i, b := range resp.Bookings {
		byCourse[b.CourseID] = i
	}
	math := resp.Bookings[byCourse["C1"]]
	assert.Equal(t, "08:00", math.Start)
	assert.Equal(t, 480, math.StartMinutes)
	assert.Equal(t, 540, math.EndMinutes)
	chem := resp.Bookings[byCourse["C2"]]
	assert.Equal(t, 1050, chem.StartMinutes)
	assert.Equal(t, 1140, chem.EndMinutes)
	assert.Equal(t, "19:00", chem.End)

	raw, err := json.Marshal(math)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"startMinutes":480`)
	assert.Contains(t, string(raw), `"endMinutes":540`)

	run, bookings, unplaced, err := runRows(resp)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, math.StartMinutes, bookings[byCourse["C1"]].StartMin)
	assert.Equal(t, chem.EndMinutes, bookings[byCourse["C2"]].EndMin)

	restored, err := runFromRows(run, bookings, unplaced)
	require.NoError(t, err)
	assert.Equal(t, resp.Bookings, restored.Bookings)
}
