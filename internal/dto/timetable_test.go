package dto

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInput = `[{"Courses":[{"courseid":101,"coursename":"Physics","section":"3A",
"classschedule":[
 {"duration":"1:30","roomid":[12,"LAB-2"],"employeeid":120,"day":["Monday","Tuesday"],"Type":"Regular"},
 {"duration":2,"roomid":"R1","employeeid":"E9","day":"Friday"}
]}]}]`

func TestGenerateTimetableRequestAcceptsBareArray(t *testing.T) {
	var req GenerateTimetableRequest
	require.NoError(t, json.Unmarshal([]byte(sampleInput), &req))

	require.Len(t, req.Groups, 1)
	course := req.Groups[0].Courses[0]
	assert.Equal(t, FlexString("101"), course.CourseID)
	assert.Equal(t, FlexString("3A"), course.Section)
	require.Len(t, course.ClassSchedule, 2)

	first := course.ClassSchedule[0]
	assert.Equal(t, FlexList{"12", "LAB-2"}, first.RoomID)
	assert.Equal(t, FlexString("120"), first.EmployeeID)
	assert.Equal(t, FlexList{"Monday", "Tuesday"}, first.Day)

	second := course.ClassSchedule[1]
	assert.Equal(t, FlexString("2"), second.Duration)
	assert.Equal(t, FlexList{"R1"}, second.RoomID)
	assert.Equal(t, FlexList{"Friday"}, second.Day)

	assert.NoError(t, validator.New().Struct(req))
}

func TestGenerateTimetableRequestWithOptions(t *testing.T) {
	body := `{"strategy":"genetic","seed":7,"allowForced":true,"groups":` + sampleInput + `}`
	var req GenerateTimetableRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, "genetic", req.Strategy)
	require.NotNil(t, req.Seed)
	assert.EqualValues(t, 7, *req.Seed)
	require.NotNil(t, req.AllowForced)
	assert.True(t, *req.AllowForced)
	assert.Len(t, req.Groups, 1)
}

func TestGenerateTimetableRequestValidation(t *testing.T) {
	v := validator.New()

	assert.Error(t, v.Struct(GenerateTimetableRequest{}))
	assert.Error(t, v.Struct(GenerateTimetableRequest{
		Strategy: "simulated-annealing",
		Groups:   []CourseGroup{{Courses: []CourseEntry{{CourseID: "1", Section: "A"}}}},
	}))
	assert.Error(t, v.Struct(GenerateTimetableRequest{
		Groups: []CourseGroup{{Courses: []CourseEntry{{CourseID: "1"}}}},
	}))
}

func TestFlexStringRejectsObjects(t *testing.T) {
	var s FlexString
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &s))
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	assert.Empty(t, s)
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed("")
	require.NoError(t, err)
	assert.Nil(t, seed)

	seed, err = ParseSeed("42")
	require.NoError(t, err)
	assert.EqualValues(t, 42, *seed)

	_, err = ParseSeed("x")
	assert.Error(t, err)
}
