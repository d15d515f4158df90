package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexString accepts a JSON string or number and keeps its textual form.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = FlexString(raw)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = FlexString(num.String())
	return nil
}

// FlexList accepts a single scalar or an array of scalars.
type FlexList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *FlexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []FlexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make(FlexList, 0, len(items))
		for _, item := range items {
			out = append(out, string(item))
		}
		*l = out
		return nil
	}
	var single FlexString
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = FlexList{string(single)}
	return nil
}

// SessionSpec is one weekly session of a course. Duration is "H:MM" or whole hours.
type SessionSpec struct {
	Duration   FlexString `json:"duration" validate:"required"`
	RoomID     FlexList   `json:"roomid"`
	EmployeeID FlexString `json:"employeeid"`
	Day        FlexList   `json:"day"`
	Type       string     `json:"Type"`
	RoomChoice bool       `json:"roomChoice"`
}

// CourseEntry is a course offered to one section.
type CourseEntry struct {
	CourseID      FlexString    `json:"courseid" validate:"required"`
	CourseName    string        `json:"coursename"`
	Section       FlexString    `json:"section" validate:"required"`
	ClassSchedule []SessionSpec `json:"classschedule" validate:"dive"`
}

// CourseGroup wraps the course list of one input block.
type CourseGroup struct {
	Courses []CourseEntry `json:"Courses" validate:"required,min=1,dive"`
}

// GenerateTimetableRequest triggers a scheduling run. The body may also be a
// bare array of course groups, in which case every option takes its default.
type GenerateTimetableRequest struct {
	Strategy        string        `json:"strategy" validate:"omitempty,oneof=greedy backtracking genetic repair pipeline"`
	Seed            *int64        `json:"seed"`
	AllowForced     *bool         `json:"allowForced"`
	ExtendedWindow  bool          `json:"extendedWindow"`
	GeneticAttempts int           `json:"geneticAttempts" validate:"omitempty,min=1,max=50"`
	Generations     int           `json:"generations" validate:"omitempty,min=1,max=5000"`
	PopulationSize  int           `json:"populationSize" validate:"omitempty,min=2,max=2000"`
	Groups          []CourseGroup `json:"groups" validate:"required,min=1,dive"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *GenerateTimetableRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		*r = GenerateTimetableRequest{}
		return json.Unmarshal(trimmed, &r.Groups)
	}
	type plain GenerateTimetableRequest
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = GenerateTimetableRequest(p)
	return nil
}

// BookingRecord is one placed session.
type BookingRecord struct {
	CourseID     string   `json:"courseId"`
	CourseName   string   `json:"courseName"`
	Section      string   `json:"section"`
	Day          string   `json:"day"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	StartMinutes int      `json:"startMinutes"`
	EndMinutes   int      `json:"endMinutes"`
	Duration     int      `json:"duration"`
	Rooms        []string `json:"rooms"`
	Instructor   string   `json:"instructor"`
	Kind         string   `json:"kind"`
	Forced       bool     `json:"forced,omitempty"`
}

// UnplacedRecord is a session that could not be placed, with the reason.
type UnplacedRecord struct {
	CourseID   string   `json:"courseId"`
	CourseName string   `json:"courseName"`
	Section    string   `json:"section"`
	Duration   int      `json:"duration"`
	Rooms      []string `json:"rooms"`
	Instructor string   `json:"instructor"`
	Days       []string `json:"days"`
	Reason     string   `json:"reason"`
}

// SkippedRecord is a session dropped from the input before scheduling.
type SkippedRecord struct {
	CourseID string `json:"courseId"`
	Section  string `json:"section"`
	Session  int    `json:"session"`
	Reason   string `json:"reason"`
}

// StageRecord reports one strategy run of a pipeline.
type StageRecord struct {
	Strategy  string `json:"strategy"`
	Attempt   int    `json:"attempt,omitempty"`
	Success   bool   `json:"success"`
	Placed    int    `json:"placed"`
	Forced    int    `json:"forced,omitempty"`
	Unplaced  int    `json:"unplaced"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// ConflictRecord describes an overlap present in the final bookings.
type ConflictRecord struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// UsageRecord summarises the load of a room or instructor.
type UsageRecord struct {
	Sessions int     `json:"sessions"`
	Minutes  int     `json:"minutes"`
	Percent  float64 `json:"percent"`
}

// StatsRecord aggregates a run.
type StatsRecord struct {
	Requests     int                    `json:"requests"`
	Placed       int                    `json:"placed"`
	Unplaced     int                    `json:"unplaced"`
	Forced       int                    `json:"forced"`
	Conflicts    int                    `json:"conflicts"`
	TotalMinutes int                    `json:"totalMinutes"`
	PerDay       map[string]int         `json:"perDay"`
	Rooms        map[string]UsageRecord `json:"rooms"`
	Instructors  map[string]UsageRecord `json:"instructors"`
}

// TimetableRunResponse is the full outcome of a run.
type TimetableRunResponse struct {
	ID        string           `json:"id"`
	Strategy  string           `json:"strategy"`
	Success   bool             `json:"success"`
	Seed      int64            `json:"seed"`
	CreatedAt time.Time        `json:"createdAt"`
	ElapsedMs int64            `json:"elapsedMs"`
	Bookings  []BookingRecord  `json:"bookings"`
	Unplaced  []UnplacedRecord `json:"unplaced"`
	Skipped   []SkippedRecord  `json:"skipped,omitempty"`
	Stages    []StageRecord    `json:"stages,omitempty"`
	Conflicts []ConflictRecord `json:"conflicts,omitempty"`
	Stats     StatsRecord      `json:"stats"`
	// Cached is set when Generate answered from a previous identical run.
	Cached bool `json:"-"`
}

// TimetableRunQuery filters the run listing.
type TimetableRunQuery struct {
	Strategy string `form:"strategy" validate:"omitempty,oneof=greedy backtracking genetic repair pipeline"`
	Success  *bool  `form:"success"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ExportTimetableRequest selects the rendering of a stored run.
type ExportTimetableRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf json"`
	View   string `json:"view" validate:"omitempty,oneof=flat unplaced section room instructor"`
	// Key restricts a grid view to one section, room or instructor.
	Key string `json:"key"`
}

// ExportTimetableResponse carries the signed download link.
type ExportTimetableResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	Format    string    `json:"format"`
	View      string    `json:"view"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// JobStatus is the lifecycle of an asynchronous run.
type JobStatus string

// Job states.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// TimetableJobResponse reports the state of an asynchronous run.
type TimetableJobResponse struct {
	ID         string                `json:"id"`
	RequestID  string                `json:"requestId,omitempty"`
	Status     JobStatus             `json:"status"`
	Error      string                `json:"error,omitempty"`
	EnqueuedAt time.Time             `json:"enqueuedAt"`
	FinishedAt *time.Time            `json:"finishedAt,omitempty"`
	Run        *TimetableRunResponse `json:"run,omitempty"`
}

// ParseSeed accepts a decimal seed from query strings or flags.
func ParseSeed(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid seed %q: %w", raw, err)
	}
	return &v, nil
}
