package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// TimetableRun is a persisted scheduling run.
type TimetableRun struct {
	ID        string         `db:"id" json:"id"`
	Strategy  string         `db:"strategy" json:"strategy"`
	Success   bool           `db:"success" json:"success"`
	Seed      int64          `db:"seed" json:"seed"`
	Requests  int            `db:"requests" json:"requests"`
	Placed    int            `db:"placed" json:"placed"`
	Unplaced  int            `db:"unplaced" json:"unplaced"`
	Forced    int            `db:"forced" json:"forced"`
	ElapsedMs int64          `db:"elapsed_ms" json:"elapsed_ms"`
	Meta      types.JSONText `db:"meta" json:"meta"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// TimetableBooking is one placed session of a run.
type TimetableBooking struct {
	ID         string         `db:"id" json:"id"`
	RunID      string         `db:"run_id" json:"run_id"`
	CourseID   string         `db:"course_id" json:"course_id"`
	CourseName string         `db:"course_name" json:"course_name"`
	Section    string         `db:"section" json:"section"`
	Day        string         `db:"day" json:"day"`
	StartMin   int            `db:"start_min" json:"start_min"`
	EndMin     int            `db:"end_min" json:"end_min"`
	Rooms      pq.StringArray `db:"rooms" json:"rooms"`
	Instructor string         `db:"instructor" json:"instructor"`
	Kind       string         `db:"kind" json:"kind"`
	Forced     bool           `db:"forced" json:"forced"`
}

// TimetableUnplaced is a session a run could not place.
type TimetableUnplaced struct {
	ID         string         `db:"id" json:"id"`
	RunID      string         `db:"run_id" json:"run_id"`
	CourseID   string         `db:"course_id" json:"course_id"`
	CourseName string         `db:"course_name" json:"course_name"`
	Section    string         `db:"section" json:"section"`
	Duration   int            `db:"duration" json:"duration"`
	Rooms      pq.StringArray `db:"rooms" json:"rooms"`
	Instructor string         `db:"instructor" json:"instructor"`
	Days       pq.StringArray `db:"days" json:"days"`
	Reason     string         `db:"reason" json:"reason"`
}

// TimetableRunFilter narrows run listings.
type TimetableRunFilter struct {
	Strategy string
	Success  *bool
	Page     int
	PageSize int
}
