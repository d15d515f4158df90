package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
)

// runMeta is the part of a run response kept in the meta JSON column.
type runMeta struct {
	Skipped   []dto.SkippedRecord  `json:"skipped,omitempty"`
	Stages    []dto.StageRecord    `json:"stages,omitempty"`
	Conflicts []dto.ConflictRecord `json:"conflicts,omitempty"`
	Stats     dto.StatsRecord      `json:"stats"`
}

func buildRunResponse(id string, seed int64, createdAt time.Time, elapsed time.Duration, requests int, outcome timetable.Outcome, skipped []dto.SkippedRecord) dto.TimetableRunResponse {
	bookings := append([]*timetable.Booking(nil), outcome.Bookings...)
	sortBookings(bookings)

	tt := timetable.New()
	for _, b := range bookings {
		tt.Add(b)
	}

	return dto.TimetableRunResponse{
		ID:        id,
		Strategy:  string(outcome.Strategy),
		Success:   outcome.Success,
		Seed:      seed,
		CreatedAt: createdAt,
		ElapsedMs: elapsed.Milliseconds(),
		Bookings:  lo.Map(bookings, func(b *timetable.Booking, _ int) dto.BookingRecord { return bookingRecord(b) }),
		Unplaced:  lo.Map(outcome.Unplaced, func(u timetable.Unplaced, _ int) dto.UnplacedRecord { return unplacedRecord(u) }),
		Skipped:   skipped,
		Stages:    lo.Map(outcome.Stages, func(s timetable.StageReport, _ int) dto.StageRecord { return stageRecord(s) }),
		Conflicts: lo.Map(tt.Validate(), func(c timetable.Conflict, _ int) dto.ConflictRecord {
			return dto.ConflictRecord{Kind: string(c.Kind), Message: c.Message}
		}),
		Stats: statsRecord(timetable.Summarize(requests, outcome.Result)),
	}
}

func sortBookings(bookings []*timetable.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if a.Day != b.Day {
			return a.Day.Index() < b.Day.Index()
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Section() != b.Section() {
			return a.Section() < b.Section()
		}
		return a.CourseID() < b.CourseID()
	})
}

func bookingRecord(b *timetable.Booking) dto.BookingRecord {
	return dto.BookingRecord{
		CourseID:     b.CourseID(),
		CourseName:   b.CourseName(),
		Section:      b.Section(),
		Day:          string(b.Day),
		Start:        b.StartClock(),
		End:          b.EndClock(),
		StartMinutes: b.Start,
		EndMinutes:   b.End,
		Duration:     b.Duration(),
		Rooms:        append([]string(nil), b.Rooms...),
		Instructor:   b.Instructor(),
		Kind:         string(b.Request.Kind),
		Forced:       b.Forced,
	}
}

func unplacedRecord(u timetable.Unplaced) dto.UnplacedRecord {
	return dto.UnplacedRecord{
		CourseID:   u.Request.CourseID,
		CourseName: u.Request.CourseName,
		Section:    u.Request.Section,
		Duration:   u.Request.Duration,
		Rooms:      append([]string(nil), u.Request.Rooms...),
		Instructor: u.Request.Instructor,
		Days:       lo.Map(u.Request.Days, func(d timetable.Weekday, _ int) string { return string(d) }),
		Reason:     u.Reason,
	}
}

func stageRecord(s timetable.StageReport) dto.StageRecord {
	return dto.StageRecord{
		Strategy:  string(s.Strategy),
		Attempt:   s.Attempt,
		Success:   s.Success,
		Placed:    s.Placed,
		Forced:    s.Forced,
		Unplaced:  s.Unplaced,
		ElapsedMs: s.Elapsed.Milliseconds(),
	}
}

func statsRecord(st timetable.Stats) dto.StatsRecord {
	usage := func(in map[string]timetable.ResourceUsage) map[string]dto.UsageRecord {
		return lo.MapValues(in, func(u timetable.ResourceUsage, _ string) dto.UsageRecord {
			return dto.UsageRecord{Sessions: u.Sessions, Minutes: u.Minutes, Percent: u.Percent}
		})
	}
	return dto.StatsRecord{
		Requests:     st.Requests,
		Placed:       st.Placed,
		Unplaced:     st.Unplaced,
		Forced:       st.Forced,
		Conflicts:    st.Conflicts,
		TotalMinutes: st.TotalMinutes,
		PerDay:       lo.MapKeys(st.PerDay, func(_ int, d timetable.Weekday) string { return string(d) }),
		Rooms:        usage(st.Rooms),
		Instructors:  usage(st.Instructors),
	}
}

// runRows splits a response into the rows stored by the run repository.
func runRows(resp dto.TimetableRunResponse) (*models.TimetableRun, []models.TimetableBooking, []models.TimetableUnplaced, error) {
	meta, err := json.Marshal(runMeta{Skipped: resp.Skipped, Stages: resp.Stages, Conflicts: resp.Conflicts, Stats: resp.Stats})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal run meta: %w", err)
	}
	run := &models.TimetableRun{
		ID:        resp.ID,
		Strategy:  resp.Strategy,
		Success:   resp.Success,
		Seed:      resp.Seed,
		Requests:  resp.Stats.Requests,
		Placed:    resp.Stats.Placed,
		Unplaced:  resp.Stats.Unplaced,
		Forced:    resp.Stats.Forced,
		ElapsedMs: resp.ElapsedMs,
		Meta:      types.JSONText(meta),
		CreatedAt: resp.CreatedAt,
	}
	bookings := make([]models.TimetableBooking, 0, len(resp.Bookings))
	for _, b := range resp.Bookings {
		start := b.StartMinutes
		if b.Start != "" && start == 0 {
			parsed, err := timetable.ParseClock(b.Start)
			if err != nil {
				return nil, nil, nil, err
			}
			start = parsed
		}
		bookings = append(bookings, models.TimetableBooking{
			CourseID:   b.CourseID,
			CourseName: b.CourseName,
			Section:    b.Section,
			Day:        b.Day,
			StartMin:   start,
			EndMin:     start + b.Duration,
			Rooms:      pq.StringArray(b.Rooms),
			Instructor: b.Instructor,
			Kind:       b.Kind,
			Forced:     b.Forced,
		})
	}
	unplaced := lo.Map(resp.Unplaced, func(u dto.UnplacedRecord, _ int) models.TimetableUnplaced {
		return models.TimetableUnplaced{
			CourseID:   u.CourseID,
			CourseName: u.CourseName,
			Section:    u.Section,
			Duration:   u.Duration,
			Rooms:      pq.StringArray(u.Rooms),
			Instructor: u.Instructor,
			Days:       pq.StringArray(u.Days),
			Reason:     u.Reason,
		}
	})
	return run, bookings, unplaced, nil
}

// runFromRows reassembles a response from stored rows.
func runFromRows(run *models.TimetableRun, bookings []models.TimetableBooking, unplaced []models.TimetableUnplaced) (dto.TimetableRunResponse, error) {
	var meta runMeta
	if len(run.Meta) > 0 {
		if err := json.Unmarshal(run.Meta, &meta); err != nil {
			return dto.TimetableRunResponse{}, fmt.Errorf("unmarshal run meta: %w", err)
		}
	}
	return dto.TimetableRunResponse{
		ID:        run.ID,
		Strategy:  run.Strategy,
		Success:   run.Success,
		Seed:      run.Seed,
		CreatedAt: run.CreatedAt,
		ElapsedMs: run.ElapsedMs,
		Bookings: lo.Map(bookings, func(b models.TimetableBooking, _ int) dto.BookingRecord {
			return dto.BookingRecord{
				CourseID:     b.CourseID,
				CourseName:   b.CourseName,
				Section:      b.Section,
				Day:          b.Day,
				Start:        timetable.FormatClock(b.StartMin),
				End:          timetable.FormatClock(b.EndMin),
				StartMinutes: b.StartMin,
				EndMinutes:   b.EndMin,
				Duration:     b.EndMin - b.StartMin,
				Rooms:        []string(b.Rooms),
				Instructor:   b.Instructor,
				Kind:         b.Kind,
				Forced:       b.Forced,
			}
		}),
		Unplaced: lo.Map(unplaced, func(u models.TimetableUnplaced, _ int) dto.UnplacedRecord {
			return dto.UnplacedRecord{
				CourseID:   u.CourseID,
				CourseName: u.CourseName,
				Section:    u.Section,
				Duration:   u.Duration,
				Rooms:      []string(u.Rooms),
				Instructor: u.Instructor,
				Days:       []string(u.Days),
				Reason:     u.Reason,
			}
		}),
		Skipped:   meta.Skipped,
		Stages:    meta.Stages,
		Conflicts: meta.Conflicts,
		Stats:     meta.Stats,
	}, nil
}
