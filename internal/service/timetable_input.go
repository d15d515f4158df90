package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/timetable"
)

// Skip reasons for sessions dropped before scheduling.
const (
	SkipMissingRoom       = "missing room"
	SkipMissingInstructor = "missing instructor"
)

// BuildRequests flattens course groups into scheduling requests in input
// order. Sessions without a room or instructor are skipped and reported; any
// other malformed session fails the whole batch.
func BuildRequests(groups []dto.CourseGroup) ([]*timetable.Request, []dto.SkippedRecord, error) {
	var (
		requests []*timetable.Request
		skipped  []dto.SkippedRecord
		errs     []error
	)
	for _, group := range groups {
		for _, course := range group.Courses {
			courseID := strings.TrimSpace(string(course.CourseID))
			section := strings.TrimSpace(string(course.Section))
			for i, spec := range course.ClassSchedule {
				rooms := cleanList(spec.RoomID)
				instructor := strings.TrimSpace(string(spec.EmployeeID))
				switch {
				case len(rooms) == 0:
					skipped = append(skipped, dto.SkippedRecord{CourseID: courseID, Section: section, Session: i, Reason: SkipMissingRoom})
					continue
				case instructor == "":
					skipped = append(skipped, dto.SkippedRecord{CourseID: courseID, Section: section, Session: i, Reason: SkipMissingInstructor})
					continue
				}

				where := fmt.Sprintf("course %s section %s session %d", courseID, section, i)
				duration, err := timetable.ParseDuration(string(spec.Duration))
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", where, err))
					continue
				}
				days, err := parseDays(spec.Day)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", where, err))
					continue
				}

				req := &timetable.Request{
					ID:         len(requests),
					CourseID:   courseID,
					CourseName: strings.TrimSpace(course.CourseName),
					Section:    section,
					Duration:   duration,
					Rooms:      rooms,
					Instructor: instructor,
					Days:       days,
					Kind:       sessionKind(spec.Type),
					AnyRoom:    spec.RoomChoice,
				}
				if err := req.Validate(); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", where, err))
					continue
				}
				requests = append(requests, req)
			}
		}
	}
	return requests, skipped, errors.Join(errs...)
}

func cleanList(raw dto.FlexList) []string {
	trimmed := lo.Map(raw, func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Filter(trimmed, func(s string, _ int) bool { return s != "" }))
}

// parseDays resolves day names; an absent list means Monday only.
func parseDays(raw dto.FlexList) ([]timetable.Weekday, error) {
	names := cleanList(raw)
	if len(names) == 0 {
		return []timetable.Weekday{timetable.Monday}, nil
	}
	days := make([]timetable.Weekday, 0, len(names))
	for _, name := range names {
		day, err := timetable.ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return lo.Uniq(days), nil
}

func sessionKind(raw string) timetable.SessionKind {
	if strings.EqualFold(strings.TrimSpace(raw), string(timetable.KindOverload)) {
		return timetable.KindOverload
	}
	return timetable.KindRegular
}
