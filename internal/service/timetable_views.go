package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	"github.com/noah-isme/sma-timetable/pkg/export"
)

// Export views.
const (
	ViewFlat       = "flat"
	ViewUnplaced   = "unplaced"
	ViewSection    = "section"
	ViewRoom       = "room"
	ViewInstructor = "instructor"
)

// Grid rows cover 06:00 to 21:00 in half-hour slots.
const (
	gridStart = 6 * 60
	gridEnd   = 21 * 60
)

var flatHeaders = []string{"Course ID", "Course Name", "Section", "Day", "Start", "End", "Duration", "Rooms", "Instructor", "Kind", "Forced"}

var unplacedHeaders = []string{"Course ID", "Course Name", "Section", "Duration", "Rooms", "Instructor", "Days", "Reason"}

// BuildDataset renders one view of a run as a table. key narrows the grid
// views to a single section, room or instructor; without it every entity is
// listed with its own leading column.
func BuildDataset(run *dto.TimetableRunResponse, view, key string) (export.Dataset, string, error) {
	if run == nil {
		return export.Dataset{}, "", fmt.Errorf("run is nil")
	}
	switch view {
	case "", ViewFlat:
		return flatDataset(run.Bookings), "Timetable " + run.ID, nil
	case ViewUnplaced:
		return unplacedDataset(run.Unplaced), "Unplaced sessions " + run.ID, nil
	case ViewSection, ViewRoom, ViewInstructor:
		return gridDataset(run.Bookings, view, key)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported view %q", view)
	}
}

func flatDataset(bookings []dto.BookingRecord) export.Dataset {
	rows := lo.Map(bookings, func(b dto.BookingRecord, _ int) map[string]string {
		return map[string]string{
			"Course ID":   b.CourseID,
			"Course Name": b.CourseName,
			"Section":     b.Section,
			"Day":         b.Day,
			"Start":       b.Start,
			"End":         b.End,
			"Duration":    strconv.Itoa(b.Duration),
			"Rooms":       strings.Join(b.Rooms, ", "),
			"Instructor":  b.Instructor,
			"Kind":        b.Kind,
			"Forced":      strconv.FormatBool(b.Forced),
		}
	})
	return export.Dataset{Headers: flatHeaders, Rows: rows}
}

func unplacedDataset(unplaced []dto.UnplacedRecord) export.Dataset {
	rows := lo.Map(unplaced, func(u dto.UnplacedRecord, _ int) map[string]string {
		return map[string]string{
			"Course ID":   u.CourseID,
			"Course Name": u.CourseName,
			"Section":     u.Section,
			"Duration":    strconv.Itoa(u.Duration),
			"Rooms":       strings.Join(u.Rooms, ", "),
			"Instructor":  u.Instructor,
			"Days":        strings.Join(u.Days, ", "),
			"Reason":      u.Reason,
		}
	})
	return export.Dataset{Headers: unplacedHeaders, Rows: rows}
}

func gridEntities(b dto.BookingRecord, view string) []string {
	switch view {
	case ViewSection:
		return []string{b.Section}
	case ViewRoom:
		return b.Rooms
	default:
		return []string{b.Instructor}
	}
}

func gridLabel(view string) string {
	switch view {
	case ViewSection:
		return "Section"
	case ViewRoom:
		return "Room"
	default:
		return "Instructor"
	}
}

func gridCell(b dto.BookingRecord) string {
	name := b.CourseName
	if name == "" {
		name = b.CourseID
	}
	cell := fmt.Sprintf("%s\n%s\n%s\nEmp:%s", name, b.Section, strings.Join(b.Rooms, ", "), b.Instructor)
	if b.Forced {
		cell += "\n(forced)"
	}
	return cell
}

func slotLabel(t int) string {
	return timetable.FormatClock(t) + " - " + timetable.FormatClock(t+timetable.SlotStep)
}

// gridDataset lays bookings on a time-by-day grid. A booking is written into
// the slot it starts in; the slots it covers afterwards stay blank.
func gridDataset(bookings []dto.BookingRecord, view, key string) (export.Dataset, string, error) {
	label := gridLabel(view)
	byEntity := make(map[string][]dto.BookingRecord)
	for _, b := range bookings {
		for _, entity := range gridEntities(b, view) {
			if key != "" && entity != key {
				continue
			}
			byEntity[entity] = append(byEntity[entity], b)
		}
	}
	if key != "" && len(byEntity) == 0 {
		return export.Dataset{}, "", fmt.Errorf("%s %q has no bookings", strings.ToLower(label), key)
	}

	days := lo.Map(timetable.Weekdays, func(d timetable.Weekday, _ int) string { return string(d) })
	headers := append([]string{"Time"}, days...)
	if key == "" {
		headers = append([]string{label}, headers...)
	}

	entities := lo.Keys(byEntity)
	sort.Strings(entities)

	var rows []map[string]string
	for _, entity := range entities {
		cells := make(map[int]map[string]string)
		for _, b := range byEntity[entity] {
			start, err := timetable.ParseClock(b.Start)
			if err != nil {
				return export.Dataset{}, "", err
			}
			slot := start - (start-gridStart)%timetable.SlotStep
			if cells[slot] == nil {
				cells[slot] = make(map[string]string)
			}
			if prev := cells[slot][b.Day]; prev != "" {
				cells[slot][b.Day] = prev + "\n---\n" + gridCell(b)
				continue
			}
			cells[slot][b.Day] = gridCell(b)
		}
		for t := gridStart; t <= gridEnd; t += timetable.SlotStep {
			if key == "" && cells[t] == nil {
				continue
			}
			row := map[string]string{"Time": slotLabel(t)}
			if key == "" {
				row[label] = entity
			}
			for day, cell := range cells[t] {
				row[day] = cell
			}
			rows = append(rows, row)
		}
	}

	title := "Weekly timetable by " + strings.ToLower(label)
	if key != "" {
		title = fmt.Sprintf("%s %s weekly timetable", label, key)
	}
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

// GridKeys lists the sections, rooms or instructors that appear in a run's
// bookings, sorted.
func GridKeys(run *dto.TimetableRunResponse, view string) []string {
	if run == nil {
		return nil
	}
	keys := lo.Uniq(lo.FlatMap(run.Bookings, func(b dto.BookingRecord, _ int) []string {
		return gridEntities(b, view)
	}))
	sort.Strings(keys)
	return keys
}
