package timetable

import "testing"

var nextRequestID int

func newRequest(course, section, instructor string, duration int, rooms []string, days ...Weekday) *Request {
	nextRequestID++
	if len(days) == 0 {
		days = []Weekday{Monday}
	}
	return &Request{
		ID:         nextRequestID,
		CourseID:   course,
		CourseName: "Course " + course,
		Section:    section,
		Duration:   duration,
		Rooms:      rooms,
		Instructor: instructor,
		Days:       days,
		Kind:       KindRegular,
	}
}

func bookingOf(t *testing.T, res Result, req *Request) *Booking {
	t.Helper()
	for _, b := range res.Bookings {
		if b.Request == req {
			return b
		}
	}
	t.Fatalf("no booking for %s", req)
	return nil
}

func assertNoBreak(t *testing.T, bookings []*Booking) {
	t.Helper()
	for _, b := range bookings {
		if !b.Forced && InBreak(b.Start, b.Duration()) {
			t.Fatalf("booking %s overlaps the break", b)
		}
	}
}

func newOverload(course, section, instructor string, duration int, rooms []string, days ...Weekday) *Request {
	req := newRequest(course, section, instructor, duration, rooms, days...)
	req.Kind = KindOverload
	return req
}

func assertInOverloadWindow(t *testing.T, b *Booking) {
	t.Helper()
	if b.Start < OverloadWindow.Start || b.End > OverloadWindow.End {
		t.Fatalf("overload booking %s falls outside %s-%s", b, FormatClock(OverloadWindow.Start), FormatClock(OverloadWindow.End))
	}
}
