package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRepairPlacesDirectlyWhenSlotIsFree(t *testing.T) {
	tt := New()
	placed := newRequest("A", "S1", "E1", 60, []string{"R1"})
	tt.Add(newBooking(placed, Monday, 480, placed.Rooms))

	residual := newRequest("B", "S1", "E2", 60, []string{"R2"})
	res := NewRepairer(RepairOptions{}, zap.NewNop()).Repair(tt, []*Request{residual})

	require.True(t, res.Success)
	assert.Equal(t, 2, tt.Len())
	assert.Equal(t, 540, bookingOf(t, res, residual).Start)
}

func TestRepairDisplacesBlockingBooking(t *testing.T) {
	tt := New()
	movable := newRequest("B", "S2", "E1", 240, []string{"R2"}, Monday, Tuesday)
	fixed := newRequest("C", "S3", "E1", 240, []string{"R3"}, Monday, Tuesday)
	tt.Add(newBooking(movable, Monday, 480, movable.Rooms))
	tt.Add(newBooking(fixed, Monday, 780, fixed.Rooms))

	residual := newRequest("A", "S1", "E1", 240, []string{"R1"}, Monday)
	res := NewRepairer(RepairOptions{}, nil).Repair(tt, []*Request{residual})

	require.True(t, res.Success)
	assert.Empty(t, res.Unplaced)
	assert.Equal(t, 3, tt.Len())
	assert.Empty(t, tt.Validate())

	a := bookingOf(t, res, residual)
	assert.Equal(t, Monday, a.Day)
	assert.Equal(t, 480, a.Start)
	assert.Equal(t, Tuesday, bookingOf(t, res, movable).Day)
	assert.Equal(t, Monday, bookingOf(t, res, fixed).Day)
}

func TestRepairFailureLeavesTimetableUnchanged(t *testing.T) {
	tt := New()
	b1 := newRequest("B", "S2", "E1", 240, []string{"R2"})
	b2 := newRequest("C", "S3", "E1", 240, []string{"R3"})
	first := newBooking(b1, Monday, 480, b1.Rooms)
	second := newBooking(b2, Monday, 780, b2.Rooms)
	tt.Add(first)
	tt.Add(second)

	residual := newRequest("A", "S1", "E1", 240, []string{"R1"})
	res := NewRepairer(RepairOptions{}, nil).Repair(tt, []*Request{residual})

	assert.False(t, res.Success)
	require.Len(t, res.Unplaced, 1)
	assert.Same(t, residual, res.Unplaced[0].Request)
	assert.Equal(t, []*Booking{first, second}, tt.Bookings())
	assert.True(t, tt.DayUsed("S2", "B", Monday))
}

func TestRepairRejectsOversizedRequest(t *testing.T) {
	tt := New()
	long := newRequest("LONG", "S1", "E1", 1200, []string{"R1"})
	res := NewRepairer(RepairOptions{}, nil).Repair(tt, []*Request{long})

	assert.False(t, res.Success)
	require.Len(t, res.Unplaced, 1)
	assert.Equal(t, ReasonTooLong, res.Unplaced[0].Reason)
	assert.Equal(t, 0, tt.Len())
}

func TestRepairStopsAtStepBudget(t *testing.T) {
	tt := New()
	b1 := newRequest("B", "S2", "E1", 240, []string{"R2"}, Monday, Tuesday)
	tt.Add(newBooking(b1, Monday, 480, b1.Rooms))
	residual := newRequest("A", "S1", "E1", 240, []string{"R1"}, Monday)

	res := NewRepairer(RepairOptions{MaxSteps: 1}, nil).Repair(tt, []*Request{residual})
	assert.False(t, res.Success)
	assert.Equal(t, 1, tt.Len())
}

func TestRepairEmptyResidual(t *testing.T) {
	res := NewRepairer(RepairOptions{}, nil).Repair(New(), nil)
	assert.True(t, res.Success)
}

func TestRepairPlacesOverloadInEveningWindow(t *testing.T) {
	tt := New()
	residual := newOverload("EVE", "S1", "E1", 90, []string{"R1"})
	res := NewRepairer(RepairOptions{}, nil).Repair(tt, []*Request{residual})

	require.True(t, res.Success)
	b := bookingOf(t, res, residual)
	assert.Equal(t, OverloadWindow.Start, b.Start)
	assertInOverloadWindow(t, b)
}

func TestRepairDisplacesOverloadWithinEveningWindow(t *testing.T) {
	tt := New()
	movable := newOverload("EVE1", "S2", "E1", 180, []string{"R2"}, Monday, Tuesday)
	tt.Add(newBooking(movable, Monday, OverloadWindow.Start, movable.Rooms))

	residual := newOverload("EVE2", "S1", "E1", 180, []string{"R1"}, Monday)
	res := NewRepairer(RepairOptions{}, zap.NewNop()).Repair(tt, []*Request{residual})

	require.True(t, res.Success)
	assert.Empty(t, tt.Validate())
	moved := bookingOf(t, res, movable)
	placed := bookingOf(t, res, residual)
	assert.Equal(t, Tuesday, moved.Day)
	assert.Equal(t, Monday, placed.Day)
	assertInOverloadWindow(t, moved)
	assertInOverloadWindow(t, placed)
}
