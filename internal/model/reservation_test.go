package model

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatusNext(t *testing.T) {
	allowed := map[Status]map[Action]Status{
		StatusPending:   {ActionApprove: StatusConfirmed, ActionReject: StatusCancelled, ActionCancel: StatusCancelled},
		StatusConfirmed: {ActionCancel: StatusCancelled, ActionComplete: StatusCompleted},
		StatusCancelled: {},
		StatusCompleted: {},
	}
	actions := []Action{ActionApprove, ActionReject, ActionCancel, ActionComplete}
	for from, ok := range allowed {
		for _, a := range actions {
			next, got := from.Next(a)
			want, expected := ok[a]
			assert.Equal(t, expected, got, "%s --%s-->", from, a)
			if expected {
				assert.Equal(t, want, next, "%s --%s-->", from, a)
			}
		}
	}
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusCancelled.Blocking())
	assert.True(t, StatusCompleted.Blocking())
}

func TestStatusActionFor(t *testing.T) {
	a, ok := StatusPending.ActionFor(StatusCancelled)
	assert.True(t, ok)
	assert.Equal(t, ActionCancel, a)

	a, ok = StatusPending.ActionFor(StatusConfirmed)
	assert.True(t, ok)
	assert.Equal(t, ActionApprove, a)

	a, ok = StatusConfirmed.ActionFor(StatusCompleted)
	assert.True(t, ok)
	assert.Equal(t, ActionComplete, a)

	_, ok = StatusPending.ActionFor(StatusCompleted)
	assert.False(t, ok)
	_, ok = StatusConfirmed.ActionFor(StatusPending)
	assert.False(t, ok)
	_, ok = StatusCancelled.ActionFor(StatusConfirmed)
	assert.False(t, ok)
}

func TestParseStatusAndAction(t *testing.T) {
	s, ok := ParseStatus(" Confirmed ")
	assert.True(t, ok)
	assert.Equal(t, StatusConfirmed, s)
	_, ok = ParseStatus("booked")
	assert.False(t, ok)

	a, ok := ParseAction("REJECT")
	assert.True(t, ok)
	assert.Equal(t, ActionReject, a)
	assert.Equal(t, StatusCancelled, a.Target())
	_, ok = ParseAction("delete")
	assert.False(t, ok)
}

func TestReservationReference(t *testing.T) {
	id, ref := NewReservationID()
	u, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, ReferenceFor(u), ref)
	assert.True(t, strings.HasPrefix(ref, "QC"))
	assert.Len(t, ref, 10)
	assert.Equal(t, strings.ToUpper(ref), ref)
}

func TestReservationFilterMatch(t *testing.T) {
	d := Date{Year: 2024, Month: time.June, Day: 1}
	r := Reservation{UserID: 7, VenueID: 2, CourtID: 5, Date: d, Status: StatusConfirmed}

	assert.True(t, ReservationFilter{}.Match(r))
	assert.True(t, ReservationFilter{UserID: 7, VenueID: 2, CourtID: 5}.Match(r))
	assert.False(t, ReservationFilter{UserID: 8}.Match(r))
	assert.False(t, ReservationFilter{CourtID: 6}.Match(r))
	assert.True(t, ReservationFilter{Statuses: []Status{StatusPending, StatusConfirmed}}.Match(r))
	assert.False(t, ReservationFilter{Statuses: []Status{StatusCancelled}}.Match(r))
	assert.True(t, ReservationFilter{From: d, To: d}.Match(r), "bounds are inclusive")
	assert.False(t, ReservationFilter{From: d.AddDays(1)}.Match(r))
	assert.False(t, ReservationFilter{To: d.AddDays(-1)}.Match(r))
}

func TestEventKindFor(t *testing.T) {
	assert.Equal(t, EventConfirmed, EventKindFor(StatusConfirmed))
	assert.Equal(t, EventCancelled, EventKindFor(StatusCancelled))
	assert.Equal(t, EventCompleted, EventKindFor(StatusCompleted))
	assert.Equal(t, EventCreated, EventKindFor(StatusPending))
}

func TestVenueHoursAndGranularity(t *testing.T) {
	v := Venue{Hours: map[time.Weekday]OpeningHours{
		time.Saturday: {Open: 6 * time.Hour, Close: 22 * time.Hour},
		time.Sunday:   {Open: 10 * time.Hour, Close: 10 * time.Hour},
	}}
	sat := Date{Year: 2024, Month: time.June, Day: 1}
	h, ok := v.HoursOn(sat)
	assert.True(t, ok)
	assert.Equal(t, 6*time.Hour, h.Open)
	_, ok = v.HoursOn(sat.AddDays(1))
	assert.False(t, ok, "empty interval is closed")
	_, ok = v.HoursOn(sat.AddDays(2))
	assert.False(t, ok, "missing weekday is closed")

	assert.Equal(t, DefaultSlotGranularity, v.Granularity())
	v.SlotGranularity = 15 * time.Minute
	assert.Equal(t, 15*time.Minute, v.Granularity())

	assert.Equal(t, time.UTC, v.Loc())
	v.TimeZone = "Not/AZone"
	assert.Equal(t, time.UTC, v.Loc())
}
