package availability

import (
	"context"
	"testing"
	"time"

	"github.com/sadman-arif/consultpay/internal/model"
)

func clock(h, m int) time.Time {
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC)
}

func TestWindows_FiltersByWeekdayAndBookings(t *testing.T) {
	// 2026-03-09 is a Monday.
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	slots := []model.AvailabilitySlot{
		{ExpertID: "e1", Weekday: time.Monday, Start: clock(9, 0), End: clock(11, 0), Recurring: true},
		{ExpertID: "e1", Weekday: time.Monday, Start: clock(14, 0), End: clock(16, 0), Recurring: true},
		{ExpertID: "e1", Weekday: time.Tuesday, Start: clock(9, 0), End: clock(11, 0), Recurring: true},
	}

	booked := []Interval{
		{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}

	got := Windows(day, slots, false, booked)
	if len(got) != 1 {
		t.Fatalf("expected 1 window, got %d", len(got))
	}
	if !got[0].Start.Equal(day.Add(14 * time.Hour)) {
		t.Fatalf("expected 14:00 window, got %s", got[0].Start.Format(time.RFC3339))
	}
}

func TestWindows_UnavailableDateShortCircuits(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	slots := []model.AvailabilitySlot{
		{ExpertID: "e1", Weekday: time.Monday, Start: clock(9, 0), End: clock(11, 0), Recurring: true},
	}
	if got := Windows(day, slots, true, nil); got != nil {
		t.Fatalf("expected no windows on an unavailable date, got %d", len(got))
	}
}

func TestWindows_Ordered(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	slots := []model.AvailabilitySlot{
		{ExpertID: "e1", Weekday: time.Monday, Start: clock(14, 0), End: clock(16, 0)},
		{ExpertID: "e1", Weekday: time.Monday, Start: clock(9, 0), End: clock(11, 0)},
	}
	got := Windows(day, slots, false, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(got))
	}
	if !got[0].Start.Before(got[1].Start) {
		t.Fatalf("windows not ordered by start time")
	}
}

func TestWindows_TouchingBookingDoesNotBlock(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	slots := []model.AvailabilitySlot{
		{ExpertID: "e1", Weekday: time.Monday, Start: clock(9, 0), End: clock(10, 0)},
	}
	// Booking starts exactly when the slot ends.
	booked := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}}
	if got := Windows(day, slots, false, booked); len(got) != 1 {
		t.Fatalf("expected touching booking to leave the slot bookable, got %d windows", len(got))
	}
}

type stubReader struct {
	slots    []model.AvailabilitySlot
	blackout *model.UnavailableDate
	booked   []Interval
}

func (s stubReader) ListSlots(_ context.Context, _ string, weekday time.Weekday) ([]model.AvailabilitySlot, error) {
	var out []model.AvailabilitySlot
	for _, sl := range s.slots {
		if sl.Weekday == weekday {
			out = append(out, sl)
		}
	}
	return out, nil
}

func (s stubReader) GetUnavailableDate(_ context.Context, _ string, _ time.Time) (*model.UnavailableDate, error) {
	return s.blackout, nil
}

func (s stubReader) ListActiveIntervals(_ context.Context, _ string, _ time.Time) ([]Interval, error) {
	return s.booked, nil
}

func TestResolve_BlackoutSurfacesReason(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	r := NewResolver(stubReader{
		slots: []model.AvailabilitySlot{
			{ExpertID: "e1", Weekday: time.Monday, Start: clock(9, 0), End: clock(11, 0), Recurring: true},
		},
		blackout: &model.UnavailableDate{ExpertID: "e1", Date: day, Reason: "public holiday"},
	})

	windows, blackout, err := r.Resolve(context.Background(), "e1", day)
	if err != nil {
		t.Fatal(err)
	}
	if windows != nil {
		t.Fatalf("expected no windows on a blacked-out day, got %d", len(windows))
	}
	if blackout == nil || blackout.Reason != "public holiday" {
		t.Fatalf("expected the blackout with its reason, got %+v", blackout)
	}
}

func TestResolve_OpenDayHasNoBlackout(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	r := NewResolver(stubReader{
		slots: []model.AvailabilitySlot{
			{ExpertID: "e1", Weekday: time.Monday, Start: clock(9, 0), End: clock(11, 0), Recurring: true},
		},
	})

	windows, blackout, err := r.Resolve(context.Background(), "e1", day)
	if err != nil {
		t.Fatal(err)
	}
	if blackout != nil {
		t.Fatalf("expected no blackout, got %+v", blackout)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
}
