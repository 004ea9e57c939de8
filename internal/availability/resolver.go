package availability

import (
	"context"
	"sort"
	"time"

	"github.com/sadman-arif/consultpay/internal/model"
)

// Windows computes the bookable windows for one expert on one date.
//
// An explicitly unavailable date yields no windows regardless of recurring
// slots. Otherwise each recurring slot for the date's weekday is anchored to
// the date and dropped wholly if it overlaps any of the booked intervals.
// Output is ordered by start time. Pure function, no side effects.
func Windows(date time.Time, slots []model.AvailabilitySlot, unavailable bool, booked []Interval) []Interval {
	if unavailable {
		return nil
	}

	var out []Interval
	for _, s := range slots {
		if s.Weekday != date.Weekday() {
			continue
		}
		iv := anchor(date, s)
		if !iv.Valid() {
			continue
		}
		if OverlapsAny(iv, booked) {
			continue
		}
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// anchor projects a slot's clock times onto the target date.
func anchor(date time.Time, s model.AvailabilitySlot) Interval {
	return Interval{
		Start: time.Date(date.Year(), date.Month(), date.Day(), s.Start.Hour(), s.Start.Minute(), 0, 0, time.UTC),
		End:   time.Date(date.Year(), date.Month(), date.Day(), s.End.Hour(), s.End.Minute(), 0, 0, time.UTC),
	}
}

// SlotReader is the read surface the resolver needs from storage.
type SlotReader interface {
	ListSlots(ctx context.Context, expertID string, weekday time.Weekday) ([]model.AvailabilitySlot, error)
	GetUnavailableDate(ctx context.Context, expertID string, date time.Time) (*model.UnavailableDate, error)
	ListActiveIntervals(ctx context.Context, expertID string, date time.Time) ([]Interval, error)
}

type Resolver struct {
	reader SlotReader
}

func NewResolver(reader SlotReader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve fetches the pieces and delegates to Windows. The blackout check
// short-circuits before bookings are touched; a non-nil blackout comes back
// with its reason so callers can tell "fully booked" from "day off".
func (r *Resolver) Resolve(ctx context.Context, expertID string, date time.Time) ([]Interval, *model.UnavailableDate, error) {
	blackout, err := r.reader.GetUnavailableDate(ctx, expertID, date)
	if err != nil {
		return nil, nil, err
	}
	if blackout != nil {
		return nil, blackout, nil
	}

	slots, err := r.reader.ListSlots(ctx, expertID, date.Weekday())
	if err != nil {
		return nil, nil, err
	}
	if len(slots) == 0 {
		return nil, nil, nil
	}

	booked, err := r.reader.ListActiveIntervals(ctx, expertID, date)
	if err != nil {
		return nil, nil, err
	}
	return Windows(date, slots, false, booked), nil, nil
}
