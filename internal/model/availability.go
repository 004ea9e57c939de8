package model

import "time"

// AvailabilitySlot is a recurring weekly window during which an expert can be
// booked. Start/End carry only a clock time; the date component is ignored.
type AvailabilitySlot struct {
	ID        string
	ExpertID  string
	Weekday   time.Weekday
	Start     time.Time
	End       time.Time
	Recurring bool
	CreatedAt time.Time
}

// UnavailableDate blacks out a whole day and takes precedence over any
// recurring slot on that day. Keyed by (expert, date); the reason is
// optional and shown to clients shopping for a slot.
type UnavailableDate struct {
	ExpertID  string
	Date      time.Time
	Reason    string
	CreatedAt time.Time
}

// Expert is the flat read-side projection the engine prices bookings from.
type Expert struct {
	ID              string
	UserID          string
	DisplayName     string
	HourlyRateCents int64
	Jurisdiction    string
}
