package model

import "testing"

func TestBookingStatusTransitions(t *testing.T) {
	statuses := []BookingStatus{
		BookingPendingPayment, BookingConfirmed, BookingCompleted, BookingCancelled,
	}
	allowed := map[BookingStatus]map[BookingStatus]bool{
		BookingPendingPayment: {BookingConfirmed: true, BookingCancelled: true},
		BookingConfirmed:      {BookingCompleted: true, BookingCancelled: true},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestBookingStatusTerminal(t *testing.T) {
	cases := map[BookingStatus]bool{
		BookingPendingPayment: false,
		BookingConfirmed:      false,
		BookingCompleted:      true,
		BookingCancelled:      true,
	}
	for s, want := range cases {
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
}
