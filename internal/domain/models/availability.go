package models

// ActiveSeats sums seats held by active bookings of tripID.
func ActiveSeats(tripID string, bookings []Booking) int {
	total := 0
	for _, b := range bookings {
		if b.TripID != tripID || !b.Active() {
			continue
		}
		total += b.SeatsBooked
	}
	return total
}

// Available derives remaining seats from capacity and seats already held.
// Never negative.
func Available(totalSeats, activeSeats int) int {
	if left := totalSeats - activeSeats; left > 0 {
		return left
	}
	return 0
}

// AvailableSeats is Available over a trip and its bookings. A soft-deleted
// trip has no availability.
func AvailableSeats(trip Trip, bookings []Booking) int {
	if trip.IsDeleted {
		return 0
	}
	return Available(trip.TotalSeats, ActiveSeats(trip.ID, bookings))
}
