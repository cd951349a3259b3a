package utils

// ComputeFare is the amount due for a booking: seats times the per-seat
// price, rounded to cents. Clients never supply the amount.
func ComputeFare(seats int, pricePerSeat float64) float64 {
	if seats <= 0 || pricePerSeat <= 0 {
		return 0
	}
	return RoundMoney(float64(seats) * pricePerSeat)
}
