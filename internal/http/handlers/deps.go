package handlers

import (
	"sync"

	"tripbooking/internal/gateway"
	"tripbooking/internal/services"
)

// Deps carries what the handlers need beyond the request. Nil stores fall
// back to the MySQL repositories over the shared connection.
type Deps struct {
	Trips       services.TripStore
	Bookings    services.BookingLedger
	Payments    services.PaymentLedger
	Gateway     gateway.Client
	Currency    string
	MaxDeclines int
}

var (
	depsMu sync.RWMutex
	deps   Deps
)

// Configure installs handler dependencies; call before serving.
func Configure(d Deps) {
	depsMu.Lock()
	defer depsMu.Unlock()
	deps = d
}

func current() Deps {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return deps
}

func tripService(reqID string) services.TripService {
	d := current()
	return services.TripService{Trips: d.Trips, RequestID: reqID}
}

func bookingService(reqID string) services.BookingService {
	d := current()
	return services.BookingService{Bookings: d.Bookings, Trips: d.Trips, Payments: d.Payments, RequestID: reqID}
}

func paymentService(reqID string) services.PaymentService {
	d := current()
	return services.PaymentService{
		Bookings:    d.Bookings,
		Trips:       d.Trips,
		Ledger:      d.Payments,
		Gateway:     d.Gateway,
		Currency:    d.Currency,
		MaxDeclines: d.MaxDeclines,
		RequestID:   reqID,
	}
}

func receiptService(reqID string) services.ReceiptService {
	return services.ReceiptService{Bookings: bookingService(reqID), RequestID: reqID}
}
