package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/gateway"
	"tripbooking/internal/repositories"
)

// memStore mirrors the MySQL repositories in memory. One mutex stands in for
// the trip row lock and the conditional UPDATE.
type memStore struct {
	mu       sync.Mutex
	trips    map[string]models.Trip
	bookings map[string]models.Booking
	logs     []models.PaymentLogEntry

	// failRecord makes the next RecordOutcome roll back.
	failRecord bool
}

func newMemStore() *memStore {
	return &memStore{trips: map[string]models.Trip{}, bookings: map[string]models.Booking{}}
}

func (m *memStore) activeOf(tripID string) []models.Booking {
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.TripID == tripID && b.Active() {
			out = append(out, b)
		}
	}
	return out
}

func (m *memStore) Create(_ context.Context, t models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return models.Trip{}, domain.NotFoundError{Resource: "trip"}
	}
	return t, nil
}

func (m *memStore) GetOwned(_ context.Context, ownerID, id string) (models.TripListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok || t.IsDeleted || t.OwnerID != ownerID {
		return models.TripListing{}, domain.NotFoundError{Resource: "trip"}
	}
	return models.TripListing{Trip: t, AvailableSeats: models.AvailableSeats(t, m.activeOf(id))}, nil
}

func (m *memStore) Update(_ context.Context, ownerID, id string, upd models.TripUpdate) (models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok || t.IsDeleted || t.OwnerID != ownerID {
		return models.Trip{}, domain.NotFoundError{Resource: "trip"}
	}
	if upd.TotalSeats != nil && *upd.TotalSeats < models.ActiveSeats(id, m.activeOf(id)) {
		return models.Trip{}, domain.ValidationError{Field: "totalSeats"}
	}
	if upd.TotalSeats != nil {
		t.TotalSeats = *upd.TotalSeats
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Date != nil {
		t.Date = *upd.Date
	}
	m.trips[id] = t
	return t, nil
}

func (m *memStore) SoftDelete(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok || t.IsDeleted || t.OwnerID != ownerID {
		return domain.NotFoundError{Resource: "trip"}
	}
	t.IsDeleted = true
	m.trips[id] = t
	return nil
}

func (m *memStore) List(_ context.Context, f models.TripFilter, page domain.Pagination) ([]models.TripListing, domain.Pagination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []models.TripListing{}
	for _, t := range m.trips {
		if t.IsDeleted || (f.OwnerID != "" && t.OwnerID != f.OwnerID) {
			continue
		}
		if f.Origin != "" && !strings.Contains(strings.ToLower(t.Origin), strings.ToLower(f.Origin)) {
			continue
		}
		if f.Date != nil && !t.Date.Equal(*f.Date) {
			continue
		}
		if f.FromDate != nil && t.Date.Before(*f.FromDate) {
			continue
		}
		avail := models.AvailableSeats(t, m.activeOf(t.ID))
		if f.PublicOnly && (!t.Bookable() || avail <= 0) {
			continue
		}
		all = append(all, models.TripListing{Trip: t, AvailableSeats: avail})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.Before(all[j].Date) })
	page = page.WithTotal(len(all))
	start := page.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], page, nil
}

func (m *memStore) Earnings(_ context.Context, ownerID string) (models.OwnerEarnings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out models.OwnerEarnings
	for _, b := range m.bookings {
		t := m.trips[b.TripID]
		if t.OwnerID != ownerID || t.IsDeleted || b.IsDeleted {
			continue
		}
		if b.PaymentStatus == models.PaymentPaid && b.PaymentVerified {
			out.TotalBookings++
			out.TotalEarnings += b.AmountPaid
		}
	}
	return out, nil
}

func (m *memStore) Admit(_ context.Context, tripID string, admit repositories.AdmitFunc) (models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "trip"}
	}
	b, err := admit(t, m.activeOf(tripID))
	if err != nil {
		return models.Booking{}, err
	}
	m.bookings[b.ID] = b
	return b, nil
}

func (m *memStore) getBooking(id string) (models.Booking, error) {
	b, ok := m.bookings[id]
	if !ok || b.IsDeleted {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return b, nil
}

func (m *memStore) GetBooking(id string) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

type memBookings struct{ *memStore }

func (m memBookings) Get(_ context.Context, id string) (models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBooking(id)
}

func (m memBookings) ListByRider(_ context.Context, riderID string, page domain.Pagination) ([]models.Booking, domain.Pagination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.RiderID == riderID && !b.IsDeleted {
			out = append(out, b)
		}
	}
	return out, page.WithTotal(len(out)), nil
}

func (m memBookings) Cancel(_ context.Context, riderID, id string) (models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.getBooking(id)
	if err != nil || b.RiderID != riderID {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	if !b.Cancellable() {
		return models.Booking{}, domain.ConflictError{Resource: "booking"}
	}
	b.Status = models.BookingCancelled
	m.bookings[id] = b
	return b, nil
}

func (m *memStore) BeginSubmission(_ context.Context, id string) (models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.getBooking(id)
	if err != nil {
		return models.Booking{}, err
	}
	if !b.BeginSubmission(time.Now().UTC()) {
		return b, domain.ConflictError{Resource: "booking", Msg: "not payable"}
	}
	m.bookings[id] = b
	return b, nil
}

func (m *memStore) RecordOutcome(_ context.Context, entry models.PaymentLogEntry, tr models.Transition) (models.Booking, models.PaymentLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecord {
		m.failRecord = false
		return models.Booking{}, entry, errors.New("injected: connection reset before commit")
	}
	b, err := m.getBooking(entry.BookingID)
	if err != nil {
		return models.Booking{}, entry, err
	}
	if models.Superseded(b, tr) {
		entry.Outcome = models.OutcomeSuperseded
		m.logs = append(m.logs, entry)
		return b, entry, nil
	}
	t := m.trips[b.TripID]
	applied := models.ApplyTransition(&b, t, models.ActiveSeats(t.ID, m.activeOf(t.ID)), tr)
	if tr.Kind == models.TransitionConfirm && !applied {
		entry.Outcome = models.OutcomeSuccessUnapplied
	}
	m.logs = append(m.logs, entry)
	m.bookings[b.ID] = b
	return b, entry, nil
}

func (m *memStore) AppendLog(_ context.Context, entry models.PaymentLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) ReleaseSubmission(_ context.Context, id string, submittedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Submission != models.SubmissionSubmitted {
		return nil
	}
	if submittedAt != nil && (b.SubmittedAt == nil || !b.SubmittedAt.Equal(*submittedAt)) {
		return nil
	}
	b.Submission = models.SubmissionIdle
	b.SubmittedAt = nil
	m.bookings[id] = b
	return nil
}

func (m *memStore) ReleaseStale(_ context.Context, cutoff time.Time, entryFor func(models.Booking) models.PaymentLogEntry) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Booking{}
	for id, b := range m.bookings {
		if b.Submission != models.SubmissionSubmitted || b.SubmittedAt == nil || !b.SubmittedAt.Before(cutoff) {
			continue
		}
		models.ApplyTransition(&b, models.Trip{}, 0, models.Transition{Kind: models.TransitionRelease, At: cutoff})
		m.logs = append(m.logs, entryFor(b))
		m.bookings[id] = b
		out = append(out, b)
	}
	return out, nil
}

func (m *memStore) ListLogs(_ context.Context, bookingID string) ([]models.PaymentLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PaymentLogEntry{}
	for _, e := range m.logs {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) logsWith(bookingID, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.logs {
		if e.BookingID == bookingID && e.Outcome == outcome {
			n++
		}
	}
	return n
}

// fakeGateway settles each idempotency key at most once, like a provider
// that deduplicates on requestId.
type fakeGateway struct {
	mu      sync.Mutex
	charges map[string]int
	calls   int
	// script is consumed per call; when empty every call succeeds.
	script []fakeReply
	// hold, when set, blocks each call until closed.
	hold chan struct{}
}

type fakeReply struct {
	msg       string
	transport bool
	// chargeAnyway records the charge even though the caller sees an error.
	chargeAnyway bool
}

func (g *fakeGateway) Purchase(ctx context.Context, req gateway.PurchaseRequest) (gateway.PurchaseResult, error) {
	if g.hold != nil {
		<-g.hold
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.charges == nil {
		g.charges = map[string]int{}
	}
	g.calls++

	reply := fakeReply{msg: gateway.SuccessMsg}
	if len(g.script) > 0 {
		reply, g.script = g.script[0], g.script[1:]
	}
	if reply.transport {
		if reply.chargeAnyway {
			g.charges[req.RequestID]++
		}
		return gateway.PurchaseResult{}, domain.GatewayTransportError{Op: "purchase", Err: context.DeadlineExceeded}
	}
	if reply.msg == gateway.SuccessMsg && g.charges[req.RequestID] == 0 {
		g.charges[req.RequestID]++
	}
	raw := `{"responseMsg":"` + reply.msg + `","transactionId":"TX1","referenceId":"` + req.ReferenceID + `"}`
	return gateway.PurchaseResult{
		ResponseMsg:   reply.msg,
		TransactionID: "TX1",
		ReferenceID:   req.ReferenceID,
		Raw:           []byte(raw),
	}, nil
}

func (g *fakeGateway) totalCharges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.charges {
		n += c
	}
	return n
}
