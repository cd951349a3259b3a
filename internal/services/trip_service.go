package services

import (
	"context"
	"strings"
	"time"

	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/logger"
	"tripbooking/internal/repositories"
	"tripbooking/internal/utils"
)

// TripInput is the owner-supplied trip on create.
type TripInput struct {
	Origin          string
	Destination     string
	Date            string
	Time            string
	Price           float64
	TotalSeats      int
	VehicleIDs      []string
	Status          string
	IsTourism       bool
	TourismFeatures map[string]bool
}

// TripPatch carries only the fields present in an update request.
type TripPatch struct {
	Origin          *string
	Destination     *string
	Date            *string
	Time            *string
	Price           *float64
	TotalSeats      *int
	VehicleIDs      *[]string
	Status          *string
	IsTourism       *bool
	TourismFeatures *map[string]bool
}

// TripQuery holds listing filters as received from the caller.
type TripQuery struct {
	Origin      string
	Destination string
	Date        string
	Status      string
	TripType    string
	Page        int
	Limit       int
}

type TripService struct {
	Trips     TripStore
	RequestID string
	Now       func() time.Time
}

func (s TripService) store() TripStore {
	if s.Trips != nil {
		return s.Trips
	}
	return repositories.TripRepository{}
}

func (s TripService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return utils.NowUTC()
}

func (s TripService) Create(ctx context.Context, actor domain.Actor, in TripInput) (models.Trip, error) {
	if !actor.Valid() {
		return models.Trip{}, domain.ValidationError{Field: "actor", Msg: "missing"}
	}
	origin := utils.NormalizeSpace(in.Origin)
	destination := utils.NormalizeSpace(in.Destination)
	if origin == "" {
		return models.Trip{}, domain.ValidationError{Field: "origin", Msg: "required"}
	}
	if destination == "" {
		return models.Trip{}, domain.ValidationError{Field: "destination", Msg: "required"}
	}
	date, err := parseTripDate(in.Date)
	if err != nil {
		return models.Trip{}, err
	}
	clock, err := parseTripTime(in.Time)
	if err != nil {
		return models.Trip{}, err
	}
	if in.Price < 0 {
		return models.Trip{}, domain.ValidationError{Field: "price", Msg: "must not be negative"}
	}
	if in.TotalSeats < 0 {
		return models.Trip{}, domain.ValidationError{Field: "totalSeats", Msg: "must not be negative"}
	}
	status := models.TripPending
	if strings.TrimSpace(in.Status) != "" {
		st, ok := models.ParseTripStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
		if !ok {
			return models.Trip{}, domain.ValidationError{Field: "status", Msg: "unknown status"}
		}
		status = st
	}

	now := s.now()
	trip := models.Trip{
		ID:          NewID(),
		OwnerID:     actor.ID,
		Origin:      origin,
		Destination: destination,
		Date:        date,
		Time:        clock,
		Price:       utils.RoundMoney(in.Price),
		TotalSeats:  in.TotalSeats,
		VehicleIDs:  cleanList(in.VehicleIDs),
		Status:      status,
		IsTourism:   in.IsTourism,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsTourism {
		trip.TourismFeatures = in.TourismFeatures
	}

	if err := s.store().Create(ctx, trip); err != nil {
		return models.Trip{}, err
	}
	logger.Event(s.RequestID, "trips", "create").WithField("trip_id", trip.ID).Info("trip created")
	return trip, nil
}

func (s TripService) Get(ctx context.Context, actor domain.Actor, id string) (models.TripListing, error) {
	return s.store().GetOwned(ctx, actor.ID, strings.TrimSpace(id))
}

func (s TripService) Update(ctx context.Context, actor domain.Actor, id string, p TripPatch) (models.Trip, error) {
	upd, err := buildTripUpdate(p)
	if err != nil {
		return models.Trip{}, err
	}
	if upd.Empty() {
		return models.Trip{}, domain.ValidationError{Msg: "no fields to update"}
	}
	trip, err := s.store().Update(ctx, actor.ID, strings.TrimSpace(id), upd)
	if err != nil {
		return models.Trip{}, err
	}
	logger.Event(s.RequestID, "trips", "update").WithField("trip_id", trip.ID).Info("trip updated")
	return trip, nil
}

func (s TripService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.store().SoftDelete(ctx, actor.ID, strings.TrimSpace(id)); err != nil {
		return err
	}
	logger.Event(s.RequestID, "trips", "delete").WithField("trip_id", id).Info("trip soft-deleted")
	return nil
}

// ListOwned lists the actor's own trips, including exhausted ones.
func (s TripService) ListOwned(ctx context.Context, actor domain.Actor, q TripQuery) ([]models.TripListing, domain.Pagination, error) {
	f, err := buildTripFilter(q)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	f.OwnerID = actor.ID
	return s.store().List(ctx, f, domain.NewPagination(q.Page, q.Limit))
}

// ListPublic lists bookable trips from today on with seats left.
func (s TripService) ListPublic(ctx context.Context, q TripQuery) ([]models.TripListing, domain.Pagination, error) {
	f, err := buildTripFilter(q)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	f.PublicOnly = true
	if f.Date == nil {
		today := utils.StartOfDay(s.now())
		f.FromDate = &today
	}
	return s.store().List(ctx, f, domain.NewPagination(q.Page, q.Limit))
}

func (s TripService) Earnings(ctx context.Context, actor domain.Actor) (models.OwnerEarnings, error) {
	return s.store().Earnings(ctx, actor.ID)
}

func buildTripFilter(q TripQuery) (models.TripFilter, error) {
	f := models.TripFilter{
		Origin:      strings.TrimSpace(q.Origin),
		Destination: strings.TrimSpace(q.Destination),
	}
	if strings.TrimSpace(q.Date) != "" {
		d, err := parseTripDate(q.Date)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	if s := strings.TrimSpace(q.Status); s != "" {
		st, ok := models.ParseTripStatus(strings.ToUpper(s))
		if !ok {
			return f, domain.ValidationError{Field: "status", Msg: "unknown status"}
		}
		f.Status = st
	}
	switch strings.ToLower(strings.TrimSpace(q.TripType)) {
	case "":
	case "tourism":
		v := true
		f.Tourism = &v
	case "travel":
		v := false
		f.Tourism = &v
	default:
		return f, domain.ValidationError{Field: "tripType", Msg: "must be Travel or Tourism"}
	}
	return f, nil
}

func buildTripUpdate(p TripPatch) (models.TripUpdate, error) {
	var upd models.TripUpdate
	if p.Origin != nil {
		v := utils.NormalizeSpace(*p.Origin)
		if v == "" {
			return upd, domain.ValidationError{Field: "origin", Msg: "must not be empty"}
		}
		upd.Origin = &v
	}
	if p.Destination != nil {
		v := utils.NormalizeSpace(*p.Destination)
		if v == "" {
			return upd, domain.ValidationError{Field: "destination", Msg: "must not be empty"}
		}
		upd.Destination = &v
	}
	if p.Date != nil {
		d, err := parseTripDate(*p.Date)
		if err != nil {
			return upd, err
		}
		upd.Date = &d
	}
	if p.Time != nil {
		t, err := parseTripTime(*p.Time)
		if err != nil {
			return upd, err
		}
		upd.Time = &t
	}
	if p.Price != nil {
		if *p.Price < 0 {
			return upd, domain.ValidationError{Field: "price", Msg: "must not be negative"}
		}
		v := utils.RoundMoney(*p.Price)
		upd.Price = &v
	}
	if p.TotalSeats != nil {
		if *p.TotalSeats < 0 {
			return upd, domain.ValidationError{Field: "totalSeats", Msg: "must not be negative"}
		}
		upd.TotalSeats = p.TotalSeats
	}
	if p.VehicleIDs != nil {
		v := cleanList(*p.VehicleIDs)
		upd.VehicleIDs = &v
	}
	if p.Status != nil {
		st, ok := models.ParseTripStatus(strings.ToUpper(strings.TrimSpace(*p.Status)))
		if !ok {
			return upd, domain.ValidationError{Field: "status", Msg: "unknown status"}
		}
		upd.Status = &st
	}
	upd.IsTourism = p.IsTourism
	upd.TourismFeatures = p.TourismFeatures
	return upd, nil
}

func parseTripDate(raw string) (time.Time, error) {
	d, err := utils.ParseDate(raw)
	if err != nil {
		return time.Time{}, domain.ValidationError{Field: "date", Msg: "must be YYYY-MM-DD", Err: err}
	}
	return d, nil
}

func parseTripTime(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return "", domain.ValidationError{Field: "time", Msg: "must be HH:MM", Err: err}
	}
	return t.Format("15:04"), nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
