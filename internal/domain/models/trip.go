package models

import (
	"time"
)

type TripStatus string

const (
	TripPending   TripStatus = "PENDING"
	TripOngoing   TripStatus = "ONGOING"
	TripCompleted TripStatus = "COMPLETED"
	TripCancelled TripStatus = "CANCELLED"
)

// ParseTripStatus returns false for values outside the trip lifecycle.
func ParseTripStatus(s string) (TripStatus, bool) {
	switch st := TripStatus(s); st {
	case TripPending, TripOngoing, TripCompleted, TripCancelled:
		return st, true
	}
	return "", false
}

// Trip is an owner-published offering with a fixed seat capacity.
// Available seats are never stored here; see AvailableSeats.
type Trip struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"userId"`
	Origin          string          `json:"origin"`
	Destination     string          `json:"destination"`
	Date            time.Time       `json:"date"`
	Time            string          `json:"time"`
	Price           float64         `json:"price"`
	TotalSeats      int             `json:"totalSeats"`
	VehicleIDs      []string        `json:"vehicleIds"`
	Status          TripStatus      `json:"status"`
	IsTourism       bool            `json:"isTourism"`
	TourismFeatures map[string]bool `json:"tourismFeatures,omitempty"`
	IsDeleted       bool            `json:"isDeleted"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Bookable reports whether new bookings may be admitted against the trip.
func (t Trip) Bookable() bool {
	if t.IsDeleted {
		return false
	}
	return t.Status != TripCancelled && t.Status != TripCompleted
}

// TripUpdate supports PATCH-style updates via pointer presence.
type TripUpdate struct {
	Origin          *string
	Destination     *string
	Date            *time.Time
	Time            *string
	Price           *float64
	TotalSeats      *int
	VehicleIDs      *[]string
	Status          *TripStatus
	IsTourism       *bool
	TourismFeatures *map[string]bool
}

// Empty reports whether the update carries no field.
func (u TripUpdate) Empty() bool {
	return u.Origin == nil && u.Destination == nil && u.Date == nil && u.Time == nil &&
		u.Price == nil && u.TotalSeats == nil && u.VehicleIDs == nil && u.Status == nil &&
		u.IsTourism == nil && u.TourismFeatures == nil
}

// TripFilter narrows trip listings.
type TripFilter struct {
	OwnerID     string
	Origin      string
	Destination string
	Date        *time.Time
	FromDate    *time.Time
	Status      TripStatus
	Tourism     *bool
	// PublicOnly hides cancelled/completed trips and trips with no seats left.
	PublicOnly bool
}

// TripListing is a trip together with its seat availability computed at read time.
type TripListing struct {
	Trip
	AvailableSeats int `json:"availableSeats"`
}

// OwnerEarnings aggregates verified payments over an owner's trips.
type OwnerEarnings struct {
	TotalBookings int     `json:"totalBookings"`
	TotalEarnings float64 `json:"totalEarnings"`
}
