package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/http/middleware"
	"tripbooking/internal/services"
)

type tripRequest struct {
	Origin          string          `json:"origin"`
	Destination     string          `json:"destination"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	Price           float64         `json:"price"`
	TotalSeats      int             `json:"totalSeats"`
	VehicleIDs      []string        `json:"vehicleIds"`
	Status          string          `json:"status"`
	IsTourism       bool            `json:"isTourism"`
	TourismFeatures map[string]bool `json:"tourismFeatures"`
}

type tripPatchRequest struct {
	Origin          *string          `json:"origin"`
	Destination     *string          `json:"destination"`
	Date            *string          `json:"date"`
	Time            *string          `json:"time"`
	Price           *float64         `json:"price"`
	TotalSeats      *int             `json:"totalSeats"`
	VehicleIDs      *[]string        `json:"vehicleIds"`
	Status          *string          `json:"status"`
	IsTourism       *bool            `json:"isTourism"`
	TourismFeatures *map[string]bool `json:"tourismFeatures"`
}

type tripListResponse struct {
	Trips       []models.TripListing `json:"trips"`
	Total       int                  `json:"total"`
	TotalPages  int                  `json:"totalPages"`
	CurrentPage int                  `json:"currentPage"`
}

func newTripListResponse(trips []models.TripListing, page domain.Pagination) tripListResponse {
	if trips == nil {
		trips = []models.TripListing{}
	}
	return tripListResponse{Trips: trips, Total: page.Total, TotalPages: page.TotalPages, CurrentPage: page.Page}
}

func tripQueryFrom(c *gin.Context) services.TripQuery {
	return services.TripQuery{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
		Date:        c.Query("date"),
		Status:      c.Query("status"),
		TripType:    c.Query("tripType"),
		Page:        queryInt(c, "page", 1),
		Limit:       queryInt(c, "limit", domain.DefaultPageLimit),
	}
}

// POST /api/trips
func CreateTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req tripRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	trip, err := tripService(middleware.GetRequestID(c)).Create(c.Request.Context(), actor, services.TripInput{
		Origin:          req.Origin,
		Destination:     req.Destination,
		Date:            req.Date,
		Time:            req.Time,
		Price:           req.Price,
		TotalSeats:      req.TotalSeats,
		VehicleIDs:      req.VehicleIDs,
		Status:          req.Status,
		IsTourism:       req.IsTourism,
		TourismFeatures: req.TourismFeatures,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

// GET /api/trips
func ListMyTrips(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	trips, page, err := tripService(middleware.GetRequestID(c)).ListOwned(c.Request.Context(), actor, tripQueryFrom(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTripListResponse(trips, page))
}

// GET /api/trips/public
func ListPublicTrips(c *gin.Context) {
	trips, page, err := tripService(middleware.GetRequestID(c)).ListPublic(c.Request.Context(), tripQueryFrom(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTripListResponse(trips, page))
}

// GET /api/trips/earnings
func GetEarnings(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	e, err := tripService(middleware.GetRequestID(c)).Earnings(c.Request.Context(), actor)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// GET /api/trips/:id
func GetTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	trip, err := tripService(middleware.GetRequestID(c)).Get(c.Request.Context(), actor, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// PUT /api/trips/:id
func UpdateTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req tripPatchRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	trip, err := tripService(middleware.GetRequestID(c)).Update(c.Request.Context(), actor, id, services.TripPatch{
		Origin:          req.Origin,
		Destination:     req.Destination,
		Date:            req.Date,
		Time:            req.Time,
		Price:           req.Price,
		TotalSeats:      req.TotalSeats,
		VehicleIDs:      req.VehicleIDs,
		Status:          req.Status,
		IsTourism:       req.IsTourism,
		TourismFeatures: req.TourismFeatures,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// DELETE /api/trips/:id
func DeleteTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := tripService(middleware.GetRequestID(c)).Delete(c.Request.Context(), actor, id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "trip deleted", "id": id})
}
