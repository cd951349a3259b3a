package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	intconfig "tripbooking/internal/config"
	intdb "tripbooking/internal/db"
	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/utils"
)

const tripColumns = `t.id, t.owner_id, t.origin, t.destination, t.trip_date, t.trip_time, t.price,
	t.total_seats, COALESCE(t.vehicle_ids,''), t.status, t.is_tourism, COALESCE(t.tourism_features,''),
	t.is_deleted, t.created_at, t.updated_at`

// activeSeatsJoin attaches per-trip seats held by active bookings as a.seats.
const activeSeatsJoin = `LEFT JOIN (
		SELECT trip_id, SUM(seats_booked) AS seats
		FROM bookings
		WHERE status IN ('PENDING','CONFIRMED') AND is_deleted = FALSE
		GROUP BY trip_id
	) a ON a.trip_id = t.id`

type TripRepository struct {
	DB *sql.DB
}

func (r TripRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r TripRepository) Create(ctx context.Context, trip models.Trip) error {
	vehicles, features, err := encodeTripLists(trip)
	if err != nil {
		return err
	}
	_, err = r.db().ExecContext(ctx, `
		INSERT INTO trips (id, owner_id, origin, destination, trip_date, trip_time, price, total_seats,
			vehicle_ids, status, is_tourism, tourism_features, is_deleted, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,FALSE,?,?)`,
		trip.ID, trip.OwnerID, trip.Origin, trip.Destination, utils.FormatDate(trip.Date), trip.Time,
		trip.Price, trip.TotalSeats, vehicles, string(trip.Status), trip.IsTourism, features,
		trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	return nil
}

// Get returns the trip even when soft-deleted; callers check IsDeleted.
func (r TripRepository) Get(ctx context.Context, id string) (models.Trip, error) {
	row := r.db().QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips t WHERE t.id=? LIMIT 1`, id)
	return scanTripOrNotFound(row)
}

// GetOwned hides deleted and foreign trips behind the same not-found error.
func (r TripRepository) GetOwned(ctx context.Context, ownerID, id string) (models.TripListing, error) {
	row := r.db().QueryRowContext(ctx, `
		SELECT `+tripColumns+`, COALESCE(a.seats,0)
		FROM trips t `+activeSeatsJoin+`
		WHERE t.id=? AND t.owner_id=? AND t.is_deleted=FALSE
		LIMIT 1`, id, ownerID)

	var active int
	trip, err := scanTrip(row, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TripListing{}, domain.NotFoundError{Resource: "trip", Err: err}
	}
	if err != nil {
		return models.TripListing{}, err
	}
	return models.TripListing{Trip: trip, AvailableSeats: models.Available(trip.TotalSeats, active)}, nil
}

// Update applies a partial update under the trip row lock, so capacity
// cannot shrink below seats claimed by a concurrent admission.
func (r TripRepository) Update(ctx context.Context, ownerID, id string, upd models.TripUpdate) (models.Trip, error) {
	var out models.Trip
	err := intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+tripColumns+` FROM trips t
			WHERE t.id=? AND t.owner_id=? AND t.is_deleted=FALSE
			FOR UPDATE`, id, ownerID)
		trip, err := scanTripOrNotFound(row)
		if err != nil {
			return err
		}

		if upd.TotalSeats != nil {
			active, err := activeSeats(ctx, tx, id)
			if err != nil {
				return err
			}
			if *upd.TotalSeats < active {
				return domain.ValidationError{
					Field: "totalSeats",
					Msg:   fmt.Sprintf("cannot be lower than %d seats already booked", active),
				}
			}
		}

		applyTripUpdate(&trip, upd)
		trip.UpdatedAt = utils.NowUTC()

		vehicles, features, err := encodeTripLists(trip)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE trips SET origin=?, destination=?, trip_date=?, trip_time=?, price=?, total_seats=?,
				vehicle_ids=?, status=?, is_tourism=?, tourism_features=?, updated_at=?
			WHERE id=?`,
			trip.Origin, trip.Destination, utils.FormatDate(trip.Date), trip.Time, trip.Price, trip.TotalSeats,
			vehicles, string(trip.Status), trip.IsTourism, features, trip.UpdatedAt, trip.ID,
		); err != nil {
			return fmt.Errorf("update trip: %w", err)
		}
		out = trip
		return nil
	})
	return out, err
}

func (r TripRepository) SoftDelete(ctx context.Context, ownerID, id string) error {
	res, err := r.db().ExecContext(ctx, `
		UPDATE trips SET is_deleted=TRUE, updated_at=?
		WHERE id=? AND owner_id=? AND is_deleted=FALSE`, utils.NowUTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFoundError{Resource: "trip"}
	}
	return nil
}

// List never returns soft-deleted trips. Availability is derived per row.
func (r TripRepository) List(ctx context.Context, f models.TripFilter, page domain.Pagination) ([]models.TripListing, domain.Pagination, error) {
	where := []string{"t.is_deleted = FALSE"}
	args := []any{}

	if f.OwnerID != "" {
		where = append(where, "t.owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if s := strings.TrimSpace(f.Origin); s != "" {
		where = append(where, "LOWER(t.origin) LIKE ?")
		args = append(args, containsPattern(s))
	}
	if s := strings.TrimSpace(f.Destination); s != "" {
		where = append(where, "LOWER(t.destination) LIKE ?")
		args = append(args, containsPattern(s))
	}
	if f.Date != nil {
		where = append(where, "t.trip_date = ?")
		args = append(args, utils.FormatDate(*f.Date))
	} else if f.FromDate != nil {
		where = append(where, "t.trip_date >= ?")
		args = append(args, utils.FormatDate(*f.FromDate))
	}
	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Tourism != nil {
		where = append(where, "t.is_tourism = ?")
		args = append(args, *f.Tourism)
	}
	if f.PublicOnly {
		where = append(where,
			"t.status NOT IN ('CANCELLED','COMPLETED')",
			"t.total_seats - COALESCE(a.seats,0) > 0",
		)
	}

	from := ` FROM trips t ` + activeSeatsJoin + ` WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.db().QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, page, fmt.Errorf("count trips: %w", err)
	}
	page = page.WithTotal(total)

	query := `SELECT ` + tripColumns + `, COALESCE(a.seats,0)` + from +
		` ORDER BY t.trip_date ASC, t.trip_time ASC, t.id ASC LIMIT ? OFFSET ?`
	rows, err := r.db().QueryContext(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, page, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	out := []models.TripListing{}
	for rows.Next() {
		var active int
		trip, err := scanTrip(rows, &active)
		if err != nil {
			return out, page, err
		}
		out = append(out, models.TripListing{Trip: trip, AvailableSeats: models.Available(trip.TotalSeats, active)})
	}
	return out, page, rows.Err()
}

// Earnings sums verified payments over the owner's live trips.
func (r TripRepository) Earnings(ctx context.Context, ownerID string) (models.OwnerEarnings, error) {
	var out models.OwnerEarnings
	err := r.db().QueryRowContext(ctx, `
		SELECT COUNT(b.id), COALESCE(SUM(b.amount_paid),0)
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE t.owner_id = ? AND t.is_deleted = FALSE
		  AND b.is_deleted = FALSE AND b.payment_status = 'PAID' AND b.payment_verified = TRUE`,
		ownerID,
	).Scan(&out.TotalBookings, &out.TotalEarnings)
	if err != nil {
		return out, fmt.Errorf("owner earnings: %w", err)
	}
	out.TotalEarnings = utils.RoundMoney(out.TotalEarnings)
	return out, nil
}

// activeSeats must run inside the transaction holding the trip lock.
func activeSeats(ctx context.Context, q intdb.Querier, tripID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(seats_booked),0) FROM bookings
		WHERE trip_id=? AND status IN ('PENDING','CONFIRMED') AND is_deleted=FALSE`, tripID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("active seats: %w", err)
	}
	return n, nil
}

func applyTripUpdate(t *models.Trip, upd models.TripUpdate) {
	if upd.Origin != nil {
		t.Origin = *upd.Origin
	}
	if upd.Destination != nil {
		t.Destination = *upd.Destination
	}
	if upd.Date != nil {
		t.Date = *upd.Date
	}
	if upd.Time != nil {
		t.Time = *upd.Time
	}
	if upd.Price != nil {
		t.Price = *upd.Price
	}
	if upd.TotalSeats != nil {
		t.TotalSeats = *upd.TotalSeats
	}
	if upd.VehicleIDs != nil {
		t.VehicleIDs = *upd.VehicleIDs
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.IsTourism != nil {
		t.IsTourism = *upd.IsTourism
	}
	if upd.TourismFeatures != nil {
		t.TourismFeatures = *upd.TourismFeatures
	}
	if !t.IsTourism {
		t.TourismFeatures = nil
	}
}

func scanTripOrNotFound(row intdb.RowScanner) (models.Trip, error) {
	trip, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Trip{}, domain.NotFoundError{Resource: "trip", Err: err}
	}
	return trip, err
}

func scanTrip(row intdb.RowScanner, extra ...any) (models.Trip, error) {
	var (
		t                  models.Trip
		status             string
		vehicles, features string
	)
	dest := []any{
		&t.ID, &t.OwnerID, &t.Origin, &t.Destination, &t.Date, &t.Time, &t.Price,
		&t.TotalSeats, &vehicles, &status, &t.IsTourism, &features,
		&t.IsDeleted, &t.CreatedAt, &t.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return models.Trip{}, err
	}
	t.Status = models.TripStatus(status)
	t.VehicleIDs = []string{}
	if vehicles != "" {
		if err := json.Unmarshal([]byte(vehicles), &t.VehicleIDs); err != nil {
			return models.Trip{}, fmt.Errorf("decode vehicle_ids for trip %s: %w", t.ID, err)
		}
	}
	if features != "" {
		if err := json.Unmarshal([]byte(features), &t.TourismFeatures); err != nil {
			return models.Trip{}, fmt.Errorf("decode tourism_features for trip %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func encodeTripLists(t models.Trip) (any, any, error) {
	vehicles := t.VehicleIDs
	if vehicles == nil {
		vehicles = []string{}
	}
	vb, err := json.Marshal(vehicles)
	if err != nil {
		return nil, nil, fmt.Errorf("encode vehicle_ids: %w", err)
	}
	var features any
	if t.IsTourism && len(t.TourismFeatures) > 0 {
		fb, err := json.Marshal(t.TourismFeatures)
		if err != nil {
			return nil, nil, fmt.Errorf("encode tourism_features: %w", err)
		}
		features = string(fb)
	}
	return string(vb), features, nil
}

// containsPattern builds a case-insensitive LIKE operand matching s literally.
func containsPattern(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
