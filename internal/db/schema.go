package db

import (
	"context"
	"fmt"
)

// Tables lists every table EnsureSchema manages, in creation order.
var Tables = []string{"trips", "bookings", "payment_logs"}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		id               CHAR(36)      NOT NULL PRIMARY KEY,
		owner_id         VARCHAR(64)   NOT NULL,
		origin           VARCHAR(255)  NOT NULL,
		destination      VARCHAR(255)  NOT NULL,
		trip_date        DATE          NOT NULL,
		trip_time        VARCHAR(8)    NOT NULL DEFAULT '',
		price            DECIMAL(12,2) NOT NULL DEFAULT 0,
		total_seats      INT           NOT NULL DEFAULT 0,
		vehicle_ids      TEXT          NULL,
		status           VARCHAR(16)   NOT NULL DEFAULT 'PENDING',
		is_tourism       BOOLEAN       NOT NULL DEFAULT FALSE,
		tourism_features TEXT          NULL,
		is_deleted       BOOLEAN       NOT NULL DEFAULT FALSE,
		created_at       DATETIME(3)   NOT NULL,
		updated_at       DATETIME(3)   NOT NULL,
		KEY idx_trips_owner (owner_id, is_deleted),
		KEY idx_trips_date (trip_date),
		CONSTRAINT chk_trips_seats CHECK (total_seats >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id               CHAR(36)      NOT NULL PRIMARY KEY,
		trip_id          CHAR(36)      NOT NULL,
		rider_id         VARCHAR(64)   NOT NULL,
		seats_booked     INT           NOT NULL,
		status           VARCHAR(16)   NOT NULL DEFAULT 'PENDING',
		payment_status   VARCHAR(16)   NOT NULL DEFAULT 'UNPAID',
		payment_verified BOOLEAN       NOT NULL DEFAULT FALSE,
		payment_method   VARCHAR(32)   NULL,
		amount_paid      DECIMAL(12,2) NOT NULL DEFAULT 0,
		transaction_id   VARCHAR(128)  NULL,
		submission_state VARCHAR(16)   NOT NULL DEFAULT 'IDLE',
		submitted_at     DATETIME(3)   NULL,
		payment_attempt  INT           NOT NULL DEFAULT 0,
		attempt_open     BOOLEAN       NOT NULL DEFAULT FALSE,
		decline_count    INT           NOT NULL DEFAULT 0,
		is_deleted       BOOLEAN       NOT NULL DEFAULT FALSE,
		created_at       DATETIME(3)   NOT NULL,
		updated_at       DATETIME(3)   NOT NULL,
		KEY idx_bookings_trip (trip_id, status, is_deleted),
		KEY idx_bookings_rider (rider_id, is_deleted),
		KEY idx_bookings_submission (submission_state, submitted_at),
		CONSTRAINT fk_bookings_trip FOREIGN KEY (trip_id) REFERENCES trips (id),
		CONSTRAINT chk_bookings_seats CHECK (seats_booked > 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS payment_logs (
		id              CHAR(36)      NOT NULL PRIMARY KEY,
		booking_id      CHAR(36)      NOT NULL,
		payer_account   VARCHAR(32)   NOT NULL DEFAULT '',
		amount          DECIMAL(12,2) NOT NULL DEFAULT 0,
		currency        VARCHAR(8)    NOT NULL DEFAULT '',
		invoice_id      VARCHAR(128)  NOT NULL DEFAULT '',
		reference_id    VARCHAR(128)  NULL,
		transaction_id  VARCHAR(128)  NULL,
		idempotency_key CHAR(36)      NOT NULL,
		attempt         INT           NOT NULL DEFAULT 0,
		outcome         VARCHAR(64)   NOT NULL,
		raw_response    MEDIUMTEXT    NULL,
		created_at      DATETIME(3)   NOT NULL,
		KEY idx_payment_logs_booking (booking_id, created_at),
		CONSTRAINT fk_payment_logs_booking FOREIGN KEY (booking_id) REFERENCES bookings (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: %w", Tables[i], err)
		}
	}
	return nil
}
