// Package db is the relational registration store and seat ledger, backed by
// bun on Postgres or SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-registration/internal/models"
	"ms-registration/internal/registration"
	"ms-registration/internal/seating"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- SEAT LEDGER ----------------

// TryClaim inserts the claim row. The seat_claims primary key decides races.
func (d *DB) TryClaim(ctx context.Context, key seating.SeatKey, registrationID string) error {
	claim := &models.SeatClaim{
		EventTitle:     key.EventTitle,
		SeatRow:        key.Row,
		SeatColumn:     key.Column,
		RegistrationID: registrationID,
		ClaimedAt:      time.Now().UTC(),
	}
	_, err := d.Bun.NewInsert().Model(claim).Exec(ctx)
	if err == nil {
		return nil
	}
	if _, ok := uniqueViolation(err); ok {
		return &registration.SeatTakenError{Seat: key}
	}
	return &registration.StorageError{Op: "claim seat", Err: err}
}

// Release removes the claim only if registrationID still owns it. Releasing a
// free seat is a no-op.
func (d *DB) Release(ctx context.Context, key seating.SeatKey, registrationID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.SeatClaim)(nil)).
		Where("event_title = ?", key.EventTitle).
		Where("seat_row = ?", key.Row).
		Where("seat_column = ?", key.Column).
		Where("registration_id = ?", registrationID).
		Exec(ctx)
	if err != nil {
		return &registration.StorageError{Op: "release seat", Err: err}
	}
	return nil
}

func (d *DB) ListBooked(ctx context.Context, eventTitle string) ([]seating.SeatKey, error) {
	var claims []models.SeatClaim
	err := d.Bun.NewSelect().
		Model(&claims).
		Column("event_title", "seat_row", "seat_column").
		Where("event_title = ?", eventTitle).
		Order("seat_row", "seat_column").
		Scan(ctx)
	if err != nil {
		return nil, &registration.StorageError{Op: "list booked seats", Err: err}
	}

	keys := make([]seating.SeatKey, 0, len(claims))
	for _, c := range claims {
		keys = append(keys, seating.SeatKey{EventTitle: c.EventTitle, Row: c.SeatRow, Column: c.SeatColumn})
	}
	return keys, nil
}

// ---------------- REGISTRATIONS ----------------

// FindDuplicate looks for an existing registration of the event sharing the
// email, UTR or registration number in a single query.
func (d *DB) FindDuplicate(ctx context.Context, reg *models.Registration) (string, error) {
	var existing []models.Registration
	err := d.Bun.NewSelect().
		Model(&existing).
		Column("email", "utr_id", "registration_number").
		Where("event_title = ?", reg.EventTitle).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.WhereOr("email = ?", reg.Email)
			if reg.UTRID != "" {
				q = q.WhereOr("utr_id = ?", reg.UTRID)
			}
			if reg.RegistrationNumber != "" {
				q = q.WhereOr("registration_number = ?", reg.RegistrationNumber)
			}
			return q
		}).
		Limit(3).
		Scan(ctx)
	if err != nil {
		return "", &registration.StorageError{Op: "duplicate check", Err: err}
	}
	return registration.DuplicateField(reg, existing), nil
}

// Insert stores a registration. Unique index violations come back as
// *registration.DuplicateRegistrationError naming the field, with "seat" for
// the seat index.
func (d *DB) Insert(ctx context.Context, reg *models.Registration) error {
	_, err := d.Bun.NewInsert().Model(reg).Exec(ctx)
	if err == nil {
		return nil
	}
	if detail, ok := uniqueViolation(err); ok {
		field := registration.FieldForConstraint(detail)
		if field == "seat" {
			return &registration.SeatTakenError{
				Seat: seating.SeatKey{EventTitle: reg.EventTitle, Row: reg.SeatRow, Column: reg.SeatColumn},
			}
		}
		if field == "" {
			field = "id"
		}
		return &registration.DuplicateRegistrationError{Field: field}
	}
	return &registration.StorageError{Op: "insert registration", Err: err}
}

func (d *DB) Get(ctx context.Context, eventTitle, id string) (*models.Registration, error) {
	var reg models.Registration
	err := d.Bun.NewSelect().
		Model(&reg).
		Where("event_title = ?", eventTitle).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &registration.NotFoundError{Resource: "registration", ID: id}
	}
	if err != nil {
		return nil, &registration.StorageError{Op: "get registration", Err: err}
	}
	return &reg, nil
}

func (d *DB) List(ctx context.Context, eventTitle string, page, limit int) ([]models.Registration, int, error) {
	var regs []models.Registration
	total, err := d.Bun.NewSelect().
		Model(&regs).
		Where("event_title = ?", eventTitle).
		Order("created_at ASC", "id ASC").
		Limit(limit).
		Offset((page - 1) * limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, &registration.StorageError{Op: "list registrations", Err: err}
	}
	return regs, total, nil
}

func (d *DB) ListAll(ctx context.Context, eventTitle string) ([]models.Registration, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Where("event_title = ?", eventTitle).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, &registration.StorageError{Op: "export registrations", Err: err}
	}
	return regs, nil
}

// Summary counts an event's registrations and sums their amounts. SUM over no
// rows is NULL, and SQLite types a literal 0 fallback as an integer, so the
// total is scanned as a nullable float.
func (d *DB) Summary(ctx context.Context, eventTitle string) (models.EventSummary, error) {
	var (
		count int
		total sql.NullFloat64
	)
	err := d.Bun.NewSelect().
		Model((*models.Registration)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("SUM(amount)").
		Where("event_title = ?", eventTitle).
		Scan(ctx, &count, &total)
	if err != nil {
		return models.EventSummary{}, &registration.StorageError{Op: "summarize registrations", Err: err}
	}
	return models.EventSummary{Registrations: count, AmountTotal: total.Float64}, nil
}
