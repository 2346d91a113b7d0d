package db

import (
	"context"
	"fmt"

	"ms-registration/internal/models"

	"github.com/uptrace/bun"
)

type uniqueIndex struct {
	name    string
	columns []string
	where   string
}

// Partial indexes let seatless and unpaid registrations share NULLs.
var registrationIndexes = []uniqueIndex{
	{"uq_registrations_event_email", []string{"event_title", "email"}, ""},
	{"uq_registrations_event_utr_id", []string{"event_title", "utr_id"}, "utr_id IS NOT NULL"},
	{"uq_registrations_event_registration_number", []string{"event_title", "registration_number"}, "registration_number IS NOT NULL"},
	{"uq_registrations_event_seat_row", []string{"event_title", "seat_row", "seat_column"}, "seat_row IS NOT NULL"},
}

// CreateSchema creates tables and indexes with bun. Postgres deployments use
// the SQL migrations instead. This serves SQLite and tests.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{(*models.Registration)(nil), (*models.SeatClaim)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	for _, idx := range registrationIndexes {
		q := db.NewCreateIndex().
			Model((*models.Registration)(nil)).
			Unique().
			IfNotExists().
			Index(idx.name).
			Column(idx.columns...)
		if idx.where != "" {
			q = q.Where(idx.where)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*models.Registration)(nil)).
		IfNotExists().
		Index("idx_registrations_event_created").
		Column("event_title", "created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index idx_registrations_event_created: %w", err)
	}
	return nil
}
