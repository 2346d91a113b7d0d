// Package docstore is the MongoDB registration store and seat ledger. Unique
// indexes on both collections play the role of the relational constraints.
package docstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"ms-registration/internal/models"
	"ms-registration/internal/registration"
	"ms-registration/internal/seating"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	registrationsCollection = "registrations"
	claimsCollection        = "seat_claims"
)

type Store struct {
	registrations *mongo.Collection
	claims        *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		registrations: db.Collection(registrationsCollection),
		claims:        db.Collection(claimsCollection),
	}
}

func existsFilter(field string) bson.D {
	return bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}}}}
}

// EnsureIndexes creates the unique indexes the ledger and duplicate checks
// rely on. It is safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.claims.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "eventTitle", Value: 1}, {Key: "seatRow", Value: 1}, {Key: "seatColumn", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_seat_claims_seat"),
	})
	if err != nil {
		return &registration.StorageError{Op: "create seat claim index", Err: err}
	}

	_, err = s.registrations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "eventTitle", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_registrations_event_email"),
		},
		{
			Keys: bson.D{{Key: "eventTitle", Value: 1}, {Key: "utrId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_registrations_event_utr_id").
				SetPartialFilterExpression(existsFilter("utrId")),
		},
		{
			Keys: bson.D{{Key: "eventTitle", Value: 1}, {Key: "registrationNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_registrations_event_registration_number").
				SetPartialFilterExpression(existsFilter("registrationNumber")),
		},
		{
			Keys: bson.D{{Key: "eventTitle", Value: 1}, {Key: "seatRow", Value: 1}, {Key: "seatColumn", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_registrations_event_seat_row").
				SetPartialFilterExpression(existsFilter("seatRow")),
		},
		{
			Keys:    bson.D{{Key: "eventTitle", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_registrations_event_created"),
		},
	})
	if err != nil {
		return &registration.StorageError{Op: "create registration indexes", Err: err}
	}
	return nil
}

// ---------------- SEAT LEDGER ----------------

func (s *Store) TryClaim(ctx context.Context, key seating.SeatKey, registrationID string) error {
	_, err := s.claims.InsertOne(ctx, models.SeatClaim{
		EventTitle:     key.EventTitle,
		SeatRow:        key.Row,
		SeatColumn:     key.Column,
		RegistrationID: registrationID,
		ClaimedAt:      time.Now().UTC(),
	})
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return &registration.SeatTakenError{Seat: key}
	}
	return &registration.StorageError{Op: "claim seat", Err: err}
}

func (s *Store) Release(ctx context.Context, key seating.SeatKey, registrationID string) error {
	_, err := s.claims.DeleteOne(ctx, bson.M{
		"eventTitle":     key.EventTitle,
		"seatRow":        key.Row,
		"seatColumn":     key.Column,
		"registrationId": registrationID,
	})
	if err != nil {
		return &registration.StorageError{Op: "release seat", Err: err}
	}
	return nil
}

func (s *Store) ListBooked(ctx context.Context, eventTitle string) ([]seating.SeatKey, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seatRow", Value: 1}, {Key: "seatColumn", Value: 1}})
	cur, err := s.claims.Find(ctx, bson.M{"eventTitle": eventTitle}, opts)
	if err != nil {
		return nil, &registration.StorageError{Op: "list booked seats", Err: err}
	}
	var claims []models.SeatClaim
	if err := cur.All(ctx, &claims); err != nil {
		return nil, &registration.StorageError{Op: "list booked seats", Err: err}
	}

	keys := make([]seating.SeatKey, 0, len(claims))
	for _, c := range claims {
		keys = append(keys, seating.SeatKey{EventTitle: c.EventTitle, Row: c.SeatRow, Column: c.SeatColumn})
	}
	return keys, nil
}

// ---------------- REGISTRATIONS ----------------

func (s *Store) FindDuplicate(ctx context.Context, reg *models.Registration) (string, error) {
	or := bson.A{bson.M{"email": reg.Email}}
	if reg.UTRID != "" {
		or = append(or, bson.M{"utrId": reg.UTRID})
	}
	if reg.RegistrationNumber != "" {
		or = append(or, bson.M{"registrationNumber": reg.RegistrationNumber})
	}

	opts := options.Find().
		SetLimit(3).
		SetProjection(bson.M{"email": 1, "utrId": 1, "registrationNumber": 1})
	cur, err := s.registrations.Find(ctx, bson.M{"eventTitle": reg.EventTitle, "$or": or}, opts)
	if err != nil {
		return "", &registration.StorageError{Op: "duplicate check", Err: err}
	}
	var existing []models.Registration
	if err := cur.All(ctx, &existing); err != nil {
		return "", &registration.StorageError{Op: "duplicate check", Err: err}
	}
	return registration.DuplicateField(reg, existing), nil
}

func (s *Store) Insert(ctx context.Context, reg *models.Registration) error {
	_, err := s.registrations.InsertOne(ctx, reg)
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		field := registration.FieldForConstraint(indexName(err))
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

// indexName pulls the index name out of an E11000 message. The message also
// echoes the duplicate values, which must not be matched against.
func indexName(err error) string {
	msg := err.Error()
	var we mongo.WriteException
	if errors.As(err, &we) && len(we.WriteErrors) > 0 {
		msg = we.WriteErrors[0].Message
	}
	i := strings.Index(msg, "index: ")
	if i < 0 {
		return ""
	}
	name := msg[i+len("index: "):]
	if j := strings.IndexByte(name, ' '); j >= 0 {
		name = name[:j]
	}
	return name
}

func (s *Store) Get(ctx context.Context, eventTitle, id string) (*models.Registration, error) {
	var reg models.Registration
	err := s.registrations.FindOne(ctx, bson.M{"_id": id, "eventTitle": eventTitle}).Decode(&reg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registration.NotFoundError{Resource: "registration", ID: id}
	}
	if err != nil {
		return nil, &registration.StorageError{Op: "get registration", Err: err}
	}
	return &reg, nil
}

func (s *Store) List(ctx context.Context, eventTitle string, page, limit int) ([]models.Registration, int, error) {
	filter := bson.M{"eventTitle": eventTitle}
	total, err := s.registrations.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, &registration.StorageError{Op: "list registrations", Err: err}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	regs, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, &registration.StorageError{Op: "list registrations", Err: err}
	}
	return regs, int(total), nil
}

func (s *Store) ListAll(ctx context.Context, eventTitle string) ([]models.Registration, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	regs, err := s.find(ctx, bson.M{"eventTitle": eventTitle}, opts)
	if err != nil {
		return nil, &registration.StorageError{Op: "export registrations", Err: err}
	}
	return regs, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Registration, error) {
	cur, err := s.registrations.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	regs := []models.Registration{}
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

func (s *Store) Summary(ctx context.Context, eventTitle string) (models.EventSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"eventTitle": eventTitle}}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"count":  bson.M{"$sum": 1},
			"amount": bson.M{"$sum": "$amount"},
		}}},
	}
	cur, err := s.registrations.Aggregate(ctx, pipeline)
	if err != nil {
		return models.EventSummary{}, &registration.StorageError{Op: "summarize registrations", Err: err}
	}
	var rows []struct {
		Count  int     `bson:"count"`
		Amount float64 `bson:"amount"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return models.EventSummary{}, &registration.StorageError{Op: "summarize registrations", Err: err}
	}
	if len(rows) == 0 {
		return models.EventSummary{}, nil
	}
	return models.EventSummary{Registrations: rows[0].Count, AmountTotal: rows[0].Amount}, nil
}
