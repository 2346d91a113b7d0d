package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Member struct {
	Name               string `json:"name" bson:"name"`
	RegistrationNumber string `json:"registrationNumber" bson:"registrationNumber"`
	Email              string `json:"email,omitempty" bson:"email,omitempty"`
}

// Registration is one submitted form. Nullable unique columns use nullzero so
// the partial unique indexes skip rows that leave them empty.
type Registration struct {
	bun.BaseModel `bun:"table:registrations" bson:"-"`

	ID                 string            `bun:"id,pk" json:"id" bson:"_id"`
	EventTitle         string            `bun:"event_title,notnull" json:"eventTitle" bson:"eventTitle"`
	Name               string            `bun:"name,notnull" json:"name" bson:"name"`
	RegistrationNumber string            `bun:"registration_number,nullzero" json:"registrationNumber,omitempty" bson:"registrationNumber,omitempty"`
	Email              string            `bun:"email,notnull" json:"email" bson:"email"`
	Phone              string            `bun:"phone,nullzero" json:"phone,omitempty" bson:"phone,omitempty"`
	Institution        string            `bun:"institution,nullzero" json:"institution,omitempty" bson:"institution,omitempty"`
	TeamName           string            `bun:"team_name,nullzero" json:"teamName,omitempty" bson:"teamName,omitempty"`
	Members            []Member          `bun:"members,type:jsonb,nullzero" json:"members,omitempty" bson:"members,omitempty"`
	UTRID              string            `bun:"utr_id,nullzero" json:"utrId,omitempty" bson:"utrId,omitempty"`
	ProofURL           string            `bun:"proof_url,nullzero" json:"proofUrl,omitempty" bson:"proofUrl,omitempty"`
	ProofAssetID       string            `bun:"proof_asset_id,nullzero" json:"proofAssetId,omitempty" bson:"proofAssetId,omitempty"`
	SeatRow            string            `bun:"seat_row,nullzero" json:"seatRow,omitempty" bson:"seatRow,omitempty"`
	SeatColumn         int               `bun:"seat_column,nullzero" json:"seatColumn,omitempty" bson:"seatColumn,omitempty"`
	Amount             float64           `bun:"amount,notnull" json:"amount" bson:"amount"`
	Extra              map[string]string `bun:"extra,type:jsonb,nullzero" json:"extra,omitempty" bson:"extra,omitempty"`
	CreatedAt          time.Time         `bun:"created_at,notnull" json:"createdAt" bson:"createdAt"`
}

func (r *Registration) HasSeat() bool {
	return r.SeatRow != ""
}

// SeatClaim is the ledger row that makes a seat unavailable. The composite
// primary key is the seat itself.
type SeatClaim struct {
	bun.BaseModel `bun:"table:seat_claims" bson:"-"`

	EventTitle     string    `bun:"event_title,pk" bson:"eventTitle"`
	SeatRow        string    `bun:"seat_row,pk" bson:"seatRow"`
	SeatColumn     int       `bun:"seat_column,pk" bson:"seatColumn"`
	RegistrationID string    `bun:"registration_id,notnull" bson:"registrationId"`
	ClaimedAt      time.Time `bun:"claimed_at,notnull" bson:"claimedAt"`
}
