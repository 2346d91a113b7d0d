package models

import "time"

type SeatPosition struct {
	Row    string `json:"row"`
	Column int    `json:"column"`
}

type RegistrationRequest struct {
	Name               string            `json:"name"`
	RegistrationNumber string            `json:"registrationNumber"`
	Email              string            `json:"email"`
	Phone              string            `json:"phone"`
	Institution        string            `json:"institution"`
	TeamName           string            `json:"teamName"`
	Members            []Member          `json:"members"`
	UTRID              string            `json:"utrId"`
	Seat               *SeatPosition     `json:"seat,omitempty"`
	Extra              map[string]string `json:"extra,omitempty"`
}

type RegistrationResponse struct {
	ID         string        `json:"id"`
	EventTitle string        `json:"eventTitle"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	TeamName   string        `json:"teamName,omitempty"`
	Seat       *SeatPosition `json:"seat,omitempty"`
	Amount     float64       `json:"amount"`
	ProofURL   string        `json:"proofUrl,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

type SeatView struct {
	Row    string  `json:"row"`
	Column int     `json:"column"`
	Tier   string  `json:"tier"`
	Price  float64 `json:"price"`
}

// SeatMap is the availability snapshot the seat picker renders.
type SeatMap struct {
	EventTitle  string             `json:"eventTitle"`
	AllSeats    []SeatView         `json:"allSeats"`
	BookedSeats []SeatPosition     `json:"bookedSeats"`
	Tiers       map[string]float64 `json:"tiers"`
}

type RegistrationPage struct {
	Items []Registration `json:"items"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type EventSummary struct {
	Registrations int     `json:"registrations"`
	AmountTotal   float64 `json:"amountTotal"`
}

type EventStats struct {
	EventTitle    string  `json:"eventTitle"`
	Registrations int     `json:"registrations"`
	SeatsBooked   int     `json:"seatsBooked,omitempty"`
	Capacity      int     `json:"capacity,omitempty"`
	AmountTotal   float64 `json:"amountTotal"`
	// SeatsByTier counts booked seats per pricing tier.
	SeatsByTier map[string]int `json:"seatsByTier,omitempty"`
}
