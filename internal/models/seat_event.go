package models

import "time"

const (
	SeatStatusBooked    = "BOOKED"
	SeatStatusAvailable = "AVAILABLE"
)

// SeatStatusChangeEvent is published on the seat status topic and pushed to
// seat map streams.
type SeatStatusChangeEvent struct {
	EventTitle     string         `json:"eventTitle"`
	Seats          []SeatPosition `json:"seats"`
	Status         string         `json:"status"`
	RegistrationID string         `json:"registrationId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
}

func NewSeatStatusChangeEvent(eventTitle, status, registrationID string, seats ...SeatPosition) SeatStatusChangeEvent {
	return SeatStatusChangeEvent{
		EventTitle:     eventTitle,
		Seats:          seats,
		Status:         status,
		RegistrationID: registrationID,
		OccurredAt:     time.Now().UTC(),
	}
}

type RegistrationCreatedEvent struct {
	RegistrationID string        `json:"registrationId"`
	EventTitle     string        `json:"eventTitle"`
	Email          string        `json:"email"`
	Seat           *SeatPosition `json:"seat,omitempty"`
	Amount         float64       `json:"amount"`
	CreatedAt      time.Time     `json:"createdAt"`
}
