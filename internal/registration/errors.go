package registration

import (
	"fmt"
	"strings"

	"ms-registration/internal/models"
	"ms-registration/internal/seating"
)

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DuplicateRegistrationError names the field that already exists for the event.
type DuplicateRegistrationError struct {
	Field string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("a registration with this %s already exists for this event", e.Field)
}

type SeatTakenError struct {
	Seat seating.SeatKey
}

func (e *SeatTakenError) Error() string {
	return fmt.Sprintf("seat %s is already booked", e.Seat.Label())
}

type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("proof upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// FieldForConstraint maps a unique constraint name or driver message to the
// request field it protects. It returns "seat" for seat indexes and "" when
// the constraint is unknown.
func FieldForConstraint(detail string) string {
	d := strings.ToLower(detail)
	switch {
	case strings.Contains(d, "seat_row"), strings.Contains(d, "seat_claims"), strings.Contains(d, "seatrow"):
		return "seat"
	case strings.Contains(d, "utr_id"), strings.Contains(d, "utrid"):
		return "utrId"
	case strings.Contains(d, "registration_number"), strings.Contains(d, "registrationnumber"):
		return "registrationNumber"
	case strings.Contains(d, "email"):
		return "email"
	}
	return ""
}

// DuplicateField reports which identity of reg is already taken by one of the
// existing registrations. Email wins over UTR, UTR over registration number.
func DuplicateField(reg *models.Registration, existing []models.Registration) string {
	for _, field := range []string{"email", "utrId", "registrationNumber"} {
		for _, e := range existing {
			switch {
			case field == "email" && e.Email == reg.Email:
				return field
			case field == "utrId" && reg.UTRID != "" && e.UTRID == reg.UTRID:
				return field
			case field == "registrationNumber" && reg.RegistrationNumber != "" && e.RegistrationNumber == reg.RegistrationNumber:
				return field
			}
		}
	}
	return ""
}
