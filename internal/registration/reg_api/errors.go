package reg_api

import (
	"errors"
	"net/http"

	"ms-registration/internal/models"
	"ms-registration/internal/registration"
	"ms-registration/internal/seating"
	"ms-registration/internal/utils"
)

// writeError maps service errors to status codes. Any 409 carrying a seat
// tells the client to refetch the seat map.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *registration.ValidationError
		badSeat    *seating.InvalidSeatError
		notFound   *registration.NotFoundError
		duplicate  *registration.DuplicateRegistrationError
		taken      *registration.SeatTakenError
		upload     *registration.UploadError
		storage    *registration.StorageError
	)

	var status int
	var resp utils.APIResponse
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		resp = utils.FieldError("Invalid registration", err.Error(), validation.Field)
	case errors.As(err, &badSeat):
		status = http.StatusBadRequest
		resp = utils.FieldError("Invalid seat", err.Error(), "seat")
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		resp = utils.ErrorResponse("Not found", err.Error())
	case errors.As(err, &taken):
		status = http.StatusConflict
		resp = utils.FieldError("Seat already booked", err.Error(), "seat")
		resp.Seat = models.SeatPosition{Row: taken.Seat.Row, Column: taken.Seat.Column}
	case errors.As(err, &duplicate):
		status = http.StatusConflict
		resp = utils.FieldError("Already registered", err.Error(), duplicate.Field)
	case errors.As(err, &upload):
		status = http.StatusBadGateway
		resp = utils.ErrorResponse("Could not store payment proof", "proof upload failed, please retry")
	case errors.As(err, &storage):
		status = http.StatusInternalServerError
		resp = utils.ErrorResponse("Registration could not be saved", "storage unavailable, please retry")
	default:
		status = http.StatusInternalServerError
		resp = utils.ErrorResponse("Internal server error", "unexpected error")
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", r.Method+" "+r.URL.Path+": "+err.Error())
	} else {
		h.Logger.Debug("API", r.Method+" "+r.URL.Path+": "+err.Error())
	}
	utils.WriteJSON(w, status, resp)
}
