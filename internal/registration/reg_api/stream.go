package reg_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-registration/internal/models"

	"github.com/go-chi/chi/v5"
)

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

// StreamSeats sends the current seat map as a "snapshot" event and then one
// event per seat status change until the client disconnects or the server
// shuts down.
func (h *Handler) StreamSeats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Subscribe before reading the snapshot so no booking falls in between.
	updates := h.Emitter.Subscribe(ctx, chi.URLParam(r, "eventTitle"))
	seatMap, err := h.Service.Availability(ctx, chi.URLParam(r, "eventTitle"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout must not cut long-lived streams.
	rc.SetWriteDeadline(time.Time{})

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, "snapshot", seatMap); err != nil {
		return
	}
	rc.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to seat stream for %s", seatMap.EventTitle))

	keepAlive := time.NewTicker(h.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case change, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, eventName(change), change); err != nil {
				h.Logger.Debug("SSE", fmt.Sprintf("write failed for %s: %v", seatMap.EventTitle, err))
				return
			}
			rc.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			rc.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from seat stream for %s", seatMap.EventTitle))
			return
		case <-h.Shutdown:
			h.Logger.Debug("SSE", fmt.Sprintf("Closing seat stream for %s on shutdown", seatMap.EventTitle))
			return
		}
	}
}

func eventName(change models.SeatStatusChangeEvent) string {
	if change.Status == models.SeatStatusBooked {
		return "seat.booked"
	}
	return "seat.available"
}

func writeEvent(w http.ResponseWriter, name string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
