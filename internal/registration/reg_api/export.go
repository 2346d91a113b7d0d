package reg_api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-registration/internal/auth"
	"ms-registration/internal/catalog"
	"ms-registration/internal/models"

	"github.com/go-chi/chi/v5"
)

var exportColumns = []string{
	"id", "createdAt", "name", "registrationNumber", "email", "phone", "institution",
	"teamName", "members", "utrId", "seat", "amount", "proofUrl",
}

// ExportRegistrations streams every registration of an event as CSV, with
// one extra column per event-specific form field.
func (h *Handler) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	event, regs, err := h.Service.ListAll(r.Context(), chi.URLParam(r, "eventTitle"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s-registrations-%s.csv", slug(event.Title), time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write(append(append([]string{}, exportColumns...), event.ExtraFields...))
	for i := range regs {
		cw.Write(exportRow(event, &regs[i]))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ExportRegistrations: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("ExportRegistrations: %d rows of %s for %s", len(regs), event.Title, auth.Admin(r.Context())))
}

func exportRow(event catalog.Event, reg *models.Registration) []string {
	members := make([]string, 0, len(reg.Members))
	for _, m := range reg.Members {
		members = append(members, fmt.Sprintf("%s (%s)", m.Name, m.RegistrationNumber))
	}
	seat := ""
	if reg.HasSeat() {
		seat = fmt.Sprintf("%s-%d", reg.SeatRow, reg.SeatColumn)
	}

	row := []string{
		reg.ID,
		reg.CreatedAt.UTC().Format(time.RFC3339),
		reg.Name,
		reg.RegistrationNumber,
		reg.Email,
		reg.Phone,
		reg.Institution,
		reg.TeamName,
		strings.Join(members, "; "),
		reg.UTRID,
		seat,
		strconv.FormatFloat(reg.Amount, 'f', 2, 64),
		reg.ProofURL,
	}
	for _, field := range event.ExtraFields {
		row = append(row, reg.Extra[field])
	}
	for i, cell := range row {
		row[i] = neutralizeFormula(cell)
	}
	return row
}

// neutralizeFormula keeps spreadsheet apps from evaluating user input.
func neutralizeFormula(cell string) string {
	if cell != "" && strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}

func slug(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), "-"))
}
