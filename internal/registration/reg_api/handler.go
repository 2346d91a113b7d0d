// Package reg_api exposes registrations, seat maps and the admin console
// over HTTP.
package reg_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-registration/internal/auth"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/passes"
	"ms-registration/internal/registration"
	"ms-registration/internal/sse"
	"ms-registration/internal/utils"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead covers the payload field and part headers on top of the
// proof itself.
const multipartOverhead = 1 << 20

type Handler struct {
	Service *registration.Service
	Emitter *sse.SeatEventEmitter
	Passes  *passes.Generator
	Auth    *auth.Authenticator
	Logger  *logger.Logger

	// MaxUploadBytes bounds the proof file; the request body may exceed it
	// by multipartOverhead.
	MaxUploadBytes int64
	// KeepAlive is the SSE comment interval.
	KeepAlive time.Duration
	// Shutdown, when closed, ends every open seat stream. Nil keeps streams
	// open until their clients leave.
	Shutdown <-chan struct{}
}

func NewHandler(service *registration.Service, emitter *sse.SeatEventEmitter, gen *passes.Generator, authn *auth.Authenticator, log *logger.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		Service:        service,
		Emitter:        emitter,
		Passes:         gen,
		Auth:           authn,
		Logger:         log,
		MaxUploadBytes: maxUploadBytes,
		KeepAlive:      25 * time.Second,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events", h.Service.Catalog.Events()))
}

// GetSeats returns the raw seat map: allSeats, bookedSeats and tiers.
func (h *Handler) GetSeats(w http.ResponseWriter, r *http.Request) {
	eventTitle := chi.URLParam(r, "eventTitle")

	seatMap, err := h.Service.Availability(r.Context(), eventTitle)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("GetSeats: %s booked=%d", seatMap.EventTitle, len(seatMap.BookedSeats)))

	w.Header().Set("Cache-Control", "no-store")
	utils.WriteJSON(w, http.StatusOK, seatMap)
}

func (h *Handler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	eventTitle := chi.URLParam(r, "eventTitle")

	req, upload, err := h.decodeSubmission(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.Service.Register(r.Context(), eventTitle, req, upload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, resp)
}

// decodeSubmission accepts a JSON body, or multipart with the JSON in a
// "payload" field and the payment screenshot in "proof".
func (h *Handler) decodeSubmission(w http.ResponseWriter, r *http.Request) (models.RegistrationRequest, *registration.Upload, error) {
	var req models.RegistrationRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, nil, bodyError(err)
		}
		return req, nil, nil
	}

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		return req, nil, bodyError(err)
	}
	defer r.MultipartForm.RemoveAll()

	payload := r.FormValue("payload")
	if payload == "" {
		return req, nil, &registration.ValidationError{Field: "payload", Reason: "is required"}
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return req, nil, &registration.ValidationError{Field: "payload", Reason: "must be valid JSON"}
	}

	file, header, err := r.FormFile("proof")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, bodyError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, nil, bodyError(err)
	}
	return req, &registration.Upload{
		Filename: header.Filename,
		// Sniffed rather than trusting the part header.
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &registration.ValidationError{Field: "proof", Reason: "request body is too large"}
	}
	return &registration.ValidationError{Field: "body", Reason: "malformed request body"}
}

// GetPass renders the QR entry pass of a stored registration.
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	eventTitle := chi.URLParam(r, "eventTitle")
	id := chi.URLParam(r, "id")

	reg, err := h.Service.Get(r.Context(), eventTitle, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size < 128 || size > 1024 {
		size = 256
	}
	png, err := h.Passes.PNG(reg, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// ---------------- ADMIN ----------------

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body models.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := h.Auth.Login(r.Context(), strings.TrimSpace(body.Username), body.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Login failed", err.Error()))
		return
	}
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Login: %v", err))
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Login unavailable", "session store unavailable"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return
	}
	if err := h.Auth.Logout(r.Context(), token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
			return
		}
		h.Logger.Error("AUTH", fmt.Sprintf("Logout: %v", err))
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Logout unavailable", "session store unavailable"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventTitle := chi.URLParam(r, "eventTitle")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.Service.List(r.Context(), eventTitle, page, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("ListRegistrations: %s page=%d by %s", eventTitle, result.Page, auth.Admin(r.Context())))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Registrations", result))
}

type verifyPassRequest struct {
	Token string `json:"token"`
}

type verifiedPass struct {
	Pass         passes.Pass          `json:"pass"`
	Registration *models.Registration `json:"registration"`
}

// VerifyPass checks a scanned pass and that its registration still exists.
func (h *Handler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	var body verifyPassRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	pass, err := h.Passes.Verify(body.Token)
	if err != nil {
		h.Logger.LogSecurity("PASS_REJECTED", err.Error())
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Invalid pass", err.Error()))
		return
	}
	reg, err := h.Service.Get(r.Context(), pass.EventTitle, pass.RegistrationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Pass is valid", verifiedPass{Pass: pass, Registration: reg}))
}
