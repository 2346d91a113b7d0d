// Package registration validates and stores event registrations and owns the
// seat booking flow for seated events.
package registration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ms-registration/internal/assets"
	"ms-registration/internal/catalog"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/seating"

	"github.com/google/uuid"
)

// Ledger records which seats are taken. TryClaim must be atomic across
// processes: among concurrent claims on one key exactly one succeeds and the
// rest get *SeatTakenError.
type Ledger interface {
	ListBooked(ctx context.Context, eventTitle string) ([]seating.SeatKey, error)
	TryClaim(ctx context.Context, key seating.SeatKey, registrationID string) error
	Release(ctx context.Context, key seating.SeatKey, registrationID string) error
}

type Store interface {
	// FindDuplicate returns the first of email, utrId or registrationNumber
	// that another registration for the event already uses, or "".
	FindDuplicate(ctx context.Context, reg *models.Registration) (string, error)
	Insert(ctx context.Context, reg *models.Registration) error
	Get(ctx context.Context, eventTitle, id string) (*models.Registration, error)
	List(ctx context.Context, eventTitle string, page, limit int) ([]models.Registration, int, error)
	ListAll(ctx context.Context, eventTitle string) ([]models.Registration, error)
	Summary(ctx context.Context, eventTitle string) (models.EventSummary, error)
}

type AssetStore interface {
	Upload(ctx context.Context, data []byte, meta assets.Metadata) (assets.Asset, error)
	Delete(ctx context.Context, assetID string) error
}

// AssetReaper takes over deletes that failed during compensation.
type AssetReaper interface {
	Schedule(assetID string)
}

type EventPublisher interface {
	PublishRegistrationCreated(ctx context.Context, event models.RegistrationCreatedEvent) error
	PublishSeatStatus(ctx context.Context, event models.SeatStatusChangeEvent) error
}

type EventCatalog interface {
	Lookup(title string) (catalog.Event, bool)
	Events() []catalog.Event
}

type Options struct {
	UploadTimeout  time.Duration
	StoreTimeout   time.Duration
	MaxUploadBytes int64
}

type Dependencies struct {
	Catalog EventCatalog
	Ledger  Ledger
	Store   Store
	Assets  AssetStore
	Reaper  AssetReaper
	Events  EventPublisher
	Logger  *logger.Logger
}

type Service struct {
	Catalog EventCatalog
	Ledger  Ledger
	Store   Store
	Assets  AssetStore
	Reaper  AssetReaper
	Events  EventPublisher
	Logger  *logger.Logger

	opts     Options
	validate *validation
	now      func() time.Time
	newID    func() string
}

func NewService(deps Dependencies, opts Options) *Service {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 20 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Service{
		Catalog:  deps.Catalog,
		Ledger:   deps.Ledger,
		Store:    deps.Store,
		Assets:   deps.Assets,
		Reaper:   deps.Reaper,
		Events:   deps.Events,
		Logger:   deps.Logger,
		opts:     opts,
		validate: newValidation(opts.MaxUploadBytes),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *Service) event(title string) (catalog.Event, error) {
	event, ok := s.Catalog.Lookup(title)
	if !ok {
		return catalog.Event{}, &NotFoundError{Resource: "event", ID: seating.NormalizeTitle(title)}
	}
	return event, nil
}

// Register validates a submission and persists it. Validation completes
// before any side effect. Once the proof is uploaded or the seat is claimed,
// every failure path undoes them before returning.
func (s *Service) Register(ctx context.Context, eventTitle string, req models.RegistrationRequest, upload *Upload) (*models.RegistrationResponse, error) {
	event, err := s.event(eventTitle)
	if err != nil {
		return nil, err
	}

	req = normalizeRequest(req)
	if err := s.validate.required(event, req); err != nil {
		return nil, err
	}
	if err := s.validate.format(event, req, upload); err != nil {
		return nil, err
	}

	var seatKey *seating.SeatKey
	amount := event.Fee
	if event.Seated() {
		key, err := event.Seating.Normalize(event.Title, req.Seat.Row, req.Seat.Column)
		if err != nil {
			return nil, err
		}
		if amount, err = event.Seating.Price(key.Row); err != nil {
			return nil, err
		}
		seatKey = &key
	}

	reg := &models.Registration{
		ID:                 s.newID(),
		EventTitle:         event.Title,
		Name:               req.Name,
		RegistrationNumber: req.RegistrationNumber,
		Email:              req.Email,
		Phone:              req.Phone,
		Institution:        req.Institution,
		TeamName:           req.TeamName,
		Members:            req.Members,
		UTRID:              req.UTRID,
		Amount:             amount,
		Extra:              req.Extra,
		CreatedAt:          s.now(),
	}
	if len(reg.Members) == 0 {
		reg.Members = nil
	}
	if seatKey != nil {
		reg.SeatRow = seatKey.Row
		reg.SeatColumn = seatKey.Column
	}

	if err := s.checkDuplicate(ctx, reg); err != nil {
		return nil, err
	}

	var asset *assets.Asset
	if upload != nil && len(upload.Data) > 0 {
		uploaded, err := s.uploadProof(ctx, event, upload)
		if err != nil {
			return nil, err
		}
		asset = &uploaded
		reg.ProofURL = uploaded.URL
		reg.ProofAssetID = uploaded.AssetID
	}

	if seatKey != nil {
		if err := s.claim(ctx, *seatKey, reg.ID); err != nil {
			// A failed or timed out claim may still have committed.
			release := seatKey
			var taken *SeatTakenError
			if errors.As(err, &taken) {
				release = nil
			}
			s.compensate(ctx, reg.ID, release, asset)
			return nil, err
		}
	}

	if err := s.insert(ctx, reg, seatKey); err != nil {
		s.compensate(ctx, reg.ID, seatKey, asset)
		return nil, err
	}

	s.logRegistration("CREATED", reg)
	s.publish(ctx, reg)

	return toResponse(reg), nil
}

func (s *Service) checkDuplicate(ctx context.Context, reg *models.Registration) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	field, err := s.Store.FindDuplicate(ctx, reg)
	if err != nil {
		return asStorageError("duplicate check", err)
	}
	if field != "" {
		return &DuplicateRegistrationError{Field: field}
	}
	return nil
}

func (s *Service) uploadProof(ctx context.Context, event catalog.Event, upload *Upload) (assets.Asset, error) {
	if s.Assets == nil {
		return assets.Asset{}, &UploadError{Err: errors.New("asset store is not configured")}
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()

	asset, err := s.Assets.Upload(ctx, upload.Data, assets.Metadata{
		Filename:    upload.Filename,
		ContentType: proofContentType(upload),
		EventTitle:  event.Title,
	})
	if err != nil {
		return assets.Asset{}, &UploadError{Err: err}
	}
	return asset, nil
}

func (s *Service) claim(ctx context.Context, key seating.SeatKey, registrationID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	err := s.Ledger.TryClaim(ctx, key, registrationID)
	if err == nil {
		return nil
	}
	var taken *SeatTakenError
	if errors.As(err, &taken) {
		s.Logger.Info("SEATS", fmt.Sprintf("Seat %s already taken, rejecting %s", key, registrationID))
		return taken
	}
	return asStorageError("claim seat", err)
}

func (s *Service) insert(ctx context.Context, reg *models.Registration, seatKey *seating.SeatKey) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	err := s.Store.Insert(ctx, reg)
	if err == nil {
		return nil
	}

	var dup *DuplicateRegistrationError
	var taken *SeatTakenError
	switch {
	case errors.As(err, &taken):
		return taken
	case errors.As(err, &dup):
		if dup.Field == "seat" && seatKey != nil {
			return &SeatTakenError{Seat: *seatKey}
		}
		return dup
	}
	return asStorageError("insert registration", err)
}

// compensate releases the seat and deletes the proof after a failed write.
// Failures are logged and never replace the original error.
func (s *Service) compensate(ctx context.Context, registrationID string, seatKey *seating.SeatKey, asset *assets.Asset) {
	base := context.WithoutCancel(ctx)

	if seatKey != nil {
		rctx, cancel := context.WithTimeout(base, s.opts.StoreTimeout)
		if err := s.Ledger.Release(rctx, *seatKey, registrationID); err != nil {
			s.Logger.Error("SEATS", fmt.Sprintf("failed to release seat %s for %s: %v", seatKey, registrationID, err))
		} else {
			s.Logger.Info("SEATS", fmt.Sprintf("Released seat %s after failed registration %s", seatKey, registrationID))
		}
		cancel()
	}

	if asset != nil && s.Assets != nil {
		dctx, cancel := context.WithTimeout(base, s.opts.UploadTimeout)
		err := s.Assets.Delete(dctx, asset.AssetID)
		cancel()
		if err != nil {
			s.Logger.Warn("ASSETS", fmt.Sprintf("failed to delete proof %s for %s: %v", asset.AssetID, registrationID, err))
			if s.Reaper != nil {
				s.Reaper.Schedule(asset.AssetID)
			}
		}
	}
}

func (s *Service) publish(ctx context.Context, reg *models.Registration) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StoreTimeout)
	defer cancel()

	created := models.RegistrationCreatedEvent{
		RegistrationID: reg.ID,
		EventTitle:     reg.EventTitle,
		Email:          reg.Email,
		Seat:           seatOf(reg),
		Amount:         reg.Amount,
		CreatedAt:      reg.CreatedAt,
	}
	if err := s.Events.PublishRegistrationCreated(ctx, created); err != nil {
		s.Logger.Warn("EVENTS", fmt.Sprintf("failed to publish registration %s: %v", reg.ID, err))
	}

	if reg.HasSeat() {
		evt := models.NewSeatStatusChangeEvent(reg.EventTitle, models.SeatStatusBooked, reg.ID, *seatOf(reg))
		if err := s.Events.PublishSeatStatus(ctx, evt); err != nil {
			s.Logger.Warn("EVENTS", fmt.Sprintf("failed to publish seat status for %s: %v", reg.ID, err))
		}
	}
}

// Availability returns every seat of a seated event and the ones already
// booked. It always reads the ledger.
func (s *Service) Availability(ctx context.Context, eventTitle string) (*models.SeatMap, error) {
	event, err := s.event(eventTitle)
	if err != nil {
		return nil, err
	}
	if !event.Seated() {
		return nil, &NotFoundError{Resource: "seat map", ID: event.Title}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	booked, err := s.Ledger.ListBooked(ctx, event.Title)
	if err != nil {
		return nil, asStorageError("list booked seats", err)
	}
	sort.Slice(booked, func(i, j int) bool {
		if booked[i].Row != booked[j].Row {
			return booked[i].Row < booked[j].Row
		}
		return booked[i].Column < booked[j].Column
	})

	layout := event.Seating
	all := layout.AllSeats(event.Title)
	seatMap := &models.SeatMap{
		EventTitle:  event.Title,
		AllSeats:    make([]models.SeatView, 0, len(all)),
		BookedSeats: make([]models.SeatPosition, 0, len(booked)),
		Tiers:       layout.Tiers,
	}
	for _, key := range all {
		price, _ := layout.Price(key.Row)
		seatMap.AllSeats = append(seatMap.AllSeats, models.SeatView{
			Row:    key.Row,
			Column: key.Column,
			Tier:   layout.TierOf(key.Row),
			Price:  price,
		})
	}
	for _, key := range booked {
		seatMap.BookedSeats = append(seatMap.BookedSeats, models.SeatPosition{Row: key.Row, Column: key.Column})
	}
	return seatMap, nil
}

func (s *Service) Get(ctx context.Context, eventTitle, id string) (*models.Registration, error) {
	event, err := s.event(eventTitle)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	reg, err := s.Store.Get(ctx, event.Title, id)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, nf
		}
		return nil, asStorageError("get registration", err)
	}
	return reg, nil
}

func (s *Service) List(ctx context.Context, eventTitle string, page, limit int) (*models.RegistrationPage, error) {
	event, err := s.event(eventTitle)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	items, total, err := s.Store.List(ctx, event.Title, page, limit)
	if err != nil {
		return nil, asStorageError("list registrations", err)
	}
	if items == nil {
		items = []models.Registration{}
	}
	return &models.RegistrationPage{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// ListAll returns every registration of an event, oldest first, for export.
func (s *Service) ListAll(ctx context.Context, eventTitle string) (catalog.Event, []models.Registration, error) {
	event, err := s.event(eventTitle)
	if err != nil {
		return catalog.Event{}, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	items, err := s.Store.ListAll(ctx, event.Title)
	if err != nil {
		return catalog.Event{}, nil, asStorageError("export registrations", err)
	}
	return event, items, nil
}

func (s *Service) logRegistration(action string, reg *models.Registration) {
	msg := fmt.Sprintf("%s for %s", reg.Email, reg.EventTitle)
	if reg.HasSeat() {
		msg += fmt.Sprintf(" seat %s-%d", reg.SeatRow, reg.SeatColumn)
	}
	s.Logger.LogRegistration(action, reg.ID, msg)
}

func asStorageError(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return se
	}
	return &StorageError{Op: op, Err: err}
}

func seatOf(reg *models.Registration) *models.SeatPosition {
	if !reg.HasSeat() {
		return nil
	}
	return &models.SeatPosition{Row: reg.SeatRow, Column: reg.SeatColumn}
}

func toResponse(reg *models.Registration) *models.RegistrationResponse {
	return &models.RegistrationResponse{
		ID:         reg.ID,
		EventTitle: reg.EventTitle,
		Name:       reg.Name,
		Email:      reg.Email,
		TeamName:   reg.TeamName,
		Seat:       seatOf(reg),
		Amount:     reg.Amount,
		ProofURL:   reg.ProofURL,
		CreatedAt:  reg.CreatedAt,
	}
}
