// Package analytics aggregates per-event registration figures for admins.
package analytics

import (
	"context"
	"fmt"

	"ms-registration/internal/catalog"
	"ms-registration/internal/models"
	"ms-registration/internal/seating"
)

type Catalog interface {
	Events() []catalog.Event
}

type SummaryStore interface {
	Summary(ctx context.Context, eventTitle string) (models.EventSummary, error)
}

type BookedSeats interface {
	ListBooked(ctx context.Context, eventTitle string) ([]seating.SeatKey, error)
}

// Service handles analytics operations
type Service struct {
	Catalog Catalog
	Store   SummaryStore
	Ledger  BookedSeats
}

func NewService(c Catalog, store SummaryStore, ledger BookedSeats) *Service {
	return &Service{Catalog: c, Store: store, Ledger: ledger}
}

// Stats returns one entry per catalog event, in catalog order. Seated events
// also report booked seats against capacity.
func (s *Service) Stats(ctx context.Context) ([]models.EventStats, error) {
	events := s.Catalog.Events()
	stats := make([]models.EventStats, 0, len(events))

	for _, event := range events {
		summary, err := s.Store.Summary(ctx, event.Title)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", event.Title, err)
		}
		entry := models.EventStats{
			EventTitle:    event.Title,
			Registrations: summary.Registrations,
			AmountTotal:   summary.AmountTotal,
		}

		if event.Seated() {
			booked, err := s.Ledger.ListBooked(ctx, event.Title)
			if err != nil {
				return nil, fmt.Errorf("booked seats for %s: %w", event.Title, err)
			}
			entry.Capacity = event.Seating.Capacity()
			entry.SeatsBooked = len(booked)
			entry.SeatsByTier = make(map[string]int, len(event.Seating.Tiers))
			for tier := range event.Seating.Tiers {
				entry.SeatsByTier[tier] = 0
			}
			for _, key := range booked {
				entry.SeatsByTier[event.Seating.TierOf(key.Row)]++
			}
		}
		stats = append(stats, entry)
	}
	return stats, nil
}
