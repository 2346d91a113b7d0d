// Package seating defines seat identity, layout bounds and row pricing for
// seated events.
package seating

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// SeatKey identifies one physical seat within an event. Keys built through
// Layout.Normalize are canonical, so == is seat equality.
type SeatKey struct {
	EventTitle string
	Row        string
	Column     int
}

// Label renders the key as it is printed on the seat map, e.g. "E-3".
func (k SeatKey) Label() string {
	return fmt.Sprintf("%s-%d", k.Row, k.Column)
}

func (k SeatKey) String() string {
	return fmt.Sprintf("%s/%s", k.EventTitle, k.Label())
}

// Row describes one lettered row of the hall.
type Row struct {
	Label   string `yaml:"label" json:"label"`
	Columns int    `yaml:"columns" json:"columns"`
	Tier    string `yaml:"tier" json:"tier"`
}

type Layout struct {
	Rows  []Row              `yaml:"rows" json:"rows"`
	Tiers map[string]float64 `yaml:"tiers" json:"tiers"`
}

// NormalizeTitle collapses inner whitespace and trims the title.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// Validate checks that the layout is usable: single-letter unique rows,
// positive column counts and a priced tier for every row.
func (l Layout) Validate() error {
	if len(l.Rows) == 0 {
		return errors.New("layout has no rows")
	}
	seen := make(map[string]bool, len(l.Rows))
	for _, r := range l.Rows {
		label := strings.ToUpper(strings.TrimSpace(r.Label))
		if !isRowLetter(label) {
			return fmt.Errorf("row %q must be a single letter", r.Label)
		}
		if seen[label] {
			return fmt.Errorf("row %s is declared twice", label)
		}
		seen[label] = true
		if r.Columns <= 0 {
			return fmt.Errorf("row %s must have at least one column", label)
		}
		if _, ok := l.Tiers[r.Tier]; !ok {
			return fmt.Errorf("row %s uses unknown tier %q", label, r.Tier)
		}
	}
	return nil
}

// Normalize builds the canonical key for a seat or reports why the
// coordinates are not part of this layout.
func (l Layout) Normalize(eventTitle, row string, column int) (SeatKey, error) {
	label := strings.ToUpper(strings.TrimSpace(row))
	if !isRowLetter(label) {
		return SeatKey{}, &InvalidSeatError{Row: row, Column: column, Reason: "row must be a single letter"}
	}
	r, ok := l.row(label)
	if !ok {
		return SeatKey{}, &InvalidSeatError{Row: label, Column: column, Reason: "row is not part of the seat map"}
	}
	if column < 1 || column > r.Columns {
		return SeatKey{}, &InvalidSeatError{
			Row:    label,
			Column: column,
			Reason: fmt.Sprintf("column must be between 1 and %d", r.Columns),
		}
	}
	return SeatKey{EventTitle: NormalizeTitle(eventTitle), Row: label, Column: column}, nil
}

// Price returns the ticket price of a row's tier.
func (l Layout) Price(row string) (float64, error) {
	label := strings.ToUpper(strings.TrimSpace(row))
	r, ok := l.row(label)
	if !ok {
		return 0, &InvalidSeatError{Row: row, Reason: "row is not part of the seat map"}
	}
	price, ok := l.Tiers[r.Tier]
	if !ok {
		return 0, fmt.Errorf("row %s has no price for tier %q", label, r.Tier)
	}
	return price, nil
}

// TierOf returns the tier name of a row, or "" when the row is unknown.
func (l Layout) TierOf(row string) string {
	if r, ok := l.row(strings.ToUpper(strings.TrimSpace(row))); ok {
		return r.Tier
	}
	return ""
}

// AllSeats lists every seat in row order, then column order.
func (l Layout) AllSeats(eventTitle string) []SeatKey {
	title := NormalizeTitle(eventTitle)
	seats := make([]SeatKey, 0, l.Capacity())
	for _, r := range l.Rows {
		label := strings.ToUpper(strings.TrimSpace(r.Label))
		for c := 1; c <= r.Columns; c++ {
			seats = append(seats, SeatKey{EventTitle: title, Row: label, Column: c})
		}
	}
	return seats
}

func (l Layout) Capacity() int {
	total := 0
	for _, r := range l.Rows {
		total += r.Columns
	}
	return total
}

func (l Layout) row(label string) (Row, bool) {
	for _, r := range l.Rows {
		if strings.EqualFold(strings.TrimSpace(r.Label), label) {
			return r, true
		}
	}
	return Row{}, false
}

func isRowLetter(s string) bool {
	if len(s) != 1 {
		return false
	}
	r := rune(s[0])
	return r < unicode.MaxASCII && unicode.IsUpper(r)
}
