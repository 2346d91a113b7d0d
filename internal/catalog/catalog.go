// Package catalog holds the events that accept registrations and the form
// rules each one applies.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"ms-registration/internal/seating"

	"gopkg.in/yaml.v3"
)

//go:embed default_events.yaml
var defaultEvents []byte

const DefaultUTRMinLength = 12

type Kind string

const (
	KindSolo   Kind = "solo"
	KindTeam   Kind = "team"
	KindSeated Kind = "seated"
)

// TeamRule bounds the team size, counting the submitting participant.
type TeamRule struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

type Event struct {
	Title        string          `yaml:"title" json:"title"`
	Kind         Kind            `yaml:"kind" json:"kind"`
	Description  string          `yaml:"description" json:"description,omitempty"`
	Paid         bool            `yaml:"paid" json:"paid"`
	Fee          float64         `yaml:"fee" json:"fee,omitempty"`
	RequireProof bool            `yaml:"requireProof" json:"requireProof"`
	RequirePhone bool            `yaml:"requirePhone" json:"requirePhone"`
	ExtraFields  []string        `yaml:"extraFields" json:"extraFields,omitempty"`
	Team         *TeamRule       `yaml:"team" json:"team,omitempty"`
	UTRMinLength int             `yaml:"utrMinLength" json:"utrMinLength,omitempty"`
	Seating      *seating.Layout `yaml:"seating" json:"seating,omitempty"`
}

func (e Event) Seated() bool {
	return e.Seating != nil
}

func (e Event) IsTeam() bool {
	return e.Team != nil
}

func (e Event) validate() error {
	if seating.NormalizeTitle(e.Title) == "" {
		return errors.New("event title is empty")
	}
	if e.Kind == KindSeated && e.Seating == nil {
		return fmt.Errorf("event %q is seated but has no seating layout", e.Title)
	}
	if e.Seating != nil {
		if err := e.Seating.Validate(); err != nil {
			return fmt.Errorf("event %q: %w", e.Title, err)
		}
	}
	if e.Team != nil && (e.Team.Min < 1 || e.Team.Max < e.Team.Min) {
		return fmt.Errorf("event %q has invalid team bounds %d..%d", e.Title, e.Team.Min, e.Team.Max)
	}
	return nil
}

type Catalog struct {
	events []Event
	index  map[string]int
}

type file struct {
	Events []Event `yaml:"events"`
}

// Load reads the catalog from path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultEvents)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return Parse(data)
}

func Default() *Catalog {
	c, err := Parse(defaultEvents)
	if err != nil {
		panic(fmt.Sprintf("built-in event catalog is invalid: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	if len(f.Events) == 0 {
		return nil, errors.New("events file declares no events")
	}

	c := &Catalog{index: make(map[string]int, len(f.Events))}
	for _, e := range f.Events {
		e.Title = seating.NormalizeTitle(e.Title)
		if e.Kind == "" {
			e.Kind = KindSolo
			if e.Team != nil {
				e.Kind = KindTeam
			}
			if e.Seating != nil {
				e.Kind = KindSeated
			}
		}
		if e.Paid && e.UTRMinLength == 0 {
			e.UTRMinLength = DefaultUTRMinLength
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
		key := lookupKey(e.Title)
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("event %q is declared twice", e.Title)
		}
		c.index[key] = len(c.events)
		c.events = append(c.events, e)
	}
	return c, nil
}

// Lookup finds an event by title, ignoring case and extra whitespace.
func (c *Catalog) Lookup(title string) (Event, bool) {
	i, ok := c.index[lookupKey(title)]
	if !ok {
		return Event{}, false
	}
	return c.events[i], true
}

func (c *Catalog) Events() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func lookupKey(title string) string {
	return strings.ToLower(seating.NormalizeTitle(title))
}
