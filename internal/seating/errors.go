package seating

import "fmt"

// InvalidSeatError is returned for seat coordinates outside the layout.
type InvalidSeatError struct {
	Row    string
	Column int
	Reason string
}

func (e *InvalidSeatError) Error() string {
	return fmt.Sprintf("invalid seat %s-%d: %s", e.Row, e.Column, e.Reason)
}
