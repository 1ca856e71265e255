package graph

import "math"

const (
	// DefaultPageLimit is used when a listing does not name a limit.
	DefaultPageLimit = 10
	// MaxPageLimit bounds the rows returned by a single listing.
	MaxPageLimit = 100
)

// Page selects a window of a listing. Number is 1-based.
type Page struct {
	Number int
	Limit  int
}

// Normalize applies the defaults and the bounds on Limit and Number. Number is
// capped at LastAddressablePage so Offset never overflows.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if last := LastAddressablePage(p.Limit); p.Number > last {
		p.Number = last
	}
	return p
}

// Offset is the number of rows skipped before the page starts.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// LastAddressablePage is the highest page number whose offset fits in an int
// for the given positive limit.
func LastAddressablePage(limit int) int {
	if limit <= 1 {
		return math.MaxInt
	}
	return math.MaxInt/limit + 1
}
