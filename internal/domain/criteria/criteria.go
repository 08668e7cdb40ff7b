// Package criteria models client-supplied search criteria.
package criteria

import (
	"fmt"
	"time"
)

// PairMode selects how structured pairs combine.
type PairMode int

const (
	// MatchAny ORs pairs together: any matching field wins (contacts search).
	MatchAny PairMode = iota
	// MatchAll ANDs pairs together: every pair must match.
	MatchAll
)

// Pair is one structured (field, value) search term.
type Pair struct {
	field string
	value string
}

// NewPair creates a structured search pair.
func NewPair(field, value string) (Pair, error) {
	if field == "" {
		return Pair{}, fmt.Errorf("pair field is required")
	}
	if value == "" {
		return Pair{}, fmt.Errorf("pair value is required for field %q", field)
	}
	return Pair{field: field, value: value}, nil
}

// Field returns the targeted field name.
func (p Pair) Field() string { return p.field }

// Value returns the search value.
func (p Pair) Value() string { return p.value }

// DateRange is a half-open [start, end) time window.
type DateRange struct {
	start time.Time
	end   time.Time
}

// NewDateRange validates and creates a date range. Either bound may be zero.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() && end.IsZero() {
		return DateRange{}, fmt.Errorf("date range needs at least one bound")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return DateRange{}, fmt.Errorf("date range end precedes start")
	}
	return DateRange{start: start, end: end}, nil
}

// Start returns the inclusive lower bound (zero when unbounded).
func (r DateRange) Start() time.Time { return r.start }

// End returns the exclusive upper bound (zero when unbounded).
func (r DateRange) End() time.Time { return r.end }

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool { return r.start.IsZero() && r.end.IsZero() }

// Criteria is one search request's input. Exactly one of the free-text
// term, structured pairs, or pagination bucket is honored, in that order.
type Criteria struct {
	freeText  string
	pairs     []Pair
	pairMode  PairMode
	bucket    string
	dateRange DateRange
	folders   []string
	recurse   bool
}

// New validates and creates Criteria. folders is the target folder scope.
func New(
	freeText string, pairs []Pair, pairMode PairMode, bucket string,
	dateRange DateRange, folders []string, recurse bool,
) (Criteria, error) {
	if len(folders) == 0 {
		return Criteria{}, fmt.Errorf("folder scope is required")
	}
	return Criteria{
		freeText:  freeText,
		pairs:     pairs,
		pairMode:  pairMode,
		bucket:    bucket,
		dateRange: dateRange,
		folders:   folders,
		recurse:   recurse,
	}, nil
}

// FreeText returns the free-text term ("" when absent).
func (c Criteria) FreeText() string { return c.freeText }

// Pairs returns the structured search pairs.
func (c Criteria) Pairs() []Pair { return c.pairs }

// PairMode returns how pairs combine.
func (c Criteria) PairMode() PairMode { return c.pairMode }

// Bucket returns the pagination bucket character ("" when absent).
func (c Criteria) Bucket() string { return c.bucket }

// DateRange returns the optional date window.
func (c Criteria) DateRange() DateRange { return c.dateRange }

// Folders returns the target folder scope.
func (c Criteria) Folders() []string { return c.folders }

// Recurse reports whether subfolders are included.
func (c Criteria) Recurse() bool { return c.recurse }

// IsEmpty reports whether no restriction at all was supplied.
func (c Criteria) IsEmpty() bool {
	return c.freeText == "" && len(c.pairs) == 0 && c.bucket == "" && c.dateRange.IsZero()
}
