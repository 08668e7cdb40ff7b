// Package restriction translates search criteria into boolean query trees.
//
// Build is pure and deterministic: identical criteria always produce a
// byte-identical tree (see query.Canonical), which the session layer relies
// on for criteria fingerprinting.
package restriction

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/groupmesh/incsearch/internal/domain"
	"github.com/groupmesh/incsearch/internal/domain/criteria"
	"github.com/groupmesh/incsearch/internal/domain/query"
	"github.com/groupmesh/incsearch/internal/domain/schema"
)

const fuzzyFlags = query.MatchSubstring | query.MatchIgnoreCase

// Build translates criteria into a query tree against the given schema.
//
// Exactly one of the free-text term, structured pairs, or pagination bucket
// is honored, in that priority order. An optional date range is AND-ed on
// top. Pairs referencing fields outside the schema are dropped silently.
func Build(c criteria.Criteria, s schema.Schema) (query.Node, error) {
	if c.IsEmpty() {
		return nil, fmt.Errorf("%w: empty restriction", domain.ErrCriteriaParse)
	}

	var parts []query.Node

	switch {
	case c.FreeText() != "":
		node, err := freeText(c.FreeText(), s)
		if err != nil {
			return nil, err
		}
		parts = append(parts, node)
	case len(c.Pairs()) > 0:
		parts = append(parts, pairs(c.Pairs(), c.PairMode(), s))
	case c.Bucket() != "":
		parts = append(parts, Bucket(s.BucketFields(), c.Bucket()))
	}

	if !c.DateRange().IsZero() && s.DateField() != "" {
		parts = append(parts, dateRange(c.DateRange(), s.DateField()))
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: restriction matched no schema fields", domain.ErrCriteriaParse)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return query.And(parts...), nil
}

// freeText splits the term into sub-terms; each sub-term must appear in at
// least one free-text field, and all sub-terms must appear somewhere.
func freeText(term string, s schema.Schema) (query.Node, error) {
	subTerms := splitTerms(term)
	if len(subTerms) == 0 {
		return nil, fmt.Errorf("%w: free-text term has no searchable content", domain.ErrCriteriaParse)
	}

	fields := s.FreeTextFields()
	conj := make([]query.Node, 0, len(subTerms))
	for _, sub := range subTerms {
		alts := make([]query.Node, 0, len(fields))
		for _, f := range fields {
			alts = append(alts, query.Fuzzy(f.Name(), sub, fuzzyFlags))
		}
		conj = append(conj, query.Or(alts...))
	}
	if len(conj) == 1 {
		return conj[0], nil
	}
	return query.And(conj...), nil
}

// pairs builds And(Exists, Fuzzy) per pair; the existence check guards
// optional multi-valued properties that may be entirely absent. Pairs with
// unknown fields are skipped; if none survive, the restriction is vacuous.
func pairs(ps []criteria.Pair, mode criteria.PairMode, s schema.Schema) query.Node {
	nodes := make([]query.Node, 0, len(ps))
	for _, p := range ps {
		f, ok := s.Resolve(p.Field())
		if !ok {
			continue
		}
		nodes = append(nodes, query.And(
			query.Exists(f.Name()),
			query.Fuzzy(f.Name(), p.Value(), fuzzyFlags),
		))
	}
	if len(nodes) == 0 {
		return query.And()
	}
	if mode == criteria.MatchAll {
		return query.And(nodes...)
	}
	return query.Or(nodes...)
}

func dateRange(r criteria.DateRange, field string) query.Node {
	var bounds []query.Node
	if !r.Start().IsZero() {
		bounds = append(bounds, query.Compare(field, query.OpGE, r.Start().UTC().Format(time.RFC3339)))
	}
	if !r.End().IsZero() {
		bounds = append(bounds, query.Compare(field, query.OpLT, r.End().UTC().Format(time.RFC3339)))
	}
	if len(bounds) == 1 {
		return bounds[0]
	}
	return query.And(bounds...)
}

// splitTerms breaks a free-text term on whitespace and list punctuation.
// Dots and @ stay intact so email addresses search as one term.
func splitTerms(term string) []string {
	return strings.FieldsFunc(term, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})
}
