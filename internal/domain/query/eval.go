package query

import "strings"

// FieldGetter resolves a field name to its value on a candidate row.
// The second return reports presence; absent fields fail Compare and
// Fuzzy leaves but satisfy nothing.
type FieldGetter func(field string) (string, bool)

// Eval evaluates the tree against a candidate row.
//
// Both the asynchronous index population and the synchronous fallback
// listing go through Eval, so the two paths return criteria-equivalent
// results by construction.
func Eval(n Node, get FieldGetter) bool {
	switch t := n.(type) {
	case *AndNode:
		for _, c := range t.children {
			if !Eval(c, get) {
				return false
			}
		}
		return true
	case *OrNode:
		for _, c := range t.children {
			if Eval(c, get) {
				return true
			}
		}
		return false
	case *NotNode:
		return !Eval(t.child, get)
	case *ExistsNode:
		_, ok := get(t.field)
		return ok
	case *CompareNode:
		v, ok := get(t.field)
		if !ok {
			return false
		}
		return compare(v, t.op, t.value)
	case *FuzzyNode:
		v, ok := get(t.field)
		if !ok {
			return false
		}
		return fuzzyMatch(v, t.value, t.flags)
	default:
		return false
	}
}

func compare(v string, op CompareOp, operand string) bool {
	c := strings.Compare(v, operand)
	switch op {
	case OpEQ:
		return c == 0
	case OpNE:
		return c != 0
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpGE:
		return c >= 0
	default:
		return false
	}
}

func fuzzyMatch(v, term string, flags MatchFlags) bool {
	if flags&MatchIgnoreCase != 0 {
		v = strings.ToLower(v)
		term = strings.ToLower(term)
	}
	switch {
	case flags&MatchSubstring != 0:
		return strings.Contains(v, term)
	case flags&MatchPrefix != 0:
		return strings.HasPrefix(v, term)
	default:
		return v == term
	}
}
