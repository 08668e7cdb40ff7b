package restriction

import (
	"github.com/groupmesh/incsearch/internal/domain/query"
	"github.com/groupmesh/incsearch/internal/domain/schema"
)

// Bucket builds the jump-bar restriction for one bucket character, OR-ing
// the same predicate over every target field.
//
// Bucket shapes, in priority order:
//
//	"..." or ""  no restriction
//	"123"        [0, 9] inclusive
//	"z"          >= z, one-sided: catches z and anything lexically beyond
//	otherwise    half-open [c, c+1) by single code-point increment
//
// The one-sided z bucket and the non-collating increment are load-bearing
// compatibility behavior, not shortcuts.
func Bucket(fields []schema.Field, ch string) query.Node {
	switch ch {
	case "", "...":
		return query.And()
	case "123":
		return perField(fields, func(f string) query.Node {
			return query.And(
				query.Compare(f, query.OpGE, "0"),
				query.Compare(f, query.OpLE, "9"),
			)
		})
	case "z":
		return perField(fields, func(f string) query.Node {
			return query.Compare(f, query.OpGE, "z")
		})
	default:
		lo := []rune(ch)[0]
		hi := lo + 1
		return perField(fields, func(f string) query.Node {
			return query.And(
				query.Compare(f, query.OpGE, string(lo)),
				query.Compare(f, query.OpLT, string(hi)),
			)
		})
	}
}

func perField(fields []schema.Field, pred func(field string) query.Node) query.Node {
	alts := make([]query.Node, 0, len(fields))
	for _, f := range fields {
		alts = append(alts, pred(f.Name()))
	}
	if len(alts) == 1 {
		return alts[0]
	}
	return query.Or(alts...)
}
