// Package delta computes incremental result batches.
package delta

import (
	"maps"

	"github.com/groupmesh/incsearch/internal/domain/result"
)

// Diff walks rows in arrival order and returns the ones the client does not
// have yet: rows absent from transmitted, or carrying a strictly newer
// stamp. Accumulation stops at pageSize; remaining qualifying rows surface
// on the next call. The returned map records the stamp of every row sent
// (the input map is not mutated).
//
// Rows that left the backend set are not detected here; deletion
// notification is the surrounding system's concern.
func Diff(
	rows []result.Row, transmitted map[string]int64, pageSize int,
) (toSend []result.Row, updated map[string]int64) {
	updated = maps.Clone(transmitted)
	if updated == nil {
		updated = make(map[string]int64)
	}

	for _, row := range rows {
		if pageSize > 0 && len(toSend) >= pageSize {
			break
		}
		prev, seen := updated[row.ID()]
		if seen && row.Stamp() <= prev {
			continue
		}
		toSend = append(toSend, row)
		updated[row.ID()] = row.Stamp()
	}
	return toSend, updated
}
