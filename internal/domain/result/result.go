// Package result holds the row projection returned by search indexes.
package result

// Row is a minimal result projection: id, modification stamp, and the
// requested display properties. Rows are produced by the index, consumed by
// the differ, and never cached beyond one response cycle; only (id, stamp)
// survives in the session's transmitted set.
type Row struct {
	id    string
	stamp int64
	props map[string]string
}

// New creates a result row.
func New(id string, stamp int64, props map[string]string) Row {
	return Row{id: id, stamp: stamp, props: props}
}

// ID returns the item id.
func (r Row) ID() string { return r.id }

// Stamp returns the modification stamp.
func (r Row) Stamp() int64 { return r.stamp }

// Props returns the display properties.
func (r Row) Props() map[string]string { return r.props }

// Prop returns one display property and whether it is present.
func (r Row) Prop(name string) (string, bool) {
	v, ok := r.props[name]
	return v, ok
}
