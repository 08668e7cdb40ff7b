// Package item models stored groupware items.
package item

import (
	"fmt"
	"strings"
)

// Item is one groupware item: a folder-scoped id, a monotonic modification
// stamp, and flat string properties (the projection searched and listed).
type Item struct {
	id     string
	folder string
	stamp  int64
	props  map[string]string
}

// New validates and creates an item. The stamp is assigned by the store on
// write, so New leaves it zero.
func New(id, folder string, props map[string]string) (Item, error) {
	if err := ValidateID(id); err != nil {
		return Item{}, err
	}
	if err := ValidateFolder(folder); err != nil {
		return Item{}, err
	}
	if props == nil {
		props = make(map[string]string)
	}
	return Item{id: id, folder: folder, props: props}, nil
}

// Reconstruct rebuilds an item from persisted state.
func Reconstruct(id, folder string, stamp int64, props map[string]string) Item {
	if props == nil {
		props = make(map[string]string)
	}
	return Item{id: id, folder: folder, stamp: stamp, props: props}
}

// WithStamp returns a copy carrying the given modification stamp.
func (i Item) WithStamp(stamp int64) Item {
	i.stamp = stamp
	return i
}

// ID returns the item id.
func (i Item) ID() string { return i.id }

// Folder returns the containing folder id.
func (i Item) Folder() string { return i.folder }

// Stamp returns the modification stamp (0 before first write).
func (i Item) Stamp() int64 { return i.stamp }

// Props returns the item properties.
func (i Item) Props() map[string]string { return i.props }

// Prop returns one property and whether it is present.
func (i Item) Prop(name string) (string, bool) {
	v, ok := i.props[name]
	return v, ok
}

// ValidateID checks an item id. Ids must not collide with key separators.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("item id is required")
	}
	if strings.ContainsAny(id, ":/") {
		return fmt.Errorf("item id %q must not contain ':' or '/'", id)
	}
	return nil
}

// ValidateFolder checks a folder id. Folder ids are path-like
// ("inbox/archive"); segments are separated by '/' and must not be empty.
func ValidateFolder(folder string) error {
	if folder == "" {
		return fmt.Errorf("folder id is required")
	}
	if strings.Contains(folder, ":") {
		return fmt.Errorf("folder id %q must not contain ':'", folder)
	}
	for _, seg := range strings.Split(folder, "/") {
		if seg == "" {
			return fmt.Errorf("folder id %q has an empty path segment", folder)
		}
	}
	return nil
}

// FolderWithin reports whether folder sits inside scope: equal, or nested
// under it when recursion is requested.
func FolderWithin(folder, scope string, recursive bool) bool {
	if folder == scope {
		return true
	}
	return recursive && strings.HasPrefix(folder, scope+"/")
}
