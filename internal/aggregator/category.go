package aggregator

import "fmt"

// Category identifies one of the six lifecycle transition categories.
//
// Within a cycle, categories always replay in this declaration order
// regardless of submission order: a press submitted after an update for
// the same pointer is still dispatched before it.
type Category uint8

const (
	CategoryAdded Category = iota + 1
	CategoryUpdated
	CategoryPressed
	CategoryReleased
	CategoryRemoved
	CategoryCancelled
)

// String returns the lowercase category name used in diagnostics,
// event logs, and traces.
func (c Category) String() string {
	switch c {
	case CategoryAdded:
		return "added"
	case CategoryUpdated:
		return "updated"
	case CategoryPressed:
		return "pressed"
	case CategoryReleased:
		return "released"
	case CategoryRemoved:
		return "removed"
	case CategoryCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ParseCategory converts a category name back to its Category.
// Used by the event-log replay path.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "added":
		return CategoryAdded, nil
	case "updated":
		return CategoryUpdated, nil
	case "pressed":
		return CategoryPressed, nil
	case "released":
		return CategoryReleased, nil
	case "removed":
		return CategoryRemoved, nil
	case "cancelled":
		return CategoryCancelled, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}
