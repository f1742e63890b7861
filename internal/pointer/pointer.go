package pointer

import "fmt"

// ID is the stable identity of a pointer.
//
// Identities are allocated monotonically and never reused while the process
// lives, so a stale ID held by a producer is detectable (lookup fails)
// rather than silently aliasing a newer pointer.
type ID int64

// None is the zero ID. No live pointer ever carries it.
const None ID = 0

// DeviceKind tags the input source class a pointer originated from.
type DeviceKind uint8

const (
	// Mouse is a conventional single-cursor pointing device.
	Mouse DeviceKind = iota + 1
	// Touch is one finger contact on a touch digitizer.
	Touch
	// Pen is a stylus tip.
	Pen
)

// String returns the lowercase name of the device kind.
func (k DeviceKind) String() string {
	switch k {
	case Mouse:
		return "mouse"
	case Touch:
		return "touch"
	case Pen:
		return "pen"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseDeviceKind converts a kind name back to its DeviceKind.
// Used by scenario files and the event-log replay path.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch s {
	case "mouse":
		return Mouse, nil
	case "touch":
		return Touch, nil
	case "pen":
		return Pen, nil
	default:
		return 0, fmt.Errorf("unknown device kind %q", s)
	}
}

// Buttons is the button/pressure state bitmask of a pointer.
type Buttons uint32

const (
	// ButtonPrimary is the left mouse button, finger contact, or pen tip.
	ButtonPrimary Buttons = 1 << iota
	// ButtonSecondary is the right mouse button or barrel button.
	ButtonSecondary
	// ButtonTertiary is the middle mouse button.
	ButtonTertiary
	// ButtonFourth and ButtonFifth are extended mouse buttons.
	ButtonFourth
	ButtonFifth
	// PenEraser indicates the pen is inverted onto its eraser end.
	PenEraser
)

// Contains reports whether all bits of b2 are set in b.
func (b Buttons) Contains(b2 Buttons) bool {
	return b&b2 == b2
}

// Flags carries free-form producer-defined pointer flags.
// The aggregator stores but never interprets them.
type Flags uint32

// Point is a position in the shared coordinate space.
type Point struct {
	X float32
	Y float32
}

// Ownership records which layer accepted a press and any layer-specific
// context the hit test attached (projection data, local coordinates, ...).
//
// The zero Ownership (nil Layer) means "not owned". A pointer holds a valid
// ownership record if and only if it is currently pressed.
type Ownership struct {
	Layer   Layer
	Context any
}

// Valid reports whether the record designates an owning layer.
func (o Ownership) Valid() bool {
	return o.Layer != nil
}

// Template describes the initial state of a pointer being added.
// Producers pass a Template; the aggregator allocates the identity.
type Template struct {
	Kind    DeviceKind
	Pos     Point
	Buttons Buttons
	Flags   Flags
}

// Pointer is one logical input contact.
//
// Fields are written only by the aggregator, on the dispatch goroutine.
// Consumers read them during dispatch callbacks and must not mutate them
// or retain the record (see the package comment).
type Pointer struct {
	// ID is the stable identity. Never reused.
	ID ID

	// Kind tags the originating device class.
	Kind DeviceKind

	// Pos is the current position; PrevPos the position before the most
	// recent update. Both change at most once per cycle outside of add.
	Pos     Point
	PrevPos Point

	// Buttons is the current button/pressure bitmask.
	Buttons Buttons

	// Flags carries producer-defined flags, uninterpreted.
	Flags Flags

	// Press is the press-ownership record. Valid (non-nil Layer) exactly
	// while the pointer is pressed.
	Press Ownership
}

// Pressed reports whether the pointer currently holds press ownership.
func (p *Pointer) Pressed() bool {
	return p.Press.Valid()
}

// Init stamps a pooled record with a fresh identity and template state.
// PrevPos starts equal to Pos so the first update produces a sane delta.
func (p *Pointer) Init(id ID, t Template) {
	p.ID = id
	p.Kind = t.Kind
	p.Pos = t.Pos
	p.PrevPos = t.Pos
	p.Buttons = t.Buttons
	p.Flags = t.Flags
	p.Press = Ownership{}
}

// Reset clears all fields for pool reuse.
// A reset record carries the None identity until reissued via Init.
func (p *Pointer) Reset() {
	p.ID = None
	p.Kind = 0
	p.Pos = Point{}
	p.PrevPos = Point{}
	p.Buttons = 0
	p.Flags = 0
	p.Press = Ownership{}
}
