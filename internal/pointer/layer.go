package pointer

// Layer is an ordered spatial consumer of dispatched pointers.
//
// The aggregator does not own layers and never decides containment itself;
// it only iterates an externally-managed, ordered layer view and delivers
// the capability callbacks a layer chooses to implement.
//
// Capabilities are expressed as optional interfaces: a layer implements
// exactly the Receive* interfaces for the lifecycle categories it wants.
// Dispatch type-asserts per category and skips layers without the
// capability.
type Layer interface {
	// Name identifies the layer in diagnostics and event logs.
	Name() string
}

// AddReceiver receives every newly added pointer (broadcast).
type AddReceiver interface {
	ReceiveAdd(*Pointer)
}

// UpdateReceiver receives position/state updates. An owned (pressed)
// pointer's updates are delivered only to the owning layer; unowned
// updates are broadcast.
type UpdateReceiver interface {
	ReceiveUpdate(*Pointer)
}

// PressReceiver receives a press on the layer that claimed it via hit
// testing. At most one layer receives any given press.
type PressReceiver interface {
	ReceivePress(*Pointer)
}

// ReleaseReceiver receives the release of a pointer the layer owns.
// The ownership record is still valid during the callback.
type ReleaseReceiver interface {
	ReceiveRelease(*Pointer)
}

// RemoveReceiver receives the graceful end of a contact (broadcast).
type RemoveReceiver interface {
	ReceiveRemove(*Pointer)
}

// CancelReceiver receives the abnormal end of a contact (broadcast):
// source lost, window lost focus. Unlike a remove, the consumer cannot
// assume the pointer went through a normal release.
type CancelReceiver interface {
	ReceiveCancel(*Pointer)
}

// ResolutionReceiver is notified when the shared coordinate space changes
// (display resolution or window geometry). Delivered outside the cycle
// ordering protocol.
type ResolutionReceiver interface {
	ResolutionChanged()
}
