// Package pointer defines the data model shared by input producers, the
// aggregator, and spatial consumers.
//
// A Pointer represents one logical input contact: a mouse cursor, a finger
// on a digitizer, or a pen tip. Pointers carry a stable integer identity
// that is assigned once and never reused for the lifetime of the process,
// even after the pointer ends. Retired pointer *records* are pooled and
// reused under fresh identities; the numeric identity itself is not.
//
// LIFETIME CONTRACT:
//
// Pointer records handed to layers and subscribers during dispatch are
// owned by the aggregator. Consumers must not retain a *Pointer past the
// callback that delivered it: the record may be mutated on a future cycle
// or retired and reissued under a new identity. Copy the fields you need.
//
// The package also defines the consumer-side contracts: Layer, the
// per-category capability interfaces a layer may implement, and the
// press-ownership record linking a pressed pointer to the layer that
// claimed it.
package pointer
