package resutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being
// tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// AllocationFailureError is the error returned when a slab cannot obtain backing memory, for
// instance because the requested capacity overflows the addressable range
var AllocationFailureError error = errors.New("slab allocation failed")

// SlotTooSmallError is the error returned when a slab is constructed for an element type that
// is too small to host an embedded freelist link
var SlotTooSmallError error = errors.New("element size is smaller than a freelist link")

// PointerPayloadError is the error returned when a slab is constructed for an element type
// that contains Go pointers. Slab memory is raw bytes that the garbage collector does not
// scan, so stored values must reference other resources through handles rather than pointers.
var PointerPayloadError error = errors.New("payload type must not contain pointers")

// InvalidHandleError is the error returned when a versioned handle fails validation against
// the slot's current generation
var InvalidHandleError error = errors.New("invalid handle (version mismatch)")

// DuplicateGuidError is the error returned when a resource is added with a GUID that is
// already bound within the same pool
var DuplicateGuidError error = errors.New("resource with this GUID already exists")

// InvalidGuidError is the error returned when a resource is added through a GUID-binding
// operation but the provided GUID is the invalid sentinel
var InvalidGuidError error = errors.New("cannot bind resource to the invalid GUID")

// TypeNotRegisteredError is the error returned from registry operations on a type for which
// no pool has been created yet
var TypeNotRegisteredError error = errors.New("resource type not registered")
