// Package respool layers resource semantics over the raw slab: generation-
// versioned handles, reference counts, optional GUID identity and iteration,
// plus a registry that routes operations to the right per-type pool.
package respool

import (
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/quillback/stockpile/guid"
	"github.com/quillback/stockpile/handle"
	"github.com/quillback/stockpile/resutils"
	"github.com/quillback/stockpile/slab"
)

// Pool owns the slab for a single resource type and all per-slot metadata:
// generations, reference counts and GUID bindings.
//
// Every operation holds the pool's mutex for its entire duration. Handles are
// plain values and confer no ownership; reference counts do. A handle
// outliving its resource is expected and is caught by the generation check.
type Pool[T any] struct {
	mutex sync.Mutex

	slab      *slab.Pool
	versions  versionMap
	refCounts []uint32

	byGuid   *swiss.Map[guid.Guid, handle.Handle[T]]
	byHandle *swiss.Map[handle.Handle[T], guid.Guid]
}

// NewPool creates an empty resource pool for T with the given slot alignment.
func NewPool[T any](alignment uintptr) (*Pool[T], error) {
	slabPool, err := slab.NewPool(handle.TypeInfoOf[T](), alignment)
	if err != nil {
		return nil, err
	}

	return &Pool[T]{
		slab:     slabPool,
		byGuid:   swiss.NewMap[guid.Guid, handle.Handle[T]](8),
		byHandle: swiss.NewMap[handle.Handle[T], guid.Guid](8),
	}, nil
}

// Add allocates a new resource without a GUID binding. The resource starts
// with a reference count of one.
func (p *Pool[T]) Add(value T) (handle.Handle[T], error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.addLocked(guid.Invalid(), value)
}

// AddWithGuid allocates a new resource bound to g. It fails with
// resutils.InvalidGuidError when g is the invalid sentinel and with
// resutils.DuplicateGuidError when g is already bound in this pool; the pool
// is unchanged on failure.
func (p *Pool[T]) AddWithGuid(g guid.Guid, value T) (handle.Handle[T], error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !g.IsValid() {
		return handle.Nil[T](), cerrors.Wrapf(resutils.InvalidGuidError, "adding %s", p.slab.TypeInfo())
	}
	if p.byGuid.Has(g) {
		return handle.Nil[T](), cerrors.Wrapf(resutils.DuplicateGuidError, "guid %s", g)
	}

	return p.addLocked(g, value)
}

func (p *Pool[T]) addLocked(g guid.Guid, value T) (handle.Handle[T], error) {
	h, err := slab.Create(p.slab, value)
	if err != nil {
		return handle.Nil[T](), err
	}

	slot := p.slotOf(h)
	p.ensureMetadata(slot)
	h.Version = p.versions.versionify(slot)
	p.refCounts[slot] = 1

	if g.IsValid() {
		p.byGuid.Put(g, h)
		p.byHandle.Put(h, g)
	}

	return h, nil
}

// Get resolves h to the stored resource. It fails with
// resutils.InvalidHandleError when the handle's generation does not match the
// slot's. The returned pointer must not be cached across calls that may grow
// the pool.
func (p *Pool[T]) Get(h handle.Handle[T]) (*T, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.validLocked(h) {
		return nil, cerrors.Wrapf(resutils.InvalidHandleError, "%s offset %d version %d", p.slab.TypeInfo(), h.Offset, h.Version)
	}
	return slab.Get(p.slab, h), nil
}

// Remove destroys the resource referenced by h, bumps the slot's generation
// (invalidating all outstanding copies of the handle), zeroes its reference
// count and unbinds its GUID. Removing an invalid handle is a no-op.
func (p *Pool[T]) Remove(h handle.Handle[T]) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.removeLocked(h)
}

// removeLocked is the lock-aware removal path shared by Remove and Release.
func (p *Pool[T]) removeLocked(h handle.Handle[T]) {
	if !p.validLocked(h) {
		return
	}

	slot := p.slotOf(h)
	slab.Destroy(p.slab, h)
	p.versions.remove(slot)
	p.refCounts[slot] = 0

	if g, ok := p.byHandle.Get(h); ok {
		p.byGuid.Delete(g)
		p.byHandle.Delete(h)
	}
}

// Retain increments the reference count. No-op on an invalid handle.
func (p *Pool[T]) Retain(h handle.Handle[T]) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.validLocked(h) {
		return
	}
	p.refCounts[p.slotOf(h)]++
}

// Release decrements the reference count and destroys the resource when the
// count reaches zero. No-op on an invalid handle.
func (p *Pool[T]) Release(h handle.Handle[T]) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.validLocked(h) {
		return
	}

	slot := p.slotOf(h)
	p.refCounts[slot]--
	if p.refCounts[slot] == 0 {
		p.removeLocked(h)
	}
}

// UseCount returns the current reference count, or zero for an invalid handle.
func (p *Pool[T]) UseCount(h handle.Handle[T]) uint32 {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.validLocked(h) {
		return 0
	}
	return p.refCounts[p.slotOf(h)]
}

// Valid reports whether h passes the generation check.
func (p *Pool[T]) Valid(h handle.Handle[T]) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.validLocked(h)
}

// GuidOf returns the GUID bound to h, or the invalid sentinel if none.
func (p *Pool[T]) GuidOf(h handle.Handle[T]) guid.Guid {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if g, ok := p.byHandle.Get(h); ok {
		return g
	}
	return guid.Invalid()
}

// FindByGuid returns the handle bound to g, or the null handle if none.
func (p *Pool[T]) FindByGuid(g guid.Guid) handle.Handle[T] {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if h, ok := p.byGuid.Get(g); ok {
		return h
	}
	return handle.Nil[T]()
}

// ForEach visits every live resource in ascending slot order. The pool lock is
// held for the whole traversal; f must not call back into this pool.
func (p *Pool[T]) ForEach(f func(value *T)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	slab.UsedVisitor(p.slab, f)
}

// Count returns the number of live resources.
func (p *Pool[T]) Count() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.slab.SlotCount() - p.slab.CountFree()
}

// AddStatistics sums the underlying slab's occupancy into stats.
func (p *Pool[T]) AddStatistics(stats *resutils.SlabStatistics) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.slab.AddStatistics(stats)
}

// PrintDetailedMap streams the underlying slab state into an in-progress JSON
// object.
func (p *Pool[T]) PrintDetailedMap(json *jwriter.ObjectState) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.slab.PrintDetailedMap(json)
}

func (p *Pool[T]) validLocked(h handle.Handle[T]) bool {
	if h.IsNil() {
		return false
	}
	return p.versions.validate(p.slotOf(h), h.Version)
}

func (p *Pool[T]) slotOf(h handle.Handle[T]) int {
	return int(uintptr(h.Offset) / p.slab.Stride())
}

func (p *Pool[T]) ensureMetadata(slot int) {
	p.versions.ensure(slot)
	for slot >= len(p.refCounts) {
		p.refCounts = append(p.refCounts, 0)
	}
}
