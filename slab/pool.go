// Package slab implements a type-erased slab of fixed-size, aligned slots with
// an embedded singly-linked freelist.
//
// A slot is always in exactly one of two states: live, holding a stored value,
// or free, holding the byte offset of the next free slot. The slab grows by
// powers of two and never shrinks. Growth preserves slot offsets but not raw
// pointers previously obtained from Get.
package slab

import (
	"fmt"
	"sync"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/quillback/stockpile/handle"
	"github.com/quillback/stockpile/resutils"
)

// nullIndex terminates the embedded freelist.
const nullIndex = ^uintptr(0)

// MinAlignment is the smallest slot alignment a pool will use. Requested
// alignments are rounded up to it.
const MinAlignment uintptr = 8

// linkSize is the size of an embedded freelist link. Element types must be at
// least this large so a free slot can host a link.
const linkSize = unsafe.Sizeof(uintptr(0))

// Pool is a slab of equally sized, equally aligned slots for a single runtime
// type, with O(1) allocate and free.
//
// All public operations serialize on an internal mutex. The mutex is not
// reentrant: callbacks passed to UsedVisitor run with the lock held and must
// not call back into the same pool.
type Pool struct {
	mutex sync.Mutex

	info      handle.TypeInfo
	alignment uintptr
	stride    uintptr

	buf       []byte
	base      unsafe.Pointer
	capacity  uintptr
	freeFirst uintptr
	freeLast  uintptr
}

// NewPool creates an empty pool for the element type described by info.
// No memory is allocated until the first Create.
//
// The alignment applies to every slot, not just the slab base; it is rounded
// up to MinAlignment and must be a power of two. The element type must be at
// least as large as a freelist link and must not contain Go pointers, since
// slab memory is opaque to the garbage collector.
func NewPool(info handle.TypeInfo, alignment uintptr) (*Pool, error) {
	if info.Size < linkSize {
		return nil, cerrors.Wrapf(resutils.SlotTooSmallError, "%s is %d bytes, need at least %d", info, info.Size, linkSize)
	}
	if info.HasPointers() {
		return nil, cerrors.Wrapf(resutils.PointerPayloadError, "%s contains pointers", info)
	}
	if alignment < MinAlignment {
		alignment = MinAlignment
	}
	err := resutils.CheckPow2(alignment, "alignment")
	if err != nil {
		return nil, err
	}

	return &Pool{
		info:      info,
		alignment: alignment,
		stride:    resutils.AlignUp(info.Size, alignment),
		freeFirst: nullIndex,
		freeLast:  nullIndex,
	}, nil
}

// TypeInfo returns the element type this pool was created for.
func (p *Pool) TypeInfo() handle.TypeInfo { return p.info }

// Alignment returns the slot alignment in bytes.
func (p *Pool) Alignment() uintptr { return p.alignment }

// Stride returns the slot size in bytes (element size rounded up to the
// alignment). Handle offsets are always multiples of the stride.
func (p *Pool) Stride() uintptr { return p.stride }

// Capacity returns the current slab size in bytes.
func (p *Pool) Capacity() uintptr {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.capacity
}

// SlotCount returns the current number of slots, live and free.
func (p *Pool) SlotCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.slotCount()
}

// CountFree walks the freelist and returns the number of free slots.
func (p *Pool) CountFree() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	count := 0
	p.freelistVisitor(func(uintptr) {
		count++
	})
	return count
}

// Create allocates a slot from the pool, growing the slab if the freelist is
// empty, and copies value into it. The returned handle's version is zero;
// stamping a generation is the resource pool's job.
//
// Create panics if T is not the pool's element type.
func Create[T any](p *Pool, value T) (handle.Handle[T], error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.checkType(handle.TypeInfoOf[T]())

	if p.freeFirst == nullIndex {
		err := p.grow()
		if err != nil {
			return handle.Nil[T](), err
		}
	}

	// Unlink the head of the freelist
	ofs := p.freeFirst
	if p.freeFirst == p.freeLast {
		p.freeFirst = nullIndex
		p.freeLast = nullIndex
	} else {
		p.freeFirst = p.readLink(ofs)
	}

	*(*T)(p.ptrAt(ofs)) = value

	resutils.DebugValidate(p)
	return handle.Handle[T]{Offset: uint64(ofs)}, nil
}

// Destroy releases the slot referenced by h and links it at the head of the
// freelist. The slot's memory is zeroed first.
//
// Destroy panics on a null handle or if T is not the pool's element type.
func Destroy[T any](p *Pool, h handle.Handle[T]) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.checkType(handle.TypeInfoOf[T]())
	if h.IsNil() {
		panic("slab: Destroy called with a null handle")
	}
	ofs := uintptr(h.Offset)
	p.checkOffset(ofs)

	p.clearSlot(ofs)

	// Link the slot at the head of the freelist
	if p.freeFirst == nullIndex {
		p.writeLink(ofs, nullIndex)
		p.freeFirst = ofs
		p.freeLast = ofs
	} else {
		p.writeLink(ofs, p.freeFirst)
		p.freeFirst = ofs
	}

	resutils.DebugValidate(p)
}

// Get returns a pointer to the value referenced by h. It performs no
// generation validation; stale handles are the resource pool's concern.
//
// The returned pointer is invalidated by any subsequent growth of the pool;
// callers must not cache it across calls that may allocate.
func Get[T any](p *Pool, h handle.Handle[T]) *T {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.checkType(handle.TypeInfoOf[T]())
	if h.IsNil() {
		panic("slab: Get called with a null handle")
	}
	ofs := uintptr(h.Offset)
	p.checkOffset(ofs)

	return (*T)(p.ptrAt(ofs))
}

// UsedVisitor invokes f on every live slot in ascending index order. The pool
// lock is held for the entire traversal; f must not call back into the pool.
func UsedVisitor[T any](p *Pool, f func(value *T)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.checkType(handle.TypeInfoOf[T]())

	used := p.usedMask()
	for slot := 0; slot < len(used); slot++ {
		if used[slot] {
			f((*T)(p.ptrAt(uintptr(slot) * p.stride)))
		}
	}
}

func (p *Pool) slotCount() int {
	if p.stride == 0 {
		return 0
	}
	return int(p.capacity / p.stride)
}

func (p *Pool) checkType(info handle.TypeInfo) {
	if info != p.info {
		panic(fmt.Sprintf("slab: pool holds %s but was accessed as %s", p.info, info))
	}
}

func (p *Pool) checkOffset(ofs uintptr) {
	if ofs >= p.capacity || ofs%p.stride != 0 {
		panic(fmt.Sprintf("slab: offset %d is not a slot of a %d-byte slab with stride %d", ofs, p.capacity, p.stride))
	}
}

func (p *Pool) ptrAt(ofs uintptr) unsafe.Pointer {
	return unsafe.Add(p.base, ofs)
}

func (p *Pool) readLink(ofs uintptr) uintptr {
	return *(*uintptr)(p.ptrAt(ofs))
}

func (p *Pool) writeLink(ofs uintptr, next uintptr) {
	*(*uintptr)(p.ptrAt(ofs)) = next
}

func (p *Pool) clearSlot(ofs uintptr) {
	slot := unsafe.Slice((*byte)(p.ptrAt(ofs)), p.stride)
	for i := range slot {
		slot[i] = 0
	}
}

// freelistVisitor traverses the free slots in link order.
func (p *Pool) freelistVisitor(f func(ofs uintptr)) {
	cur := p.freeFirst
	for cur != nullIndex {
		f(cur)
		cur = p.readLink(cur)
	}
}

// usedMask returns a per-slot liveness mask, built by marking every slot on
// the freelist as free.
func (p *Pool) usedMask() []bool {
	used := make([]bool, p.slotCount())
	for i := range used {
		used[i] = true
	}
	p.freelistVisitor(func(ofs uintptr) {
		used[ofs/p.stride] = false
	})
	return used
}

// grow resizes the slab so the slot count becomes the next power of two
// strictly greater than the current one (one slot when empty), then links the
// new tail slots into the freelist in order.
func (p *Pool) grow() error {
	prevCapacity := p.capacity
	newCount := resutils.NextPow2(uintptr(p.slotCount()) + 1)
	if newCount > (^uintptr(0)-p.alignment)/p.stride {
		return cerrors.Wrapf(resutils.AllocationFailureError, "slot count %d overflows the slab", newCount)
	}

	err := p.resize(newCount * p.stride)
	if err != nil {
		return err
	}
	p.expandFreelist(prevCapacity, p.capacity)

	return nil
}

// resize moves the slab to a new aligned buffer of the given byte capacity.
// Live slots are copied to the same offset in the new buffer; free slots have
// their links copied verbatim. The freelist itself is not extended here.
//
// Shrinking is not supported: reducing capacity would invalidate live slots
// and corrupt the freelist.
func (p *Pool) resize(capacity uintptr) error {
	if capacity < p.capacity {
		panic("slab: shrinking the pool is not supported")
	}
	if capacity == p.capacity {
		return nil
	}

	prevBase := p.base

	buf := make([]byte, capacity+p.alignment)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	base := unsafe.Add(unsafe.Pointer(&buf[0]), resutils.AlignUp(addr, p.alignment)-addr)

	if prevBase != nil {
		used := p.usedMask()
		for slot := 0; slot < len(used); slot++ {
			ofs := uintptr(slot) * p.stride
			src := unsafe.Slice((*byte)(unsafe.Add(prevBase, ofs)), p.stride)
			dst := unsafe.Slice((*byte)(unsafe.Add(base, ofs)), p.stride)
			if used[slot] {
				copy(dst, src)
			} else {
				*(*uintptr)(unsafe.Pointer(&dst[0])) = *(*uintptr)(unsafe.Pointer(&src[0]))
			}
		}
	}

	p.buf = buf
	p.base = base
	p.capacity = capacity
	return nil
}

// expandFreelist links the slots in [oldCapacity, newCapacity) at the back of
// the freelist, in ascending order.
func (p *Pool) expandFreelist(oldCapacity, newCapacity uintptr) {
	if newCapacity == oldCapacity {
		return
	}

	// No free slots survived the old allocation
	if p.freeFirst == nullIndex {
		p.freeFirst = oldCapacity
	}

	for ofs := oldCapacity; ofs < newCapacity; ofs += p.stride {
		if p.freeLast != nullIndex {
			p.writeLink(p.freeLast, ofs)
		}
		p.freeLast = ofs
	}
	p.writeLink(p.freeLast, nullIndex)
}
