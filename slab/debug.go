package slab

import (
	"fmt"
	"strings"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/quillback/stockpile/resutils"
	"golang.org/x/exp/slog"
)

var _ fmt.Stringer = &Pool{}

// String renders the pool state for debugging: a summary line, the freelist
// chain in link order, and a per-slot [U]sed / [F]ree map.
func (p *Pool) String() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var sb strings.Builder

	free := 0
	p.freelistVisitor(func(uintptr) { free++ })

	head := "null"
	if p.freeFirst != nullIndex {
		head = fmt.Sprintf("%d", p.freeFirst/p.stride)
	}
	fmt.Fprintf(&sb, "slab.Pool: capacity=%d, free=%d, head=%s\n", p.slotCount(), free, head)

	sb.WriteString("  free-list: ")
	p.freelistVisitor(func(ofs uintptr) {
		fmt.Fprintf(&sb, "%d -> ", ofs/p.stride)
	})
	sb.WriteString("null\n")

	sb.WriteString("  layout: ")
	for _, inUse := range p.usedMask() {
		if inUse {
			sb.WriteString("[U]")
		} else {
			sb.WriteString("[F]")
		}
	}
	sb.WriteString("\n")

	return sb.String()
}

// AddStatistics sums this pool's occupancy into the provided statistics.
func (p *Pool) AddStatistics(stats *resutils.SlabStatistics) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	free := 0
	p.freelistVisitor(func(uintptr) { free++ })

	stats.SlotCount += p.slotCount()
	stats.LiveCount += p.slotCount() - free
	stats.FreeCount += free
	stats.CapacityBytes += int(p.capacity)
}

// PrintDetailedMap streams the pool state into an in-progress JSON object.
func (p *Pool) PrintDetailedMap(json *jwriter.ObjectState) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	free := 0
	p.freelistVisitor(func(uintptr) { free++ })

	json.Name("Type").String(p.info.String())
	json.Name("Stride").Int(int(p.stride))
	json.Name("Alignment").Int(int(p.alignment))
	json.Name("CapacityBytes").Int(int(p.capacity))
	json.Name("Slots").Int(p.slotCount())
	json.Name("Free").Int(free)

	slots := json.Name("Layout").Array()
	for _, inUse := range p.usedMask() {
		if inUse {
			slots.String("U")
		} else {
			slots.String("F")
		}
	}
	slots.End()
}

// DebugLogAllSlots calls logFunc once for each live slot, passing its byte
// offset and the slot stride. Intended for diagnostics only.
func (p *Pool) DebugLogAllSlots(logger *slog.Logger, logFunc func(log *slog.Logger, offset int, size int)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	used := p.usedMask()
	for slot := 0; slot < len(used); slot++ {
		if used[slot] {
			logFunc(logger, slot*int(p.stride), int(p.stride))
		}
	}
}

// Validate performs internal consistency checks: freelist links must stay in
// bounds on slot boundaries, the chain must terminate without cycling, and
// live plus free slots must account for the whole slab.
func (p *Pool) Validate() error {
	free := 0
	cur := p.freeFirst
	for cur != nullIndex {
		if cur >= p.capacity {
			return errors.Errorf("freelist link %d is out of bounds (capacity %d)", cur, p.capacity)
		}
		if cur%p.stride != 0 {
			return errors.Errorf("freelist link %d is not on a slot boundary (stride %d)", cur, p.stride)
		}
		free++
		if free > p.slotCount() {
			return errors.New("freelist is cyclic")
		}
		cur = p.readLink(cur)
	}

	if p.freeFirst == nullIndex && p.freeLast != nullIndex {
		return errors.New("freelist head is null but tail is not")
	}
	if p.freeFirst != nullIndex && p.freeLast == nullIndex {
		return errors.New("freelist tail is null but head is not")
	}

	return nil
}
