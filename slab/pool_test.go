package slab_test

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/quillback/stockpile/handle"
	"github.com/quillback/stockpile/resutils"
	"github.com/quillback/stockpile/slab"
)

// moveTest is padded so a slot can always host a freelist link.
type moveTest struct {
	value int64
	pad   [8]byte
}

func newMoveTestPool(t *testing.T) *slab.Pool {
	t.Helper()

	pool, err := slab.NewPool(handle.TypeInfoOf[moveTest](), 16)
	require.NoError(t, err)
	return pool
}

func TestInitialCapacityIsZero(t *testing.T) {
	pool := newMoveTestPool(t)

	require.EqualValues(t, 0, pool.Capacity())
	require.Equal(t, 0, pool.SlotCount())
	require.Equal(t, 0, pool.CountFree())
}

func TestCreateSingleElement(t *testing.T) {
	pool := newMoveTestPool(t)

	h, err := slab.Create(pool, moveTest{value: 42})
	require.NoError(t, err)
	require.True(t, h.IsValid())

	require.EqualValues(t, 42, slab.Get(pool, h).value)

	// The first create grows the slab by exactly one slot
	require.Equal(t, 1, pool.SlotCount())
	require.EqualValues(t, pool.Stride(), pool.Capacity())
}

func TestFreelistReuse(t *testing.T) {
	pool := newMoveTestPool(t)

	h1, err := slab.Create(pool, moveTest{value: 1})
	require.NoError(t, err)
	_, err = slab.Create(pool, moveTest{value: 2})
	require.NoError(t, err)

	slab.Destroy(pool, h1)

	h3, err := slab.Create(pool, moveTest{value: 3})
	require.NoError(t, err)

	require.Equal(t, h1.Offset, h3.Offset)
	require.EqualValues(t, 3, slab.Get(pool, h3).value)
}

func TestCreateDestroyDoesNotGrow(t *testing.T) {
	pool := newMoveTestPool(t)

	h, err := slab.Create(pool, moveTest{value: 1})
	require.NoError(t, err)
	slots := pool.SlotCount()

	slab.Destroy(pool, h)
	h, err = slab.Create(pool, moveTest{value: 2})
	require.NoError(t, err)
	slab.Destroy(pool, h)

	require.Equal(t, slots, pool.SlotCount())
}

func TestGrowthPreservesValues(t *testing.T) {
	pool := newMoveTestPool(t)

	h0, err := slab.Create(pool, moveTest{value: 100})
	require.NoError(t, err)
	require.EqualValues(t, 16, pool.Capacity())

	handles := make([]handle.Handle[moveTest], 0, 100)
	for i := 0; i < 100; i++ {
		h, err := slab.Create(pool, moveTest{value: int64(i)})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	require.GreaterOrEqual(t, int(pool.Capacity()), 100*16)
	require.EqualValues(t, 100, slab.Get(pool, h0).value)
	for i, h := range handles {
		require.EqualValues(t, i, slab.Get(pool, h).value)
	}
}

func TestSlotAlignment(t *testing.T) {
	pool, err := slab.NewPool(handle.TypeInfoOf[moveTest](), 64)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		h, err := slab.Create(pool, moveTest{value: int64(i)})
		require.NoError(t, err)

		addr := uintptr(unsafe.Pointer(slab.Get(pool, h)))
		require.EqualValues(t, 0, addr%64)
	}
}

func TestLivePlusFreeEqualsSlotCount(t *testing.T) {
	pool := newMoveTestPool(t)

	var live []handle.Handle[moveTest]
	for i := 0; i < 37; i++ {
		h, err := slab.Create(pool, moveTest{value: int64(i)})
		require.NoError(t, err)
		live = append(live, h)
	}
	for i := 0; i < len(live); i += 3 {
		slab.Destroy(pool, live[i])
	}
	destroyed := (len(live) + 2) / 3

	require.Equal(t, pool.SlotCount(), pool.CountFree()+len(live)-destroyed)
	require.NoError(t, pool.Validate())
}

func TestCountFree(t *testing.T) {
	pool := newMoveTestPool(t)
	require.Equal(t, 0, pool.CountFree())

	h1, err := slab.Create(pool, moveTest{value: 1})
	require.NoError(t, err)
	h2, err := slab.Create(pool, moveTest{value: 2})
	require.NoError(t, err)

	free := pool.CountFree()
	slab.Destroy(pool, h1)
	require.Equal(t, free+1, pool.CountFree())
	slab.Destroy(pool, h2)
	require.Equal(t, free+2, pool.CountFree())
}

func TestUsedVisitorAscendingOrder(t *testing.T) {
	pool := newMoveTestPool(t)

	_, err := slab.Create(pool, moveTest{value: 1})
	require.NoError(t, err)
	h2, err := slab.Create(pool, moveTest{value: 2})
	require.NoError(t, err)
	_, err = slab.Create(pool, moveTest{value: 3})
	require.NoError(t, err)

	slab.Destroy(pool, h2)

	var seen []int64
	slab.UsedVisitor(pool, func(v *moveTest) {
		seen = append(seen, v.value)
	})
	require.Equal(t, []int64{1, 3}, seen)
}

func TestSlotTooSmall(t *testing.T) {
	type tiny struct {
		a int32
	}

	_, err := slab.NewPool(handle.TypeInfoOf[tiny](), 16)
	require.Error(t, err)
	require.True(t, errors.Is(err, resutils.SlotTooSmallError))
}

func TestPointerPayloadRejected(t *testing.T) {
	type pointy struct {
		ref *int64
	}

	_, err := slab.NewPool(handle.TypeInfoOf[pointy](), 16)
	require.Error(t, err)
	require.True(t, errors.Is(err, resutils.PointerPayloadError))
}

func TestBadAlignmentRejected(t *testing.T) {
	_, err := slab.NewPool(handle.TypeInfoOf[moveTest](), 48)
	require.Error(t, err)
	require.True(t, errors.Is(err, resutils.PowerOfTwoError))
}

func TestTypeMismatchPanics(t *testing.T) {
	pool := newMoveTestPool(t)

	require.Panics(t, func() {
		_, _ = slab.Create(pool, int64(7))
	})
}

func TestDestroyNullHandlePanics(t *testing.T) {
	pool := newMoveTestPool(t)

	require.Panics(t, func() {
		slab.Destroy(pool, handle.Nil[moveTest]())
	})
}

func TestStringDump(t *testing.T) {
	pool := newMoveTestPool(t)

	h1, err := slab.Create(pool, moveTest{value: 1})
	require.NoError(t, err)
	_, err = slab.Create(pool, moveTest{value: 2})
	require.NoError(t, err)
	slab.Destroy(pool, h1)

	dump := pool.String()
	require.Contains(t, dump, "free-list:")
	require.Contains(t, dump, "[U]")
	require.Contains(t, dump, "[F]")
	require.Equal(t, pool.SlotCount(), strings.Count(dump, "[U]")+strings.Count(dump, "[F]"))
}

func TestStatistics(t *testing.T) {
	pool := newMoveTestPool(t)

	for i := 0; i < 5; i++ {
		_, err := slab.Create(pool, moveTest{value: int64(i)})
		require.NoError(t, err)
	}

	var stats resutils.SlabStatistics
	stats.Clear()
	pool.AddStatistics(&stats)

	require.Equal(t, pool.SlotCount(), stats.SlotCount)
	require.Equal(t, 5, stats.LiveCount)
	require.Equal(t, stats.SlotCount-5, stats.FreeCount)
	require.Equal(t, int(pool.Capacity()), stats.CapacityBytes)
}

func TestConcurrentCreateDestroy(t *testing.T) {
	pool := newMoveTestPool(t)

	const workers = 8
	const iterations = 1000

	var constructions atomic.Int64
	var destructions atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()

			handles := make([]handle.Handle[moveTest], 0, iterations)
			for i := 0; i < iterations; i++ {
				h, err := slab.Create(pool, moveTest{value: int64(w*iterations + i)})
				if err != nil {
					continue
				}
				constructions.Add(1)
				handles = append(handles, h)
			}
			for _, h := range handles {
				slab.Destroy(pool, h)
				destructions.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, constructions.Load(), destructions.Load())
	require.GreaterOrEqual(t, constructions.Load(), int64(workers*iterations))
	require.Equal(t, pool.SlotCount(), pool.CountFree())
	require.NoError(t, pool.Validate())
}
