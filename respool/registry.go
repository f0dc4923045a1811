package respool

import (
	"reflect"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/quillback/stockpile/guid"
	"github.com/quillback/stockpile/handle"
	"github.com/quillback/stockpile/resutils"
)

// statsSource is the type-erased face of a Pool[T] used by registry-wide
// diagnostics.
type statsSource interface {
	AddStatistics(stats *resutils.SlabStatistics)
	PrintDetailedMap(json *jwriter.ObjectState)
}

// Registry routes resource operations to the per-type pool that owns them.
// Pools are created on demand by Add and AddWithGuid; every other operation on
// a type that was never added fails with resutils.TypeNotRegisteredError.
//
// The registry itself takes no lock: pools are expected to be populated during
// initialization. Once a pool exists, all operations on it are serialized by
// that pool's own mutex, and pools of different types proceed independently.
type Registry struct {
	pools *swiss.Map[reflect.Type, any]

	// Alignment used for pools created on demand.
	alignment uintptr
}

// NewRegistry creates a registry whose on-demand pools use the given slot
// alignment.
func NewRegistry(alignment uintptr) *Registry {
	return &Registry{
		pools:     swiss.NewMap[reflect.Type, any](8),
		alignment: alignment,
	}
}

// PoolCount returns the number of per-type pools created so far.
func (r *Registry) PoolCount() int {
	return r.pools.Count()
}

// AddStatistics sums the occupancy of every registered pool into stats.
func (r *Registry) AddStatistics(stats *resutils.SlabStatistics) {
	r.pools.Iter(func(_ reflect.Type, v any) bool {
		v.(statsSource).AddStatistics(stats)
		return false
	})
}

// BuildStatsString renders a JSON document describing every registered pool.
func (r *Registry) BuildStatsString() string {
	writer := jwriter.NewWriter()
	obj := writer.Object()
	r.pools.Iter(func(typ reflect.Type, v any) bool {
		poolObj := obj.Name(typ.String()).Object()
		v.(statsSource).PrintDetailedMap(&poolObj)
		poolObj.End()
		return false
	})
	obj.End()

	return string(writer.Bytes())
}

// PoolFor returns the pool registered for T, failing with
// resutils.TypeNotRegisteredError when none exists.
func PoolFor[T any](r *Registry) (*Pool[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	v, ok := r.pools.Get(typ)
	if !ok {
		return nil, cerrors.Wrapf(resutils.TypeNotRegisteredError, "type %s", typ)
	}
	return v.(*Pool[T]), nil
}

func getOrCreatePool[T any](r *Registry) (*Pool[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if v, ok := r.pools.Get(typ); ok {
		return v.(*Pool[T]), nil
	}

	pool, err := NewPool[T](r.alignment)
	if err != nil {
		return nil, err
	}
	r.pools.Put(typ, pool)
	return pool, nil
}

// Add allocates a new resource of type T without a GUID binding, creating the
// pool for T if this is the first use of the type.
func Add[T any](r *Registry, value T) (handle.Handle[T], error) {
	pool, err := getOrCreatePool[T](r)
	if err != nil {
		return handle.Nil[T](), err
	}
	return pool.Add(value)
}

// AddWithGuid allocates a new resource of type T bound to g, creating the pool
// for T if this is the first use of the type.
func AddWithGuid[T any](r *Registry, g guid.Guid, value T) (handle.Handle[T], error) {
	pool, err := getOrCreatePool[T](r)
	if err != nil {
		return handle.Nil[T](), err
	}
	return pool.AddWithGuid(g, value)
}

// Get resolves h through the pool for T.
func Get[T any](r *Registry, h handle.Handle[T]) (*T, error) {
	pool, err := PoolFor[T](r)
	if err != nil {
		return nil, err
	}
	return pool.Get(h)
}

// Remove destroys the resource referenced by h.
func Remove[T any](r *Registry, h handle.Handle[T]) error {
	pool, err := PoolFor[T](r)
	if err != nil {
		return err
	}
	pool.Remove(h)
	return nil
}

// Retain increments the resource's reference count.
func Retain[T any](r *Registry, h handle.Handle[T]) error {
	pool, err := PoolFor[T](r)
	if err != nil {
		return err
	}
	pool.Retain(h)
	return nil
}

// Release decrements the resource's reference count, destroying it at zero.
func Release[T any](r *Registry, h handle.Handle[T]) error {
	pool, err := PoolFor[T](r)
	if err != nil {
		return err
	}
	pool.Release(h)
	return nil
}

// UseCount returns the resource's reference count.
func UseCount[T any](r *Registry, h handle.Handle[T]) (uint32, error) {
	pool, err := PoolFor[T](r)
	if err != nil {
		return 0, err
	}
	return pool.UseCount(h), nil
}

// Valid reports whether h passes the generation check.
func Valid[T any](r *Registry, h handle.Handle[T]) (bool, error) {
	pool, err := PoolFor[T](r)
	if err != nil {
		return false, err
	}
	return pool.Valid(h), nil
}

// GuidOf returns the GUID bound to h, or the invalid sentinel if none.
func GuidOf[T any](r *Registry, h handle.Handle[T]) (guid.Guid, error) {
	pool, err := PoolFor[T](r)
	if err != nil {
		return guid.Invalid(), err
	}
	return pool.GuidOf(h), nil
}

// FindByGuid returns the handle bound to g, or the null handle if none.
func FindByGuid[T any](r *Registry, g guid.Guid) (handle.Handle[T], error) {
	pool, err := PoolFor[T](r)
	if err != nil {
		return handle.Nil[T](), err
	}
	return pool.FindByGuid(g), nil
}

// ForAll visits every live resource of type T.
func ForAll[T any](r *Registry, f func(value *T)) error {
	pool, err := PoolFor[T](r)
	if err != nil {
		return err
	}
	pool.ForEach(f)
	return nil
}
