package metadata

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gomlx/devmem/device"
	"github.com/gomlx/devmem/internal/sets"
	"github.com/gomlx/devmem/metrics"
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Registry is the directory of the copies (entries) of one object.
//
// Entries are kept per allocation type, in insertion order. The fresh set holds the IDs of the entries with the
// latest version of the data. It starts with a reference count of 1.
//
// A Registry is safe for concurrent use, but the protocol built on top of it (see package matrix) serializes
// the sequence of operations on one object.
type Registry struct {
	objectID uuid.UUID

	mu        sync.Mutex
	refCount  int
	destroyed bool
	entries   [device.NumAllocationTypes][]*Entry
	fresh     sets.Set[ID]
}

// objectsAlive counts registries not yet destroyed.
var objectsAlive atomic.Int64

// ObjectsAlive returns the number of registries created and not yet destroyed.
func ObjectsAlive() int64 {
	return objectsAlive.Load()
}

// NewRegistry returns an empty registry with reference count 1.
func NewRegistry() *Registry {
	r := &Registry{
		objectID: uuid.New(),
		refCount: 1,
		fresh:    sets.Make[ID](),
	}
	objectsAlive.Add(1)
	metrics.ObjectsAlive.Inc()
	return r
}

// ObjectID is a unique identifier of the object, used in logs and snapshots.
func (r *Registry) ObjectID() uuid.UUID { return r.objectID }

// String implements fmt.Stringer.
func (r *Registry) String() string {
	return fmt.Sprintf("Registry(%s)", r.objectID)
}

func (r *Registry) assertAlive() {
	if r.destroyed {
		exceptions.Panicf("%s used after it was destroyed", r)
	}
}

// Register returns the entry for the memory space desc and region rng (nil for the whole object), creating it if
// it doesn't exist yet. A new entry gets the next ID and copies (clones) of desc and rng.
//
// It neither allocates nor marks the entry fresh.
func (r *Registry) Register(desc device.Descriptor, rng *device.Range) *Entry {
	if desc == nil {
		exceptions.Panicf("%s.Register: nil descriptor", r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assertAlive()
	if e := r.findLocked(desc, rng); e != nil {
		return e
	}
	e := &Entry{id: nextID(), allocation: desc.Clone(), rng: rng.Clone()}
	t := desc.Type()
	r.entries[t] = append(r.entries[t], e)
	metrics.EntriesRegistered.WithLabelValues(t.String()).Inc()
	if klog.V(1).Enabled() {
		klog.Infof("%s: registered entry %s", r, e)
	}
	return e
}

// Find returns the entry for the memory space desc and region rng, or nil if there is none.
// Only entries of desc's allocation type are searched.
func (r *Registry) Find(desc device.Descriptor, rng *device.Range) *Entry {
	if desc == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(desc, rng)
}

func (r *Registry) findLocked(desc device.Descriptor, rng *device.Range) *Entry {
	t := desc.Type()
	if t < 0 || int(t) >= device.NumAllocationTypes {
		exceptions.Panicf("%s: invalid allocation type %s", r, t)
	}
	for _, e := range r.entries[t] {
		if e.Matches(desc, rng) {
			return e
		}
	}
	return nil
}

// ByType returns the entries of the given allocation type, in insertion order.
func (r *Registry) ByType(t device.AllocationType) []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries[t])
}

// ByID returns the entry with the given ID, or nil if there is none.
func (r *Registry) ByID(id ID) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byIDLocked(id)
}

func (r *Registry) byIDLocked(id ID) *Entry {
	for _, entries := range r.entries {
		for _, e := range entries {
			if e.id == id {
				return e
			}
		}
	}
	return nil
}

// Entries returns all entries, ordered by allocation type and then by insertion.
func (r *Registry) Entries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*Entry
	for _, entries := range r.entries {
		all = append(all, entries...)
	}
	return all
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entries := range r.entries {
		n += len(entries)
	}
	return n
}

// IsFresh returns whether the entry id holds the latest version of the data.
func (r *Registry) IsFresh(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fresh.Has(id)
}

// MarkFresh adds id to the fresh set. It is idempotent.
func (r *Registry) MarkFresh(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assertAlive()
	r.assertRegisteredLocked(id)
	if !r.fresh.Has(id) && klog.V(3).Enabled() {
		klog.Infof("%s: entry #%d is fresh", r, id)
	}
	r.fresh.Insert(id)
}

// MarkSoleFresh makes id the only fresh entry: it is used when the copy id was written, which makes every other
// copy stale.
func (r *Registry) MarkSoleFresh(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assertAlive()
	r.assertRegisteredLocked(id)
	if klog.V(3).Enabled() {
		klog.Infof("%s: entry #%d written, all other copies are stale", r, id)
	}
	r.fresh = sets.MakeWith(id)
}

func (r *Registry) assertRegisteredLocked(id ID) {
	if r.byIDLocked(id) == nil {
		exceptions.Panicf("%s: unknown entry #%d", r, id)
	}
}

// FreshIDs returns the IDs of the fresh entries, in increasing order.
func (r *Registry) FreshIDs() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sets.Sorted(r.fresh)
}

// FreshEntries returns the fresh entries, ordered by allocation type and then by insertion.
func (r *Registry) FreshEntries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fresh []*Entry
	for _, entries := range r.entries {
		for _, e := range entries {
			if r.fresh.Has(e.id) {
				fresh = append(fresh, e)
			}
		}
	}
	return fresh
}

// Retain increments the reference count.
func (r *Registry) Retain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assertAlive()
	r.refCount++
}

// RefCount returns the current reference count.
func (r *Registry) RefCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refCount
}

// Destroyed returns whether the registry was destroyed, after the last reference to its object was released.
func (r *Registry) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// release decrements the reference count, and returns whether it reached zero.
func (r *Registry) release() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refCount <= 0 {
		exceptions.Panicf("%s: reference count underflow, object released more times than it was retained", r)
	}
	r.refCount--
	return r.refCount == 0
}

// freeAll frees every allocation, clears the directory and marks the registry as destroyed.
func (r *Registry) freeAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs *multierror.Error
	for t, entries := range r.entries {
		for _, e := range entries {
			if err := e.allocation.Free(); err != nil {
				errs = multierror.Append(errs, errors.WithMessagef(err, "freeing entry %s", e))
			}
		}
		r.entries[t] = nil
	}
	clear(r.fresh)
	r.destroyed = true
	objectsAlive.Add(-1)
	metrics.ObjectsAlive.Dec()
	return errs.ErrorOrNil()
}
