package metadata

import (
	"testing"

	"github.com/gomlx/devmem/device"
	"github.com/gomlx/devmem/device/host"
	"github.com/gomlx/devmem/device/simulated"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// testObject is a minimal Object with a finalizer counter.
type testObject struct {
	registry    *Registry
	finalized   int
	finalizeErr error
}

func (o *testObject) Metadata() *Registry { return o.registry }

func (o *testObject) Finalize() error {
	o.finalized++
	return o.finalizeErr
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	gpu0 := simulated.NewMemory(device.GPUCUDA, 0, 0)
	gpu1 := simulated.NewMemory(device.GPUCUDA, 1, 0)

	hostEntry := r.Register(host.New(), nil)
	e0 := r.Register(simulated.New(gpu0), nil)
	e1 := r.Register(simulated.New(gpu1), nil)
	eRange := r.Register(simulated.New(gpu0), device.NewRange(0, 1, 0, 2))
	require.Equal(t, 4, r.Len())

	// IDs are unique and increasing.
	require.Less(t, hostEntry.ID(), e0.ID())
	require.Less(t, e0.ID(), e1.ID())
	require.Less(t, e1.ID(), eRange.ID())

	// No duplicates: registering the same (descriptor, range) returns the existing entry.
	require.Same(t, e0, r.Register(simulated.New(gpu0), nil))
	require.Same(t, eRange, r.Register(simulated.New(gpu0), device.NewRange(0, 1, 0, 2)))
	require.Equal(t, 4, r.Len())

	// Registration neither allocates nor marks fresh.
	require.Nil(t, e0.Allocation().Data())
	require.Empty(t, r.FreshIDs())

	// Lookups.
	require.Same(t, e1, r.Find(simulated.New(gpu1), nil))
	require.Nil(t, r.Find(simulated.New(gpu1), device.NewRange(0, 1, 0, 1)))
	require.Nil(t, r.Find(simulated.New(simulated.NewMemory(device.GPUHIP, 0, 0)), nil))
	require.Nil(t, r.Find(nil, nil))
	require.Same(t, hostEntry, r.Find(host.New(), nil))
	require.Equal(t, []*Entry{e0, e1, eRange}, r.ByType(device.GPUCUDA))
	require.Empty(t, r.ByType(device.FPGAIntel))
	require.Same(t, eRange, r.ByID(eRange.ID()))
	require.Nil(t, r.ByID(ID(1<<62)))
	require.Equal(t, []*Entry{e0, e1, eRange, hostEntry}, r.Entries(), "ordered by type, then insertion")

	// The entry holds its own copy of the range.
	rng := device.NewRange(1, 2, 1, 2)
	e := r.Register(simulated.New(gpu1), rng)
	rng.RowLen = 100
	require.Equal(t, 1, e.Range().RowLen)

	require.Panics(t, func() { r.Register(nil, nil) })
	require.NoError(t, Destroy(&testObject{registry: r}))
}

func TestFreshness(t *testing.T) {
	r := NewRegistry()
	gpu := simulated.NewMemory(device.GPUCUDA, 0, 0)
	hostEntry := r.Register(host.New(), nil)
	gpuEntry := r.Register(simulated.New(gpu), nil)

	r.MarkFresh(hostEntry.ID())
	r.MarkFresh(hostEntry.ID())
	require.True(t, r.IsFresh(hostEntry.ID()))
	require.False(t, r.IsFresh(gpuEntry.ID()))
	r.MarkFresh(gpuEntry.ID())
	require.Equal(t, []ID{hostEntry.ID(), gpuEntry.ID()}, r.FreshIDs())
	require.Equal(t, []*Entry{gpuEntry, hostEntry}, r.FreshEntries())

	r.MarkSoleFresh(gpuEntry.ID())
	require.Equal(t, []ID{gpuEntry.ID()}, r.FreshIDs())
	require.False(t, r.IsFresh(hostEntry.ID()))

	require.Panics(t, func() { r.MarkFresh(ID(1 << 62)) }, "unknown entry")
	require.NoError(t, Destroy(&testObject{registry: r}))
	require.Panics(t, func() { r.MarkFresh(gpuEntry.ID()) }, "use after destroy")
}

func TestDestroy(t *testing.T) {
	aliveBefore := ObjectsAlive()
	gpu := simulated.NewMemory(device.GPUCUDA, 0, 0)
	obj := &testObject{registry: NewRegistry()}
	r := obj.registry
	require.Equal(t, aliveBefore+1, ObjectsAlive())
	e := r.Register(simulated.New(gpu), nil)
	require.NoError(t, e.Allocation().CreateAllocation(64, true))
	require.Equal(t, 64, gpu.InUse())

	// N retains followed by N+1 releases: only the last one tears down.
	const n = 3
	for range n {
		r.Retain()
	}
	require.Equal(t, n+1, r.RefCount())
	for range n {
		require.NoError(t, Destroy(obj))
		require.False(t, r.Destroyed())
		require.Zero(t, obj.finalized)
	}
	require.NoError(t, Destroy(obj))
	require.True(t, r.Destroyed())
	require.Equal(t, 1, obj.finalized)
	require.Zero(t, r.Len())
	require.Zero(t, gpu.InUse())
	require.Equal(t, aliveBefore, ObjectsAlive())

	// Underflow.
	require.Panics(t, func() { _ = Destroy(obj) })
	require.Panics(t, func() { r.Retain() })
	require.Equal(t, 1, obj.finalized)
}

// failingDescriptor fails to free its allocation.
type failingDescriptor struct {
	*simulated.Descriptor
}

func (d failingDescriptor) Clone() device.Descriptor {
	return failingDescriptor{d.Descriptor.Clone().(*simulated.Descriptor)}
}

func (d failingDescriptor) Free() error {
	return errors.Errorf("device %s is gone", d.Descriptor)
}

func TestDestroyErrors(t *testing.T) {
	finalizeErr := errors.New("finalize failed")
	obj := &testObject{registry: NewRegistry(), finalizeErr: finalizeErr}
	fpga := simulated.NewMemory(device.FPGAXilinx, 0, 0)
	gpu := simulated.NewMemory(device.GPUHIP, 0, 0)
	obj.registry.Register(failingDescriptor{simulated.New(fpga)}, nil)
	obj.registry.Register(failingDescriptor{simulated.New(gpu)}, nil)

	err := Destroy(obj)
	require.Error(t, err)
	require.ErrorIs(t, err, finalizeErr)
	require.Contains(t, err.Error(), "FPGAXilinx:0 is gone")
	require.Contains(t, err.Error(), "GPUHIP:0 is gone")
	require.True(t, obj.registry.Destroyed(), "registry is destroyed even if teardown failed")
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	gpu := simulated.NewMemory(device.GPUCUDA, 2, 0)
	hostEntry := r.Register(host.New(), nil)
	gpuEntry := r.Register(simulated.New(gpu), device.NewRange(0, 2, 0, 2))
	require.NoError(t, gpuEntry.Allocation().CreateAllocation(16, false))
	r.MarkFresh(gpuEntry.ID())

	want := Snapshot{
		ObjectID: r.ObjectID().String(),
		RefCount: 1,
		Entries: []EntrySnapshot{
			{ID: gpuEntry.ID(), Type: device.GPUCUDA, Device: 2, Range: device.NewRange(0, 2, 0, 2), Fresh: true, Allocated: 16},
			{ID: hostEntry.ID(), Type: device.Host},
		},
	}
	got := r.Snapshot()
	require.Empty(t, cmp.Diff(want, got))

	table := got.Table()
	require.Contains(t, table, r.ObjectID().String())
	require.Contains(t, table, "GPUCUDA")
	require.Contains(t, table, "[0:2, 0:2]")
	require.Contains(t, table, "16 B")

	st, err := got.Struct()
	require.NoError(t, err)
	require.Equal(t, r.ObjectID().String(), st.Fields["object_id"].GetStringValue())
	entries := st.Fields["entries"].GetListValue().GetValues()
	require.Len(t, entries, 2)
	first := entries[0].GetStructValue().GetFields()
	require.Equal(t, "GPUCUDA", first["type"].GetStringValue())
	require.Equal(t, float64(2), first["device"].GetNumberValue())
	require.True(t, first["fresh"].GetBoolValue())
	require.Equal(t, float64(2), first["range"].GetStructValue().GetFields()["row_len"].GetNumberValue())
	_, isNull := entries[1].GetStructValue().GetFields()["range"].GetKind().(*structpb.Value_NullValue)
	require.True(t, isNull)
	require.NoError(t, Destroy(&testObject{registry: r}))
}
