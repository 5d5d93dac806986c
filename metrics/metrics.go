// Package metrics exports Prometheus collectors for the device memory directory: entries registered, transfers
// and allocations per memory space, host reconciliations and live objects.
//
// All collectors are registered in a package registry (see Registry), and can be added to any other
// registry with Register.
package metrics

import (
	"github.com/gomlx/devmem/device"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixed to every metric name.
const Namespace = "devmem"

var (
	// EntriesRegistered counts directory entries created, by allocation type.
	EntriesRegistered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "entries_registered_total",
		Help:      "Number of metadata entries registered, by allocation type.",
	}, []string{"type"})

	// Transfers counts synchronous copies between host memory and allocations.
	Transfers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "transfers_total",
		Help:      "Number of successful transfers, by allocation type and direction.",
	}, []string{"type", "direction"})

	// TransferBytes counts the bytes moved by successful transfers.
	TransferBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "transfer_bytes_total",
		Help:      "Bytes moved by successful transfers, by allocation type and direction.",
	}, []string{"type", "direction"})

	// TransferFailures counts failed transfers.
	TransferFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "transfer_failures_total",
		Help:      "Number of failed transfers, by allocation type and direction.",
	}, []string{"type", "direction"})

	// Allocations counts successful allocations.
	Allocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "allocations_total",
		Help:      "Number of successful allocations, by allocation type.",
	}, []string{"type"})

	// AllocationFailures counts failed allocations.
	AllocationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "allocation_failures_total",
		Help:      "Number of failed allocations, by allocation type.",
	}, []string{"type"})

	// Reconciliations counts host copies refreshed from another memory space.
	Reconciliations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "reconciliations_total",
		Help:      "Number of times a stale host copy was refreshed from a fresh device copy.",
	})

	// ObjectsAlive is the number of objects whose metadata registry was not yet destroyed.
	ObjectsAlive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "objects_alive",
		Help:      "Number of objects with a live metadata registry.",
	})
)

var registry = prometheus.NewRegistry()

func init() {
	if err := Register(registry); err != nil {
		panic(err)
	}
}

// Registry returns the package registry, where all collectors are registered.
func Registry() *prometheus.Registry {
	return registry
}

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		EntriesRegistered, Transfers, TransferBytes, TransferFailures,
		Allocations, AllocationFailures, Reconciliations, ObjectsAlive,
	}
}

// Register all collectors in reg. Collectors already registered there are skipped.
func Register(reg prometheus.Registerer) error {
	var result error
	for _, c := range collectors() {
		err := reg.Register(c)
		if err == nil {
			continue
		}
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			continue
		}
		result = multierror.Append(result, err)
	}
	return result
}

// ObserveAllocation records the outcome of an allocation on a memory space of type t.
func ObserveAllocation(t device.AllocationType, err error) {
	if err != nil {
		AllocationFailures.WithLabelValues(t.String()).Inc()
		return
	}
	Allocations.WithLabelValues(t.String()).Inc()
}

// ObserveTransfer records the outcome of a transfer of size bytes.
func ObserveTransfer(t device.AllocationType, direction device.Direction, size int, err error) {
	if err != nil {
		TransferFailures.WithLabelValues(t.String(), direction.String()).Inc()
		return
	}
	Transfers.WithLabelValues(t.String(), direction.String()).Inc()
	TransferBytes.WithLabelValues(t.String(), direction.String()).Add(float64(size))
}
