// devmem_inspect runs a coherence scenario on simulated devices and prints the resulting matrix, the directory
// of its copies, and optionally the transfer metrics.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/gomlx/devmem/device"
	"github.com/gomlx/devmem/device/simulated"
	"github.com/gomlx/devmem/dtypes"
	"github.com/gomlx/devmem/matrix"
	"github.com/gomlx/devmem/metrics"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/encoding/protojson"
	"k8s.io/klog/v2"
)

var (
	flagRows    = flag.Int("rows", 4, "Number of rows of the matrix.")
	flagCols    = flag.Int("cols", 4, "Number of columns of the matrix.")
	flagDType   = flag.String("dtype", "float32", "Element type: float32, float64, int32 or int64.")
	flagDevices = flag.String("devices", "gpucuda:0,fpgaintel:0",
		"Comma-separated list of simulated devices as type:number. The last one writes to the matrix.")
	flagFormat  = flag.String("format", "text", "Format of the directory dump: text or json.")
	flagMetrics = flag.Bool("metrics", false, "Print the metrics in Prometheus text format at the end.")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `devmem_inspect creates a matrix on host, copies it to each of the given simulated devices,
doubles its values on the last device, reads it back on host and prints the directory of copies.

Usage:
`)
		flag.PrintDefaults()
	}
	klog.InitFlags(flag.CommandLine)
	flag.Parse()

	if *flagFormat != "text" && *flagFormat != "json" {
		fmt.Fprintf(os.Stderr, "Invalid -format=%q, must be text or json.\n\n", *flagFormat)
		flag.Usage()
		os.Exit(1)
	}
	devices := must.M1(parseDevices(*flagDevices))
	dtype, found := dtypes.MapOfNames[*flagDType]
	if !found {
		klog.Fatalf("Unknown -dtype=%q", *flagDType)
	}
	switch dtype {
	case dtypes.Float32:
		must.M(run(devices, func(x float32) float32 { return x }))
	case dtypes.Float64:
		must.M(run(devices, func(x float32) float64 { return float64(x) }))
	case dtypes.Int32:
		must.M(run(devices, func(x float32) int32 { return int32(math32.Round(x * 100)) }))
	case dtypes.Int64:
		must.M(run(devices, func(x float32) int64 { return int64(math32.Round(x * 100)) }))
	default:
		klog.Fatalf("-dtype=%s not supported by devmem_inspect", dtype)
	}

	if *flagMetrics {
		families := must.M1(metrics.Registry().Gather())
		enc := expfmt.NewEncoder(os.Stdout, expfmt.FmtText)
		for _, family := range families {
			must.M(enc.Encode(family))
		}
	}
}

// parseDevices parses a list of "type:number" into simulated device descriptors.
func parseDevices(list string) ([]device.Descriptor, error) {
	var devices []device.Descriptor
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		typeName, numStr, _ := strings.Cut(item, ":")
		allocType, err := device.AllocationTypeString(typeName)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing device %q", item)
		}
		if allocType == device.Host {
			return nil, errors.Errorf("device %q: host is always present, it can't be simulated", item)
		}
		deviceNum := 0
		if numStr != "" {
			deviceNum, err = strconv.Atoi(numStr)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing device number of %q", item)
			}
		}
		mem := simulated.NewMemory(allocType, deviceNum, simulated.DefaultCapacity())
		devices = append(devices, simulated.New(mem))
	}
	if len(devices) == 0 {
		return nil, errors.New("no devices given")
	}
	return devices, nil
}

// run the scenario for a matrix of type T, whose values are initialized with fromFloat(sin(i)).
func run[T float32 | float64 | int32 | int64](devices []device.Descriptor, fromFloat func(float32) T) error {
	m := matrix.Zeros[T](*flagRows, *flagCols)
	values, err := m.MutableValues()
	if err != nil {
		return err
	}
	for ii := range values {
		values[ii] = fromFloat(math32.Sin(float32(ii)))
	}

	for _, d := range devices {
		if _, err := m.Obtain(d, nil); err != nil {
			return err
		}
	}
	writer := devices[len(devices)-1]
	data, err := m.ObtainMutable(writer, nil)
	if err != nil {
		return err
	}
	onDevice := unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), m.NumItems())
	for ii := range onDevice {
		onDevice[ii] *= 2
	}
	fmt.Printf("Values doubled on %s.\n\n", writer)

	if err = m.Print(os.Stdout); err != nil {
		return err
	}
	fmt.Println()

	snapshot := m.Metadata().Snapshot()
	if *flagFormat == "json" {
		st, err := snapshot.Struct()
		if err != nil {
			return err
		}
		blob, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
		if err != nil {
			return errors.Wrap(err, "serializing snapshot")
		}
		fmt.Println(string(blob))
	} else {
		fmt.Println(snapshot.Table())
	}
	return matrix.Destroy(m)
}
