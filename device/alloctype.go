package device

// AllocationType identifies the kind of memory space (and transport) an allocation lives in.
//
// It is used as the key of the per-type tables of the metadata registry, so values must stay dense,
// starting at 0. NumAllocationTypes is the number of valid values.
type AllocationType int

//go:generate go tool enumer -type=AllocationType alloctype.go

const (
	DistGRPC AllocationType = iota
	DistOpenMPI
	DistSpark
	GPUCUDA
	GPUHIP
	Host
	HostPinnedCUDA
	FPGAIntel  // Intel FPGAs.
	FPGAXilinx // Xilinx FPGAs.
	OneAPI
)

// NumAllocationTypes is the number of AllocationType values.
const NumAllocationTypes = int(OneAPI) + 1
