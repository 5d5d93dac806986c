package metadata

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/devmem/device"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Snapshot is a copy of the directory of an object at some point in time, for inspection.
type Snapshot struct {
	ObjectID  string
	RefCount  int
	Destroyed bool
	Entries   []EntrySnapshot
}

// EntrySnapshot describes one entry of a Snapshot.
type EntrySnapshot struct {
	ID        ID
	Type      device.AllocationType
	Device    int
	Range     *device.Range
	Fresh     bool
	Allocated int // Bytes allocated, 0 if not allocated.
}

// Snapshot returns a copy of the current directory.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		ObjectID:  r.objectID.String(),
		RefCount:  r.refCount,
		Destroyed: r.destroyed,
	}
	for _, entries := range r.entries {
		for _, e := range entries {
			s.Entries = append(s.Entries, EntrySnapshot{
				ID:        e.id,
				Type:      e.allocation.Type(),
				Device:    device.DeviceNum(e.allocation),
				Range:     e.rng.Clone(),
				Fresh:     r.fresh.Has(e.id),
				Allocated: len(e.allocation.Data()),
			})
		}
	}
	return s
}

// Table renders the snapshot as a human-readable table.
func (s Snapshot) Table() string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("ID", "Type", "Device", "Range", "Fresh", "Allocated")
	for _, e := range s.Entries {
		table.Row(strconv.FormatUint(uint64(e.ID), 10), e.Type.String(), strconv.Itoa(e.Device), e.Range.String(),
			strconv.FormatBool(e.Fresh), humanize.IBytes(uint64(e.Allocated)))
	}
	return fmt.Sprintf("Object %s (references=%d, destroyed=%v)\n%s", s.ObjectID, s.RefCount, s.Destroyed,
		table.Render())
}

// Struct converts the snapshot to a protobuf Struct, e.g. to be serialized with protojson.
func (s Snapshot) Struct() (*structpb.Struct, error) {
	entries := make([]any, 0, len(s.Entries))
	for _, e := range s.Entries {
		var rng any
		if e.Range != nil {
			rng = map[string]any{
				"row_start": e.Range.RowStart,
				"col_start": e.Range.ColStart,
				"row_len":   e.Range.RowLen,
				"col_len":   e.Range.ColLen,
			}
		}
		entries = append(entries, map[string]any{
			"id":        uint64(e.ID),
			"type":      e.Type.String(),
			"device":    e.Device,
			"range":     rng,
			"fresh":     e.Fresh,
			"allocated": e.Allocated,
		})
	}
	st, err := structpb.NewStruct(map[string]any{
		"object_id":  s.ObjectID,
		"references": s.RefCount,
		"destroyed":  s.Destroyed,
		"entries":    entries,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "converting snapshot of %s", s.ObjectID)
	}
	return st, nil
}
