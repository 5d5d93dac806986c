package matrix

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gomlx/devmem/dtypes"
	"github.com/gomlx/devmem/dtypes/bfloat16"
	"github.com/janpfeifer/gonb/gonbui"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// formatValue formats numbers as numbers (including int8 and uint8), and 16-bits floats through their float32
// value.
func formatValue[T dtypes.Supported](v T) string {
	switch x := any(v).(type) {
	case float16.Float16:
		return fmt.Sprintf("%g", x.Float32())
	case bfloat16.BFloat16:
		return fmt.Sprintf("%g", x.Float32())
	case float32, float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Print writes the matrix header followed by one line per row, with values separated by spaces.
// The host copy is refreshed first if needed.
func (m *Dense[T]) Print(w io.Writer) error {
	values, err := m.Values()
	if err != nil {
		return err
	}
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "Dense(%dx%d, %s)\n", m.rows, m.cols, m.DType())
	for row := range m.rows {
		for col := range m.cols {
			if col > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(formatValue(values[row*m.rowSkip+col]))
		}
		sb.WriteByte('\n')
	}
	_, err = io.WriteString(w, sb.String())
	return errors.Wrapf(err, "printing %s", m)
}

// HTML renders the matrix values as an HTML table.
func (m *Dense[T]) HTML() (string, error) {
	values, err := m.Values()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "<table><caption>%s</caption>\n", html.EscapeString(m.String()))
	for row := range m.rows {
		sb.WriteString("<tr>")
		for col := range m.cols {
			_, _ = fmt.Fprintf(&sb, "<td>%s</td>", html.EscapeString(formatValue(values[row*m.rowSkip+col])))
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</table>")
	return sb.String(), nil
}

// DisplayHTML displays the matrix as an HTML table when running in a GoNB notebook. It's a no-op otherwise.
func (m *Dense[T]) DisplayHTML() error {
	if !gonbui.IsNotebook {
		return nil
	}
	h, err := m.HTML()
	if err != nil {
		return err
	}
	gonbui.DisplayHTML(h)
	return nil
}

// AllClose returns whether a and b have the same dimensions and their values are within tolerance of each other.
// Integer and boolean values are compared as float64. NaNs are considered equal to NaNs.
//
// Host copies of both matrices are refreshed if needed.
func AllClose[T dtypes.Supported](a, b *Dense[T], tolerance float64) (bool, error) {
	if a.rows != b.rows || a.cols != b.cols {
		return false, nil
	}
	aValues, err := a.Values()
	if err != nil {
		return false, err
	}
	bValues, err := b.Values()
	if err != nil {
		return false, err
	}
	isFloat := a.DType().IsFloat()
	for row := range a.rows {
		for col := range a.cols {
			x, y := aValues[row*a.rowSkip+col], bValues[row*b.rowSkip+col]
			if isFloat {
				if !isCloseFloat(x, y, tolerance) {
					return false, nil
				}
			} else if math.Abs(toFloat64(x)-toFloat64(y)) > tolerance {
				return false, nil
			}
		}
	}
	return true, nil
}

// isCloseFloat compares floating point values, with NaNs equal to each other.
func isCloseFloat[T dtypes.Supported](a, b T, tolerance float64) bool {
	switch x := any(a).(type) {
	case float32:
		return isClose32(x, any(b).(float32), tolerance)
	case float16.Float16:
		return isClose32(x.Float32(), any(b).(float16.Float16).Float32(), tolerance)
	case bfloat16.BFloat16:
		return isClose32(x.Float32(), any(b).(bfloat16.BFloat16).Float32(), tolerance)
	default:
		x64, y64 := toFloat64(a), toFloat64(b)
		if math.IsNaN(x64) || math.IsNaN(y64) {
			return math.IsNaN(x64) && math.IsNaN(y64)
		}
		return math.Abs(x64-y64) <= tolerance
	}
}

func isClose32(a, b float32, tolerance float64) bool {
	if math32.IsNaN(a) || math32.IsNaN(b) {
		return math32.IsNaN(a) && math32.IsNaN(b)
	}
	return math32.Abs(a-b) <= float32(tolerance)
}

func toFloat64[T dtypes.Supported](v T) float64 {
	switch x := any(v).(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	case float16.Float16:
		return float64(x.Float32())
	case bfloat16.BFloat16:
		return float64(x.Float32())
	}
	return math.NaN()
}
