package extractor

import "fmt"

// DType names the sample precision of a trace window or template tensor.
type DType string

const (
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// ParseDType validates a dtype name. An empty string defaults to float32.
func ParseDType(s string) (DType, error) {
	switch DType(s) {
	case "":
		return Float32, nil
	case Float32, Float64:
		return DType(s), nil
	default:
		return "", fmt.Errorf("unsupported dtype %q (want %q or %q)", s, Float32, Float64)
	}
}

// ItemSize returns the byte size of one sample.
func (d DType) ItemSize() int {
	if d == Float64 {
		return 8
	}
	return 4
}

// Matrix is a frames-by-channels window of samples in row-major order,
// backed by either float32 or float64 storage depending on its dtype.
// Accessors take and return float64 regardless of backing precision.
type Matrix struct {
	dtype DType
	rows  int
	cols  int
	f32   []float32
	f64   []float64
}

// NewMatrix allocates a zeroed rows-by-cols matrix of the given dtype.
func NewMatrix(dtype DType, rows, cols int) *Matrix {
	m := &Matrix{dtype: dtype, rows: rows, cols: cols}
	if dtype == Float64 {
		m.f64 = make([]float64, rows*cols)
	} else {
		m.f32 = make([]float32, rows*cols)
	}
	return m
}

func (m *Matrix) Rows() int    { return m.rows }
func (m *Matrix) Cols() int    { return m.cols }
func (m *Matrix) DType() DType { return m.dtype }

// SizeBytes returns the byte size of the sample storage.
func (m *Matrix) SizeBytes() int64 {
	return int64(m.rows) * int64(m.cols) * int64(m.dtype.ItemSize())
}

// At returns the sample at (row, col).
func (m *Matrix) At(row, col int) float64 {
	if m.dtype == Float64 {
		return m.f64[row*m.cols+col]
	}
	return float64(m.f32[row*m.cols+col])
}

// Set stores a sample at (row, col), truncating to the backing precision.
func (m *Matrix) Set(row, col int, v float64) {
	if m.dtype == Float64 {
		m.f64[row*m.cols+col] = v
	} else {
		m.f32[row*m.cols+col] = float32(v)
	}
}

// Add accumulates v into the sample at (row, col).
func (m *Matrix) Add(row, col int, v float64) {
	if m.dtype == Float64 {
		m.f64[row*m.cols+col] += v
	} else {
		m.f32[row*m.cols+col] += float32(v)
	}
}

// CopyRowsFrom copies n rows starting at srcRow of src into m starting at
// dstRow. Column counts and dtypes must match; row copies are whole-slice
// copies on the shared backing layout.
func (m *Matrix) CopyRowsFrom(dstRow int, src *Matrix, srcRow, n int) error {
	if src.cols != m.cols {
		return fmt.Errorf("column count mismatch: %d != %d", src.cols, m.cols)
	}
	if src.dtype != m.dtype {
		return fmt.Errorf("dtype mismatch: %s != %s", src.dtype, m.dtype)
	}
	if dstRow+n > m.rows || srcRow+n > src.rows || n < 0 {
		return fmt.Errorf("row copy out of bounds: dst %d+%d of %d, src %d+%d of %d",
			dstRow, n, m.rows, srcRow, n, src.rows)
	}
	if m.dtype == Float64 {
		copy(m.f64[dstRow*m.cols:(dstRow+n)*m.cols], src.f64[srcRow*src.cols:(srcRow+n)*src.cols])
	} else {
		copy(m.f32[dstRow*m.cols:(dstRow+n)*m.cols], src.f32[srcRow*src.cols:(srcRow+n)*src.cols])
	}
	return nil
}

// Equal reports whether two matrices have identical shape, dtype and
// bit-identical sample contents.
func (m *Matrix) Equal(other *Matrix) bool {
	if other == nil || m.rows != other.rows || m.cols != other.cols || m.dtype != other.dtype {
		return false
	}
	if m.dtype == Float64 {
		for i := range m.f64 {
			if m.f64[i] != other.f64[i] {
				return false
			}
		}
		return true
	}
	for i := range m.f32 {
		if m.f32[i] != other.f32[i] {
			return false
		}
	}
	return true
}
