package extractor

import "testing"

func TestParseDType(t *testing.T) {
	d, err := ParseDType("")
	if err != nil {
		t.Fatalf("ParseDType(\"\") error: %v", err)
	}
	if d != Float32 {
		t.Errorf("empty dtype = %s, want float32", d)
	}

	d, err = ParseDType("float64")
	if err != nil {
		t.Fatalf("ParseDType(float64) error: %v", err)
	}
	if d != Float64 {
		t.Errorf("dtype = %s, want float64", d)
	}

	if _, err := ParseDType("int16"); err == nil {
		t.Error("expected error for unsupported dtype")
	}
}

func TestDTypeItemSize(t *testing.T) {
	if Float32.ItemSize() != 4 {
		t.Errorf("float32 item size = %d, want 4", Float32.ItemSize())
	}
	if Float64.ItemSize() != 8 {
		t.Errorf("float64 item size = %d, want 8", Float64.ItemSize())
	}
}

func TestMatrixAccessors(t *testing.T) {
	for _, dtype := range []DType{Float32, Float64} {
		m := NewMatrix(dtype, 3, 2)
		if m.Rows() != 3 || m.Cols() != 2 {
			t.Fatalf("%s: shape = (%d, %d), want (3, 2)", dtype, m.Rows(), m.Cols())
		}
		m.Set(1, 1, 2.5)
		m.Add(1, 1, 0.25)
		if got := m.At(1, 1); got != 2.75 {
			t.Errorf("%s: At(1,1) = %g, want 2.75", dtype, got)
		}
		if got := m.At(0, 0); got != 0 {
			t.Errorf("%s: untouched cell = %g, want 0", dtype, got)
		}
	}
}

func TestMatrixSizeBytes(t *testing.T) {
	if got := NewMatrix(Float32, 10, 4).SizeBytes(); got != 160 {
		t.Errorf("float32 size = %d, want 160", got)
	}
	if got := NewMatrix(Float64, 10, 4).SizeBytes(); got != 320 {
		t.Errorf("float64 size = %d, want 320", got)
	}
}

func TestMatrixCopyRowsFrom(t *testing.T) {
	src := NewMatrix(Float32, 4, 2)
	for r := 0; r < 4; r++ {
		for c := 0; c < 2; c++ {
			src.Set(r, c, float64(10*r+c))
		}
	}
	dst := NewMatrix(Float32, 3, 2)
	if err := dst.CopyRowsFrom(1, src, 2, 2); err != nil {
		t.Fatalf("CopyRowsFrom: %v", err)
	}
	if dst.At(1, 0) != 20 || dst.At(2, 1) != 31 {
		t.Errorf("copied rows wrong: got (%g, %g), want (20, 31)", dst.At(1, 0), dst.At(2, 1))
	}
	if dst.At(0, 0) != 0 {
		t.Errorf("row before copy range modified: %g", dst.At(0, 0))
	}

	wrongCols := NewMatrix(Float32, 4, 3)
	if err := dst.CopyRowsFrom(0, wrongCols, 0, 1); err == nil {
		t.Error("expected column mismatch error")
	}
	wrongType := NewMatrix(Float64, 4, 2)
	if err := dst.CopyRowsFrom(0, wrongType, 0, 1); err == nil {
		t.Error("expected dtype mismatch error")
	}
	if err := dst.CopyRowsFrom(2, src, 0, 2); err == nil {
		t.Error("expected out-of-bounds error")
	}
}

func TestMatrixEqual(t *testing.T) {
	a := NewMatrix(Float32, 2, 2)
	b := NewMatrix(Float32, 2, 2)
	a.Set(0, 1, 1.5)
	b.Set(0, 1, 1.5)
	if !a.Equal(b) {
		t.Error("identical matrices not equal")
	}
	b.Set(1, 0, -1)
	if a.Equal(b) {
		t.Error("differing matrices reported equal")
	}
	if a.Equal(NewMatrix(Float64, 2, 2)) {
		t.Error("dtype mismatch reported equal")
	}
	if a.Equal(nil) {
		t.Error("nil reported equal")
	}
}

func TestResolveFrameRange(t *testing.T) {
	start, end, err := ResolveFrameRange(FullExtent, FullExtent, 100)
	if err != nil {
		t.Fatalf("full extent: %v", err)
	}
	if start != 0 || end != 100 {
		t.Errorf("full extent = [%d, %d), want [0, 100)", start, end)
	}

	start, end, err = ResolveFrameRange(10, 20, 100)
	if err != nil || start != 10 || end != 20 {
		t.Errorf("explicit range = [%d, %d) err %v", start, end, err)
	}

	if _, _, err := ResolveFrameRange(-5, 10, 100); err == nil {
		t.Error("expected error for negative start")
	}
	if _, _, err := ResolveFrameRange(0, 101, 100); err == nil {
		t.Error("expected error for end past segment")
	}
	if _, _, err := ResolveFrameRange(30, 20, 100); err == nil {
		t.Error("expected error for end before start")
	}
}
