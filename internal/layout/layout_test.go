package layout_test

import (
	"errors"
	"testing"

	"tabi/internal/layout"
	"tabi/internal/source"
	"tabi/internal/target"
	"tabi/internal/types"
)

func newStruct(in *types.Interner, name string, fields ...types.TypeID) types.TypeID {
	id := in.RegisterStruct(in.Strings.Intern(name), source.NoSpan)
	fs := make([]types.StructField, 0, len(fields))
	for _, f := range fields {
		fs = append(fs, types.StructField{Type: f})
	}
	in.SetStructFields(id, fs)
	return id
}

func TestScalarAndAggregateLayoutI686Linux(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	le := layout.New(target.MustParse("i686-pc-linux-gnu"), in)

	cases := []struct {
		name  string
		id    types.TypeID
		size  int
		align int
	}{
		{"long", b.Int64, 8, 4},
		{"double", b.Float64, 8, 4},
		{"real", b.Float80, 12, 4},
		{"cfloat", b.Complex32, 8, 4},
		{"creal", b.Complex80, 24, 4},
		{"slice", in.Intern(types.MakeSlice(b.Uint8)), 8, 4},
		{"delegate", in.Intern(types.MakeDelegate(types.NoTypeID)), 8, 4},
		{"int[3]", in.Intern(types.MakeArray(b.Int32, 3)), 12, 4},
		{"vector", in.Intern(types.MakeVector(b.Float32, 4)), 16, 16},
		{"{byte,int}", newStruct(in, "A", b.Int8, b.Int32), 8, 4},
		{"{short,byte}", newStruct(in, "B", b.Int16, b.Int8), 4, 2},
		{"empty", newStruct(in, "E"), 1, 1},
	}
	for _, tc := range cases {
		l, err := le.LayoutOf(tc.id)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if l.Size != tc.size || l.Align != tc.align {
			t.Fatalf("%s: got size=%d align=%d, want size=%d align=%d", tc.name, l.Size, l.Align, tc.size, tc.align)
		}
	}
}

func TestDarwinAndMSVCReal(t *testing.T) {
	in := types.NewInterner()
	darwin := layout.New(target.MustParse("i386-apple-darwin"), in)
	if sz, _ := darwin.SizeOf(in.Builtins().Float80); sz != 16 {
		t.Fatalf("darwin real size: %d", sz)
	}
	msvc := layout.New(target.MustParse("i686-pc-windows-msvc"), in)
	if sz, _ := msvc.SizeOf(in.Builtins().Float80); sz != 8 {
		t.Fatalf("msvc real size: %d", sz)
	}
}

func TestEightByteScalarAlignmentI386(t *testing.T) {
	cases := []struct {
		triple    string
		longAlign int
		pairSize  int
		pairAlign int
	}{
		{"i686-pc-linux-gnu", 4, 12, 4},
		{"i386-apple-darwin", 4, 12, 4},
		{"i686-pc-windows-msvc", 8, 16, 8},
	}
	for _, tc := range cases {
		in := types.NewInterner()
		b := in.Builtins()
		le := layout.New(target.MustParse(tc.triple), in)
		if al, _ := le.AlignOf(b.Int64); al != tc.longAlign {
			t.Fatalf("%s: long align = %d, want %d", tc.triple, al, tc.longAlign)
		}
		if al, _ := le.AlignOf(b.Float64); al != tc.longAlign {
			t.Fatalf("%s: double align = %d, want %d", tc.triple, al, tc.longAlign)
		}
		l, err := le.LayoutOf(newStruct(in, "P", b.Int32, b.Int64))
		if err != nil {
			t.Fatalf("%s: %v", tc.triple, err)
		}
		if l.Size != tc.pairSize || l.Align != tc.pairAlign {
			t.Fatalf("%s: {int,long} = %d/%d, want %d/%d", tc.triple, l.Size, l.Align, tc.pairSize, tc.pairAlign)
		}
	}
}

func TestStructFieldOffsets(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	s := newStruct(in, "S", b.Int8, b.Int16, b.Int32)
	le := layout.New(target.MustParse("i686-pc-linux-gnu"), in)
	for i, want := range []int{0, 2, 4} {
		off, err := le.FieldOffset(s, i)
		if err != nil || off != want {
			t.Fatalf("field %d: off=%d err=%v, want %d", i, off, err, want)
		}
	}
}

func TestDeclaredSizeMismatchIsReported(t *testing.T) {
	in := types.NewInterner()
	s := newStruct(in, "S", in.Builtins().Int32)
	in.SetStructSize(s, 8)
	le := layout.New(target.MustParse("i686-pc-linux-gnu"), in)
	_, err := le.LayoutOf(s)
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != layout.LayoutErrSizeMismatch {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if lerr.Declared != 8 || lerr.Computed != 4 {
		t.Fatalf("unexpected sizes in %+v", lerr)
	}
}

func TestRecursiveStructReportsCycle(t *testing.T) {
	in := types.NewInterner()
	node := in.RegisterStruct(in.Strings.Intern("Node"), source.NoSpan)
	in.SetStructFields(node, []types.StructField{{Type: node}})
	le := layout.New(target.MustParse("i686-pc-linux-gnu"), in)
	_, err := le.LayoutOf(node)
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != layout.LayoutErrRecursiveUnsized {
		t.Fatalf("expected recursive layout error, got %v", err)
	}
	if len(lerr.Cycle) == 0 {
		t.Fatalf("expected non-empty cycle path")
	}

	// a self-reference through a pointer is sized
	list := in.RegisterStruct(in.Strings.Intern("List"), source.NoSpan)
	in.SetStructFields(list, []types.StructField{{Type: in.Intern(types.MakePointer(list))}})
	if sz, err := le.SizeOf(list); err != nil || sz != 4 {
		t.Fatalf("List: size=%d err=%v", sz, err)
	}
}

func TestPackedAndAlignAttrs(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	packed := newStruct(in, "P", b.Int8, b.Int32)
	in.SetTypeLayoutAttrs(packed, types.LayoutAttrs{Packed: true})
	aligned := newStruct(in, "Q", b.Int8)
	n := 16
	in.SetTypeLayoutAttrs(aligned, types.LayoutAttrs{AlignOverride: &n})

	le := layout.New(target.MustParse("i686-pc-linux-gnu"), in)
	if l, _ := le.LayoutOf(packed); l.Size != 5 || l.Align != 1 {
		t.Fatalf("packed: %+v", l)
	}
	if l, _ := le.LayoutOf(aligned); l.Size != 16 || l.Align != 16 {
		t.Fatalf("aligned: %+v", l)
	}
}
