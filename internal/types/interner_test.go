package types

import (
	"testing"

	"tabi/internal/source"
)

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.Bool == NoTypeID || b.Complex80 == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	c, _ := in.Lookup(b.Complex32)
	if c.Kind != KindComplex || c.Width != Width32 {
		t.Fatalf("expected cfloat, got %+v", c)
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	elem := in.Builtins().Int32
	a1 := in.Intern(MakeSlice(elem))
	a2 := in.Intern(MakeSlice(elem))
	if a1 != a2 {
		t.Fatalf("slice types should be deduplicated")
	}
	if s := in.Intern(MakeArray(elem, 4)); s == a1 {
		t.Fatalf("static and dynamic arrays must differ")
	}
}

func TestNominalTypesAreDistinct(t *testing.T) {
	in := NewInterner()
	name := in.Strings.Intern("S")
	s1 := in.RegisterStruct(name, source.NoSpan)
	s2 := in.RegisterStruct(name, source.NoSpan)
	if s1 == s2 {
		t.Fatalf("structs with the same name must get distinct IDs")
	}
	info, ok := in.StructInfo(s1)
	if !ok || !info.POD {
		t.Fatalf("new struct should default to POD, got %+v", info)
	}
	in.SetStructSemantics(s1, true, false, true)
	if info.POD {
		t.Fatalf("a destructor must clear POD")
	}
}

func TestBaseStripsEnums(t *testing.T) {
	in := NewInterner()
	e := in.RegisterEnum(in.Strings.Intern("E"), source.NoSpan, in.Builtins().Uint16)
	if in.Base(e) != in.Builtins().Uint16 {
		t.Fatalf("expected enum base ushort")
	}
	if in.BaseKind(e) != KindUint {
		t.Fatalf("expected uint kind, got %v", in.BaseKind(e))
	}
	if !in.Same(e, in.Builtins().Uint16) {
		t.Fatalf("enum and base should compare same")
	}
}

func TestTypeString(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	cases := map[TypeID]string{
		in.Intern(MakePointer(b.Uint8)):            "ubyte*",
		in.Intern(MakeArray(b.Float32, 3)):         "float[3]",
		in.Intern(MakeSlice(b.Int64)):              "long[]",
		in.Intern(MakeAssocArray(b.Int32, b.Bool)): "bool[int]",
		b.Complex80: "creal",
	}
	for id, want := range cases {
		if got := in.TypeString(id); got != want {
			t.Fatalf("type#%d: got %q, want %q", id, got, want)
		}
	}
}
