package lower_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"tabi/internal/classify"
	"tabi/internal/diag"
	"tabi/internal/ir"
	"tabi/internal/lower"
	"tabi/internal/source"
	"tabi/internal/target"
	"tabi/internal/types"
)

type env struct {
	e   *lower.Engine
	ev  *ir.Evaluator
	in  *types.Interner
	b   types.Builtins
	bag *diag.Bag
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := target.MustParse("i686-pc-linux-gnu")
	in := types.NewInterner()
	c := classify.New(cfg, in, nil)
	ev := ir.NewEvaluator(ir.DataLayoutFor(cfg))
	bag := diag.NewBag(16)
	return &env{e: lower.New(c, ev, diag.NewBagReporter(bag)), ev: ev, in: in, b: in.Builtins(), bag: bag}
}

func (x *env) structOf(name string, fields ...types.TypeID) types.TypeID {
	id := x.in.RegisterStruct(x.in.Strings.Intern(name), source.NoSpan)
	fs := make([]types.StructField, 0, len(fields))
	for _, f := range fields {
		fs = append(fs, types.StructField{Type: f})
	}
	x.in.SetStructFields(id, fs)
	return id
}

func (x *env) imm(t types.TypeID, v ir.Value) *lower.Imm { return &lower.Imm{T: t, V: v} }

func (x *env) local(t types.TypeID) *lower.LVal {
	c := x.e.Class
	return &lower.LVal{T: t, Addr: x.ev.Alloca(c.MemType(t), c.Align(t), "local")}
}

func (x *env) cast(t *testing.T, v lower.Value, to types.TypeID) lower.Value {
	t.Helper()
	out, err := x.e.Cast(source.NoSpan, v, to)
	if err != nil {
		t.Fatalf("cast to %s: %v", x.in.TypeString(to), err)
	}
	return out
}

func TestCastRoundTrip(t *testing.T) {
	x := newEnv(t)
	i32, i64, i8, u8, u16, u32 := ir.IntType(32), ir.IntType(64), ir.IntType(8), ir.IntType(8), ir.IntType(16), ir.IntType(32)
	vp := x.b.VoidPtr

	cases := []struct {
		name string
		from types.TypeID
		to   types.TypeID
		v    ir.Value
	}{
		{"int->long", x.b.Int32, x.b.Int64, x.ev.IntConst(i32, -70000)},
		{"long->int", x.b.Int64, x.b.Int32, x.ev.IntConst(i64, 0x7fff0000)},
		{"byte->ubyte", x.b.Int8, x.b.Uint8, x.ev.IntConst(i8, -3)},
		{"ubyte->int", x.b.Uint8, x.b.Int32, x.ev.IntConst(u8, 200)},
		{"ushort->uint", x.b.Uint16, x.b.Uint32, x.ev.IntConst(u16, 0xbeef)},
		{"uint->ptr", x.b.Uint32, vp, x.ev.IntConst(u32, 0xdeadbeef)},
		{"ptr->uint", vp, x.b.Uint32, x.ev.PtrConst(0x1234)},
		{"int->double", x.b.Int32, x.b.Float64, x.ev.IntConst(i32, -123456)},
		{"float->double", x.b.Float32, x.b.Float64, x.ev.FloatConst(ir.FloatType(32), 1.5)},
		{"double->real", x.b.Float64, x.b.Float80, x.ev.FloatConst(ir.FloatType(64), 0.1)},
		{"double->long", x.b.Float64, x.b.Int64, x.ev.FloatConst(ir.FloatType(64), -42)},
		{"ptr->ptr", vp, x.in.Intern(types.MakePointer(x.b.Int32)), x.ev.PtrConst(0x2000)},
	}
	for _, tc := range cases {
		there := x.cast(t, x.imm(tc.from, tc.v), tc.to)
		back := x.cast(t, there, tc.from)
		if !bytes.Equal(x.ev.Bytes(x.e.RVal(back)), x.ev.Bytes(tc.v)) {
			t.Fatalf("%s: %x came back as %x", tc.name, x.ev.Bytes(tc.v), x.ev.Bytes(x.e.RVal(back)))
		}
	}
}

func TestCastToBool(t *testing.T) {
	x := newEnv(t)
	dg := x.in.Intern(types.MakeDelegate(types.NoTypeID))
	slice := x.in.Intern(types.MakeSlice(x.b.Int32))
	cases := []struct {
		name string
		v    lower.Value
		want uint64
	}{
		{"int 0", x.imm(x.b.Int32, x.ev.IntConst(ir.IntType(32), 0)), 0},
		{"int 7", x.imm(x.b.Int32, x.ev.IntConst(ir.IntType(32), 7)), 1},
		{"double", x.imm(x.b.Float64, x.ev.FloatConst(ir.FloatType(64), 0.5)), 1},
		{"null ptr", x.imm(x.b.VoidPtr, x.ev.PtrConst(0)), 0},
		{"ptr", x.imm(x.b.VoidPtr, x.ev.PtrConst(0x40)), 1},
		{"cfloat", x.imm(x.b.Complex32, x.ev.Pair(ir.StructType("", ir.FloatType(32), ir.FloatType(32)),
			x.ev.FloatConst(ir.FloatType(32), 0), x.ev.FloatConst(ir.FloatType(32), 2))), 1},
		{"delegate", x.imm(dg, x.ev.Zero(ir.StructType("", ir.PtrType(), ir.PtrType()))), 0},
		{"slice", &lower.Slice{T: slice, Len: x.ev.IntConst(ir.IntType(32), 3), Ptr: x.ev.PtrConst(0x40)}, 1},
	}
	for _, tc := range cases {
		got := x.cast(t, tc.v, x.b.Bool)
		if b := x.ev.Uint(x.e.RVal(got)); b != tc.want {
			t.Fatalf("%s: %d, want %d", tc.name, b, tc.want)
		}
	}
}

func TestComplexCasts(t *testing.T) {
	x := newEnv(t)
	c := x.cast(t, x.imm(x.b.Int32, x.ev.IntConst(ir.IntType(32), 3)), x.b.Complex64)
	rv := x.e.RVal(c)
	if x.ev.Float(x.ev.Extract(rv, 0)) != 3 || x.ev.Float(x.ev.Extract(rv, 1)) != 0 {
		t.Fatalf("int -> cdouble: %x", x.ev.Bytes(rv))
	}
	wide := x.cast(t, c, x.b.Complex80)
	re := x.cast(t, wide, x.b.Float64)
	if x.ev.Float(x.e.RVal(re)) != 3 {
		t.Fatalf("creal -> double: %v", x.ev.Float(x.e.RVal(re)))
	}
}

func TestSelfAssignmentSkipsCopy(t *testing.T) {
	x := newEnv(t)
	s := x.structOf("S", x.b.Int32, x.b.Int32)
	a := x.local(s)
	x.ev.Store(x.ev.IntConst(ir.IntType(64), 0x1122334455667788), a.Addr)
	before := x.ev.Memory(x.ev.Addr(a.Addr), 8)

	if err := x.e.Assign(source.NoSpan, a, a, lower.Blit); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if x.ev.MemCpyCount != 0 {
		t.Fatalf("self assignment copied %d times", x.ev.MemCpyCount)
	}
	if !bytes.Equal(x.ev.Memory(x.ev.Addr(a.Addr), 8), before) {
		t.Fatalf("self assignment changed memory")
	}

	b := x.local(s)
	if err := x.e.Assign(source.NoSpan, b, a, lower.Blit); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if x.ev.MemCpyCount != 1 || !bytes.Equal(x.ev.Memory(x.ev.Addr(b.Addr), 8), before) {
		t.Fatalf("copy: count=%d", x.ev.MemCpyCount)
	}

	empty := x.structOf("E")
	if err := x.e.Assign(source.NoSpan, x.local(empty), x.local(empty), lower.Blit); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if x.ev.MemCpyCount != 1 {
		t.Fatalf("empty struct assignment copied")
	}
}

func TestAssignScalars(t *testing.T) {
	x := newEnv(t)

	flag := x.local(x.b.Bool)
	if err := x.e.Assign(source.NoSpan, flag, x.imm(x.b.Bool, x.ev.IntConst(ir.IntType(1), 1)), lower.Blit); err != nil {
		t.Fatalf("assign bool: %v", err)
	}
	if m := x.ev.Memory(x.ev.Addr(flag.Addr), 1); m[0] != 1 {
		t.Fatalf("bool stored as %x", m)
	}
	if got := x.ev.Uint(x.e.RVal(flag)); got != 1 {
		t.Fatalf("bool reloaded as %d", got)
	}

	wide := x.local(x.b.Int64)
	if err := x.e.Assign(source.NoSpan, wide, x.imm(x.b.Int16, x.ev.IntConst(ir.IntType(16), -9)), lower.Blit); err != nil {
		t.Fatalf("assign short to long: %v", err)
	}
	if got := x.ev.Int(x.e.RVal(wide)); got != -9 {
		t.Fatalf("long = %d", got)
	}

	z := x.local(x.b.Complex32)
	if err := x.e.Assign(source.NoSpan, z, x.imm(x.b.Float64, x.ev.FloatConst(ir.FloatType(64), 2.5)), lower.Blit); err != nil {
		t.Fatalf("assign double to cfloat: %v", err)
	}
	if re := x.ev.Float(x.ev.Extract(x.e.RVal(z), 0)); re != 2.5 {
		t.Fatalf("cfloat re = %v", re)
	}
}

func TestArrayAssignment(t *testing.T) {
	x := newEnv(t)
	arr := x.in.Intern(types.MakeArray(x.b.Int32, 4))
	a, b := x.local(arr), x.local(arr)

	if err := x.e.Assign(source.NoSpan, a, x.imm(x.b.Int32, x.ev.IntConst(ir.IntType(32), 7)), lower.Blit); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := x.e.Assign(source.NoSpan, b, a, lower.Blit); err != nil {
		t.Fatalf("copy: %v", err)
	}
	want := []byte{7, 0, 0, 0, 7, 0, 0, 0, 7, 0, 0, 0, 7, 0, 0, 0}
	if got := x.ev.Memory(x.ev.Addr(b.Addr), 16); !bytes.Equal(got, want) {
		t.Fatalf("b = %x", got)
	}
	if err := x.e.Assign(source.NoSpan, a, a, lower.Blit); err != nil || x.ev.MemCpyCount != 1 {
		t.Fatalf("self array assignment: err=%v copies=%d", err, x.ev.MemCpyCount)
	}

	elem := x.structOf("R", x.b.Int32)
	x.in.SetStructSemantics(elem, true, false, true)
	rarr := x.in.Intern(types.MakeArray(elem, 3))
	hooked := 0
	x.e.CopyHook = func(et types.TypeID, dst, src ir.Value) {
		if et != elem {
			t.Fatalf("hook called for %s", x.in.TypeString(et))
		}
		hooked++
	}
	if err := x.e.Assign(source.NoSpan, x.local(rarr), x.local(rarr), lower.Copy); err != nil {
		t.Fatalf("copy assign: %v", err)
	}
	if hooked != 3 {
		t.Fatalf("copy hook ran %d times", hooked)
	}

	slice := x.in.Intern(types.MakeSlice(x.b.Int32))
	s := x.local(slice)
	if err := x.e.Assign(source.NoSpan, s, a, lower.Blit); err != nil {
		t.Fatalf("slice of static array: %v", err)
	}
	rv := x.e.RVal(s)
	if x.ev.Uint(x.ev.Extract(rv, 0)) != 4 || x.ev.Addr(x.ev.Extract(rv, 1)) != x.ev.Addr(a.Addr) {
		t.Fatalf("slice = %x", x.ev.Bytes(rv))
	}
}

func TestRepaintAliasesStorage(t *testing.T) {
	x := newEnv(t)
	p := x.local(x.b.VoidPtr)
	ip := x.in.Intern(types.MakePointer(x.b.Int32))

	out := x.cast(t, p, ip)
	lv, ok := out.(*lower.LVal)
	if !ok || lv.Addr != p.Addr {
		t.Fatalf("pointer repaint materialized a copy: %#v", out)
	}
	if err := x.e.Assign(source.NoSpan, lv, x.imm(ip, x.ev.PtrConst(0x99)), lower.Blit); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if x.ev.Addr(x.e.RVal(p)) != 0x99 {
		t.Fatalf("write through the repaint not visible")
	}

	s1 := x.structOf("A", x.b.Int32, x.b.Float32)
	s2 := x.structOf("B", x.b.Uint32, x.b.Float32)
	a := x.local(s1)
	if r := x.cast(t, a, s2).(*lower.LVal); r.Addr != a.Addr {
		t.Fatalf("struct repaint moved storage")
	}

	vec := x.in.Intern(types.MakeVector(x.b.Float32, 4))
	arr := x.in.Intern(types.MakeArray(x.b.Float32, 4))
	v := x.local(vec)
	if r := x.cast(t, v, arr).(*lower.LVal); r.Addr != v.Addr {
		t.Fatalf("vector to array cast copied an addressable vector")
	}
}

func TestSliceElementResize(t *testing.T) {
	x := newEnv(t)
	ints := x.in.Intern(types.MakeSlice(x.b.Int32))
	bs := x.in.Intern(types.MakeSlice(x.b.Uint8))
	s := &lower.Slice{T: ints, Len: x.ev.IntConst(ir.IntType(32), 3), Ptr: x.ev.PtrConst(0x80)}

	out := x.cast(t, s, bs).(*lower.Slice)
	if x.ev.Uint(out.Len) != 12 || x.ev.Addr(out.Ptr) != 0x80 {
		t.Fatalf("int[] -> ubyte[]: len=%d", x.ev.Uint(out.Len))
	}
}

func TestNullValues(t *testing.T) {
	x := newEnv(t)
	slice := x.in.Intern(types.MakeSlice(x.b.Int32))
	n, err := x.e.NullValue(source.NoSpan, slice)
	if err != nil {
		t.Fatalf("null slice: %v", err)
	}
	s := n.(*lower.Slice)
	if x.ev.Uint(s.Len) != 0 || x.ev.Addr(s.Ptr) != 0 {
		t.Fatalf("null slice = {%d, %#x}", x.ev.Uint(s.Len), x.ev.Addr(s.Ptr))
	}

	class := x.in.RegisterClass(x.in.Strings.Intern("Object"), source.NoSpan)
	fn := x.in.RegisterFn(&types.FuncSignature{Linkage: types.LinkC, Result: x.b.Void})
	for _, ty := range []types.TypeID{
		x.b.VoidPtr,
		fn,
		class,
		x.in.Intern(types.MakeDelegate(types.NoTypeID)),
		x.in.Intern(types.MakeAssocArray(x.b.Int32, x.b.Int32)),
		x.b.Float80,
		x.b.Complex64,
	} {
		v, err := x.e.NullValue(source.NoSpan, ty)
		if err != nil {
			t.Fatalf("%s: %v", x.in.TypeString(ty), err)
		}
		img := x.ev.Bytes(x.e.RVal(v))
		if len(img) == 0 || !bytes.Equal(img, make([]byte, len(img))) {
			t.Fatalf("%s: null image %x", x.in.TypeString(ty), img)
		}
	}

	fromNull := x.cast(t, x.imm(x.b.Null, x.ev.PtrConst(0)), fn)
	if got := x.ev.Addr(x.e.RVal(fromNull)); got != 0 || fromNull.Type() != fn {
		t.Fatalf("null to fn = %#x (%s)", got, x.in.TypeString(fromNull.Type()))
	}

	_, err = x.e.NullValue(source.NoSpan, x.structOf("S", x.b.Int32))
	var le *lower.Error
	if !errors.As(err, &le) || le.Kind != lower.ErrUnsupportedNullType || !le.Fatal {
		t.Fatalf("struct null: %v", err)
	}
	if x.bag.Len() != 1 || x.bag.Items()[0].Code != diag.AbiNullUnsupported {
		t.Fatalf("diagnostics: %v", x.bag.Items())
	}
}

func TestInvalidCastReportingAndGagging(t *testing.T) {
	x := newEnv(t)
	s := x.structOf("S", x.b.Int32)
	v := x.local(s)

	_, err := x.e.Cast(source.NoSpan, v, x.b.Int32)
	var le *lower.Error
	if !errors.As(err, &le) || le.Kind != lower.ErrInvalidCast || !le.Fatal {
		t.Fatalf("ungagged: %v", err)
	}
	if x.bag.Len() != 1 || x.bag.Items()[0].Code != diag.AbiInvalidCast {
		t.Fatalf("diagnostics: %v", x.bag.Items())
	}

	x.e.Gagged = true
	_, err = x.e.Cast(source.NoSpan, v, x.b.Int32)
	if !errors.As(err, &le) || le.Fatal {
		t.Fatalf("gagged: %v", err)
	}
	if x.bag.Len() != 1 {
		t.Fatalf("gagged cast reported a diagnostic")
	}
}

func TestNullLiteralCast(t *testing.T) {
	x := newEnv(t)
	null := x.imm(x.b.Null, x.ev.PtrConst(0))
	out := x.cast(t, null, x.in.Intern(types.MakeSlice(x.b.Uint8)))
	if s, ok := out.(*lower.Slice); !ok || x.ev.Uint(s.Len) != 0 {
		t.Fatalf("null -> slice: %#v", out)
	}
}

func TestAssignNativeMismatch(t *testing.T) {
	x := newEnv(t)
	// int значение с float32 представлением: после каста типы не совпадают
	odd := x.imm(x.b.Int32, x.ev.FloatConst(ir.FloatType(32), 1))

	dst := x.local(x.b.Int32)
	if err := x.e.Assign(source.NoSpan, dst, odd, lower.Blit); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := x.ev.Uint(x.e.RVal(dst)); got != 0x3f800000 {
		t.Fatalf("bit cast stored %#x", got)
	}

	x.e.Strict = true
	defer func() {
		r := recover()
		s, ok := r.(string)
		if !ok || !strings.HasPrefix(s, "lower: ") {
			t.Fatalf("strict mode: recovered %v", r)
		}
	}()
	_ = x.e.Assign(source.NoSpan, x.local(x.b.Int32), odd, lower.Blit)
}
