package ir

import (
	"math"
	"strings"
	"testing"

	"tabi/internal/target"
)

func newI686() *Evaluator {
	return NewEvaluator(DataLayoutFor(target.MustParse("i686-pc-linux-gnu")))
}

func TestTypeString(t *testing.T) {
	cases := map[string]*Type{
		"i32":                  IntType(32),
		"x86_fp80":             FloatType(80),
		"[4 x i8]":             ArrayType(4, IntType(8)),
		"<4 x float>":          VectorType(4, FloatType(32)),
		"{ i32, ptr }":         StructType("", IntType(32), PtrType()),
		"%S":                   StructType("S", IntType(8)),
		"{ double, double }":   StructType("", FloatType(64), FloatType(64)),
		"[2 x { i32, float }]": ArrayType(2, StructType("", IntType(32), FloatType(32))),
	}
	for want, ty := range cases {
		if got := ty.String(); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestDataLayoutI686(t *testing.T) {
	dl := DataLayoutFor(target.MustParse("i686-pc-linux-gnu"))
	s := StructType("", IntType(8), FloatType(64))
	if dl.Size(s) != 12 || dl.Align(s) != 4 || dl.Offset(s, 1) != 4 {
		t.Fatalf("{i8,double}: size=%d align=%d off=%d", dl.Size(s), dl.Align(s), dl.Offset(s, 1))
	}
	if dl.Size(FloatType(80)) != 12 {
		t.Fatalf("x86_fp80 size %d", dl.Size(FloatType(80)))
	}
}

func TestIntegerConversions(t *testing.T) {
	e := newI686()
	v := e.IntConst(IntType(32), -2)
	if got := e.Int(e.Trunc(v, IntType(8))); got != -2 {
		t.Fatalf("trunc: %d", got)
	}
	if got := e.Uint(e.ZExt(e.Trunc(v, IntType(8)), IntType(32))); got != 0xfe {
		t.Fatalf("zext: %#x", got)
	}
	if got := e.Int(e.SExt(e.Trunc(v, IntType(8)), IntType(64))); got != -2 {
		t.Fatalf("sext: %d", got)
	}
}

func TestFP80RoundTrip(t *testing.T) {
	e := newI686()
	for _, x := range []int64{0, 1, -1, 1 << 62, math.MinInt64 + 1, 123456789012345} {
		r := e.SIToFP(e.IntConst(IntType(64), x), FloatType(80))
		if got := e.Int(e.FPToSI(r, IntType(64))); got != x {
			t.Fatalf("int64 %d via real: got %d", x, got)
		}
	}
	for _, f := range []float64{0.5, -3.25, 1e300, math.Inf(1), math.SmallestNonzeroFloat64 * 4} {
		r := e.FPExt(e.FloatConst(FloatType(64), f), FloatType(80))
		if got := e.Float(e.FPTrunc(r, FloatType(64))); got != f {
			t.Fatalf("double %v via real: got %v", f, got)
		}
	}
	nan := e.FPExt(e.FloatConst(FloatType(32), math.NaN()), FloatType(80))
	if got := e.Float(nan); !math.IsNaN(got) {
		t.Fatalf("nan lost: %v", got)
	}
}

func TestMemoryAndPairs(t *testing.T) {
	e := newI686()
	st := StructType("", IntType(32), PtrType())
	slot := e.Alloca(st, 0, "s")
	pair := e.Pair(st, e.IntConst(IntType(32), 3), e.PtrConst(0x40))
	e.Store(pair, slot)
	back := e.Load(st, slot)
	if e.Int(e.Extract(back, 0)) != 3 || e.Addr(e.Extract(back, 1)) != 0x40 {
		t.Fatalf("pair round trip: %v", back)
	}
	f := e.Load(PtrType(), e.ElemAddr(st, slot, 1))
	if e.Addr(f) != 0x40 {
		t.Fatalf("elem addr load: %v", f)
	}
}

func TestMemCpyCountsAndRejectsOverlap(t *testing.T) {
	e := newI686()
	a := e.Alloca(ArrayType(8, IntType(8)), 0, "a")
	b := e.Alloca(ArrayType(8, IntType(8)), 0, "b")
	e.MemCpy(b, a, 8)
	if e.MemCpyCount != 1 {
		t.Fatalf("memcpy count %d", e.MemCpyCount)
	}
	defer func() {
		r := recover()
		if r == nil || !strings.Contains(r.(string), "overlapping") {
			t.Fatalf("expected overlap panic, got %v", r)
		}
	}()
	e.MemCpy(a, a, 8)
}

func TestBitCastRequiresSameSize(t *testing.T) {
	e := newI686()
	v := e.BitCast(e.FloatConst(FloatType(32), 1), IntType(32))
	if e.Uint(v) != 0x3f800000 {
		t.Fatalf("bitcast float->i32: %#x", e.Uint(v))
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected size mismatch panic")
		}
	}()
	e.BitCast(v, IntType(64))
}
