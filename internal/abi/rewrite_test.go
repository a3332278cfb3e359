package abi_test

import (
	"bytes"
	"testing"

	"tabi/internal/abi"
	"tabi/internal/ir"
	"tabi/internal/target"
)

func TestIntegerRewriteRoundTrip(t *testing.T) {
	ev := ir.NewEvaluator(ir.DataLayoutFor(target.MustParse("i686-pc-linux-gnu")))
	st := ir.StructType("", ir.IntType(16), ir.IntType(8), ir.IntType(8))
	v := ev.Pair(ir.StructType("", ir.IntType(16), ir.IntType(16)),
		ev.IntConst(ir.IntType(16), 0x1234), ev.IntConst(ir.IntType(16), -2))
	v = ev.BitCast(v, st)

	r := &abi.IntegerRewrite{Bits: 32}
	packed := r.Put(ev, v)
	if packed.Type().String() != "i32" {
		t.Fatalf("packed type = %s", packed.Type())
	}
	if got := ev.Uint(packed); got != 0xfffe1234 {
		t.Fatalf("packed = %#x", got)
	}

	addr := r.Get(ev, packed, st)
	back := ev.Load(st, addr)
	if !bytes.Equal(ev.Bytes(back), ev.Bytes(v)) {
		t.Fatalf("round trip: %x, want %x", ev.Bytes(back), ev.Bytes(v))
	}
	if ev.MemCpyCount != 0 {
		t.Fatalf("integer rewrite must not copy memory")
	}
}

func TestIndirectByvalPassesCallerCopy(t *testing.T) {
	ev := ir.NewEvaluator(ir.DataLayoutFor(target.MustParse("i686-pc-linux-gnu")))
	st := ir.StructType("", ir.IntType(32), ir.IntType(32), ir.IntType(32))
	v := ev.Load(st, ev.Alloca(st, 4, "src"))

	r := &abi.IndirectByvalRewrite{Align: 16}
	p := r.Put(ev, v)
	if p.Type().Kind != ir.Ptr || ev.Addr(p)%16 != 0 {
		t.Fatalf("copy at %#x", ev.Addr(p))
	}
	if r.Get(ev, p, st) != p {
		t.Fatalf("callee must see the caller's copy")
	}
}

func TestPromoteRewriteNarrowsBack(t *testing.T) {
	ev := ir.NewEvaluator(ir.DataLayoutFor(target.MustParse("i686-pc-linux-gnu")))
	r := &abi.PromoteRewrite{To: ir.IntType(32), Signed: true}
	wide := r.Put(ev, ev.IntConst(ir.IntType(8), -5))
	if ev.Int(wide) != -5 || wide.Type().Bits != 32 {
		t.Fatalf("promoted = %d (%s)", ev.Int(wide), wide.Type())
	}
	back := ev.Load(ir.IntType(8), r.Get(ev, wide, ir.IntType(8)))
	if ev.Int(back) != -5 {
		t.Fatalf("narrowed = %d", ev.Int(back))
	}

	f := &abi.PromoteRewrite{To: ir.FloatType(64)}
	d := f.Put(ev, ev.FloatConst(ir.FloatType(32), 1.5))
	if ev.Float(d) != 1.5 || d.Type().Bits != 64 {
		t.Fatalf("float promotion = %v", ev.Float(d))
	}
}
