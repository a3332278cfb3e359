package ir

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Const is a value produced by the Evaluator: the little-endian in-memory
// image of a value of type T.
type Const struct {
	T *Type
	B []byte
}

func (c *Const) Type() *Type { return c.T }

func (c *Const) String() string {
	return fmt.Sprintf("%s %x", c.T, c.B)
}

type block struct {
	base uint64
	data []byte
	name string
}

// Evaluator is a Builder that executes every request immediately against a
// flat memory. Pointers are plain addresses; address zero is never mapped.
type Evaluator struct {
	Layout DataLayout

	// MemCpyCount counts MemCpy requests.
	MemCpyCount int
	// Ops records one line per emitted instruction.
	Ops []string

	blocks []block
	next   uint64
}

var _ Builder = (*Evaluator)(nil)

func NewEvaluator(dl DataLayout) *Evaluator {
	return &Evaluator{Layout: dl, next: 0x1000}
}

func (e *Evaluator) record(format string, args ...any) {
	e.Ops = append(e.Ops, fmt.Sprintf(format, args...))
}

func (e *Evaluator) constOf(v Value) *Const {
	c, ok := v.(*Const)
	if !ok || c == nil {
		panic(fmt.Sprintf("ir: foreign value %T", v))
	}
	return c
}

func (e *Evaluator) newConst(t *Type) *Const {
	return &Const{T: t, B: make([]byte, e.Layout.Size(t))}
}

// --- constructors and readers used by callers and tests ---

// IntConst returns an integer constant of type t holding v.
func (e *Evaluator) IntConst(t *Type, v int64) *Const {
	c := e.newConst(t)
	putUint(c.B, uint64(v)&mask(t.Bits)) //nolint:gosec // two's complement image
	return c
}

// FloatConst returns a floating constant of type t holding v.
func (e *Evaluator) FloatConst(t *Type, v float64) *Const {
	return e.fromExtended(t, extendedFromFloat64(v))
}

// PtrConst returns a pointer holding addr.
func (e *Evaluator) PtrConst(addr uint64) *Const {
	c := e.newConst(PtrType())
	putUint(c.B, addr)
	return c
}

// Int reads v as a sign-extended integer.
func (e *Evaluator) Int(v Value) int64 {
	c := e.constOf(v)
	return signExtend(getUint(c.B)&mask(c.T.Bits), c.T.Bits)
}

// Uint reads v as a zero-extended integer.
func (e *Evaluator) Uint(v Value) uint64 {
	c := e.constOf(v)
	if c.T.Kind == Ptr {
		return getUint(c.B)
	}
	return getUint(c.B) & mask(c.T.Bits)
}

// Float reads a floating value, rounding x86_fp80 to double.
func (e *Evaluator) Float(v Value) float64 {
	return e.extendedOf(e.constOf(v)).float64()
}

// Addr reads a pointer value.
func (e *Evaluator) Addr(v Value) uint64 {
	return getUint(e.constOf(v).B)
}

// Bytes returns the memory image of v.
func (e *Evaluator) Bytes(v Value) []byte {
	return bytes.Clone(e.constOf(v).B)
}

// Memory returns a copy of n bytes at addr.
func (e *Evaluator) Memory(addr uint64, n int) []byte {
	return bytes.Clone(e.slice(addr, n))
}

// --- integer and pointer conversions ---

func (e *Evaluator) Trunc(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("trunc %s to %s", c.T, to)
	return e.uintConst(to, getUint(c.B))
}

func (e *Evaluator) ZExt(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("zext %s to %s", c.T, to)
	return e.uintConst(to, getUint(c.B)&mask(c.T.Bits))
}

func (e *Evaluator) SExt(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("sext %s to %s", c.T, to)
	return e.uintConst(to, uint64(signExtend(getUint(c.B)&mask(c.T.Bits), c.T.Bits))) //nolint:gosec // two's complement image
}

func (e *Evaluator) PtrToInt(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("ptrtoint %s to %s", c.T, to)
	return e.uintConst(to, getUint(c.B))
}

func (e *Evaluator) IntToPtr(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("inttoptr %s to %s", c.T, to)
	out := e.newConst(to)
	putUint(out.B, getUint(c.B)&mask(c.T.Bits))
	return out
}

func (e *Evaluator) uintConst(t *Type, u uint64) *Const {
	c := e.newConst(t)
	putUint(c.B, u&mask(t.Bits))
	return c
}

// --- floating conversions ---

func (e *Evaluator) FPExt(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("fpext %s to %s", c.T, to)
	return e.fromExtended(to, e.extendedOf(c))
}

func (e *Evaluator) FPTrunc(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("fptrunc %s to %s", c.T, to)
	return e.fromExtended(to, e.extendedOf(c))
}

func (e *Evaluator) FPToSI(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("fptosi %s to %s", c.T, to)
	x := e.extendedOf(c)
	var i int64
	if !x.nan {
		i, _ = x.f.Int64()
	}
	return e.uintConst(to, uint64(i)) //nolint:gosec // two's complement image
}

func (e *Evaluator) FPToUI(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("fptoui %s to %s", c.T, to)
	x := e.extendedOf(c)
	var u uint64
	if !x.nan {
		u, _ = x.f.Uint64()
	}
	return e.uintConst(to, u)
}

func (e *Evaluator) SIToFP(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("sitofp %s to %s", c.T, to)
	f := newExtended().SetInt64(signExtend(getUint(c.B)&mask(c.T.Bits), c.T.Bits))
	return e.fromExtended(to, extended{f: f})
}

func (e *Evaluator) UIToFP(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("uitofp %s to %s", c.T, to)
	f := newExtended().SetUint64(getUint(c.B) & mask(c.T.Bits))
	return e.fromExtended(to, extended{f: f})
}

func (e *Evaluator) extendedOf(c *Const) extended {
	if c.T.Kind != Float {
		panic(fmt.Sprintf("ir: %s is not a floating type", c.T))
	}
	switch c.T.Bits {
	case 32:
		return extendedFromFloat64(float64(math.Float32frombits(binary.LittleEndian.Uint32(c.B))))
	case 64:
		return extendedFromFloat64(math.Float64frombits(binary.LittleEndian.Uint64(c.B)))
	default:
		return decodeFP80(c.B)
	}
}

func (e *Evaluator) fromExtended(t *Type, x extended) *Const {
	c := e.newConst(t)
	switch t.Bits {
	case 32:
		binary.LittleEndian.PutUint32(c.B, math.Float32bits(x.float32()))
	case 64:
		binary.LittleEndian.PutUint64(c.B, math.Float64bits(x.float64()))
	default:
		img := encodeFP80(x)
		copy(c.B, img[:])
	}
	return c
}

// BitCast reinterprets the bytes of v. Both types must have the same size.
func (e *Evaluator) BitCast(v Value, to *Type) Value {
	c := e.constOf(v)
	e.record("bitcast %s to %s", c.T, to)
	if n := e.Layout.Size(to); n != len(c.B) {
		panic(fmt.Sprintf("ir: bitcast %s (%d bytes) to %s (%d bytes)", c.T, len(c.B), to, n))
	}
	return &Const{T: to, B: bytes.Clone(c.B)}
}

// --- comparisons ---

func (e *Evaluator) ICmpNE(a, b Value) Value {
	ca, cb := e.constOf(a), e.constOf(b)
	e.record("icmp ne %s", ca.T)
	return e.boolConst(!bytes.Equal(ca.B, cb.B))
}

func (e *Evaluator) FCmpUNE(a, b Value) Value {
	ca, cb := e.constOf(a), e.constOf(b)
	e.record("fcmp une %s", ca.T)
	xa, xb := e.extendedOf(ca), e.extendedOf(cb)
	if xa.nan || xb.nan {
		return e.boolConst(true)
	}
	return e.boolConst(xa.f.Cmp(xb.f) != 0)
}

func (e *Evaluator) Or(a, b Value) Value {
	ca, cb := e.constOf(a), e.constOf(b)
	e.record("or %s", ca.T)
	return e.uintConst(ca.T, getUint(ca.B)|getUint(cb.B))
}

func (e *Evaluator) Mul(a, b Value) Value {
	ca, cb := e.constOf(a), e.constOf(b)
	e.record("mul %s", ca.T)
	return e.uintConst(ca.T, getUint(ca.B)*getUint(cb.B))
}

func (e *Evaluator) UDiv(a, b Value) Value {
	ca, cb := e.constOf(a), e.constOf(b)
	e.record("udiv %s", ca.T)
	d := getUint(cb.B) & mask(cb.T.Bits)
	if d == 0 {
		panic("ir: division by zero")
	}
	return e.uintConst(ca.T, (getUint(ca.B)&mask(ca.T.Bits))/d)
}

func (e *Evaluator) boolConst(v bool) *Const {
	c := e.newConst(IntType(1))
	if v {
		c.B[0] = 1
	}
	return c
}

// --- aggregates ---

func (e *Evaluator) Zero(t *Type) Value {
	return e.newConst(t)
}

func (e *Evaluator) ConstInt(t *Type, v uint64) Value {
	return e.uintConst(t, v)
}

func (e *Evaluator) Pair(t *Type, a, b Value) Value {
	out := e.newConst(t)
	for i, v := range []Value{a, b} {
		c := e.constOf(v)
		off := e.Layout.Offset(t, i)
		copy(out.B[off:off+e.Layout.Size(t.ElemType(i))], c.B)
	}
	return out
}

func (e *Evaluator) Extract(agg Value, idx int) Value {
	c := e.constOf(agg)
	et := c.T.ElemType(idx)
	if et == nil {
		panic(fmt.Sprintf("ir: extractvalue from non-aggregate %s", c.T))
	}
	off := e.Layout.Offset(c.T, idx)
	return &Const{T: et, B: bytes.Clone(c.B[off : off+e.Layout.Size(et)])}
}

// --- memory ---

func (e *Evaluator) Alloca(t *Type, align int, name string) Value {
	size := max(e.Layout.Size(t), 1)
	align = max(align, e.Layout.Align(t), 1)
	base := uint64(alignTo(int(e.next), align)) //nolint:gosec // addresses stay small
	e.blocks = append(e.blocks, block{base: base, data: make([]byte, size), name: name})
	e.next = base + uint64(size) + 16 //nolint:gosec // size is positive
	e.record("alloca %s, align %d ; %s", t, align, name)
	return e.PtrConst(base)
}

func (e *Evaluator) ElemAddr(t *Type, addr Value, idx int) Value {
	off := e.Layout.Offset(t, idx)
	return e.PtrConst(e.Addr(addr) + uint64(off)) //nolint:gosec // offsets are non-negative
}

func (e *Evaluator) Load(t *Type, addr Value) Value {
	e.record("load %s", t)
	return &Const{T: t, B: bytes.Clone(e.slice(e.Addr(addr), e.Layout.Size(t)))}
}

func (e *Evaluator) Store(v, addr Value) {
	c := e.constOf(v)
	e.record("store %s", c.T)
	copy(e.slice(e.Addr(addr), len(c.B)), c.B)
}

// MemCpy copies size bytes. Overlapping ranges are a lowering bug and panic.
func (e *Evaluator) MemCpy(dst, src Value, size int) {
	e.MemCpyCount++
	e.record("memcpy %d", size)
	d, s := e.Addr(dst), e.Addr(src)
	n := uint64(size) //nolint:gosec // sizes are non-negative
	if size > 0 && d < s+n && s < d+n {
		panic(fmt.Sprintf("ir: overlapping memcpy %#x <- %#x (%d bytes)", d, s, size))
	}
	copy(e.slice(d, size), e.slice(s, size))
}

func (e *Evaluator) slice(addr uint64, n int) []byte {
	i := sort.Search(len(e.blocks), func(i int) bool { return e.blocks[i].base > addr }) - 1
	if i < 0 {
		panic(fmt.Sprintf("ir: access to unmapped address %#x", addr))
	}
	b := e.blocks[i]
	off := addr - b.base
	if off+uint64(n) > uint64(len(b.data)) { //nolint:gosec // n is non-negative
		panic(fmt.Sprintf("ir: access of %d bytes at %#x overruns %q", n, addr, b.name))
	}
	return b.data[off : off+uint64(n)] //nolint:gosec // checked above
}

func mask(bits int) uint64 {
	if bits <= 0 || bits >= 64 {
		return math.MaxUint64
	}
	return 1<<uint(bits) - 1
}

func signExtend(u uint64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return int64(u) //nolint:gosec // two's complement image
	}
	shift := uint(64 - bits)
	return int64(u<<shift) >> shift //nolint:gosec // two's complement image
}

func putUint(b []byte, u uint64) {
	for i := 0; i < len(b) && i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getUint(b []byte) uint64 {
	var u uint64
	for i := 0; i < len(b) && i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return u
}
