package ir

import (
	"encoding/binary"
	"math"
	"math/big"
)

const (
	fp80Bias    = 16383
	fp80MaxExp  = 0x7fff
	fp80IntBit  = uint64(1) << 63
	fp80Mantiss = 64
)

// extended is a decoded x87 80-bit value.
type extended struct {
	f   *big.Float // nil for NaN
	nan bool
}

func newExtended() *big.Float {
	return new(big.Float).SetPrec(fp80Mantiss).SetMode(big.ToNearestEven)
}

func encodeFP80(x extended) [10]byte {
	var out [10]byte
	var sign uint16
	var exp uint16
	var mant uint64
	switch {
	case x.nan || x.f == nil:
		exp, mant = fp80MaxExp, fp80IntBit|1<<62
	case x.f.IsInf():
		exp, mant = fp80MaxExp, fp80IntBit
		if x.f.Signbit() {
			sign = 1
		}
	case x.f.Sign() == 0:
		if x.f.Signbit() {
			sign = 1
		}
	default:
		f := newExtended().Set(x.f)
		if f.Signbit() {
			sign = 1
			f.Neg(f)
		}
		m := newExtended()
		e := f.MantExp(m) // f = m * 2^e, 0.5 <= m < 1
		m.SetMantExp(m, fp80Mantiss)
		u, _ := m.Uint64()
		exp = uint16(e - 1 + fp80Bias) //nolint:gosec // finite doubles and widened ints stay in range
		mant = u
	}
	binary.LittleEndian.PutUint64(out[:8], mant)
	binary.LittleEndian.PutUint16(out[8:], sign<<15|exp)
	return out
}

func decodeFP80(b []byte) extended {
	mant := binary.LittleEndian.Uint64(b[:8])
	se := binary.LittleEndian.Uint16(b[8:10])
	neg := se>>15 == 1
	exp := int(se & fp80MaxExp)
	f := newExtended()
	switch {
	case exp == fp80MaxExp && mant<<1 == 0:
		f.SetInf(neg)
		return extended{f: f}
	case exp == fp80MaxExp:
		return extended{nan: true}
	case exp == 0 && mant == 0:
		if neg {
			f.Neg(f)
		}
		return extended{f: f}
	}
	if exp == 0 {
		exp = 1 // denormal
	}
	f.SetUint64(mant)
	f.SetMantExp(f, exp-fp80Bias-(fp80Mantiss-1))
	if neg {
		f.Neg(f)
	}
	return extended{f: f}
}

func extendedFromFloat64(v float64) extended {
	if math.IsNaN(v) {
		return extended{nan: true}
	}
	return extended{f: newExtended().SetFloat64(v)}
}

func (x extended) float64() float64 {
	if x.nan || x.f == nil {
		return math.NaN()
	}
	v, _ := x.f.Float64()
	return v
}

func (x extended) float32() float32 {
	if x.nan || x.f == nil {
		return float32(math.NaN())
	}
	v, _ := x.f.Float32()
	return v
}
