package driver

import (
	"fmt"
	"strconv"
	"strings"

	"tabi/internal/ir"
	"tabi/internal/lower"
	"tabi/internal/source"
	"tabi/internal/types"
)

// ValueResult is a value computed on the unit's evaluator.
type ValueResult struct {
	Type   string
	Native string
	Bytes  []byte
	Text   string
	Ops    []string
}

// EvalCast reads lit as a value of type from, casts it to type to and
// returns the memory image of the result.
func (u *Unit) EvalCast(from, to, lit string) (res *ValueResult, err error) {
	fromID, err := u.ResolveType(from)
	if err != nil {
		return nil, err
	}
	toID, err := u.ResolveType(to)
	if err != nil {
		return nil, err
	}
	defer recoverValuePanic(&err)

	e := u.Engine(nil, u.Span)
	v, err := u.literal(e, fromID, lit)
	if err != nil {
		return nil, err
	}
	start := len(u.Eval.Ops)
	out, err := e.Cast(source.NoSpan, v, toID)
	if err != nil {
		return nil, err
	}
	return u.describeValue(e, out, start), nil
}

// EvalNull builds the null value of type t.
func (u *Unit) EvalNull(t string) (res *ValueResult, err error) {
	id, err := u.ResolveType(t)
	if err != nil {
		return nil, err
	}
	defer recoverValuePanic(&err)

	e := u.Engine(nil, u.Span)
	start := len(u.Eval.Ops)
	out, err := e.NullValue(source.NoSpan, id)
	if err != nil {
		return nil, err
	}
	return u.describeValue(e, out, start), nil
}

func recoverValuePanic(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if s, ok := r.(string); ok && strings.HasPrefix(s, "lower: ") {
		*err = fmt.Errorf("internal error: %s", strings.TrimPrefix(s, "lower: "))
		return
	}
	panic(r)
}

// literal parses lit according to the base kind of t.
func (u *Unit) literal(e *lower.Engine, t types.TypeID, lit string) (lower.Value, error) {
	lit = strings.TrimSpace(lit)
	if lit == "null" {
		return e.NullValue(source.NoSpan, t)
	}
	nt := u.Class.NativeType(t)
	switch k := u.Types.BaseKind(t); k {
	case types.KindBool:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return nil, fmt.Errorf("bad bool literal %q", lit)
		}
		var n int64
		if b {
			n = 1
		}
		return &lower.Imm{T: t, V: u.Eval.IntConst(nt, n)}, nil
	case types.KindInt:
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer literal %q: %w", lit, err)
		}
		return &lower.Imm{T: t, V: u.Eval.IntConst(nt, n)}, nil
	case types.KindUint:
		n, err := strconv.ParseUint(lit, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer literal %q: %w", lit, err)
		}
		return &lower.Imm{T: t, V: u.Eval.ConstInt(nt, n)}, nil
	case types.KindFloat:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float literal %q: %w", lit, err)
		}
		return &lower.Imm{T: t, V: u.Eval.FloatConst(nt, f)}, nil
	case types.KindPointer, types.KindClass:
		addr, err := strconv.ParseUint(lit, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad address literal %q: %w", lit, err)
		}
		return &lower.Imm{T: t, V: u.Eval.PtrConst(addr)}, nil
	default:
		return nil, fmt.Errorf("no literal form for %s values; use null", k)
	}
}

func (u *Unit) describeValue(e *lower.Engine, v lower.Value, start int) *ValueResult {
	rv := e.RVal(v)
	out := &ValueResult{
		Type:   u.Types.TypeString(v.Type()),
		Native: rv.Type().String(),
		Bytes:  u.Eval.Bytes(rv),
		Ops:    append([]string(nil), u.Eval.Ops[start:]...),
	}
	nt := rv.Type()
	switch {
	case nt.Kind == ir.Ptr:
		out.Text = fmt.Sprintf("0x%x", u.Eval.Addr(rv))
	case nt.Kind == ir.Float:
		out.Text = strconv.FormatFloat(u.Eval.Float(rv), 'g', -1, 64)
	case nt.Kind == ir.Int && u.Types.BaseKind(v.Type()) == types.KindInt:
		out.Text = strconv.FormatInt(u.Eval.Int(rv), 10)
	case nt.Kind == ir.Int:
		out.Text = strconv.FormatUint(u.Eval.Uint(rv), 10)
	default:
		out.Text = fmt.Sprintf("% x", out.Bytes)
	}
	return out
}
