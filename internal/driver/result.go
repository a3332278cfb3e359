package driver

import (
	"tabi/internal/abi"
	"tabi/internal/diag"
	"tabi/internal/project"
)

// ParamInfo is the printable form of one native parameter.
type ParamInfo struct {
	Name    string `msgpack:"name" json:"name"`
	Slot    string `msgpack:"slot" json:"slot"`
	Native  string `msgpack:"native" json:"native"`
	Mode    string `msgpack:"mode" json:"mode"`
	Attrs   string `msgpack:"attrs,omitempty" json:"attrs,omitempty"`
	Rewrite string `msgpack:"rewrite,omitempty" json:"rewrite,omitempty"`
}

// FuncResult is one lowered declaration. It is what the disk cache stores.
type FuncResult struct {
	Name       string      `msgpack:"name" json:"name"`
	Symbol     string      `msgpack:"symbol" json:"symbol"`
	CallConv   string      `msgpack:"cc" json:"cc"`
	CallConvID int         `msgpack:"cc_id" json:"cc_id"`
	RetMode    string      `msgpack:"ret_mode" json:"ret_mode"`
	Ret        ParamInfo   `msgpack:"ret" json:"ret"`
	Params     []ParamInfo `msgpack:"params" json:"params"`
	Native     string      `msgpack:"native" json:"native"`
	Notes      []string    `msgpack:"notes,omitempty" json:"notes,omitempty"`
}

// VarResult is a mangled variable symbol.
type VarResult struct {
	Name   string `msgpack:"name" json:"name"`
	Symbol string `msgpack:"symbol" json:"symbol"`
}

// UnitResult is the outcome of lowering one unit file.
type UnitResult struct {
	Name   string
	Path   string
	Target string
	Hash   project.Digest

	Funcs []FuncResult
	Vars  []VarResult

	Bag    *diag.Bag
	Broken bool
	Cached bool
	Err    error
}

func slotName(k abi.ArgKind) string {
	switch k {
	case abi.ArgReturn:
		return "return"
	case abi.ArgSret:
		return "sret"
	case abi.ArgThis:
		return "this"
	case abi.ArgNest:
		return "nest"
	case abi.ArgVararg:
		return "vararg"
	default:
		return "param"
	}
}

func describeArg(a *abi.Arg) ParamInfo {
	p := ParamInfo{
		Name:   a.Name,
		Slot:   slotName(a.Kind),
		Native: a.Native.String(),
		Mode:   a.Mode.String(),
		Attrs:  a.Attrs.String(),
	}
	if a.Rewrite != nil {
		p.Rewrite = a.Rewrite.Name()
	}
	return p
}

func describeFunc(name, symbol string, ft *abi.FuncType) FuncResult {
	out := FuncResult{
		Name:       name,
		Symbol:     symbol,
		CallConv:   ft.CallConv.String(),
		CallConvID: ft.CallConv.ID(),
		RetMode:    ft.RetMode().String(),
		Ret:        describeArg(ft.Ret),
		Native:     ft.String(),
		Notes:      append([]string(nil), ft.Notes...),
	}
	params := ft.Params()
	out.Params = make([]ParamInfo, 0, len(params))
	for _, a := range params {
		out.Params = append(out.Params, describeArg(a))
	}
	return out
}
