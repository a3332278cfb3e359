package project

import (
	"tabi/internal/source"
	"tabi/internal/types"
)

// raw TOML shape of a unit file

type unitFile struct {
	Unit    unitSection   `toml:"unit"`
	Target  targetSection `toml:"target"`
	Structs []structEntry `toml:"struct"`
	Enums   []enumEntry   `toml:"enum"`
	Classes []classEntry  `toml:"class"`
	Funcs   []funcEntry   `toml:"func"`
	Vars    []varEntry    `toml:"var"`
}

type unitSection struct {
	Name    string   `toml:"name"`
	Imports []string `toml:"imports"`
}

type targetSection struct {
	Triple string `toml:"triple"`
	TLS    string `toml:"tls"`
}

type structEntry struct {
	Name   string   `toml:"name"`
	Fields []string `toml:"fields"`
	POD    *bool    `toml:"pod"`
	Ctor   bool     `toml:"ctor"`
	Dtor   bool     `toml:"dtor"`
	Size   *int     `toml:"size"`
	Packed bool     `toml:"packed"`
	Align  *int     `toml:"align"`
}

type enumEntry struct {
	Name string `toml:"name"`
	Base string `toml:"base"`
}

type classEntry struct {
	Name string `toml:"name"`
}

type funcEntry struct {
	Name      string   `toml:"name"`
	Linkage   string   `toml:"linkage"`
	VarArgs   string   `toml:"varargs"`
	Result    string   `toml:"result"`
	ResultRef bool     `toml:"result_ref"`
	Params    []string `toml:"params"`
	This      bool     `toml:"this"`
	Nest      bool     `toml:"nest"`
	Static    bool     `toml:"static"`
}

type varEntry struct {
	Name    string `toml:"name"`
	Linkage string `toml:"linkage"`
	Type    string `toml:"type"`
}

// Unit is a validated unit description. Type expressions are parsed but not
// yet resolved; see Populate.
type Unit struct {
	Meta UnitMeta
	File source.FileID

	Triple     string
	TripleSpan source.Span
	TLS        string

	Structs []StructDecl
	Enums   []EnumDecl
	Classes []ClassDecl
	Funcs   []FuncDecl
	Vars    []VarDecl
}

type StructDecl struct {
	Name   string
	Span   source.Span
	Fields []ParamExpr
	POD    bool
	Ctor   bool
	Dtor   bool
	Size   *int
	Packed bool
	Align  *int
}

type EnumDecl struct {
	Name string
	Span source.Span
	Base *TypeExpr
}

type ClassDecl struct {
	Name string
	Span source.Span
}

type FuncDecl struct {
	Name      string
	Span      source.Span
	Linkage   types.Linkage
	VarArgs   types.VarArgs
	Result    *TypeExpr
	ResultRef bool
	Params    []ParamExpr
	This      bool
	Nest      bool
}

type VarDecl struct {
	Name    string
	Span    source.Span
	Linkage types.Linkage
	Type    *TypeExpr // nil when not given
}
