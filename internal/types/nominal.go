package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"tabi/internal/source"
)

// StructField describes a single field inside a nominal struct type.
type StructField struct {
	Name source.StringID
	Type TypeID
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Name   source.StringID
	Decl   source.Span
	Fields []StructField

	// Copy semantics as resolved by the front end.
	POD     bool // no postblit, copy ctor, dtor or other copy hooks
	HasCtor bool // has a user constructor (matters for MSVC++ only)
	HasDtor bool

	// Size as declared by the front end, nil when unknown. The layout engine
	// must agree with it.
	Size *int
}

// ClassInfo stores metadata for a class type; class values are references.
type ClassInfo struct {
	Name source.StringID
	Decl source.Span
}

// EnumInfo stores metadata for a named enum type.
type EnumInfo struct {
	Name source.StringID
	Decl source.Span
	Base TypeID
}

// RegisterStruct allocates a nominal struct type slot and returns its TypeID.
// New structs are plain old data until told otherwise.
func (in *Interner) RegisterStruct(name source.StringID, decl source.Span) TypeID {
	in.structs = append(in.structs, StructInfo{Name: name, Decl: decl, POD: true})
	return in.internRaw(Type{Kind: KindStruct, Payload: slotOf(len(in.structs)-1, "struct")})
}

// SetStructFields stores the resolved field descriptors for the struct type.
func (in *Interner) SetStructFields(typeID TypeID, fields []StructField) {
	info := in.structInfo(typeID)
	if info == nil {
		return
	}
	info.Fields = slices.Clone(fields)
}

// SetStructSemantics records the copy/destruction properties of a struct.
func (in *Interner) SetStructSemantics(typeID TypeID, pod, hasCtor, hasDtor bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return
	}
	info.POD = pod && !hasDtor
	info.HasCtor = hasCtor
	info.HasDtor = hasDtor
}

// SetStructSize records the front-end computed size of a struct.
func (in *Interner) SetStructSize(typeID TypeID, size int) {
	info := in.structInfo(typeID)
	if info == nil {
		return
	}
	info.Size = &size
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(typeID TypeID) (*StructInfo, bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// RegisterClass allocates a class type.
func (in *Interner) RegisterClass(name source.StringID, decl source.Span) TypeID {
	in.classes = append(in.classes, ClassInfo{Name: name, Decl: decl})
	return in.internRaw(Type{Kind: KindClass, Payload: slotOf(len(in.classes)-1, "class")})
}

// ClassInfo returns metadata for a class TypeID.
func (in *Interner) ClassInfo(typeID TypeID) (*ClassInfo, bool) {
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindClass || tt.Payload == 0 || int(tt.Payload) >= len(in.classes) {
		return nil, false
	}
	return &in.classes[tt.Payload], true
}

// RegisterEnum allocates an enum type over base.
func (in *Interner) RegisterEnum(name source.StringID, decl source.Span, base TypeID) TypeID {
	in.enums = append(in.enums, EnumInfo{Name: name, Decl: decl, Base: base})
	return in.internRaw(Type{Kind: KindEnum, Payload: slotOf(len(in.enums)-1, "enum")})
}

// EnumInfo returns metadata for an enum TypeID.
func (in *Interner) EnumInfo(typeID TypeID) (*EnumInfo, bool) {
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindEnum || tt.Payload == 0 || int(tt.Payload) >= len(in.enums) {
		return nil, false
	}
	return &in.enums[tt.Payload], true
}

// Name returns the declared name of a nominal type, "" for structural ones.
func (in *Interner) Name(id TypeID) string {
	var name source.StringID
	if info, ok := in.StructInfo(id); ok {
		name = info.Name
	} else if info, ok := in.ClassInfo(id); ok {
		name = info.Name
	} else if info, ok := in.EnumInfo(id); ok {
		name = info.Name
	}
	if name == source.NoStringID || in.Strings == nil {
		return ""
	}
	s, _ := in.Strings.Lookup(name)
	return s
}

func (in *Interner) structInfo(typeID TypeID) *StructInfo {
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}

func slotOf(n int, what string) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("%s info overflow: %w", what, err))
	}
	return slot
}
