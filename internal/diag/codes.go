package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Раскладка типов
	LayInfo             Code = 1000
	LayRecursiveUnsized Code = 1001
	LaySizeMismatch     Code = 1002
	LayConflictingAttrs Code = 1003
	LayLengthOverflow   Code = 1004

	// ABI и представление значений
	AbiInfo            Code = 2000
	AbiInvalidCast     Code = 2001
	AbiNullUnsupported Code = 2002
	AbiInternal        Code = 2003
	AbiSignature       Code = 2004

	// Описание юнитов (TOML)
	PrjInfo             Code = 3000
	PrjParseError       Code = 3001
	PrjUnknownType      Code = 3002
	PrjDuplicateDecl    Code = 3003
	PrjUnknownKey       Code = 3004
	PrjBadTarget        Code = 3005
	PrjInvalidValue     Code = 3006
	PrjUnknownLinkage   Code = 3007
	PrjMissingUnit      Code = 3008
	PrjSelfImport       Code = 3009
	PrjImportCycle      Code = 3010
	PrjDependencyFailed Code = 3011

	IOLoadFileError Code = 4001

	ObsInfo    Code = 5000
	ObsTimings Code = 5001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:         "Unknown error",
		LayInfo:             "Layout information",
		LayRecursiveUnsized: "recursive value type has infinite size",
		LaySizeMismatch:     "declared size disagrees with target layout",
		LayConflictingAttrs: "packed and align attributes conflict",
		LayLengthOverflow:   "array length does not fit the target",
		AbiInfo:             "ABI information",
		AbiInvalidCast:      "invalid cast",
		AbiNullUnsupported:  "type has no null value",
		AbiInternal:         "internal ABI inconsistency",
		AbiSignature:        "signature cannot be lowered",
		PrjInfo:             "Unit information",
		PrjParseError:       "malformed unit description",
		PrjUnknownType:      "unknown type",
		PrjDuplicateDecl:    "duplicate declaration",
		PrjUnknownKey:       "unknown key",
		PrjBadTarget:        "invalid target triple",
		PrjInvalidValue:     "invalid value",
		PrjUnknownLinkage:   "unknown linkage",
		PrjMissingUnit:      "imported unit not found",
		PrjSelfImport:       "unit imports itself",
		PrjImportCycle:      "unit import cycle",
		PrjDependencyFailed: "imported unit has errors",
		IOLoadFileError:     "I/O load file error",
		ObsInfo:             "Observability information",
		ObsTimings:          "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("ABI%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
