package lower

import (
	"fmt"

	"tabi/internal/source"
	"tabi/internal/types"
)

// ErrKind classifies value lowering failures.
type ErrKind uint8

const (
	ErrInvalidCast ErrKind = iota + 1
	ErrUnsupportedNullType
)

func (k ErrKind) String() string {
	switch k {
	case ErrInvalidCast:
		return "invalid cast"
	case ErrUnsupportedNullType:
		return "unsupported null type"
	default:
		return "unknown"
	}
}

// Error is returned by Cast, Assign and NullValue. Fatal errors abort the
// enclosing unit; a non-fatal one is a gagged failure the caller may retry
// or drop.
type Error struct {
	Kind  ErrKind
	From  types.TypeID
	To    types.TypeID
	Span  source.Span
	Msg   string
	Fatal bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}
