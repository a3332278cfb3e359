package layout

import (
	"fmt"
	"strings"

	"tabi/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive type with no fixed size.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	// LayoutErrSizeMismatch: the front end declared a size the target layout disagrees with.
	LayoutErrSizeMismatch
	LayoutErrLengthConversion
	LayoutErrConflictingAttrs
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind     LayoutErrorKind
	Type     types.TypeID
	Cycle    []types.TypeID // for LayoutErrRecursiveUnsized
	Declared int            // for LayoutErrSizeMismatch
	Computed int            // for LayoutErrSizeMismatch
	Err      error          // for LayoutErrLengthConversion
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrSizeMismatch:
		return fmt.Sprintf("declared size %d of type#%d does not match target layout size %d", e.Declared, e.Type, e.Computed)
	case LayoutErrLengthConversion:
		if e.Err != nil {
			return fmt.Sprintf("array length conversion error (type#%d): %v", e.Type, e.Err)
		}
		return fmt.Sprintf("array length conversion error (type#%d)", e.Type)
	case LayoutErrConflictingAttrs:
		return fmt.Sprintf("packed conflicts with align (type#%d)", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
