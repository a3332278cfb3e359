package diag

// Severity orders diagnostics; a unit with a SevError diagnostic is broken.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

// String is the label printed in front of a diagnostic.
func (s Severity) String() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "info"
	}
}
