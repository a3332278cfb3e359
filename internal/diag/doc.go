// Package diag defines the diagnostic model shared by the layout engine, the
// value lowering engines and the unit loader.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – tri-level enum (Info, Warning, Error).
//   - Code – compact numeric identifier with a stable string form (LAY, ABI,
//     PRJ, IO and OBS ranges, see codes.go).
//   - Message – short human oriented text.
//   - Primary – the source.Span in the unit description the finding belongs
//     to; source.NoSpan for values synthesised by the backend.
//   - Notes – optional secondary spans/messages.
//
// Producers talk to a Reporter. BagReporter stores into a Bag, DedupReporter
// drops repeats, NopReporter discards everything (gagged evaluation).
// FormatShortDiagnostics renders a Bag for the CLI.
package diag
