// Package core provides the tabular data model and the engines that move it
// between files and memory.
//
// This package is the heart of tabx, containing all interchange logic
// independent of any transport layer. It can be used by web handlers, the
// CLI, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Data model: [Dataset], [Table], [Column] and [Row] hold typed cell values.
//   - Schema: a [Schema] of [Field] definitions shapes imported tables.
//   - Codecs: format-specific [Encoder] and [Decoder] implementations register
//     themselves at init time (see the codec packages).
//   - Engines: [ExportEngine] and [ImportEngine] drive a codec, report
//     progress to a [Notifier], and can run in the background as a [Task].
//
// # Codec Registry
//
// Codecs are registered at init time using [RegisterEncoder] and
// [RegisterDecoder]. A format without a codec yields [ErrUnsupportedFormat]:
//
//	func init() {
//	    core.RegisterEncoder(core.FormatCSV, csvEncoder{})
//	    core.RegisterDecoder(core.FormatCSV, csvDecoder{})
//	}
//
// # Progress
//
// Every engine call emits OnStart, throttled OnProgress events, and a final
// OnCompleted. Runs with more than [ProgressThreshold] records report once
// per percent, so a notifier never sees more than 100 progress events.
//
// # Background Tasks
//
// ExportAsync and ImportAsync return a [Task] that can be waited on,
// cancelled, or subscribed to. Starting a new background call on an engine
// cancels the previous one with [ErrTaskSuperseded], and the engine's
// [JobLimiter] keeps two codecs from writing at the same time.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FMT001-FMT003: Format, theme and encoding errors
//   - IMP001-IMP004: Schema and workbook errors
//   - FILE001-FILE004: File size, presence and write errors
//   - JOB001-JOB005: Background job errors (cancelled, busy, not found)
package core
