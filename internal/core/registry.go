package core

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Encoder writes a dataset in one format.
type Encoder interface {
	Encode(run *Run, ds *Dataset, opts ExportOptions, w io.Writer) error
}

// Decoder reads one format into a table.
//
// CountRows is the pre-pass that sizes progress reporting; a zero count makes
// the import a no-op. Decode reports per-row problems through run.AddError
// and returns an error only when the source cannot be read at all. The schema
// is nil when it must be inferred from the source.
type Decoder interface {
	CountRows(src Source) (int, error)
	Decode(run *Run, src Source, schema *Schema) (*Table, error)
}

var (
	encoders   = make(map[Format]Encoder)
	decoders   = make(map[Format]Decoder)
	registryMu sync.RWMutex
)

// RegisterEncoder adds an export codec to the registry.
// Panics if the format already has an encoder.
func RegisterEncoder(f Format, enc Encoder) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := encoders[f]; exists {
		panic(fmt.Sprintf("encoder already registered: %s", f))
	}
	encoders[f] = enc
}

// RegisterDecoder adds an import codec to the registry.
// Panics if the format already has a decoder.
func RegisterDecoder(f Format, dec Decoder) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := decoders[f]; exists {
		panic(fmt.Sprintf("decoder already registered: %s", f))
	}
	decoders[f] = dec
}

// LookupEncoder returns the encoder for a format.
func LookupEncoder(f Format) (Encoder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	enc, ok := encoders[f]
	return enc, ok
}

// LookupDecoder returns the decoder for a format.
func LookupDecoder(f Format) (Decoder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	dec, ok := decoders[f]
	return dec, ok
}

// ExportFormats returns all formats with a registered encoder, in enum order.
func ExportFormats() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedFormats(encoders)
}

// ImportFormats returns all formats with a registered decoder, in enum order.
func ImportFormats() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedFormats(decoders)
}

func sortedFormats[T any](m map[Format]T) []Format {
	out := make([]Format, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// unregisterAll removes every codec. Used by tests that install fakes.
func unregisterAll() {
	registryMu.Lock()
	defer registryMu.Unlock()
	encoders = make(map[Format]Encoder)
	decoders = make(map[Format]Decoder)
}
