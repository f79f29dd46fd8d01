// Package storage provides output path formatting and file persistence for
// checkpoints and preview images.
//
// The storage package handles:
//   - Building output paths from a stub, an optional name and an extension
//   - Atomic writes using a temporary file, fsync and rename
//   - Transparent gzip compression for paths ending in ".gz"
//   - Transparent gzip detection when reading
//
// Usage:
//
//	path := storage.FormatOutput("sim", "", "inp") // "sim.inp"
//	err := storage.AtomicWrite(path, func(w io.Writer) error {
//	    return chk.Encode(w)
//	})
package storage
