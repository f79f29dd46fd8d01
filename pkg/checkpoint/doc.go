// Package checkpoint models Langmuir simulation checkpoints: the parameter
// set, carrier and defect positions, traps with their potentials, flux
// counters and random number state.
//
// A checkpoint is stored as text. Each list section starts with a header line
// such as "[Traps]", followed by a count and that many values. The
// "[Parameters]" section holds "key = value" lines. Lines starting with '#'
// are comments.
//
// Checkpoints can be built from images with FromImage: the image becomes the
// x-y plane of the grid and every pixel on the trap side of the threshold
// becomes a trap site in every z layer. An optional template checkpoint
// supplies the remaining parameters and state.
//
// Files whose name ends in ".gz" are written gzip compressed; Load detects
// compression by content.
package checkpoint
