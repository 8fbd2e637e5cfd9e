// Package value implements the tagged word representation of Skink
// values and the mark-and-sweep heap that backs strings and lists.
//
// This package contains:
//   - Tagged 64-bit Value words (inline integers, constants, blocks,
//     heap object references)
//   - The shared heap object header with embedded/spilled payload storage
//   - The Heap: allocation arena, pause/unpause, root registration, and
//     mark-and-sweep collection
package value
