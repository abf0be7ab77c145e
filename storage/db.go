// Package storage provides the LevelDB key-value backend that satisfies
// core.KVStore; the in-memory store used by tests is internal/testutil's
// MemDB. The
// contract itself is declared in core, not here, so that core never
// imports storage — only storage imports core, for the error values and
// types it persists.
package storage

import "github.com/nanocurrency/nano-node-sub002/core"

// DB, Batch and Iterator are aliases of the core package's storage
// contract, kept under the storage package name for readability at call
// sites that only deal with backends (e.g. "storage.DB").
type (
	DB       = core.KVStore
	Batch    = core.Batch
	Iterator = core.Iterator
)
