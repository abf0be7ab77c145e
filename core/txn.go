package core

import "sort"

// Txn is a buffered read/write transaction over a KVStore: writes
// accumulate in memory and are visible to later Get/Iterate calls within
// the same Txn, but only reach the underlying store atomically on Commit.
// This is the ledger's "tx_begin_read" / "tx_begin_write" collaborator:
// read-only callers never call Commit; writers must, once, when the
// enclosing block/vote processing step has fully succeeded.
//
// A write-buffer/snapshot pattern generalized from a fixed set of state
// prefixes to arbitrary keys, living in core so the ledger depends on no
// concrete storage backend.
type Txn struct {
	store   KVStore
	dirty   map[string][]byte
	deleted map[string]bool
	writer  bool
}

// BeginRead opens a read-only Txn against store.
func BeginRead(store KVStore) *Txn {
	return &Txn{store: store}
}

// BeginWrite opens a read/write Txn against store whose writes are buffered
// until Commit.
func BeginWrite(store KVStore) *Txn {
	return &Txn{
		store:   store,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
		writer:  true,
	}
}

// Get reads key, preferring this transaction's own uncommitted writes.
func (t *Txn) Get(key []byte) ([]byte, error) {
	k := string(key)
	if t.writer {
		if t.deleted[k] {
			return nil, ErrNotFound
		}
		if v, ok := t.dirty[k]; ok {
			return v, nil
		}
	}
	return t.store.Get(key)
}

// Set buffers a write. Panics on a read-only Txn: writing without having
// opened a write transaction is a programmer error, not a runtime
// condition callers should need to handle.
func (t *Txn) Set(key, value []byte) {
	if !t.writer {
		panic("core: Set on read-only Txn")
	}
	k := string(key)
	delete(t.deleted, k)
	cp := make([]byte, len(value))
	copy(cp, value)
	t.dirty[k] = cp
}

// Delete buffers a deletion.
func (t *Txn) Delete(key []byte) {
	if !t.writer {
		panic("core: Delete on read-only Txn")
	}
	k := string(key)
	delete(t.dirty, k)
	t.deleted[k] = true
}

// Iterate scans the underlying store merged with this Txn's uncommitted
// writes for keys matching prefix, invoking fn(key, value) in key order.
// Stops early if fn returns false.
func (t *Txn) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	it := t.store.NewIterator(prefix)
	for it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		merged[string(k)] = v
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return err
	}

	p := string(prefix)
	if t.writer {
		for k, v := range t.dirty {
			if len(k) >= len(p) && k[:len(p)] == p {
				merged[k] = v
			}
		}
		for k := range t.deleted {
			delete(merged, k)
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			break
		}
	}
	return nil
}

// Commit flushes buffered writes to the underlying store as a single Batch.
// A no-op on a read-only Txn.
func (t *Txn) Commit() error {
	if !t.writer {
		return nil
	}
	batch := t.store.NewBatch()
	for k, v := range t.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range t.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	t.dirty = make(map[string][]byte)
	t.deleted = make(map[string]bool)
	return nil
}

// Discard drops all buffered writes without touching the underlying store.
func (t *Txn) Discard() {
	if !t.writer {
		return
	}
	t.dirty = make(map[string][]byte)
	t.deleted = make(map[string]bool)
}
