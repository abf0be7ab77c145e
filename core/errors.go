package core

import "errors"

// ErrNotFound is returned by storage lookups (accounts, blocks, pending
// entries, confirmation heights) that find nothing for the given key.
var ErrNotFound = errors.New("core: not found")

// ErrBurnAccount is returned when an operation is attempted against the
// reserved all-zero burn account, which can send but can never receive or
// vote.
var ErrBurnAccount = errors.New("core: burn account")
