package store

import "errors"

// ErrNotFound is returned by GetObject/GetByIdHash/ReadBlob when the
// requested hash is unknown to this store.
var ErrNotFound = errors.New("store: not found")

// ErrDanglingReference is returned when a stored object references a hash
// that is not itself present (and not a lazily-checked BLOB/CLOB), per the
// "no dangling intra-type references" invariant in §3.
var ErrDanglingReference = errors.New("store: dangling reference")

// Status reports the outcome of a store write.
type Status string

const (
	StatusNew     Status = "new"
	StatusExists  Status = "exists"
	StatusUpdated Status = "updated"
)
