package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"onestore/internal/codec"
	"onestore/internal/version"
)

// meta is the on-disk shape of objects/meta/<hash>.json, mirroring
// version.DAGNode.
type meta struct {
	Hash         codec.Hash   `json:"hash"`
	IdHash       codec.IdHash `json:"idHash"`
	Previous     []codec.Hash `json:"previous"`
	CreationTime int64        `json:"creationTime"`
}

func (s *Store) writeMeta(m meta) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("store: marshal version meta: %w", err)
	}
	return s.writeAtomic(s.metaPath(m.Hash), raw)
}

func (s *Store) readMeta(h codec.Hash) (*meta, error) {
	raw, err := os.ReadFile(s.metaPath(h))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: read version meta: %w", err)
	}
	var m meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("store: decode version meta: %w", err)
	}
	return &m, nil
}

// GetVersionMeta implements version.ObjectAccess.
func (s *Store) GetVersionMeta(h codec.Hash) (*version.DAGNode, error) {
	m, err := s.readMeta(h)
	if err != nil {
		return nil, err
	}
	return &version.DAGNode{Hash: m.Hash, IdHash: m.IdHash, Previous: m.Previous, CreationTime: m.CreationTime}, nil
}

// PutObject implements version.ObjectAccess: stores a plain content-addressed
// object (used for versioned objects' own writes and for reconciled
// referenceToObj pointees) and returns its hash regardless of whether it was
// already present.
func (s *Store) PutObject(typeName string, obj codec.Object) (codec.Hash, error) {
	h, _, err := s.StoreUnversioned(typeName, obj)
	return h, err
}

func (s *Store) readHeads(id codec.IdHash) ([]codec.Hash, error) {
	return readHashSet(s.currentPath(id))
}

func (s *Store) writeHeads(id codec.IdHash, heads []codec.Hash) error {
	raw, err := json.Marshal(heads)
	if err != nil {
		return fmt.Errorf("store: marshal heads: %w", err)
	}
	return s.writeAtomic(s.currentPath(id), raw)
}

// GetByIdHash returns the current (already auto-merged) content hash tracked
// for a versioned object's id-hash.
func (s *Store) GetByIdHash(id codec.IdHash) (codec.Hash, error) {
	heads, err := s.readHeads(id)
	if err != nil {
		return "", err
	}
	if len(heads) == 0 {
		return "", ErrNotFound
	}
	return heads[0], nil
}

// StoreVersioned writes a new version of a versioned (id-hashed) object,
// built on top of basedOn — the heads the caller last observed for this
// id-hash. Any head this write does not supersede remains a concurrent head;
// if that leaves more than one head, they are immediately reconciled via the
// CRDT merge drivers in internal/version and collapsed back to one, so
// GetByIdHash always resolves to a single, already-merged current value.
func (s *Store) StoreVersioned(typeName string, obj codec.Object, basedOn []codec.Hash) (codec.Hash, Status, error) {
	idHash, err := codec.IdHashOf(s.reg, typeName, obj)
	if err != nil {
		return "", "", err
	}

	lk := s.idLocks.lock(string(idHash))
	defer s.idLocks.unlock(lk)

	h, contentStatus, err := s.StoreUnversioned(typeName, obj)
	if err != nil {
		return "", "", err
	}
	if contentStatus == StatusNew {
		if err := s.writeMeta(meta{Hash: h, IdHash: idHash, Previous: basedOn, CreationTime: time.Now().UnixNano()}); err != nil {
			return "", "", err
		}
	}

	existing, err := s.readHeads(idHash)
	if err != nil {
		return "", "", err
	}
	superseded := map[codec.Hash]bool{}
	for _, p := range basedOn {
		superseded[p] = true
	}
	newHeads := []codec.Hash{h}
	for _, e := range existing {
		if e != h && !superseded[e] {
			newHeads = append(newHeads, e)
		}
	}

	final, err := s.collapseHeads(typeName, idHash, newHeads)
	if err != nil {
		return "", "", err
	}
	if err := s.writeHeads(idHash, []codec.Hash{final}); err != nil {
		return "", "", err
	}

	// The tri-state status reflects the idHash's version history, not the
	// content-addressed write that StoreUnversioned just performed: a write
	// is "exists" only when it reproduces the idHash's sole current head
	// byte-for-byte (a true no-op republish). Any other write against an
	// idHash that already had history is "updated", even if the CRDT merge
	// driver later collapses concurrent heads back onto an unchanged value.
	var status Status
	switch {
	case len(existing) == 0:
		status = StatusNew
	case len(existing) == 1 && existing[0] == h:
		status = StatusExists
	default:
		status = StatusUpdated
	}

	log.WithFields(logrus.Fields{"type": typeName, "idHash": idHash, "head": final, "status": status}).Debug("stored versioned object")
	return final, status, nil
}

// collapseHeads folds an arbitrary number of concurrent heads down to one by
// repeated pairwise merging.
func (s *Store) collapseHeads(typeName string, idHash codec.IdHash, heads []codec.Hash) (codec.Hash, error) {
	if len(heads) == 0 {
		return "", ErrNotFound
	}
	cur := heads[0]
	for _, h := range heads[1:] {
		merged, err := version.MergeHeads(s, s.reg, typeName, cur, h)
		if err != nil {
			return "", err
		}
		if merged != cur && merged != h {
			if err := s.writeMeta(meta{Hash: merged, IdHash: idHash, Previous: []codec.Hash{cur, h}, CreationTime: time.Now().UnixNano()}); err != nil {
				return "", err
			}
		}
		cur = merged
	}
	return cur, nil
}
