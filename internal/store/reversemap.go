package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"onestore/internal/codec"
)

func (s *Store) rmapPath(target, typeName string) string {
	return filepath.Join(s.baseDir, "rmaps", target+"."+typeName)
}

func (s *Store) appendReverseMap(target, typeName string, referrer codec.Hash) error {
	lockKey := target + "." + typeName
	lk := s.rmapLocks.lock(lockKey)
	defer s.rmapLocks.unlock(lk)

	path := s.rmapPath(target, typeName)
	existing, err := readHashSet(path)
	if err != nil {
		return err
	}
	for _, h := range existing {
		if h == referrer {
			return nil // already indexed; keeps the write idempotent
		}
	}
	existing = append(existing, referrer)
	sort.Slice(existing, func(i, j int) bool { return existing[i] < existing[j] })
	raw, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("store: marshal reverse map: %w", err)
	}
	return s.writeAtomic(path, raw)
}

func readHashSet(path string) ([]codec.Hash, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read reverse map: %w", err)
	}
	var out []codec.Hash
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: decode reverse map: %w", err)
	}
	return out, nil
}

// ReverseLookup returns the hashes of every object of referringType that
// references target through a ReverseMap-marked field.
func (s *Store) ReverseLookup(target codec.Hash, referringType string) ([]codec.Hash, error) {
	return readHashSet(s.rmapPath(string(target), referringType))
}
