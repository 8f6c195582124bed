package store

import (
	"os"
	"path/filepath"

	"onestore/internal/codec"
)

func (s *Store) blobPath(h codec.Hash) string {
	return filepath.Join(s.baseDir, "objects", "blob-"+string(h))
}

// StoreBlob persists raw bytes (a BLOB, or a CLOB when the caller already
// holds UTF-8 text) addressed by the SHA-256 of the bytes. Dedup is
// identical to StoreUnversioned's.
func (s *Store) StoreBlob(data []byte) (codec.Hash, error) {
	h := codec.Sum(data)
	lk := s.hashLocks.lock("blob:" + string(h))
	defer s.hashLocks.unlock(lk)

	path := s.blobPath(h)
	if _, err := os.Stat(path); err == nil {
		return h, nil
	}
	if err := s.writeAtomic(path, data); err != nil {
		return "", err
	}
	return h, nil
}

// ReadBlob fetches previously-stored bytes by hash.
func (s *Store) ReadBlob(h codec.Hash) ([]byte, error) {
	data, err := os.ReadFile(s.blobPath(h))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}
