// Package store implements the content-addressed object store (component
// C2): persisting and fetching immutable TypedObjects by hash, tracking the
// current version of versioned (id-hashed) objects, BLOB/CLOB byte storage,
// and the reverse-map index.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"onestore/internal/codec"
	"onestore/internal/recipe"
)

var log = logrus.WithField("component", "store")

type cachedObject struct {
	typeName string
	obj      codec.Object
}

// Store is a single instance's on-disk object store, rooted at baseDir with
// the §6 layout: objects/, tmp/, private/, rmaps/.
type Store struct {
	baseDir string
	reg     *recipe.Registry

	hashLocks *keyedMutex
	idLocks   *keyedMutex
	rmapLocks *keyedMutex

	cache *lru.Cache[codec.Hash, cachedObject]

	mu sync.RWMutex // not taken by any method; current pointers live only on disk, serialized per id by idLocks

	settingsMu   sync.RWMutex
	settings     map[string]interface{}
	settingsJobs chan func()
}

// New creates (if absent) the on-disk layout under baseDir and returns a
// ready Store.
func New(baseDir string, reg *recipe.Registry) (*Store, error) {
	for _, sub := range []string{"objects", filepath.Join("objects", "meta"), filepath.Join("objects", "current"), "tmp", "private", "rmaps"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", sub, err)
		}
	}
	cache, err := lru.New[codec.Hash, cachedObject](2048)
	if err != nil {
		return nil, fmt.Errorf("store: init cache: %w", err)
	}
	s := &Store{
		baseDir:      baseDir,
		reg:          reg,
		hashLocks:    newKeyedMutex(),
		idLocks:      newKeyedMutex(),
		rmapLocks:    newKeyedMutex(),
		cache:        cache,
		settingsJobs: make(chan func(), settingsQueueDepth),
	}
	if err := s.loadSettings(); err != nil {
		return nil, err
	}
	go s.runSettingsWorker()
	return s, nil
}

func (s *Store) objectPath(h codec.Hash) string { return filepath.Join(s.baseDir, "objects", string(h)) }
func (s *Store) metaPath(h codec.Hash) string {
	return filepath.Join(s.baseDir, "objects", "meta", string(h)+".json")
}
func (s *Store) currentPath(id codec.IdHash) string {
	return filepath.Join(s.baseDir, "objects", "current", string(id))
}
func (s *Store) tmpPath(name string) string { return filepath.Join(s.baseDir, "tmp", name) }

// writeAtomic stages data under tmp/ and renames it into place, per §6's
// "all writes are write-to-tmp then rename". A failed attempt is retried
// once before the error is returned.
func (s *Store) writeAtomic(finalPath string, data []byte) error {
	tmp := s.tmpPath(filepath.Base(finalPath) + fmt.Sprintf(".%d.tmp", os.Getpid()))
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = os.WriteFile(tmp, data, 0o600); err != nil {
			err = fmt.Errorf("store: write tmp: %w", err)
			continue
		}
		if err = os.Rename(tmp, finalPath); err != nil {
			_ = os.Remove(tmp)
			err = fmt.Errorf("store: rename into place: %w", err)
			continue
		}
		return nil
	}
	return err
}

// Exists reports whether hash h is already stored.
func (s *Store) Exists(h codec.Hash) bool {
	if _, ok := s.cache.Get(h); ok {
		return true
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// GetObject fetches and canonically re-validates an object by content hash.
func (s *Store) GetObject(h codec.Hash) (string, codec.Object, error) {
	if c, ok := s.cache.Get(h); ok {
		return c.typeName, c.obj, nil
	}
	raw, err := os.ReadFile(s.objectPath(h))
	if os.IsNotExist(err) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("store: read object: %w", err)
	}
	typeName, obj, err := codec.Decode(s.reg, raw)
	if err != nil {
		return "", nil, err
	}
	if got := codec.Sum(raw); got != h {
		return "", nil, &codec.HashMismatchError{Expected: h, Actual: got}
	}
	s.cache.Add(h, cachedObject{typeName: typeName, obj: obj})
	return typeName, obj, nil
}

// StoreUnversioned persists an immutable object addressed solely by its
// content hash. Writing byte-identical content a second time is a no-op
// that reports StatusExists.
func (s *Store) StoreUnversioned(typeName string, obj codec.Object) (codec.Hash, Status, error) {
	raw, err := codec.Encode(s.reg, typeName, obj)
	if err != nil {
		return "", "", err
	}
	h := codec.Sum(raw)

	lk := s.hashLocks.lock(string(h))
	defer s.hashLocks.unlock(lk)

	if s.Exists(h) {
		return h, StatusExists, nil
	}
	if err := s.checkReferences(typeName, obj); err != nil {
		return "", "", err
	}
	if err := s.writeAtomic(s.objectPath(h), raw); err != nil {
		return "", "", err
	}
	s.cache.Add(h, cachedObject{typeName: typeName, obj: obj})
	if err := s.updateReverseMaps(typeName, obj, h); err != nil {
		return "", "", err
	}
	log.WithFields(logrus.Fields{"type": typeName, "hash": h}).Debug("stored unversioned object")
	return h, StatusNew, nil
}

func (s *Store) rec(typeName string) (*recipe.Recipe, error) {
	return s.reg.Get(typeName)
}
