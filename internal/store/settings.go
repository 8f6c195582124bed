package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"onestore/internal/codec"
)

// settingsPath is private/settings.json, per §6's "private/ (encrypted
// secret keys, settings file)".
func (s *Store) settingsPath() string { return filepath.Join(s.baseDir, "private", "settings.json") }

// settingsQueueDepth bounds the single-writer serialization queue (§9 open
// question: settings-store write locking). The source fails fast on any
// concurrent writer; that is poor ergonomics for a caller that just wants
// its write to eventually land, so here a bounded queue absorbs bursts and
// only returns ErrSettingsLocked once the queue itself is full, rather than
// on every overlap.
const settingsQueueDepth = 32

// ErrSettingsLocked is returned by SetSetting when the write queue is full
// (§7 SettingsLocked: "retry at caller's discretion").
type ErrSettingsLocked struct{}

func (ErrSettingsLocked) Error() string { return "store: settings write queue full, retry" }

func (s *Store) loadSettings() error {
	raw, err := os.ReadFile(s.settingsPath())
	if os.IsNotExist(err) {
		s.settings = map[string]interface{}{}
		return nil
	}
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	s.settings = m
	return nil
}

// runSettingsWorker is the single goroutine that serializes every settings
// mutation, so concurrent SetSetting callers never race on the on-disk
// write-to-tmp-then-rename sequence.
func (s *Store) runSettingsWorker() {
	for job := range s.settingsJobs {
		job()
	}
}

// Close stops the settings worker goroutine. Safe to call once; a
// SetSetting call after Close panics, since it sends on the closed job
// channel.
func (s *Store) Close() {
	close(s.settingsJobs)
}

// GetSetting returns the current in-memory value for key. Reads are never
// queued — they are served from the cached map so a backlog of pending
// writes never blocks a reader.
func (s *Store) GetSetting(key string) (interface{}, bool) {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	v, ok := s.settings[key]
	return v, ok
}

// AllSettings returns a snapshot copy of the whole settings object.
func (s *Store) AllSettings() map[string]interface{} {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	out := make(map[string]interface{}, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// SetSetting queues key=value to be merged into the settings object and
// written to disk, sorted-key-stringified per §6. Returns ErrSettingsLocked
// immediately if the write queue is already full; it does not block.
func (s *Store) SetSetting(key string, value interface{}) error {
	done := make(chan error, 1)
	job := func() {
		s.settingsMu.Lock()
		s.settings[key] = value
		raw, err := marshalSettingsSorted(s.settings)
		if err != nil {
			s.settingsMu.Unlock()
			done <- err
			return
		}
		err = s.writeAtomic(s.settingsPath(), raw)
		s.settingsMu.Unlock()
		done <- err
	}
	select {
	case s.settingsJobs <- job:
	default:
		return ErrSettingsLocked{}
	}
	return <-done
}

// marshalSettingsSorted produces the sorted-key JSON form §6 mandates, since
// encoding/json already sorts map keys for map[string]interface{} — this
// helper exists to make that guarantee explicit rather than incidental.
func marshalSettingsSorted(m map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(codec.Object, len(m))
	for _, k := range keys {
		ordered[k] = m[k]
	}
	return json.MarshalIndent(ordered, "", "  ")
}
