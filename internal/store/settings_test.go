package store

import (
	"sync"
	"testing"
)

func TestSettingsMissingFileIsEmpty(t *testing.T) {
	s, sb := newTestStore(t)
	defer sb.Cleanup()
	defer s.Close()

	if _, ok := s.GetSetting("anything"); ok {
		t.Fatal("GetSetting: want not-found on a fresh store")
	}
	if len(s.AllSettings()) != 0 {
		t.Fatal("AllSettings: want empty map on a fresh store")
	}
}

func TestSetSettingPersistsAcrossReopen(t *testing.T) {
	s, sb := newTestStore(t)
	defer sb.Cleanup()

	if err := s.SetSetting("theme", "dark"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting("volume", float64(7)); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	s.Close()

	reopened, err := New(sb.Root, newTestRegistry())
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer reopened.Close()

	v, ok := reopened.GetSetting("theme")
	if !ok || v != "dark" {
		t.Fatalf("GetSetting(theme) = %v, %v; want dark, true", v, ok)
	}
	v, ok = reopened.GetSetting("volume")
	if !ok || v != float64(7) {
		t.Fatalf("GetSetting(volume) = %v, %v; want 7, true", v, ok)
	}
}

func TestSetSettingSerializesConcurrentWriters(t *testing.T) {
	s, sb := newTestStore(t)
	defer sb.Cleanup()
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k"
			if err := s.SetSetting(key, i); err != nil {
				t.Errorf("SetSetting: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if _, ok := s.GetSetting("k"); !ok {
		t.Fatal("GetSetting(k): want a value after concurrent writers")
	}
}
