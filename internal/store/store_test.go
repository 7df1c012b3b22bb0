package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "sub", "settings.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Get(ctx, WiFiSSID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, WiFiSSID, []byte("TestNet")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, err := s.Get(ctx, WiFiSSID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(v) != "TestNet" {
		t.Errorf("expected TestNet, got %q", v)
	}

	// Overwrite
	if err := s.Set(ctx, WiFiSSID, []byte("Other")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, _ = s.Get(ctx, WiFiSSID)
	if string(v) != "Other" {
		t.Errorf("expected Other, got %q", v)
	}

	// Empty value is stored, not treated as missing
	if err := s.Set(ctx, WiFiPSK, nil); err != nil {
		t.Fatalf("Set(nil) error = %v", err)
	}
	v, err = s.Get(ctx, WiFiPSK)
	if err != nil {
		t.Fatalf("Get() empty error = %v", err)
	}
	if len(v) != 0 {
		t.Errorf("expected empty value, got %q", v)
	}

	got, err := GetString(ctx, s, MQTTPort, "1883")
	if err != nil || got != "1883" {
		t.Errorf("GetString default: got %q, %v", got, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	testStore(t, openTemp(t))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemory())
}

func TestSQLitePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, time.Second)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Set(ctx, PlatformName, []byte("A")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	s, err = OpenSQLite(path, time.Second)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	v, err := s.Get(ctx, PlatformName)
	if err != nil || string(v) != "A" {
		t.Errorf("expected A after reopen, got %q, %v", v, err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestMemorySetError(t *testing.T) {
	m := NewMemory()
	m.SetErr = errors.New("disk full")
	if err := m.Set(context.Background(), WiFiSSID, []byte("x")); err == nil {
		t.Error("expected error")
	}
}

func TestMemoryGetCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Set(ctx, WiFiSSID, []byte("abc"))
	v, _ := m.Get(ctx, WiFiSSID)
	v[0] = 'x'
	v2, _ := m.Get(ctx, WiFiSSID)
	if string(v2) != "abc" {
		t.Errorf("stored value mutated: %q", v2)
	}
}

func TestNames(t *testing.T) {
	if len(Names()) != 6 || Names()[0] != WiFiSSID || Names()[5] != PlatformName {
		t.Errorf("unexpected names %v", Names())
	}
}
