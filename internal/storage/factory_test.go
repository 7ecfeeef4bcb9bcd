package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close memory store: %v", err)
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("postgres", "")
	if !errors.Is(err, ErrUnsupportedStore) {
		t.Fatalf("expected unsupported store error, got %v", err)
	}
	if !strings.Contains(err.Error(), `"postgres"`) || !strings.Contains(err.Error(), "memory or sqlite") {
		t.Fatalf("expected error to name the accepted backends, got %v", err)
	}
}

func TestNewStoreSQLiteNeedsPath(t *testing.T) {
	if _, err := NewStore(KindSQLite, ""); err == nil {
		t.Fatal("expected missing database path error")
	}
}

func TestDefaultStoreKindIsConstructible(t *testing.T) {
	if _, err := NewStore(DefaultStoreKind(), t.TempDir()+"/goalreach.db"); err != nil {
		t.Fatalf("default store kind %q: %v", DefaultStoreKind(), err)
	}
}
