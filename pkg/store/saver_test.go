package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEnqueueSaveCoalesces(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	s := NewStore()
	id := uuid.New()

	// Burst of mutations inside one debounce window.
	for i := 0; i < 20; i++ {
		s.Upsert(id, PlayerRecord{WarnCount: i})
		s.EnqueueSave(path)
	}

	if !s.FlushSaves(2 * time.Second) {
		t.Fatal("FlushSaves timed out")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	var snap struct {
		Players map[string]PlayerRecord `json:"players"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("snapshot not parseable: %v", err)
	}
	if rec := snap.Players[id.String()]; rec.WarnCount != 19 {
		t.Fatalf("snapshot is stale: warnCount=%d, want 19", rec.WarnCount)
	}

	// Coalescing means the burst produced no backup churn beyond one rotation.
	if _, err := os.Stat(path + ".bak"); err == nil {
		t.Fatal("coalesced burst produced more than one save")
	}
}

func TestEnqueueSaveAfterFlushSchedulesAgain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	s := NewStore()
	id := uuid.New()

	s.Upsert(id, PlayerRecord{WarnCount: 1})
	s.EnqueueSave(path)
	if !s.FlushSaves(2 * time.Second) {
		t.Fatal("first flush timed out")
	}

	s.Upsert(id, PlayerRecord{WarnCount: 2})
	s.EnqueueSave(path)
	if !s.FlushSaves(2 * time.Second) {
		t.Fatal("second flush timed out")
	}

	loaded := NewStore()
	loaded.Load(path)
	rec, _ := loaded.Get(id)
	if rec.WarnCount != 2 {
		t.Fatalf("second save lost: warnCount=%d", rec.WarnCount)
	}
}

func TestFlushSavesIdleStore(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if !s.FlushSaves(time.Second) {
		t.Fatal("idle store reported busy")
	}
}
