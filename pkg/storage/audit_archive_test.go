package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/argus-mc/argus/pkg/audit"
)

func newTestArchive(t *testing.T) *AuditArchive {
	t.Helper()
	a := NewAuditArchive(filepath.Join(t.TempDir(), "audit.db"))
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t)

	entries := []audit.Entry{
		{Action: "ban", Subject: "Notch", Actor: "1", Description: "griefing", At: time.Unix(100, 0)},
		{Action: "unban", Subject: "Notch", Actor: "1", At: time.Unix(200, 0)},
		{Action: "audit", Description: "free text", Metadata: map[string]string{"k": "v"}, At: time.Unix(300, 0)},
	}
	for _, e := range entries {
		if err := a.Append(e); err != nil {
			t.Fatalf("Append(%s): %v", e.Action, err)
		}
	}

	got, err := a.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	// Newest first.
	if got[0].Action != "audit" || got[2].Action != "ban" {
		t.Fatalf("wrong order: %s .. %s", got[0].Action, got[2].Action)
	}
	if got[0].Metadata["k"] != "v" {
		t.Fatalf("metadata lost: %+v", got[0].Metadata)
	}
	if got[2].Subject != "Notch" || got[2].Description != "griefing" {
		t.Fatalf("fields lost: %+v", got[2])
	}
}

func TestRecentLimit(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t)
	for i := 0; i < 5; i++ {
		if err := a.Append(audit.Entry{Action: "warn", At: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := a.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
}

func TestInitIsIdempotent(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t)
	if err := a.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestUninitializedArchive(t *testing.T) {
	t.Parallel()

	a := NewAuditArchive(filepath.Join(t.TempDir(), "audit.db"))
	if err := a.Append(audit.Entry{Action: "x"}); err == nil {
		t.Fatal("Append on uninitialized archive succeeded")
	}
	if _, err := a.Recent(1); err == nil {
		t.Fatal("Recent on uninitialized archive succeeded")
	}
}
