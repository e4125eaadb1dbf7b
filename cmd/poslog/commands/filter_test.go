package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fiberpos/tendo-go/pkg/log"
)

func TestFilterBySession(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, SessionID: "sess-1", Category: log.CategoryMessage},
		{Timestamp: ts, SessionID: "sess-2", Category: log.CategoryMessage},
		{Timestamp: ts, SessionID: "sess-1", Category: log.CategoryMessage},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	n, err := RunFilter(path, FilterOptions{Output: outPath, SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RunFilter wrote %d events, want 2", n)
	}

	got, err := log.ReadAll(outPath)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	for _, e := range got {
		if e.SessionID != "sess-1" {
			t.Errorf("expected sess-1, got %s", e.SessionID)
		}
	}
}

func TestFilterByAddressAndCommand(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	n, err := RunFilter(path, FilterOptions{Output: outPath, Address: "7", Command: "get_firmware"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	// Sent, reply frame and matched; the upgrade state change has no command.
	if n != 3 {
		t.Errorf("RunFilter wrote %d events, want 3", n)
	}
}

func TestFilterByTimeRange(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	n, err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: "2026-03-02T09:30:00Z",
		TimeEnd:   "2026-03-02T09:30:00.002Z",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RunFilter wrote %d events, want 2", n)
	}
}

func TestFilterRejectsBadOptions(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	for _, opts := range []FilterOptions{
		{Output: outPath, TimeStart: "yesterday"},
		{Output: outPath, Layer: "wire"},
		{Output: outPath, Address: "-1"},
		{Output: outPath, Command: "FLY"},
	} {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("RunFilter(%+v) accepted invalid options", opts)
		}
	}
}
