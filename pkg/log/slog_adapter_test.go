package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func captureSlog(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsLineEvent(t *testing.T) {
	entry := captureSlog(t, Event{
		Timestamp: time.Now(),
		SessionID: "session-123",
		Direction: DirectionOut,
		Layer:     LayerTransport,
		Category:  CategoryMessage,
		Line:      &LineEvent{Size: 11, Data: []byte("T001C08100\r")},
	})

	if entry["session"] != "session-123" {
		t.Errorf("session: got %v", entry["session"])
	}
	if entry["direction"] != "OUT" {
		t.Errorf("direction: got %v", entry["direction"])
	}
	if entry["line"] != "T001C08100" {
		t.Errorf("line: got %v", entry["line"])
	}
	if entry["size"] != float64(11) {
		t.Errorf("size: got %v", entry["size"])
	}
}

func TestSlogAdapterLogsRequestEvent(t *testing.T) {
	entry := captureSlog(t, Event{
		Layer: LayerDispatch,
		Request: &RequestEvent{
			Address: 4,
			Command: 30,
			UID:     9,
			Phase:   PhaseMatched,
			Replies: 1,
			Elapsed: 20 * time.Millisecond,
		},
	})

	if entry["phase"] != "MATCHED" {
		t.Errorf("phase: got %v", entry["phase"])
	}
	if entry["command"] != float64(30) {
		t.Errorf("command: got %v", entry["command"])
	}
	if _, ok := entry["elapsed"]; !ok {
		t.Error("elapsed missing for resolved request")
	}
}

func TestSlogAdapterOmitsResolutionForSentPhase(t *testing.T) {
	entry := captureSlog(t, Event{
		Layer:   LayerDispatch,
		Request: &RequestEvent{Address: 4, Command: 30, Phase: PhaseSent},
	})
	if _, ok := entry["replies"]; ok {
		t.Error("replies should not be logged for a sent request")
	}
}
