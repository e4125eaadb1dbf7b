package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fiberpos/tendo-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.plog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

func sampleEvents() []log.Event {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return []log.Event{
		{
			Timestamp: ts, SessionID: "5f0c1d2e-aaaa-bbbb", Direction: log.DirectionOut,
			Layer: log.LayerTransport, Category: log.CategoryControl, Transceiver: "A123",
			Line: &log.LineEvent{Size: 3, Data: []byte("S8\r")},
		},
		{
			Timestamp: ts.Add(time.Millisecond), SessionID: "5f0c1d2e-aaaa-bbbb", Direction: log.DirectionOut,
			Layer: log.LayerDispatch, Category: log.CategoryMessage,
			Request: &log.RequestEvent{Address: 7, Command: 2, UID: 1, Phase: log.PhaseSent},
		},
		{
			Timestamp: ts.Add(2 * time.Millisecond), SessionID: "5f0c1d2e-aaaa-bbbb", Direction: log.DirectionIn,
			Layer: log.LayerFrame, Category: log.CategoryMessage,
			Frame: &log.FrameEvent{Address: 7, Command: 2, UID: 1, Payload: []byte{0x03, 0x02, 0x01, 0x00}},
		},
		{
			Timestamp: ts.Add(3 * time.Millisecond), SessionID: "5f0c1d2e-aaaa-bbbb", Direction: log.DirectionIn,
			Layer: log.LayerDispatch, Category: log.CategoryMessage,
			Request: &log.RequestEvent{Address: 7, Command: 2, UID: 1, Phase: log.PhaseMatched, Replies: 1, Elapsed: 1500 * time.Microsecond},
		},
		{
			Timestamp: ts.Add(4 * time.Millisecond), SessionID: "5f0c1d2e-aaaa-bbbb", Direction: log.DirectionIn,
			Layer: log.LayerDispatch, Category: log.CategoryMessage,
			Request: &log.RequestEvent{Address: 9, Command: 2, UID: 2, Phase: log.PhaseTimedOut, Code: -1},
		},
		{
			Timestamp: ts.Add(5 * time.Millisecond), SessionID: "5f0c1d2e-aaaa-bbbb", Direction: log.DirectionIn,
			Layer: log.LayerDevice, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityUpgrade, OldState: "IDLE", NewState: "REBOOTING", Address: 7},
		},
		{
			Timestamp: ts.Add(6 * time.Millisecond), SessionID: "5f0c1d2e-aaaa-bbbb", Direction: log.DirectionIn,
			Layer: log.LayerFrame, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerFrame, Message: "bad frame", Context: "T123"},
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:00.000000Z [5f0c1d2e] OUT CTRL Line (A123)",
		`Data: "S8\r"`,
		"Command: GET_FIRMWARE (2)  UID: 1",
		"Payload: 03 02 01 00",
		"Phase: MATCHED",
		"Duration: 1.500ms",
		"Code: NO_RESPONSE (-1)",
		"IDLE -> REBOOTING",
		"Message: bad frame",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
}

func TestViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	layer := log.LayerDispatch
	addr := uint16(9)
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer, Address: &addr}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	if n := strings.Count(buf.String(), "DISPATCH Request"); n != 1 {
		t.Errorf("got %d requests, want 1\n%s", n, buf.String())
	}
	if strings.Contains(buf.String(), "Frame") {
		t.Error("frame events should be filtered out")
	}
}

func TestViewMissingFile(t *testing.T) {
	if err := RunView(filepath.Join(t.TempDir(), "missing.plog"), ViewFilter{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewMalformedFrame(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{{
		Timestamp: ts, Layer: log.LayerFrame, Category: log.CategoryError,
		Frame: &log.FrameEvent{Malformed: "odd payload length", Payload: []byte("T0000000130A")},
	}})

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Malformed: odd payload length") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Frame"); err != nil || l != log.LayerFrame {
		t.Errorf("ParseLayerFlag(Frame) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("ParseLayerFlag(wire) should fail")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(OUT) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("state"); err != nil || c != log.CategoryState {
		t.Errorf("ParseCategoryFlag(state) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("ParseCategoryFlag(snapshot) should fail")
	}
}

func TestParseAddressAndCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"12", 12, false},
		{"0x1F", 31, false},
		{"70000", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAddressFlag(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAddressFlag(%q) = %d, %v", tt.in, got, err)
		}
	}

	for _, in := range []string{"2", "get_firmware", "GET_FIRMWARE"} {
		if got, err := ParseCommandFlag(in); err != nil || got != 2 {
			t.Errorf("ParseCommandFlag(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := ParseCommandFlag("FLY"); err == nil {
		t.Error("ParseCommandFlag(FLY) should fail")
	}
}
