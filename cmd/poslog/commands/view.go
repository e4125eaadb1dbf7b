// Package commands implements the poslog CLI commands.
package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/log"
	"github.com/fiberpos/tendo-go/pkg/positioner"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Address   *uint16
}

func (f ViewFilter) filter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		Address:   f.Address,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	session := shortenSessionID(event.SessionID)
	dir := event.Direction.String()

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s [%s] %-3s %s %s", ts, session, dir, layerStr, eventType(event))
	if event.Transceiver != "" {
		fmt.Fprintf(w, " (%s)", event.Transceiver)
	}
	fmt.Fprintln(w)

	switch {
	case event.Line != nil:
		formatLineDetails(w, event.Line)
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Request != nil:
		formatRequestDetails(w, event.Request)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// eventType returns the label of the payload carried by event.
func eventType(event log.Event) string {
	switch {
	case event.Line != nil:
		return "Line"
	case event.Frame != nil:
		return "Frame"
	case event.Request != nil:
		return "Request"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatLineDetails(w io.Writer, line *log.LineEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", line.Size)
	if len(line.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", strconv.Quote(string(line.Data)))
		if line.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	if frame.Malformed != "" {
		fmt.Fprintf(w, "  Malformed: %s\n", frame.Malformed)
		fmt.Fprintf(w, "  Token: %s\n", strconv.Quote(string(frame.Payload)))
		return
	}
	fmt.Fprintf(w, "  Address: %d  Command: %s  UID: %d\n",
		frame.Address, commandName(frame.Command), frame.UID)
	if frame.Code != 0 {
		fmt.Fprintf(w, "  Code: %s (%d)\n", dispatch.Code(frame.Code), frame.Code)
	}
	if len(frame.Payload) > 0 {
		fmt.Fprintf(w, "  Payload: % X\n", frame.Payload)
	}
}

func formatRequestDetails(w io.Writer, req *log.RequestEvent) {
	fmt.Fprintf(w, "  Address: %d  Command: %s  UID: %d\n",
		req.Address, commandName(req.Command), req.UID)
	fmt.Fprintf(w, "  Phase: %s\n", req.Phase)
	if req.Phase != log.PhaseSent {
		fmt.Fprintf(w, "  Code: %s (%d)\n", dispatch.Code(req.Code), req.Code)
	}
	if req.Replies > 0 {
		fmt.Fprintf(w, "  Replies: %d\n", req.Replies)
	}
	if req.Elapsed > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(req.Elapsed))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.Address != 0 {
		fmt.Fprintf(w, "  Address: %d\n", sc.Address)
	}
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// commandName returns the catalogue name of cmd, or its number when unknown.
func commandName(cmd uint8) string {
	c := positioner.Command(cmd)
	if !c.Known() {
		return fmt.Sprintf("%d", cmd)
	}
	return fmt.Sprintf("%s (%d)", c, cmd)
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "frame":
		return log.LayerFrame, nil
	case "dispatch":
		return log.LayerDispatch, nil
	case "device":
		return log.LayerDevice, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, frame, dispatch, or device)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
}

// ParseAddressFlag parses a positioner address (decimal or 0x hex).
func ParseAddressFlag(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	return uint16(v), nil
}

// ParseCommandFlag parses a command number or catalogue name (case-insensitive).
func ParseCommandFlag(s string) (uint8, error) {
	if v, err := strconv.ParseUint(s, 0, 8); err == nil {
		return uint8(v), nil
	}
	name := strings.ToUpper(s)
	for c := 0; c < 256; c++ {
		if cmd := positioner.Command(c); cmd.Known() && cmd.String() == name {
			return uint8(c), nil
		}
	}
	return 0, fmt.Errorf("invalid command: %s", s)
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.filter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
