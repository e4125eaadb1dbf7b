package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fiberpos/tendo-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

var csvHeader = []string{"timestamp", "session_id", "transceiver", "direction", "layer", "category", "type", "address", "command", "uid", "code", "detail"}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := cw.Write(csvRow(event)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return cw.Error()
}

func csvRow(event log.Event) []string {
	var addr, cmd, uid, code, detail string
	switch {
	case event.Line != nil:
		detail = string(event.Line.Data)
	case event.Frame != nil:
		f := event.Frame
		addr, cmd, uid = itoa(int(f.Address)), itoa(int(f.Command)), itoa(int(f.UID))
		code = itoa(int(f.Code))
		detail = f.Malformed
	case event.Request != nil:
		r := event.Request
		addr, cmd, uid = itoa(int(r.Address)), itoa(int(r.Command)), itoa(int(r.UID))
		code = itoa(int(r.Code))
		detail = r.Phase.String()
	case event.StateChange != nil:
		if event.StateChange.Address != 0 {
			addr = itoa(int(event.StateChange.Address))
		}
		detail = event.StateChange.NewState
	case event.Error != nil:
		detail = event.Error.Message
	}

	return []string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.SessionID,
		event.Transceiver,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		eventType(event),
		addr,
		cmd,
		uid,
		code,
		detail,
	}
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
