package log

import (
	"context"
	"log/slog"
	"strings"
)

// SlogAdapter writes trace events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Transceiver != "" {
		attrs = append(attrs, slog.String("transceiver", event.Transceiver))
	}

	switch {
	case event.Line != nil:
		attrs = append(attrs,
			slog.Int("size", event.Line.Size),
			slog.String("line", strings.TrimRight(string(event.Line.Data), "\r")),
		)
		if event.Line.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("address", int(event.Frame.Address)),
			slog.Int("command", int(event.Frame.Command)),
			slog.Int("uid", int(event.Frame.UID)),
			slog.Int("code", int(event.Frame.Code)),
		)
		if event.Frame.Malformed != "" {
			attrs = append(attrs, slog.String("malformed", event.Frame.Malformed))
		}
	case event.Request != nil:
		attrs = append(attrs,
			slog.Int("address", int(event.Request.Address)),
			slog.Int("command", int(event.Request.Command)),
			slog.Int("uid", int(event.Request.UID)),
			slog.String("phase", event.Request.Phase.String()),
		)
		if event.Request.Phase != PhaseSent {
			attrs = append(attrs,
				slog.Int("code", int(event.Request.Code)),
				slog.Int("replies", event.Request.Replies),
				slog.Duration("elapsed", event.Request.Elapsed),
			)
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
