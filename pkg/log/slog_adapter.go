package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes capture events to an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.UDN != "" {
		attrs = append(attrs, slog.String("udn", event.UDN))
	}
	if event.SID != "" {
		attrs = append(attrs, slog.String("sid", event.SID))
	}

	switch {
	case event.Datagram != nil:
		d := event.Datagram
		attrs = append(attrs,
			slog.Int("size", d.Size),
			slog.String("start_line", d.StartLine),
			slog.Bool("accepted", d.Accepted),
		)
		if d.NTS != "" {
			attrs = append(attrs, slog.String("nts", d.NTS))
		}
		if d.USN != "" {
			attrs = append(attrs, slog.String("usn", d.USN))
		}
		if d.Reason != "" {
			attrs = append(attrs, slog.String("reason", d.Reason))
		}
	case event.Notify != nil:
		attrs = append(attrs,
			slog.Uint64("seq", uint64(event.Notify.Seq)),
			slog.Int("properties", event.Notify.Properties),
			slog.Int("status", event.Notify.Status),
		)
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
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "capture", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
