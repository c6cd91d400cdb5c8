// Package commands implements the upnp-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/upnp-engine/upnp-go/pkg/log"
)

// timestampLayout is used for every timestamp the tool prints.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	UDN       string
	SID       string

	// Raw prints the captured datagram bytes.
	Raw bool
}

func (f ViewFilter) filter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		UDN:       f.UDN,
		SID:       f.SID,
	}
}

// eventType returns a short label for the payload carried by event.
func eventType(event log.Event) string {
	switch {
	case event.Datagram != nil:
		if event.Datagram.NTS != "" {
			return event.Datagram.NTS
		}
		if event.Datagram.ST != "" {
			return "response"
		}
		return "datagram"
	case event.Notify != nil:
		return "notify"
	case event.StateChange != nil:
		return "state"
	case event.Error != nil:
		return "error"
	default:
		return "unknown"
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event, raw bool) {
	// Header line: timestamp [conn:id] DIRECTION LAYER type
	ts := event.Timestamp.UTC().Format(timestampLayout)
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n",
		ts, shortenConnID(event.ConnectionID), event.Direction.String(), event.Layer.String(), eventType(event))

	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s", event.RemoteAddr)
		if event.LocalAddr != "" {
			fmt.Fprintf(w, "  Local: %s", event.LocalAddr)
		}
		fmt.Fprintln(w)
	}
	if event.UDN != "" {
		fmt.Fprintf(w, "  UDN: %s\n", event.UDN)
	}
	if event.SID != "" {
		fmt.Fprintf(w, "  SID: %s\n", event.SID)
	}

	switch {
	case event.Datagram != nil:
		formatDatagramDetails(w, event.Datagram, raw)
	case event.Notify != nil:
		formatNotifyDetails(w, event.Notify)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDatagramDetails(w io.Writer, d *log.DatagramEvent, raw bool) {
	fmt.Fprintf(w, "  Size: %d bytes\n", d.Size)
	if d.StartLine != "" {
		fmt.Fprintf(w, "  Line: %s\n", d.StartLine)
	}
	for _, h := range [][2]string{
		{"NT", d.NT},
		{"USN", d.USN},
		{"ST", d.ST},
		{"Location", d.Location},
	} {
		if h[1] != "" {
			fmt.Fprintf(w, "  %s: %s\n", h[0], h[1])
		}
	}
	if d.Accepted {
		fmt.Fprintln(w, "  Accepted")
	} else {
		fmt.Fprintf(w, "  Dropped: %s\n", d.Reason)
	}
	if raw && len(d.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(d.Data))
		if d.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatNotifyDetails(w io.Writer, n *log.NotifyEvent) {
	if n.Properties > 0 {
		fmt.Fprintf(w, "  SEQ: %d  Properties: %d\n", n.Seq, n.Properties)
	}
	if n.Status != 0 {
		fmt.Fprintf(w, "  Status: %d\n", n.Status)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
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
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "ssdp":
		return log.LayerSSDP, nil
	case "gena":
		return log.LayerGENA, nil
	case "registry":
		return log.LayerRegistry, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be ssdp, gena, or registry)", s)
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
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, or error)", s)
	}
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
		formatEvent(output, event, filter.Raw)
	}

	return nil
}
