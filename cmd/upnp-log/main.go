// Command upnp-log views and analyzes control point capture files.
//
// Capture files are written by upnp-cp when run with the -protocol-log flag.
//
// Usage:
//
//	upnp-log <command> [flags] <file.ulog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	upnp-log view cp.ulog
//
//	# View only event notifications
//	upnp-log view --layer gena cp.ulog
//
//	# View one device's datagrams with raw bytes
//	upnp-log view --udn uuid:renderer-1 --raw cp.ulog
//
//	# Export to CSV
//	upnp-log export --format csv -o cp.csv cp.ulog
//
//	# Keep one subscription's traffic
//	upnp-log filter --sid uuid:sub-1 -o sub.ulog cp.ulog
//
//	# Show statistics
//	upnp-log stats cp.ulog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/upnp-engine/upnp-go/cmd/upnp-log/commands"
)

const usage = `upnp-log - UPnP Control Point Capture Analyzer

Usage:
  upnp-log <command> [flags] <file.ulog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "upnp-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set whose usage prints header and the flags.
func newFlagSet(name, header string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, header)
		fs.PrintDefaults()
	}
	return fs
}

// pathArg parses args and returns the single capture file argument.
func pathArg(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", `upnp-log view - View capture file in human-readable format

Usage:
  upnp-log view [flags] <file.ulog>

Flags:
`)
	layer := fs.String("layer", "", "Filter by layer (ssdp, gena, registry)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")
	udn := fs.String("udn", "", "Filter by device UDN")
	sid := fs.String("sid", "", "Filter by subscription ID")
	raw := fs.Bool("raw", false, "Print captured datagram bytes")

	path := pathArg(fs, args)

	filter := commands.ViewFilter{UDN: *udn, SID: *sid, Raw: *raw}
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", `upnp-log export - Export capture file to JSONL or CSV format

Usage:
  upnp-log export [flags] <file.ulog>

Flags:
`)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path := pathArg(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", `upnp-log filter - Filter capture file and write to new file

Usage:
  upnp-log filter [flags] <file.ulog>

Flags:
`)
	output := fs.String("o", "", "Output file (required)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	udn := fs.String("udn", "", "Filter by device UDN")
	sid := fs.String("sid", "", "Filter by subscription ID")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (ssdp, gena, registry)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")

	path := pathArg(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	count, err := commands.RunFilter(path, commands.FilterOptions{
		Output:    *output,
		ConnID:    *connID,
		UDN:       *udn,
		SID:       *sid,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Layer:     *layer,
		Direction: *direction,
		Category:  *category,
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", count, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", `upnp-log stats - Show statistics about the capture file

Usage:
  upnp-log stats <file.ulog>

`)
	path := pathArg(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
