// Package interactive provides the interactive command-line interface
// for the control point.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/upnp-engine/upnp-go/pkg/controlpoint"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// searchGrace is added to the search wait before the command gives up.
const searchGrace = 2 * time.Second

// Settings provides the console with configuration from the main package.
type Settings interface {
	// SubscriptionTimeout is requested when subscribe is given no timeout.
	SubscriptionTimeout() time.Duration

	// SearchTarget is used when search is given no target.
	SearchTarget() string
}

// Console handles interactive mode for upnp-cp.
type Console struct {
	cp       *controlpoint.ControlPoint
	settings Settings
	rl       *readline.Instance
	out      io.Writer
}

// New creates a console reading from the terminal.
func New(cp *controlpoint.ControlPoint, settings Settings) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "upnp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := newConsole(cp, settings, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(cp *controlpoint.ControlPoint, settings Settings, out io.Writer) *Console {
	return &Console{cp: cp, settings: settings, out: out}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.execute(ctx, line) {
			cancel()
			return
		}
	}
}

// execute runs one command line. It returns false when the console should
// exit.
func (c *Console) execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "devices", "ls":
		c.cmdDevices()
	case "device", "d":
		c.cmdDevice(args)
	case "search":
		c.cmdSearch(ctx, args)
	case "subscribe", "sub":
		c.cmdSubscribe(ctx, args)
	case "unsubscribe", "unsub":
		c.cmdUnsubscribe(ctx, args)
	case "subs":
		c.cmdSubs()
	case "status":
		c.cmdStatus()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Control Point Commands:
  Discovery:
    devices                              - List discovered root devices
    device <udn>                         - Show a device and its services
    search [target]                      - Send an M-SEARCH and wait for responses

  Events:
    subscribe <udn> <service> [timeout]  - Subscribe to a service (by serviceId, type or short name)
    unsubscribe <sid>                    - Cancel a subscription
    subs                                 - List active subscriptions

  General:
    status                               - Show control point status
    help                                 - Show this help
    quit                                 - Exit`)
}

func (c *Console) cmdDevices() {
	devices := c.cp.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(c.out, "No devices discovered")
		return
	}

	fmt.Fprintf(c.out, "\nDevices (%d):\n", len(devices))
	fmt.Fprintln(c.out, "-------------------------------------------")
	for _, d := range devices {
		c.printDeviceSummary(d)
	}
}

func (c *Console) printDeviceSummary(d *upnp.Device) {
	fmt.Fprintf(c.out, "  %s\n", d.UDN)
	if d.FriendlyName != "" {
		fmt.Fprintf(c.out, "      Name: %s\n", d.FriendlyName)
	}
	fmt.Fprintf(c.out, "      Type: %s\n", d.DeviceType)
	if loc := d.Location(); loc != nil {
		fmt.Fprintf(c.out, "      Location: %s\n", loc)
	}
	if d.IsPinned() {
		fmt.Fprintln(c.out, "      Expires: never")
	} else if exp := d.ExpireTime(); !exp.IsZero() {
		fmt.Fprintf(c.out, "      Expires: in %s\n", time.Until(exp).Round(time.Second))
	}
}

func (c *Console) cmdDevice(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: device <udn>")
		return
	}
	d := c.cp.Device(args[0])
	if d == nil {
		fmt.Fprintf(c.out, "Device not found: %s\n", args[0])
		return
	}

	c.printDeviceSummary(d)
	c.printTree(d, "      ")
}

func (c *Console) printTree(d *upnp.Device, indent string) {
	for _, s := range d.Services {
		fmt.Fprintf(c.out, "%s%s (%s)", indent, s.ServiceID, s.ServiceType)
		if sid := s.SubscriptionID(); sid != "" {
			fmt.Fprintf(c.out, " [%s]", sid)
		}
		fmt.Fprintln(c.out)
	}
	for _, child := range d.Devices {
		fmt.Fprintf(c.out, "%s%s %s\n", indent, child.UDN, child.DeviceType)
		c.printTree(child, indent+"  ")
	}
}

func (c *Console) cmdSearch(ctx context.Context, args []string) {
	target := c.settings.SearchTarget()
	if len(args) > 0 {
		target = args[0]
	}

	fmt.Fprintf(c.out, "Searching for %s...\n", target)
	searchCtx, cancel := context.WithTimeout(ctx, controlpoint.DefaultConfig().SearchWait+searchGrace)
	msgs, err := c.cp.Search(searchCtx, target)
	cancel()
	if err != nil {
		fmt.Fprintf(c.out, "Search error: %v\n", err)
		return
	}
	if len(msgs) == 0 {
		fmt.Fprintln(c.out, "No responses")
		return
	}

	fmt.Fprintf(c.out, "Received %d response(s):\n", len(msgs))
	for i, m := range msgs {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, m.USN())
		if loc := m.Location(); loc != nil {
			fmt.Fprintf(c.out, "     %s\n", loc)
		}
	}
}

// findService matches ref against serviceId, serviceType, and the short
// name in either ("AVTransport" for urn:upnp-org:serviceId:AVTransport).
func findService(d *upnp.Device, ref string) *upnp.Service {
	if s := d.FindServiceByID(ref); s != nil {
		return s
	}
	if s := d.FindService(ref); s != nil {
		return s
	}
	for _, s := range d.AllServices() {
		if strings.HasSuffix(s.ServiceID, ":"+ref) || strings.Contains(s.ServiceType, ":service:"+ref+":") {
			return s
		}
	}
	return nil
}

func (c *Console) cmdSubscribe(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: subscribe <udn> <service> [timeout]")
		return
	}

	d := c.cp.Device(args[0])
	if d == nil {
		fmt.Fprintf(c.out, "Device not found: %s\n", args[0])
		return
	}
	svc := findService(d, args[1])
	if svc == nil {
		fmt.Fprintf(c.out, "Service not found: %s\n", args[1])
		return
	}

	timeout := c.settings.SubscriptionTimeout()
	if len(args) > 2 {
		t, err := time.ParseDuration(args[2])
		if err != nil {
			fmt.Fprintf(c.out, "Invalid timeout: %v\n", err)
			return
		}
		timeout = t
	}

	sub, err := c.cp.Subscribe(ctx, svc, timeout, true)
	if err != nil {
		fmt.Fprintf(c.out, "Failed to subscribe: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Subscribed to %s: %s\n", svc.ServiceID, sub.SubscriptionID())
}

func (c *Console) cmdUnsubscribe(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: unsubscribe <sid>")
		return
	}
	if err := c.cp.Unsubscribe(ctx, args[0]); err != nil {
		fmt.Fprintf(c.out, "Failed to unsubscribe: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Unsubscribed %s\n", args[0])
}

func (c *Console) cmdSubs() {
	subs := c.cp.Subscriptions()
	if len(subs) == 0 {
		fmt.Fprintln(c.out, "No active subscriptions")
		return
	}

	fmt.Fprintf(c.out, "\nSubscriptions (%d):\n", len(subs))
	fmt.Fprintln(c.out, "-------------------------------------------")
	for _, s := range subs {
		fmt.Fprintf(c.out, "  %s\n", s.SubscriptionID())
		fmt.Fprintf(c.out, "      Service: %s\n", s.Service().ServiceID)
		if d := s.Service().Device(); d != nil {
			fmt.Fprintf(c.out, "      Device: %s\n", d.UDN)
		}
		if seq, ok := s.LastSeq(); ok {
			fmt.Fprintf(c.out, "      Last SEQ: %d\n", seq)
		} else {
			fmt.Fprintln(c.out, "      Last SEQ: none")
		}
	}
}

func (c *Console) cmdStatus() {
	fmt.Fprintf(c.out, "State: %s\n", c.cp.State())
	if addr := c.cp.CallbackAddr(); addr != nil {
		fmt.Fprintf(c.out, "Callback: %s\n", addr)
	}
	fmt.Fprintf(c.out, "Devices: %d\n", len(c.cp.Devices()))
	fmt.Fprintf(c.out, "Subscriptions: %d\n", len(c.cp.Subscriptions()))
}
