package gena

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/log"
)

// DefaultRequestTimeout bounds one SUBSCRIBE or UNSUBSCRIBE round trip.
const DefaultRequestTimeout = 10 * time.Second

// Client issues GENA subscription requests.
type Client struct {
	HTTP *http.Client

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger captures subscription requests (optional).
	ProtocolLogger log.Logger
}

// NewClient creates a client whose requests are bounded by timeout.
func NewClient(timeout time.Duration, logger *slog.Logger, plog log.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		HTTP:           &http.Client{Timeout: timeout},
		Logger:         logger,
		ProtocolLogger: plog,
	}
}

// Subscribe requests a new subscription delivering events to callbackURL.
// It returns the SID and the granted timeout (zero for infinite).
func (c *Client) Subscribe(ctx context.Context, eventURL *url.URL, callbackURL string, timeout time.Duration) (string, time.Duration, error) {
	req, err := c.newRequest(ctx, MethodSubscribe, eventURL)
	if err != nil {
		return "", 0, err
	}
	setHeader(req, HeaderCallback, "<"+callbackURL+">")
	setHeader(req, HeaderNT, NTEvent)
	setHeader(req, HeaderTimeout, FormatTimeout(timeout))

	resp, err := c.do(req, "")
	if err != nil {
		return "", 0, err
	}

	sid := strings.TrimSpace(resp.Header.Get(HeaderSID))
	if sid == "" {
		return "", 0, ErrNoSID
	}
	granted, err := ParseTimeout(resp.Header.Get(HeaderTimeout))
	if err != nil {
		granted = timeout
	}
	c.logger().Debug("subscribed", "url", eventURL.String(), "sid", sid, "timeout", granted)
	return sid, granted, nil
}

// Renew extends the subscription sid and returns the granted timeout.
func (c *Client) Renew(ctx context.Context, eventURL *url.URL, sid string, timeout time.Duration) (time.Duration, error) {
	req, err := c.newRequest(ctx, MethodSubscribe, eventURL)
	if err != nil {
		return 0, err
	}
	setHeader(req, HeaderSID, sid)
	setHeader(req, HeaderTimeout, FormatTimeout(timeout))

	resp, err := c.do(req, sid)
	if err != nil {
		return 0, err
	}

	granted, err := ParseTimeout(resp.Header.Get(HeaderTimeout))
	if err != nil {
		return timeout, nil
	}
	return granted, nil
}

// Unsubscribe cancels the subscription sid.
func (c *Client) Unsubscribe(ctx context.Context, eventURL *url.URL, sid string) error {
	req, err := c.newRequest(ctx, MethodUnsubscribe, eventURL)
	if err != nil {
		return err
	}
	setHeader(req, HeaderSID, sid)

	_, err = c.do(req, sid)
	return err
}

func (c *Client) newRequest(ctx context.Context, method string, eventURL *url.URL) (*http.Request, error) {
	if eventURL == nil {
		return nil, fmt.Errorf("%s: no event URL", method)
	}
	req, err := http.NewRequestWithContext(ctx, method, eventURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, eventURL, err)
	}
	return req, nil
}

// do sends req and requires 200 OK. The body is drained and closed.
func (c *Client) do(req *http.Request, sid string) (*http.Response, error) {
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	resp, err := client.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.capture(req, sid, status, err)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: %w: %d", req.Method, req.URL, ErrStatus, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) capture(req *http.Request, sid string, status int, err error) {
	if c.ProtocolLogger == nil {
		return
	}
	event := log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionOut,
		Layer:      log.LayerGENA,
		Category:   log.CategoryMessage,
		RemoteAddr: req.URL.Host,
		SID:        sid,
		Notify:     &log.NotifyEvent{Status: status},
	}
	if err != nil {
		event.Category = log.CategoryError
		event.Notify = nil
		event.Error = &log.ErrorEventData{
			Layer:   log.LayerGENA,
			Message: err.Error(),
			Context: req.Method,
		}
	}
	c.ProtocolLogger.Log(event)
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// setHeader sets a header keeping the upper-case spelling some devices
// insist on.
func setHeader(req *http.Request, name, value string) {
	req.Header[name] = []string{value}
}
