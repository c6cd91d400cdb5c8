package controlpoint

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"sync"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/gena"
	"github.com/upnp-engine/upnp-go/pkg/subscription"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// Subscription is an active GENA subscription to one service.
type Subscription struct {
	service  *upnp.Service
	eventURL *url.URL
	client   *gena.Client
	timeout  time.Duration

	mu      sync.Mutex
	sid     string
	lastSeq uint32
	seen    bool
}

// SubscriptionID returns the SID issued by the publisher.
func (s *Subscription) SubscriptionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// Service returns the subscribed service.
func (s *Subscription) Service() *upnp.Service {
	return s.service
}

// EventURL returns the publisher's event subscription URL.
func (s *Subscription) EventURL() *url.URL {
	return s.eventURL
}

// LastSeq returns the last event sequence number received and whether any
// event has arrived yet.
func (s *Subscription) LastSeq() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq, s.seen
}

// Renew sends a renewal SUBSCRIBE and returns the granted timeout.
func (s *Subscription) Renew(ctx context.Context) (time.Duration, error) {
	return s.client.Renew(ctx, s.eventURL, s.SubscriptionID(), s.timeout)
}

// observe records seq and reports whether it follows the previous event
// without a gap. SEQ wraps from the maximum back to 1, never to 0.
func (s *Subscription) observe(seq uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	inOrder := !s.seen && seq == 0 ||
		s.seen && (seq == s.lastSeq+1 || s.lastSeq == ^uint32(0) && seq == 1)
	s.lastSeq = seq
	s.seen = true
	return inOrder
}

func (s *Subscription) String() string {
	return fmt.Sprintf("%s (%s)", s.SubscriptionID(), s.service)
}

var _ subscription.Renewable = (*Subscription)(nil)

// Subscribe subscribes to svc's events. A zero timeout requests the
// configured default. With autoRenew the subscription registry renews it
// before it lapses.
func (cp *ControlPoint) Subscribe(ctx context.Context, svc *upnp.Service, timeout time.Duration, autoRenew bool) (*Subscription, error) {
	if _, _, ok := cp.running(); !ok {
		return nil, ErrNotStarted
	}
	if svc.EventSubURL == "" {
		return nil, ErrNoEventURL
	}
	eventURL, err := svc.EventURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoEventURL, err)
	}
	if timeout <= 0 {
		timeout = cp.config.SubscriptionTimeout
	}

	callbackURL, err := cp.callbackURL(svc, eventURL)
	if err != nil {
		return nil, err
	}

	cp.subscribing.Lock()
	defer cp.subscribing.Unlock()

	sid, granted, err := cp.client.Subscribe(ctx, eventURL, callbackURL, timeout)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		service:  svc,
		eventURL: eventURL,
		client:   cp.client,
		timeout:  timeout,
		sid:      sid,
	}
	svc.SetSubscriptionID(sid)
	cp.subs.Add(sub, granted, autoRenew)

	cp.logger.Info("subscribed", "sid", sid, "service", svc.String(), "timeout", granted, "callback", callbackURL)
	return sub, nil
}

// callbackURL builds the CALLBACK URL a publisher at eventURL can reach.
func (cp *ControlPoint) callbackURL(svc *upnp.Service, eventURL *url.URL) (string, error) {
	cp.mu.RLock()
	callback := cp.callback
	cp.mu.RUnlock()
	if callback == nil {
		return "", ErrNotStarted
	}

	if host := cp.config.CallbackHost; host != "" {
		return callback.URL(host), nil
	}
	if d := svc.Device(); d != nil {
		if addr := d.LocalAddr(); addr.IsValid() && !addr.IsUnspecified() {
			return callback.URL(addr.String()), nil
		}
	}
	addr, err := routeTo(eventURL)
	if err != nil {
		return "", fmt.Errorf("no local address for %s: %w", eventURL.Host, err)
	}
	return callback.URL(addr.String()), nil
}

// routeTo returns the local address the kernel would use to reach u. A UDP
// "connect" sends no packet.
func routeTo(u *url.URL) (netip.Addr, error) {
	port := u.Port()
	if port == "" {
		port = "80"
	}
	conn, err := net.Dial("udp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return netip.Addr{}, err
	}
	defer conn.Close()

	ap, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return netip.Addr{}, err
	}
	return ap.Addr().Unmap(), nil
}

// Unsubscribe cancels the subscription sid and removes it from the registry.
// The entry is removed even if the publisher cannot be reached.
func (cp *ControlPoint) Unsubscribe(ctx context.Context, sid string) error {
	r, ok := cp.subs.Get(sid)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, sid)
	}
	sub, ok := r.(*Subscription)
	if !ok {
		cp.subs.Remove(sid)
		return nil
	}
	return cp.unsubscribe(ctx, sub)
}

func (cp *ControlPoint) unsubscribe(ctx context.Context, sub *Subscription) error {
	sid := sub.SubscriptionID()
	cp.subs.Remove(sid)
	sub.service.SetSubscriptionID("")

	if err := cp.client.Unsubscribe(ctx, sub.eventURL, sid); err != nil {
		cp.logger.Debug("unsubscribe failed", "sid", sid, "error", err)
		return err
	}
	cp.logger.Info("unsubscribed", "sid", sid)
	return nil
}

// Subscriptions returns the active subscriptions sorted by SID.
func (cp *ControlPoint) Subscriptions() []*Subscription {
	entries := cp.subs.Entries()
	subs := make([]*Subscription, 0, len(entries))
	for _, e := range entries {
		if sub, ok := e.Subscription.(*Subscription); ok {
			subs = append(subs, sub)
		}
	}
	return subs
}

// dropSubscriptions forgets the subscriptions of d's services without
// contacting the publisher, which is gone.
func (cp *ControlPoint) dropSubscriptions(d *upnp.Device) {
	root := d.Root()
	for _, sub := range cp.Subscriptions() {
		owner := sub.service.Device()
		if owner == nil || owner.Root() != root {
			continue
		}
		sid := sub.SubscriptionID()
		cp.subs.Remove(sid)
		sub.service.SetSubscriptionID("")
		cp.logger.Debug("subscription dropped", "sid", sid, "udn", root.UDN)
	}
}

// handleNotify is the callback server listener. Unknown SIDs are refused.
func (cp *ControlPoint) handleNotify(sid string, seq uint32, props []upnp.Property) bool {
	cp.subscribing.RLock()
	r, ok := cp.subs.Get(sid)
	cp.subscribing.RUnlock()
	if !ok {
		cp.logger.Debug("event for unknown subscription", "sid", sid, "seq", seq)
		return false
	}
	sub, ok := r.(*Subscription)
	if !ok {
		return false
	}
	if !sub.observe(seq) {
		cp.logger.Debug("event sequence gap", "sid", sid, "seq", seq)
	}

	cp.emit(Event{
		Type:         EventPropertyChange,
		Subscription: sub,
		Seq:          seq,
		Properties:   props,
	})
	return true
}

func (cp *ControlPoint) subscriptionRenewed(r subscription.Renewable, granted time.Duration) {
	sub, _ := r.(*Subscription)
	cp.emit(Event{Type: EventSubscriptionRenewed, Subscription: sub, Timeout: granted})
}

func (cp *ControlPoint) subscriptionExpired(r subscription.Renewable) {
	sub, ok := r.(*Subscription)
	if ok {
		sub.service.SetSubscriptionID("")
	}
	cp.logger.Info("subscription expired", "sid", r.SubscriptionID())
	cp.emit(Event{Type: EventSubscriptionExpired, Subscription: sub})
}

func (cp *ControlPoint) subscriptionFailed(r subscription.Renewable, err error) {
	sub, ok := r.(*Subscription)
	if ok {
		sub.service.SetSubscriptionID("")
	}
	cp.logger.Warn("subscription renewal failed", "sid", r.SubscriptionID(), "error", err)
	cp.emit(Event{Type: EventSubscriptionFailed, Subscription: sub, Error: err})
}
