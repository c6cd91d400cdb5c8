package controlpoint_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/upnp-engine/upnp-go/pkg/controlpoint"
	"github.com/upnp-engine/upnp-go/pkg/description/mocks"
	"github.com/upnp-engine/upnp-go/pkg/upnp"
)

// publisher is a GENA event source.
type publisher struct {
	mu        sync.Mutex
	callbacks []string
	methods   []string
	renewals  int

	timeout     string
	renewStatus int
}

func (p *publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.methods = append(p.methods, r.Method+" "+r.Header.Get("SID"))
	switch {
	case r.Method == "SUBSCRIBE" && r.Header.Get("SID") == "":
		p.callbacks = append(p.callbacks, strings.Trim(r.Header.Get("CALLBACK"), "<>"))
		w.Header()["SID"] = []string{"uuid:sub-1"}
		w.Header()["TIMEOUT"] = []string{p.timeout}
	case r.Method == "SUBSCRIBE":
		p.renewals++
		if p.renewStatus != 0 {
			w.WriteHeader(p.renewStatus)
			return
		}
		w.Header()["TIMEOUT"] = []string{p.timeout}
	}
	w.WriteHeader(http.StatusOK)
}

func (p *publisher) callback(t *testing.T) string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.callbacks)
	return p.callbacks[len(p.callbacks)-1]
}

func (p *publisher) received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.methods...)
}

// publishedService registers a pinned device whose only service is evented
// by p.
func publishedService(t *testing.T, cp *controlpoint.ControlPoint, p *publisher) *upnp.Service {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	d := upnp.NewDevice("uuid:renderer-1")
	svc := &upnp.Service{
		ServiceType: "urn:schemas-upnp-org:service:RenderingControl:1",
		ServiceID:   "urn:upnp-org:serviceId:RenderingControl",
		EventSubURL: srv.URL + "/rc/event",
	}
	d.AddService(svc)
	cp.Register(d)
	return svc
}

func notify(t *testing.T, callbackURL, sid, seq, body string) int {
	t.Helper()
	req, err := http.NewRequest("NOTIFY", callbackURL, strings.NewReader(body))
	require.NoError(t, err)
	req.Header["NT"] = []string{"upnp:event"}
	req.Header["NTS"] = []string{"upnp:propchange"}
	req.Header["SID"] = []string{sid}
	req.Header["SEQ"] = []string{seq}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

const volumeEvent = `<?xml version="1.0"?>
<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
  <e:property><Volume>10</Volume></e:property>
</e:propertyset>`

func TestSubscribeReceiveUnsubscribe(t *testing.T) {
	cp, events := startControlPoint(t, testConfig(mocks.NewMockFetcher(t)))
	p := &publisher{timeout: "Second-300"}
	svc := publishedService(t, cp, p)

	sub, err := cp.Subscribe(context.Background(), svc, 0, true)
	require.NoError(t, err)
	assert.Equal(t, "uuid:sub-1", sub.SubscriptionID())
	assert.Equal(t, "uuid:sub-1", svc.SubscriptionID())
	assert.Same(t, svc, sub.Service())
	require.Len(t, cp.Subscriptions(), 1)

	callbackURL := p.callback(t)
	assert.True(t, strings.HasPrefix(callbackURL, "http://127.0.0.1:"), callbackURL)
	assert.True(t, strings.HasSuffix(callbackURL, "/upnp/event"), callbackURL)

	assert.Equal(t, http.StatusOK, notify(t, callbackURL, "uuid:sub-1", "0", volumeEvent))
	e := events.wait(t, controlpoint.EventPropertyChange)
	assert.Same(t, sub, e.Subscription)
	assert.Equal(t, uint32(0), e.Seq)
	assert.Equal(t, []upnp.Property{{Name: "Volume", Value: "10"}}, e.Properties)

	seq, seen := sub.LastSeq()
	assert.True(t, seen)
	assert.Zero(t, seq)

	assert.Equal(t, http.StatusPreconditionFailed, notify(t, callbackURL, "uuid:stranger", "0", volumeEvent))

	require.NoError(t, cp.Unsubscribe(context.Background(), "uuid:sub-1"))
	assert.Empty(t, cp.Subscriptions())
	assert.Empty(t, svc.SubscriptionID())
	assert.Contains(t, p.received(), "UNSUBSCRIBE uuid:sub-1")

	assert.Equal(t, http.StatusPreconditionFailed, notify(t, callbackURL, "uuid:sub-1", "1", volumeEvent))
	assert.ErrorIs(t, cp.Unsubscribe(context.Background(), "uuid:sub-1"), controlpoint.ErrNotSubscribed)
}

func TestSubscriptionRenewed(t *testing.T) {
	cp, events := startControlPoint(t, testConfig(mocks.NewMockFetcher(t)))
	p := &publisher{timeout: "Second-1"}
	svc := publishedService(t, cp, p)

	sub, err := cp.Subscribe(context.Background(), svc, time.Second, true)
	require.NoError(t, err)

	e := events.wait(t, controlpoint.EventSubscriptionRenewed)
	assert.Same(t, sub, e.Subscription)
	assert.Equal(t, time.Second, e.Timeout)
	assert.Len(t, cp.Subscriptions(), 1)
}

func TestSubscriptionRenewalFailure(t *testing.T) {
	cp, events := startControlPoint(t, testConfig(mocks.NewMockFetcher(t)))
	p := &publisher{timeout: "Second-1", renewStatus: http.StatusPreconditionFailed}
	svc := publishedService(t, cp, p)

	sub, err := cp.Subscribe(context.Background(), svc, time.Second, true)
	require.NoError(t, err)

	e := events.wait(t, controlpoint.EventSubscriptionFailed)
	assert.Same(t, sub, e.Subscription)
	assert.Error(t, e.Error)
	assert.Empty(t, cp.Subscriptions())
	assert.Empty(t, svc.SubscriptionID())
}

func TestSubscriptionExpires(t *testing.T) {
	cp, events := startControlPoint(t, testConfig(mocks.NewMockFetcher(t)))
	p := &publisher{timeout: "Second-1"}
	svc := publishedService(t, cp, p)

	sub, err := cp.Subscribe(context.Background(), svc, time.Second, false)
	require.NoError(t, err)

	e := events.wait(t, controlpoint.EventSubscriptionExpired)
	assert.Same(t, sub, e.Subscription)
	assert.Empty(t, svc.SubscriptionID())
}

func TestStopUnsubscribes(t *testing.T) {
	cp, err := controlpoint.New(testConfig(mocks.NewMockFetcher(t)))
	require.NoError(t, err)
	require.NoError(t, cp.Start(context.Background()))

	p := &publisher{timeout: "Second-300"}
	svc := publishedService(t, cp, p)
	_, err = cp.Subscribe(context.Background(), svc, 0, true)
	require.NoError(t, err)

	require.NoError(t, cp.Stop())
	assert.Contains(t, p.received(), "UNSUBSCRIBE uuid:sub-1")
}

func TestByeByeDropsSubscriptions(t *testing.T) {
	fetcher := mocks.NewMockFetcher(t)
	cp, events := startControlPoint(t, testConfig(fetcher))
	p := &publisher{timeout: "Second-300"}

	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	fetcher.EXPECT().Fetch(mock.Anything, mock.Anything).Return(strings.Replace(rendererXML,
		"<eventSubURL>/rc/event</eventSubURL>",
		"<eventSubURL>"+srv.URL+"/rc/event</eventSubURL>", 1), nil).Once()

	cp.HandleMessage(aliveFor("uuid:renderer-1::upnp:rootdevice", rendererLocation))
	added := events.wait(t, controlpoint.EventDeviceAdded)

	svc := added.Device.Services[0]
	_, err := cp.Subscribe(context.Background(), svc, 0, true)
	require.NoError(t, err)

	cp.HandleMessage(byeByeFor("uuid:renderer-1::upnp:rootdevice"))
	events.wait(t, controlpoint.EventDeviceRemoved)

	assert.Empty(t, cp.Subscriptions())
	assert.Empty(t, svc.SubscriptionID())
	assert.NotContains(t, p.received(), "UNSUBSCRIBE uuid:sub-1", "publisher is gone")
}

func TestSubscribeErrors(t *testing.T) {
	cp, err := controlpoint.New(testConfig(mocks.NewMockFetcher(t)))
	require.NoError(t, err)

	svc := &upnp.Service{EventSubURL: "http://127.0.0.1:1/event"}
	_, err = cp.Subscribe(context.Background(), svc, 0, false)
	assert.ErrorIs(t, err, controlpoint.ErrNotStarted)

	require.NoError(t, cp.Start(context.Background()))
	t.Cleanup(func() { _ = cp.Stop() })

	d := upnp.NewDevice("uuid:quiet")
	quiet := &upnp.Service{ServiceType: "urn:schemas-upnp-org:service:Quiet:1"}
	d.AddService(quiet)
	_, err = cp.Subscribe(context.Background(), quiet, 0, false)
	assert.ErrorIs(t, err, controlpoint.ErrNoEventURL)

	orphan := &upnp.Service{EventSubURL: "/event"}
	_, err = cp.Subscribe(context.Background(), orphan, 0, false)
	assert.ErrorIs(t, err, controlpoint.ErrNoEventURL)
}
