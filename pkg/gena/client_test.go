package gena_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnp-engine/upnp-go/pkg/gena"
)

type publisher struct {
	mu       sync.Mutex
	requests []*http.Request
	status   int
	timeout  string
}

func (p *publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r)
	p.mu.Unlock()
	if p.status != 0 && p.status != http.StatusOK {
		w.WriteHeader(p.status)
		return
	}
	if r.Method == gena.MethodSubscribe {
		w.Header()["SID"] = []string{"uuid:sub-1"}
		w.Header()["TIMEOUT"] = []string{p.timeout}
	}
	w.WriteHeader(http.StatusOK)
}

func newPublisher(t *testing.T, p *publisher) *url.URL {
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL + "/rc/event")
	require.NoError(t, err)
	return u
}

func TestClientSubscribe(t *testing.T) {
	p := &publisher{timeout: "Second-300"}
	eventURL := newPublisher(t, p)
	client := gena.NewClient(time.Second, nil, nil)

	sid, granted, err := client.Subscribe(context.Background(), eventURL, "http://10.0.0.2:4000/upnp/event", 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "uuid:sub-1", sid)
	assert.Equal(t, 300*time.Second, granted)

	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.Equal(t, "SUBSCRIBE", req.Method)
	assert.Equal(t, "/rc/event", req.URL.Path)
	assert.Equal(t, "<http://10.0.0.2:4000/upnp/event>", req.Header.Get("CALLBACK"))
	assert.Equal(t, "upnp:event", req.Header.Get("NT"))
	assert.Equal(t, "Second-1800", req.Header.Get("TIMEOUT"))
}

func TestClientRenewAndUnsubscribe(t *testing.T) {
	p := &publisher{timeout: "Second-120"}
	eventURL := newPublisher(t, p)
	client := gena.NewClient(time.Second, nil, nil)

	granted, err := client.Renew(context.Background(), eventURL, "uuid:sub-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, granted)

	require.NoError(t, client.Unsubscribe(context.Background(), eventURL, "uuid:sub-1"))

	require.Len(t, p.requests, 2)
	assert.Equal(t, "uuid:sub-1", p.requests[0].Header.Get("SID"))
	assert.Empty(t, p.requests[0].Header.Get("NT"), "renewal carries no NT")
	assert.Empty(t, p.requests[0].Header.Get("CALLBACK"))
	assert.Equal(t, "UNSUBSCRIBE", p.requests[1].Method)
	assert.Equal(t, "uuid:sub-1", p.requests[1].Header.Get("SID"))
}

func TestClientErrors(t *testing.T) {
	p := &publisher{status: http.StatusPreconditionFailed}
	eventURL := newPublisher(t, p)
	client := gena.NewClient(time.Second, nil, nil)

	_, err := client.Renew(context.Background(), eventURL, "uuid:gone", time.Minute)
	assert.ErrorIs(t, err, gena.ErrStatus)

	_, _, err = client.Subscribe(context.Background(), nil, "http://x/", time.Minute)
	assert.Error(t, err)
}

func TestClientSubscribeWithoutSID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	eventURL, _ := url.Parse(srv.URL)

	_, _, err := gena.NewClient(time.Second, nil, nil).Subscribe(context.Background(), eventURL, "http://x/", time.Minute)
	assert.ErrorIs(t, err, gena.ErrNoSID)
}
