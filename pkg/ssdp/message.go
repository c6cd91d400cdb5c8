package ssdp

import (
	"bufio"
	"bytes"
	"fmt"
	"net/netip"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Message is one SSDP datagram: a NOTIFY or M-SEARCH request, or a search
// response. Derived fields (UUID, type, max-age, expiry, location) are
// computed from the headers and are never set directly.
//
// A Message is read-only once handed out. SetHeader exists for building and
// for tests and must not race with readers.
type Message struct {
	method     string
	requestURI string
	statusCode int
	status     string
	proto      string

	header textproto.MIMEHeader
	keys   []string // header names in insertion order, original case

	uuid       string
	typ        string
	maxAge     int
	receivedAt time.Time
	expireTime time.Time
	location   *url.URL
	pinned     bool

	localAddr  netip.Addr
	scopeID    string
	remoteAddr netip.AddrPort
}

// Parse parses a raw datagram received at receivedAt.
func Parse(data []byte, receivedAt time.Time) (*Message, error) {
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(data)))

	line, err := r.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("%w: start line: %v", ErrInvalidMessage, err)
	}

	m := &Message{receivedAt: receivedAt}
	if err := m.parseStartLine(line); err != nil {
		return nil, err
	}

	hdr, err := r.ReadMIMEHeader()
	if err != nil && len(hdr) == 0 {
		return nil, fmt.Errorf("%w: headers: %v", ErrInvalidMessage, err)
	}
	m.header = hdr
	for name := range hdr {
		m.keys = append(m.keys, strings.ToUpper(name))
	}
	sort.Strings(m.keys)
	m.derive()
	return m, nil
}

func (m *Message) parseStartLine(line string) error {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(parts) < 2 {
		return fmt.Errorf("%w: start line %q", ErrInvalidMessage, line)
	}

	if strings.HasPrefix(parts[0], "HTTP/") {
		code, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("%w: status %q", ErrInvalidMessage, parts[1])
		}
		m.proto = parts[0]
		m.statusCode = code
		if len(parts) == 3 {
			m.status = parts[2]
		}
		return nil
	}

	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return fmt.Errorf("%w: request line %q", ErrInvalidMessage, line)
	}
	m.method = strings.ToUpper(parts[0])
	m.requestURI = parts[1]
	m.proto = parts[2]
	return nil
}

// derive recomputes the header-derived fields.
func (m *Message) derive() {
	m.uuid, m.typ = ParseUSN(m.header.Get(HeaderUSN))

	m.location = nil
	if raw := strings.TrimSpace(m.header.Get(HeaderLocation)); raw != "" {
		if u, err := url.Parse(raw); err == nil {
			m.location = u
		}
	}

	if m.pinned {
		return
	}
	m.maxAge = ParseMaxAge(m.header.Get(HeaderCacheControl))
	m.expireTime = m.receivedAt.Add(time.Duration(m.maxAge)*time.Second + ExpiryMargin)
}

// NewPinned creates a synthetic message for a manually registered device.
// It never expires.
func NewPinned(usn, location string) *Message {
	m := &Message{
		method:     MethodNotify,
		requestURI: "*",
		proto:      "HTTP/1.1",
		header:     make(textproto.MIMEHeader),
		maxAge:     MaxMaxAge,
		receivedAt: time.Now(),
		expireTime: Never,
		pinned:     true,
	}
	m.set(HeaderNT, TargetRoot)
	m.set(HeaderNTS, NTSAlive)
	m.set(HeaderUSN, usn)
	if location != "" {
		m.set(HeaderLocation, location)
	}
	m.derive()
	return m
}

// NewResponse creates a search response message, as produced by M-SEARCH.
func NewResponse(st, usn, location, server string, maxAge int, receivedAt time.Time) *Message {
	m := &Message{
		statusCode: 200,
		status:     "OK",
		proto:      "HTTP/1.1",
		header:     make(textproto.MIMEHeader),
		receivedAt: receivedAt,
	}
	m.set(HeaderCacheControl, fmt.Sprintf("max-age=%d", maxAge))
	m.set(HeaderExt, "")
	m.set(HeaderLocation, location)
	if server != "" {
		m.set(HeaderServer, server)
	}
	m.set(HeaderST, st)
	m.set(HeaderUSN, usn)
	m.derive()
	return m
}

// NotifyParams describes an outgoing NOTIFY.
type NotifyParams struct {
	// Host is the HOST header. Empty uses the IPv4 multicast group.
	Host string

	NT       string
	NTS      string
	USN      string
	Location string
	Server   string

	// MaxAge in seconds. Zero uses DefaultMaxAge.
	MaxAge int
}

// NewNotify builds a NOTIFY request. Cache-Control and Location are omitted
// for byebye.
func NewNotify(p NotifyParams) *Message {
	m := &Message{
		method:     MethodNotify,
		requestURI: "*",
		proto:      "HTTP/1.1",
		header:     make(textproto.MIMEHeader),
		receivedAt: time.Now(),
	}
	host := p.Host
	if host == "" {
		host = MulticastAddrV4.String()
	}
	maxAge := p.MaxAge
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	server := p.Server
	if server == "" {
		server = DefaultServer
	}

	m.set(HeaderHost, host)
	if p.NTS != NTSByeBye {
		m.set(HeaderCacheControl, fmt.Sprintf("max-age=%d", maxAge))
		m.set(HeaderLocation, p.Location)
	}
	m.set(HeaderNT, p.NT)
	m.set(HeaderNTS, p.NTS)
	m.set(HeaderServer, server)
	m.set(HeaderUSN, p.USN)
	m.derive()
	return m
}

// NewSearch builds an M-SEARCH request for search target st. mx is the
// maximum response delay in seconds.
func NewSearch(st string, mx int) *Message {
	m := &Message{
		method:     MethodSearch,
		requestURI: "*",
		proto:      "HTTP/1.1",
		header:     make(textproto.MIMEHeader),
		receivedAt: time.Now(),
	}
	m.set(HeaderHost, MulticastAddrV4.String())
	m.set(HeaderMAN, ManDiscover)
	m.set(HeaderMX, strconv.Itoa(mx))
	m.set(HeaderST, st)
	m.derive()
	return m
}

func (m *Message) set(name, value string) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	if _, ok := m.header[key]; !ok {
		m.keys = append(m.keys, strings.ToUpper(name))
	}
	m.header.Set(key, value)
}

// SetHeader replaces a header and recomputes the derived fields.
func (m *Message) SetHeader(name, value string) {
	if m.header == nil {
		m.header = make(textproto.MIMEHeader)
	}
	m.set(name, value)
	m.derive()
}

// Bytes serializes the message as a datagram.
func (m *Message) Bytes() []byte {
	var b bytes.Buffer
	b.WriteString(m.StartLine())
	b.WriteString("\r\n")
	for _, name := range m.keys {
		for _, v := range m.header.Values(name) {
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

// StartLine returns the request or status line.
func (m *Message) StartLine() string {
	if m.IsRequest() {
		return m.method + " " + m.requestURI + " " + m.proto
	}
	line := m.proto + " " + strconv.Itoa(m.statusCode)
	if m.status != "" {
		line += " " + m.status
	}
	return line
}

// IsRequest reports whether the message is a request rather than a response.
func (m *Message) IsRequest() bool { return m.method != "" }

// Method returns the request method, empty for responses.
func (m *Message) Method() string { return m.method }

// StatusCode returns the response status code, zero for requests.
func (m *Message) StatusCode() int { return m.statusCode }

// Header returns the first value of the named header.
func (m *Message) Header(name string) string { return m.header.Get(name) }

// UUID returns the "uuid:..." part of the USN.
func (m *Message) UUID() string { return m.uuid }

// Type returns the part of the USN after "::".
func (m *Message) Type() string { return m.typ }

func (m *Message) USN() string { return m.header.Get(HeaderUSN) }
func (m *Message) NT() string { return m.header.Get(HeaderNT) }
func (m *Message) NTS() string { return m.header.Get(HeaderNTS) }
func (m *Message) ST() string { return m.header.Get(HeaderST) }
func (m *Message) Server() string { return m.header.Get(HeaderServer) }

// MaxAge returns the advertised lifetime in seconds.
func (m *Message) MaxAge() int { return m.maxAge }

// ExpireTime returns when the advertisement lapses, including ExpiryMargin.
func (m *Message) ExpireTime() time.Time { return m.expireTime }

// ReceivedAt returns the receipt (or construction) time.
func (m *Message) ReceivedAt() time.Time { return m.receivedAt }

// Location returns the parsed Location header, or nil if absent or invalid.
func (m *Message) Location() *url.URL { return m.location }

// LocalAddr returns the address of the interface the datagram arrived on.
func (m *Message) LocalAddr() netip.Addr { return m.localAddr }

// ScopeID returns the IPv6 zone of the arrival interface.
func (m *Message) ScopeID() string { return m.scopeID }

// RemoteAddr returns the datagram source.
func (m *Message) RemoteAddr() netip.AddrPort { return m.remoteAddr }

// IsPinned reports whether the message is a synthetic, non-expiring entry.
func (m *Message) IsPinned() bool { return m.pinned }

func (m *Message) IsAlive() bool { return m.NTS() == NTSAlive }
func (m *Message) IsByeBye() bool { return m.NTS() == NTSByeBye }
func (m *Message) IsUpdate() bool { return m.NTS() == NTSUpdate }
func (m *Message) IsNotify() bool { return m.method == MethodNotify }
func (m *Message) IsSearch() bool { return m.method == MethodSearch }
func (m *Message) IsResponse() bool { return m.method == "" }

// String returns a short description for logs.
func (m *Message) String() string {
	if m.IsRequest() {
		return fmt.Sprintf("%s nts=%s usn=%s", m.method, m.NTS(), m.USN())
	}
	return fmt.Sprintf("response %d st=%s usn=%s", m.statusCode, m.ST(), m.USN())
}
