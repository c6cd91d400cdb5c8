package upnp

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"sync"
	"time"

	"github.com/upnp-engine/upnp-go/pkg/ssdp"
)

// Device model errors.
var (
	ErrNoLocation = errors.New("device has no location")
	ErrEmptyURL   = errors.New("empty URL reference")
)

// Icon is one entry of a device iconList.
type Icon struct {
	MimeType string
	Width    int
	Height   int
	Depth    int
	URL      string
}

// Device is a discovered UPnP device, root or embedded.
type Device struct {
	UDN             string
	DeviceType      string
	FriendlyName    string
	Manufacturer    string
	ModelName       string
	ModelNumber     string
	SerialNumber    string
	PresentationURL string

	// Description is the raw description document. Only set on root devices.
	Description string

	Services []*Service
	Icons    []Icon
	Devices  []*Device

	parent *Device

	mu         sync.RWMutex
	expireTime time.Time
	location   *url.URL
	urlBase    *url.URL
	localAddr  netip.Addr
	pinned     bool
}

// NewDevice creates a device with the given UDN.
func NewDevice(udn string) *Device {
	return &Device{UDN: udn}
}

// AddService attaches s to d.
func (d *Device) AddService(s *Service) {
	s.device = d
	d.Services = append(d.Services, s)
}

// AddDevice attaches child as an embedded device of d.
func (d *Device) AddDevice(child *Device) {
	child.parent = d
	d.Devices = append(d.Devices, child)
}

// Parent returns the enclosing device, or nil for a root device.
func (d *Device) Parent() *Device {
	return d.parent
}

// Root returns the root of d's tree.
func (d *Device) Root() *Device {
	root := d
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// IsRoot reports whether d has no parent.
func (d *Device) IsRoot() bool {
	return d.parent == nil
}

// Embedded returns all descendants of d, depth first.
func (d *Device) Embedded() []*Device {
	var out []*Device
	for _, child := range d.Devices {
		out = append(out, child)
		out = append(out, child.Embedded()...)
	}
	return out
}

// FindService returns the first service of the given type in d or any
// embedded device.
func (d *Device) FindService(serviceType string) *Service {
	for _, s := range d.Services {
		if s.ServiceType == serviceType {
			return s
		}
	}
	for _, child := range d.Devices {
		if s := child.FindService(serviceType); s != nil {
			return s
		}
	}
	return nil
}

// FindServiceByID returns the service with the given serviceId in d's tree.
func (d *Device) FindServiceByID(serviceID string) *Service {
	for _, s := range d.Services {
		if s.ServiceID == serviceID {
			return s
		}
	}
	for _, child := range d.Devices {
		if s := child.FindServiceByID(serviceID); s != nil {
			return s
		}
	}
	return nil
}

// AllServices returns the services of d and every embedded device.
func (d *Device) AllServices() []*Service {
	out := append([]*Service(nil), d.Services...)
	for _, child := range d.Devices {
		out = append(out, child.AllServices()...)
	}
	return out
}

// ExpireTime returns when the device's advertisement lapses.
func (d *Device) ExpireTime() time.Time {
	root := d.Root()
	root.mu.RLock()
	defer root.mu.RUnlock()
	return root.expireTime
}

// SetExpireTime sets the expiry time unconditionally.
func (d *Device) SetExpireTime(t time.Time) {
	root := d.Root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.expireTime = t
}

// Location returns the description URL of the root device.
func (d *Device) Location() *url.URL {
	root := d.Root()
	root.mu.RLock()
	defer root.mu.RUnlock()
	return root.location
}

// SetLocation sets the description URL.
func (d *Device) SetLocation(u *url.URL) {
	root := d.Root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.location = u
}

// SetURLBase sets the URLBase from the description, used instead of the
// location when resolving relative URLs.
func (d *Device) SetURLBase(u *url.URL) {
	root := d.Root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.urlBase = u
}

// LocalAddr returns the interface address the device was seen on.
func (d *Device) LocalAddr() netip.Addr {
	root := d.Root()
	root.mu.RLock()
	defer root.mu.RUnlock()
	return root.localAddr
}

// IsPinned reports whether the device was registered manually and never
// expires.
func (d *Device) IsPinned() bool {
	root := d.Root()
	root.mu.RLock()
	defer root.mu.RUnlock()
	return root.pinned
}

// Pin marks the device as non-expiring.
func (d *Device) Pin() {
	root := d.Root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.pinned = true
	root.expireTime = ssdp.Never
}

// Refresh applies an advertisement. The expiry time only moves forward; the
// location and arrival interface follow the newest message. It reports
// whether the expiry time advanced.
func (d *Device) Refresh(msg *ssdp.Message) bool {
	root := d.Root()
	root.mu.Lock()
	defer root.mu.Unlock()

	if msg.IsPinned() {
		root.pinned = true
	}
	if loc := msg.Location(); loc != nil {
		root.location = loc
	}
	if addr := msg.LocalAddr(); addr.IsValid() {
		root.localAddr = addr
	}

	expire := msg.ExpireTime()
	if root.pinned {
		expire = ssdp.Never
	}
	if !expire.After(root.expireTime) {
		return false
	}
	root.expireTime = expire
	return true
}

// Expired reports whether the device lapsed before now. Pinned devices never
// expire.
func (d *Device) Expired(now time.Time) bool {
	root := d.Root()
	root.mu.RLock()
	defer root.mu.RUnlock()
	return !root.pinned && root.expireTime.Before(now)
}

// ResolveURL resolves ref against the device's URLBase or location.
func (d *Device) ResolveURL(ref string) (*url.URL, error) {
	if ref == "" {
		return nil, ErrEmptyURL
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", ref, err)
	}
	if rel.IsAbs() {
		return rel, nil
	}

	root := d.Root()
	root.mu.RLock()
	base := root.urlBase
	if base == nil {
		base = root.location
	}
	root.mu.RUnlock()

	if base == nil {
		return nil, ErrNoLocation
	}
	return base.ResolveReference(rel), nil
}

// String returns a short description for logs.
func (d *Device) String() string {
	if d.FriendlyName != "" {
		return fmt.Sprintf("%s (%s)", d.FriendlyName, d.UDN)
	}
	return d.UDN
}
