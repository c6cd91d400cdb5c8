package upnp

import (
	"net/url"
	"sync"
)

// Service is one entry of a device serviceList.
type Service struct {
	ServiceType string
	ServiceID   string
	SCPDURL     string
	ControlURL  string
	EventSubURL string

	device *Device

	mu  sync.Mutex
	sid string
}

// Device returns the device that owns s.
func (s *Service) Device() *Device {
	return s.device
}

// EventURL returns the absolute eventSubURL.
func (s *Service) EventURL() (*url.URL, error) {
	if s.device == nil {
		return nil, ErrNoLocation
	}
	return s.device.ResolveURL(s.EventSubURL)
}

// SubscriptionID returns the current subscription id, empty if the service
// is not subscribed.
func (s *Service) SubscriptionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// SetSubscriptionID records the subscription id. Empty clears it.
func (s *Service) SetSubscriptionID(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sid = sid
}

func (s *Service) String() string {
	if s.ServiceID != "" {
		return s.ServiceID
	}
	return s.ServiceType
}
