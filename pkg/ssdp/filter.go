package ssdp

import (
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// CheckNotify verifies that m is an UPnP NOTIFY: NOTIFY method, non-empty NT
// and NTS, a recognized NTS, and a USN starting with "uuid". For non-byebye
// messages the Location must also be valid.
func CheckNotify(m *Message) error {
	if !m.IsNotify() {
		return ErrNotNotify
	}
	if m.NT() == "" || m.NTS() == "" || m.UUID() == "" {
		return ErrNotUPnP
	}
	switch m.NTS() {
	case NTSAlive, NTSByeBye, NTSUpdate:
	default:
		return ErrNotUPnP
	}
	if !m.IsByeBye() && !ValidLocation(m.Location()) {
		return ErrBadLocation
	}
	return nil
}

// ValidLocation reports whether u is an absolute http(s) URL whose host could
// plausibly be reached: not empty, not unspecified and not multicast.
func ValidLocation(u *url.URL) bool {
	if u == nil || !u.IsAbs() {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	host := u.Hostname()
	if host == "" {
		return false
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.IsUnspecified() || addr.IsMulticast() {
			return false
		}
	}
	return true
}

// CheckSegment returns ErrOutOfSegment when m did not come from within
// prefix. Byebye messages always pass so a departing device is never missed.
func CheckSegment(prefix netip.Prefix, m *Message) error {
	if m.IsByeBye() || InSegment(prefix, m.RemoteAddr().Addr()) {
		return nil
	}
	return ErrOutOfSegment
}

// InSegment reports whether addr lies within prefix. IPv4-mapped IPv6
// addresses are compared as IPv4.
func InSegment(prefix netip.Prefix, addr netip.Addr) bool {
	if !prefix.IsValid() || !addr.IsValid() {
		return false
	}
	return prefix.Contains(addr.Unmap())
}

// InterfacePrefix returns the first address and subnet of ifi in the wanted
// family ("udp4" or "udp6"). IPv6 prefers a link-local address.
func InterfacePrefix(ifi *net.Interface, network string) (netip.Addr, netip.Prefix, bool) {
	if ifi == nil {
		return netip.Addr{}, netip.Prefix{}, false
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return netip.Addr{}, netip.Prefix{}, false
	}

	var found netip.Prefix
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipnet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		ones, _ := ipnet.Mask.Size()
		prefix := netip.PrefixFrom(ip, ones)

		if network == "udp6" {
			if !ip.Is6() {
				continue
			}
			if ip.IsLinkLocalUnicast() {
				return ip, prefix.Masked(), true
			}
			if !found.IsValid() {
				found = prefix
			}
			continue
		}
		if ip.Is4() {
			return ip, prefix.Masked(), true
		}
	}
	if found.IsValid() {
		return found.Addr(), found.Masked(), true
	}
	return netip.Addr{}, netip.Prefix{}, false
}
