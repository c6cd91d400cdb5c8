// Package ssdp implements the SSDP side of UPnP discovery: the datagram
// message model, the multicast receive path with its acceptance rules, active
// M-SEARCH, and a minimal NOTIFY announcer.
//
// # Messages
//
// Parse turns a raw datagram into a Message. The USN header is split into a
// UUID and a type at the first "::", Cache-Control max-age is parsed with a
// default of 1800 seconds, and the expiry time is derived from the receipt
// time, max-age and ExpiryMargin. Expiry is never taken from the wire.
//
// # Receiving
//
// A Receiver owns one multicast socket for one interface and address family.
// Each datagram passes, in order: parsing, the segment check (source must be
// inside the interface subnet unless the message is a byebye), the owner
// filter, the NOTIFY method check, the UPnP header check and, except for
// byebye, the Location check. Accepted messages go to a single OnMessage
// callback. A bad packet never stops the receive loop.
package ssdp
