// Package upnp holds the device model shared by the registry, the
// description parser and the control point.
//
// A Device is a node in the description tree (root device with embedded
// devices and their services). Besides the immutable description fields it
// carries lifecycle state taken from SSDP advertisements: expiry time,
// location, arrival interface and the pinned flag. Lifecycle state is
// guarded by the device's own mutex so the registry loop may read it while
// the control point refreshes it.
package upnp
