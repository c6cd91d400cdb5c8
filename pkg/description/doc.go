// Package description fetches UPnP device description documents and parses
// them into upnp.Device trees.
package description
