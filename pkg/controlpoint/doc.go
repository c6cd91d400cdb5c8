// Package controlpoint ties the discovery and eventing pieces into a UPnP
// control point.
//
// A ControlPoint owns the task executors, the device and subscription
// registries, one SSDP receiver per interface and address family, and the
// GENA callback server. Advertisements flow from the receivers (or from an
// active search) into HandleMessage:
//
//	alive/update/response  known UDN   -> refresh, DeviceUpdated
//	                       new UDN     -> fetch description on the IO pool,
//	                                      register, DeviceAdded
//	byebye                             -> unregister, DeviceRemoved
//
// Subscriptions are made with Subscribe and renewed by the subscription
// registry. Incoming NOTIFY requests are matched by SID; an unknown SID is
// answered with 412.
//
// All application events are delivered through OnEvent handlers on the
// callback executor, one at a time and in submission order.
package controlpoint
