// Package gena implements the control point side of UPnP eventing (GENA):
// the HTTP callback server that receives NOTIFY requests, the propertyset
// body parser, and the SUBSCRIBE/UNSUBSCRIBE client.
//
// The callback server answers every request with one of three status lines
// and identical headers ("Connection: close", "Content-Length: 0"):
//
//	400 Bad Request           NT or NTS missing or empty
//	412 Precondition Failed   wrong NT/NTS, no SID, bad SEQ, empty or
//	                          malformed body, or the listener refused
//	200 OK                    the listener accepted the properties
//
// Failure responses never carry error detail.
package gena
