package upnp

// Property is one changed state variable from an event notification.
type Property struct {
	Name  string
	Value string
}
