package gena

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header values.
const (
	NTEvent       = "upnp:event"
	NTSPropChange = "upnp:propchange"

	MethodNotify      = "NOTIFY"
	MethodSubscribe   = "SUBSCRIBE"
	MethodUnsubscribe = "UNSUBSCRIBE"

	HeaderNT       = "NT"
	HeaderNTS      = "NTS"
	HeaderSID      = "SID"
	HeaderSEQ      = "SEQ"
	HeaderCallback = "CALLBACK"
	HeaderTimeout  = "TIMEOUT"

	// TimeoutInfinite is the TIMEOUT value for a non-expiring subscription.
	TimeoutInfinite = "infinite"
)

// GENA errors.
var (
	ErrStatus         = errors.New("unexpected HTTP status")
	ErrNoSID          = errors.New("response without SID")
	ErrInvalidTimeout = errors.New("invalid TIMEOUT header")
)

// ParseTimeout parses a TIMEOUT header ("Second-1800" or "infinite").
// Infinite is returned as zero.
func ParseTimeout(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, TimeoutInfinite) || strings.EqualFold(v, "Second-infinite") {
		return 0, nil
	}
	if len(v) < len("Second-") || !strings.EqualFold(v[:len("Second-")], "Second-") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeout, v)
	}
	n, err := strconv.ParseUint(v[len("Second-"):], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeout, v)
	}
	return time.Duration(n) * time.Second, nil
}

// FormatTimeout renders d as a TIMEOUT header. Non-positive durations are
// infinite; sub-second remainders are rounded up.
func FormatTimeout(d time.Duration) string {
	if d <= 0 {
		return "Second-" + TimeoutInfinite
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return "Second-" + strconv.FormatInt(secs, 10)
}
