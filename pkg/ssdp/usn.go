package ssdp

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// MaxMaxAge caps a parsed max-age so the derived expiry stays representable.
const MaxMaxAge = math.MaxInt32

// ParseUSN splits a USN header into its UUID and type parts at the first
// "::". Both parts are empty unless the USN starts with "uuid".
//
//	"uuid:X::urn:...:1" -> ("uuid:X", "urn:...:1")
//	"uuid:X"            -> ("uuid:X", "")
func ParseUSN(usn string) (uuid, typ string) {
	if !strings.HasPrefix(usn, "uuid") {
		return "", ""
	}
	uuid, typ, _ = strings.Cut(usn, "::")
	return uuid, typ
}

// ParseMaxAge extracts max-age (seconds) from a Cache-Control value. The
// directive name is case-insensitive. DefaultMaxAge is returned when the
// directive is absent, malformed, negative or not a number. Larger values
// than MaxMaxAge are clamped to it.
func ParseMaxAge(cacheControl string) int {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		n, err := strconv.ParseInt(value, 10, 64)
		if errors.Is(err, strconv.ErrRange) && n > 0 {
			return MaxMaxAge
		}
		if err != nil || n < 0 {
			return DefaultMaxAge
		}
		return int(min(n, MaxMaxAge))
	}
	return DefaultMaxAge
}
