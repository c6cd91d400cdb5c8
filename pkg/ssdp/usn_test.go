package ssdp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUSN(t *testing.T) {
	tests := []struct {
		usn      string
		wantUUID string
		wantType string
	}{
		{"uuid:1234::urn:schemas-upnp-org:device:MediaRenderer:1", "uuid:1234", "urn:schemas-upnp-org:device:MediaRenderer:1"},
		{"uuid:1234::upnp:rootdevice", "uuid:1234", "upnp:rootdevice"},
		{"uuid:1234", "uuid:1234", ""},
		{"uuid:a::b::c", "uuid:a", "b::c"},
		{"urn:schemas-upnp-org:device:Basic:1", "", ""},
		{"", "", ""},
		{"UUID:1234::x", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.usn, func(t *testing.T) {
			gotUUID, gotType := ParseUSN(tt.usn)
			assert.Equal(t, tt.wantUUID, gotUUID)
			assert.Equal(t, tt.wantType, gotType)
		})
	}
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"max-age=100", 100},
		{"max-age = 42", 42},
		{"MAX-AGE=7", 7},
		{"no-cache, max-age=300", 300},
		{`max-age="60"`, 60},
		{"max-age=0", 0},
		{"", DefaultMaxAge},
		{"no-cache", DefaultMaxAge},
		{"max-age=abc", DefaultMaxAge},
		{"max-age=-5", DefaultMaxAge},
		{"max-age", DefaultMaxAge},
		{"max-age=9300000000", MaxMaxAge},
		{"max-age=99999999999999999999999", MaxMaxAge},
		{"max-age=-99999999999999999999999", DefaultMaxAge},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMaxAge(tt.value))
		})
	}
}

func TestParseMaxAgeNonNegativeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 59, 1800, 86400, 1 << 30} {
		assert.Equal(t, n, ParseMaxAge(fmt.Sprintf("max-age=%d", n)))
	}
}
