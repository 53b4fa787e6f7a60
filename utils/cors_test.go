package utils

import "testing"

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		allowed bool
	}{
		// localhost and loopback
		{"http://localhost", true},
		{"http://localhost:8580", true},
		{"http://127.0.0.1:8580", true},

		// private ranges
		{"http://192.168.1.20", true},
		{"http://10.0.0.5:8580", true},
		{"http://172.16.0.1", true},
		{"http://172.31.255.255:443", true},
		{"http://169.254.1.1", true},

		// LAN hostnames
		{"http://htpc.local", true},
		{"http://htpc.local:8580", true},
		{"http://mediabox:8580", true},

		// public origins
		{"https://example.com", false},
		{"https://api.themoviedb.org", false},
		{"http://htpc.local.evil.com", false},
		{"http://8.8.8.8", false},

		// malformed
		{"", false},
		{"not-a-url", false},
	}

	for _, tt := range tests {
		if got := IsAllowedOrigin(tt.origin); got != tt.allowed {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.allowed)
		}
	}
}
