package helpers

import (
	"net"
	"testing"
)

func TestSafeTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"very-long-token-abc123", 8, "very-lon"},
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"", 3, ""},
		{"test", 0, ""},
		{"test", -1, ""},
	}

	for _, tt := range tests {
		if got := SafeTruncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("SafeTruncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestClassifyIP(t *testing.T) {
	tests := []struct {
		ip   string
		want IPClass
	}{
		{"8.8.8.8", IPPublic},
		{"2001:4860:4860::8888", IPPublic},
		{"127.0.0.1", IPLoopback},
		{"127.10.0.1", IPLoopback},
		{"::1", IPLoopback},
		{"10.0.0.1", IPPrivate},
		{"172.16.5.4", IPPrivate},
		{"192.168.1.1", IPPrivate},
		{"fd00::1", IPPrivate},
		{"169.254.169.254", IPLinkLocal},
		{"fe80::1", IPLinkLocal},
		{"ff02::1", IPLinkLocal},
		{"0.0.0.0", IPUnspecified},
		{"::", IPUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := ClassifyIP(net.ParseIP(tt.ip)); got != tt.want {
				t.Errorf("ClassifyIP(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}

	if got := ClassifyIP(nil); got != IPUnspecified {
		t.Errorf("ClassifyIP(nil) = %v, want unspecified", got)
	}
}

func TestClassifyHost(t *testing.T) {
	tests := []struct {
		host string
		want IPClass
	}{
		{"localhost", IPLoopback},
		{"LOCALHOST", IPLoopback},
		{"[::1]", IPLoopback},
		{"10.1.2.3", IPPrivate},
		{"accounts.example.com", IPPublic},
		{"169.254.169.254", IPLinkLocal},
	}

	for _, tt := range tests {
		if got := ClassifyHost(tt.host); got != tt.want {
			t.Errorf("ClassifyHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestIPClass_String(t *testing.T) {
	if IPLinkLocal.String() != "link-local" {
		t.Errorf("IPLinkLocal.String() = %q", IPLinkLocal.String())
	}
	if IPClass(99).String() != "unknown" {
		t.Errorf("IPClass(99).String() = %q", IPClass(99).String())
	}
}
