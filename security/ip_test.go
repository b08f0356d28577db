package security

import (
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name           string
		remoteAddr     string
		xff            string
		xRealIP        string
		trustProxy     bool
		trustedProxies int
		want           string
	}{
		{
			name:       "direct connection",
			remoteAddr: "192.168.1.100:12345",
			want:       "192.168.1.100",
		},
		{
			name:       "forwarded for with trust",
			remoteAddr: "10.0.0.1:12345",
			xff:        "203.0.113.1, 10.0.0.2",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:       "forwarded for ignored without trust",
			remoteAddr: "10.0.0.1:12345",
			xff:        "203.0.113.1",
			want:       "10.0.0.1",
		},
		{
			name:           "spoofed leftmost entry skipped",
			remoteAddr:     "10.0.0.1:12345",
			xff:            "6.6.6.6, 203.0.113.7, 10.0.0.3",
			trustProxy:     true,
			trustedProxies: 1,
			want:           "203.0.113.7",
		},
		{
			name:       "real ip fallback",
			remoteAddr: "10.0.0.1:12345",
			xRealIP:    "198.51.100.4",
			trustProxy: true,
			want:       "198.51.100.4",
		},
		{
			name:       "garbage forwarded value falls back to remote addr",
			remoteAddr: "10.0.0.1:12345",
			xff:        "not-an-ip, 10.0.0.2",
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				r.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := GetClientIP(r, tt.trustProxy, tt.trustedProxies); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
