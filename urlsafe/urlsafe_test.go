package urlsafe

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/article", false},
		{"http://example.com/page", false},
		{"ftp://evil.com/data", true},          // bad scheme
		{"javascript:alert(1)", true},          // bad scheme
		{"http://localhost/admin", true},       // blocklist
		{"http://LOCALHOST/admin", true},       // blocklist, case folded
		{"http://127.0.0.1/admin", true},       // loopback
		{"http://0.0.0.0/", true},              // blocklist
		{"http://10.0.0.1/internal", true},     // private
		{"http://192.168.1.1/api", true},       // private
		{"http://[::1]/api", true},             // IPv6 loopback
		{"http://172.16.0.1/secret", true},     // private
		{"http://172.31.255.255/secret", true}, // private, upper bound
		{"not a url at all ://", true},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error=%v, wantErr=%v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateURL_BlocklistBeatsDNS(t *testing.T) {
	// Blocked hostnames must fail without a lookup, so the error is
	// ErrBlockedHost rather than ErrSSRF.
	if err := ValidateURL("http://localhost:8080/x"); !errors.Is(err, ErrBlockedHost) {
		t.Errorf("error = %v, want ErrBlockedHost", err)
	}
}

func TestLimitedReadAll(t *testing.T) {
	data := strings.Repeat("x", 100)
	got, err := LimitedReadAll(strings.NewReader(data), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}

	if _, err = LimitedReadAll(strings.NewReader(data), 50); err == nil {
		t.Fatal("expected error for oversized read")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.0.1", true},
		{"169.254.1.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"::1", true},
		{"fc00::1", true},
	}
	for _, tt := range tests {
		ip := net.ParseIP(tt.ip)
		if ip == nil {
			t.Fatalf("failed to parse IP %q", tt.ip)
		}
		if got := isPrivateIP(ip); got != tt.private {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
		}
	}
}
