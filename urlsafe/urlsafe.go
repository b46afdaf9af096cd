// Package urlsafe guards every outbound page fetch: scheme and hostname
// checks, a static blocklist of internal hosts, private/loopback IP
// rejection (SSRF prevention), and bounded I/O helpers.
package urlsafe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// MaxResponseBody is the default cap for fetched page bodies (5 MiB).
const MaxResponseBody int64 = 5 << 20

// ErrSSRF is returned when a URL targets a private/loopback address.
var ErrSSRF = errors.New("urlsafe: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("urlsafe: only http and https schemes are allowed")

// ErrBlockedHost is returned when a hostname matches the static blocklist.
var ErrBlockedHost = errors.New("urlsafe: hostname is blocked")

// blockedHosts are rejected before any DNS lookup. Exact names first,
// then private-range dotted prefixes for hosts written as literals.
var blockedHosts = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
}

var blockedPrefixes = []string{
	"192.168.",
	"10.",
	"172.16.", "172.17.", "172.18.", "172.19.",
	"172.20.", "172.21.", "172.22.", "172.23.",
	"172.24.", "172.25.", "172.26.", "172.27.",
	"172.28.", "172.29.", "172.30.", "172.31.",
}

// ValidateURL checks that rawURL uses http/https, has a hostname outside
// the blocklist, and does not resolve to a private or loopback IP.
// DNS resolution is performed to catch rebinding via internal hostnames.
// Validation must pass before any outbound request is made.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("urlsafe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("urlsafe: URL has no host")
	}
	for _, b := range blockedHosts {
		if host == b {
			return ErrBlockedHost
		}
	}
	for _, p := range blockedPrefixes {
		if strings.HasPrefix(host, p) {
			return ErrBlockedHost
		}
	}

	// Check literal IP first.
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}

	// Resolve hostname and check all addresses.
	addrs, err := net.LookupHost(host)
	if err != nil {
		// DNS failure — allow through (might be a valid external host that
		// is temporarily unresolvable). The caller will get a network error
		// at connection time anyway.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r, erroring past the limit.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("urlsafe: response exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func isPrivateIP(ip net.IP) bool {
	// Loopback
	if ip.IsLoopback() {
		return true
	}
	// Link-local
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	// RFC 1918 / RFC 4193
	privateRanges := []struct {
		network string
	}{
		{"10.0.0.0/8"},
		{"172.16.0.0/12"},
		{"192.168.0.0/16"},
		{"fc00::/7"},
		{"169.254.0.0/16"},
		{"::1/128"},
	}
	for _, pr := range privateRanges {
		_, cidr, err := net.ParseCIDR(pr.network)
		if err != nil {
			continue
		}
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
