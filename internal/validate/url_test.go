package validate

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func TestURL(t *testing.T) {
	anyScheme := URLConstraints{AllowedSchemes: []string{"http", "https"}}
	httpsOnly := URLConstraints{AllowedSchemes: []string{"https"}}
	ssrfGuard := URLConstraints{AllowedSchemes: []string{"https"}, BlockPrivate: true}
	allowlist := URLConstraints{AllowedSchemes: []string{"https"}, AllowedDomains: []string{"example.com"}}

	tests := []struct {
		name        string
		input       string
		constraints URLConstraints
		errType     error
	}{
		{"https URL", "https://example.com/path", httpsOnly, nil},
		{"http URL when allowed", "http://example.com", anyScheme, nil},
		{"whitespace trimmed", "  https://example.com  ", httpsOnly, nil},
		{"empty", "", httpsOnly, ErrEmpty},
		{"disallowed scheme", "ftp://example.com", httpsOnly, ErrDisallowedScheme},
		{"over max length", "https://example.com/" + strings.Repeat("a", 2048), URLConstraints{AllowedSchemes: []string{"https"}, MaxLength: 2048}, ErrStringTooLong},
		{"missing hostname", "https:///path", httpsOnly, ErrInvalidURL},
		{"localhost blocked", "https://localhost/admin", ssrfGuard, ErrSSRFRisk},
		{"10/8 blocked", "https://10.0.0.1/internal", ssrfGuard, ErrSSRFRisk},
		{"192.168/16 blocked", "https://192.168.1.1/router", ssrfGuard, ErrSSRFRisk},
		{"172.16/12 blocked", "https://172.16.0.1/internal", ssrfGuard, ErrSSRFRisk},
		{"allowlisted subdomain", "https://cdn.example.com/data", allowlist, nil},
		{"domain outside allowlist", "https://elsewhere.net/data", allowlist, ErrDisallowedDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.input, tt.constraints)
			if tt.errType != nil {
				if !errors.Is(err, tt.errType) {
					t.Fatalf("URL(%q) error = %v, want %v", tt.input, err, tt.errType)
				}
				return
			}
			if err != nil {
				t.Fatalf("URL(%q) unexpected error: %v", tt.input, err)
			}
			if got == "" {
				t.Errorf("URL(%q) returned empty string", tt.input)
			}
		})
	}
}

func TestAvatarURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https avatar", "https://cdn.example.com/avatars/u1.jpg", false},
		{"http rejected", "http://cdn.example.com/avatars/u1.jpg", true},
		{"localhost rejected", "https://localhost/avatars/u1.jpg", true},
		{"private IP rejected", "https://192.168.0.10/avatars/u1.jpg", true},
		{"empty rejected", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AvatarURL(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("AvatarURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"10.0.0.1", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"fc00::1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"172.15.0.1", false},
		{"172.32.0.1", false},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("bad test IP %q", tt.ip)
			}
			if got := isPrivateIP(ip); got != tt.want {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}
