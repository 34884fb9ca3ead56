package security

import (
	"net"
	"testing"
)

func TestValidateURL_Schemes(t *testing.T) {
	v := NewURLValidator(false)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https allowed", "https://example.supabase.co/rest/v1/documents", false},
		{"file denied", "file:///etc/passwd", true},
		{"ftp denied", "ftp://example.com/x", true},
		{"javascript denied", "javascript:alert(1)", true},
		{"missing host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL_BlocksMetadataEndpoints(t *testing.T) {
	v := NewURLValidator(false)

	for _, target := range []string{
		"http://169.254.169.254/latest/meta-data/",
		"http://metadata.google.internal/computeMetadata/v1/",
		"http://localhost:8080/admin",
		"http://127.0.0.1:5432/",
	} {
		if err := v.ValidateURL(target); err == nil {
			t.Errorf("ValidateURL(%q) should be denied", target)
		}
	}
}

func TestValidateURL_LoopbackOptIn(t *testing.T) {
	v := NewURLValidator(true)

	if err := v.ValidateURL("http://localhost:54321/rest/v1/documents"); err != nil {
		t.Errorf("loopback should be allowed when opted in: %v", err)
	}
	if err := v.ValidateURL("http://127.0.0.1:54321/rest/v1/documents"); err != nil {
		t.Errorf("loopback IP should be allowed when opted in: %v", err)
	}

	// Metadata endpoints stay blocked even with loopback enabled.
	if err := v.ValidateURL("http://169.254.169.254/"); err == nil {
		t.Error("metadata endpoint should stay blocked")
	}
}

func TestNewSafeHTTPClient(t *testing.T) {
	v := NewURLValidator(false)
	client := v.NewSafeHTTPClient(0)

	if client.CheckRedirect == nil {
		t.Fatal("CheckRedirect should be set")
	}
}

func TestIsDangerousHostname(t *testing.T) {
	tests := []struct {
		hostname string
		want     bool
	}{
		{"localhost", true},
		{"metadata", true},
		{"example.com", false},
		{"METADATA.GOOGLE.INTERNAL", true},
	}
	for _, tt := range tests {
		if got := isDangerousHostname(tt.hostname); got != tt.want {
			t.Errorf("isDangerousHostname(%q) = %v, want %v", tt.hostname, got, tt.want)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"10.1.2.3", "172.16.0.9", "192.168.1.1", "127.0.0.1", "169.254.169.254", "fd00::1"}
	public := []string{"8.8.8.8", "104.18.0.1", "2606:4700::1111"}

	for _, s := range private {
		if !isPrivateIP(net.ParseIP(s)) {
			t.Errorf("%s should be private", s)
		}
	}
	for _, s := range public {
		if isPrivateIP(net.ParseIP(s)) {
			t.Errorf("%s should be public", s)
		}
	}
}
