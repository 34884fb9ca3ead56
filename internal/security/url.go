// Package security validates outbound HTTP requests.
//
// The service talks to hosted APIs whose base URLs come from operator
// configuration (SUPABASE_URL). A misconfigured or hostile value must not be
// able to point the service at internal networks or cloud metadata endpoints,
// so every outbound URL is validated before a request is made.
package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// URLValidator validates outbound URLs to prevent SSRF.
type URLValidator struct {
	allowedSchemes []string
	allowLoopback  bool
}

// NewURLValidator creates a validator that accepts http and https URLs.
// allowLoopback permits localhost targets, needed for local development
// against a Supabase CLI stack.
func NewURLValidator(allowLoopback bool) *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowLoopback:  allowLoopback,
	}
}

// ValidateURL reports whether a URL is safe to request.
// Checks scheme, hostname, and all resolved IP addresses.
func (v *URLValidator) ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !slices.Contains(v.allowedSchemes, scheme) {
		return fmt.Errorf("disallowed protocol: %s (only http/https allowed)", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("invalid hostname")
	}

	if v.allowLoopback && isLoopbackHostname(hostname) {
		return nil
	}

	if isDangerousHostname(hostname) {
		slog.Warn("blocked outbound request to dangerous hostname",
			"hostname", hostname,
			"security_event", "ssrf_dangerous_hostname")
		return fmt.Errorf("access denied: internal networks and metadata services are not allowed")
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("unable to resolve hostname: %w", err)
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			slog.Warn("blocked outbound request to private IP",
				"hostname", hostname,
				"resolved_ip", ip.String(),
				"security_event", "ssrf_private_ip")
			return fmt.Errorf("access denied: internal network IPs are not allowed (%s)", ip.String())
		}
	}

	return nil
}

// NewSafeHTTPClient creates an HTTP client that re-validates redirect targets
// and bounds the redirect chain.
func (v *URLValidator) NewSafeHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			if err := v.ValidateURL(req.URL.String()); err != nil {
				slog.Warn("blocked unsafe redirect",
					"redirect_url", req.URL.String(),
					"security_event", "ssrf_unsafe_redirect")
				return fmt.Errorf("redirect to unsafe URL: %w", err)
			}
			return nil
		},
	}
}

func isLoopbackHostname(hostname string) bool {
	if hostname == "localhost" {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// isDangerousHostname checks for local and cloud-metadata hostnames.
func isDangerousHostname(hostname string) bool {
	hostname = strings.ToLower(hostname)

	localHostnames := []string{
		"localhost",
		"127.0.0.1",
		"::1",
		"0.0.0.0",
	}
	if slices.Contains(localHostnames, hostname) {
		return true
	}

	// Cloud service metadata endpoints
	metadataEndpoints := []string{
		"169.254.169.254", // AWS, Azure, GCP
		"metadata.google.internal",
		"metadata",
	}
	for _, endpoint := range metadataEndpoints {
		if hostname == endpoint || strings.Contains(hostname, endpoint) {
			return true
		}
	}

	return false
}

// isPrivateIP checks if an IP falls in a private or reserved range.
func isPrivateIP(ip net.IP) bool {
	privateIPv4Ranges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16", // link-local, covers AWS metadata
		"0.0.0.0/8",
		"224.0.0.0/4",
		"240.0.0.0/4",
	}

	for _, cidr := range privateIPv4Ranges {
		_, subnet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if subnet.Contains(ip) {
			return true
		}
	}

	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// IPv6 Unique Local Address (ULA) fc00::/7
	if len(ip) == net.IPv6len && (ip[0] == 0xfc || ip[0] == 0xfd) {
		return true
	}

	return false
}
