package cmd

import (
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// resolveServeAddr picks the listen address for the serve command from its
// arguments. A leading positional argument wins over the --addr flag, which
// wins over the configured default:
//
//	ragkit serve 9000
//	ragkit serve :9000
//	ragkit serve --addr 127.0.0.1:9000
func resolveServeAddr(args []string, defaultAddr string) (string, error) {
	var positional string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	flagAddr := fs.String("addr", "", "listen address ([host]:port or bare port)")
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parsing serve flags: %w", err)
	}

	addr := defaultAddr
	if *flagAddr != "" {
		addr = *flagAddr
	}
	if positional != "" {
		addr = positional
	}

	return normalizeListenAddr(addr)
}

// normalizeListenAddr validates addr and canonicalizes it to host:port form.
// A bare port ("8501") is shorthand for listening on all interfaces.
func normalizeListenAddr(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("listen address is empty")
	}

	if n, err := strconv.Atoi(addr); err == nil {
		addr = ":" + strconv.Itoa(n)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("listen address %q: %w", addr, err)
	}

	n, err := strconv.Atoi(port)
	if err != nil {
		return "", fmt.Errorf("listen address %q: port must be numeric", addr)
	}
	if n < 0 || n > 65535 {
		return "", fmt.Errorf("listen address %q: port out of range", addr)
	}

	if strings.ContainsAny(host, " \t\n") {
		return "", fmt.Errorf("listen address %q: invalid host", addr)
	}

	if host == "" {
		return ":" + port, nil
	}
	return net.JoinHostPort(host, port), nil
}
