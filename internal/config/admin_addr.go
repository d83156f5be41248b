package config

import (
	"fmt"
	"net"
	"strings"
)

// NormalizeAdminAddr resolves the admin control address to a loopback IP
// endpoint. An empty host or "localhost" maps to 127.0.0.1. Any address that
// does not resolve to loopback only is rejected.
func NormalizeAdminAddr(rawAddr string) (string, error) {
	addr := strings.TrimSpace(rawAddr)
	if addr == "" {
		return "", fmt.Errorf("%w: admin_listen_addr required", ErrInvalidConfig)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("%w: admin_listen_addr %q", ErrInvalidConfig, addr)
	}
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if port == "" {
		return "", fmt.Errorf("%w: admin_listen_addr %q", ErrInvalidConfig, addr)
	}
	if host == "" || strings.EqualFold(host, "localhost") {
		return net.JoinHostPort("127.0.0.1", port), nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if !ip.IsLoopback() {
			return "", fmt.Errorf("%w: admin_listen_addr %q is not loopback", ErrInvalidConfig, addr)
		}
		return net.JoinHostPort(ip.String(), port), nil
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return "", fmt.Errorf("%w: resolve admin host %q: %v", ErrInvalidConfig, host, err)
	}
	for _, ip := range ips {
		if !ip.IsLoopback() {
			return "", fmt.Errorf("%w: admin_listen_addr %q resolves to %s", ErrInvalidConfig, addr, ip)
		}
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return net.JoinHostPort(v4.String(), port), nil
		}
	}
	return net.JoinHostPort(ips[0].String(), port), nil
}
