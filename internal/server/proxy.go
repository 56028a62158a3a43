// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// parseTrustedProxies turns CIDR strings into networks. Blank entries are
// skipped; an empty result means forwarding headers are never honoured.
func parseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, tserr.Errorf(tserr.CodeServerConfigInvalid,
				"invalid trusted proxy CIDR %q: %w", cidr, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func isTrustedProxy(ip net.IP, trusted []*net.IPNet) bool {
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// forwardedClient picks the client address from X-Forwarded-For by walking
// right to left past trusted hops. Entries left of the first untrusted hop
// were written by the client and are ignored. Returns nil when the header
// holds nothing usable.
func forwardedClient(xff string, trusted []*net.IPNet) net.IP {
	hops := strings.Split(xff, ",")
	var last net.IP
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			break
		}
		last = ip
		if !isTrustedProxy(ip, trusted) {
			return ip
		}
	}
	return last
}

// trustedProxyRealIP rewrites r.RemoteAddr from X-Forwarded-For or X-Real-IP,
// but only when the connecting peer is a trusted proxy. Any other peer keeps
// its socket address, so rotating headers cannot mint new rate-limit buckets.
func trustedProxyRealIP(trusted []*net.IPNet, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			peer := net.ParseIP(host)
			if peer == nil || !isTrustedProxy(peer, trusted) {
				next.ServeHTTP(w, r)
				return
			}

			var client net.IP
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				client = forwardedClient(xff, trusted)
			} else if xri := r.Header.Get("X-Real-IP"); xri != "" {
				client = net.ParseIP(strings.TrimSpace(xri))
			}

			if client == nil {
				logger.Debug("no usable forwarding header from trusted proxy", "peer", host)
				next.ServeHTTP(w, r)
				return
			}
			r.RemoteAddr = net.JoinHostPort(client.String(), "0")
			next.ServeHTTP(w, r)
		})
	}
}
