package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"pollster/pkg/requestcontext"
)

// MaxForwardedHeaderLength bounds X-Forwarded-For and X-Real-IP values.
const MaxForwardedHeaderLength = 500

// UnknownClient is the identity used when no address can be resolved.
const UnknownClient = "unknown"

// Config holds configuration for the metadata middleware.
type Config struct {
	// TrustedProxies restricts which peers may set forwarding headers.
	// When empty, forwarding headers are honoured from any peer, which is the
	// right setting behind a hosting platform's edge proxy.
	TrustedProxies []netip.Prefix
}

// Middleware resolves client metadata for downstream guards and handlers.
type Middleware struct {
	config Config
}

func NewMiddleware(cfg Config) *Middleware {
	return &Middleware{config: cfg}
}

// Handler stores the resolved client IP and User-Agent in the request context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), m.ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP resolves the client address in precedence order: first entry of
// X-Forwarded-For, then X-Real-IP, then the connection's remote address,
// then "unknown". Forwarding headers are skipped when the peer is not a
// trusted proxy or the value does not parse as an IP.
func (m *Middleware) ClientIP(r *http.Request) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)

	if m.trustsPeer(remoteIP) {
		if ip, ok := firstForwardedFor(r.Header.Get("X-Forwarded-For")); ok {
			return ip
		}
		if ip, ok := parseHeaderIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	if remoteIP != "" {
		return remoteIP
	}
	return UnknownClient
}

func firstForwardedFor(xff string) (string, bool) {
	first, _, _ := strings.Cut(xff, ",")
	if len(xff) > MaxForwardedHeaderLength {
		return "", false
	}
	return parseHeaderIP(first)
}

func parseHeaderIP(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > MaxForwardedHeaderLength {
		return "", false
	}
	addr, err := netip.ParseAddr(v)
	if err != nil {
		return "", false
	}
	return addr.String(), true
}

func (m *Middleware) trustsPeer(remoteIP string) bool {
	if len(m.config.TrustedProxies) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(remoteIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range m.config.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr strips the port from RemoteAddr. Unparseable values yield "".
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return ""
	}
	return addr.String()
}

// ParseTrustedProxies parses a list of CIDR prefixes or bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(v)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}
