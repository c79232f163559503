package http

import (
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
)

// securityMetrics tracks security-related events.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
}

// setSecurityHeaders sets the headers every API response carries. The API
// serves no documents, so the content security policy forbids everything.
func setSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
}

// trustedProxies may set X-Forwarded-For and X-Real-IP.
var trustedProxies = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}()

func isTrustedProxy(ip net.IP) bool {
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil || !isTrustedProxy(ip) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

// apiRoutes are the paths the server answers. Anything else that looks like
// a scan for a web application is flagged.
var apiRoutes = map[string]bool{
	"/healthz": true, "/readyz": true, "/metrics": true,
	"/snapshot": true, "/basics": true, "/policy": true,
	"/occupants": true, "/charges": true, "/charges/quick": true,
	"/calculation": true, "/report": true, "/save": true,
	"/clear": true, "/statements": true,
}

var (
	scanPath     = regexp.MustCompile(`(?i)(\.\./|\.\.\\|\.env|\.git|\.ssh|wp-|\.php|phpmyadmin|cgi-bin|etc/passwd)`)
	injectedQuery = regexp.MustCompile(`(?i)(<script|javascript:|union\s+select|\.\./|%00|\x00)`)
	scannerAgent  = regexp.MustCompile(`(?i)(sqlmap|nmap|nikto|gobuster|dirb|masscan|zgrab|nuclei)`)
)

// maxQueryLength is far above anything the API reads (month, year, name).
const maxQueryLength = 512

// suspicionReason classifies r, returning "" for ordinary requests.
func suspicionReason(r *http.Request) string {
	switch {
	case !apiRoutes[r.URL.Path] && scanPath.MatchString(r.URL.Path):
		return "scan_path"
	case injectedQuery.MatchString(r.URL.RawQuery) || injectedQuery.MatchString(unescapedQuery(r)):
		return "injected_query"
	case len(r.URL.RawQuery) > maxQueryLength:
		return "oversized_query"
	case scannerAgent.MatchString(r.Header.Get("User-Agent")):
		return "scanner_agent"
	case r.Method == "TRACE" || r.Method == "TRACK" || r.Method == http.MethodConnect:
		return "unusual_method"
	case hasBody(r) && !acceptedContentType(r.Header.Get("Content-Type")):
		return "unexpected_content_type"
	}
	return ""
}

func unescapedQuery(r *http.Request) string {
	q, err := url.QueryUnescape(r.URL.RawQuery)
	if err != nil {
		return r.URL.RawQuery
	}
	return q
}

func hasBody(r *http.Request) bool {
	return r.ContentLength > 0 &&
		(r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete)
}

// acceptedContentType reports whether the body parser understands ct. An
// absent header is accepted since the parser sniffs the body.
func acceptedContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || mt == "application/x-www-form-urlencoded"
}

// detectSuspiciousRequest counts and returns the reason r looks hostile.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) string {
	reason := suspicionReason(r)
	if reason != "" && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}
	return reason
}
