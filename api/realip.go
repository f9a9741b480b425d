package api

import (
	"net"
	"net/http"
	"strings"
)

// clientIPHeaders are consulted in order; the first usable address wins.
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Client-IP",
	"CF-Connecting-IP",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

// resolveClientIP finds the visitor address behind proxies. Header values that are
// loopback, unspecified or not an IP are skipped. The connection address is the fallback.
func resolveClientIP(r *http.Request) string {
	for _, header := range clientIPHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		first, _, _ := strings.Cut(value, ",")
		if ip := cleanIP(first); ip != "" {
			return ip
		}
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return "unknown"
}

// cleanIP accepts a bare address, an address with port, or an RFC 7239 element such as
// for="[2001:db8::1]:4711";proto=https.
func cleanIP(v string) string {
	v = strings.TrimSpace(v)

	if strings.Contains(v, "=") {
		forValue := ""
		for _, pair := range strings.Split(v, ";") {
			key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && strings.EqualFold(key, "for") {
				forValue = val
				break
			}
		}
		v = forValue
	}

	v = strings.Trim(v, `"`)
	if strings.HasPrefix(v, "[") {
		if end := strings.Index(v, "]"); end > 0 {
			v = v[1:end]
		}
	} else if host, _, err := net.SplitHostPort(v); err == nil {
		v = host
	}

	ip := net.ParseIP(v)
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}

// clientIPMiddleware stores the resolved address in the request context.
func clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxWithClientIP(r.Context(), resolveClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
