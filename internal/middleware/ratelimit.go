package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimitMiddleware limits requests per client IP
type RateLimitMiddleware struct {
	perMinute  int
	trustProxy bool
	limit     rate.Limit
	burst     int
	limiters  map[string]*clientLimiter
	lastSweep time.Time
	mu        sync.Mutex
}

// NewRateLimitMiddleware allows perMinute requests per client IP, refilled
// evenly over the minute. Clients are keyed by the connection address;
// X-Forwarded-For and X-Real-IP are only honoured when trustProxy is set.
func NewRateLimitMiddleware(perMinute int, trustProxy bool) *RateLimitMiddleware {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimitMiddleware{
		perMinute:  perMinute,
		trustProxy: trustProxy,
		limit:      rate.Limit(float64(perMinute) / 60.0),
		burst:      perMinute,
		limiters:   make(map[string]*clientLimiter),
		lastSweep:  time.Now(),
	}
}

// RateLimit rejects requests over the limit with 429
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := remoteIP(r)
		if m.trustProxy {
			clientIP = getClientIP(r)
		}

		if !m.limiterFor(clientIP).Allow() {
			log.WithFields(log.Fields{
				"client_ip": clientIP,
				"path":      r.URL.Path,
			}).Warn("Rate limit exceeded")

			retryAfter := int(math.Ceil(60.0 / float64(m.perMinute)))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSONError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientCount returns the number of tracked client IPs.
func (m *RateLimitMiddleware) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}

func (m *RateLimitMiddleware) limiterFor(clientIP string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastSweep) > limiterIdleTTL {
		for ip, cl := range m.limiters {
			if now.Sub(cl.lastAccess) > limiterIdleTTL {
				delete(m.limiters, ip)
			}
		}
		m.lastSweep = now
	}

	cl, ok := m.limiters[clientIP]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.limiters[clientIP] = cl
	}
	cl.lastAccess = now
	return cl.limiter
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Check for forwarded headers first
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	return remoteIP(r)
}

// remoteIP is the peer address of the connection without its port
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
