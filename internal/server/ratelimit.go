package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxRateClients bounds how many client buckets are tracked.
	DefaultMaxRateClients = 4096
	// rateClientIdle is how long an unused bucket is kept.
	rateClientIdle = 5 * time.Minute
)

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key. The number of keys is
// bounded; when full, idle buckets are dropped first and then the least
// recently seen one.
type ClientLimiter struct {
	limit rate.Limit
	burst int
	max   int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*rateClient
}

// NewClientLimiter allows each client rps requests per second with the given
// burst. A non-positive burst uses rps; a non-positive maxClients uses
// DefaultMaxRateClients.
func NewClientLimiter(rps float64, burst, maxClients int) *ClientLimiter {
	if burst <= 0 {
		burst = max(int(rps), 1)
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxRateClients
	}
	return &ClientLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		max:     maxClients,
		now:     time.Now,
		clients: make(map[string]*rateClient),
	}
}

// Allow reports whether key may make a request now.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= l.max {
			l.evict(now)
		}
		c = &rateClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ClientLimiter) evict(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > rateClientIdle {
			delete(l.clients, k)
			continue
		}
		if oldestKey == "" || c.lastSeen.Before(oldest) {
			oldestKey, oldest = k, c.lastSeen
		}
	}
	if len(l.clients) >= l.max && oldestKey != "" {
		delete(l.clients, oldestKey)
	}
}

// clientKey names the caller: the token subject when one was verified,
// otherwise the remote IP without its port.
func clientKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok && id.Subject != "" {
		return "sub:" + id.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
