package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default cleanup intervals.
const (
	cleanupInterval = 1 * time.Minute
	visitorTimeout  = 3 * time.Minute
)

// Client is one visitor's token bucket.
type Client struct {
	limiter *rate.Limiter

	// mu protects lastSeen; the limiter does its own locking.
	mu       sync.Mutex
	lastSeen time.Time
}

// RateLimiter enforces a per-client token bucket on submissions.
type RateLimiter struct {
	// clients maps client keys (IPs) to their bucket.
	clients map[string]*Client
	// mu protects the map. Lookups of existing clients share the read lock.
	mu sync.RWMutex

	rate     rate.Limit
	capacity int
}

// NewRateLimiter creates a RateLimiter refilling ratePerSec tokens per second
// up to capacity. Call StartCleanup to evict idle clients.
func NewRateLimiter(ratePerSec float64, capacity int) *RateLimiter {
	return &RateLimiter{
		clients:  make(map[string]*Client),
		rate:     rate.Limit(ratePerSec),
		capacity: capacity,
	}
}

// getClient retrieves or creates a client for the given key.
func (rl *RateLimiter) getClient(key string) *Client {
	// 1. Fast Path: Read Lock
	rl.mu.RLock()
	c, exists := rl.clients[key]
	rl.mu.RUnlock()

	if exists {
		return c
	}

	// 2. Slow Path: Write Lock (Create new client)
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check
	if c, exists = rl.clients[key]; !exists {
		c = &Client{
			limiter:  rate.NewLimiter(rl.rate, rl.capacity), // Starts full
			lastSeen: time.Now(),
		}
		rl.clients[key] = c
	}

	return c
}

// Allow consumes one token for key if available.
func (rl *RateLimiter) Allow(key string) bool {
	c := rl.getClient(key)

	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()

	return c.limiter.Allow()
}

// StartCleanup removes clients idle longer than visitorTimeout until ctx ends.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle(visitorTimeout)
		}
	}
}

func (rl *RateLimiter) evictIdle(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, c := range rl.clients {
		c.mu.Lock()
		idle := time.Since(c.lastSeen) > maxIdle
		c.mu.Unlock()
		if idle {
			delete(rl.clients, key)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Too Many Requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey is the peer host. Behind the router's RealIP middleware RemoteAddr
// already holds the resolved client address, so forwarding headers are not
// consulted again here.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
