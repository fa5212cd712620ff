package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const visitorTTL = time.Hour

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.Mutex
	rps      int
	burst    int
	logger   zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// Visitor represents a visitor with rate limiting info
type Visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter allowing rps requests per second
// per client with the given burst
func NewRateLimiter(rps, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*Visitor),
		rps:      rps,
		burst:    burst,
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "ratelimit").Logger(),
		stop:     make(chan struct{}),
	}
}

// Allow reports whether a request from key may proceed now
func (rl *RateLimiter) Allow(key string) (bool, int) {
	limiter := rl.getLimiter(key)
	allowed := limiter.Allow()
	return allowed, int(limiter.Tokens())
}

// Middleware creates a rate limiting middleware keyed by client IP
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		allowed, remaining := rl.Allow(ip)
		if !allowed {
			rl.logger.Warn().Str("ip", ip).Msg("Rate limit exceeded")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "Rate limit exceeded",
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rps))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}

// getLimiter gets or creates a limiter for a visitor
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
		rl.visitors[key] = &Visitor{
			limiter:  limiter,
			lastSeen: time.Now(),
		}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// StartCleanup periodically forgets visitors idle for longer than the TTL
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.cleanup(visitorTTL)
			case <-rl.stop:
				return
			}
		}
	}()
}

func (rl *RateLimiter) cleanup(ttl time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, v := range rl.visitors {
		if time.Since(v.lastSeen) > ttl {
			delete(rl.visitors, key)
		}
	}
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Throttler caps the number of requests in flight
type Throttler struct {
	requests chan struct{}
	logger   zerolog.Logger
}

// NewThrottler creates a new throttler
func NewThrottler(maxConcurrent int) *Throttler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Throttler{
		requests: make(chan struct{}, maxConcurrent),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "throttler").Logger(),
	}
}

// TryAcquire takes a slot without waiting
func (t *Throttler) TryAcquire() bool {
	select {
	case t.requests <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by TryAcquire
func (t *Throttler) Release() {
	<-t.requests
}

// Middleware creates a throttling middleware
func (t *Throttler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.TryAcquire() {
			t.logger.Warn().Msg("Server overloaded")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"code": http.StatusServiceUnavailable,
				"msg":  "Server overloaded, please try again later",
			})
			return
		}
		defer t.Release()
		c.Next()
	}
}

// IPWhitelist represents a whitelist of IPs that bypass rate limiting
type IPWhitelist struct {
	ips map[string]bool
	mu  sync.RWMutex
}

// NewIPWhitelist creates a new IP whitelist
func NewIPWhitelist() *IPWhitelist {
	return &IPWhitelist{
		ips: make(map[string]bool),
	}
}

// Add adds an IP to the whitelist
func (w *IPWhitelist) Add(ip string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ips[ip] = true
}

// Remove removes an IP from the whitelist
func (w *IPWhitelist) Remove(ip string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.ips, ip)
}

// Contains checks if an IP is in the whitelist
func (w *IPWhitelist) Contains(ip string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ips[ip]
}

// Config represents rate limiting configuration
type Config struct {
	Enabled           bool
	RequestsPerSecond int
	Burst             int
	MaxConcurrent     int
	WhitelistedIPs    []string
}

// Manager combines the whitelist, per-client rate limiting and throttling
type Manager struct {
	rateLimiter *RateLimiter
	throttler   *Throttler
	whitelist   *IPWhitelist
	config      Config
}

// NewManager creates a new rate limiting manager
func NewManager(config Config) *Manager {
	m := &Manager{
		config:    config,
		whitelist: NewIPWhitelist(),
	}

	if config.Enabled {
		m.rateLimiter = NewRateLimiter(config.RequestsPerSecond, config.Burst)
		m.throttler = NewThrottler(config.MaxConcurrent)

		for _, ip := range config.WhitelistedIPs {
			m.whitelist.Add(ip)
		}
	}

	return m
}

// Start begins background visitor cleanup
func (m *Manager) Start() {
	if m.rateLimiter != nil {
		m.rateLimiter.StartCleanup(10 * time.Minute)
	}
}

// Stop ends background work
func (m *Manager) Stop() {
	if m.rateLimiter != nil {
		m.rateLimiter.Stop()
	}
}

// Middleware returns the appropriate middleware based on configuration
func (m *Manager) Middleware() gin.HandlerFunc {
	if !m.config.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if m.whitelist.Contains(ip) {
			c.Next()
			return
		}

		allowed, remaining := m.rateLimiter.Allow(ip)
		if !allowed {
			m.rateLimiter.logger.Warn().Str("ip", ip).Msg("Rate limit exceeded")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "Rate limit exceeded",
			})
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(m.config.RequestsPerSecond))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !m.throttler.TryAcquire() {
			m.throttler.logger.Warn().Msg("Server overloaded")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"code": http.StatusServiceUnavailable,
				"msg":  "Server overloaded, please try again later",
			})
			return
		}
		defer m.throttler.Release()

		c.Next()
	}
}
