// Package pool implements the Connection Pool component: per-host idle and
// active connection tracking with LIFO reuse, stale eviction, and
// keepalive-request counting. Grounded on the teacher's hostPool/
// getFromPool/ReleaseConnectionWithMetadata/cleanupIdleConnections
// (go-rawhttp's pkg/transport/transport.go), with the sync.Cond/WaitTimeout
// blocking-wait path removed: pool exhaustion returns
// ConnectionPoolExhausted immediately instead of waiting for a slot, per
// the no-blocking-on-exhaustion design note this system follows.
package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/oneopane/webhttp/pkg/errors"
	"github.com/oneopane/webhttp/pkg/httpconn"
)

// Config configures pooling behavior.
type Config struct {
	MaxConnsPerHost      int           // 0 = unlimited active connections per host
	MaxIdlePerHost       int           // idle connections retained per host
	MaxIdleTime          time.Duration // idle connections older than this are evicted
	MaxKeepaliveRequests int           // 0 = unlimited requests per connection
}

// DefaultConfig mirrors the HTTP client orchestrator's defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnsPerHost:      10,
		MaxIdlePerHost:       10,
		MaxIdleTime:          60 * time.Second,
		MaxKeepaliveRequests: 100,
	}
}

type hostPool struct {
	mu     sync.Mutex
	idle   []*httpconn.Connection // LIFO
	active int
}

// Pool is a per-host connection pool keyed by "host:port:tls".
type Pool struct {
	mu     sync.RWMutex
	hosts  map[string]*hostPool
	config Config
}

// New creates a Pool with the given configuration.
func New(config Config) *Pool {
	if config.MaxIdlePerHost <= 0 && config.MaxConnsPerHost > 0 {
		config.MaxIdlePerHost = config.MaxConnsPerHost
	}
	return &Pool{
		hosts:  make(map[string]*hostPool),
		config: config,
	}
}

// Key computes the pool key for a (host, port, tls) triple.
func Key(host string, port int, useTLS bool) string {
	return fmt.Sprintf("%s:%d:tls=%v", host, port, useTLS)
}

func (p *Pool) getOrCreate(key string) *hostPool {
	p.mu.RLock()
	hp, ok := p.hosts[key]
	p.mu.RUnlock()
	if ok {
		return hp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if hp, ok := p.hosts[key]; ok {
		return hp
	}
	hp = &hostPool{idle: make([]*httpconn.Connection, 0, 4)}
	p.hosts[key] = hp
	return hp
}

// Acquire returns a reusable idle connection for key if one is live, or
// reserves an active slot for the caller to dial a new connection
// (isNew=true, conn=nil). It returns ConnectionPoolExhausted without
// blocking if MaxConnsPerHost is already saturated.
func (p *Pool) Acquire(key string) (conn *httpconn.Connection, isNew bool, err error) {
	hp := p.getOrCreate(key)

	hp.mu.Lock()

	for len(hp.idle) > 0 {
		n := len(hp.idle)
		c := hp.idle[n-1]
		hp.idle = hp.idle[:n-1]

		if p.isStale(c) || !c.IsAlive() {
			c.Close()
			continue
		}

		hp.active++
		c.MarkActive()
		hp.mu.Unlock()
		p.recordMetrics()
		return c, false, nil
	}

	if p.config.MaxConnsPerHost > 0 && hp.active >= p.config.MaxConnsPerHost {
		hp.mu.Unlock()
		return nil, false, errors.NewConnectionPoolExhaustedError(key, p.config.MaxConnsPerHost)
	}

	hp.active++
	hp.mu.Unlock()
	p.recordMetrics()
	return nil, true, nil
}

func (p *Pool) isStale(c *httpconn.Connection) bool {
	if p.config.MaxIdleTime <= 0 {
		return false
	}
	lastUsed := time.UnixMilli(c.LastUsedMs)
	return time.Since(lastUsed) > p.config.MaxIdleTime
}

// Release returns conn to the pool after use. reusable reflects whether
// the caller determined the connection can still serve another request
// (no "Connection: close", no framing error, connection still live).
// Connections that exceed MaxKeepaliveRequests or fail the reusable check
// are closed rather than pooled.
func (p *Pool) Release(key string, conn *httpconn.Connection, reusable bool) {
	p.mu.RLock()
	hp, ok := p.hosts[key]
	p.mu.RUnlock()
	if !ok {
		conn.Close()
		return
	}

	hp.mu.Lock()

	hp.active--
	conn.KeepaliveCount++

	exhaustedKeepalive := p.config.MaxKeepaliveRequests > 0 &&
		conn.KeepaliveCount >= p.config.MaxKeepaliveRequests

	if !reusable || exhaustedKeepalive || !conn.IsLive() {
		conn.Close()
		hp.mu.Unlock()
		p.recordMetrics()
		return
	}

	if p.config.MaxIdlePerHost > 0 && len(hp.idle) >= p.config.MaxIdlePerHost {
		conn.Close()
		hp.mu.Unlock()
		p.recordMetrics()
		return
	}

	conn.MarkIdle()
	hp.idle = append(hp.idle, conn)
	hp.mu.Unlock()
	p.recordMetrics()
}

// CancelReservation rolls back an active slot reserved by Acquire when the
// caller failed to establish the new connection it was reserved for.
func (p *Pool) CancelReservation(key string) {
	p.mu.RLock()
	hp, ok := p.hosts[key]
	p.mu.RUnlock()
	if !ok {
		return
	}
	hp.mu.Lock()
	hp.active--
	hp.mu.Unlock()
	p.recordMetrics()
}

// Destroy closes conn and releases its active slot without returning it to
// the idle list, for callers that know the connection must not be reused
// (e.g. after a framing error).
func (p *Pool) Destroy(key string, conn *httpconn.Connection) {
	p.mu.RLock()
	hp, ok := p.hosts[key]
	p.mu.RUnlock()
	conn.Close()
	if !ok {
		return
	}
	hp.mu.Lock()
	hp.active--
	hp.mu.Unlock()
	p.recordMetrics()
}

// CleanupIdle closes and removes idle connections older than MaxIdleTime
// across all host pools.
func (p *Pool) CleanupIdle() {
	p.mu.RLock()
	keys := make([]string, 0, len(p.hosts))
	for k := range p.hosts {
		keys = append(keys, k)
	}
	p.mu.RUnlock()

	for _, key := range keys {
		p.mu.RLock()
		hp := p.hosts[key]
		p.mu.RUnlock()

		hp.mu.Lock()
		kept := hp.idle[:0]
		for _, c := range hp.idle {
			if p.isStale(c) {
				c.Close()
			} else {
				kept = append(kept, c)
			}
		}
		hp.idle = kept
		hp.mu.Unlock()
	}
	p.recordMetrics()
}

// Close closes every idle connection across all host pools, aggregating
// any close failures via errors.Append rather than letting one bad
// connection suppress the others. Active (checked-out) connections are
// left alone; callers are expected to release or destroy those themselves.
func (p *Pool) Close() error {
	p.mu.RLock()
	keys := make([]string, 0, len(p.hosts))
	for k := range p.hosts {
		keys = append(keys, k)
	}
	p.mu.RUnlock()

	var err error
	for _, key := range keys {
		p.mu.RLock()
		hp := p.hosts[key]
		p.mu.RUnlock()

		hp.mu.Lock()
		idle := hp.idle
		hp.idle = nil
		hp.mu.Unlock()

		for _, c := range idle {
			if cerr := c.Close(); cerr != nil {
				err = errors.Append(err, cerr)
			}
		}
	}
	p.recordMetrics()
	return err
}

// HostStats reports connection counts for a single pool key.
type HostStats struct {
	Idle   int
	Active int
}

// Stats summarizes the pool across all hosts.
type Stats struct {
	TotalIdle   int
	TotalActive int
	TotalPools  int
	PerHost     map[string]HostStats
}

// GetStats returns a point-in-time snapshot of pool occupancy.
func (p *Pool) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{PerHost: make(map[string]HostStats, len(p.hosts))}
	for key, hp := range p.hosts {
		hp.mu.Lock()
		hs := HostStats{Idle: len(hp.idle), Active: hp.active}
		hp.mu.Unlock()

		stats.TotalIdle += hs.Idle
		stats.TotalActive += hs.Active
		stats.PerHost[key] = hs
	}
	stats.TotalPools = len(p.hosts)
	return stats
}

func (p *Pool) recordMetrics() {
	stats := p.GetStats()
	observeStats(stats)
}
