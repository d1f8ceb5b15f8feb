// Package logging provides the structured, leveled logger used at the
// seams worth instrumenting: connection lifecycle, pool reuse, TLS
// handshakes, and redirect hops. Nothing logs above Debug by default, so
// library use stays quiet unless a caller raises the level.
package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.RWMutex
	logger = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLogger replaces the package-level logger, letting an embedding
// application route webhttp's logs into its own logrus instance.
func SetLogger(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Logger returns the current package-level logger.
func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// WithConn returns an entry tagged with the identity of a single connection.
func WithConn(connID uint64, host string, port int, tls bool) *logrus.Entry {
	return Logger().WithFields(logrus.Fields{
		"conn_id": connID,
		"host":    host,
		"port":    port,
		"tls":     tls,
	})
}

// WithPool returns an entry tagged with a pool key and the trace id of the
// request that triggered the acquire/release, for cross-hop correlation.
func WithPool(key, traceID string) *logrus.Entry {
	return Logger().WithFields(logrus.Fields{
		"pool_key": key,
		"trace_id": traceID,
	})
}

// WithHop returns an entry tagged with a redirect hop number, the target
// URL being followed to, and the originating request's trace id.
func WithHop(hop int, location, traceID string) *logrus.Entry {
	return Logger().WithFields(logrus.Fields{
		"redirect_hop": hop,
		"location":     location,
		"trace_id":     traceID,
	})
}
