package search

import (
	"context"
	"sync"
	"time"

	"catalog-service/pkg/metrics"

	"go.uber.org/zap"
)

const (
	DefaultHealthTTL    = 60 * time.Second
	DefaultProbeTimeout = 2 * time.Second
)

// HealthChecker reports the cluster status
type HealthChecker interface {
	Health(ctx context.Context) (string, error)
}

// HealthMonitor memoizes cluster reachability for a short TTL so that
// requests do not each pay for a health probe.
type HealthMonitor struct {
	checker HealthChecker
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger

	mu        sync.Mutex
	healthy   bool
	checked   bool
	checkedAt time.Time
}

// HealthOption configures a HealthMonitor.
type HealthOption func(*HealthMonitor) error

// WithHealthTTL sets how long a probe result is reused
func WithHealthTTL(ttl time.Duration) HealthOption {
	return func(m *HealthMonitor) error {
		if ttl > 0 {
			m.ttl = ttl
		}
		return nil
	}
}

// WithProbeTimeout bounds a single health probe
func WithProbeTimeout(timeout time.Duration) HealthOption {
	return func(m *HealthMonitor) error {
		if timeout > 0 {
			m.timeout = timeout
		}
		return nil
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) HealthOption {
	return func(m *HealthMonitor) error {
		if now != nil {
			m.now = now
		}
		return nil
	}
}

// WithHealthLogger sets a custom logger.
func WithHealthLogger(logger *zap.Logger) HealthOption {
	return func(m *HealthMonitor) error {
		if logger != nil {
			m.logger = logger
		}
		return nil
	}
}

// NewHealthMonitor creates a monitor for checker. A nil checker is always unhealthy.
func NewHealthMonitor(checker HealthChecker, opts ...HealthOption) (*HealthMonitor, error) {
	m := &HealthMonitor{
		checker: checker,
		ttl:     DefaultHealthTTL,
		timeout: DefaultProbeTimeout,
		now:     time.Now,
		logger:  zap.L(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IsHealthy returns the memoized state, probing the cluster when the memo is older than the TTL.
func (m *HealthMonitor) IsHealthy(ctx context.Context) bool {
	if m == nil || m.checker == nil {
		return false
	}

	m.mu.Lock()
	if m.checked && m.now().Sub(m.checkedAt) < m.ttl {
		healthy := m.healthy
		m.mu.Unlock()
		return healthy
	}
	m.mu.Unlock()

	// Concurrent callers may probe at the same time; the last result wins.
	healthy := m.probe(ctx)

	m.mu.Lock()
	m.healthy = healthy
	m.checked = true
	m.checkedAt = m.now()
	m.mu.Unlock()

	if healthy {
		metrics.IndexHealthy.Set(1)
	} else {
		metrics.IndexHealthy.Set(0)
	}
	return healthy
}

// LastCheck returns the memoized state and when it was recorded
func (m *HealthMonitor) LastCheck() (healthy bool, checkedAt time.Time, ok bool) {
	if m == nil {
		return false, time.Time{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy, m.checkedAt, m.checked
}

// Reset forgets the memoized state so the next call probes again
func (m *HealthMonitor) Reset() {
	m.mu.Lock()
	m.checked = false
	m.mu.Unlock()
}

// probe ignores the caller's cancellation; its result is shared by every
// caller until the TTL expires.
func (m *HealthMonitor) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	status, err := m.checker.Health(probeCtx)
	if err != nil {
		m.logger.Warn("Search cluster health probe failed", zap.Error(err))
		return false
	}

	switch status {
	case "green", "yellow":
		return true
	default:
		m.logger.Warn("Search cluster reported unusable status", zap.String("status", status))
		return false
	}
}
