// Package config loads daemon configuration from environment variables.
// Values are read once at boot and passed explicitly to components --
// nothing here is read lazily from a package-level global, so tests can
// construct a Config fixture directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all container-dns-sync configuration. Mutable fields
// (PollInterval, StalenessTTL) are protected by an RWMutex and accessed via
// getter/setter methods at runtime, since the sync loop goroutine reads them
// while a future control surface may write them.
type Config struct {
	// Docker connection
	DockerSock string

	// Registry (etcd) connection
	EtcdHost              string
	EtcdPort              int
	EtcdPathPrefix        string
	EtcdLockTTL           time.Duration
	EtcdLockTimeout       time.Duration
	EtcdLockRetryInterval time.Duration

	// Identity
	Hostname string

	// Local audit trail
	AuditDBPath string

	// Metrics
	MetricsEnabled  bool
	MetricsTextfile string

	// Logging
	LogJSON bool

	// mu protects the mutable runtime fields below.
	mu           sync.RWMutex
	pollInterval time.Duration
	stalenessTTL time.Duration
}

// NewTestConfig creates a Config with sensible defaults for tests.
// Use the setter methods to override specific values.
func NewTestConfig() *Config {
	return &Config{
		EtcdHost:              "127.0.0.1",
		EtcdPort:              2379,
		EtcdPathPrefix:        "/records",
		EtcdLockTTL:           10 * time.Second,
		EtcdLockTimeout:       30 * time.Second,
		EtcdLockRetryInterval: 100 * time.Millisecond,
		Hostname:              "test-host",
		pollInterval:          time.Second,
		stalenessTTL:          60 * time.Second,
	}
}

// Load reads all configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		DockerSock:            envStr("DNSSYNC_DOCKER_SOCK", "/var/run/docker.sock"),
		EtcdHost:              envStr("DNSSYNC_ETCD_HOST", "127.0.0.1"),
		EtcdPort:              envInt("DNSSYNC_ETCD_PORT", 2379),
		EtcdPathPrefix:        envStr("DNSSYNC_ETCD_PATH_PREFIX", "/records"),
		EtcdLockTTL:           envDuration("DNSSYNC_ETCD_LOCK_TTL", 10*time.Second),
		EtcdLockTimeout:       envDuration("DNSSYNC_ETCD_LOCK_TIMEOUT", 30*time.Second),
		EtcdLockRetryInterval: envDuration("DNSSYNC_ETCD_LOCK_RETRY_INTERVAL", 250*time.Millisecond),
		Hostname:              envStr("DNSSYNC_HOSTNAME", envStr("HOSTNAME", "localhost")),
		AuditDBPath:           envStr("DNSSYNC_AUDIT_DB_PATH", "/data/dnssync-audit.db"),
		MetricsEnabled:        envBool("DNSSYNC_METRICS", false),
		MetricsTextfile:       envStr("DNSSYNC_METRICS_TEXTFILE", "/data/dnssync.prom"),
		LogJSON:               envBool("DNSSYNC_LOG_JSON", true),
		pollInterval:          envDuration("DNSSYNC_POLL_INTERVAL", 5*time.Second),
		stalenessTTL:          envDuration("DNSSYNC_STALENESS_TTL", 60*time.Second),
	}
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	c.mu.RLock()
	pi := c.pollInterval
	ttl := c.stalenessTTL
	c.mu.RUnlock()

	var errs []error
	if pi <= 0 {
		errs = append(errs, fmt.Errorf("DNSSYNC_POLL_INTERVAL must be > 0, got %s", pi))
	}
	if ttl <= 0 {
		errs = append(errs, fmt.Errorf("DNSSYNC_STALENESS_TTL must be > 0, got %s", ttl))
	}
	if c.EtcdHost == "" {
		errs = append(errs, fmt.Errorf("DNSSYNC_ETCD_HOST must be set"))
	}
	if c.EtcdPort <= 0 {
		errs = append(errs, fmt.Errorf("DNSSYNC_ETCD_PORT must be > 0, got %d", c.EtcdPort))
	}
	if c.EtcdPathPrefix == "" {
		errs = append(errs, fmt.Errorf("DNSSYNC_ETCD_PATH_PREFIX must be set"))
	}
	if c.EtcdLockTTL <= 0 {
		errs = append(errs, fmt.Errorf("DNSSYNC_ETCD_LOCK_TTL must be > 0, got %s", c.EtcdLockTTL))
	}
	if c.EtcdLockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DNSSYNC_ETCD_LOCK_TIMEOUT must be > 0, got %s", c.EtcdLockTimeout))
	}
	if c.EtcdLockRetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("DNSSYNC_ETCD_LOCK_RETRY_INTERVAL must be > 0, got %s", c.EtcdLockRetryInterval))
	}
	if c.Hostname == "" {
		errs = append(errs, fmt.Errorf("DNSSYNC_HOSTNAME must be set"))
	}
	return errors.Join(errs...)
}

// Values returns all configuration as a string map for display/audit.
func (c *Config) Values() map[string]string {
	c.mu.RLock()
	pi := c.pollInterval
	ttl := c.stalenessTTL
	c.mu.RUnlock()

	return map[string]string{
		"DNSSYNC_DOCKER_SOCK":              c.DockerSock,
		"DNSSYNC_ETCD_HOST":                c.EtcdHost,
		"DNSSYNC_ETCD_PORT":                fmt.Sprintf("%d", c.EtcdPort),
		"DNSSYNC_ETCD_PATH_PREFIX":         c.EtcdPathPrefix,
		"DNSSYNC_ETCD_LOCK_TTL":            c.EtcdLockTTL.String(),
		"DNSSYNC_ETCD_LOCK_TIMEOUT":        c.EtcdLockTimeout.String(),
		"DNSSYNC_ETCD_LOCK_RETRY_INTERVAL": c.EtcdLockRetryInterval.String(),
		"DNSSYNC_HOSTNAME":                 c.Hostname,
		"DNSSYNC_AUDIT_DB_PATH":            c.AuditDBPath,
		"DNSSYNC_METRICS":                  fmt.Sprintf("%t", c.MetricsEnabled),
		"DNSSYNC_METRICS_TEXTFILE":         c.MetricsTextfile,
		"DNSSYNC_LOG_JSON":                 fmt.Sprintf("%t", c.LogJSON),
		"DNSSYNC_POLL_INTERVAL":            pi.String(),
		"DNSSYNC_STALENESS_TTL":            ttl.String(),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// PollInterval returns the current poll interval (thread-safe).
func (c *Config) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pollInterval
}

// SetPollInterval updates the poll interval at runtime (thread-safe).
func (c *Config) SetPollInterval(d time.Duration) {
	c.mu.Lock()
	c.pollInterval = d
	c.mu.Unlock()
}

// StalenessTTL returns the current staleness TTL (thread-safe).
func (c *Config) StalenessTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stalenessTTL
}

// SetStalenessTTL updates the staleness TTL at runtime (thread-safe).
func (c *Config) SetStalenessTTL(d time.Duration) {
	c.mu.Lock()
	c.stalenessTTL = d
	c.mu.Unlock()
}
