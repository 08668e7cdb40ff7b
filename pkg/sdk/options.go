package incsearch

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "redis" or "bolt"
	addrs    []string
	password string
	path     string

	keyPrefix  string
	sessionTTL time.Duration

	pollInterval    time.Duration
	waitBudget      time.Duration
	defaultPageSize int
	maxPageSize     int

	asyncIndex    bool
	populateDelay time.Duration

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithBolt configures the client to store everything in an embedded bolt
// file. Suited to single-process deployments and tests.
func WithBolt(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "bolt"
		c.path = path
	})
}

// WithKeyPrefix namespaces all keys. Defaults to "incsearch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithSessionTTL bounds how long an abandoned search session survives.
// Defaults to one hour.
func WithSessionTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionTTL = ttl
	})
}

// WithWaitBudget caps how long Search blocks for the first rows.
// Defaults to one second.
func WithWaitBudget(budget time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.waitBudget = budget
	})
}

// WithPollInterval sets the pause between index readiness probes while a
// search waits for its first rows. Defaults to 100ms.
func WithPollInterval(interval time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.pollInterval = interval
	})
}

// WithPageSizes sets the default and maximum result page sizes.
// Defaults: 50 and 500.
func WithPageSizes(defaultSize, maxSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultPageSize = defaultSize
		c.maxPageSize = maxSize
	})
}

// WithSyncSearch disables asynchronous indexes: every search answers in
// synchronous fallback mode.
func WithSyncSearch() Option {
	return optionFunc(func(c *clientConfig) {
		c.asyncIndex = false
	})
}

// WithPopulateDelay artificially delays index population. A testing aid
// for exercising the incremental delivery path.
func WithPopulateDelay(delay time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.populateDelay = delay
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = logger
	})
}
