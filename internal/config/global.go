package config

import "sync/atomic"

var cfg atomic.Value

// Init installs the default configuration as the process-wide config.
func Init() {
	c := Default()
	cfg.Store(&c)
}

// Load returns the current config. Treat the returned value as read-only.
func Load() *Config {
	v, _ := cfg.Load().(*Config)
	if v == nil {
		c := Default()
		return &c
	}
	return v
}

// Update applies a mutation on a copy of the current config and swaps it in
// atomically.
func Update(mut func(*Config)) *Config {
	curr := Load()
	next := *curr
	mut(&next)
	cfg.Store(&next)
	return &next
}

// Swap installs next as the process-wide config wholesale, returning the
// config it replaced.
func Swap(next Config) *Config {
	prev := Load()
	cfg.Store(&next)
	return prev
}
