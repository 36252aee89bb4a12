// Package raw is the env view the logger boots from. It stays free of the
// logger and config packages so either side can initialize first
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is a prefixed view over the environment, mirroring config.Conf
// without the logging
type Conf struct{ prefix string }

// New returns the root view
func New() Conf { return Conf{} }

// Prefix returns a narrowed child view, e.g. "LOG_"
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) get(key string) string {
	return strings.TrimSpace(os.Getenv(c.prefix + key))
}

// Get returns the trimmed value, or def when unset
func (c Conf) Get(key, def string) string {
	if v := c.get(key); v != "" {
		return v
	}
	return def
}

// GetBool treats 1, true, and yes as true and everything else as false
func (c Conf) GetBool(key string, def bool) bool {
	v := strings.ToLower(c.get(key))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

// GetInt returns def for anything that is not a non-negative integer
func (c Conf) GetInt(key string, def int) int {
	s := c.get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
