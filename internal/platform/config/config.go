// Package config reads typed values out of namespaced environment variables
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"taplist/internal/platform/logger"
)

// Conf is a prefixed view over the environment. The root view reads keys as
// given; Prefix narrows it so modules cannot reach each other's keys
type Conf struct{ prefix string }

// New returns the root view
func New() Conf { return Conf{} }

// Prefix returns a narrowed child view, e.g. cfg.Prefix("SERVICE_PGSQL_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// key composes the full env var name
func (c Conf) key(k string) string { return c.prefix + k }

// raw reads the trimmed value; "" means unset
func (c Conf) raw(k string) string { return strings.TrimSpace(os.Getenv(c.key(k))) }

// MustString panics when key is unset. Boot keys with no sane default,
// like the postgres DSN, go through here
func (c Conf) MustString(key string) string {
	v := c.raw(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("required config key is unset")
	}
	return v
}

// MustURL panics unless key holds an absolute URL
func (c Conf) MustURL(key string) *url.URL {
	s := c.MustString(key)
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("config key is not an absolute URL")
	}
	return u
}

// MayString returns def when key is unset
func (c Conf) MayString(key, def string) string {
	if v := c.raw(key); v != "" {
		return v
	}
	return def
}

// MayInt returns def when key is unset. A value that is not an int warns
// and falls back rather than killing boot
func (c Conf) MayInt(key string, def int) int {
	s := c.raw(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("not an int, using default")
		return def
	}
	return v
}

// MayFloat64 returns def when key is unset or not a float
func (c Conf) MayFloat64(key string, def float64) float64 {
	s := c.raw(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Float64("default", def).
			Msg("not a float, using default")
		return def
	}
	return v
}

// MayBool returns def when key is unset or not a bool
func (c Conf) MayBool(key string, def bool) bool {
	s := c.raw(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("not a bool, using default")
		return def
	}
	return v
}

// MayDuration returns def when key is unset or not a time.ParseDuration form
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.raw(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).
			Msg("not a duration, using default")
		return def
	}
	return d
}

// MayCSV splits a comma-separated value, dropping empty entries
func (c Conf) MayCSV(key string, def []string) []string {
	s := c.raw(key)
	if s == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
