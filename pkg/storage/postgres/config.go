package postgres

import (
	"errors"
	"strings"
	"time"
)

// Config holds the archive connection settings. Zero values take the
// defaults noted per field.
type Config struct {
	DSN             string
	MaxConns        int32         // 10
	MinConns        int32         // 1
	MaxConnLifetime time.Duration // 5m
	PingTimeout     time.Duration // 5s
	MigrateOnStart  bool
}

var errNoDSN = errors.New("archive dsn is required")

func (c Config) withDefaults() (Config, error) {
	if strings.TrimSpace(c.DSN) == "" {
		return c, errNoDSN
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	if c.MinConns <= 0 {
		c.MinConns = 1
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 5 * time.Minute
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 5 * time.Second
	}
	return c, nil
}
