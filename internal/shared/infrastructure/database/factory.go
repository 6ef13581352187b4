package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config selects and parameterises a backend. An empty or "auto" Driver is
// detected from URL; an empty URL means local SQLite.
type Config struct {
	Driver     Driver
	URL        string
	SQLitePath string // defaults to ~/.billora/billora.db
	MaxConns   int    // postgres pool size
}

// Opener opens a Connection for one driver.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]Opener{}
)

// Register installs the opener for driver. The postgres and sqlite packages
// call it from init, so binaries blank-import the drivers they need.
func Register(driver Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// Resolved fills in the driver and the SQLite path.
func (c Config) Resolved() Config {
	if c.URL == "" {
		c.Driver = DriverSQLite
	} else if c.Driver == "" || c.Driver == "auto" {
		c.Driver = DetectDriver(c.URL)
	}
	if c.Driver == DriverSQLite && c.SQLitePath == "" {
		c.SQLitePath = strings.TrimPrefix(c.URL, "sqlite://")
	}
	if c.Driver == DriverSQLite && c.SQLitePath == "" {
		c.SQLitePath = DefaultSQLitePath()
	}
	return c
}

// NewConnection opens the backend cfg resolves to.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	cfg = cfg.Resolved()
	openersMu.RLock()
	open, ok := openers[cfg.Driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database driver %q not registered", cfg.Driver)
	}
	return open(ctx, cfg)
}

func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".billora", "billora.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
