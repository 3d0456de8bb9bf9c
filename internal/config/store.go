package config

import (
	"path/filepath"
	"time"
)

// SQLite driver names as registered with database/sql.
const (
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite  = "sqlite"  // modernc.org/sqlite (pure Go)
)

// ValidDrivers lists the accepted store drivers.
var ValidDrivers = []string{DriverSQLite3, DriverSQLite}

func isValidDriver(d string) bool {
	for _, v := range ValidDrivers {
		if d == v {
			return true
		}
	}
	return false
}

// StoreConfig configures the per-profile databases.
type StoreConfig struct {
	// ProfileDir holds one <profile>.db file per profile.
	ProfileDir string `yaml:"profile_dir"`

	// Driver selects the SQLite driver.
	Driver string `yaml:"driver"`

	// BusyTimeoutMs is applied as PRAGMA busy_timeout on every handle.
	BusyTimeoutMs int `yaml:"busy_timeout_ms"`
}

// BusyTimeout returns the busy timeout as a duration.
func (c StoreConfig) BusyTimeout() time.Duration {
	if c.BusyTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.BusyTimeoutMs) * time.Millisecond
}

// ExportDir is where CSV exports are written.
func (c StoreConfig) ExportDir() string {
	return filepath.Join(filepath.Dir(c.ProfileDir), "exports")
}

// TasksConfig configures the background task runner.
type TasksConfig struct {
	// MaxConcurrent bounds how many units of work run at once. 0 = unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// UIConfig holds interactive UI configuration.
type UIConfig struct {
	Theme         string `yaml:"theme"` // dark, light
	GreetOnStart  bool   `yaml:"greet_on_start"`
	WatchProfiles bool   `yaml:"watch_profiles"`
}
