package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"medtrack/internal/apperr"
	"medtrack/internal/logging"
)

// Ext is the file extension of profile databases.
const Ext = ".db"

// DefaultProfile is created when the directory holds no profile yet.
const DefaultProfile = "Profile 1"

var (
	// ErrInvalidProfileName is returned for names that cannot be file names.
	ErrInvalidProfileName = errors.New("invalid profile name")

	// ErrProfileExists is returned when creating or renaming onto an existing
	// profile.
	ErrProfileExists = errors.New("profile already exists")

	// ErrProfileNotFound is returned for operations on a missing profile.
	ErrProfileNotFound = errors.New("profile not found")
)

// Catalog manages the profile databases in one directory.
type Catalog struct {
	dir  string
	opts Options
}

// NewCatalog creates a Catalog over dir.
func NewCatalog(dir string, opts Options) *Catalog {
	return &Catalog{dir: dir, opts: opts}
}

// Dir returns the profile directory.
func (c *Catalog) Dir() string { return c.dir }

// Path returns the database path for a profile name.
func (c *Catalog) Path(name string) string {
	return filepath.Join(c.dir, name+Ext)
}

// ValidateName checks that name can be used as a profile file name.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name {
		return fmt.Errorf("%w: %q", ErrInvalidProfileName, name)
	}
	if strings.ContainsAny(name, `/\:`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidProfileName, name)
	}
	return nil
}

// List returns the profile names found in the directory, sorted.
func (c *Catalog) List() ([]string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, apperr.Persistence("list profiles", err)
	}
	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+Ext))
	if err != nil {
		return nil, apperr.Persistence("list profiles", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), Ext))
	}
	sort.Strings(names)
	return names, nil
}

// EnsureDefault creates DefaultProfile when no profile exists and returns
// the resulting list.
func (c *Catalog) EnsureDefault() ([]string, error) {
	names, err := c.List()
	if err != nil || len(names) > 0 {
		return names, err
	}
	if err := c.Create(DefaultProfile); err != nil {
		return nil, err
	}
	return []string{DefaultProfile}, nil
}

// Exists reports whether a profile database exists.
func (c *Catalog) Exists(name string) bool {
	_, err := os.Stat(c.Path(name))
	return err == nil
}

// Open opens an existing or new profile's handle.
func (c *Catalog) Open(name string) (*ProfileStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, apperr.Persistence("open profile", err)
	}
	return Open(c.Path(name), c.opts)
}

// OpenExisting opens a profile's handle and fails with ErrProfileNotFound
// rather than creating a missing database.
func (c *Catalog) OpenExisting(name string) (*ProfileStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, apperr.Persistence("open profile", err)
	}
	if !c.Exists(name) {
		return nil, apperr.Persistence("open profile", fmt.Errorf("%w: %s", ErrProfileNotFound, name))
	}
	return Open(c.Path(name), c.opts)
}

// Create creates an empty profile database with the current schema.
func (c *Catalog) Create(name string) error {
	if err := ValidateName(name); err != nil {
		return apperr.Persistence("create profile", err)
	}
	if c.Exists(name) {
		return apperr.Persistence("create profile", fmt.Errorf("%w: %s", ErrProfileExists, name))
	}
	s, err := Open(c.Path(name), c.opts)
	if err != nil {
		return err
	}
	logging.Store("Created profile %s", name)
	return s.Close()
}

// Rename moves a profile database (and any SQLite sidecar files) to a new
// name. The profile must not be open.
func (c *Catalog) Rename(oldName, newName string) error {
	if err := ValidateName(newName); err != nil {
		return apperr.Persistence("rename profile", err)
	}
	if !c.Exists(oldName) {
		return apperr.Persistence("rename profile", fmt.Errorf("%w: %s", ErrProfileNotFound, oldName))
	}
	if oldName == newName {
		return nil
	}
	if c.Exists(newName) {
		return apperr.Persistence("rename profile", fmt.Errorf("%w: %s", ErrProfileExists, newName))
	}

	oldPath, newPath := c.Path(oldName), c.Path(newName)
	if err := os.Rename(oldPath, newPath); err != nil {
		return apperr.Persistence("rename profile", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(oldPath + suffix); err == nil {
			if err := os.Rename(oldPath+suffix, newPath+suffix); err != nil {
				logging.StoreWarn("Failed to move %s%s: %v", oldPath, suffix, err)
			}
		}
	}
	logging.Store("Renamed profile %s -> %s", oldName, newName)
	return nil
}
