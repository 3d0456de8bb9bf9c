// Package export writes a profile's medication list to a CSV file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"medtrack/internal/apperr"
	"medtrack/internal/logging"
	"medtrack/internal/medication"
)

// Header is the first row of every export.
var Header = []string{"ID", "Name", "Strength", "Dosage Frequency", "Description"}

// FileName returns the export file name for a profile.
func FileName(profile string) string {
	return profile + "_medications.csv"
}

// WriteCSV writes the header and one row per record. IDs are 1..n in list
// order.
func WriteCSV(w io.Writer, records []medication.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i, r := range records {
		row := []string{strconv.Itoa(i + 1), r.Name, r.Strength, r.Frequency, r.Description}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile writes the export for profile into dir and returns its path. The
// file is replaced atomically.
func ToFile(dir, profile string, records []medication.Record) (string, error) {
	const op = "export"

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperr.Persistence(op, err)
	}

	path := filepath.Join(dir, FileName(profile))
	tmp, err := os.CreateTemp(dir, ".export-*.csv")
	if err != nil {
		return "", apperr.Persistence(op, err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, records); err != nil {
		tmp.Close()
		return "", apperr.Persistence(op, fmt.Errorf("failed to write %s: %w", path, err))
	}
	if err := tmp.Close(); err != nil {
		return "", apperr.Persistence(op, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", apperr.Persistence(op, err)
	}

	logging.Export("Exported %d medications for %s to %s", len(records), profile, path)
	return path, nil
}
