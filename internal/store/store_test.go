package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"medtrack/internal/apperr"
	"medtrack/internal/medication"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var drivers = []string{DriverSQLite, DriverSQLite3}

func openTemp(t *testing.T, driver string) *ProfileStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "Test"+Ext), Options{Driver: driver, BusyTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var sample = []medication.Record{
	{Name: "Aspirin", Strength: "81mg", Frequency: "Once daily"},
	{Name: "Lisinopril", Strength: "10mg", Frequency: "Once daily", Description: "Hypertension"},
	{Name: "Aspirin", Strength: "325mg", Frequency: "As needed"},
}

func TestProfileStore_InsertLoad(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := openTemp(t, driver)
			ctx := context.Background()

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)

			for _, r := range sample {
				_, err := s.Insert(ctx, r)
				require.NoError(t, err)
			}

			got, err = s.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(sample, got); diff != "" {
				t.Errorf("Load mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, "Test", s.Name())
		})
	}
}

func TestProfileStore_Delete(t *testing.T) {
	s := openTemp(t, DriverSQLite)
	ctx := context.Background()

	id, err := s.Insert(ctx, sample[0])
	require.NoError(t, err)
	_, err = s.Insert(ctx, sample[1])
	require.NoError(t, err)

	ok, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := s.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Lisinopril", rows[0].Name)
}

func TestTx_CommitAndRollback(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := openTemp(t, driver)
			ctx := context.Background()
			_, err := s.Insert(ctx, sample[0])
			require.NoError(t, err)

			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.Clear(ctx))
			require.NoError(t, tx.Insert(ctx, sample[1]))
			require.NoError(t, tx.Rollback())
			require.NoError(t, tx.Rollback(), "second rollback is a no-op")

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, sample[:1], got)

			tx, err = s.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.Clear(ctx))
			require.NoError(t, tx.Insert(ctx, sample[1]))
			require.NoError(t, tx.Commit())
			require.NoError(t, tx.Rollback(), "rollback after commit is a no-op")
			assert.Error(t, tx.Commit())

			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, sample[1:2], got)
		})
	}
}

func TestOpen_MigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Legacy"+Ext)

	db, err := sql.Open(DriverSQLite, path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE medications (id INTEGER PRIMARY KEY, name TEXT NOT NULL, strength TEXT NOT NULL, dosage_frequency TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO medications (name, strength, dosage_frequency) VALUES ('Metformin', '500mg', 'Twice daily')`)
	require.NoError(t, err)
	require.False(t, columnExists(db, "medications", "description"))
	require.NoError(t, db.Close())

	s, err := Open(path, Options{Driver: DriverSQLite})
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, columnExists(s.db, "medications", "description"))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []medication.Record{{Name: "Metformin", Strength: "500mg", Frequency: "Twice daily"}}, got)

	// Idempotent on reopen.
	require.NoError(t, RunMigrations(s.db))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x"+Ext), Options{Driver: "postgres"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
}

func TestCatalog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	c := NewCatalog(dir, Options{Driver: DriverSQLite})

	names, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	names, err = c.EnsureDefault()
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultProfile}, names)

	require.NoError(t, c.Create("Mom"))
	err = c.Create("Mom")
	assert.True(t, errors.Is(err, ErrProfileExists))
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))

	s, err := c.Open("Mom")
	require.NoError(t, err)
	_, err = s.Insert(context.Background(), sample[0])
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, c.Rename("Mom", "Mother"))
	assert.False(t, c.Exists("Mom"))
	assert.True(t, c.Exists("Mother"))

	s, err = c.Open("Mother")
	require.NoError(t, err)
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, sample[:1], got, "rename keeps the data")

	assert.ErrorIs(t, c.Rename("Mother", DefaultProfile), ErrProfileExists)
	assert.ErrorIs(t, c.Rename("Nobody", "Somebody"), ErrProfileNotFound)
	assert.NoError(t, c.Rename("Mother", "Mother"))

	_, err = c.OpenExisting("Mom")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.False(t, c.Exists("Mom"), "a failed open creates nothing")
	s, err = c.OpenExisting("Mother")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	names, err = c.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Mother", DefaultProfile}, names)
}

func TestValidateName(t *testing.T) {
	for _, good := range []string{"Profile 1", "Dad", "kid-2"} {
		assert.NoError(t, ValidateName(good), good)
	}
	for _, bad := range []string{"", " ", " padded", "a/b", `a\b`, "..", "c:"} {
		assert.ErrorIs(t, ValidateName(bad), ErrInvalidProfileName, bad)
	}
}

func TestProfileWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewProfileWatcher(dir)
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "Guest"+Ext)
	require.NoError(t, os.WriteFile(path, nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))

	ev := nextEvent(t, w)
	assert.Equal(t, ProfileEvent{Type: ProfileAdded, Name: "Guest"}, ev)

	require.NoError(t, os.Remove(path))
	ev = nextEvent(t, w)
	assert.Equal(t, ProfileEvent{Type: ProfileRemoved, Name: "Guest"}, ev)
}

func nextEvent(t *testing.T, w *ProfileWatcher) ProfileEvent {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok)
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for profile event")
		return ProfileEvent{}
	}
}
