package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func readLog(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "logs", time.Now().Format("2006-01-02")+"_medtrack.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// TestAllCategoriesLog tests that all categories write when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, Options{DebugMode: true, Level: "debug", JSONFormat: true}))
	t.Cleanup(CloseAll)

	categories := []Category{
		CategoryBoot, CategoryTasks, CategoryStore, CategoryReconcile,
		CategoryAPI, CategoryUI, CategoryExport, CategoryWatch,
	}
	for _, cat := range categories {
		assert.True(t, IsCategoryEnabled(cat), "category %s", cat)
		Get(cat).Info("info message for %s", cat)
	}
	Store("convenience store log")
	TasksDebug("convenience tasks debug")

	CloseAll()
	content := readLog(t, dir)
	for _, cat := range categories {
		assert.Contains(t, content, "info message for "+string(cat))
		assert.Contains(t, content, `"logger":"`+string(cat)+`"`)
	}
	assert.Contains(t, content, "convenience store log")
	assert.Contains(t, content, "convenience tasks debug")
}

func TestDisabledModeWritesNothing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, Options{DebugMode: false}))
	t.Cleanup(CloseAll)

	assert.False(t, IsDebugMode())
	assert.False(t, IsCategoryEnabled(CategoryStore))
	Store("should not appear")

	_, err := os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, Options{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"api": false},
	}))
	t.Cleanup(CloseAll)

	assert.False(t, IsCategoryEnabled(CategoryAPI))
	assert.True(t, IsCategoryEnabled(CategoryStore))

	API("hidden api line")
	Store("visible store line")
	StoreDebug("below level")
	CloseAll()

	content := readLog(t, dir)
	assert.NotContains(t, content, "hidden api line")
	assert.Contains(t, content, "visible store line")
	assert.NotContains(t, content, "below level")
}

func TestUseLoggerRoutesCategories(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	UseLogger(zap.New(core), Options{})
	t.Cleanup(CloseAll)

	Get(CategoryReconcile).With("profile", "alice").Warn("busy %d", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "reconcile", entries[0].LoggerName)
	assert.Equal(t, "busy 2", entries[0].Message)
	assert.Equal(t, "alice", entries[0].ContextMap()["profile"])
}

func TestTimerThreshold(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	UseLogger(zap.New(core), Options{})
	t.Cleanup(CloseAll)

	timer := StartTimer(CategoryStore, "slow op")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Millisecond)

	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
	require.Equal(t, 1, logs.Len())
	assert.True(t, strings.HasPrefix(logs.All()[0].Message, "slow op took"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "error", parseLevel("error").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
}
