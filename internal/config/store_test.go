package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclip/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	assert.Equal(t, "python3", cfg.PythonPath)
	assert.NotEmpty(t, cfg.EngineScript)
	assert.NotEmpty(t, cfg.OutputDir)
	assert.Equal(t, 5, cfg.MaxClips)
	assert.Equal(t, 30, cfg.ClipDuration)
	assert.Equal(t, "balanced", cfg.Quality)
	assert.True(t, cfg.EnableCrop)
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), got)
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		PythonPath:       "/usr/bin/python3",
		EngineScript:     "/opt/autoclip/engine.py",
		OutputDir:        "/out",
		MaxClips:         3,
		ClipDuration:     20,
		Aspect:           "9:16",
		Quality:          "high",
		SubtitleStyle:    "classic",
		SubtitlePosition: "bottom",
		SubtitleColor:    "yellow",
		EnableCrop:       false,
	}

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not-json"), 0o644))

	store := NewJSONStore(path)
	_, err := store.Load()
	assert.Error(t, err)
}
