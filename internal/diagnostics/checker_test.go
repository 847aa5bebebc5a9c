package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclip/internal/domain"
)

func passingChecker(t *testing.T) (*Checker, domain.Settings) {
	t.Helper()

	root := t.TempDir()
	script := filepath.Join(root, "engine.py")
	require.NoError(t, os.WriteFile(script, []byte("#"), 0o644))

	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		os.Stat,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)
	settings := domain.Settings{
		PythonPath:   "python3",
		EngineScript: script,
		OutputDir:    filepath.Join(root, "out"),
	}
	return checker, settings
}

// TestCheckerAllPass verifies the healthy baseline.
func TestCheckerAllPass(t *testing.T) {
	checker, settings := passingChecker(t)

	report := checker.Run(settings)
	assert.False(t, report.HasFailures)
	require.Len(t, report.Items, 4)
	for _, item := range report.Items {
		assert.Equal(t, domain.DiagnosticStatusPass, item.Status, "%s: %s", item.ID, item.Message)
	}
}

// TestCheckerMissingTool flags an absent interpreter.
func TestCheckerMissingTool(t *testing.T) {
	checker, settings := passingChecker(t)
	checker.lookPath = func(name string) (string, error) {
		if name == "python3" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}

	report := checker.Run(settings)
	assert.True(t, report.HasFailures)
	assert.Equal(t, domain.DiagnosticStatusFail, report.Items[0].Status)
	assert.NotEmpty(t, report.Items[0].Hint)
}

// TestCheckerMissingEngineScript flags an absent engine entry point.
func TestCheckerMissingEngineScript(t *testing.T) {
	checker, settings := passingChecker(t)
	settings.EngineScript = filepath.Join(t.TempDir(), "nope", "engine.py")

	report := checker.Run(settings)
	assert.True(t, report.HasFailures)
}

// TestCheckerEngineScriptIsDirectory rejects a directory path.
func TestCheckerEngineScriptIsDirectory(t *testing.T) {
	checker, settings := passingChecker(t)
	settings.EngineScript = t.TempDir()

	report := checker.Run(settings)
	assert.True(t, report.HasFailures)
}

// TestCheckerEmptyOutputDir flags missing configuration.
func TestCheckerEmptyOutputDir(t *testing.T) {
	checker, settings := passingChecker(t)
	settings.OutputDir = ""

	report := checker.Run(settings)
	assert.True(t, report.HasFailures)
}

// TestCheckerUnwritableOutputDir flags write-check failure.
func TestCheckerUnwritableOutputDir(t *testing.T) {
	checker, settings := passingChecker(t)
	checker.createTemp = func(string, string) (*os.File, error) {
		return nil, errors.New("permission denied")
	}

	report := checker.Run(settings)
	assert.True(t, report.HasFailures)
}
