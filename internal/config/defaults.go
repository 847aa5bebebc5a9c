package config

import (
	"os"
	"path/filepath"

	"autoclip/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		PythonPath:       "python3",
		EngineScript:     filepath.Join(homeDir, ".autoclip", "engine", "engine.py"),
		OutputDir:        filepath.Join(homeDir, "Videos", "AutoClip"),
		MaxClips:         5,
		ClipDuration:     30,
		Aspect:           "16:9",
		Quality:          "balanced",
		SubtitleStyle:    "tiktok",
		SubtitlePosition: "center",
		SubtitleColor:    "white",
		EnableCrop:       true,
	}
}
