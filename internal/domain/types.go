package domain

import "time"

// ProjectStatus tracks the lifecycle outcome of one processing run.
type ProjectStatus string

const (
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusError      ProjectStatus = "error"
)

// SourceType tags where the input media for a project came from.
type SourceType string

const (
	SourceTypeLocal   SourceType = "local"
	SourceTypeYouTube SourceType = "youtube"
)

// LogSeverity classifies ledger log entries.
type LogSeverity string

const (
	LogSeverityInfo    LogSeverity = "info"
	LogSeverityWarning LogSeverity = "warning"
	LogSeverityError   LogSeverity = "error"
)

// JobState describes the single currently-running job for display.
type JobState struct {
	Input     string    `json:"input"`
	Step      string    `json:"step"`
	Percent   int       `json:"percent"`
	Elapsed   string    `json:"elapsed"`
	Remaining string    `json:"remaining"`
	StartedAt time.Time `json:"startedAt"`
}

// ProjectRecord is one persisted historical entry per user-initiated run.
type ProjectRecord struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	SourceType     SourceType    `json:"sourceType"`
	TotalClips     int           `json:"totalClips"`
	CompletedClips int           `json:"completedClips"`
	Status         ProjectStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// ClipRecord is one produced clip artifact.
type ClipRecord struct {
	File      string  `json:"file"`
	Duration  float64 `json:"duration"`
	Subtitled bool    `json:"subtitled"`
}

// LogEntry is one append-only diagnostic record.
type LogEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message"`
	Severity  LogSeverity `json:"severity"`
}

// StateSnapshot is the read-side view of the whole ledger.
type StateSnapshot struct {
	CurrentJob *JobState       `json:"currentJob"`
	Clips      []ClipRecord    `json:"clips"`
	Logs       []LogEntry      `json:"logs"`
	Projects   []ProjectRecord `json:"projects"`
}

// Settings contains user-selectable runtime configuration for the engine.
type Settings struct {
	PythonPath       string `json:"pythonPath"`
	EngineScript     string `json:"engineScript"`
	OutputDir        string `json:"outputDir"`
	MaxClips         int    `json:"maxClips"`
	ClipDuration     int    `json:"clipDuration"`
	Aspect           string `json:"aspect"`
	Quality          string `json:"quality"`
	SubtitleStyle    string `json:"subtitleStyle"`
	SubtitlePosition string `json:"subtitlePosition"`
	SubtitleColor    string `json:"subtitleColor"`
	EnableCrop       bool   `json:"enableCrop"`
}

// DetectSourceType classifies an input descriptor as a YouTube URL or local file.
func DetectSourceType(input string) SourceType {
	for _, prefix := range []string{
		"https://www.youtube.com/",
		"https://youtube.com/",
		"https://youtu.be/",
		"http://www.youtube.com/",
		"http://youtube.com/",
		"http://youtu.be/",
	} {
		if len(input) >= len(prefix) && input[:len(prefix)] == prefix {
			return SourceTypeYouTube
		}
	}
	return SourceTypeLocal
}
