package protocol

import "time"

// EventType discriminates structured records on the engine's event stream.
type EventType string

const (
	EventTypeProgress EventType = "progress"
	EventTypeClip     EventType = "clip"
	EventTypeSubtitle EventType = "subtitle"
	EventTypeLog      EventType = "log"
	EventTypeError    EventType = "error"
	EventTypeState    EventType = "state"
	EventTypeComplete EventType = "complete"
)

// Stream identifies which subprocess pipe a line arrived on.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Engine state values carried by state events.
const (
	StateStarted   = "started"
	StateCompleted = "completed"
)

// ClipPayload is one clip entry inside a complete-event result.
type ClipPayload struct {
	File     string  `json:"file"`
	Duration float64 `json:"duration"`
}

// CompleteResult is the optional summary attached to a complete event.
type CompleteResult struct {
	Clips []ClipPayload `json:"clips"`
}

// Event is a sequenced decoded record consumed by the supervisor and
// fanned out to UI subscribers. Seq, Timestamp, and JobID are assigned
// on publish; Elapsed and Remaining are filled in by the supervisor for
// progress events.
type Event struct {
	Seq        int64           `json:"seq"`
	Timestamp  time.Time       `json:"timestamp"`
	JobID      string          `json:"jobId"`
	Type       EventType       `json:"type"`
	Step       string          `json:"step,omitempty"`
	Percent    int             `json:"percent,omitempty"`
	File       string          `json:"file,omitempty"`
	Duration   float64         `json:"duration,omitempty"`
	Clip       string          `json:"clip,omitempty"`
	Subtitle   string          `json:"subtitle,omitempty"`
	Level      string          `json:"level,omitempty"`
	Message    string          `json:"message,omitempty"`
	Status     string          `json:"status,omitempty"`
	TotalClips int             `json:"totalClips,omitempty"`
	Result     *CompleteResult `json:"result,omitempty"`
	Elapsed    string          `json:"elapsed,omitempty"`
	Remaining  string          `json:"remaining,omitempty"`
}

// wireRecord mirrors the engine's JSON line format. The engine emits
// snake_case keys; Event re-exposes them in the shape the UI expects.
type wireRecord struct {
	Type       string          `json:"type"`
	Step       string          `json:"step"`
	Percent    int             `json:"percent"`
	File       string          `json:"file"`
	Duration   float64         `json:"duration"`
	Clip       string          `json:"clip"`
	Subtitle   string          `json:"subtitle"`
	Level      string          `json:"level"`
	Message    string          `json:"message"`
	Status     string          `json:"status"`
	TotalClips int             `json:"total_clips"`
	Result     *CompleteResult `json:"result"`
}
