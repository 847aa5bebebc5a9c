package protocol

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"autoclip/internal/log"
)

// Marker prefixes structured event lines on the engine's stdout.
const Marker = "IPC_EVENT:"

// Decoder classifies one subprocess output line at a time. It holds no
// per-line state; every call is independent.
type Decoder struct {
	logger zerolog.Logger
	noise  *NoiseFilter
}

// NewDecoder builds a decoder with the default stderr noise denylist.
func NewDecoder() *Decoder {
	return NewDecoderWithFilter(NewNoiseFilter())
}

// NewDecoderWithFilter builds a decoder with a caller-supplied noise filter.
func NewDecoderWithFilter(noise *NoiseFilter) *Decoder {
	return &Decoder{
		logger: log.WithComponent("decoder"),
		noise:  noise,
	}
}

// Decode turns one raw line into an Event. The second return is false
// when the line produces no observable effect: blank lines, stderr
// noise, and malformed structured records are all discarded. Malformed
// records are logged for developers but never fail the caller.
func (d *Decoder) Decode(stream Stream, line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")

	if stream == StreamStderr {
		return d.decodeStderr(line)
	}
	return d.decodeStdout(line)
}

// decodeStdout handles the structured channel: marker-prefixed JSON
// records, plain informational text, and blank-line discards.
func (d *Decoder) decodeStdout(line string) (Event, bool) {
	if strings.TrimSpace(line) == "" {
		return Event{}, false
	}

	if !strings.HasPrefix(line, Marker) {
		return Event{
			Type:    EventTypeLog,
			Level:   string(LevelInfo),
			Message: line,
		}, true
	}

	payload := strings.TrimPrefix(line, Marker)
	var record wireRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		d.logger.Debug().Err(err).Str("line", truncate(line, 200)).Msg("malformed structured line discarded")
		return Event{}, false
	}

	eventType := EventType(record.Type)
	switch eventType {
	case EventTypeProgress, EventTypeClip, EventTypeSubtitle,
		EventTypeLog, EventTypeError, EventTypeState, EventTypeComplete:
	default:
		// Unknown discriminators fail closed.
		d.logger.Debug().Str("type", record.Type).Msg("unknown event type discarded")
		return Event{}, false
	}

	event := Event{
		Type:       eventType,
		Step:       record.Step,
		Percent:    record.Percent,
		File:       record.File,
		Duration:   record.Duration,
		Clip:       record.Clip,
		Subtitle:   record.Subtitle,
		Level:      record.Level,
		Message:    record.Message,
		Status:     record.Status,
		TotalClips: record.TotalClips,
		Result:     record.Result,
	}
	if eventType == EventTypeLog {
		event.Level = normalizeLevel(record.Level)
	}
	return event, true
}

// decodeStderr downgrades known-benign encoder chatter to a discard and
// surfaces everything else as an error-severity log event.
func (d *Decoder) decodeStderr(line string) (Event, bool) {
	if rule, ok := d.noise.Match(line); ok {
		d.logger.Trace().Str("rule", rule).Str("line", truncate(line, 200)).Msg("stderr noise discarded")
		return Event{}, false
	}

	return Event{
		Type:    EventTypeLog,
		Level:   string(LevelError),
		Message: line,
	}, true
}

// Level names carried on log events.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// normalizeLevel maps engine log levels onto the known set, defaulting
// unrecognised values to INFO.
func normalizeLevel(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(LevelError):
		return string(LevelError)
	case string(LevelWarning), "WARN":
		return string(LevelWarning)
	default:
		return string(LevelInfo)
	}
}

// truncate bounds log field sizes for very long subprocess lines.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
