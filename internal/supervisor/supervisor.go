// Package supervisor owns the external engine process lifecycle and
// folds its decoded output into the ledger and the event fan-out.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"autoclip/internal/domain"
	"autoclip/internal/events"
	"autoclip/internal/ledger"
	"autoclip/internal/log"
	"autoclip/internal/progress"
	"autoclip/internal/protocol"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when stop is requested for idle state.
var ErrNoRunningJob = errors.New("no running job")

// Phase is the supervisor's job lifecycle state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStarting  Phase = "starting"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseErrored   Phase = "errored"
	PhaseStopped   Phase = "stopped"
)

// StartRequest is the payload of one user-initiated run.
type StartRequest struct {
	Input        string `json:"input"`
	ProjectName  string `json:"projectName"`
	MaxClips     int    `json:"maxClips"`
	ClipDuration int    `json:"clipDuration"`
}

// Supervisor enforces the single-in-flight-job invariant, routes
// decoded events to the ledger, and publishes them to the fan-out.
// The `Starting -> Running` transition waits for the engine's own
// "state: started" acknowledgment; a spawn only reaches Starting.
type Supervisor struct {
	logger  zerolog.Logger
	runner  Runner
	decoder *protocol.Decoder
	ledger  *ledger.Ledger
	bus     *events.Bus
	clock   func() time.Time

	mu         sync.Mutex
	phase      Phase
	generation int
	proc       ProcessHandle
	startedAt  time.Time
	jobID      string
}

// New builds a supervisor in idle phase.
func New(runner Runner, decoder *protocol.Decoder, led *ledger.Ledger, bus *events.Bus) *Supervisor {
	return &Supervisor{
		logger:  log.WithComponent("supervisor"),
		runner:  runner,
		decoder: decoder,
		ledger:  led,
		bus:     bus,
		clock:   func() time.Time { return time.Now().UTC() },
		phase:   PhaseIdle,
	}
}

// Phase returns the current lifecycle phase.
func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// IsRunning reports whether a job is active (Starting or Running).
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return isActive(s.phase)
}

// Start spawns the engine for one run. It fails without altering
// existing job state when a job is already active, and reports a
// start-failure event when the process cannot be spawned.
func (s *Supervisor) Start(settings domain.Settings, req StartRequest) (domain.ProjectRecord, error) {
	req = normalizeRequest(settings, req)
	if strings.TrimSpace(req.Input) == "" {
		return domain.ProjectRecord{}, errors.New("input is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if isActive(s.phase) {
		return domain.ProjectRecord{}, ErrJobAlreadyRunning
	}

	now := s.clock()
	project := domain.ProjectRecord{
		ID:         fmt.Sprintf("project-%d", now.UnixNano()),
		Name:       req.ProjectName,
		SourceType: domain.DetectSourceType(req.Input),
		TotalClips: req.MaxClips,
		Status:     domain.ProjectStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.ledger.CreateProject(project)
	s.ledger.BindActiveProject(project.ID)

	args := buildEngineArgs(settings, req)
	proc, err := s.runner.Start(context.Background(), settings.PythonPath, args...)
	if err != nil {
		s.ledger.UpdateProjectStatus(project.ID, domain.ProjectStatusError, ledger.ProjectPatch{})
		s.ledger.ClearActiveProject()
		s.ledger.AppendLog(domain.LogEntry{
			Message:  fmt.Sprintf("failed to start engine: %v", err),
			Severity: domain.LogSeverityError,
		})
		s.bus.Publish(protocol.Event{
			JobID:   project.ID,
			Type:    protocol.EventTypeError,
			Message: fmt.Sprintf("failed to start engine: %v", err),
		})
		return domain.ProjectRecord{}, fmt.Errorf("start engine: %w", err)
	}

	s.generation++
	gen := s.generation
	s.phase = PhaseStarting
	s.proc = proc
	s.startedAt = now
	s.jobID = project.ID

	s.ledger.BeginJob(domain.JobState{
		Input:     req.Input,
		Step:      "starting",
		Remaining: progress.RemainingCalculating,
		StartedAt: now,
	})
	s.ledger.AppendLog(domain.LogEntry{
		Message:  fmt.Sprintf("engine started (pid %d)", proc.Pid()),
		Severity: domain.LogSeverityInfo,
	})
	s.logger.Info().Int("pid", proc.Pid()).Str("project", project.ID).Msg("engine process started")

	go s.readLoop(gen, protocol.StreamStdout, proc.Stdout())
	go s.readLoop(gen, protocol.StreamStderr, proc.Stderr())
	go s.waitLoop(gen, proc)

	return project, nil
}

// Stop signals the running engine and clears job state eagerly without
// waiting for process exit. The exit notification, whenever it
// arrives, is then a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !isActive(s.phase) {
		return ErrNoRunningJob
	}

	if s.proc != nil {
		if err := s.proc.Signal(os.Interrupt); err != nil {
			s.logger.Warn().Err(err).Msg("signal engine process")
		}
	}

	s.finishLocked(PhaseStopped, "")
	return nil
}

// readLoop consumes one stream line by line until it closes. Decoded
// events funnel into the serialized handle path; discards have no
// observable effect.
func (s *Supervisor) readLoop(gen int, stream protocol.Stream, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		event, ok := s.decoder.Decode(stream, scanner.Text())
		if !ok {
			continue
		}
		s.handle(gen, event)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug().Err(err).Str("stream", string(stream)).Msg("stream read ended")
	}
}

// waitLoop reports process exit exactly once per process lifetime.
func (s *Supervisor) waitLoop(gen int, proc ProcessHandle) {
	code, err := proc.Wait()
	if err != nil {
		s.logger.Debug().Err(err).Msg("wait for engine process")
	}
	s.handleExit(gen, code)
}

// handleExit maps a process exit code to a terminal phase. Stale
// generations and already-terminal phases make it an idempotent no-op.
func (s *Supervisor) handleExit(gen, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || !isActive(s.phase) {
		return
	}

	if code == 0 {
		s.finishLocked(PhaseCompleted, "")
		return
	}
	s.finishLocked(PhaseErrored, fmt.Sprintf("engine exited with code %d", code))
}

// handle applies one decoded event to the ledger and publishes it.
// Events from a previous generation or after a terminal phase are
// discarded without resurrecting job state.
func (s *Supervisor) handle(gen int, event protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || !isActive(s.phase) {
		s.logger.Debug().Str("type", string(event.Type)).Msg("late event discarded")
		return
	}

	event.JobID = s.jobID

	switch event.Type {
	case protocol.EventTypeState:
		s.handleState(event)
		return

	case protocol.EventTypeProgress:
		elapsed, remaining := progress.Estimate(s.startedAt, s.clock(), event.Percent)
		event.Elapsed = elapsed
		event.Remaining = remaining
		s.ledger.UpdateJobProgress(event.Step, event.Percent, elapsed, remaining)

	case protocol.EventTypeClip:
		s.ledger.AppendClip(domain.ClipRecord{File: event.File, Duration: event.Duration})
		if id := s.ledger.ActiveProjectID(); id != "" {
			s.ledger.IncrementCompletedClips(id)
		}

	case protocol.EventTypeSubtitle:
		// No-op when the clip is not yet known; stream interleaving
		// can deliver the subtitle event first.
		s.ledger.MarkSubtitled(event.Clip)

	case protocol.EventTypeLog:
		s.ledger.AppendLog(domain.LogEntry{
			Message:  event.Message,
			Severity: severityFromLevel(event.Level),
		})

	case protocol.EventTypeError:
		s.ledger.AppendLog(domain.LogEntry{
			Message:  event.Message,
			Severity: domain.LogSeverityError,
		})
		s.bus.Publish(event)
		s.finishLocked(PhaseErrored, "")
		return

	case protocol.EventTypeComplete:
		if id := s.ledger.ActiveProjectID(); id != "" && event.TotalClips > 0 {
			total := event.TotalClips
			s.ledger.UpdateProjectStatus(id, "", ledger.ProjectPatch{CompletedClips: &total})
		}
		s.bus.Publish(event)
		s.finishLocked(PhaseCompleted, "")
		return
	}

	s.bus.Publish(event)
}

// handleState applies engine lifecycle acknowledgments.
func (s *Supervisor) handleState(event protocol.Event) {
	switch event.Status {
	case protocol.StateStarted:
		if s.phase == PhaseStarting {
			s.phase = PhaseRunning
		}
		s.bus.Publish(event)
	case protocol.StateCompleted:
		s.bus.Publish(event)
		s.finishLocked(PhaseCompleted, "")
	default:
		s.bus.Publish(event)
	}
}

// finishLocked resolves the active job to a terminal phase exactly
// once: clears job state, settles the bound project, and publishes the
// terminal event. Callers hold s.mu.
func (s *Supervisor) finishLocked(outcome Phase, message string) {
	if !isActive(s.phase) {
		return
	}

	s.phase = outcome
	s.proc = nil
	s.ledger.ClearJob()

	if id := s.ledger.ActiveProjectID(); id != "" {
		status := domain.ProjectStatusError
		if outcome == PhaseCompleted {
			status = domain.ProjectStatusCompleted
		}
		s.ledger.UpdateProjectStatus(id, status, ledger.ProjectPatch{})
		s.ledger.ClearActiveProject()
	}

	switch outcome {
	case PhaseCompleted:
		s.ledger.AppendLog(domain.LogEntry{Message: "processing completed", Severity: domain.LogSeverityInfo})
		s.bus.Publish(protocol.Event{JobID: s.jobID, Type: protocol.EventTypeState, Status: "completed"})
	case PhaseStopped:
		s.ledger.AppendLog(domain.LogEntry{Message: "processing stopped by user", Severity: domain.LogSeverityInfo})
		s.bus.Publish(protocol.Event{JobID: s.jobID, Type: protocol.EventTypeState, Status: "stopped"})
	case PhaseErrored:
		if message != "" {
			s.ledger.AppendLog(domain.LogEntry{Message: message, Severity: domain.LogSeverityError})
			s.bus.Publish(protocol.Event{JobID: s.jobID, Type: protocol.EventTypeError, Message: message})
		}
		s.bus.Publish(protocol.Event{JobID: s.jobID, Type: protocol.EventTypeState, Status: "error", Message: message})
	}

	s.logger.Info().Str("phase", string(outcome)).Str("job", s.jobID).Msg("job finished")
}

// isActive reports whether a phase has a live job bound to it.
func isActive(phase Phase) bool {
	return phase == PhaseStarting || phase == PhaseRunning
}

// severityFromLevel maps protocol log levels onto ledger severities.
func severityFromLevel(level string) domain.LogSeverity {
	switch strings.ToUpper(level) {
	case string(protocol.LevelError):
		return domain.LogSeverityError
	case string(protocol.LevelWarning):
		return domain.LogSeverityWarning
	default:
		return domain.LogSeverityInfo
	}
}

// normalizeRequest fills request gaps from settings defaults.
func normalizeRequest(settings domain.Settings, req StartRequest) StartRequest {
	req.Input = strings.TrimSpace(req.Input)
	req.ProjectName = strings.TrimSpace(req.ProjectName)
	if req.ProjectName == "" {
		req.ProjectName = "Untitled"
	}
	if req.MaxClips <= 0 {
		req.MaxClips = settings.MaxClips
	}
	if req.MaxClips <= 0 {
		req.MaxClips = 5
	}
	if req.ClipDuration <= 0 {
		req.ClipDuration = settings.ClipDuration
	}
	if req.ClipDuration <= 0 {
		req.ClipDuration = 30
	}
	return req
}

// buildEngineArgs builds the engine CLI invocation for one run.
func buildEngineArgs(settings domain.Settings, req StartRequest) []string {
	args := []string{
		settings.EngineScript,
		"--input", req.Input,
		"--output", settings.OutputDir,
		"--max-clips", strconv.Itoa(req.MaxClips),
		"--clip-duration", strconv.Itoa(req.ClipDuration),
		"--project-name", req.ProjectName,
		"--enable-crop", strconv.FormatBool(settings.EnableCrop),
	}

	if settings.Aspect != "" {
		args = append(args, "--aspect", settings.Aspect)
	}
	if settings.Quality != "" {
		args = append(args, "--quality", settings.Quality)
	}
	if settings.SubtitleStyle != "" {
		args = append(args, "--subtitle-style", settings.SubtitleStyle)
	}
	if settings.SubtitlePosition != "" {
		args = append(args, "--subtitle-position", settings.SubtitlePosition)
	}
	if settings.SubtitleColor != "" {
		args = append(args, "--subtitle-color", settings.SubtitleColor)
	}
	return args
}
