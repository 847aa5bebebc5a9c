package bootstrap

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclip/internal/config"
	"autoclip/internal/domain"
	"autoclip/internal/events"
	"autoclip/internal/ledger"
	"autoclip/internal/protocol"
	"autoclip/internal/supervisor"
)

// fakeSettingsStore keeps settings in memory for app tests.
type fakeSettingsStore struct {
	settings domain.Settings
}

func (s *fakeSettingsStore) Load() (domain.Settings, error) { return s.settings, nil }

func (s *fakeSettingsStore) Save(settings domain.Settings) error {
	s.settings = settings
	return nil
}

// neverRunner fails every spawn; app tests never launch real processes.
type neverRunner struct{}

func (neverRunner) Start(context.Context, string, ...string) (supervisor.ProcessHandle, error) {
	return nil, assert.AnError
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	led, err := ledger.New(ledger.NewMemoryProjectStore(), zerolog.Nop())
	require.NoError(t, err)

	bus := events.NewBus(100)
	app := &App{
		Settings:   config.DefaultSettings(),
		Store:      &fakeSettingsStore{settings: config.DefaultSettings()},
		Ledger:     led,
		Supervisor: supervisor.New(neverRunner{}, protocol.NewDecoder(), led, bus),
		Bus:        bus,
	}
	app.wireView()
	return app
}

// TestAppViewStateFollowsEvents: the backend reducer tracks the bus.
func TestAppViewStateFollowsEvents(t *testing.T) {
	app := newTestApp(t)

	app.Bus.Publish(protocol.Event{Type: protocol.EventTypeState, Status: protocol.StateStarted, JobID: "project-1"})
	app.Bus.Publish(protocol.Event{Type: protocol.EventTypeProgress, Step: "transcribing", Percent: 40})
	app.Bus.Publish(protocol.Event{Type: protocol.EventTypeClip, File: "clips/a.mp4", Duration: 28})

	state := app.GetViewState()
	require.NotNil(t, state.Job)
	assert.Equal(t, 40, state.Job.Percent)
	require.Len(t, state.Clips, 1)
	assert.True(t, state.HasRun)
}

// TestAppStartJobSpawnFailure surfaces the failure without job state.
func TestAppStartJobSpawnFailure(t *testing.T) {
	app := newTestApp(t)

	_, err := app.StartJob(supervisor.StartRequest{Input: "video.mp4"})
	require.Error(t, err)

	state := app.GetState()
	assert.Nil(t, state.CurrentJob)
	require.Len(t, state.Projects, 1)
	assert.Equal(t, domain.ProjectStatusError, state.Projects[0].Status)
}

// TestAppStopJobWithoutJob returns the supervisor sentinel.
func TestAppStopJobWithoutJob(t *testing.T) {
	app := newTestApp(t)
	assert.ErrorIs(t, app.StopJob(), supervisor.ErrNoRunningJob)
}

// TestAppSetStateShallowMerge replaces only the provided top-level
// fields.
func TestAppSetStateShallowMerge(t *testing.T) {
	app := newTestApp(t)
	app.Ledger.AppendClip(domain.ClipRecord{File: "keep.mp4"})
	app.Ledger.AppendLog(domain.LogEntry{Message: "keep", Severity: domain.LogSeverityInfo, Timestamp: time.Now().UTC()})

	merged, err := app.SetState(map[string]json.RawMessage{
		"currentJob": json.RawMessage(`{"input":"video.mp4","step":"transcribing","percent":40}`),
		"logs":       json.RawMessage(`[]`),
	})
	require.NoError(t, err)

	require.NotNil(t, merged.CurrentJob)
	assert.Equal(t, "transcribing", merged.CurrentJob.Step)
	assert.Empty(t, merged.Logs, "logs key was provided and replaced")
	require.Len(t, merged.Clips, 1)
	assert.Equal(t, "keep.mp4", merged.Clips[0].File, "clips key absent, untouched")
}

// TestAppSetStateClearsJobWithNull: an explicit null clears the slot.
func TestAppSetStateClearsJobWithNull(t *testing.T) {
	app := newTestApp(t)
	app.Ledger.BeginJob(domain.JobState{Input: "video.mp4"})

	merged, err := app.SetState(map[string]json.RawMessage{
		"currentJob": json.RawMessage(`null`),
	})
	require.NoError(t, err)
	assert.Nil(t, merged.CurrentJob)
}

// TestAppSetStateInvalidPayload rejects malformed fields.
func TestAppSetStateInvalidPayload(t *testing.T) {
	app := newTestApp(t)

	_, err := app.SetState(map[string]json.RawMessage{
		"clips": json.RawMessage(`"not-a-list"`),
	})
	assert.Error(t, err)
}

// TestAppJobEventsIncrementalRead pages events by sequence.
func TestAppJobEventsIncrementalRead(t *testing.T) {
	app := newTestApp(t)
	app.Bus.Publish(protocol.Event{Type: protocol.EventTypeLog, Message: "1"})
	app.Bus.Publish(protocol.Event{Type: protocol.EventTypeLog, Message: "2"})

	events := app.JobEvents(1)
	require.Len(t, events, 1)
	assert.Equal(t, "2", events[0].Message)
}

// TestAppSaveSettingsNormalizes trims and applies defaults.
func TestAppSaveSettingsNormalizes(t *testing.T) {
	app := newTestApp(t)

	saved, err := app.SaveSettings(domain.Settings{
		PythonPath:   "  ",
		EngineScript: " /opt/autoclip/engine.py ",
		OutputDir:    "/out",
	})
	require.NoError(t, err)

	assert.Equal(t, "python3", saved.PythonPath)
	assert.Equal(t, "/opt/autoclip/engine.py", saved.EngineScript)
	assert.Equal(t, 5, saved.MaxClips)
	assert.Equal(t, "balanced", saved.Quality)
}
