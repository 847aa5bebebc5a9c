package ledger

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclip/internal/domain"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	led, err := New(NewMemoryProjectStore(), zerolog.Nop())
	require.NoError(t, err)
	return led
}

// TestLedgerJobLifecycle checks the single current-job slot.
func TestLedgerJobLifecycle(t *testing.T) {
	led := newTestLedger(t)

	_, ok := led.CurrentJob()
	assert.False(t, ok)

	led.BeginJob(domain.JobState{Input: "video.mp4", Step: "starting"})
	job, ok := led.CurrentJob()
	require.True(t, ok)
	assert.Equal(t, "video.mp4", job.Input)

	led.UpdateJobProgress("transcribing", 40, "30s", "~45s")
	job, _ = led.CurrentJob()
	assert.Equal(t, "transcribing", job.Step)
	assert.Equal(t, 40, job.Percent)
	assert.Equal(t, "~45s", job.Remaining)

	led.ClearJob()
	_, ok = led.CurrentJob()
	assert.False(t, ok)
}

// TestLedgerUpdateProgressWithoutJob is a no-op, not a panic.
func TestLedgerUpdateProgressWithoutJob(t *testing.T) {
	led := newTestLedger(t)
	led.UpdateJobProgress("transcribing", 40, "30s", "~45s")

	_, ok := led.CurrentJob()
	assert.False(t, ok)
}

// TestLedgerMarkSubtitled covers both event orderings of clip and
// subtitle.
func TestLedgerMarkSubtitled(t *testing.T) {
	led := newTestLedger(t)

	// Subtitle before its clip: no-op, flag stays false once recorded.
	assert.False(t, led.MarkSubtitled("clips/a.mp4"))
	led.AppendClip(domain.ClipRecord{File: "clips/a.mp4", Duration: 20})
	clips := led.Clips()
	require.Len(t, clips, 1)
	assert.False(t, clips[0].Subtitled)

	// Clip then subtitle: flag flips, idempotent on repeat.
	assert.True(t, led.MarkSubtitled("clips/a.mp4"))
	assert.True(t, led.MarkSubtitled("clips/a.mp4"))
	clips = led.Clips()
	assert.True(t, clips[0].Subtitled)
}

// TestLedgerProjectsNewestFirst checks insertion-order listing.
func TestLedgerProjectsNewestFirst(t *testing.T) {
	led := newTestLedger(t)

	// Identical timestamps: insertion order must still decide.
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	led.CreateProject(domain.ProjectRecord{ID: "p1", CreatedAt: at, UpdatedAt: at})
	led.CreateProject(domain.ProjectRecord{ID: "p2", CreatedAt: at, UpdatedAt: at})
	led.CreateProject(domain.ProjectRecord{ID: "p3", CreatedAt: at, UpdatedAt: at})

	projects := led.ListProjects()
	require.Len(t, projects, 3)
	assert.Equal(t, "p3", projects[0].ID)
	assert.Equal(t, "p1", projects[2].ID)
}

// TestLedgerUpdateProjectStatus checks patch application.
func TestLedgerUpdateProjectStatus(t *testing.T) {
	led := newTestLedger(t)
	led.CreateProject(domain.ProjectRecord{ID: "p1", Status: domain.ProjectStatusProcessing})

	total := 4
	ok := led.UpdateProjectStatus("p1", domain.ProjectStatusCompleted, ProjectPatch{CompletedClips: &total})
	require.True(t, ok)

	projects := led.ListProjects()
	assert.Equal(t, domain.ProjectStatusCompleted, projects[0].Status)
	assert.Equal(t, 4, projects[0].CompletedClips)

	assert.False(t, led.UpdateProjectStatus("missing", domain.ProjectStatusError, ProjectPatch{}))
}

// TestLedgerIncrementCompletedClips counts clip events per project.
func TestLedgerIncrementCompletedClips(t *testing.T) {
	led := newTestLedger(t)
	led.CreateProject(domain.ProjectRecord{ID: "p1"})

	led.IncrementCompletedClips("p1")
	led.IncrementCompletedClips("p1")
	led.IncrementCompletedClips("missing")

	assert.Equal(t, 2, led.ListProjects()[0].CompletedClips)
}

// TestLedgerActiveProjectBinding checks bind and clear semantics.
func TestLedgerActiveProjectBinding(t *testing.T) {
	led := newTestLedger(t)

	assert.Empty(t, led.ActiveProjectID())
	led.BindActiveProject("p1")
	assert.Equal(t, "p1", led.ActiveProjectID())
	led.ClearActiveProject()
	assert.Empty(t, led.ActiveProjectID())
}

// TestLedgerPersistsOnEveryProjectMutation verifies rewrite-on-mutation.
func TestLedgerPersistsOnEveryProjectMutation(t *testing.T) {
	store := &countingStore{}
	led, err := New(store, zerolog.Nop())
	require.NoError(t, err)

	led.CreateProject(domain.ProjectRecord{ID: "p1"})
	led.UpdateProjectStatus("p1", domain.ProjectStatusCompleted, ProjectPatch{})
	led.IncrementCompletedClips("p1")

	assert.Equal(t, 3, store.saves)
}

// TestLedgerSnapshotIsACopy: mutating a snapshot must not leak back.
func TestLedgerSnapshotIsACopy(t *testing.T) {
	led := newTestLedger(t)
	led.BeginJob(domain.JobState{Input: "video.mp4"})
	led.AppendClip(domain.ClipRecord{File: "a.mp4"})

	snap := led.Snapshot()
	snap.CurrentJob.Input = "mutated"
	snap.Clips[0].File = "mutated"

	job, _ := led.CurrentJob()
	assert.Equal(t, "video.mp4", job.Input)
	assert.Equal(t, "a.mp4", led.Clips()[0].File)
}

// TestLedgerAppendLogDefaultsTimestamp fills missing timestamps.
func TestLedgerAppendLogDefaultsTimestamp(t *testing.T) {
	led := newTestLedger(t)
	led.AppendLog(domain.LogEntry{Message: "hello", Severity: domain.LogSeverityInfo})

	logs := led.Logs()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Timestamp.IsZero())
}

// countingStore counts Save calls for persistence assertions.
type countingStore struct {
	saves int
}

func (s *countingStore) Load() ([]domain.ProjectRecord, error) { return nil, nil }

func (s *countingStore) Save([]domain.ProjectRecord) error {
	s.saves++
	return nil
}
