// Package ledger holds the authoritative in-memory record of the
// current job, produced clips, diagnostic logs, and historical
// projects. The supervisor is the only writer; everything else reads
// snapshots.
package ledger

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"autoclip/internal/domain"
)

// ProjectPatch carries optional field updates applied alongside a
// project status change. Nil fields are left untouched.
type ProjectPatch struct {
	Name           *string
	TotalClips     *int
	CompletedClips *int
}

// Ledger is the single mutable store shared between the supervisor
// write side and any number of readers. All access is serialized
// through one mutex.
type Ledger struct {
	mu              sync.Mutex
	logger          zerolog.Logger
	store           ProjectStore
	current         *domain.JobState
	clips           []domain.ClipRecord
	logs            []domain.LogEntry
	projects        []domain.ProjectRecord // insertion order, oldest first
	activeProjectID string
	clock           func() time.Time
}

// New creates a ledger, loading persisted project history from store.
func New(store ProjectStore, logger zerolog.Logger) (*Ledger, error) {
	projects, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &Ledger{
		logger:   logger,
		store:    store,
		projects: projects,
		clock:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// CurrentJob returns the active job state, if one exists.
func (l *Ledger) CurrentJob() (domain.JobState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return domain.JobState{}, false
	}
	return *l.current, true
}

// BeginJob installs the job state for a newly started run.
func (l *Ledger) BeginJob(job domain.JobState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = &job
}

// UpdateJobProgress updates the in-place display fields of the active
// job. It is a no-op when no job is active.
func (l *Ledger) UpdateJobProgress(step string, percent int, elapsed, remaining string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return
	}
	if step != "" {
		l.current.Step = step
	}
	l.current.Percent = percent
	l.current.Elapsed = elapsed
	l.current.Remaining = remaining
}

// ClearJob destroys the active job state.
func (l *Ledger) ClearJob() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = nil
}

// AppendClip records one produced clip.
func (l *Ledger) AppendClip(clip domain.ClipRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clips = append(l.clips, clip)
}

// Clips returns a copy of all recorded clips.
func (l *Ledger) Clips() []domain.ClipRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ClipRecord(nil), l.clips...)
}

// MarkSubtitled flips the subtitled flag on the clip identified by
// file. Unknown files are a no-op: stream interleaving can deliver a
// subtitle event before its clip has been recorded.
func (l *Ledger) MarkSubtitled(file string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.clips {
		if l.clips[i].File == file {
			l.clips[i].Subtitled = true
			return true
		}
	}
	return false
}

// AppendLog records one diagnostic entry. Entries are append-only.
func (l *Ledger) AppendLog(entry domain.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock()
	}
	l.logs = append(l.logs, entry)
}

// Logs returns a copy of all recorded log entries.
func (l *Ledger) Logs() []domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.LogEntry(nil), l.logs...)
}

// CreateProject appends a new project record and persists the history.
func (l *Ledger) CreateProject(project domain.ProjectRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	if project.UpdatedAt.IsZero() {
		project.UpdatedAt = now
	}
	l.projects = append(l.projects, project)
	l.persistLocked()
}

// UpdateProjectStatus updates status and optional fields of one project
// and persists the history. Returns false when id is unknown.
func (l *Ledger) UpdateProjectStatus(id string, status domain.ProjectStatus, patch ProjectPatch) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.projects {
		if l.projects[i].ID != id {
			continue
		}

		if status != "" {
			l.projects[i].Status = status
		}
		if patch.Name != nil {
			l.projects[i].Name = *patch.Name
		}
		if patch.TotalClips != nil {
			l.projects[i].TotalClips = *patch.TotalClips
		}
		if patch.CompletedClips != nil {
			l.projects[i].CompletedClips = *patch.CompletedClips
		}
		l.projects[i].UpdatedAt = l.clock()
		l.persistLocked()
		return true
	}
	return false
}

// IncrementCompletedClips bumps the completed-clip counter of one
// project and persists the history.
func (l *Ledger) IncrementCompletedClips(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.projects {
		if l.projects[i].ID == id {
			l.projects[i].CompletedClips++
			l.projects[i].UpdatedAt = l.clock()
			l.persistLocked()
			return
		}
	}
}

// ListProjects returns the project history newest-first. Insertion
// order, not timestamps, decides the ordering.
func (l *Ledger) ListProjects() []domain.ProjectRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Reverse(append([]domain.ProjectRecord(nil), l.projects...))
}

// BindActiveProject records which project the current job updates.
func (l *Ledger) BindActiveProject(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeProjectID = id
}

// ActiveProjectID returns the project bound to the current job, if any.
func (l *Ledger) ActiveProjectID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeProjectID
}

// ClearActiveProject clears the active-project binding.
func (l *Ledger) ClearActiveProject() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeProjectID = ""
}

// Snapshot returns a copy of the full ledger state for readers.
func (l *Ledger) Snapshot() domain.StateSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	var current *domain.JobState
	if l.current != nil {
		job := *l.current
		current = &job
	}

	return domain.StateSnapshot{
		CurrentJob: current,
		Clips:      append([]domain.ClipRecord(nil), l.clips...),
		Logs:       append([]domain.LogEntry(nil), l.logs...),
		Projects:   lo.Reverse(append([]domain.ProjectRecord(nil), l.projects...)),
	}
}

// ReplaceCurrentJob overwrites the current-job slot; nil clears it.
func (l *Ledger) ReplaceCurrentJob(job *domain.JobState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if job == nil {
		l.current = nil
		return
	}
	clone := *job
	l.current = &clone
}

// ReplaceClips overwrites the clip list.
func (l *Ledger) ReplaceClips(clips []domain.ClipRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clips = append([]domain.ClipRecord(nil), clips...)
}

// ReplaceLogs overwrites the log list.
func (l *Ledger) ReplaceLogs(logs []domain.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append([]domain.LogEntry(nil), logs...)
}

// ReplaceProjects overwrites the project history (given newest-first,
// stored oldest-first) and persists it.
func (l *Ledger) ReplaceProjects(projects []domain.ProjectRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.projects = lo.Reverse(append([]domain.ProjectRecord(nil), projects...))
	l.persistLocked()
}

// persistLocked rewrites the project history through the store. A
// persistence failure is logged and does not fail the mutation.
func (l *Ledger) persistLocked() {
	if err := l.store.Save(append([]domain.ProjectRecord(nil), l.projects...)); err != nil {
		l.logger.Error().Err(err).Msg("persist project history")
	}
}
