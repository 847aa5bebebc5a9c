// Package bootstrap wires settings, the ledger, the supervisor, and
// the Wails UI runtime into one application.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"autoclip/internal/config"
	"autoclip/internal/diagnostics"
	"autoclip/internal/domain"
	"autoclip/internal/events"
	"autoclip/internal/ledger"
	applog "autoclip/internal/log"
	"autoclip/internal/protocol"
	"autoclip/internal/supervisor"
	"autoclip/internal/view"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Video files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.webm;*.flv;*.ts",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the ledger, the supervisor, and UI runtime
// callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Ledger      *ledger.Ledger
	Supervisor  *supervisor.Supervisor
	Bus         *events.Bus
	Diagnostics domain.DiagnosticReport

	assets  fs.FS
	checker *diagnostics.Checker

	mu         sync.Mutex
	runtimeCtx context.Context
	pushSubID  string

	viewMu sync.Mutex
	view   *view.Reducer
}

// New builds the application with persisted settings and startup
// diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures
// embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	applog.Configure(applog.Config{})

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".autoclip", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	projectStore := ledger.NewJSONProjectStore(filepath.Join(homeDir, ".autoclip", "projects.json"))
	led, err := ledger.New(projectStore, applog.WithComponent("ledger"))
	if err != nil {
		return nil, fmt.Errorf("load project history: %w", err)
	}

	bus := events.NewBus(1000)
	sup := supervisor.New(supervisor.NewExecRunner(), protocol.NewDecoder(), led, bus)

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Ledger:      led,
		Supervisor:  sup,
		Bus:         bus,
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
	}
	app.wireView()
	return app, nil
}

// wireView subscribes a backend-side reducer so reloaded UI windows
// can fetch render-ready state instead of replaying event history.
func (a *App) wireView() {
	a.view = view.NewReducer()
	a.Bus.Subscribe(func(event protocol.Event) {
		a.viewMu.Lock()
		defer a.viewMu.Unlock()
		a.view.Apply(event)
	})
}

// GetViewState returns the reduced render-ready state.
func (a *App) GetViewState() view.State {
	a.viewMu.Lock()
	defer a.viewMu.Unlock()
	return a.view.State()
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "AutoClip Studio",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores the Wails runtime context and bridges the event
// fan-out onto runtime push notifications.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtimeCtx = ctx
	a.pushSubID = a.Bus.Subscribe(func(event protocol.Event) {
		a.mu.Lock()
		rctx := a.runtimeCtx
		a.mu.Unlock()
		if rctx != nil {
			wailsruntime.EventsEmit(rctx, "job:event", event)
		}
	})
}

// Shutdown detaches the runtime context and push subscription.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	subID := a.pushSubID
	a.pushSubID = ""
	a.runtimeCtx = nil
	a.mu.Unlock()

	if subID != "" {
		a.Bus.Unsubscribe(subID)
	}
}

// StartJob launches one engine run. A second start while a job is
// active fails without altering the existing job.
func (a *App) StartJob(req supervisor.StartRequest) (domain.ProjectRecord, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.ProjectRecord{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return a.Supervisor.Start(settings, req)
}

// StopJob signals the active engine process and clears job state.
func (a *App) StopJob() error {
	return a.Supervisor.Stop()
}

// GetState returns the current ledger snapshot.
func (a *App) GetState() domain.StateSnapshot {
	return a.Ledger.Snapshot()
}

// SetState shallow-merges the provided top-level fields into the
// ledger and returns the merged snapshot. Keys absent from partial are
// left untouched.
func (a *App) SetState(partial map[string]json.RawMessage) (domain.StateSnapshot, error) {
	if raw, ok := partial["currentJob"]; ok {
		var job *domain.JobState
		if err := json.Unmarshal(raw, &job); err != nil {
			return domain.StateSnapshot{}, fmt.Errorf("merge currentJob: %w", err)
		}
		a.Ledger.ReplaceCurrentJob(job)
	}
	if raw, ok := partial["clips"]; ok {
		var clips []domain.ClipRecord
		if err := json.Unmarshal(raw, &clips); err != nil {
			return domain.StateSnapshot{}, fmt.Errorf("merge clips: %w", err)
		}
		a.Ledger.ReplaceClips(clips)
	}
	if raw, ok := partial["logs"]; ok {
		var logs []domain.LogEntry
		if err := json.Unmarshal(raw, &logs); err != nil {
			return domain.StateSnapshot{}, fmt.Errorf("merge logs: %w", err)
		}
		a.Ledger.ReplaceLogs(logs)
	}
	if raw, ok := partial["projects"]; ok {
		var projects []domain.ProjectRecord
		if err := json.Unmarshal(raw, &projects); err != nil {
			return domain.StateSnapshot{}, fmt.Errorf("merge projects: %w", err)
		}
		a.Ledger.ReplaceProjects(projects)
	}

	return a.Ledger.Snapshot(), nil
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []protocol.Event {
	return a.Bus.Since(sinceSeq)
}

// ListProjects returns the project history newest-first.
func (a *App) ListProjects() []domain.ProjectRecord {
	return a.Ledger.ListProjects()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	report := a.Diagnostics
	a.mu.Unlock()

	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes
// diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select video file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for clip exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in
// the platform file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies defaults for empty
// fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.PythonPath = strings.TrimSpace(settings.PythonPath)
	settings.EngineScript = strings.TrimSpace(settings.EngineScript)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.Aspect = strings.TrimSpace(settings.Aspect)
	settings.Quality = strings.TrimSpace(settings.Quality)

	if settings.PythonPath == "" {
		settings.PythonPath = defaults.PythonPath
	}
	if settings.Aspect == "" {
		settings.Aspect = defaults.Aspect
	}
	if settings.Quality == "" {
		settings.Quality = defaults.Quality
	}
	if settings.MaxClips <= 0 {
		settings.MaxClips = defaults.MaxClips
	}
	if settings.ClipDuration <= 0 {
		settings.ClipDuration = defaults.ClipDuration
	}
	return settings
}

// openInFileManager launches the platform file explorer for the
// provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
