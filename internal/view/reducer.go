// Package view folds the decoded event stream into render-ready state
// for one consumer. Each consumer owns its reducer; the ledger is
// never mutated from here.
package view

import (
	"autoclip/internal/progress"
	"autoclip/internal/protocol"
)

// JobView is the render-ready shape of the active job.
type JobView struct {
	Input     string `json:"input"`
	Step      string `json:"step"`
	Percent   int    `json:"percent"`
	Elapsed   string `json:"elapsed"`
	Remaining string `json:"remaining"`
}

// ClipView is the render-ready shape of one produced clip.
type ClipView struct {
	File      string  `json:"file"`
	Duration  float64 `json:"duration"`
	Subtitled bool    `json:"subtitled"`
}

// LogView is one rendered log line.
type LogView struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// State is the derived view state of one consumer.
type State struct {
	Job        *JobView   `json:"job"`
	Clips      []ClipView `json:"clips"`
	Logs       []LogView  `json:"logs"`
	HasRun     bool       `json:"hasRun"`
	TotalClips int        `json:"totalClips"`
	LastError  string     `json:"lastError"`
}

// Reducer applies events to derived view state. Replaying the same
// ordered sequence against a fresh reducer yields the same state.
type Reducer struct {
	state State
}

// NewReducer creates a reducer with empty view state.
func NewReducer() *Reducer {
	return &Reducer{}
}

// State returns a copy of the current view state.
func (r *Reducer) State() State {
	out := r.state
	if r.state.Job != nil {
		job := *r.state.Job
		out.Job = &job
	}
	out.Clips = append([]ClipView(nil), r.state.Clips...)
	out.Logs = append([]LogView(nil), r.state.Logs...)
	return out
}

// Apply folds one event into the view state.
func (r *Reducer) Apply(event protocol.Event) {
	switch event.Type {
	case protocol.EventTypeState:
		r.applyState(event)

	case protocol.EventTypeProgress:
		// Never drop a progress update: reinitialize a missing job
		// view with placeholders before applying it.
		r.ensureJob(event)
		r.state.Job.Step = event.Step
		r.state.Job.Percent = clampPercent(event.Percent)
		r.state.Job.Elapsed = event.Elapsed
		r.state.Job.Remaining = event.Remaining

	case protocol.EventTypeClip:
		r.state.Clips = append(r.state.Clips, ClipView{
			File:     event.File,
			Duration: event.Duration,
		})

	case protocol.EventTypeSubtitle:
		for i := range r.state.Clips {
			if r.state.Clips[i].File == event.Clip {
				r.state.Clips[i].Subtitled = true
				break
			}
		}

	case protocol.EventTypeLog:
		r.state.Logs = append(r.state.Logs, LogView{
			Level:   event.Level,
			Message: event.Message,
		})

	case protocol.EventTypeError:
		r.state.LastError = event.Message
		r.state.Logs = append(r.state.Logs, LogView{
			Level:   string(protocol.LevelError),
			Message: event.Message,
		})
		r.state.Job = nil

	case protocol.EventTypeComplete:
		if event.TotalClips > 0 {
			r.state.TotalClips = event.TotalClips
		}
		r.state.Job = nil
	}
}

// applyState handles lifecycle acknowledgments, recovering a missing
// job view on a started event.
func (r *Reducer) applyState(event protocol.Event) {
	switch event.Status {
	case protocol.StateStarted:
		r.ensureJob(event)
		r.state.HasRun = true
		r.state.LastError = ""
	case "completed", "stopped":
		r.state.Job = nil
	case "error":
		r.state.Job = nil
		if event.Message != "" {
			r.state.LastError = event.Message
		}
	}
}

// ensureJob initializes the job view when absent, using the best
// available input label.
func (r *Reducer) ensureJob(event protocol.Event) {
	if r.state.Job != nil {
		return
	}

	input := event.File
	if input == "" {
		input = event.JobID
	}
	r.state.Job = &JobView{
		Input:     input,
		Step:      "processing",
		Remaining: progress.RemainingCalculating,
	}
	r.state.HasRun = true
}

// clampPercent bounds percent to [0,100] independent of upstream
// clamping.
func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
