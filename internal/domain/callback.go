package domain

import (
	"encoding/json"
	"fmt"
)

// EventJobFinished is the only callback event the dispatcher acts on.
const EventJobFinished = "job.finished"

// OperationExportURL marks the task that produces the downloadable artifact.
const OperationExportURL = "export/url"

// Callback is the payload the provider POSTs when a job reaches a terminal state.
type Callback struct {
	Event string       `json:"event"`
	Job   *CallbackJob `json:"job"`
}

// CallbackJob carries the job identity and its per-task results.
type CallbackJob struct {
	ID    string         `json:"id"`
	Tag   string         `json:"tag,omitempty"`
	Tasks []CallbackTask `json:"tasks"`
}

// CallbackTask is one step of the provider's job graph.
type CallbackTask struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Operation string     `json:"operation"`
	Status    string     `json:"status,omitempty"`
	Result    TaskResult `json:"result"`
}

// TaskResult lists the files a task produced.
type TaskResult struct {
	Files []TaskFile `json:"files"`
}

// TaskFile is a produced file; URL is absent when the provider has nothing to fetch.
type TaskFile struct {
	Filename string  `json:"filename"`
	URL      *string `json:"url,omitempty"`
}

// ParseCallback decodes and validates a raw callback body.
// Any error it returns wraps ErrMalformedCallback.
func ParseCallback(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if cb.Event != EventJobFinished {
		return nil, fmt.Errorf("%w: unexpected event %q", ErrMalformedCallback, cb.Event)
	}
	if cb.Job == nil {
		return nil, fmt.Errorf("%w: missing job", ErrMalformedCallback)
	}
	if cb.Job.ID == "" {
		return nil, fmt.Errorf("%w: missing job id", ErrMalformedCallback)
	}
	if cb.Job.Tasks == nil {
		return nil, fmt.Errorf("%w: missing tasks", ErrMalformedCallback)
	}
	return &cb, nil
}

// ExportTask returns the first task whose operation is the export step.
func (j *CallbackJob) ExportTask() (CallbackTask, bool) {
	for _, t := range j.Tasks {
		if t.Operation == OperationExportURL {
			return t, true
		}
	}
	return CallbackTask{}, false
}
