package server

import "time"

// CallToolRequest is the POST /tools/{name} request body.
type CallToolRequest struct {
	Arguments map[string]any `json:"arguments,omitempty"`
}

// SubmitWorkflowRequest is the POST /workflows request body.
type SubmitWorkflowRequest struct {
	// WorkflowYAML is the workflow document inline. Exactly one of
	// WorkflowYAML or WorkflowPath must be set.
	WorkflowYAML string `json:"workflow_yaml,omitempty"`

	// WorkflowPath is a filesystem path to the workflow YAML.
	WorkflowPath string `json:"workflow_path,omitempty"`

	// Inputs are variable values merged over the document defaults.
	Inputs map[string]any `json:"inputs,omitempty"`

	StartFromStep string `json:"start_from_step,omitempty"`
	EndAtStep     string `json:"end_at_step,omitempty"`
	StopOnError   *bool  `json:"stop_on_error,omitempty"`

	// RunID is optional. If empty, a ULID is generated.
	RunID string `json:"run_id,omitempty"`
}

// WorkflowStatus is returned by GET /workflows/{id}.
type WorkflowStatus struct {
	RunID         string     `json:"run_id"`
	Workflow      string     `json:"workflow"`
	State         string     `json:"state"`
	CurrentStepID string     `json:"current_step_id,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Result        any        `json:"result,omitempty"`
}

// RecorderStartRequest is the POST /recorder/start body.
type RecorderStartRequest struct {
	Name string `json:"name"`
	// Performance selects a preset: normal (default), balanced, low_energy.
	Performance string `json:"performance,omitempty"`
	Highlight   bool   `json:"highlight,omitempty"`
}

// RecorderStopRequest is the POST /recorder/stop body.
type RecorderStopRequest struct {
	// SavePath, when set, writes the recording to this file.
	SavePath string `json:"save_path,omitempty"`
}

// ErrorResponse is a standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
