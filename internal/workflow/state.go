package workflow

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ExecutionState is the persisted resume state for one workflow. The env
// map records every completed step's output under "<step_id>_result" and
// its status under "<step_id>_status"; resuming seeds env from the file and
// begins at the requested step.
type ExecutionState struct {
	LastStepID    string         `json:"last_step_id"`
	LastStepIndex int            `json:"last_step_index"`
	Env           map[string]any `json:"env"`
}

// Slug derives the state-directory name from a workflow name.
func Slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "workflow"
	}
	return slug
}

// StatePath returns the per-workflow state file location under dir:
// <dir>/.mediar/workflows/<slug>/state.json.
func StatePath(dir, workflowName string) string {
	return filepath.Join(dir, ".mediar", "workflows", Slug(workflowName), "state.json")
}

// SaveState writes the state file atomically (write-temp + rename), so a
// concurrent reader sees either the previous contents or the new complete
// contents, never a torn write.
func SaveState(path string, st *ExecutionState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish state: %w", err)
	}
	return nil
}

// LoadState reads a persisted state file. A missing or corrupt file is
// treated as absent; corruption is logged.
func LoadState(path string) *ExecutionState {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var st ExecutionState
	if err := json.Unmarshal(b, &st); err != nil {
		log.Printf("workflow: corrupt state file %s: %v", path, err)
		return nil
	}
	if st.Env == nil {
		st.Env = map[string]any{}
	}
	return &st
}
