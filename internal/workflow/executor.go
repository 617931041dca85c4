package workflow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/tools"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// Statuses of an executed workflow.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusError          = "error"
)

// ToolRunner dispatches tool invocations; the tools registry satisfies it.
type ToolRunner interface {
	Has(name string) bool
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// StepResult records one executed step.
type StepResult struct {
	StepID     string `json:"step_id"`
	ToolName   string `json:"tool_name"`
	Status     string `json:"status"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
}

// Result aggregates a workflow run. It always describes what ran, even
// when the run halted early.
type Result struct {
	Status        string          `json:"status"`
	Results       []StepResult    `json:"results"`
	ExecutedTools int             `json:"executed_tools"`
	TotalTools    int             `json:"total_tools"`
	State         *ExecutionState `json:"state,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// Options controls one execution.
type Options struct {
	StartFromStep string
	EndAtStep     string
	// RestoredState overlays a previously persisted env. When StartFromStep
	// is set and RestoredState is nil, the persisted state file is loaded;
	// with neither available the run fails with MissingStartState.
	RestoredState *ExecutionState
	// StopOnError halts the run on the first failed step that is not marked
	// continue_on_error, instead of recording the failure and moving on.
	StopOnError bool
	// Inputs are the caller-supplied variable values.
	Inputs map[string]any
}

// Executor sequences workflow steps against a tool runner.
type Executor struct {
	Tools ToolRunner
	// StateDir is where per-workflow resume state persists. Empty disables
	// persistence.
	StateDir string
	// Progress, when set, receives one event per step boundary. The map is
	// owned by the receiver.
	Progress func(event map[string]any)
}

func (ex *Executor) progress(ev map[string]any) {
	if ex.Progress != nil {
		ex.Progress(ev)
	}
}

// Execute runs doc per the options and returns the aggregate result. Setup
// failures (validation, unknown step ids, missing resume state) return an
// error with no result.
func (ex *Executor) Execute(ctx context.Context, doc *Document, opts Options) (*Result, error) {
	if err := doc.Validate(ex.Tools); err != nil {
		return nil, err
	}

	env := map[string]any{}
	for name, v := range doc.Variables {
		if v.Default != nil {
			env[name] = v.Default
		}
	}
	for k, v := range opts.Inputs {
		env[k] = v
	}

	startIdx, endIdx := 0, len(doc.Steps)-1
	if opts.EndAtStep != "" {
		i, ok := doc.StepIndex(opts.EndAtStep)
		if !ok {
			return nil, uia.ErrInvalidArgument("end_at_step %q not found", opts.EndAtStep)
		}
		endIdx = i
	}
	if opts.StartFromStep != "" {
		i, ok := doc.StepIndex(opts.StartFromStep)
		if !ok {
			return nil, uia.ErrInvalidArgument("start_from_step %q not found", opts.StartFromStep)
		}
		startIdx = i

		restored := opts.RestoredState
		if restored == nil && ex.StateDir != "" {
			restored = LoadState(StatePath(ex.StateDir, doc.Name))
		}
		if restored == nil {
			return nil, uia.ErrMissingStartState("start_from_step %q requested but no persisted state found", opts.StartFromStep)
		}
		for k, v := range restored.Env {
			env[k] = v
		}
	} else if opts.RestoredState != nil {
		for k, v := range opts.RestoredState.Env {
			env[k] = v
		}
	}

	res := &Result{
		Status:     StatusSuccess,
		TotalTools: endIdx - startIdx + 1,
		Metadata:   map[string]any{"workflow": doc.Name},
	}

	succeeded, failed := 0, 0
	halted := false
	lastStepID, lastStepIndex := "", -1

	for i := startIdx; i <= endIdx; i++ {
		step := doc.Steps[i]
		if err := ctx.Err(); err != nil {
			halted = true
			break
		}

		ex.progress(map[string]any{
			"event":   "step_started",
			"step_id": step.ID,
			"tool":    step.ToolName,
			"index":   i,
		})
		sr := ex.runStep(ctx, step, env)
		ex.progress(map[string]any{
			"event":   "step_finished",
			"step_id": step.ID,
			"tool":    step.ToolName,
			"index":   i,
			"status":  sr.Status,
			"error":   sr.Error,
		})
		res.Results = append(res.Results, sr)
		res.ExecutedTools++
		lastStepID, lastStepIndex = step.ID, i

		env[step.ID+"_result"] = sr.Result
		env[step.ID+"_status"] = sr.Status

		if sr.Status != StatusSuccess {
			failed++
			// The step's own retry policy is already exhausted here. A step
			// marked continue_on_error is recorded and the sequence moves
			// on; otherwise the call-level stop_on_error decides between
			// halting and recording.
			if !step.ContinueOnError && opts.StopOnError {
				halted = true
				break
			}
		} else {
			succeeded++
		}

		if step.DelayMS > 0 && i < endIdx {
			select {
			case <-ctx.Done():
				halted = true
			case <-time.After(time.Duration(step.DelayMS) * time.Millisecond):
			}
			if halted {
				break
			}
		}
	}

	switch {
	case failed == 0 && !halted:
		res.Status = StatusSuccess
	case succeeded > 0:
		res.Status = StatusPartialSuccess
	default:
		res.Status = StatusError
	}

	res.State = &ExecutionState{LastStepID: lastStepID, LastStepIndex: lastStepIndex, Env: env}
	if ex.StateDir != "" && lastStepIndex >= 0 {
		if err := SaveState(StatePath(ex.StateDir, doc.Name), res.State); err != nil {
			log.Printf("workflow: persist state: %v", err)
		}
	}

	if doc.Parser != nil {
		parsed, err := RunOutputParser(ctx, doc.Parser, resultAsJSON(res))
		if err != nil {
			res.Status = StatusError
			res.Metadata["parser_error"] = err.Error()
			return res, err
		}
		res.Metadata["parsed_output"] = parsed
	}
	return res, nil
}

// runStep dispatches one step with variable substitution and its retry
// policy. A parser failure fails the step.
func (ex *Executor) runStep(ctx context.Context, step Step, env map[string]any) StepResult {
	sr := StepResult{StepID: step.ID, ToolName: step.ToolName, Status: StatusError}
	start := time.Now()
	defer func() { sr.DurationMS = time.Since(start).Milliseconds() }()

	args, _ := substituteInValue(step.Arguments, env).(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	attempts := 1
	backoff := time.Duration(0)
	if step.Retry != nil {
		if step.Retry.Count > 0 {
			attempts = step.Retry.Count
		}
		backoff = time.Duration(step.Retry.BackoffMS) * time.Millisecond
	}

	var out any
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		sr.Attempts = attempt
		out, err = ex.Tools.Execute(ctx, step.ToolName, args)
		if err == nil {
			break
		}
		if attempt < attempts && backoff > 0 {
			select {
			case <-ctx.Done():
				sr.Error = ctx.Err().Error()
				return sr
			case <-time.After(backoff):
			}
		}
	}
	if err != nil {
		sr.Error = err.Error()
		return sr
	}

	if step.Parser != nil {
		parsed, perr := RunOutputParser(ctx, step.Parser, toJSONValue(out))
		if perr != nil {
			sr.Error = perr.Error()
			return sr
		}
		out = parsed
	}

	sr.Status = StatusSuccess
	sr.Result = out
	return sr
}

func toJSONValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func resultAsJSON(res *Result) any {
	return toJSONValue(res)
}

// SequenceHandler adapts the executor into the execute_sequence tool: the
// arguments are an inline workflow document.
func SequenceHandler(ex *Executor) tools.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, uia.ErrInvalidArgument("execute_sequence arguments: %v", err)
		}
		var doc Document
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, uia.ErrInvalidArgument("execute_sequence arguments: %v", err)
		}
		if doc.Name == "" {
			doc.Name = "inline-sequence"
		}
		inputs, _ := args["inputs"].(map[string]any)
		nested := &Executor{Tools: ex.Tools} // nested sequences do not persist state
		res, err := nested.Execute(ctx, &doc, Options{Inputs: inputs})
		if err != nil {
			return nil, err
		}
		return toJSONValue(res), nil
	}
}
