package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/recorder"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/workflow"
)

// validRunID matches ULIDs, UUIDs, and other safe identifiers.
// Only alphanumeric, dashes, and underscores are allowed.
var validRunID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,127}$`)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  len(s.config.Registry.Names()),
		"runs":   len(s.runs.List()),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.config.Registry.Definitions()})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req CallToolRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	out, err := s.config.Registry.Execute(r.Context(), name, req.Arguments)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool": name, "result": out})
}

func (s *Server) handleSubmitWorkflow(w http.ResponseWriter, r *http.Request) {
	var req SubmitWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.WorkflowYAML == "" && req.WorkflowPath == "" {
		writeError(w, http.StatusBadRequest, "workflow_yaml or workflow_path is required")
		return
	}
	if req.WorkflowYAML != "" && req.WorkflowPath != "" {
		writeError(w, http.StatusBadRequest, "provide workflow_yaml or workflow_path, not both")
		return
	}

	var (
		doc *workflow.Document
		err error
	)
	if req.WorkflowYAML != "" {
		doc, err = workflow.Parse([]byte(req.WorkflowYAML))
	} else {
		doc, err = workflow.Load(req.WorkflowPath)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := doc.Validate(s.config.Registry); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = ulid.Make().String()
	}
	if !validRunID.MatchString(runID) {
		writeError(w, http.StatusBadRequest, "run_id must be alphanumeric with dashes/underscores, 1-128 chars")
		return
	}

	feed := newRunFeed()
	ctx, cancel := context.WithCancelCause(s.baseCtx)
	rs := &RunState{
		RunID:     runID,
		Workflow:  doc.Name,
		Feed:      feed,
		Cancel:    cancel,
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.Register(runID, rs); err != nil {
		cancel(nil)
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	stopOnError := true
	if req.StopOnError != nil {
		stopOnError = *req.StopOnError
	}

	// Launch the run in a background goroutine; progress streams over SSE.
	go func() {
		defer feed.Finish()
		ex := s.newExecutor(feed.Append)
		res, execErr := ex.Execute(ctx, doc, workflow.Options{
			Inputs:        req.Inputs,
			StartFromStep: req.StartFromStep,
			EndAtStep:     req.EndAtStep,
			StopOnError:   stopOnError,
		})
		rs.SetResult(res, execErr)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "workflow": doc.Name})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.runs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rs.Status())
}

func (s *Server) handleWorkflowEvents(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.runs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	WriteSSE(w, r, rs.Feed)
}

func (s *Server) handleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.runs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rs.Cancel != nil {
		rs.Cancel(fmt.Errorf("cancelled via API"))
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": rs.RunID, "cancelled": true})
}

func (s *Server) handleRecorderStart(w http.ResponseWriter, r *http.Request) {
	var req RecorderStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	cfg := recorder.DefaultConfig()
	switch strings.ToLower(req.Performance) {
	case "", "normal":
	case "balanced":
		cfg = recorder.BalancedConfig()
	case "low_energy", "lowenergy":
		cfg = recorder.LowEnergyConfig()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown performance preset %q", req.Performance))
		return
	}
	cfg.EnableHighlighting = req.Highlight

	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.rec != nil {
		writeError(w, http.StatusConflict, "a recording is already active")
		return
	}
	rec := recorder.New(req.Name, cfg, s.config.Engine)
	if src := s.config.SimSource; src != nil {
		rec.AttachSource(src)
	}
	if err := rec.Start(s.baseCtx); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.rec = rec
	writeJSON(w, http.StatusOK, map[string]any{"session_id": rec.SessionID(), "name": req.Name})
}

func (s *Server) handleRecorderStop(w http.ResponseWriter, r *http.Request) {
	var req RecorderStopRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	s.recMu.Lock()
	rec := s.rec
	s.rec = nil
	s.recMu.Unlock()
	if rec == nil {
		writeError(w, http.StatusConflict, "no recording is active")
		return
	}
	if err := rec.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"session_id": rec.SessionID(),
		"events":     rec.Workflow().Len(),
	}
	if req.SavePath != "" {
		if err := rec.Save(req.SavePath); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["saved_to"] = req.SavePath
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecorderEvents(w http.ResponseWriter, r *http.Request) {
	s.recMu.Lock()
	rec := s.rec
	s.recMu.Unlock()
	if rec == nil {
		writeError(w, http.StatusConflict, "no recording is active")
		return
	}
	sub := rec.EventStream()
	defer sub.Close()
	WriteRecorderSSE(w, r, sub)
}

func statusForError(err error) int {
	switch uia.KindOf(err) {
	case uia.KindInvalidArgument, uia.KindInvalidSelector:
		return http.StatusBadRequest
	case uia.KindElementNotFound:
		return http.StatusNotFound
	case uia.KindTimeout:
		return http.StatusGatewayTimeout
	case uia.KindMissingStartState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
