package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/protocorpus/internal/corpus"
	"github.com/dgallion1/protocorpus/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

type runRequest struct {
	Key    string `json:"key"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Strict bool   `json:"strict"`
}

// handleRemoveAttribute starts a run that strips one attribute from every
// content element of the listed documents.
func (s *Server) handleRemoveAttribute(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		jsonError(w, "key is required", http.StatusBadRequest)
		return
	}
	s.startRun(w, r, req, pipeline.RemoveAttributeTask{Key: req.Key, Walker: s.walker})
}

// handleCheck starts a read-only run that counts unrecognized elements.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	s.startRun(w, r, req, pipeline.CheckTask{Walker: s.walker, Strict: req.Strict})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request, req runRequest, task pipeline.Task) {
	paths, err := s.indexer.List(s.cfg.CorpusRoot, corpus.Years(req.Start, req.End))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The run outlives the request.
	run, err := s.orchestrator.StartRun(context.WithoutCancel(r.Context()), task, paths)
	if err != nil {
		if errors.Is(err, pipeline.ErrStopped) {
			jsonError(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.log.Error("start run", "task", task.Name(), "error", err)
		jsonError(w, "failed to start run", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id":     run.ID,
		"status_url": "/api/runs/" + run.ID,
	})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	run := s.orchestrator.GetRun(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	resp := struct {
		pipeline.RunSnapshot
		Jobs []pipeline.JobSnapshot `json:"jobs,omitempty"`
	}{RunSnapshot: run.Snapshot()}
	if r.URL.Query().Get("jobs") == "true" {
		for _, j := range run.Jobs() {
			resp.Jobs = append(resp.Jobs, j.Snapshot())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
