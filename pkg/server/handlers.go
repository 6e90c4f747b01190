// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/research"
	"github.com/kadirpekel/dossier/pkg/store"
	"github.com/kadirpekel/dossier/pkg/toolset"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

const maxBodyBytes = 1 << 20

// runRequest is the body of the research and chat endpoints. Subject is a
// corporate registration number or a DART corp code.
type runRequest struct {
	Subject  string `json:"subject"`
	Workflow string `json:"workflow"`
	Message  string `json:"message,omitempty"`
}

type pinRequest struct {
	Subject string `json:"subject"`
}

type decisionRequest struct {
	Value string `json:"value"`
}

// wireEvent is research.Event with its error flattened for JSON.
type wireEvent struct {
	research.Event
	Error string `json:"error,omitempty"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	_, subject, wf, ok := s.decodeRun(w, r)
	if !ok {
		return
	}
	slog.Info("Research requested", "subject", subject.Key(), "workflow", wf)
	s.stream(w, s.opts.Service.Research(r.Context(), wf, subject))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, subject, wf, ok := s.decodeRun(w, r)
	if !ok {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, research.ErrEmptyMessage.Error())
		return
	}
	s.stream(w, s.opts.Service.Chat(r.Context(), wf, subject, req.Message))
}

// decodeRun parses a run request, resolves its subject and rejects pairs
// that are already running.
func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (runRequest, company.Company, workflow.ID, bool) {
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, company.Company{}, "", false
	}

	wf, err := workflow.Parse(req.Workflow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, company.Company{}, "", false
	}

	subject, err := s.resolveSubject(r.Context(), req.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown subject %q", req.Subject))
		return req, company.Company{}, "", false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return req, company.Company{}, "", false
	}

	if s.opts.Service.Running(subject.Key(), wf) {
		writeError(w, http.StatusConflict, research.ErrAlreadyRunning.Error())
		return req, company.Company{}, "", false
	}
	return req, *subject, wf, true
}

func (s *Server) resolveSubject(ctx context.Context, key string) (*company.Company, error) {
	if key == "" {
		return nil, store.ErrNotFound
	}
	companies := s.opts.Service.Store()
	c, err := companies.GetCompany(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return companies.GetCompanyByCorpCode(ctx, key)
	}
	return c, err
}

// stream writes seq as server-sent events until it ends or the client goes
// away.
func (s *Server) stream(w http.ResponseWriter, seq iter.Seq[research.Event]) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Error("Streaming not supported by response writer", "error", err)
		return
	}

	for ev := range seq {
		if err := writeEvent(w, ev); err != nil {
			slog.Debug("SSE client gone", "error", err)
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, ev research.Event) error {
	out := wireEvent{Event: ev}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}

func (s *Server) handleListDecisions(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Decisions == nil {
		writeError(w, http.StatusNotImplemented, "decisions are not served")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": s.opts.Decisions.Pending()})
}

func (s *Server) handleProvideDecision(w http.ResponseWriter, r *http.Request) {
	if s.opts.Decisions == nil {
		writeError(w, http.StatusNotImplemented, "decisions are not served")
		return
	}
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	err := s.opts.Decisions.Provide(id, req.Value)
	switch {
	case errors.Is(err, hitl.ErrNotWaiting):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "value": req.Value})
	}
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	wf, err := workflow.Parse(chi.URLParam(r, "workflow"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sections, err := s.opts.Service.Sections(r.Context(), subject, wf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sections == nil {
		sections = []store.SectionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject":  subject,
		"workflow": wf,
		"running":  s.opts.Service.Running(subject, wf),
		"sections": sections,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	wf, err := workflow.Parse(chi.URLParam(r, "workflow"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.opts.Service.Reset(r.Context(), subject, wf)
	switch {
	case errors.Is(err, research.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleClearCache drops the whole cache, or with ?scope= the entries of one
// subject (every identifier of a known company) or of a raw key fragment.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.opts.Cache == nil {
		writeError(w, http.StatusNotImplemented, "cache is not configured")
		return
	}
	ctx := r.Context()

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		if err := s.opts.Cache.Clear(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Info("Cache cleared")
		writeJSON(w, http.StatusOK, map[string]any{"scope": "all"})
		return
	}

	var (
		n   int
		err error
	)
	subject, lookupErr := s.resolveSubject(ctx, scope)
	if lookupErr == nil {
		n, err = toolset.ClearSubject(ctx, s.opts.Cache, *subject)
	} else {
		n, err = s.opts.Cache.ClearScope(ctx, scope)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scope": scope, "entries": n})
}

func (s *Server) handleListPins(w http.ResponseWriter, r *http.Request) {
	pins, err := s.opts.Service.Store().ListPins(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pins == nil {
		pins = []store.Pin{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pins": pins})
}

// handleAddPin pins a registered company. The pin keeps a snapshot of the
// company as it was when pinned.
func (s *Server) handleAddPin(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()

	subject, err := s.resolveSubject(ctx, req.Subject)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown company %q", req.Subject))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id, err := s.opts.Service.Store().AddPin(ctx, *subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("Company pinned", "subject", subject.Key(), "pin", id)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "company": subject})
}

// handleRemovePin accepts a registration number or a DART corp code of a
// known company. Unknown keys are removed as registration numbers.
func (s *Server) handleRemovePin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "subject")
	if subject, err := s.resolveSubject(ctx, key); err == nil {
		key = subject.CorpRegNo
	}

	if err := s.opts.Service.Store().RemovePin(ctx, key); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminStatus reports registry statistics and credential statuses.
// With ?ping=true the data providers are checked too.
func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Admin == nil {
		writeError(w, http.StatusNotImplemented, "admin diagnostics are not configured")
		return
	}

	var ping bool
	if v := r.URL.Query().Get("ping"); v != "" {
		var err error
		if ping, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ping value %q", v))
			return
		}
	}

	report, err := s.opts.Admin.Status(r.Context(), ping)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
