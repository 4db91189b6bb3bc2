package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/aliasgraph/internal/closure"
	"github.com/leapstack-labs/aliasgraph/internal/engine"
	"github.com/leapstack-labs/aliasgraph/internal/state"
	"github.com/leapstack-labs/aliasgraph/internal/validate"
	"github.com/leapstack-labs/aliasgraph/pkg/tsort"
	"github.com/leapstack-labs/aliasgraph/pkg/types"
	"github.com/starfederation/datastar-go/datastar"
)

const defaultRunLimit = 20

// CheckResponse is the body of /api/check and the signal pushed on /api/events.
type CheckResponse struct {
	RunID string `json:"run_id,omitempty"`
	*validate.Report
}

// OrderResponse is the body of /api/order.
type OrderResponse struct {
	Order []types.TypeName `json:"order,omitempty"`
	Cycle []types.TypeName `json:"cycle,omitempty"`
	Error string           `json:"error,omitempty"`
}

// ComponentResponse is one strongly connected component.
type ComponentResponse struct {
	Aliases []types.TypeName `json:"aliases"`
	Cyclic  bool             `json:"cyclic"`
}

// FileResponse is one declaration file in the file graph.
type FileResponse struct {
	Path      string   `json:"path"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// FilesResponse is the body of /api/files.
type FilesResponse struct {
	Files  []FileResponse `json:"files"`
	Levels [][]string     `json:"levels"`
	Cycles [][]string     `json:"cycles,omitempty"`
}

// RunResponse is the body of /api/runs/{id}.
type RunResponse struct {
	*state.Run
	Diagnostics []state.DiagnosticRecord `json:"diagnostics"`
}

// ReloadResponse is the body of /api/reload.
type ReloadResponse struct {
	Files         int    `json:"files"`
	Aliases       int    `json:"aliases"`
	ModuleAliases int    `json:"module_aliases"`
	FileEdges     int    `json:"file_edges"`
	Duration      string `json:"duration"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) check(r *http.Request) (*CheckResponse, error) {
	result, err := s.engine.Check(r.Context())
	if err != nil {
		return nil, err
	}
	resp := &CheckResponse{Report: result.Report}
	if result.Run != nil {
		resp.RunID = result.Run.ID
	}
	return resp, nil
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	resp, err := s.check(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeps(w http.ResponseWriter, r *http.Request) {
	alias := r.URL.Query().Get("alias")
	if alias == "" {
		writeError(w, http.StatusBadRequest, errors.New("alias is required"))
		return
	}
	direct, _ := strconv.ParseBool(r.URL.Query().Get("direct"))

	info, err := s.engine.Dependencies(alias, direct)
	switch {
	case errors.Is(err, closure.ErrUnknownEntity):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleOrder(w http.ResponseWriter, _ *http.Request) {
	order, err := s.engine.Order()
	if err != nil {
		if cycle, ok := tsort.CycleOf[types.TypeName](err); ok {
			writeJSON(w, http.StatusConflict, OrderResponse{Cycle: cycle, Error: err.Error()})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResponse{Order: order})
}

func (s *Server) handleSCC(w http.ResponseWriter, r *http.Request) {
	comps, err := s.engine.Components()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	cyclesOnly, _ := strconv.ParseBool(r.URL.Query().Get("cycles_only"))

	out := make([]ComponentResponse, 0, len(comps))
	for _, c := range comps {
		if cyclesOnly && !c.Cyclic {
			continue
		}
		out = append(out, ComponentResponse{Aliases: c.Nodes, Cyclic: c.Cyclic})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFiles(w http.ResponseWriter, _ *http.Request) {
	g := s.engine.GetGraph()
	resp := FilesResponse{
		Files:  []FileResponse{},
		Levels: g.GetExecutionLevels(),
		Cycles: g.Cycles(),
	}
	for _, level := range resp.Levels {
		for _, path := range level {
			resp.Files = append(resp.Files, FileResponse{
				Path:      path,
				DependsOn: nonNil(g.GetParents(path)),
				UsedBy:    nonNil(g.GetChildren(path)),
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := s.engine.History(r.Context(), limit)
	switch {
	case errors.Is(err, state.ErrNotOpen):
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		if runs == nil {
			runs = []*state.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	store := s.engine.GetStateStore()
	if store == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}

	run, err := store.GetRun(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, state.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	diags, err := store.GetDiagnostics(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if diags == nil {
		diags = []state.DiagnosticRecord{}
	}
	writeJSON(w, http.StatusOK, RunResponse{Run: run, Diagnostics: diags})
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	result, err := s.engine.Discover()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.logger.Debug("reloaded over http", "summary", result.Summary())
	s.notifier.Broadcast()
	writeJSON(w, http.StatusOK, toReloadResponse(result))
}

func toReloadResponse(r *engine.DiscoveryResult) ReloadResponse {
	return ReloadResponse{
		Files:         r.Files,
		Aliases:       r.Aliases,
		ModuleAliases: r.ModuleAliases,
		FileEdges:     r.FileEdges,
		Duration:      r.Duration.String(),
	}
}

// handleEvents is a long-lived SSE endpoint. It patches the "check" signal
// once on connect and again after every broadcast. These checks are not
// recorded.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	sse := datastar.NewSSE(w, r)
	if err := s.sendCheck(sse, r); err != nil {
		_ = sse.ConsoleError(err)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			if err := s.sendCheck(sse, r); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// sendCheck pushes an unrecorded report; only /api/check adds to history.
func (s *Server) sendCheck(sse *datastar.ServerSentEventGenerator, r *http.Request) error {
	report, err := s.engine.Report(r.Context())
	if err != nil {
		return err
	}
	return sse.MarshalAndPatchSignals(map[string]any{"check": &CheckResponse{Report: report}})
}
