package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/history"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// maxBodyBytes bounds command argument payloads.
const maxBodyBytes = 1 << 20

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status       string  `json:"status"`
	Version      string  `json:"version"`
	Uptime       float64 `json:"uptime"`
	PluginsReady int     `json:"plugins_ready"`
	Commands     int     `json:"commands"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := 0
	for _, p := range s.registry.Plugins() {
		if p.State == plugin.StateReady {
			ready++
		}
	}
	_ = writeJSONPretty(w, r, http.StatusOK, HealthResponse{
		Status:       "ok",
		Version:      s.registry.HostVersion(),
		Uptime:       time.Since(s.started).Seconds(),
		PluginsReady: ready,
		Commands:     len(s.registry.Commands()),
	})
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	_ = writeJSONPretty(w, r, http.StatusOK, s.registry.Plugins())
}

func (s *Server) handlePlugin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, ok := s.registry.Plugin(id)
	if !ok {
		_ = writeJSON(w, http.StatusNotFound, ferrors.HTTPErrorResponse{Error: "plugin not found: " + id})
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, info)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	_ = writeJSONPretty(w, r, http.StatusOK, s.registry.Commands())
}

// handleDispatch runs a command with the JSON object body as its arguments.
// The status code follows the result kind; the body is always the result.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	args, err := decodeArgs(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	res := s.registry.Dispatch(r.Context(), name, args)
	_ = writeJSONPretty(w, r, ferrors.StatusCodeForKind(res.Kind), res)
}

func decodeArgs(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, ferrors.WrapError(err, ferrors.KindInvalidOptionType, "request body must be a JSON object").Build()
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errors.WriteErrorResponse(w, r, ferrors.HostConfigError("history is disabled").Build())
		return
	}
	q := history.Query{Command: r.URL.Query().Get("command")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errors.WriteErrorResponse(w, r, ferrors.NewError(ferrors.KindInvalidOptionType, "limit must be a non-negative integer").Build())
			return
		}
		q.Limit = n
	}
	entries, err := s.history.List(r.Context(), q)
	if err != nil {
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, entries)
}
