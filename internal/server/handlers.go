package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/n0madic/go-tgi-worker/internal/codec"
	"github.com/n0madic/go-tgi-worker/internal/payload"
	"github.com/n0madic/go-tgi-worker/internal/schema"
)

// handleChatCompletions handles POST /v1/chat/completions: validate the
// body against the active version, forward the canonical form and relay
// the backend reply.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, w)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		codec.WriteOpenAIError(w, status, codec.ErrorTypeInvalidRequest, err.Error())
		return
	}

	p, err := s.Version.ParseJSON(body)
	if err != nil {
		if report, ok := payload.Rejected(err); ok {
			codec.WriteValidationError(w, report)
			return
		}
		codec.WriteOpenAIError(w, http.StatusBadRequest, codec.ErrorTypeInvalidRequest, err.Error())
		return
	}

	if !s.ready() {
		codec.WriteOpenAIError(w, http.StatusServiceUnavailable, codec.ErrorTypeUnavailable, "model is not loaded")
		return
	}

	wire, err := p.WireBytes()
	if err != nil {
		codec.WriteOpenAIError(w, http.StatusInternalServerError, codec.ErrorTypeUpstream, err.Error())
		return
	}

	if s.Config.Verbose {
		slog.Info("worker.chat.request", "version", p.Version(), "workload", p.Workload(), "stream", p.Stream(), "payload", p.String())
	}

	done := s.Monitor.Begin(p.Workload())
	resp, err := s.Backend.Forward(r.Context(), wire)
	if err != nil {
		done(false)
		codec.WriteOpenAIError(w, http.StatusBadGateway, codec.ErrorTypeUpstream, err.Error())
		return
	}
	done(resp.OK())

	if !resp.OK() {
		slog.Warn("worker.chat.backend_error", "status", resp.StatusCode, "error", resp.Err())
		w.WriteHeader(resp.StatusCode)
		return
	}

	// Event streams are relayed after the backend finishes; Forward buffers
	// the whole reply, so clients see every event in one write.
	if ct := resp.Headers.Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write(resp.Body)
		return
	}
	codec.WriteRawJSON(w, http.StatusOK, resp.Body)
}

// handlePing answers with the identity the worker reports to the autoscaler.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, map[string]string{
		"id":  s.Monitor.ID(),
		"url": s.Monitor.URL(),
	})
}

// handleAutoscaler returns the metrics window and starts a new one.
func (s *Server) handleAutoscaler(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, s.Monitor.Snapshot())
}

// handleSchema exports a version descriptor as an OpenAPI schema. The active
// version is used unless ?version= names another registered one.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	v := s.Version
	if name := strings.TrimSpace(r.URL.Query().Get("version")); name != "" && s.Registry != nil {
		var err error
		if v, err = s.Registry.Lookup(name); err != nil {
			codec.WriteOpenAIError(w, http.StatusNotFound, codec.ErrorTypeInvalidRequest, err.Error())
			return
		}
	}
	codec.WriteJSON(w, http.StatusOK, schema.OpenAPI(v.Schema))
}
