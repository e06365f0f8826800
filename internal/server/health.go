package server

import (
	"net/http"

	"github.com/n0madic/go-tgi-worker/internal/codec"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.ready() {
		status = "loading"
	}
	codec.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.Version.Name(),
	})
}
