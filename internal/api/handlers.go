package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/demomirror/crawler/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleGetStatus implements get_status(run_id).
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, ok := s.backend.GetStatus(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetSummary implements get_summary(run_id).
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rep, ok := s.backend.GetSummary(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleListActive implements list_active().
func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.ListActive())
}

// handleCleanup implements cleanup(run_id).
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if !s.backend.Cleanup(runID) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamFrame is the {type, data} envelope subscribe() sends down the wire.
type streamFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func frameFor(ev model.Event) streamFrame {
	switch ev.Kind {
	case model.EventCoverageUpdate:
		return streamFrame{Type: string(model.EventCoverageUpdate), Data: ev.Coverage}
	case model.EventCrawlEvent:
		return streamFrame{Type: string(ev.CrawlEventType), Data: map[string]interface{}{
			"message": ev.Message,
			"detail":  ev.Detail,
		}}
	default:
		return streamFrame{Type: string(ev.Kind)}
	}
}

// handleSubscribe implements subscribe(run_id): a long-lived SSE stream of
// {type, data} frames, with a local heartbeat ticker keeping idle
// connections and intermediary proxies from timing the stream out.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	sub, ok := s.backend.Subscribe(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeFrame(w, flusher, frameFor(ev)); err != nil {
				return
			}
		case <-ticker.C:
			if err := writeFrame(w, flusher, streamFrame{Type: string(model.EventHeartbeat)}); err != nil {
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, frame streamFrame) error {
	body, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
