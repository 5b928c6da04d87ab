package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coderoom/internal/language"
	"coderoom/internal/review"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"rooms": s.hub.RoomCount()})
}

type roomResponse struct {
	ID       string                       `json:"id"`
	Code     map[language.Language]string `json:"codeByLanguage"`
	Language language.Language            `json:"activeLanguage"`
	Members  int                          `json:"members"`
}

// handleGetRoom is a read-only debug view; unlike a join it does not create
// the room.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, members, ok := s.hub.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{
		ID:       id,
		Code:     snap.Code,
		Language: snap.Active,
		Members:  members,
	})
}

type executeRequest struct {
	Code     string            `json:"code"`
	Language language.Language `json:"language"`
}

// handleExecute runs a snippet through the execution host. The result goes
// back to the caller only; nothing is broadcast to any room.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result := s.host.Run(r.Context(), req.Code, req.Language)
	writeJSON(w, http.StatusOK, result)
}

type reviewRequest struct {
	Action   review.Action     `json:"action"`
	Code     string            `json:"code"`
	Language language.Language `json:"language"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if s.reviewer == nil {
		writeError(w, http.StatusNotImplemented, "review is disabled: no API key configured")
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := s.reviewer.Review(r.Context(), req.Action, req.Code, req.Language)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}
