package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"bookstats/internal/models"
)

// Envelope is the JSON body of every API response
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Success bool   `json:"success"`
}

// MessageNoData is returned with an empty payload when a view has nothing to show
const MessageNoData = "no data"

func (s *Server) writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) success(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// writeError maps domain errors onto HTTP responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var integrity *models.DataIntegrityError
	switch {
	case errors.Is(err, models.ErrNoData):
		s.writeJSON(w, http.StatusOK, Envelope{Success: true, Message: MessageNoData})
	case errors.As(err, &integrity):
		s.logger.Warn("Duplicate keys in trend data",
			zap.String("path", r.URL.Path),
			zap.Strings("titles", integrity.Titles()))
		s.writeJSON(w, http.StatusConflict, Envelope{
			Error: integrity.Error(),
			Data:  map[string]any{"duplicates": duplicateDTOs(integrity.Keys)},
		})
	case errors.Is(err, models.ErrWeekNotFound):
		s.writeJSON(w, http.StatusNotFound, Envelope{Error: err.Error()})
	default:
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, Envelope{Error: "internal error"})
	}
}
