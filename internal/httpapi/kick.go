package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/auth"
	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/kick"
	"tg_moderation_panel/internal/logging"
)

type kickRequest struct {
	UserID       int64 `json:"user_id"`
	PermanentBan *bool `json:"permanent_ban"`
}

type kickSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

type kickResultItem struct {
	ChatID  string  `json:"chat_id"`
	Title   string  `json:"title"`
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

type kickResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Summary kickSummary      `json:"summary"`
	Results []kickResultItem `json:"results"`
	Notes   []string         `json:"notes,omitempty"`
}

func kickFailure(message string) kickResponse {
	return kickResponse{Message: message, Results: []kickResultItem{}}
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request, logger *logrus.Entry) {
	snapshot := s.snapshot()
	def, result := auth.Authenticate(snapshot.Definitions(), externalapi.TypeKick, r.Header.Get(apiKeyHeader))
	switch result {
	case auth.ResultNotFound:
		http.NotFound(w, r)
		return
	case auth.ResultUnauthorized:
		logger.WithField("event", "kick_unauthorized").Warn("kick request rejected")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	logger = logger.WithField("api_id", def.ID)

	var req kickRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, kickFailure("request body is invalid"), logger)
		return
	}

	if s.deps.Kicker == nil {
		writeJSON(w, http.StatusInternalServerError, kickFailure("kick is not available"), logger)
		return
	}

	report, err := s.deps.Kicker.Kick(r.Context(), def.Kick, kick.Request{
		UserID:       req.UserID,
		PermanentBan: req.PermanentBan,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "kick failed"
		switch {
		case errors.Is(err, kick.ErrInvalidUserID), errors.Is(err, kick.ErrEmptyScope):
			status, message = http.StatusBadRequest, err.Error()
		case errors.Is(err, kick.ErrCancelled):
			status, message = http.StatusServiceUnavailable, "request was cancelled"
		}

		logger.WithFields(logging.Fields{
			"event":   "kick_rejected",
			"user_id": req.UserID,
			"status":  status,
		}).WithError(err).Warn("kick request did not run")
		writeJSON(w, status, kickFailure(message), logger)
		return
	}

	writeJSON(w, http.StatusOK, toKickResponse(report), logger)
}

func toKickResponse(report kick.Report) kickResponse {
	results := make([]kickResultItem, 0, len(report.Items))
	for _, item := range report.Items {
		out := kickResultItem{
			ChatID:  strconv.FormatInt(item.ChatID, 10),
			Title:   item.Title,
			Success: item.Success,
		}
		if item.Error != "" {
			msg := item.Error
			out.Error = &msg
		}
		results = append(results, out)
	}

	return kickResponse{
		Success: true,
		Message: report.Message,
		Summary: kickSummary{
			Total:   report.Total,
			Success: report.Succeeded,
			Failed:  report.Failed,
		},
		Results: results,
		Notes:   report.Notes,
	}
}
