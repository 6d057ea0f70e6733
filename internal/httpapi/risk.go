package httpapi

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/auth"
	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/risk"
)

type riskRequest struct {
	AccountIDs []int64 `json:"account_ids"`
	Action     string  `json:"action"`
}

type riskAccount struct {
	AccountID      int64    `json:"account_id"`
	Phone          string   `json:"phone"`
	IsRisky        bool     `json:"is_risky"`
	IsEstimated    bool     `json:"is_estimated"`
	ReferenceHours *float64 `json:"reference_hours"`
	Message        string   `json:"message"`
	Detail         string   `json:"detail"`
}

type riskResponse struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Total      int           `json:"total"`
	RiskyCount int           `json:"risky_count"`
	SafeCount  int           `json:"safe_count"`
	HasRisky   bool          `json:"has_risky"`
	Accounts   []riskAccount `json:"accounts"`
	ProceedIDs []int64       `json:"proceed_ids"`
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request, logger *logrus.Entry) {
	def, result := auth.Authenticate(s.snapshot().Definitions(), externalapi.TypeRisk, r.Header.Get(apiKeyHeader))
	switch result {
	case auth.ResultNotFound:
		http.NotFound(w, r)
		return
	case auth.ResultUnauthorized:
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	logger = logger.WithField("api_id", def.ID)

	var req riskRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, riskResponse{Message: "request body is invalid", Accounts: []riskAccount{}, ProceedIDs: []int64{}}, logger)
		return
	}
	action, err := risk.ParseWarningAction(req.Action)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, riskResponse{Message: err.Error(), Accounts: []riskAccount{}, ProceedIDs: []int64{}}, logger)
		return
	}
	if len(req.AccountIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, riskResponse{Message: "account_ids is required", Accounts: []riskAccount{}, ProceedIDs: []int64{}}, logger)
		return
	}
	if s.deps.Accounts == nil || s.deps.Risk == nil {
		writeJSON(w, http.StatusInternalServerError, riskResponse{Message: "risk check is not available", Accounts: []riskAccount{}, ProceedIDs: []int64{}}, logger)
		return
	}

	accounts, err := s.deps.Accounts.ListAccounts(r.Context(), req.AccountIDs)
	if err != nil {
		logger.WithField("event", "risk_accounts_error").WithError(err).Error("failed to load accounts for risk check")
		writeJSON(w, http.StatusInternalServerError, riskResponse{Message: "failed to load accounts", Accounts: []riskAccount{}, ProceedIDs: []int64{}}, logger)
		return
	}

	batch := s.deps.Risk.AssessBatch(accounts)

	resp := riskResponse{
		Success:    true,
		Message:    batch.Summary(),
		Total:      batch.Total,
		RiskyCount: batch.RiskyCount,
		SafeCount:  batch.SafeCount,
		HasRisky:   batch.HasRisky,
		Accounts:   make([]riskAccount, 0, len(batch.All)),
		ProceedIDs: make([]int64, 0, len(batch.All)),
	}
	for _, entry := range batch.All {
		resp.Accounts = append(resp.Accounts, riskAccount{
			AccountID:      entry.Account.AccountID,
			Phone:          entry.Account.Phone,
			IsRisky:        entry.Assessment.IsRisky,
			IsEstimated:    entry.Assessment.IsEstimated,
			ReferenceHours: entry.Assessment.ReferenceHours,
			Message:        entry.Assessment.Message,
			Detail:         entry.Assessment.Detail,
		})
	}
	for _, account := range batch.Apply(action) {
		resp.ProceedIDs = append(resp.ProceedIDs, account.AccountID)
	}

	writeJSON(w, http.StatusOK, resp, logger)
}
