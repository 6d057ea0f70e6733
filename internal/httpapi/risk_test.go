package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/risk"
)

type fakeAccounts struct {
	accounts []domain.Account
	err      error
	asked    []int64
}

func (f *fakeAccounts) ListAccounts(_ context.Context, ids []int64) ([]domain.Account, error) {
	f.asked = ids
	return f.accounts, f.err
}

var riskDefs = staticDefinitions{{Type: externalapi.TypeRisk, Enabled: true, APIKey: "rk"}}

func postRisk(server *Server, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/risk", strings.NewReader(body))
	req.Header.Set(apiKeyHeader, key)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestRiskEndpoint(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	oldLogin := now.Add(-48 * time.Hour)
	recent := now.Add(-2 * time.Hour)

	accounts := &fakeAccounts{accounts: []domain.Account{
		{AccountID: 1, Phone: "+1", LastLoginAt: &oldLogin},
		{AccountID: 2, Phone: "+2", CreatedAt: &recent},
	}}
	server := newTestServer(Dependencies{
		Definitions: riskDefs,
		Accounts:    accounts,
		Risk:        risk.NewClassifier(func() time.Time { return now }),
	})

	rr := postRisk(server, "rk", `{"account_ids": [1, 2], "action": "exclude-risky"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []int64{1, 2}, accounts.asked)

	var out riskResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))

	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.RiskyCount)
	assert.Equal(t, 1, out.SafeCount)
	assert.True(t, out.HasRisky)
	assert.Contains(t, out.Message, "+2(imported 2.0h)")
	assert.Equal(t, []int64{1}, out.ProceedIDs)
	require.Len(t, out.Accounts, 2)
	assert.True(t, out.Accounts[1].IsEstimated)
}

func TestRiskEndpointErrors(t *testing.T) {
	classifier := risk.NewClassifier(nil)

	server := newTestServer(Dependencies{Definitions: riskDefs, Accounts: &fakeAccounts{}, Risk: classifier})
	assert.Equal(t, http.StatusUnauthorized, postRisk(server, "nope", `{"account_ids": [1]}`).Code)
	assert.Equal(t, http.StatusBadRequest, postRisk(server, "rk", `{"account_ids": []}`).Code)
	assert.Equal(t, http.StatusBadRequest, postRisk(server, "rk", `{"account_ids": [1], "action": "abort"}`).Code)

	server = newTestServer(Dependencies{Definitions: kickDefs, Accounts: &fakeAccounts{}, Risk: classifier})
	assert.Equal(t, http.StatusNotFound, postRisk(server, "secret", `{"account_ids": [1]}`).Code)

	server = newTestServer(Dependencies{Definitions: riskDefs, Accounts: &fakeAccounts{err: errors.New("down")}, Risk: classifier})
	assert.Equal(t, http.StatusInternalServerError, postRisk(server, "rk", `{"account_ids": [1]}`).Code)
}
