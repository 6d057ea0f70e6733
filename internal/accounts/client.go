// Package accounts talks to the account gateway that drives user-session
// accounts, which the Bot API cannot do.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/kick"
	"tg_moderation_panel/internal/logging"
)

const maxResponseBytes = 1 << 20

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the account gateway over HTTP.
type Client struct {
	baseURL string
	http    httpDoer
	logger  *logrus.Entry
}

// NewClient constructs a Client for baseURL. A nil doer uses an http.Client
// with timeout.
func NewClient(baseURL string, doer httpDoer, timeout time.Duration, logger *logrus.Entry) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("account gateway url is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: baseURL, http: doer, logger: logger}, nil
}

type joinRequest struct {
	Link string `json:"link"`
}

type joinResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Chat    *struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"chat"`
}

// JoinChat asks the gateway to have accountID join through link. A gateway
// that answers with success=false is reported in the result, not as an error.
func (c *Client) JoinChat(ctx context.Context, accountID int64, link string) (kick.JoinResult, error) {
	if c == nil || c.http == nil {
		return kick.JoinResult{}, errors.New("account client is not initialized")
	}
	if ctx == nil {
		return kick.JoinResult{}, errors.New("context is required")
	}
	if accountID <= 0 {
		return kick.JoinResult{}, errors.New("account id must be positive")
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return kick.JoinResult{}, errors.New("invite link is required")
	}

	body, err := json.Marshal(joinRequest{Link: link})
	if err != nil {
		return kick.JoinResult{}, fmt.Errorf("encode join request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/accounts/%d/join", c.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return kick.JoinResult{}, fmt.Errorf("build join request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return kick.JoinResult{}, fmt.Errorf("call account gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return kick.JoinResult{}, fmt.Errorf("read account gateway response: %w", err)
	}

	var decoded joinResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return kick.JoinResult{}, fmt.Errorf("account gateway returned %s", resp.Status)
		}
		return kick.JoinResult{}, fmt.Errorf("decode account gateway response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest && decoded.Error == "" {
		return kick.JoinResult{}, fmt.Errorf("account gateway returned %s", resp.Status)
	}

	result := kick.JoinResult{Success: decoded.Success, Error: decoded.Error}
	if decoded.Chat != nil {
		result.ChatID = decoded.Chat.ID
		result.ChatTitle = decoded.Chat.Title
	}

	c.logger.WithFields(logging.Fields{
		"event":      "account_join",
		"account_id": accountID,
		"success":    result.Success,
		"status":     resp.StatusCode,
	}).Info("account gateway join finished")

	return result, nil
}
