package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/config"
)

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	cfg        config.TwilioConfig
	logger     *zap.Logger
	httpClient *http.Client
}

// NewTwilioSender creates a Twilio-backed SMSSender.
func NewTwilioSender(cfg config.TwilioConfig, logger *zap.Logger) *TwilioSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &TwilioSender{
		cfg:        cfg,
		logger:     logger.Named("twilio-sender"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ SMSSender = (*TwilioSender)(nil)

// Configured reports whether account credentials and a sender number exist.
func (s *TwilioSender) Configured() bool {
	return s.cfg.AccountSID != "" && s.cfg.AuthToken != "" && s.cfg.FromNumber != ""
}

type twilioMessage struct {
	SID          string  `json:"sid,omitempty"`
	Status       string  `json:"status,omitempty"`
	ErrorCode    *int    `json:"error_code,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// SendSMS delivers one text message. Missing credentials are a normal
// "not sent" outcome, not an error.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (bool, error) {
	if !s.Configured() {
		s.logger.Debug("Twilio not configured, skipping SMS", zap.String("to", to))
		return false, nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.cfg.BaseURL, s.cfg.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read twilio response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr twilioAPIError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return false, fmt.Errorf("twilio http %d: %s (code=%d)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return false, fmt.Errorf("twilio http %d", resp.StatusCode)
	}

	var msg twilioMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return false, fmt.Errorf("failed to decode twilio response: %w", err)
	}

	s.logger.Debug("SMS accepted by provider",
		zap.String("sid", msg.SID),
		zap.String("status", msg.Status))

	return true, nil
}
