package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/agrisense/internal/upstream"
)

// defaultTwilioBaseURL はTwilio REST APIのベースURL。
const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig はTwilioクライアントの設定。
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string // テスト用にエンドポイントを差し替え可能
}

// Configured はSMS送信に必要な値がそろっているかを返す。
func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// TwilioClient はTwilioのMessages APIでSMSを送信するクライアント。
type TwilioClient struct {
	caller *upstream.Client
	cfg    TwilioConfig
}

// NewTwilioClient はTwilioClientを生成する。
// callerには再試行なし（WithRetry(1, 0)）のクライアントを渡すこと。POSTの再送はSMSの二重送信になる。
func NewTwilioClient(caller *upstream.Client, cfg TwilioConfig) *TwilioClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &TwilioClient{caller: caller, cfg: cfg}
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Send はSMSを送信し、プロバイダが採番したメッセージIDを返す。
func (c *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountSID))
	form := url.Values{
		"To":   {to},
		"From": {c.cfg.From},
		"Body": {body},
	}

	raw, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var msg twilioMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("failed to decode twilio response: %w", err)
	}
	if msg.SID == "" {
		return "", fmt.Errorf("twilio response has no message sid")
	}
	return msg.SID, nil
}
