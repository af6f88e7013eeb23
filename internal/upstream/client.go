// Package upstream は外部サービス（気象API、SMSプロバイダ、予測サービス）呼び出しの共通処理を提供する。
// ステータスコードの分類、再試行、応答サイズ制限、メトリクス記録を含む。
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Outcome はHTTPステータスコードに基づく呼び出し結果の分類。
type Outcome int

const (
	// OutcomeOK は2xx。
	OutcomeOK Outcome = iota
	// OutcomeRetry は再試行で回復しうるステータス（429/5xx）。
	OutcomeRetry
	// OutcomeFail は再試行しても結果が変わらないステータス（それ以外の4xx等）。
	OutcomeFail
)

const (
	defaultMaxResponseSize = 1 << 20
	defaultMaxAttempts     = 3
	defaultBackoff         = 200 * time.Millisecond
	userAgent              = "agrisense/1.0"
)

// ErrResponseTooLarge は応答本文がサイズ上限を超えたことを表す。
var ErrResponseTooLarge = errors.New("upstream response exceeds size limit")

// StatusError は上流サービスが2xx以外を返したことを表す。
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// ClassifyStatus はHTTPステータスコードを呼び出し結果に分類する。
func ClassifyStatus(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return OutcomeOK
	case statusCode == http.StatusTooManyRequests:
		return OutcomeRetry
	case statusCode >= 500:
		return OutcomeRetry
	default:
		return OutcomeFail
	}
}

// Backoff は試行回数に応じた再試行までの待ち時間を返す。base から2倍ずつ増加する。
func Backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// Recorder は外部呼び出しの結果を記録するインターフェース。
type Recorder interface {
	RecordOutboundCall(service string, duration time.Duration, err error)
}

// Client は1つの上流サービスに対する呼び出しクライアント。
type Client struct {
	service     string
	httpClient  *http.Client
	logger      *slog.Logger
	recorder    Recorder
	maxSize     int64
	maxAttempts int
	backoff     time.Duration
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithRecorder はメトリクス記録先を設定する。
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithMaxResponseSize は応答本文の上限バイト数を設定する。
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithRetry は最大試行回数と初回の待ち時間を設定する。attempts=1で再試行しない。
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		c.backoff = backoff
	}
}

// NewClient はClientを生成する。serviceはログとメトリクスのラベルに使われる。
func NewClient(service string, httpClient *http.Client, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		service:     service,
		httpClient:  httpClient,
		logger:      logger,
		maxSize:     defaultMaxResponseSize,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service はサービス名を返す。
func (c *Client) Service() string {
	return c.service
}

// Do はnewRequestで生成したリクエストを送信し、2xxの応答本文を返す。
// 429/5xxと通信エラーは最大試行回数まで再試行する。本文を持つリクエストは試行ごとに生成し直す。
func (c *Client) Do(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx, newRequest)
	if c.recorder != nil {
		c.recorder.RecordOutboundCall(c.service, time.Since(start), err)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(Backoff(c.backoff, attempt-1)):
			}
		}

		req, err := newRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s request: %w", c.service, err)
		}
		req.Header.Set("User-Agent", userAgent)

		body, outcome, err := c.roundTrip(req)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if outcome == OutcomeFail || ctx.Err() != nil {
			break
		}
		c.logger.Warn("upstream call failed, retrying",
			slog.String("service", c.service),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	c.logger.Error("upstream call failed",
		slog.String("service", c.service),
		slog.String("error", lastErr.Error()),
	)
	return nil, lastErr
}

// roundTrip は1回分のリクエストを送信する。
func (c *Client) roundTrip(req *http.Request) ([]byte, Outcome, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, OutcomeRetry, fmt.Errorf("%s request failed: %w", c.service, err)
	}
	defer resp.Body.Close()

	outcome := ClassifyStatus(resp.StatusCode)
	if outcome != OutcomeOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxSize))
		return nil, outcome, &StatusError{Service: c.service, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, OutcomeRetry, fmt.Errorf("failed to read %s response: %w", c.service, err)
	}
	if int64(len(body)) > c.maxSize {
		return nil, OutcomeFail, ErrResponseTooLarge
	}
	return body, OutcomeOK, nil
}
