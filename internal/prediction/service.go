// Package prediction は外部の予測サービスから作物ストレス予測を取得し、保存する。
package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/agrisense/internal/model"
	"github.com/hitoshi/agrisense/internal/repository"
	"github.com/hitoshi/agrisense/internal/upstream"
)

// FarmLookup は圃場の存在確認を行うインターフェース。
type FarmLookup interface {
	Get(ctx context.Context, id string) (*model.Farm, error)
}

// predictResponse は予測サービスの /predict 応答。
type predictResponse struct {
	StressIndex    *float64        `json:"stressIndex"`
	RiskCategory   string          `json:"riskCategory"`
	Confidence     float64         `json:"confidence"`
	DaysToCritical int             `json:"daysToCritical"`
	Recommendation string          `json:"recommendation"`
	Forecast       json.RawMessage `json:"forecast"`
}

// Service は予測サービスのプロキシ。
type Service struct {
	caller      *upstream.Client
	baseURL     string
	predictions repository.PredictionRepository
	farms       FarmLookup
	logger      *slog.Logger
}

// NewService はServiceを生成する。callerがnilまたはbaseURLが空の場合、
// 予測サービスへの問い合わせは UPSTREAM_NOT_CONFIGURED になる。
func NewService(
	caller *upstream.Client,
	baseURL string,
	predictions repository.PredictionRepository,
	farms FarmLookup,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		caller:      caller,
		baseURL:     strings.TrimRight(baseURL, "/"),
		predictions: predictions,
		farms:       farms,
		logger:      logger,
	}
}

// Configured は予測サービスが設定済みかを返す。
func (s *Service) Configured() bool {
	return s.caller != nil && s.baseURL != ""
}

// Current は圃場の最新予測を取得して保存する。
// 予測サービスの呼び出しに失敗した場合、保存済みの最新予測があればそれを返す。
func (s *Service) Current(ctx context.Context, farmID string) (*model.Prediction, error) {
	if _, err := s.farms.Get(ctx, farmID); err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, model.NewUpstreamNotConfiguredError("prediction")
	}

	p, err := s.Refresh(ctx, farmID)
	if err == nil {
		return p, nil
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return nil, err
	}

	stored, findErr := s.predictions.FindLatestByFarm(ctx, farmID)
	if findErr != nil {
		return nil, fmt.Errorf("保存済み予測の取得に失敗しました: %w", findErr)
	}
	if stored == nil {
		return nil, err
	}
	s.logger.Warn("予測サービスに接続できないため保存済みの予測を返します",
		slog.String("farm_id", farmID),
		slog.Int64("prediction_id", stored.ID),
	)
	return stored, nil
}

// Refresh は予測サービスに問い合わせ、結果を保存する。圃場の存在確認は行わない。
func (s *Service) Refresh(ctx context.Context, farmID string) (*model.Prediction, error) {
	if !s.Configured() {
		return nil, model.NewUpstreamNotConfiguredError("prediction")
	}

	body, err := s.get(ctx, "predict", farmID)
	if err != nil {
		return nil, err
	}

	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.StressIndex == nil {
		s.logger.Error("予測サービスの応答を解釈できません", slog.String("farm_id", farmID))
		return nil, model.NewUpstreamFailedError("prediction")
	}

	p := &model.Prediction{
		FarmID:         farmID,
		StressIndex:    *resp.StressIndex,
		RiskCategory:   strings.ToUpper(resp.RiskCategory),
		Confidence:     resp.Confidence,
		DaysToCritical: resp.DaysToCritical,
		Recommendation: resp.Recommendation,
	}
	if len(resp.Forecast) > 0 && string(resp.Forecast) != "null" {
		p.Forecast = resp.Forecast
	}

	if err := s.predictions.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("予測の保存に失敗しました: %w", err)
	}
	return p, nil
}

// Simulate は圃場のシミュレーション結果を予測サービスから取得し、そのまま返す。
func (s *Service) Simulate(ctx context.Context, farmID string) (json.RawMessage, error) {
	if _, err := s.farms.Get(ctx, farmID); err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, model.NewUpstreamNotConfiguredError("prediction")
	}

	body, err := s.get(ctx, "simulate", farmID)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, model.NewUpstreamFailedError("prediction")
	}
	return json.RawMessage(body), nil
}

func (s *Service) get(ctx context.Context, action, farmID string) ([]byte, error) {
	target := s.baseURL + "/" + action + "/" + url.PathEscape(farmID)

	body, err := s.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, model.NewUpstreamFailedError("prediction")
	}
	return body, nil
}
