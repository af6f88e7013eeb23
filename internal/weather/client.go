// Package weather は圃場の気象情報と土壌情報を外部気象APIから取得する。
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/agrisense/internal/model"
	"github.com/hitoshi/agrisense/internal/upstream"
)

// Config は気象APIの接続設定。
type Config struct {
	BaseURL string
	APIKey  string
	PolyID  string
}

// Configured は気象APIの呼び出しに必要な設定が揃っているかを返す。
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// FarmLookup は圃場の座標を取得するインターフェース。
type FarmLookup interface {
	Get(ctx context.Context, id string) (*model.Farm, error)
}

// Client は気象APIのクライアント。応答JSONは加工せずに返す。
type Client struct {
	caller *upstream.Client
	farms  FarmLookup
	cfg    Config
	logger *slog.Logger
}

// NewClient はClientを生成する。callerがnilまたは設定が不足している場合、
// 全ての呼び出しは UPSTREAM_NOT_CONFIGURED になる。
func NewClient(caller *upstream.Client, farms FarmLookup, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{caller: caller, farms: farms, cfg: cfg, logger: logger}
}

// WeatherForFarm は圃場の緯度経度で現在の気象情報を取得する。
func (c *Client) WeatherForFarm(ctx context.Context, farmID string) (json.RawMessage, error) {
	farm, err := c.farms.Get(ctx, farmID)
	if err != nil {
		return nil, err
	}
	if !c.configured() {
		return nil, model.NewUpstreamNotConfiguredError("weather")
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(farm.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(farm.Longitude, 'f', -1, 64))
	q.Set("appid", c.cfg.APIKey)
	return c.get(ctx, "/weather", q)
}

// Soil は設定済みのポリゴンの土壌情報を取得する。
func (c *Client) Soil(ctx context.Context) (json.RawMessage, error) {
	if !c.configured() || c.cfg.PolyID == "" {
		return nil, model.NewUpstreamNotConfiguredError("soil")
	}

	q := url.Values{}
	q.Set("polyid", c.cfg.PolyID)
	q.Set("appid", c.cfg.APIKey)
	return c.get(ctx, "/soil", q)
}

func (c *Client) configured() bool {
	return c.caller != nil && c.cfg.Configured()
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	target := c.cfg.BaseURL + path + "?" + q.Encode()

	body, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
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
		return nil, model.NewUpstreamFailedError("weather")
	}

	if !json.Valid(body) {
		c.logger.Error("気象APIの応答がJSONではありません", slog.String("path", path))
		return nil, model.NewUpstreamFailedError("weather")
	}
	return json.RawMessage(body), nil
}
