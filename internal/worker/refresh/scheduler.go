// Package refresh は作物ストレス予測のバックグラウンド更新処理を提供する。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/agrisense/internal/model"
)

// defaultMaxConcurrency は同時に予測サービスへ問い合わせる圃場数の既定値。
const defaultMaxConcurrency = 4

// FarmLister は更新対象の圃場一覧を返すインターフェース。
type FarmLister interface {
	List(ctx context.Context) ([]*model.Farm, error)
}

// Refresher は1圃場分の予測を取得して保存するインターフェース。
type Refresher interface {
	Refresh(ctx context.Context, farmID string) (*model.Prediction, error)
}

// Scheduler は全圃場の予測更新をスケジューリングし、並列数を制御する。
type Scheduler struct {
	farms          FarmLister
	refresher      Refresher
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerを生成する。
// maxConcurrencyが0以下の場合は defaultMaxConcurrency を使用する。
func NewScheduler(farms FarmLister, refresher Refresher, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		farms:          farms,
		refresher:      refresher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start はintervalごとにRunOnceを実行する。起動直後に1回実行し、ctxがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("予測更新スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("予測更新スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("予測更新サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全圃場の予測を1回更新し、成功した圃場数を返す。
// 個別の圃場の失敗はログに記録し、サイクル全体は継続する。
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	farms, err := s.farms.List(ctx)
	if err != nil {
		return 0, err
	}

	if len(farms) == 0 {
		s.logger.Info("予測更新対象の圃場はありません")
		return 0, nil
	}

	sem := make(chan struct{}, s.maxConcurrency)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)

	for _, farm := range farms {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(f *model.Farm) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := s.refresher.Refresh(ctx, f.ID); err != nil {
				s.logger.Warn("予測の更新に失敗しました",
					slog.String("farm_id", f.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			mu.Lock()
			refreshed++
			mu.Unlock()
		}(farm)
	}

	wg.Wait()

	s.logger.Info("予測更新サイクルが完了しました",
		slog.Int("farm_count", len(farms)),
		slog.Int("refreshed_count", refreshed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return refreshed, ctx.Err()
}
