// Package alert は圃場アラートのSMS送信と送信履歴を提供する。
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agrisense/internal/model"
	"github.com/hitoshi/agrisense/internal/repository"
)

const (
	// maxMessageLength はSMS本文の上限文字数（Twilioの連結SMS上限）。
	maxMessageLength = 1600
	defaultLanguage  = "en"
	defaultAlertType = "GENERAL"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// SMSSender はSMSを送信するインターフェース。
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// FarmLookup は圃場の存在確認を行うインターフェース。
type FarmLookup interface {
	Get(ctx context.Context, id string) (*model.Farm, error)
}

// TextSanitizer は本文からマークアップを取り除くインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// SendRecorder はSMS送信結果を記録するインターフェース。
type SendRecorder interface {
	RecordSMSSent(status model.AlertStatus)
}

// Service はSMSアラートのサービス層。
type Service struct {
	alerts    repository.AlertRepository
	farms     FarmLookup
	sender    SMSSender
	sanitizer TextSanitizer
	recorder  SendRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// senderがnilの場合、送信要求は UPSTREAM_NOT_CONFIGURED になる。
func NewService(
	alerts repository.AlertRepository,
	farms FarmLookup,
	sender SMSSender,
	sanitizer TextSanitizer,
	recorder SendRecorder,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		alerts:    alerts,
		farms:     farms,
		sender:    sender,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Send はアラート本文をサニタイズしてSMSで送信し、結果を送信記録として保存する。
// プロバイダへの送信に失敗した場合もstatus=failedで記録を残し、SMS_DELIVERY_FAILEDを返す。
func (s *Service) Send(ctx context.Context, in model.AlertInput) (*model.Alert, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Message = s.sanitizer.Sanitize(in.Message)

	if in.FarmID == "" {
		return nil, model.NewValidationError("farmId is required")
	}
	if !phonePattern.MatchString(in.Phone) {
		return nil, model.NewValidationError("phone must contain 7 to 15 digits with an optional leading +")
	}
	if in.Message == "" {
		return nil, model.NewValidationError("message is required")
	}
	if len([]rune(in.Message)) > maxMessageLength {
		return nil, model.NewValidationError(fmt.Sprintf("message must be at most %d characters", maxMessageLength))
	}
	if in.Language == "" {
		in.Language = defaultLanguage
	}
	if in.AlertType == "" {
		in.AlertType = defaultAlertType
	}

	if _, err := s.farms.Get(ctx, in.FarmID); err != nil {
		return nil, err
	}
	if s.sender == nil {
		return nil, model.NewUpstreamNotConfiguredError("sms")
	}

	alert := &model.Alert{
		ID:        uuid.NewString(),
		FarmID:    in.FarmID,
		AlertType: strings.ToUpper(in.AlertType),
		Phone:     in.Phone,
		Language:  in.Language,
		Message:   in.Message,
		Status:    model.AlertStatusSent,
	}

	messageID, sendErr := s.sender.Send(ctx, in.Phone, in.Message)
	alert.SentAt = s.now().UTC()
	if sendErr != nil {
		alert.Status = model.AlertStatusFailed
		s.logger.Error("SMSアラートの送信に失敗しました",
			slog.String("farm_id", in.FarmID),
			slog.String("alert_id", alert.ID),
			slog.String("error", sendErr.Error()),
		)
	} else {
		alert.MessageID = messageID
	}

	if s.recorder != nil {
		s.recorder.RecordSMSSent(alert.Status)
	}

	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("送信記録の保存に失敗しました: %w", err)
	}

	if sendErr != nil {
		return alert, model.NewSMSDeliveryFailedError()
	}
	s.logger.Info("SMSアラートを送信しました",
		slog.String("farm_id", in.FarmID),
		slog.String("message_id", messageID),
	)
	return alert, nil
}

// History は圃場の送信記録を新しい順に返す。
func (s *Service) History(ctx context.Context, farmID string) ([]*model.Alert, error) {
	if _, err := s.farms.Get(ctx, farmID); err != nil {
		return nil, err
	}

	alerts, err := s.alerts.ListByFarm(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("送信履歴の取得に失敗しました: %w", err)
	}
	return alerts, nil
}
