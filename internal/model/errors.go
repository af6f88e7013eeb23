package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, farm, sensor, alert, upstream, system
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeDuplicateAccount    = "DUPLICATE_ACCOUNT"
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ErrCodeFarmNotFound        = "FARM_NOT_FOUND"
	ErrCodeSensorDataNotFound  = "SENSOR_DATA_NOT_FOUND"
	ErrCodeInvalidTimeRange    = "INVALID_TIME_RANGE"
	ErrCodeSMSDeliveryFailed   = "SMS_DELIVERY_FAILED"
	ErrCodeUpstreamFailed      = "UPSTREAM_FAILED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_NOT_CONFIGURED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "Check the request body and try again.",
	}
}

// NewDuplicateAccountError は電話番号が登録済みの場合のエラーを生成する。
func NewDuplicateAccountError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAccount,
		Message:  "An account with this phone number already exists.",
		Category: "auth",
		Action:   "Log in with the existing account.",
	}
}

// NewAccountNotFoundError は認証済みアカウントが見つからない場合のエラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "Account not found.",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewFarmNotFoundError は圃場が見つからない場合のエラーを生成する。
func NewFarmNotFoundError(farmID string) *APIError {
	return &APIError{
		Code:     ErrCodeFarmNotFound,
		Message:  fmt.Sprintf("farm data not found with id: %s", farmID),
		Category: "farm",
		Action:   "Check the farm ID.",
	}
}

// NewSensorDataNotFoundError はセンサーデータが1件もない場合のエラーを生成する。
func NewSensorDataNotFoundError(farmID string) *APIError {
	return &APIError{
		Code:     ErrCodeSensorDataNotFound,
		Message:  fmt.Sprintf("no sensor data recorded for farm: %s", farmID),
		Category: "sensor",
		Action:   "Submit a reading for this farm first.",
	}
}

// NewInvalidTimeRangeError は期間指定が不正な場合のエラーを生成する。
func NewInvalidTimeRangeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeRange,
		Message:  fmt.Sprintf("invalid time range: %s", reason),
		Category: "validation",
		Action:   "Use RFC3339 timestamps with from <= to.",
	}
}

// NewSMSDeliveryFailedError はSMSプロバイダへの送信失敗エラーを生成する。
func NewSMSDeliveryFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSMSDeliveryFailed,
		Message:  "The SMS provider rejected or did not accept the message.",
		Category: "alert",
		Action:   "The alert was recorded as failed. Retry later.",
	}
}

// NewUpstreamFailedError は外部サービス呼び出しの失敗エラーを生成する。
func NewUpstreamFailedError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("%s service request failed.", service),
		Category: "upstream",
		Action:   "Wait a moment and try again.",
	}
}

// NewUpstreamNotConfiguredError は外部サービスが未設定の場合のエラーを生成する。
func NewUpstreamNotConfiguredError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("%s service is not configured.", service),
		Category: "upstream",
		Action:   "Contact the administrator.",
	}
}

// NewInternalError は内部障害を表すエラーを生成する。詳細はログのみに記録し、ここには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please retry after a while.",
	}
}
