package model

import "time"

// AlertStatus はSMSアラートの送信状態を表す。
type AlertStatus string

const (
	// AlertStatusSent はSMSプロバイダが受理した状態。
	AlertStatusSent AlertStatus = "sent"
	// AlertStatusFailed はSMSプロバイダへの送信に失敗した状態。
	AlertStatusFailed AlertStatus = "failed"
)

// Alert は圃場に紐づくSMSアラートの送信記録を表す。
type Alert struct {
	ID        string
	FarmID    string
	AlertType string
	Phone     string
	Language  string
	Message   string
	MessageID string
	Status    AlertStatus
	SentAt    time.Time
}

// AlertInput はSMSアラート送信要求の入力値。
type AlertInput struct {
	FarmID    string
	Phone     string
	Language  string
	Message   string
	AlertType string
}
