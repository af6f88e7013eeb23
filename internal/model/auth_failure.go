package model

import (
	"errors"
	"fmt"
)

// AuthFailureKind は認証パイプラインの失敗種別を表す。
type AuthFailureKind string

const (
	// AuthMalformedRequest はログイン要求に必須項目が欠けている状態。
	AuthMalformedRequest AuthFailureKind = "malformed_request"
	// AuthUnknownIdentifier は識別子に一致するアカウントが存在しない状態。
	AuthUnknownIdentifier AuthFailureKind = "unknown_identifier"
	// AuthSecretMismatch はパスワードハッシュの照合に失敗した状態。
	AuthSecretMismatch AuthFailureKind = "secret_mismatch"
	// AuthTokenInvalid はトークンの欠落、署名不一致、構造不正の状態。
	AuthTokenInvalid AuthFailureKind = "token_invalid"
	// AuthTokenExpired は構造上有効だが期限切れのトークン。
	AuthTokenExpired AuthFailureKind = "token_expired"
	// AuthPrincipalMissing は保護パスでPrincipalが束縛されていない状態。
	// 前段の検証で必ず弾かれるはずであり、到達した場合は不変条件違反として扱う。
	AuthPrincipalMissing AuthFailureKind = "principal_missing"
)

// AuthFailure は認証失敗の型付き結果。
// どの種別もクライアントには同一の401応答として返し、種別はログにのみ残す。
type AuthFailure struct {
	Kind AuthFailureKind
	Err  error
}

// NewAuthFailure はAuthFailureを生成する。
func NewAuthFailure(kind AuthFailureKind, err error) *AuthFailure {
	return &AuthFailure{Kind: kind, Err: err}
}

// Error はerrorインターフェースを実装する。
func (f *AuthFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("auth failure: %s", f.Kind)
	}
	return fmt.Sprintf("auth failure: %s: %v", f.Kind, f.Err)
}

// Unwrap は原因エラーを返す。
func (f *AuthFailure) Unwrap() error {
	return f.Err
}

// AuthFailureKindOf はエラーチェーンからAuthFailureの種別を取り出す。
// AuthFailureを含まない場合はfalseを返す。
func AuthFailureKindOf(err error) (AuthFailureKind, bool) {
	var f *AuthFailure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}
