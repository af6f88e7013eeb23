// Package middleware はHTTPミドルウェアと認証パイプラインの各ステージを提供する。
package middleware

import (
	"context"
	"errors"

	"github.com/hitoshi/agrisense/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストにPrincipalを格納するためのキー。
var principalContextKey = contextKey("principal")

// ErrNoPrincipal はコンテキストにPrincipalが束縛されていないことを表す。
var ErrNoPrincipal = errors.New("principal not found in context")

// PrincipalFromContext はリクエストコンテキストからPrincipalを取得する。
// トークン検証ステージを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || p == nil {
		return nil, ErrNoPrincipal
	}
	return p, nil
}

// ContextWithPrincipal はコンテキストにPrincipalを束縛する。
// テストやミドルウェア以外のコンテキスト生成でも使用する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	if holder, ok := ctx.Value(principalHolderKey).(*principalHolder); ok {
		holder.principal = p
	}
	return context.WithValue(ctx, principalContextKey, p)
}
