package model

import "time"

// TokenGrant はログインまたはリフレッシュで発行されたトークン一式を表す。
// RefreshToken はリフレッシュ交換では空になる（ローテーションしない）。
type TokenGrant struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	IssuedAt         time.Time
}

// ExpiresIn はアクセストークンの有効期間（秒）を返す。
func (g *TokenGrant) ExpiresIn() int64 {
	return int64(g.AccessExpiresAt.Sub(g.IssuedAt).Seconds())
}
