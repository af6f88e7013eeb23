// Package token は署名付き・期限付きのベアラートークンの発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/agrisense/internal/model"
)

// Type はトークン種別を表す。
type Type string

const (
	// Access は保護APIの呼び出しに使う短命トークン。
	Access Type = "access"
	// Refresh はアクセストークンの再発行にのみ使う長命トークン。
	Refresh Type = "refresh"
)

const (
	// DefaultAccessTTL はアクセストークンの既定の有効期間。
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL はリフレッシュトークンの既定の有効期間。
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrTokenInvalid は署名不一致、構造不正、未知の種別のいずれかを表す。
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired は署名は正しいが有効期限を過ぎたトークンを表す。
	ErrTokenExpired = errors.New("token is expired")
)

// Claims はトークンのペイロード。
type Claims struct {
	Type Type `json:"type"`
	jwt.RegisteredClaims
}

// Token は発行済みトークンとその主要なクレームを保持する。
type Token struct {
	Raw       string
	ID        string // jti
	Type      Type
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec はHS256でトークンを発行・検証する。
// 生成後は読み取り専用であり、複数のゴルーチンから同時に使用できる。
type Codec struct {
	key        SigningKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// Option はCodecの設定を変更する。
type Option func(*Codec)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithTTL はトークン種別ごとの有効期間を設定する。0以下の値は既定値のままにする。
func WithTTL(access, refresh time.Duration) Option {
	return func(c *Codec) {
		if access > 0 {
			c.accessTTL = access
		}
		if refresh > 0 {
			c.refreshTTL = refresh
		}
	}
}

// NewCodec は新しいCodecを生成する。
func NewCodec(key SigningKey, opts ...Option) *Codec {
	c := &Codec{
		key:        key,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	// 有効期限は IsExpired で自前判定するため、ライブラリのクレーム検証は無効化する。
	// 署名の検証はこの設定に関係なく常に行われる。
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)
	return c
}

// TTL はトークン種別の有効期間を返す。
func (c *Codec) TTL(t Type) (time.Duration, error) {
	switch t {
	case Access:
		return c.accessTTL, nil
	case Refresh:
		return c.refreshTTL, nil
	default:
		return 0, fmt.Errorf("unknown token type: %q", t)
	}
}

// Mint はアカウントの電話番号をsubjectとするトークンを発行する。
// iatは秒精度に丸め、exp = iat + TTL(種別) とする。
// 同一秒内の発行でもトークンが一意になるよう、jtiにランダムなUUIDを設定する。
func (c *Codec) Mint(account *model.Account, t Type) (*Token, error) {
	if account == nil || account.PhoneNumber == "" {
		return nil, errors.New("cannot mint token without an account identifier")
	}
	ttl, err := c.TTL(t)
	if err != nil {
		return nil, err
	}

	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	id := uuid.NewString()

	claims := Claims{
		Type: t,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   account.PhoneNumber,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key.b)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		Raw:       raw,
		ID:        id,
		Type:      t,
		Subject:   account.PhoneNumber,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify は署名と構造を検証し、期限内であればクレームを返す。
// 失敗時は ErrTokenInvalid または ErrTokenExpired をラップしたエラーを返す。
func (c *Codec) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.key.b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing sub or exp", ErrTokenInvalid)
	}
	if _, err := c.TTL(claims.Type); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if c.IsExpired(claims) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// IsExpired は有効期限が現在時刻より厳密に前であればtrueを返す。
// exp と現在時刻が等しい瞬間はまだ有効とみなす。
func (c *Codec) IsExpired(claims *Claims) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Time.Before(c.now())
}

// ExtractSubject はトークンを検証し、subject（ログイン識別子）を返す。
func (c *Codec) ExtractSubject(raw string) (string, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
