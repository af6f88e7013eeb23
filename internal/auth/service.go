// Package auth はクレデンシャル交換、トークン検証、アカウント登録のビジネスロジックを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/agrisense/internal/model"
	"github.com/hitoshi/agrisense/internal/repository"
	"github.com/hitoshi/agrisense/internal/token"
)

const (
	// minPasswordLength はパスワードの最小文字数。
	minPasswordLength = 8
	// maxPasswordBytes はbcryptが扱える入力の最大バイト長。
	maxPasswordBytes = 72
)

// phonePattern はログイン識別子として受け付ける電話番号の形式（E.164相当）。
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// TokenCodec はトークンの発行と検証のインターフェース。
type TokenCodec interface {
	Mint(account *model.Account, t token.Type) (*token.Token, error)
	Verify(raw string) (*token.Claims, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int // パスワードハッシュのコスト。0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts  repository.AccountRepository
	codec     TokenCodec
	cost      int
	dummyHash []byte
}

// NewService はServiceを生成する。
// 未登録の識別子でもハッシュ照合を1回行うためのダミーハッシュをここで作成する。
func NewService(accounts repository.AccountRepository, codec TokenCodec, config ServiceConfig) (*Service, error) {
	cost := config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("agrisense-unknown-identifier"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Service{
		accounts:  accounts,
		codec:     codec,
		cost:      cost,
		dummyHash: dummy,
	}, nil
}

// Login は識別子とシークレットを照合し、アクセストークンとリフレッシュトークンを発行する。
// 認証失敗は *model.AuthFailure で返す。未登録の識別子とパスワード不一致は種別のみ異なり、
// 呼び出し元はどちらも同じ応答に変換する。ストア障害は通常のエラーとして返す。
func (s *Service) Login(ctx context.Context, identifier, secret string) (*model.TokenGrant, error) {
	if identifier == "" || secret == "" {
		return nil, model.NewAuthFailure(model.AuthMalformedRequest, errors.New("identifier and secret are required"))
	}

	account, err := s.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if account == nil {
		// 識別子の存在有無が応答時間に現れないよう、ダミーハッシュと照合しておく
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
		return nil, model.NewAuthFailure(model.AuthUnknownIdentifier, nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(secret)); err != nil {
		return nil, model.NewAuthFailure(model.AuthSecretMismatch, err)
	}

	access, err := s.codec.Mint(account, token.Access)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}
	refresh, err := s.codec.Mint(account, token.Refresh)
	if err != nil {
		return nil, fmt.Errorf("failed to mint refresh token: %w", err)
	}

	return &model.TokenGrant{
		AccessToken:      access.Raw,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.ExpiresAt,
		IssuedAt:         access.IssuedAt,
	}, nil
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// リフレッシュトークン自体は再発行しない。
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*model.TokenGrant, error) {
	account, err := s.resolveAccount(ctx, rawRefresh, token.Refresh)
	if err != nil {
		return nil, err
	}

	access, err := s.codec.Mint(account, token.Access)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	return &model.TokenGrant{
		AccessToken:     access.Raw,
		AccessExpiresAt: access.ExpiresAt,
		IssuedAt:        access.IssuedAt,
	}, nil
}

// ResolvePrincipal はベアラートークンを検証し、subjectをアカウントストアで再解決してPrincipalを返す。
// 結果はキャッシュせず、呼び出しのたびにストアを参照する。
func (s *Service) ResolvePrincipal(ctx context.Context, rawAccess string) (*model.Principal, error) {
	account, err := s.resolveAccount(ctx, rawAccess, token.Access)
	if err != nil {
		return nil, err
	}
	return model.NewPrincipal(account), nil
}

// resolveAccount はトークンを検証して種別を確認し、subjectに対応するアカウントを返す。
func (s *Service) resolveAccount(ctx context.Context, raw string, want token.Type) (*model.Account, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, model.NewAuthFailure(model.AuthTokenExpired, err)
		}
		return nil, model.NewAuthFailure(model.AuthTokenInvalid, err)
	}

	if claims.Type != want {
		return nil, model.NewAuthFailure(model.AuthTokenInvalid,
			fmt.Errorf("token type %q presented where %q is required", claims.Type, want))
	}

	account, err := s.accounts.FindByIdentifier(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}
	if account == nil {
		return nil, model.NewAuthFailure(model.AuthUnknownIdentifier, nil)
	}
	return account, nil
}

// Register はアカウントを登録する。パスワードはbcryptでハッシュ化して保存する。
func (s *Service) Register(ctx context.Context, in model.RegisterInput) (*model.Account, error) {
	if err := validateRegisterInput(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: string(hash),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentifier) {
			return nil, model.NewDuplicateAccountError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// validateRegisterInput は登録入力値を検証する。
func validateRegisterInput(in model.RegisterInput) error {
	if in.PhoneNumber == "" {
		return model.NewValidationError("phoneNumber is required")
	}
	if !phonePattern.MatchString(in.PhoneNumber) {
		return model.NewValidationError("phoneNumber must contain 7 to 15 digits with an optional leading +")
	}
	if len(in.Password) < minPasswordLength {
		return model.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(in.Password) > maxPasswordBytes {
		return model.NewValidationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}
