// Package model はドメインモデルを定義する。
package model

import "time"

// Account はログイン可能な利用者アカウントを表す。
// PhoneNumber がログイン識別子であり、全アカウントで一意である。
// PasswordHash はbcryptハッシュであり、外部へは決して返さない。
type Account struct {
	ID           int64
	FirstName    string
	LastName     string
	PhoneNumber  string
	PasswordHash string
	CreatedAt    time.Time
}

// Principal は認証済みの呼び出し元を表す。
// 保護リクエストのたびにアカウントストアから再構築され、リクエストコンテキストに束縛される。
type Principal struct {
	AccountID  int64
	Identifier string
	FirstName  string
	LastName   string
}

// NewPrincipal はAccountからPrincipalを構築する。
func NewPrincipal(a *Account) *Principal {
	return &Principal{
		AccountID:  a.ID,
		Identifier: a.PhoneNumber,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
	}
}

// RegisterInput はアカウント登録の入力値。
type RegisterInput struct {
	FirstName   string
	LastName    string
	PhoneNumber string
	Password    string
}
