package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/agrisense/internal/model"
)

// MemoryAccountRepo はプロセス内メモリに保持するアカウントリポジトリ。
// データベースを持たない組み込み用途とテストで使用する。
type MemoryAccountRepo struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[string]model.Account
}

// NewMemoryAccountRepo はMemoryAccountRepoを生成する。
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{
		accounts: make(map[string]model.Account),
	}
}

// FindByIdentifier は電話番号の完全一致でアカウントを取得する。見つからない場合はnilを返す。
// 返す値はコピーであり、呼び出し元が変更しても保持データには影響しない。
func (r *MemoryAccountRepo) FindByIdentifier(_ context.Context, identifier string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[identifier]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Create はアカウントを作成し、採番されたIDと作成日時を設定する。
func (r *MemoryAccountRepo) Create(_ context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.PhoneNumber]; exists {
		return ErrDuplicateIdentifier
	}

	r.nextID++
	account.ID = r.nextID
	account.CreatedAt = time.Now().UTC()
	r.accounts[account.PhoneNumber] = *account
	return nil
}

// compile-time interface check
var _ AccountRepository = (*MemoryAccountRepo)(nil)
