package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/agrisense/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByIdentifier は電話番号の完全一致でアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByIdentifier(ctx context.Context, identifier string) (*model.Account, error) {
	a := &model.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, phone_number, password_hash, created_at
		 FROM accounts WHERE phone_number = $1`,
		identifier,
	).Scan(&a.ID, &a.FirstName, &a.LastName, &a.PhoneNumber, &a.PasswordHash, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by identifier: %w", err)
	}

	return a, nil
}

// Create はアカウントを作成し、採番されたIDと作成日時を設定する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (first_name, last_name, phone_number, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		account.FirstName, account.LastName, account.PhoneNumber, account.PasswordHash,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentifier
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
