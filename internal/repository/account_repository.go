package repository

import (
	"context"

	"gorm.io/gorm"
)

// AccountRepository persists dashboard logins.
type AccountRepository struct {
	store *Store
}

func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

func (r *AccountRepository) Create(ctx context.Context, account *Account) error {
	return create(ctx, r.store, "repository.create_account", account)
}

func (r *AccountRepository) FindByLogin(ctx context.Context, role, login string) (*Account, error) {
	return get[Account](ctx, r.store, "repository.find_account", "role = ? AND login = ?", role, login)
}

// Exists reports whether any account already uses the login.
func (r *AccountRepository) Exists(ctx context.Context, login string) (bool, error) {
	var n int64
	err := r.store.execute(ctx, "repository.account_exists", func(tx *gorm.DB) error {
		return tx.Model(&Account{}).Where("login = ?", login).Count(&n).Error
	})
	return n > 0, err
}
