package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// AccountRepository implements domain.SavingsAccountRepository in memory.
type AccountRepository struct {
	s *Store
}

// Create stores a new account and its opening entries.
func (r *AccountRepository) Create(ctx context.Context, account *domain.SavingsAccount) error {
	st := account.State()
	return r.s.view(ctx, func(t *tables) error {
		if st.Type == domain.AccountTypePrincipal {
			for _, a := range t.accounts {
				if a.UserID == st.UserID && a.Type == domain.AccountTypePrincipal {
					return domain.ErrDuplicatePrincipalAccount
				}
			}
		}
		t.accounts[st.ID] = st
		t.accountTxs = appendNew(t.accountTxs, account.NewEntries(), entryID)
		return nil
	})
}

// GetByID returns the account with the given id.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SavingsAccount, error) {
	var account *domain.SavingsAccount
	err := r.s.view(ctx, func(t *tables) error {
		st, ok := t.accounts[id]
		if !ok {
			return domain.ErrAccountNotFound
		}
		account = domain.RestoreSavingsAccount(st)
		return nil
	})
	return account, err
}

// Lock returns the account; the surrounding transaction already holds the store.
func (r *AccountRepository) Lock(ctx context.Context, id uuid.UUID) (*domain.SavingsAccount, error) {
	return r.GetByID(ctx, id)
}

// LockPrincipal returns the user's principal account.
func (r *AccountRepository) LockPrincipal(ctx context.Context, userID uuid.UUID) (*domain.SavingsAccount, error) {
	var account *domain.SavingsAccount
	err := r.s.view(ctx, func(t *tables) error {
		for _, st := range t.accounts {
			if st.UserID == userID && st.Type == domain.AccountTypePrincipal {
				account = domain.RestoreSavingsAccount(st)
				return nil
			}
		}
		return domain.ErrAccountNotFound
	})
	return account, err
}

// Update stores the balance and the account's new ledger entries.
func (r *AccountRepository) Update(ctx context.Context, account *domain.SavingsAccount) error {
	st := account.State()
	return r.s.view(ctx, func(t *tables) error {
		if _, ok := t.accounts[st.ID]; !ok {
			return domain.ErrAccountNotFound
		}
		t.accounts[st.ID] = st
		t.accountTxs = appendNew(t.accountTxs, account.NewEntries(), entryID)
		return nil
	})
}

// ListTransactions returns the account's ledger, newest first.
func (r *AccountRepository) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.SavingsAccountTransaction, error) {
	out := []domain.SavingsAccountTransaction{}
	err := r.s.view(ctx, func(t *tables) error {
		for i := len(t.accountTxs) - 1; i >= 0; i-- {
			if e := t.accountTxs[i]; e.AccountID == accountID {
				out = append(out, e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

// NumberExists reports whether an account number is taken.
func (r *AccountRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	exists := false
	err := r.s.view(ctx, func(t *tables) error {
		for _, a := range t.accounts {
			if a.Number == number {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func entryID(e domain.SavingsAccountTransaction) uuid.UUID { return e.ID }
