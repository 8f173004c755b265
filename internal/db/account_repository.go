package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// AccountRepository implements domain.SavingsAccountRepository using PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, user_id, account_number, account_type, balance::text, status, created_at`

// Create persists a new account together with the entries it was opened with.
func (r *AccountRepository) Create(ctx context.Context, account *domain.SavingsAccount) error {
	st := account.State()
	query := `
		INSERT INTO savings_accounts (id, user_id, account_number, account_type, balance, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	q := conn(ctx, r.pool)
	_, err := q.Exec(ctx, query, st.ID, st.UserID, st.Number, string(st.Type), money(st.Balance), string(st.Status), st.CreatedAt)
	if err != nil {
		return translate(err, "create account")
	}
	return r.insertEntries(ctx, q, account.NewEntries())
}

// GetByID retrieves an account by its unique identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SavingsAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM savings_accounts WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// Lock acquires a pessimistic lock on the account for the duration of the transaction.
// This method MUST be called within a transaction context.
func (r *AccountRepository) Lock(ctx context.Context, id uuid.UUID) (*domain.SavingsAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM savings_accounts WHERE id = $1 FOR UPDATE`
	return r.scanOne(ctx, query, id)
}

// LockPrincipal locks the principal account of a user.
// This method MUST be called within a transaction context.
func (r *AccountRepository) LockPrincipal(ctx context.Context, userID uuid.UUID) (*domain.SavingsAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM savings_accounts WHERE user_id = $1 AND account_type = $2 FOR UPDATE`
	return r.scanOne(ctx, query, userID, string(domain.AccountTypePrincipal))
}

// Update persists the balance and appends the account's new ledger entries.
func (r *AccountRepository) Update(ctx context.Context, account *domain.SavingsAccount) error {
	st := account.State()
	query := `
		UPDATE savings_accounts
		SET balance = $2,
		    status = $3
		WHERE id = $1
	`

	q := conn(ctx, r.pool)
	result, err := q.Exec(ctx, query, st.ID, money(st.Balance), string(st.Status))
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return r.insertEntries(ctx, q, account.NewEntries())
}

// ListTransactions returns the account's ledger, newest first.
func (r *AccountRepository) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]domain.SavingsAccountTransaction, error) {
	query := `
		SELECT id, account_id, amount::text, transaction_type, origin, description, balance_after::text, status, created_at
		FROM savings_account_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account transactions: %w", err)
	}
	defer rows.Close()

	out := []domain.SavingsAccountTransaction{}
	for rows.Next() {
		var tx domain.SavingsAccountTransaction
		var amount, balanceAfter, txType, origin, status string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &amount, &txType, &origin, &tx.Description, &balanceAfter, &status, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account transaction: %w", err)
		}
		if tx.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, err
		}
		if tx.BalanceAfter, err = parseDecimal("balance_after", balanceAfter); err != nil {
			return nil, err
		}
		tx.Type = domain.TransactionType(txType)
		tx.Origin = domain.TransactionOrigin(origin)
		tx.Status = domain.LedgerEntryStatus(status)
		tx.CreatedAt = tx.CreatedAt.UTC()
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account transactions: %w", err)
	}
	return out, nil
}

// NumberExists reports whether an account number is taken.
func (r *AccountRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM savings_accounts WHERE account_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account number: %w", err)
	}
	return exists, nil
}

func (r *AccountRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.SavingsAccount, error) {
	var st domain.SavingsAccountState
	var accountType, balance, status string
	err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&st.ID, &st.UserID, &st.Number, &accountType, &balance, &status, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if st.Balance, err = parseDecimal("balance", balance); err != nil {
		return nil, err
	}
	st.Type = domain.AccountType(accountType)
	st.Status = domain.AccountStatus(status)
	st.CreatedAt = st.CreatedAt.UTC()
	return domain.RestoreSavingsAccount(st), nil
}

// insertEntries appends ledger entries. Entries already stored are skipped,
// so saving the same aggregate twice is harmless.
func (r *AccountRepository) insertEntries(ctx context.Context, q querier, entries []domain.SavingsAccountTransaction) error {
	query := `
		INSERT INTO savings_account_transactions
			(id, account_id, amount, transaction_type, origin, description, balance_after, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	for _, e := range entries {
		_, err := q.Exec(ctx, query, e.ID, e.AccountID, money(e.Amount), string(e.Type), string(e.Origin),
			e.Description, money(e.BalanceAfter), string(e.Status), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert account transaction: %w", err)
		}
	}
	return nil
}
