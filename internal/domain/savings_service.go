package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// accountNumberDigits is the length of a savings account number.
const accountNumberDigits = 9

// SavingsServiceDeps groups the collaborators of SavingsService.
type SavingsServiceDeps struct {
	Users     UserDirectory
	Accounts  SavingsAccountRepository
	TxManager TransactionManager
	Clock     Clock
	Numbers   NumberSource
	Logger    logrus.FieldLogger
}

// SavingsService handles savings accounts opened and moved at the teller.
type SavingsService struct {
	users     UserDirectory
	accounts  SavingsAccountRepository
	txManager TransactionManager
	clock     Clock
	numbers   NumberSource
	log       logrus.FieldLogger
}

// NewSavingsService creates a new instance of SavingsService.
func NewSavingsService(deps SavingsServiceDeps) *SavingsService {
	return &SavingsService{
		users:     deps.Users,
		accounts:  deps.Accounts,
		txManager: deps.TxManager,
		clock:     deps.Clock,
		numbers:   deps.Numbers,
		log:       orDiscard(deps.Logger),
	}
}

// AccountDetails is an account with its ledger, newest first.
type AccountDetails struct {
	Account      SavingsAccountState
	Transactions []SavingsAccountTransaction
}

// OpenAccount opens a savings account for a client. A client holds at most
// one principal account. A positive initial deposit is credited right away.
func (s *SavingsService) OpenAccount(ctx context.Context, clientID uuid.UUID, accountType AccountType, initialDeposit decimal.Decimal) (*SavingsAccountState, error) {
	if !accountType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountType, accountType)
	}
	if initialDeposit.IsNegative() || !inCents(initialDeposit) {
		return nil, ErrInvalidAmount
	}
	if _, err := eligibleClient(ctx, s.users, clientID); err != nil {
		return nil, err
	}

	var account *SavingsAccount
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		number, err := uniqueNumber(txCtx, func() (string, error) {
			return s.numbers.Digits(accountNumberDigits)
		}, s.accounts.NumberExists)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		account, err = NewSavingsAccount(clientID, number, accountType, now)
		if err != nil {
			return err
		}
		if initialDeposit.IsPositive() {
			if _, err := account.Credit(initialDeposit, "Initial deposit", OriginTeller, now); err != nil {
				return err
			}
		}

		if err := s.accounts.Create(txCtx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"account_id": account.ID(),
		"client_id":  clientID,
		"type":       accountType,
	}).Info("savings account opened")

	state := account.State()
	return &state, nil
}

// Deposit credits an account at the teller.
func (s *SavingsService) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*SavingsAccountTransaction, error) {
	return s.move(ctx, accountID, amount, func(a *SavingsAccount) (SavingsAccountTransaction, error) {
		return a.Credit(amount, description, OriginTeller, s.clock.Now())
	})
}

// Withdraw debits an account at the teller. The balance never goes negative.
func (s *SavingsService) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*SavingsAccountTransaction, error) {
	return s.move(ctx, accountID, amount, func(a *SavingsAccount) (SavingsAccountTransaction, error) {
		return a.Debit(amount, description, OriginTeller, s.clock.Now())
	})
}

// GetAccount returns an account and its ledger.
func (s *SavingsService) GetAccount(ctx context.Context, accountID uuid.UUID) (*AccountDetails, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	txs, err := s.accounts.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account transactions: %w", err)
	}
	return &AccountDetails{Account: account.State(), Transactions: txs}, nil
}

func (s *SavingsService) move(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, apply func(*SavingsAccount) (SavingsAccountTransaction, error)) (*SavingsAccountTransaction, error) {
	if !ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	var entry SavingsAccountTransaction
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.Lock(txCtx, accountID)
		if err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}
		entry, err = apply(account)
		if err != nil {
			return err
		}
		if err := s.accounts.Update(txCtx, account); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"type":       entry.Type,
		"amount":     amount.String(),
	}).Info("savings ledger entry recorded")

	return &entry, nil
}
