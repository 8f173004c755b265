package domain

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/amortization"
)

// loanNumberDigits is the length of the random part of a loan number (YYYY-NNNNNN).
const loanNumberDigits = 6

// publishTimeout bounds each after-commit publish or notification.
const publishTimeout = 5 * time.Second

// LoanServiceDeps groups the collaborators of LoanService.
type LoanServiceDeps struct {
	Users     UserDirectory
	Accounts  SavingsAccountRepository
	Loans     LoanRepository
	TxManager TransactionManager
	Clock     Clock
	Numbers   NumberSource
	// Optional event publisher; nil disables loan events
	Events EventPublisher
	Logger logrus.FieldLogger
}

// LoanService handles loan origination, rate changes, repayment and the overdue sweep.
type LoanService struct {
	users     UserDirectory
	accounts  SavingsAccountRepository
	loans     LoanRepository
	txManager TransactionManager
	clock     Clock
	numbers   NumberSource
	events    EventPublisher
	log       logrus.FieldLogger
}

// NewLoanService creates a new instance of LoanService.
func NewLoanService(deps LoanServiceDeps) *LoanService {
	return &LoanService{
		users:     deps.Users,
		accounts:  deps.Accounts,
		loans:     deps.Loans,
		txManager: deps.TxManager,
		clock:     deps.Clock,
		numbers:   deps.Numbers,
		events:    deps.Events,
		log:       orDiscard(deps.Logger),
	}
}

// LoanDetails is a loan with its full schedule.
type LoanDetails struct {
	Summary      LoanSummary
	Installments []LoanInstallment
}

// SweepResult reports what one overdue sweep changed.
type SweepResult struct {
	Installments int // installments moved to OVERDUE
	Loans        int // loans holding at least one of them
}

// PaymentResult reports an installment payment.
type PaymentResult struct {
	Installment    LoanInstallment
	Loan           LoanSummary
	AccountBalance decimal.Decimal
}

// AssignableClient is a client that may receive a product, with the debt
// relevant to the risk decision.
type AssignableClient struct {
	User        User
	Outstanding decimal.Decimal
}

// AssignableLoanClients lists clients without an open loan.
type AssignableLoanClients struct {
	AverageActiveCapital decimal.Decimal
	Clients              []AssignableClient
}

// AssignLoan originates a loan for a client and disburses it into the
// client's principal savings account.
//
// Everything happens in one transaction:
// 1. Lock the client's principal account (serializes assignments per client)
// 2. Reject when the client already has an active loan
// 3. Flag the loan high-risk when the client's debt would exceed the average
// 4. Generate a unique loan number and the French schedule
// 5. Credit the principal account and persist loan and account
//
// A loan-assigned event is published after commit (best-effort).
func (s *LoanService) AssignLoan(ctx context.Context, clientID uuid.UUID, amount decimal.Decimal, termMonths int, annualRate decimal.Decimal) (*LoanDetails, error) {
	// Validate input before touching anything
	if err := ValidateLoanTerms(amount, annualRate, termMonths); err != nil {
		return nil, err
	}

	client, err := eligibleClient(ctx, s.users, clientID)
	if err != nil {
		return nil, err
	}

	var loan *Loan
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.LockPrincipal(txCtx, clientID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return ErrMissingPrincipalAccount
			}
			return fmt.Errorf("failed to lock principal account: %w", err)
		}

		active, err := s.loans.HasActiveLoan(txCtx, clientID)
		if err != nil {
			return fmt.Errorf("failed to check active loans: %w", err)
		}
		if active {
			return ErrDuplicateActiveLoan
		}

		stats, err := s.loans.CapitalStats(txCtx, clientID)
		if err != nil {
			return fmt.Errorf("failed to compute capital stats: %w", err)
		}
		highRisk := stats.AverageActiveCapital.IsPositive() &&
			stats.ClientOutstanding.Add(amount).GreaterThan(stats.AverageActiveCapital)

		now := s.clock.Now()
		number, err := uniqueNumber(txCtx, func() (string, error) {
			digits, err := s.numbers.Digits(loanNumberDigits)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d-%s", now.Year(), digits), nil
		}, s.loans.NumberExists)
		if err != nil {
			return err
		}

		loan, err = NewLoan(NewLoanParams{
			UserID:     clientID,
			Number:     number,
			Capital:    amount,
			AnnualRate: annualRate,
			TermMonths: termMonths,
			HighRisk:   highRisk,
			IssuedAt:   now,
		})
		if err != nil {
			return err
		}

		if _, err := account.Credit(amount, "Loan disbursement "+number, OriginLoan, now); err != nil {
			return fmt.Errorf("failed to credit principal account: %w", err)
		}

		if err := s.loans.Create(txCtx, loan); err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		if err := s.accounts.Update(txCtx, account); err != nil {
			return fmt.Errorf("failed to update principal account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	details := s.details(loan, client)
	s.log.WithFields(logrus.Fields{
		"loan_id":   loan.ID(),
		"client_id": clientID,
		"number":    loan.Number(),
		"high_risk": loan.HighRisk(),
	}).Info("loan assigned")

	// Publish asynchronously so a broker outage never fails a committed loan.
	if s.events != nil {
		go func(summary LoanSummary) {
			pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := s.events.PublishLoanAssigned(pubCtx, summary); err != nil {
				s.log.WithError(err).WithField("loan_id", summary.ID).Warn("failed to publish loan assigned event")
			}
		}(details.Summary)
	}

	return details, nil
}

// GetLoan returns a loan with its schedule and client.
func (s *LoanService) GetLoan(ctx context.Context, id uuid.UUID) (*LoanDetails, error) {
	loan, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	client := newUserIndex(s.users, s.log, nil).get(ctx, loan.UserID())
	return s.details(loan, client), nil
}

// UpdateAnnualRate changes the rate of an active loan and regenerates its unpaid installments.
func (s *LoanService) UpdateAnnualRate(ctx context.Context, id uuid.UUID, newRate decimal.Decimal) (*LoanDetails, error) {
	if !ValidRate(newRate) {
		return nil, ErrInvalidRate
	}

	var loan *Loan
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		loan, err = s.loans.Lock(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to lock loan: %w", err)
		}
		if err := loan.ChangeAnnualRate(newRate); err != nil {
			return err
		}
		if err := s.loans.Update(txCtx, loan); err != nil {
			return fmt.Errorf("failed to update loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"loan_id": id, "annual_rate": newRate.String()}).Info("loan rate updated")

	client := newUserIndex(s.users, s.log, nil).get(ctx, loan.UserID())
	return s.details(loan, client), nil
}

// PayInstallment pays the next unpaid installment of a loan from the client's
// principal savings account.
func (s *LoanService) PayInstallment(ctx context.Context, id uuid.UUID) (*PaymentResult, error) {
	// The owner never changes, so it is safe to read it before locking.
	current, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	var result PaymentResult
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Account first, then loan: same order as AssignLoan.
		account, err := s.accounts.LockPrincipal(txCtx, current.UserID())
		if err != nil {
			if KindOf(err) == KindNotFound {
				return ErrMissingPrincipalAccount
			}
			return fmt.Errorf("failed to lock principal account: %w", err)
		}
		loan, err := s.loans.Lock(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to lock loan: %w", err)
		}

		now := s.clock.Now()
		next, ok := loan.NextUnpaid()
		if !ok {
			return ErrNoPendingInstallments
		}
		description := fmt.Sprintf("Loan %s installment %d", loan.Number(), next.Number)
		if _, err := account.Debit(next.Payment, description, OriginLoan, now); err != nil {
			return err
		}
		paid, err := loan.PayNextInstallment(now)
		if err != nil {
			return err
		}

		if err := s.loans.Update(txCtx, loan); err != nil {
			return fmt.Errorf("failed to update loan: %w", err)
		}
		if err := s.accounts.Update(txCtx, account); err != nil {
			return fmt.Errorf("failed to update principal account: %w", err)
		}

		result = PaymentResult{
			Installment:    paid,
			Loan:           loan.Summary(),
			AccountBalance: account.Balance(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":     id,
		"installment": result.Installment.Number,
		"status":      result.Loan.Status,
	}).Info("loan installment paid")

	return &result, nil
}

// MarkOverdueInstallments moves every pending installment due before today to
// OVERDUE and marks the owning loans DELINQUENT, all in one transaction.
// Running it again on the same day changes nothing.
func (s *LoanService) MarkOverdueInstallments(ctx context.Context) (SweepResult, error) {
	today := amortization.DateOf(s.clock.Now())

	var result SweepResult
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		loans, err := s.loans.LockOverdueCandidates(txCtx, today)
		if err != nil {
			return fmt.Errorf("failed to load overdue candidates: %w", err)
		}

		result = SweepResult{}
		for _, loan := range loans {
			marked := loan.MarkOverdue(today)
			if marked == 0 {
				continue
			}
			if err := s.loans.Update(txCtx, loan); err != nil {
				return fmt.Errorf("failed to update loan %s: %w", loan.ID(), err)
			}
			result.Installments += marked
			result.Loans++
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"date":         today.Format(time.DateOnly),
		"installments": result.Installments,
		"loans":        result.Loans,
	}).Info("overdue sweep finished")

	return result, nil
}

// ListActiveLoans returns every active loan, newest first.
func (s *LoanService) ListActiveLoans(ctx context.Context) ([]LoanSummary, error) {
	loans, err := s.loans.List(ctx, LoanFilter{Statuses: []LoanStatus{LoanStatusActive}})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return s.summaries(ctx, loans, nil), nil
}

// SearchLoans finds loans of clients whose national id contains fragment.
// Without a status it returns ACTIVE and COMPLETED loans. Active loans come
// first, then newest first.
func (s *LoanService) SearchLoans(ctx context.Context, nationalIDFragment string, status *LoanStatus) ([]LoanSummary, error) {
	clients, err := s.users.FindClients(ctx, nationalIDFragment)
	if err != nil {
		return nil, fmt.Errorf("failed to find clients: %w", err)
	}
	if len(clients) == 0 {
		return []LoanSummary{}, nil
	}

	statuses := []LoanStatus{LoanStatusActive, LoanStatusCompleted}
	if status != nil {
		statuses = []LoanStatus{*status}
	}

	loans, err := s.loans.List(ctx, LoanFilter{UserIDs: userIDs(clients), Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	out := s.summaries(ctx, loans, clients)
	slices.SortStableFunc(out, func(a, b LoanSummary) int {
		aActive, bActive := a.Status == LoanStatusActive, b.Status == LoanStatusActive
		switch {
		case aActive && !bActive:
			return -1
		case !aActive && bActive:
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// AssignableLoanClients lists active clients matching the national id
// fragment that hold no active loan, with the system average for comparison.
func (s *LoanService) AssignableLoanClients(ctx context.Context, nationalIDFragment string) (*AssignableLoanClients, error) {
	clients, err := s.users.FindClients(ctx, nationalIDFragment)
	if err != nil {
		return nil, fmt.Errorf("failed to find clients: %w", err)
	}

	overall, err := s.loans.CapitalStats(ctx, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("failed to compute capital stats: %w", err)
	}

	out := &AssignableLoanClients{AverageActiveCapital: overall.AverageActiveCapital, Clients: []AssignableClient{}}
	for _, client := range clients {
		if !client.IsEligibleClient() {
			continue
		}
		active, err := s.loans.HasActiveLoan(ctx, client.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check active loans: %w", err)
		}
		if active {
			continue
		}
		stats, err := s.loans.CapitalStats(ctx, client.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute capital stats: %w", err)
		}
		out.Clients = append(out.Clients, AssignableClient{User: client, Outstanding: stats.ClientOutstanding})
	}
	return out, nil
}

func (s *LoanService) details(loan *Loan, client *User) *LoanDetails {
	summary := loan.Summary()
	if client != nil {
		summary.ClientName = client.FullName
		summary.NationalID = client.NationalID
	}
	return &LoanDetails{Summary: summary, Installments: loan.Installments()}
}

func (s *LoanService) summaries(ctx context.Context, loans []*Loan, known []User) []LoanSummary {
	idx := newUserIndex(s.users, s.log, known)
	out := make([]LoanSummary, 0, len(loans))
	for _, loan := range loans {
		summary := loan.Summary()
		client := idx.get(ctx, loan.UserID())
		summary.ClientName = client.FullName
		summary.NationalID = client.NationalID
		out = append(out, summary)
	}
	return out
}
