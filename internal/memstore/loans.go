package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// LoanRepository implements domain.LoanRepository in memory.
type LoanRepository struct {
	s *Store
}

// Create stores a new loan with its schedule.
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	st := loan.State()
	return r.s.view(ctx, func(t *tables) error {
		if st.Status.IsOpen() {
			for _, l := range t.loans {
				if l.ID != st.ID && l.UserID == st.UserID && l.Status.IsOpen() {
					return domain.ErrDuplicateActiveLoan
				}
			}
		}
		t.loans[st.ID] = st
		return nil
	})
}

// GetByID returns the loan with the given id.
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var loan *domain.Loan
	err := r.s.view(ctx, func(t *tables) error {
		st, ok := t.loans[id]
		if !ok {
			return domain.ErrLoanNotFound
		}
		loan = domain.RestoreLoan(st)
		return nil
	})
	return loan, err
}

// Lock returns the loan; the surrounding transaction already holds the store.
func (r *LoanRepository) Lock(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.GetByID(ctx, id)
}

// Update replaces the stored loan and schedule.
func (r *LoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	st := loan.State()
	return r.s.view(ctx, func(t *tables) error {
		if _, ok := t.loans[st.ID]; !ok {
			return domain.ErrLoanNotFound
		}
		t.loans[st.ID] = st
		return nil
	})
}

// HasActiveLoan reports whether the user has an ACTIVE or DELINQUENT loan.
func (r *LoanRepository) HasActiveLoan(ctx context.Context, userID uuid.UUID) (bool, error) {
	found := false
	err := r.s.view(ctx, func(t *tables) error {
		for _, l := range t.loans {
			if l.UserID == userID && l.Status.IsOpen() {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

// CapitalStats returns the average ACTIVE capital and the user's outstanding capital.
func (r *LoanRepository) CapitalStats(ctx context.Context, userID uuid.UUID) (domain.CapitalStats, error) {
	stats := domain.CapitalStats{AverageActiveCapital: decimal.Zero, ClientOutstanding: decimal.Zero}
	err := r.s.view(ctx, func(t *tables) error {
		total, count := decimal.Zero, 0
		for _, l := range t.loans {
			if l.Status == domain.LoanStatusActive {
				total = total.Add(l.Capital)
				count++
			}
			if l.UserID == userID && l.Status.IsOpen() {
				stats.ClientOutstanding = stats.ClientOutstanding.Add(l.Capital)
			}
		}
		if count > 0 {
			stats.AverageActiveCapital = total.Div(decimal.NewFromInt(int64(count))).Round(2)
		}
		return nil
	})
	return stats, err
}

// LockOverdueCandidates returns open loans with a pending installment due before today.
func (r *LoanRepository) LockOverdueCandidates(ctx context.Context, today time.Time) ([]*domain.Loan, error) {
	var out []*domain.Loan
	err := r.s.view(ctx, func(t *tables) error {
		for _, l := range t.loans {
			if !l.Status.IsOpen() {
				continue
			}
			for _, inst := range l.Installments {
				if inst.IsOverdueOn(today) {
					out = append(out, domain.RestoreLoan(l))
					break
				}
			}
		}
		return nil
	})
	return out, err
}

// List returns loans matching filter, newest first.
func (r *LoanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	var states []domain.LoanState
	err := r.s.view(ctx, func(t *tables) error {
		for _, l := range t.loans {
			if len(filter.UserIDs) > 0 && !containsID(filter.UserIDs, l.UserID) {
				continue
			}
			if len(filter.Statuses) > 0 && !containsLoanStatus(filter.Statuses, l.Status) {
				continue
			}
			states = append(states, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(states, func(i, j int) bool { return states[i].CreatedAt.After(states[j].CreatedAt) })
	out := make([]*domain.Loan, 0, len(states))
	for _, st := range states {
		out = append(out, domain.RestoreLoan(st))
	}
	return out, nil
}

// NumberExists reports whether a loan number is taken.
func (r *LoanRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	exists := false
	err := r.s.view(ctx, func(t *tables) error {
		for _, l := range t.loans {
			if l.Number == number {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func containsLoanStatus(statuses []domain.LoanStatus, s domain.LoanStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
