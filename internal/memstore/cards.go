package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// CardRepository implements domain.CreditCardRepository in memory.
type CardRepository struct {
	s *Store
}

// Create stores a new card.
func (r *CardRepository) Create(ctx context.Context, card *domain.CreditCard) error {
	st := card.State()
	return r.s.view(ctx, func(t *tables) error {
		for _, c := range t.cards {
			if c.Number == st.Number {
				return domain.ErrDuplicateNumber
			}
			if st.Status == domain.CardStatusActive && c.UserID == st.UserID && c.Status == domain.CardStatusActive {
				return domain.ErrDuplicateActiveCard
			}
		}
		t.cards[st.ID] = st
		return nil
	})
}

// GetByID returns the card with the given id.
func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CreditCard, error) {
	var card *domain.CreditCard
	err := r.s.view(ctx, func(t *tables) error {
		st, ok := t.cards[id]
		if !ok {
			return domain.ErrCardNotFound
		}
		card = domain.RestoreCreditCard(st)
		return nil
	})
	return card, err
}

// Lock returns the card; the surrounding transaction already holds the store.
func (r *CardRepository) Lock(ctx context.Context, id uuid.UUID) (*domain.CreditCard, error) {
	return r.GetByID(ctx, id)
}

// Update stores limit, debt, status and the card's new posting attempts.
func (r *CardRepository) Update(ctx context.Context, card *domain.CreditCard) error {
	st := card.State()
	return r.s.view(ctx, func(t *tables) error {
		if _, ok := t.cards[st.ID]; !ok {
			return domain.ErrCardNotFound
		}
		t.cards[st.ID] = st
		t.cardTxs = appendNew(t.cardTxs, card.NewAttempts(), attemptID)
		return nil
	})
}

// ListTransactions returns every posting attempt of a card, newest first.
func (r *CardRepository) ListTransactions(ctx context.Context, cardID uuid.UUID) ([]domain.CreditCardTransaction, error) {
	out := []domain.CreditCardTransaction{}
	err := r.s.view(ctx, func(t *tables) error {
		for i := len(t.cardTxs) - 1; i >= 0; i-- {
			if tx := t.cardTxs[i]; tx.CardID == cardID {
				out = append(out, tx)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

// HasActiveCard reports whether the user holds an ACTIVE card.
func (r *CardRepository) HasActiveCard(ctx context.Context, userID uuid.UUID) (bool, error) {
	found := false
	err := r.s.view(ctx, func(t *tables) error {
		for _, c := range t.cards {
			if c.UserID == userID && c.Status == domain.CardStatusActive {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

// AverageDebt returns the average debt of ACTIVE cards.
func (r *CardRepository) AverageDebt(ctx context.Context) (decimal.Decimal, error) {
	avg := decimal.Zero
	err := r.s.view(ctx, func(t *tables) error {
		total, count := decimal.Zero, 0
		for _, c := range t.cards {
			if c.Status == domain.CardStatusActive {
				total = total.Add(c.Debt)
				count++
			}
		}
		if count > 0 {
			avg = total.Div(decimal.NewFromInt(int64(count))).Round(2)
		}
		return nil
	})
	return avg, err
}

// List returns cards matching filter, newest first.
func (r *CardRepository) List(ctx context.Context, filter domain.CardFilter) ([]*domain.CreditCard, error) {
	var states []domain.CreditCardState
	err := r.s.view(ctx, func(t *tables) error {
		for _, c := range t.cards {
			if len(filter.UserIDs) > 0 && !containsID(filter.UserIDs, c.UserID) {
				continue
			}
			if len(filter.Statuses) > 0 && !containsCardStatus(filter.Statuses, c.Status) {
				continue
			}
			states = append(states, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(states, func(i, j int) bool { return states[i].CreatedAt.After(states[j].CreatedAt) })
	out := make([]*domain.CreditCard, 0, len(states))
	for _, st := range states {
		out = append(out, domain.RestoreCreditCard(st))
	}
	return out, nil
}

// NumberExists reports whether a card number is taken.
func (r *CardRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	exists := false
	err := r.s.view(ctx, func(t *tables) error {
		for _, c := range t.cards {
			if c.Number == number {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func containsCardStatus(statuses []domain.CardStatus, s domain.CardStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func attemptID(tx domain.CreditCardTransaction) uuid.UUID { return tx.ID }
