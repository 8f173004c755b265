package domain

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const cvcDigits = 3

// CardServiceDeps groups the collaborators of CardService.
type CardServiceDeps struct {
	Users     UserDirectory
	Cards     CreditCardRepository
	TxManager TransactionManager
	Clock     Clock
	Numbers   NumberSource
	Hasher    Hasher
	// Optional notifier; nil disables limit-change notifications
	Notifier Notifier
	Logger   logrus.FieldLogger
}

// CardService handles credit card issuance, postings, limit changes and cancellation.
type CardService struct {
	users     UserDirectory
	cards     CreditCardRepository
	txManager TransactionManager
	clock     Clock
	numbers   NumberSource
	hasher    Hasher
	notifier  Notifier
	log       logrus.FieldLogger
}

// NewCardService creates a new instance of CardService.
func NewCardService(deps CardServiceDeps) *CardService {
	return &CardService{
		users:     deps.Users,
		cards:     deps.Cards,
		txManager: deps.TxManager,
		clock:     deps.Clock,
		numbers:   deps.Numbers,
		hasher:    deps.Hasher,
		notifier:  deps.Notifier,
		log:       orDiscard(deps.Logger),
	}
}

// CardView is a card as shown to callers: the number is always masked.
type CardView struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	ClientName      string
	NationalID      string
	MaskedNumber    string
	Last4           string
	ExpirationMonth int
	ExpirationYear  int
	Limit           decimal.Decimal
	Debt            decimal.Decimal
	Available       decimal.Decimal
	Status          CardStatus
	CreatedAt       time.Time
}

// CardDetails is a card with every posting attempt, newest first.
type CardDetails struct {
	Card         CardView
	Transactions []CreditCardTransaction
}

// AssignableCardClients lists clients without an active card.
type AssignableCardClients struct {
	AverageDebt decimal.Decimal
	Clients     []User
}

// AssignCard issues a card to a client. The verification code is hashed
// right away and never stored or returned in plain text.
func (s *CardService) AssignCard(ctx context.Context, clientID uuid.UUID, initialLimit decimal.Decimal, issuedBy uuid.UUID) (*CardView, error) {
	if !ValidAmount(initialLimit) {
		return nil, ErrInvalidLimit
	}

	client, err := eligibleClient(ctx, s.users, clientID)
	if err != nil {
		return nil, err
	}

	var card *CreditCard
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		active, err := s.cards.HasActiveCard(txCtx, clientID)
		if err != nil {
			return fmt.Errorf("failed to check active cards: %w", err)
		}
		if active {
			return ErrDuplicateActiveCard
		}

		number, err := uniqueNumber(txCtx, func() (string, error) {
			return s.numbers.Digits(CardNumberLength)
		}, s.cards.NumberExists)
		if err != nil {
			return err
		}

		cvc, err := s.numbers.Digits(cvcDigits)
		if err != nil {
			return fmt.Errorf("failed to generate cvc: %w", err)
		}

		card, err = NewCreditCard(NewCreditCardParams{
			UserID:   clientID,
			IssuedBy: issuedBy,
			Number:   number,
			CVCHash:  s.hasher.Hash(cvc),
			Limit:    initialLimit,
			IssuedAt: s.clock.Now(),
		})
		if err != nil {
			return err
		}

		if err := s.cards.Create(txCtx, card); err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"card_id":   card.ID(),
		"client_id": clientID,
		"issued_by": issuedBy,
	}).Info("credit card assigned")

	view := cardView(card, client)
	return &view, nil
}

// GetCard returns a card with all its posting attempts.
func (s *CardService) GetCard(ctx context.Context, id uuid.UUID) (*CardDetails, error) {
	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	txs, err := s.cards.ListTransactions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list card transactions: %w", err)
	}
	client := newUserIndex(s.users, s.log, nil).get(ctx, card.UserID())
	return &CardDetails{Card: cardView(card, client), Transactions: txs}, nil
}

// PostTransaction records a posting attempt. Attempts over the limit are
// stored as REJECTED for audit and returned without an error.
func (s *CardService) PostTransaction(ctx context.Context, cardID uuid.UUID, txType CardTransactionType, amount decimal.Decimal, description string) (*CreditCardTransaction, error) {
	if !txType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransactionType, txType)
	}
	if !ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	var posted CreditCardTransaction
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		card, err := s.cards.Lock(txCtx, cardID)
		if err != nil {
			return fmt.Errorf("failed to lock card: %w", err)
		}
		posted, err = card.RegisterTransaction(txType, amount, description, s.clock.Now())
		if err != nil {
			return err
		}
		if err := s.cards.Update(txCtx, card); err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"card_id": cardID,
		"type":    txType,
		"amount":  amount.String(),
	})
	if posted.Status == CardTransactionRejected {
		entry.Warn("card transaction rejected: credit limit exceeded")
	} else {
		entry.Info("card transaction approved")
	}

	return &posted, nil
}

// UpdateLimit changes a card's limit and notifies the client after commit.
// Notification failures are logged and never undo the change.
func (s *CardService) UpdateLimit(ctx context.Context, cardID uuid.UUID, newLimit decimal.Decimal) (*CardView, error) {
	if !ValidAmount(newLimit) {
		return nil, ErrInvalidLimit
	}

	var card *CreditCard
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		card, err = s.cards.Lock(txCtx, cardID)
		if err != nil {
			return fmt.Errorf("failed to lock card: %w", err)
		}
		if err := card.ChangeLimit(newLimit); err != nil {
			return err
		}
		if err := s.cards.Update(txCtx, card); err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	client := newUserIndex(s.users, s.log, nil).get(ctx, card.UserID())
	s.log.WithFields(logrus.Fields{"card_id": cardID, "limit": newLimit.String()}).Info("credit limit updated")

	if s.notifier != nil {
		go func(email, last4 string, limit decimal.Decimal) {
			notifyCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := s.notifier.NotifyCreditLimitChanged(notifyCtx, email, last4, limit); err != nil {
				s.log.WithError(err).WithField("card_id", cardID).Warn("failed to send limit change notification")
			}
		}(client.Email, card.Last4(), newLimit)
	}

	view := cardView(card, client)
	return &view, nil
}

// CancelCard closes a card with no outstanding debt.
func (s *CardService) CancelCard(ctx context.Context, cardID uuid.UUID) (*CardView, error) {
	var card *CreditCard
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		card, err = s.cards.Lock(txCtx, cardID)
		if err != nil {
			return fmt.Errorf("failed to lock card: %w", err)
		}
		if err := card.Cancel(); err != nil {
			return err
		}
		if err := s.cards.Update(txCtx, card); err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("card_id", cardID).Info("credit card cancelled")

	client := newUserIndex(s.users, s.log, nil).get(ctx, card.UserID())
	view := cardView(card, client)
	return &view, nil
}

// ListActiveCards returns every active card, newest first.
func (s *CardService) ListActiveCards(ctx context.Context) ([]CardView, error) {
	cards, err := s.cards.List(ctx, CardFilter{Statuses: []CardStatus{CardStatusActive}})
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return s.views(ctx, cards, nil), nil
}

// SearchCards finds the cards of the client with exactly this national id,
// optionally filtered by status. Active cards come first, then newest first.
func (s *CardService) SearchCards(ctx context.Context, nationalID string, status *CardStatus) ([]CardView, error) {
	candidates, err := s.users.FindClients(ctx, nationalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find clients: %w", err)
	}
	var clients []User
	for _, c := range candidates {
		if c.NationalID == nationalID {
			clients = append(clients, c)
		}
	}
	if len(clients) == 0 {
		return []CardView{}, nil
	}

	filter := CardFilter{UserIDs: userIDs(clients)}
	if status != nil {
		filter.Statuses = []CardStatus{*status}
	}
	cards, err := s.cards.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	out := s.views(ctx, cards, clients)
	slices.SortStableFunc(out, func(a, b CardView) int {
		aActive, bActive := a.Status == CardStatusActive, b.Status == CardStatusActive
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

// AssignableCardClients lists active clients matching the fragment that hold no active card.
func (s *CardService) AssignableCardClients(ctx context.Context, nationalIDFragment string) (*AssignableCardClients, error) {
	clients, err := s.users.FindClients(ctx, nationalIDFragment)
	if err != nil {
		return nil, fmt.Errorf("failed to find clients: %w", err)
	}
	avg, err := s.cards.AverageDebt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average debt: %w", err)
	}

	out := &AssignableCardClients{AverageDebt: avg, Clients: []User{}}
	for _, client := range clients {
		if !client.IsEligibleClient() {
			continue
		}
		active, err := s.cards.HasActiveCard(ctx, client.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check active cards: %w", err)
		}
		if !active {
			out.Clients = append(out.Clients, client)
		}
	}
	return out, nil
}

func (s *CardService) views(ctx context.Context, cards []*CreditCard, known []User) []CardView {
	idx := newUserIndex(s.users, s.log, known)
	out := make([]CardView, 0, len(cards))
	for _, card := range cards {
		out = append(out, cardView(card, idx.get(ctx, card.UserID())))
	}
	return out
}

func cardView(card *CreditCard, client *User) CardView {
	st := card.State()
	v := CardView{
		ID:              st.ID,
		UserID:          st.UserID,
		MaskedNumber:    card.MaskedNumber(),
		Last4:           card.Last4(),
		ExpirationMonth: st.ExpirationMonth,
		ExpirationYear:  st.ExpirationYear,
		Limit:           st.Limit,
		Debt:            st.Debt,
		Available:       card.Available(),
		Status:          st.Status,
		CreatedAt:       st.CreatedAt,
	}
	if client != nil {
		v.ClientName = client.FullName
		v.NationalID = client.NationalID
	}
	return v
}
