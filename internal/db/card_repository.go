package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// CardRepository implements domain.CreditCardRepository using PostgreSQL.
type CardRepository struct {
	pool *pgxpool.Pool
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(pool *pgxpool.Pool) *CardRepository {
	return &CardRepository{pool: pool}
}

const cardColumns = `id, user_id, issued_by, card_number, cvc_hash, expiration_month, expiration_year,
	credit_limit::text, debt::text, status, created_at`

// Create persists a new card.
func (r *CardRepository) Create(ctx context.Context, card *domain.CreditCard) error {
	st := card.State()
	query := `
		INSERT INTO credit_cards (id, user_id, issued_by, card_number, cvc_hash, expiration_month,
			expiration_year, credit_limit, debt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	q := conn(ctx, r.pool)
	_, err := q.Exec(ctx, query, st.ID, st.UserID, st.IssuedBy, st.Number, st.CVCHash, st.ExpirationMonth,
		st.ExpirationYear, money(st.Limit), money(st.Debt), string(st.Status), st.CreatedAt)
	if err != nil {
		return translate(err, "create card")
	}
	return insertAttempts(ctx, q, card.NewAttempts())
}

// GetByID retrieves a card by its unique identifier.
func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CreditCard, error) {
	return r.one(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE id = $1`, id)
}

// Lock acquires a pessimistic lock on the card for the duration of the transaction.
// This method MUST be called within a transaction context.
func (r *CardRepository) Lock(ctx context.Context, id uuid.UUID) (*domain.CreditCard, error) {
	return r.one(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE id = $1 FOR UPDATE`, id)
}

// Update persists limit, debt and status and appends the card's new posting attempts.
func (r *CardRepository) Update(ctx context.Context, card *domain.CreditCard) error {
	st := card.State()
	query := `
		UPDATE credit_cards
		SET credit_limit = $2,
		    debt = $3,
		    status = $4
		WHERE id = $1
	`

	q := conn(ctx, r.pool)
	result, err := q.Exec(ctx, query, st.ID, money(st.Limit), money(st.Debt), string(st.Status))
	if err != nil {
		return translate(err, "update card")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrCardNotFound
	}
	return insertAttempts(ctx, q, card.NewAttempts())
}

// ListTransactions returns every posting attempt of a card, newest first.
func (r *CardRepository) ListTransactions(ctx context.Context, cardID uuid.UUID) ([]domain.CreditCardTransaction, error) {
	query := `
		SELECT id, card_id, amount::text, description, transaction_type, status, created_at
		FROM credit_card_transactions
		WHERE card_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list card transactions: %w", err)
	}
	defer rows.Close()

	out := []domain.CreditCardTransaction{}
	for rows.Next() {
		var tx domain.CreditCardTransaction
		var amount, txType, status string
		if err := rows.Scan(&tx.ID, &tx.CardID, &amount, &tx.Description, &txType, &status, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card transaction: %w", err)
		}
		if tx.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, err
		}
		tx.Type = domain.CardTransactionType(txType)
		tx.Status = domain.CardTransactionStatus(status)
		tx.CreatedAt = tx.CreatedAt.UTC()
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card transactions: %w", err)
	}
	return out, nil
}

// HasActiveCard reports whether the user holds an ACTIVE card.
func (r *CardRepository) HasActiveCard(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM credit_cards WHERE user_id = $1 AND status = $2)`,
		userID, string(domain.CardStatusActive),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active card: %w", err)
	}
	return exists, nil
}

// AverageDebt returns the average debt of ACTIVE cards.
func (r *CardRepository) AverageDebt(ctx context.Context) (decimal.Decimal, error) {
	var avg string
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(ROUND(AVG(debt), 2), 0)::text FROM credit_cards WHERE status = $1`,
		string(domain.CardStatusActive),
	).Scan(&avg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute average debt: %w", err)
	}
	return parseDecimal("average debt", avg)
}

// List returns cards matching filter, newest first.
func (r *CardRepository) List(ctx context.Context, filter domain.CardFilter) ([]*domain.CreditCard, error) {
	var where []string
	var args []any
	if len(filter.UserIDs) > 0 {
		ids := make([]string, 0, len(filter.UserIDs))
		for _, id := range filter.UserIDs {
			ids = append(ids, id.String())
		}
		args = append(args, ids)
		where = append(where, fmt.Sprintf("user_id = ANY($%d::uuid[])", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d::text[])", len(args)))
	}

	query := `SELECT ` + cardColumns + ` FROM credit_cards`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	out := []*domain.CreditCard{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		out = append(out, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return out, nil
}

// NumberExists reports whether a card number is taken.
func (r *CardRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM credit_cards WHERE card_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check card number: %w", err)
	}
	return exists, nil
}

func (r *CardRepository) one(ctx context.Context, query string, id uuid.UUID) (*domain.CreditCard, error) {
	card, err := scanCard(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

func scanCard(row pgx.Row) (*domain.CreditCard, error) {
	var st domain.CreditCardState
	var limit, debt, status string
	err := row.Scan(&st.ID, &st.UserID, &st.IssuedBy, &st.Number, &st.CVCHash, &st.ExpirationMonth,
		&st.ExpirationYear, &limit, &debt, &status, &st.CreatedAt)
	if err != nil {
		return nil, err
	}
	if st.Limit, err = parseDecimal("credit_limit", limit); err != nil {
		return nil, err
	}
	if st.Debt, err = parseDecimal("debt", debt); err != nil {
		return nil, err
	}
	st.Status = domain.CardStatus(status)
	st.CreatedAt = st.CreatedAt.UTC()
	return domain.RestoreCreditCard(st), nil
}

// insertAttempts stores posting attempts, approved and rejected alike.
func insertAttempts(ctx context.Context, q querier, attempts []domain.CreditCardTransaction) error {
	query := `
		INSERT INTO credit_card_transactions (id, card_id, amount, description, transaction_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	for _, a := range attempts {
		_, err := q.Exec(ctx, query, a.ID, a.CardID, money(a.Amount), a.Description, string(a.Type), string(a.Status), a.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert card transaction: %w", err)
		}
	}
	return nil
}
