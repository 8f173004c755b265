package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// LoanRepository implements domain.LoanRepository using PostgreSQL.
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanColumns = `l.id, l.user_id, l.loan_number, l.capital::text, l.annual_rate::text, l.term_months, l.status, l.high_risk, l.created_at`

// Create persists a new loan and its schedule.
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	st := loan.State()
	query := `
		INSERT INTO loans (id, user_id, loan_number, capital, annual_rate, term_months, status, high_risk, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	q := conn(ctx, r.pool)
	_, err := q.Exec(ctx, query, st.ID, st.UserID, st.Number, money(st.Capital), money(st.AnnualRate),
		st.TermMonths, string(st.Status), st.HighRisk, st.CreatedAt)
	if err != nil {
		return translate(err, "create loan")
	}
	return upsertInstallments(ctx, q, st.Installments)
}

// GetByID retrieves a loan and its schedule.
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.one(ctx, `SELECT `+loanColumns+` FROM loans l WHERE l.id = $1`, id)
}

// Lock acquires a pessimistic lock on the loan for the duration of the transaction.
// This method MUST be called within a transaction context.
func (r *LoanRepository) Lock(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.one(ctx, `SELECT `+loanColumns+` FROM loans l WHERE l.id = $1 FOR UPDATE`, id)
}

// Update writes the schedule first and then the loan row. Installments that
// are no longer part of the schedule are removed before the new ones are
// written, so installment numbers stay unique per loan.
func (r *LoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	st := loan.State()
	q := conn(ctx, r.pool)

	keep := make([]string, 0, len(st.Installments))
	for _, inst := range st.Installments {
		keep = append(keep, inst.ID.String())
	}
	if _, err := q.Exec(ctx, `DELETE FROM loan_installments WHERE loan_id = $1 AND NOT (id = ANY($2::uuid[]))`, st.ID, keep); err != nil {
		return fmt.Errorf("failed to prune installments: %w", err)
	}
	if err := upsertInstallments(ctx, q, st.Installments); err != nil {
		return err
	}

	query := `
		UPDATE loans
		SET annual_rate = $2,
		    status = $3
		WHERE id = $1
	`
	result, err := q.Exec(ctx, query, st.ID, money(st.AnnualRate), string(st.Status))
	if err != nil {
		return translate(err, "update loan")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

// HasActiveLoan reports whether the user has an ACTIVE or DELINQUENT loan.
func (r *LoanRepository) HasActiveLoan(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM loans WHERE user_id = $1 AND status IN ($2, $3))`,
		userID, string(domain.LoanStatusActive), string(domain.LoanStatusDelinquent),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active loan: %w", err)
	}
	return exists, nil
}

// CapitalStats returns the average ACTIVE capital and the user's outstanding capital.
func (r *LoanRepository) CapitalStats(ctx context.Context, userID uuid.UUID) (domain.CapitalStats, error) {
	query := `
		SELECT
			COALESCE(ROUND(AVG(capital) FILTER (WHERE status = 'ACTIVE'), 2), 0)::text,
			COALESCE(SUM(capital) FILTER (WHERE user_id = $1 AND status IN ('ACTIVE', 'DELINQUENT')), 0)::text
		FROM loans
	`

	var avg, outstanding string
	if err := conn(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&avg, &outstanding); err != nil {
		return domain.CapitalStats{}, fmt.Errorf("failed to compute capital stats: %w", err)
	}

	var stats domain.CapitalStats
	var err error
	if stats.AverageActiveCapital, err = parseDecimal("average capital", avg); err != nil {
		return domain.CapitalStats{}, err
	}
	if stats.ClientOutstanding, err = parseDecimal("outstanding capital", outstanding); err != nil {
		return domain.CapitalStats{}, err
	}
	return stats, nil
}

// LockOverdueCandidates locks every open loan owning a pending installment due before today.
// This method MUST be called within a transaction context.
func (r *LoanRepository) LockOverdueCandidates(ctx context.Context, today time.Time) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM loans l
		WHERE l.status IN ('ACTIVE', 'DELINQUENT')
		  AND EXISTS (
			SELECT 1 FROM loan_installments i
			WHERE i.loan_id = l.id AND i.status = 'PENDING' AND i.due_date < $1
		  )
		ORDER BY l.created_at, l.id
		FOR UPDATE OF l
	`
	return r.many(ctx, query, today)
}

// List returns loans matching filter, newest first.
func (r *LoanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	var where []string
	var args []any
	if len(filter.UserIDs) > 0 {
		ids := make([]string, 0, len(filter.UserIDs))
		for _, id := range filter.UserIDs {
			ids = append(ids, id.String())
		}
		args = append(args, ids)
		where = append(where, fmt.Sprintf("l.user_id = ANY($%d::uuid[])", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("l.status = ANY($%d::text[])", len(args)))
	}

	query := `SELECT ` + loanColumns + ` FROM loans l`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY l.created_at DESC, l.id`
	return r.many(ctx, query, args...)
}

// NumberExists reports whether a loan number is taken.
func (r *LoanRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE loan_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check loan number: %w", err)
	}
	return exists, nil
}

func (r *LoanRepository) one(ctx context.Context, query string, args ...any) (*domain.Loan, error) {
	q := conn(ctx, r.pool)
	st, err := scanLoan(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	states := []*domain.LoanState{st}
	if err := loadInstallments(ctx, q, states); err != nil {
		return nil, err
	}
	return domain.RestoreLoan(*st), nil
}

func (r *LoanRepository) many(ctx context.Context, query string, args ...any) ([]*domain.Loan, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}

	var states []*domain.LoanState
	for rows.Next() {
		st, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		states = append(states, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}

	if err := loadInstallments(ctx, q, states); err != nil {
		return nil, err
	}
	out := make([]*domain.Loan, 0, len(states))
	for _, st := range states {
		out = append(out, domain.RestoreLoan(*st))
	}
	return out, nil
}

func scanLoan(row pgx.Row) (*domain.LoanState, error) {
	var st domain.LoanState
	var capital, rate, status string
	if err := row.Scan(&st.ID, &st.UserID, &st.Number, &capital, &rate, &st.TermMonths, &status, &st.HighRisk, &st.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if st.Capital, err = parseDecimal("capital", capital); err != nil {
		return nil, err
	}
	if st.AnnualRate, err = parseDecimal("annual_rate", rate); err != nil {
		return nil, err
	}
	st.Status = domain.LoanStatus(status)
	st.CreatedAt = st.CreatedAt.UTC()
	return &st, nil
}

// loadInstallments fills the schedules of states with one query.
func loadInstallments(ctx context.Context, q querier, states []*domain.LoanState) error {
	if len(states) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.LoanState, len(states))
	ids := make([]string, 0, len(states))
	for _, st := range states {
		byID[st.ID] = st
		ids = append(ids, st.ID.String())
	}

	query := `
		SELECT id, loan_id, installment_number, due_date, payment::text, capital::text,
		       interest::text, remaining::text, status, paid_at
		FROM loan_installments
		WHERE loan_id = ANY($1::uuid[])
		ORDER BY loan_id, installment_number
	`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inst domain.LoanInstallment
		var payment, capital, interest, remaining, status string
		if err := rows.Scan(&inst.ID, &inst.LoanID, &inst.Number, &inst.DueDate, &payment, &capital,
			&interest, &remaining, &status, &inst.PaidAt); err != nil {
			return fmt.Errorf("failed to scan installment: %w", err)
		}
		var err error
		if inst.Payment, err = parseDecimal("payment", payment); err != nil {
			return err
		}
		if inst.Capital, err = parseDecimal("capital", capital); err != nil {
			return err
		}
		if inst.Interest, err = parseDecimal("interest", interest); err != nil {
			return err
		}
		if inst.Remaining, err = parseDecimal("remaining", remaining); err != nil {
			return err
		}
		inst.Status = domain.InstallmentStatus(status)
		inst.DueDate = time.Date(inst.DueDate.Year(), inst.DueDate.Month(), inst.DueDate.Day(), 0, 0, 0, 0, time.UTC)
		if inst.PaidAt != nil {
			paid := inst.PaidAt.UTC()
			inst.PaidAt = &paid
		}
		st := byID[inst.LoanID]
		st.Installments = append(st.Installments, inst)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate installments: %w", err)
	}
	return nil
}

func upsertInstallments(ctx context.Context, q querier, installments []domain.LoanInstallment) error {
	query := `
		INSERT INTO loan_installments
			(id, loan_id, installment_number, due_date, payment, capital, interest, remaining, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    paid_at = EXCLUDED.paid_at
	`

	for _, inst := range installments {
		_, err := q.Exec(ctx, query, inst.ID, inst.LoanID, inst.Number, inst.DueDate,
			money(inst.Payment), money(inst.Capital), money(inst.Interest), money(inst.Remaining),
			string(inst.Status), inst.PaidAt)
		if err != nil {
			return fmt.Errorf("failed to write installment %d: %w", inst.Number, err)
		}
	}
	return nil
}
