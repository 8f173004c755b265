package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// uniqueViolation is the SQLSTATE of unique constraint violations.
const uniqueViolation = "23505"

// constraintErrors maps unique constraints and indexes to domain errors.
var constraintErrors = map[string]error{
	"savings_accounts_one_principal": domain.ErrDuplicatePrincipalAccount,
	"savings_accounts_number_key":    domain.ErrDuplicateNumber,
	"loans_one_open":                 domain.ErrDuplicateActiveLoan,
	"loans_number_key":               domain.ErrDuplicateNumber,
	"credit_cards_one_active":        domain.ErrDuplicateActiveCard,
	"credit_cards_number_key":        domain.ErrDuplicateNumber,
}

// translate turns unique violations into domain errors and wraps everything else.
func translate(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if domainErr, ok := constraintErrors[pgErr.ConstraintName]; ok {
			return domainErr
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// money formats an amount for a NUMERIC(18,2) column.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// parseDecimal reads a NUMERIC column scanned as text.
func parseDecimal(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", column, raw, err)
	}
	return d, nil
}
