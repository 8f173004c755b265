package domain

import (
	"errors"
)

var (
	// ErrInvalidAmount is returned when a monetary amount is not positive or has a fraction of a cent
	ErrInvalidAmount = errors.New("invalid amount: must be positive with at most 2 decimal places")

	// ErrInvalidRate is returned when an annual rate is not in (0, 1000) or has more than 2 decimal places
	ErrInvalidRate = errors.New("invalid annual rate: must be positive, below 1000 with at most 2 decimal places")

	// ErrInvalidTerm is returned when a loan term is not a positive multiple of 6 months
	ErrInvalidTerm = errors.New("invalid term: must be a positive multiple of 6 months")

	// ErrInvalidLimit is returned when a credit limit is not positive or has a fraction of a cent
	ErrInvalidLimit = errors.New("invalid credit limit: must be positive with at most 2 decimal places")

	// ErrInvalidTransactionType is returned for an unknown card transaction type
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInvalidAccountType is returned for an unknown savings account type
	ErrInvalidAccountType = errors.New("invalid account type")

	// ErrInsufficientFunds is returned when a debit exceeds the account balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotActive is returned when a ledger operation targets a closed account
	ErrAccountNotActive = errors.New("account is not active")

	// ErrCardNotActive is returned when a transaction is posted to a cancelled card
	ErrCardNotActive = errors.New("card is not active")

	// ErrLimitBelowDebt is returned when a new limit would be lower than the current debt
	ErrLimitBelowDebt = errors.New("credit limit cannot be lower than current debt")

	// ErrOutstandingDebt is returned when cancelling a card that still has debt
	ErrOutstandingDebt = errors.New("card has outstanding debt")

	// ErrClientIneligible is returned when the user is unknown, inactive or not a client
	ErrClientIneligible = errors.New("user is not an active client")

	// ErrDuplicateActiveLoan is returned when the client already has an active loan
	ErrDuplicateActiveLoan = errors.New("client already has an active loan")

	// ErrDuplicateActiveCard is returned when the client already has an active card
	ErrDuplicateActiveCard = errors.New("client already has an active card")

	// ErrDuplicatePrincipalAccount is returned when the client already has a principal account
	ErrDuplicatePrincipalAccount = errors.New("client already has a principal account")

	// ErrMissingPrincipalAccount is returned when a disbursement has no principal account to land in
	ErrMissingPrincipalAccount = errors.New("client has no principal savings account")

	// ErrLoanNotActive is returned when an operation requires an active loan
	ErrLoanNotActive = errors.New("loan is not active")

	// ErrLoanNotPayable is returned when paying an installment of a completed or cancelled loan
	ErrLoanNotPayable = errors.New("loan does not accept payments")

	// ErrNoPendingInstallments is returned when every installment is already paid
	ErrNoPendingInstallments = errors.New("loan has no pending installments")

	// ErrLoanNotFound is returned when a loan doesn't exist
	ErrLoanNotFound = errors.New("loan not found")

	// ErrCardNotFound is returned when a credit card doesn't exist
	ErrCardNotFound = errors.New("credit card not found")

	// ErrAccountNotFound is returned when a savings account doesn't exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrUserNotFound is returned when a user doesn't exist
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateNumber is returned when a card, loan or account number is already in use
	ErrDuplicateNumber = errors.New("number already in use")

	// ErrNumberSpaceExhausted is returned when no unique number could be generated
	ErrNumberSpaceExhausted = errors.New("could not generate a unique number")
)

// Kind classifies an error for callers that translate it into a response.
type Kind int

const (
	// KindInternal covers infrastructure failures and anything unclassified
	KindInternal Kind = iota
	// KindValidation covers malformed input rejected before any mutation
	KindValidation
	// KindConflict covers business-rule violations
	KindConflict
	// KindNotFound covers unknown identifiers
	KindNotFound
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidAmount, KindValidation},
	{ErrInvalidRate, KindValidation},
	{ErrInvalidTerm, KindValidation},
	{ErrInvalidLimit, KindValidation},
	{ErrInvalidTransactionType, KindValidation},
	{ErrInvalidAccountType, KindValidation},
	{ErrInsufficientFunds, KindConflict},
	{ErrAccountNotActive, KindConflict},
	{ErrCardNotActive, KindConflict},
	{ErrLimitBelowDebt, KindConflict},
	{ErrOutstandingDebt, KindConflict},
	{ErrClientIneligible, KindConflict},
	{ErrDuplicateActiveLoan, KindConflict},
	{ErrDuplicateActiveCard, KindConflict},
	{ErrDuplicatePrincipalAccount, KindConflict},
	{ErrMissingPrincipalAccount, KindConflict},
	{ErrDuplicateNumber, KindConflict},
	{ErrLoanNotActive, KindConflict},
	{ErrLoanNotPayable, KindConflict},
	{ErrNoPendingInstallments, KindConflict},
	{ErrLoanNotFound, KindNotFound},
	{ErrCardNotFound, KindNotFound},
	{ErrAccountNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
}

// KindOf reports the kind of the first sentinel found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
