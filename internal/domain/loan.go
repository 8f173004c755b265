package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/amortization"
)

// TermStepMonths is the granularity loan terms must follow.
const TermStepMonths = 6

// Loan is an installment loan and the schedule it exclusively owns.
// Capital and term never change after creation; rate changes regenerate
// the unpaid tail of the schedule.
type Loan struct {
	id         uuid.UUID
	userID     uuid.UUID
	number     string
	capital    decimal.Decimal
	annualRate decimal.Decimal
	termMonths int
	status     LoanStatus
	highRisk   bool
	createdAt  time.Time

	installments []LoanInstallment // ordered by Number, 1..N
}

// LoanState is the persisted shape of a loan.
type LoanState struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Number       string
	Capital      decimal.Decimal
	AnnualRate   decimal.Decimal
	TermMonths   int
	Status       LoanStatus
	HighRisk     bool
	CreatedAt    time.Time
	Installments []LoanInstallment
}

// NewLoanParams carries what is needed to originate a loan.
type NewLoanParams struct {
	UserID     uuid.UUID
	Number     string
	Capital    decimal.Decimal
	AnnualRate decimal.Decimal
	TermMonths int
	HighRisk   bool
	IssuedAt   time.Time
}

// ValidateLoanTerms checks capital, rate and term before anything is touched.
func ValidateLoanTerms(capital, annualRate decimal.Decimal, termMonths int) error {
	if !ValidAmount(capital) {
		return ErrInvalidAmount
	}
	if !ValidRate(annualRate) {
		return ErrInvalidRate
	}
	if termMonths <= 0 || termMonths%TermStepMonths != 0 {
		return ErrInvalidTerm
	}
	return nil
}

// NewLoan originates an active loan with its full French schedule. The
// first installment is due one month after the issue date.
func NewLoan(p NewLoanParams) (*Loan, error) {
	if err := ValidateLoanTerms(p.Capital, p.AnnualRate, p.TermMonths); err != nil {
		return nil, err
	}

	loan := &Loan{
		id:         uuid.New(),
		userID:     p.UserID,
		number:     p.Number,
		capital:    p.Capital,
		annualRate: p.AnnualRate,
		termMonths: p.TermMonths,
		status:     LoanStatusActive,
		highRisk:   p.HighRisk,
		createdAt:  p.IssuedAt,
	}

	schedule, err := amortization.Generate(p.Capital, p.AnnualRate, p.TermMonths, amortization.DateOf(p.IssuedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate schedule: %w", err)
	}
	loan.installments = loan.toInstallments(schedule)

	return loan, nil
}

// RestoreLoan rebuilds a loan from persisted state.
func RestoreLoan(s LoanState) *Loan {
	installments := make([]LoanInstallment, len(s.Installments))
	copy(installments, s.Installments)
	return &Loan{
		id:           s.ID,
		userID:       s.UserID,
		number:       s.Number,
		capital:      s.Capital,
		annualRate:   s.AnnualRate,
		termMonths:   s.TermMonths,
		status:       s.Status,
		highRisk:     s.HighRisk,
		createdAt:    s.CreatedAt,
		installments: installments,
	}
}

// ID returns the unique identifier of the loan.
func (l *Loan) ID() uuid.UUID { return l.id }

// UserID returns the borrowing client.
func (l *Loan) UserID() uuid.UUID { return l.userID }

// Number returns the loan number (YYYY-NNNNNN).
func (l *Loan) Number() string { return l.number }

// Capital returns the disbursed amount.
func (l *Loan) Capital() decimal.Decimal { return l.capital }

// AnnualRate returns the current annual rate in percent.
func (l *Loan) AnnualRate() decimal.Decimal { return l.annualRate }

// Status returns the lifecycle state of the loan.
func (l *Loan) Status() LoanStatus { return l.status }

// HighRisk reports whether the loan was flagged high risk at origination.
func (l *Loan) HighRisk() bool { return l.highRisk }

// CreatedAt returns when the loan was issued.
func (l *Loan) CreatedAt() time.Time { return l.createdAt }

// Installments returns a copy of the schedule ordered by number.
func (l *Loan) Installments() []LoanInstallment {
	out := make([]LoanInstallment, len(l.installments))
	copy(out, l.installments)
	return out
}

// State returns the persisted shape of the loan.
func (l *Loan) State() LoanState {
	return LoanState{
		ID:           l.id,
		UserID:       l.userID,
		Number:       l.number,
		Capital:      l.capital,
		AnnualRate:   l.annualRate,
		TermMonths:   l.termMonths,
		Status:       l.status,
		HighRisk:     l.highRisk,
		CreatedAt:    l.createdAt,
		Installments: l.Installments(),
	}
}

// PaidCapital sums the capital portion of paid installments.
func (l *Loan) PaidCapital() decimal.Decimal {
	paid := decimal.Zero
	for _, inst := range l.installments {
		if inst.Status == InstallmentPaid {
			paid = paid.Add(inst.Capital)
		}
	}
	return paid
}

// ChangeAnnualRate applies a new rate to an active loan. Paid installments
// are kept as they are; the unpaid tail is regenerated for the capital still
// owed over the same number of periods, starting at the first unpaid due date.
func (l *Loan) ChangeAnnualRate(newRate decimal.Decimal) error {
	if !ValidRate(newRate) {
		return ErrInvalidRate
	}
	if l.status != LoanStatusActive {
		return ErrLoanNotActive
	}

	var paid, unpaid []LoanInstallment
	for _, inst := range l.installments {
		if inst.Status == InstallmentPaid {
			paid = append(paid, inst)
		} else {
			unpaid = append(unpaid, inst)
		}
	}
	if len(unpaid) == 0 {
		return ErrNoPendingInstallments
	}

	remaining := l.capital.Sub(l.PaidCapital())
	if !remaining.IsPositive() {
		return ErrNoPendingInstallments
	}

	tail, err := amortization.Recalculate(remaining, newRate, len(unpaid), unpaid[0].DueDate, len(paid)+1)
	if err != nil {
		return fmt.Errorf("failed to recalculate schedule: %w", err)
	}

	l.installments = append(paid, l.toInstallments(tail)...)
	l.annualRate = newRate
	return nil
}

// MarkOverdue moves every pending installment due before today to OVERDUE
// and marks the loan delinquent when at least one moved. Paid installments
// are never touched. It returns how many installments changed.
func (l *Loan) MarkOverdue(today time.Time) int {
	if l.status != LoanStatusActive && l.status != LoanStatusDelinquent {
		return 0
	}

	marked := 0
	for i := range l.installments {
		if l.installments[i].IsOverdueOn(today) {
			l.installments[i].Status = InstallmentOverdue
			marked++
		}
	}
	if marked > 0 {
		l.status = LoanStatusDelinquent
	}
	return marked
}

// PayNextInstallment settles the lowest-numbered unpaid installment, so paid
// installments always form a prefix of the schedule. The loan completes when
// nothing is left to pay and leaves DELINQUENT once no overdue installment remains.
func (l *Loan) PayNextInstallment(at time.Time) (LoanInstallment, error) {
	if l.status != LoanStatusActive && l.status != LoanStatusDelinquent {
		return LoanInstallment{}, ErrLoanNotPayable
	}

	idx := -1
	for i, inst := range l.installments {
		if inst.Status != InstallmentPaid {
			idx = i
			break
		}
	}
	if idx < 0 {
		return LoanInstallment{}, ErrNoPendingInstallments
	}

	paidAt := at
	l.installments[idx].Status = InstallmentPaid
	l.installments[idx].PaidAt = &paidAt

	switch {
	case idx == len(l.installments)-1:
		l.status = LoanStatusCompleted
	case l.status == LoanStatusDelinquent && !l.hasOverdue():
		l.status = LoanStatusActive
	}

	return l.installments[idx], nil
}

// NextUnpaid returns the lowest-numbered installment not yet paid.
func (l *Loan) NextUnpaid() (LoanInstallment, bool) {
	for _, inst := range l.installments {
		if inst.Status != InstallmentPaid {
			return inst, true
		}
	}
	return LoanInstallment{}, false
}

// Summary condenses the schedule for list views.
func (l *Loan) Summary() LoanSummary {
	s := LoanSummary{
		ID:                l.id,
		Number:            l.number,
		UserID:            l.userID,
		Capital:           l.capital,
		AnnualRate:        l.annualRate,
		TermMonths:        l.termMonths,
		Status:            l.status,
		HighRisk:          l.highRisk,
		CreatedAt:         l.createdAt,
		TotalInstallments: len(l.installments),
	}
	for _, inst := range l.installments {
		if inst.Status == InstallmentPaid {
			s.PaidInstallments++
		}
	}
	s.PendingCapital = l.capital.Sub(l.PaidCapital())
	s.InArrears = l.hasOverdue()
	return s
}

func (l *Loan) hasOverdue() bool {
	for _, inst := range l.installments {
		if inst.Status == InstallmentOverdue {
			return true
		}
	}
	return false
}

func (l *Loan) toInstallments(schedule []amortization.Period) []LoanInstallment {
	out := make([]LoanInstallment, 0, len(schedule))
	for _, p := range schedule {
		out = append(out, LoanInstallment{
			ID:        uuid.New(),
			LoanID:    l.id,
			Number:    p.Number,
			DueDate:   p.DueDate,
			Payment:   p.Payment,
			Capital:   p.Capital,
			Interest:  p.Interest,
			Remaining: p.Remaining,
			Status:    InstallmentPending,
		})
	}
	return out
}

// LoanSummary is the list-view projection of a loan.
type LoanSummary struct {
	ID                uuid.UUID
	Number            string
	UserID            uuid.UUID
	ClientName        string
	NationalID        string
	Capital           decimal.Decimal
	AnnualRate        decimal.Decimal
	TermMonths        int
	Status            LoanStatus
	HighRisk          bool
	CreatedAt         time.Time
	TotalInstallments int
	PaidInstallments  int
	PendingCapital    decimal.Decimal
	InArrears         bool
}
