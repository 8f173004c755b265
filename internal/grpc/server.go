package grpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// LendingServer implements the LendingService gRPC service.
type LendingServer struct {
	loans   *domain.LoanService
	cards   *domain.CardService
	savings *domain.SavingsService
	log     logrus.FieldLogger
}

var _ LendingServiceServer = (*LendingServer)(nil)

// NewLendingServer creates a new LendingServer.
func NewLendingServer(loans *domain.LoanService, cards *domain.CardService, savings *domain.SavingsService, log logrus.FieldLogger) *LendingServer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LendingServer{
		loans:   loans,
		cards:   cards,
		savings: savings,
		log:     log,
	}
}

// AssignLoan originates a loan and disburses it into the client's principal account.
func (s *LendingServer) AssignLoan(ctx context.Context, req *AssignLoanRequest) (*LoanResponse, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return nil, err
	}
	amount, err := parseDecimal("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("annual_rate", req.AnnualRate)
	if err != nil {
		return nil, err
	}

	loan, err := s.loans.AssignLoan(ctx, clientID, amount, req.TermMonths, rate)
	if err != nil {
		return nil, s.mapDomainError(err, "AssignLoan")
	}
	return toLoanResponse(loan), nil
}

// GetLoan returns a loan with its schedule.
func (s *LendingServer) GetLoan(ctx context.Context, req *GetLoanRequest) (*LoanResponse, error) {
	loanID, err := parseID("loan_id", req.LoanID)
	if err != nil {
		return nil, err
	}
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return nil, s.mapDomainError(err, "GetLoan")
	}
	return toLoanResponse(loan), nil
}

// UpdateLoanRate changes the annual rate and recalculates the unpaid installments.
func (s *LendingServer) UpdateLoanRate(ctx context.Context, req *UpdateLoanRateRequest) (*LoanResponse, error) {
	loanID, err := parseID("loan_id", req.LoanID)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("annual_rate", req.AnnualRate)
	if err != nil {
		return nil, err
	}
	loan, err := s.loans.UpdateAnnualRate(ctx, loanID, rate)
	if err != nil {
		return nil, s.mapDomainError(err, "UpdateLoanRate")
	}
	return toLoanResponse(loan), nil
}

// PayLoanInstallment pays the next unpaid installment from the principal account.
func (s *LendingServer) PayLoanInstallment(ctx context.Context, req *PayLoanInstallmentRequest) (*PayLoanInstallmentResponse, error) {
	loanID, err := parseID("loan_id", req.LoanID)
	if err != nil {
		return nil, err
	}
	result, err := s.loans.PayInstallment(ctx, loanID)
	if err != nil {
		return nil, s.mapDomainError(err, "PayLoanInstallment")
	}
	return &PayLoanInstallmentResponse{
		Installment:    toInstallment(result.Installment),
		Loan:           toLoan(result.Loan),
		AccountBalance: result.AccountBalance.StringFixed(2),
	}, nil
}

// MarkOverdueInstallments runs the overdue sweep once.
func (s *LendingServer) MarkOverdueInstallments(ctx context.Context, _ *MarkOverdueInstallmentsRequest) (*MarkOverdueInstallmentsResponse, error) {
	result, err := s.loans.MarkOverdueInstallments(ctx)
	if err != nil {
		return nil, s.mapDomainError(err, "MarkOverdueInstallments")
	}
	return &MarkOverdueInstallmentsResponse{Installments: result.Installments, Loans: result.Loans}, nil
}

// ListLoans lists active loans, or searches by national id fragment and status.
func (s *LendingServer) ListLoans(ctx context.Context, req *ListLoansRequest) (*ListLoansResponse, error) {
	var (
		loans []domain.LoanSummary
		err   error
	)
	if req.NationalID == "" && req.Status == "" {
		loans, err = s.loans.ListActiveLoans(ctx)
	} else {
		var filter *domain.LoanStatus
		if req.Status != "" {
			st, perr := parseLoanStatus(req.Status)
			if perr != nil {
				return nil, perr
			}
			filter = &st
		}
		loans, err = s.loans.SearchLoans(ctx, req.NationalID, filter)
	}
	if err != nil {
		return nil, s.mapDomainError(err, "ListLoans")
	}

	resp := &ListLoansResponse{Loans: make([]Loan, 0, len(loans))}
	for _, l := range loans {
		resp.Loans = append(resp.Loans, toLoan(l))
	}
	return resp, nil
}

// ListAssignableLoanClients lists active clients without an active loan.
func (s *LendingServer) ListAssignableLoanClients(ctx context.Context, req *AssignableClientsRequest) (*AssignableLoanClientsResponse, error) {
	result, err := s.loans.AssignableLoanClients(ctx, req.NationalID)
	if err != nil {
		return nil, s.mapDomainError(err, "ListAssignableLoanClients")
	}
	resp := &AssignableLoanClientsResponse{
		AverageActiveCapital: result.AverageActiveCapital.StringFixed(2),
		Clients:              make([]Client, 0, len(result.Clients)),
	}
	for _, c := range result.Clients {
		client := toClient(c.User)
		client.Outstanding = c.Outstanding.StringFixed(2)
		resp.Clients = append(resp.Clients, client)
	}
	return resp, nil
}

// AssignCard issues a credit card to a client.
func (s *LendingServer) AssignCard(ctx context.Context, req *AssignCardRequest) (*CardResponse, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return nil, err
	}
	issuedBy, err := parseID("issued_by", req.IssuedBy)
	if err != nil {
		return nil, err
	}
	limit, err := parseDecimal("limit", req.Limit)
	if err != nil {
		return nil, err
	}
	card, err := s.cards.AssignCard(ctx, clientID, limit, issuedBy)
	if err != nil {
		return nil, s.mapDomainError(err, "AssignCard")
	}
	return &CardResponse{Card: toCard(*card)}, nil
}

// GetCard returns a card with every posting attempt.
func (s *LendingServer) GetCard(ctx context.Context, req *GetCardRequest) (*GetCardResponse, error) {
	cardID, err := parseID("card_id", req.CardID)
	if err != nil {
		return nil, err
	}
	details, err := s.cards.GetCard(ctx, cardID)
	if err != nil {
		return nil, s.mapDomainError(err, "GetCard")
	}
	resp := &GetCardResponse{
		Card:         toCard(details.Card),
		Transactions: make([]CardTransaction, 0, len(details.Transactions)),
	}
	for _, tx := range details.Transactions {
		resp.Transactions = append(resp.Transactions, toCardTransaction(tx))
	}
	return resp, nil
}

// PostCardTransaction posts a purchase, cash advance or payment. A posting
// over the available credit comes back with status REJECTED, not an error.
func (s *LendingServer) PostCardTransaction(ctx context.Context, req *PostCardTransactionRequest) (*CardTransactionResponse, error) {
	cardID, err := parseID("card_id", req.CardID)
	if err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, status.Error(codes.InvalidArgument, "type is required")
	}
	amount, err := parseDecimal("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	tx, err := s.cards.PostTransaction(ctx, cardID, domain.CardTransactionType(req.Type), amount, req.Description)
	if err != nil {
		return nil, s.mapDomainError(err, "PostCardTransaction")
	}
	return &CardTransactionResponse{Transaction: toCardTransaction(*tx)}, nil
}

// UpdateCardLimit changes a card's credit limit and notifies the client.
func (s *LendingServer) UpdateCardLimit(ctx context.Context, req *UpdateCardLimitRequest) (*CardResponse, error) {
	cardID, err := parseID("card_id", req.CardID)
	if err != nil {
		return nil, err
	}
	limit, err := parseDecimal("limit", req.Limit)
	if err != nil {
		return nil, err
	}
	card, err := s.cards.UpdateLimit(ctx, cardID, limit)
	if err != nil {
		return nil, s.mapDomainError(err, "UpdateCardLimit")
	}
	return &CardResponse{Card: toCard(*card)}, nil
}

// CancelCard cancels a card without outstanding debt.
func (s *LendingServer) CancelCard(ctx context.Context, req *CancelCardRequest) (*CardResponse, error) {
	cardID, err := parseID("card_id", req.CardID)
	if err != nil {
		return nil, err
	}
	card, err := s.cards.CancelCard(ctx, cardID)
	if err != nil {
		return nil, s.mapDomainError(err, "CancelCard")
	}
	return &CardResponse{Card: toCard(*card)}, nil
}

// ListCards lists active cards, or the cards of one national id.
func (s *LendingServer) ListCards(ctx context.Context, req *ListCardsRequest) (*ListCardsResponse, error) {
	var (
		cards []domain.CardView
		err   error
	)
	if req.NationalID == "" {
		if req.Status != "" {
			return nil, status.Error(codes.InvalidArgument, "national_id is required to filter by status")
		}
		cards, err = s.cards.ListActiveCards(ctx)
	} else {
		var filter *domain.CardStatus
		if req.Status != "" {
			st, perr := parseCardStatus(req.Status)
			if perr != nil {
				return nil, perr
			}
			filter = &st
		}
		cards, err = s.cards.SearchCards(ctx, req.NationalID, filter)
	}
	if err != nil {
		return nil, s.mapDomainError(err, "ListCards")
	}

	resp := &ListCardsResponse{Cards: make([]Card, 0, len(cards))}
	for _, c := range cards {
		resp.Cards = append(resp.Cards, toCard(c))
	}
	return resp, nil
}

// ListAssignableCardClients lists active clients without an active card.
func (s *LendingServer) ListAssignableCardClients(ctx context.Context, req *AssignableClientsRequest) (*AssignableCardClientsResponse, error) {
	result, err := s.cards.AssignableCardClients(ctx, req.NationalID)
	if err != nil {
		return nil, s.mapDomainError(err, "ListAssignableCardClients")
	}
	resp := &AssignableCardClientsResponse{
		AverageDebt: result.AverageDebt.StringFixed(2),
		Clients:     make([]Client, 0, len(result.Clients)),
	}
	for _, u := range result.Clients {
		resp.Clients = append(resp.Clients, toClient(u))
	}
	return resp, nil
}

// OpenAccount opens a savings account.
func (s *LendingServer) OpenAccount(ctx context.Context, req *OpenAccountRequest) (*AccountResponse, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, status.Error(codes.InvalidArgument, "type is required")
	}
	deposit := decimal.Zero
	if req.InitialDeposit != "" {
		if deposit, err = parseDecimal("initial_deposit", req.InitialDeposit); err != nil {
			return nil, err
		}
	}
	account, err := s.savings.OpenAccount(ctx, clientID, domain.AccountType(req.Type), deposit)
	if err != nil {
		return nil, s.mapDomainError(err, "OpenAccount")
	}
	return &AccountResponse{Account: toAccount(*account)}, nil
}

// Deposit credits a savings account at the teller.
func (s *LendingServer) Deposit(ctx context.Context, req *MoveFundsRequest) (*LedgerEntryResponse, error) {
	return s.move(ctx, req, "Deposit", s.savings.Deposit)
}

// Withdraw debits a savings account at the teller.
func (s *LendingServer) Withdraw(ctx context.Context, req *MoveFundsRequest) (*LedgerEntryResponse, error) {
	return s.move(ctx, req, "Withdraw", s.savings.Withdraw)
}

func (s *LendingServer) move(ctx context.Context, req *MoveFundsRequest, op string,
	apply func(context.Context, uuid.UUID, decimal.Decimal, string) (*domain.SavingsAccountTransaction, error)) (*LedgerEntryResponse, error) {
	accountID, err := parseID("account_id", req.AccountID)
	if err != nil {
		return nil, err
	}
	amount, err := parseDecimal("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	entry, err := apply(ctx, accountID, amount, req.Description)
	if err != nil {
		return nil, s.mapDomainError(err, op)
	}
	return &LedgerEntryResponse{Entry: toLedgerEntry(*entry)}, nil
}

// GetAccount returns an account with its ledger.
func (s *LendingServer) GetAccount(ctx context.Context, req *GetAccountRequest) (*GetAccountResponse, error) {
	accountID, err := parseID("account_id", req.AccountID)
	if err != nil {
		return nil, err
	}
	details, err := s.savings.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.mapDomainError(err, "GetAccount")
	}
	resp := &GetAccountResponse{
		Account:      toAccount(details.Account),
		Transactions: make([]LedgerEntry, 0, len(details.Transactions)),
	}
	for _, e := range details.Transactions {
		resp.Transactions = append(resp.Transactions, toLedgerEntry(e))
	}
	return resp, nil
}

// mapDomainError maps domain errors to gRPC status codes.
func (s *LendingServer) mapDomainError(err error, op string) error {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindConflict:
		return status.Error(codes.FailedPrecondition, err.Error())
	case domain.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	default:
		s.log.WithError(err).WithField("method", op).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func parseID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s: %v", field, err)
	}
	return id, nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s: %q is not a decimal", field, raw)
	}
	return d, nil
}

func parseLoanStatus(raw string) (domain.LoanStatus, error) {
	switch st := domain.LoanStatus(raw); st {
	case domain.LoanStatusActive, domain.LoanStatusCompleted, domain.LoanStatusDelinquent, domain.LoanStatusCancelled:
		return st, nil
	}
	return "", status.Errorf(codes.InvalidArgument, "invalid status: %q", raw)
}

func parseCardStatus(raw string) (domain.CardStatus, error) {
	switch st := domain.CardStatus(raw); st {
	case domain.CardStatusActive, domain.CardStatusCancelled:
		return st, nil
	}
	return "", status.Errorf(codes.InvalidArgument, "invalid status: %q", raw)
}

func toLoanResponse(d *domain.LoanDetails) *LoanResponse {
	resp := &LoanResponse{
		Loan:         toLoan(d.Summary),
		Installments: make([]Installment, 0, len(d.Installments)),
	}
	for _, inst := range d.Installments {
		resp.Installments = append(resp.Installments, toInstallment(inst))
	}
	return resp
}

func toLoan(l domain.LoanSummary) Loan {
	return Loan{
		ID:                l.ID.String(),
		Number:            l.Number,
		ClientID:          l.UserID.String(),
		ClientName:        l.ClientName,
		NationalID:        l.NationalID,
		Capital:           l.Capital.StringFixed(2),
		AnnualRate:        l.AnnualRate.StringFixed(2),
		TermMonths:        l.TermMonths,
		Status:            string(l.Status),
		HighRisk:          l.HighRisk,
		CreatedAt:         formatTimestamp(l.CreatedAt),
		TotalInstallments: l.TotalInstallments,
		PaidInstallments:  l.PaidInstallments,
		PendingCapital:    l.PendingCapital.StringFixed(2),
		InArrears:         l.InArrears,
	}
}

func toInstallment(i domain.LoanInstallment) Installment {
	out := Installment{
		ID:        i.ID.String(),
		Number:    i.Number,
		DueDate:   i.DueDate.Format(time.DateOnly),
		Payment:   i.Payment.StringFixed(2),
		Capital:   i.Capital.StringFixed(2),
		Interest:  i.Interest.StringFixed(2),
		Remaining: i.Remaining.StringFixed(2),
		Status:    string(i.Status),
	}
	if i.PaidAt != nil {
		out.PaidAt = formatTimestamp(*i.PaidAt)
	}
	return out
}

func toCard(c domain.CardView) Card {
	return Card{
		ID:              c.ID.String(),
		ClientID:        c.UserID.String(),
		ClientName:      c.ClientName,
		NationalID:      c.NationalID,
		MaskedNumber:    c.MaskedNumber,
		Last4:           c.Last4,
		ExpirationMonth: c.ExpirationMonth,
		ExpirationYear:  c.ExpirationYear,
		Limit:           c.Limit.StringFixed(2),
		Debt:            c.Debt.StringFixed(2),
		Available:       c.Available.StringFixed(2),
		Status:          string(c.Status),
		CreatedAt:       formatTimestamp(c.CreatedAt),
	}
}

func toCardTransaction(tx domain.CreditCardTransaction) CardTransaction {
	return CardTransaction{
		ID:          tx.ID.String(),
		Type:        string(tx.Type),
		Amount:      tx.Amount.StringFixed(2),
		Description: tx.Description,
		Status:      string(tx.Status),
		CreatedAt:   formatTimestamp(tx.CreatedAt),
	}
}

func toAccount(a domain.SavingsAccountState) Account {
	return Account{
		ID:        a.ID.String(),
		ClientID:  a.UserID.String(),
		Number:    a.Number,
		Type:      string(a.Type),
		Balance:   a.Balance.StringFixed(2),
		Status:    string(a.Status),
		CreatedAt: formatTimestamp(a.CreatedAt),
	}
}

func toLedgerEntry(e domain.SavingsAccountTransaction) LedgerEntry {
	return LedgerEntry{
		ID:           e.ID.String(),
		Type:         string(e.Type),
		Origin:       string(e.Origin),
		Amount:       e.Amount.StringFixed(2),
		BalanceAfter: e.BalanceAfter.StringFixed(2),
		Description:  e.Description,
		Status:       string(e.Status),
		CreatedAt:    formatTimestamp(e.CreatedAt),
	}
}

func toClient(u domain.User) Client {
	return Client{
		ID:         u.ID.String(),
		FullName:   u.FullName,
		NationalID: u.NationalID,
		Email:      u.Email,
	}
}

// formatTimestamp formats a time.Time to ISO 8601 format.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

