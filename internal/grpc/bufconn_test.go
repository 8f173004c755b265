package grpc_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
	grpcserver "github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/grpc"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/memstore"
	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/security"
)

const bufSize = 1024 * 1024

type settableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *settableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *settableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type harness struct {
	client *grpcserver.LendingClient
	conn   *grpc.ClientConn
	store  *memstore.Store
	clock  *settableClock
}

// startServer serves the lending service over bufconn on a fresh in-memory store.
func startServer(t *testing.T) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := memstore.New()
	clock := &settableClock{now: time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)}

	loans := domain.NewLoanService(domain.LoanServiceDeps{
		Users: store.Users(), Accounts: store.Accounts(), Loans: store.Loans(), TxManager: store,
		Clock: clock, Numbers: security.RandomDigits{}, Logger: logger,
	})
	cards := domain.NewCardService(domain.CardServiceDeps{
		Users: store.Users(), Cards: store.Cards(), TxManager: store,
		Clock: clock, Numbers: security.RandomDigits{}, Hasher: security.SHA256Hasher{}, Logger: logger,
	})
	savings := domain.NewSavingsService(domain.SavingsServiceDeps{
		Users: store.Users(), Accounts: store.Accounts(), TxManager: store,
		Clock: clock, Numbers: security.RandomDigits{}, Logger: logger,
	})

	grpcSrv, _ := grpcserver.NewServer(grpcserver.NewLendingServer(loans, cards, savings, logger), logger)
	lis := bufconn.Listen(bufSize)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			t.Logf("gRPC server stopped: %v", err)
		}
	}()
	t.Cleanup(grpcSrv.Stop)

	bufDialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}
	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &harness{client: grpcserver.NewLendingClient(conn), conn: conn, store: store, clock: clock}
}

func (h *harness) addClient(name, nationalID string) domain.User {
	u := domain.User{
		ID: uuid.New(), FullName: name, Email: name + "@example.com",
		NationalID: nationalID, Role: domain.RoleClient, Active: true,
	}
	h.store.AddUser(u)
	return u
}

func expectCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil error", want)
	}
	if got := status.Code(err); got != want {
		t.Fatalf("expected %v, got %v (%v)", want, got, err)
	}
}

func TestLoanLifecycleOverGRPC(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()
	ana := h.addClient("Ana", "1-0101-0101")

	account, err := h.client.OpenAccount(ctx, &grpcserver.OpenAccountRequest{ClientID: ana.ID.String(), Type: "PRINCIPAL", InitialDeposit: "100"})
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if account.Account.Balance != "100.00" || len(account.Account.Number) != 9 {
		t.Errorf("unexpected account %+v", account.Account)
	}

	loan, err := h.client.AssignLoan(ctx, &grpcserver.AssignLoanRequest{
		ClientID: ana.ID.String(), Amount: "12000", TermMonths: 12, AnnualRate: "12",
	})
	if err != nil {
		t.Fatalf("AssignLoan: %v", err)
	}
	if len(loan.Installments) != 12 {
		t.Fatalf("expected 12 installments, got %d", len(loan.Installments))
	}
	first := loan.Installments[0]
	if first.Payment != "1066.19" || first.Interest != "120.00" || first.DueDate != "2025-02-15" || first.Status != "PENDING" {
		t.Errorf("unexpected first installment %+v", first)
	}
	if loan.Installments[11].Remaining != "0.00" {
		t.Errorf("schedule must end at zero, got %s", loan.Installments[11].Remaining)
	}
	if loan.Loan.ClientName != "Ana" || loan.Loan.Status != "ACTIVE" {
		t.Errorf("unexpected loan %+v", loan.Loan)
	}

	_, err = h.client.AssignLoan(ctx, &grpcserver.AssignLoanRequest{ClientID: ana.ID.String(), Amount: "500", TermMonths: 6, AnnualRate: "10"})
	expectCode(t, err, codes.FailedPrecondition)
	_, err = h.client.AssignLoan(ctx, &grpcserver.AssignLoanRequest{ClientID: ana.ID.String(), Amount: "500", TermMonths: 7, AnnualRate: "10"})
	expectCode(t, err, codes.InvalidArgument)

	paid, err := h.client.PayLoanInstallment(ctx, &grpcserver.PayLoanInstallmentRequest{LoanID: loan.Loan.ID})
	if err != nil {
		t.Fatalf("PayLoanInstallment: %v", err)
	}
	if paid.AccountBalance != "11033.81" || paid.Installment.Status != "PAID" || paid.Installment.PaidAt == "" {
		t.Errorf("unexpected payment %+v", paid)
	}
	if paid.Loan.PaidInstallments != 1 || paid.Loan.PendingCapital != "11053.81" {
		t.Errorf("unexpected loan after payment %+v", paid.Loan)
	}

	rated, err := h.client.UpdateLoanRate(ctx, &grpcserver.UpdateLoanRateRequest{LoanID: loan.Loan.ID, AnnualRate: "18"})
	if err != nil {
		t.Fatalf("UpdateLoanRate: %v", err)
	}
	if rated.Loan.AnnualRate != "18.00" || rated.Installments[0].Payment != "1066.19" || rated.Installments[0].Status != "PAID" {
		t.Errorf("paid installment must be kept: %+v", rated.Installments[0])
	}
	if rated.Installments[1].DueDate != "2025-03-15" || rated.Installments[11].Remaining != "0.00" {
		t.Errorf("unexpected regenerated schedule %+v / %+v", rated.Installments[1], rated.Installments[11])
	}

	h.clock.Set(time.Date(2025, time.April, 10, 23, 0, 0, 0, time.UTC))
	sweep, err := h.client.MarkOverdueInstallments(ctx, &grpcserver.MarkOverdueInstallmentsRequest{})
	if err != nil {
		t.Fatalf("MarkOverdueInstallments: %v", err)
	}
	if sweep.Installments != 1 || sweep.Loans != 1 {
		t.Errorf("expected 1 installment on 1 loan, got %+v", sweep)
	}

	delinquent, err := h.client.ListLoans(ctx, &grpcserver.ListLoansRequest{NationalID: "0101", Status: "DELINQUENT"})
	if err != nil {
		t.Fatalf("ListLoans: %v", err)
	}
	if len(delinquent.Loans) != 1 || !delinquent.Loans[0].InArrears {
		t.Fatalf("expected the delinquent loan, got %+v", delinquent.Loans)
	}
	active, err := h.client.ListLoans(ctx, &grpcserver.ListLoansRequest{})
	if err != nil {
		t.Fatalf("ListLoans: %v", err)
	}
	if len(active.Loans) != 0 {
		t.Errorf("a delinquent loan is not active, got %d", len(active.Loans))
	}

	_, err = h.client.UpdateLoanRate(ctx, &grpcserver.UpdateLoanRateRequest{LoanID: loan.Loan.ID, AnnualRate: "9"})
	expectCode(t, err, codes.FailedPrecondition)

	ledger, err := h.client.GetAccount(ctx, &grpcserver.GetAccountRequest{AccountID: account.Account.ID})
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if len(ledger.Transactions) != 3 || ledger.Transactions[0].Origin != "LOAN" || ledger.Transactions[0].Amount != "-1066.19" {
		t.Errorf("unexpected ledger %+v", ledger.Transactions)
	}

	_, err = h.client.GetLoan(ctx, &grpcserver.GetLoanRequest{LoanID: uuid.NewString()})
	expectCode(t, err, codes.NotFound)
}

func TestCardLifecycleOverGRPC(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()
	ana := h.addClient("Ana", "1-2345")
	h.addClient("Bea", "2-2345")

	card, err := h.client.AssignCard(ctx, &grpcserver.AssignCardRequest{ClientID: ana.ID.String(), Limit: "1000", IssuedBy: uuid.NewString()})
	if err != nil {
		t.Fatalf("AssignCard: %v", err)
	}
	if card.Card.Available != "1000.00" || card.Card.MaskedNumber != "**** **** **** "+card.Card.Last4 {
		t.Errorf("unexpected card %+v", card.Card)
	}

	approved, err := h.client.PostCardTransaction(ctx, &grpcserver.PostCardTransactionRequest{CardID: card.Card.ID, Type: "PURCHASE", Amount: "900", Description: "laptop"})
	if err != nil {
		t.Fatalf("PostCardTransaction: %v", err)
	}
	if approved.Transaction.Status != "APPROVED" {
		t.Errorf("expected APPROVED, got %s", approved.Transaction.Status)
	}
	rejected, err := h.client.PostCardTransaction(ctx, &grpcserver.PostCardTransactionRequest{CardID: card.Card.ID, Type: "PURCHASE", Amount: "150"})
	if err != nil {
		t.Fatalf("a rejected posting is not an error: %v", err)
	}
	if rejected.Transaction.Status != "REJECTED" {
		t.Errorf("expected REJECTED, got %s", rejected.Transaction.Status)
	}
	_, err = h.client.PostCardTransaction(ctx, &grpcserver.PostCardTransactionRequest{CardID: card.Card.ID, Type: "REFUND", Amount: "1"})
	expectCode(t, err, codes.InvalidArgument)

	details, err := h.client.GetCard(ctx, &grpcserver.GetCardRequest{CardID: card.Card.ID})
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if details.Card.Debt != "900.00" || len(details.Transactions) != 2 {
		t.Errorf("unexpected card details %+v", details)
	}

	_, err = h.client.UpdateCardLimit(ctx, &grpcserver.UpdateCardLimitRequest{CardID: card.Card.ID, Limit: "800"})
	expectCode(t, err, codes.FailedPrecondition)
	raised, err := h.client.UpdateCardLimit(ctx, &grpcserver.UpdateCardLimitRequest{CardID: card.Card.ID, Limit: "2000"})
	if err != nil {
		t.Fatalf("UpdateCardLimit: %v", err)
	}
	if raised.Card.Available != "1100.00" {
		t.Errorf("expected 1100.00 available, got %s", raised.Card.Available)
	}

	_, err = h.client.CancelCard(ctx, &grpcserver.CancelCardRequest{CardID: card.Card.ID})
	expectCode(t, err, codes.FailedPrecondition)
	if _, err := h.client.PostCardTransaction(ctx, &grpcserver.PostCardTransactionRequest{CardID: card.Card.ID, Type: "PAYMENT", Amount: "900"}); err != nil {
		t.Fatalf("PostCardTransaction payment: %v", err)
	}
	cancelled, err := h.client.CancelCard(ctx, &grpcserver.CancelCardRequest{CardID: card.Card.ID})
	if err != nil {
		t.Fatalf("CancelCard: %v", err)
	}
	if cancelled.Card.Status != "CANCELLED" {
		t.Errorf("expected CANCELLED, got %s", cancelled.Card.Status)
	}

	list, err := h.client.ListCards(ctx, &grpcserver.ListCardsRequest{NationalID: "1-2345", Status: "CANCELLED"})
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(list.Cards) != 1 || list.Cards[0].ID != card.Card.ID {
		t.Errorf("expected the cancelled card, got %+v", list.Cards)
	}

	assignable, err := h.client.ListAssignableCardClients(ctx, &grpcserver.AssignableClientsRequest{NationalID: "2345"})
	if err != nil {
		t.Fatalf("ListAssignableCardClients: %v", err)
	}
	if len(assignable.Clients) != 2 || assignable.AverageDebt != "0.00" {
		t.Errorf("both clients are free once the card is cancelled, got %+v", assignable)
	}
}

func TestSavingsOverGRPC(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()
	ana := h.addClient("Ana", "1")

	account, err := h.client.OpenAccount(ctx, &grpcserver.OpenAccountRequest{ClientID: ana.ID.String(), Type: "SECONDARY"})
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if account.Account.Balance != "0.00" {
		t.Errorf("expected empty account, got %s", account.Account.Balance)
	}

	deposit, err := h.client.Deposit(ctx, &grpcserver.MoveFundsRequest{AccountID: account.Account.ID, Amount: "200.50", Description: "cash"})
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if deposit.Entry.Type != "CREDIT" || deposit.Entry.BalanceAfter != "200.50" || deposit.Entry.Origin != "TELLER" {
		t.Errorf("unexpected deposit %+v", deposit.Entry)
	}

	_, err = h.client.Withdraw(ctx, &grpcserver.MoveFundsRequest{AccountID: account.Account.ID, Amount: "300"})
	expectCode(t, err, codes.FailedPrecondition)

	withdrawal, err := h.client.Withdraw(ctx, &grpcserver.MoveFundsRequest{AccountID: account.Account.ID, Amount: "0.50"})
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if withdrawal.Entry.Amount != "-0.50" || withdrawal.Entry.BalanceAfter != "200.00" {
		t.Errorf("unexpected withdrawal %+v", withdrawal.Entry)
	}

	_, err = h.client.OpenAccount(ctx, &grpcserver.OpenAccountRequest{ClientID: ana.ID.String(), Type: "CHECKING"})
	expectCode(t, err, codes.InvalidArgument)
	_, err = h.client.Deposit(ctx, &grpcserver.MoveFundsRequest{AccountID: uuid.NewString(), Amount: "1"})
	expectCode(t, err, codes.NotFound)
}

func TestHealthService(t *testing.T) {
	h := startServer(t)

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %v", resp.Status)
	}
}
