package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// LendingClient calls LendingService using the JSON codec.
type LendingClient struct {
	cc grpc.ClientConnInterface
}

// NewLendingClient creates a client on an established connection.
func NewLendingClient(cc grpc.ClientConnInterface) *LendingClient {
	return &LendingClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LendingClient) AssignLoan(ctx context.Context, in *AssignLoanRequest, opts ...grpc.CallOption) (*LoanResponse, error) {
	return invoke[LoanResponse](ctx, c.cc, "AssignLoan", in, opts)
}

func (c *LendingClient) GetLoan(ctx context.Context, in *GetLoanRequest, opts ...grpc.CallOption) (*LoanResponse, error) {
	return invoke[LoanResponse](ctx, c.cc, "GetLoan", in, opts)
}

func (c *LendingClient) UpdateLoanRate(ctx context.Context, in *UpdateLoanRateRequest, opts ...grpc.CallOption) (*LoanResponse, error) {
	return invoke[LoanResponse](ctx, c.cc, "UpdateLoanRate", in, opts)
}

func (c *LendingClient) PayLoanInstallment(ctx context.Context, in *PayLoanInstallmentRequest, opts ...grpc.CallOption) (*PayLoanInstallmentResponse, error) {
	return invoke[PayLoanInstallmentResponse](ctx, c.cc, "PayLoanInstallment", in, opts)
}

func (c *LendingClient) MarkOverdueInstallments(ctx context.Context, in *MarkOverdueInstallmentsRequest, opts ...grpc.CallOption) (*MarkOverdueInstallmentsResponse, error) {
	return invoke[MarkOverdueInstallmentsResponse](ctx, c.cc, "MarkOverdueInstallments", in, opts)
}

func (c *LendingClient) ListLoans(ctx context.Context, in *ListLoansRequest, opts ...grpc.CallOption) (*ListLoansResponse, error) {
	return invoke[ListLoansResponse](ctx, c.cc, "ListLoans", in, opts)
}

func (c *LendingClient) ListAssignableLoanClients(ctx context.Context, in *AssignableClientsRequest, opts ...grpc.CallOption) (*AssignableLoanClientsResponse, error) {
	return invoke[AssignableLoanClientsResponse](ctx, c.cc, "ListAssignableLoanClients", in, opts)
}

func (c *LendingClient) AssignCard(ctx context.Context, in *AssignCardRequest, opts ...grpc.CallOption) (*CardResponse, error) {
	return invoke[CardResponse](ctx, c.cc, "AssignCard", in, opts)
}

func (c *LendingClient) GetCard(ctx context.Context, in *GetCardRequest, opts ...grpc.CallOption) (*GetCardResponse, error) {
	return invoke[GetCardResponse](ctx, c.cc, "GetCard", in, opts)
}

func (c *LendingClient) PostCardTransaction(ctx context.Context, in *PostCardTransactionRequest, opts ...grpc.CallOption) (*CardTransactionResponse, error) {
	return invoke[CardTransactionResponse](ctx, c.cc, "PostCardTransaction", in, opts)
}

func (c *LendingClient) UpdateCardLimit(ctx context.Context, in *UpdateCardLimitRequest, opts ...grpc.CallOption) (*CardResponse, error) {
	return invoke[CardResponse](ctx, c.cc, "UpdateCardLimit", in, opts)
}

func (c *LendingClient) CancelCard(ctx context.Context, in *CancelCardRequest, opts ...grpc.CallOption) (*CardResponse, error) {
	return invoke[CardResponse](ctx, c.cc, "CancelCard", in, opts)
}

func (c *LendingClient) ListCards(ctx context.Context, in *ListCardsRequest, opts ...grpc.CallOption) (*ListCardsResponse, error) {
	return invoke[ListCardsResponse](ctx, c.cc, "ListCards", in, opts)
}

func (c *LendingClient) ListAssignableCardClients(ctx context.Context, in *AssignableClientsRequest, opts ...grpc.CallOption) (*AssignableCardClientsResponse, error) {
	return invoke[AssignableCardClientsResponse](ctx, c.cc, "ListAssignableCardClients", in, opts)
}

func (c *LendingClient) OpenAccount(ctx context.Context, in *OpenAccountRequest, opts ...grpc.CallOption) (*AccountResponse, error) {
	return invoke[AccountResponse](ctx, c.cc, "OpenAccount", in, opts)
}

func (c *LendingClient) Deposit(ctx context.Context, in *MoveFundsRequest, opts ...grpc.CallOption) (*LedgerEntryResponse, error) {
	return invoke[LedgerEntryResponse](ctx, c.cc, "Deposit", in, opts)
}

func (c *LendingClient) Withdraw(ctx context.Context, in *MoveFundsRequest, opts ...grpc.CallOption) (*LedgerEntryResponse, error) {
	return invoke[LedgerEntryResponse](ctx, c.cc, "Withdraw", in, opts)
}

func (c *LendingClient) GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*GetAccountResponse, error) {
	return invoke[GetAccountResponse](ctx, c.cc, "GetAccount", in, opts)
}
