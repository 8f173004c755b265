package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "lending.v1.LendingService"

// LendingServiceServer is the server API for the lending service.
type LendingServiceServer interface {
	AssignLoan(context.Context, *AssignLoanRequest) (*LoanResponse, error)
	GetLoan(context.Context, *GetLoanRequest) (*LoanResponse, error)
	UpdateLoanRate(context.Context, *UpdateLoanRateRequest) (*LoanResponse, error)
	PayLoanInstallment(context.Context, *PayLoanInstallmentRequest) (*PayLoanInstallmentResponse, error)
	MarkOverdueInstallments(context.Context, *MarkOverdueInstallmentsRequest) (*MarkOverdueInstallmentsResponse, error)
	ListLoans(context.Context, *ListLoansRequest) (*ListLoansResponse, error)
	ListAssignableLoanClients(context.Context, *AssignableClientsRequest) (*AssignableLoanClientsResponse, error)

	AssignCard(context.Context, *AssignCardRequest) (*CardResponse, error)
	GetCard(context.Context, *GetCardRequest) (*GetCardResponse, error)
	PostCardTransaction(context.Context, *PostCardTransactionRequest) (*CardTransactionResponse, error)
	UpdateCardLimit(context.Context, *UpdateCardLimitRequest) (*CardResponse, error)
	CancelCard(context.Context, *CancelCardRequest) (*CardResponse, error)
	ListCards(context.Context, *ListCardsRequest) (*ListCardsResponse, error)
	ListAssignableCardClients(context.Context, *AssignableClientsRequest) (*AssignableCardClientsResponse, error)

	OpenAccount(context.Context, *OpenAccountRequest) (*AccountResponse, error)
	Deposit(context.Context, *MoveFundsRequest) (*LedgerEntryResponse, error)
	Withdraw(context.Context, *MoveFundsRequest) (*LedgerEntryResponse, error)
	GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error)
}

// RegisterLendingServiceServer registers srv on s.
func RegisterLendingServiceServer(s grpc.ServiceRegistrar, srv LendingServiceServer) {
	s.RegisterService(&LendingServiceDesc, srv)
}

// LendingServiceDesc describes the unary methods of the lending service.
var LendingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LendingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AssignLoan", LendingServiceServer.AssignLoan),
		unary("GetLoan", LendingServiceServer.GetLoan),
		unary("UpdateLoanRate", LendingServiceServer.UpdateLoanRate),
		unary("PayLoanInstallment", LendingServiceServer.PayLoanInstallment),
		unary("MarkOverdueInstallments", LendingServiceServer.MarkOverdueInstallments),
		unary("ListLoans", LendingServiceServer.ListLoans),
		unary("ListAssignableLoanClients", LendingServiceServer.ListAssignableLoanClients),
		unary("AssignCard", LendingServiceServer.AssignCard),
		unary("GetCard", LendingServiceServer.GetCard),
		unary("PostCardTransaction", LendingServiceServer.PostCardTransaction),
		unary("UpdateCardLimit", LendingServiceServer.UpdateCardLimit),
		unary("CancelCard", LendingServiceServer.CancelCard),
		unary("ListCards", LendingServiceServer.ListCards),
		unary("ListAssignableCardClients", LendingServiceServer.ListAssignableCardClients),
		unary("OpenAccount", LendingServiceServer.OpenAccount),
		unary("Deposit", LendingServiceServer.Deposit),
		unary("Withdraw", LendingServiceServer.Withdraw),
		unary("GetAccount", LendingServiceServer.GetAccount),
	},
	Streams: []grpc.StreamDesc{},
}

// unary adapts a typed server method to a grpc.MethodDesc handler.
func unary[Req, Resp any](name string, call func(LendingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LendingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LendingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
