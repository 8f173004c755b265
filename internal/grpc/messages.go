package grpc

// Monetary values and rates travel as decimal strings; timestamps as
// RFC 3339 and due dates as YYYY-MM-DD.

type Loan struct {
	ID                string `json:"id"`
	Number            string `json:"number"`
	ClientID          string `json:"clientId"`
	ClientName        string `json:"clientName"`
	NationalID        string `json:"nationalId"`
	Capital           string `json:"capital"`
	AnnualRate        string `json:"annualRate"`
	TermMonths        int    `json:"termMonths"`
	Status            string `json:"status"`
	HighRisk          bool   `json:"highRisk"`
	CreatedAt         string `json:"createdAt"`
	TotalInstallments int    `json:"totalInstallments"`
	PaidInstallments  int    `json:"paidInstallments"`
	PendingCapital    string `json:"pendingCapital"`
	InArrears         bool   `json:"inArrears"`
}

type Installment struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	DueDate   string `json:"dueDate"`
	Payment   string `json:"payment"`
	Capital   string `json:"capital"`
	Interest  string `json:"interest"`
	Remaining string `json:"remaining"`
	Status    string `json:"status"`
	PaidAt    string `json:"paidAt,omitempty"`
}

type AssignLoanRequest struct {
	ClientID   string `json:"clientId"`
	Amount     string `json:"amount"`
	TermMonths int    `json:"termMonths"`
	AnnualRate string `json:"annualRate"`
}

type GetLoanRequest struct {
	LoanID string `json:"loanId"`
}

type UpdateLoanRateRequest struct {
	LoanID     string `json:"loanId"`
	AnnualRate string `json:"annualRate"`
}

type LoanResponse struct {
	Loan         Loan          `json:"loan"`
	Installments []Installment `json:"installments"`
}

type PayLoanInstallmentRequest struct {
	LoanID string `json:"loanId"`
}

type PayLoanInstallmentResponse struct {
	Installment    Installment `json:"installment"`
	Loan           Loan        `json:"loan"`
	AccountBalance string      `json:"accountBalance"`
}

type MarkOverdueInstallmentsRequest struct{}

type MarkOverdueInstallmentsResponse struct {
	Installments int `json:"installments"`
	Loans        int `json:"loans"`
}

// ListLoansRequest searches by national id fragment and optional status.
// An empty request lists every active loan.
type ListLoansRequest struct {
	NationalID string `json:"nationalId,omitempty"`
	Status     string `json:"status,omitempty"`
}

type ListLoansResponse struct {
	Loans []Loan `json:"loans"`
}

type AssignableClientsRequest struct {
	NationalID string `json:"nationalId,omitempty"`
}

type Client struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	NationalID  string `json:"nationalId"`
	Email       string `json:"email"`
	Outstanding string `json:"outstanding,omitempty"`
}

type AssignableLoanClientsResponse struct {
	AverageActiveCapital string   `json:"averageActiveCapital"`
	Clients              []Client `json:"clients"`
}

type AssignableCardClientsResponse struct {
	AverageDebt string   `json:"averageDebt"`
	Clients     []Client `json:"clients"`
}

type Card struct {
	ID              string `json:"id"`
	ClientID        string `json:"clientId"`
	ClientName      string `json:"clientName"`
	NationalID      string `json:"nationalId"`
	MaskedNumber    string `json:"maskedNumber"`
	Last4           string `json:"last4"`
	ExpirationMonth int    `json:"expirationMonth"`
	ExpirationYear  int    `json:"expirationYear"`
	Limit           string `json:"limit"`
	Debt            string `json:"debt"`
	Available       string `json:"available"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
}

type CardTransaction struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
}

type AssignCardRequest struct {
	ClientID string `json:"clientId"`
	Limit    string `json:"limit"`
	IssuedBy string `json:"issuedBy"`
}

type CardResponse struct {
	Card Card `json:"card"`
}

type GetCardRequest struct {
	CardID string `json:"cardId"`
}

type GetCardResponse struct {
	Card         Card              `json:"card"`
	Transactions []CardTransaction `json:"transactions"`
}

type PostCardTransactionRequest struct {
	CardID      string `json:"cardId"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type CardTransactionResponse struct {
	Transaction CardTransaction `json:"transaction"`
}

type UpdateCardLimitRequest struct {
	CardID string `json:"cardId"`
	Limit  string `json:"limit"`
}

type CancelCardRequest struct {
	CardID string `json:"cardId"`
}

// ListCardsRequest searches the cards of one exact national id.
// Without a national id it lists every active card.
type ListCardsRequest struct {
	NationalID string `json:"nationalId,omitempty"`
	Status     string `json:"status,omitempty"`
}

type ListCardsResponse struct {
	Cards []Card `json:"cards"`
}

type Account struct {
	ID        string `json:"id"`
	ClientID  string `json:"clientId"`
	Number    string `json:"number"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type LedgerEntry struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Origin       string `json:"origin"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balanceAfter"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
}

type OpenAccountRequest struct {
	ClientID       string `json:"clientId"`
	Type           string `json:"type"`
	InitialDeposit string `json:"initialDeposit,omitempty"`
}

type AccountResponse struct {
	Account Account `json:"account"`
}

// MoveFundsRequest is shared by Deposit and Withdraw.
type MoveFundsRequest struct {
	AccountID   string `json:"accountId"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type LedgerEntryResponse struct {
	Entry LedgerEntry `json:"entry"`
}

type GetAccountRequest struct {
	AccountID string `json:"accountId"`
}

type GetAccountResponse struct {
	Account      Account       `json:"account"`
	Transactions []LedgerEntry `json:"transactions"`
}
