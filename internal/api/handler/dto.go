package handler

// CreateAccountRequest represents a request to open a new account
type CreateAccountRequest struct {
	OwnerRef       string `json:"owner_ref" binding:"required"`
	Currency       string `json:"currency" binding:"required,len=3"`
	OpeningBalance int64  `json:"opening_balance" binding:"min=0"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        string `json:"id"`
	OwnerRef  string `json:"owner_ref"`
	Currency  string `json:"currency"`
	Balance   int64  `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MovementRequest represents a deposit or withdrawal request
type MovementRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
	Description string `json:"description,omitempty"`
}

// TransferRequest represents a transfer between two accounts
type TransferRequest struct {
	FromAccountID string `json:"from_account_id" binding:"required,uuid"`
	ToAccountID   string `json:"to_account_id" binding:"required,uuid"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Currency      string `json:"currency" binding:"required,len=3"`
	Description   string `json:"description,omitempty"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID                    string `json:"id"`
	Type                  string `json:"type"`
	AccountID             string `json:"account_id"`
	CounterpartyAccountID string `json:"counterparty_account_id,omitempty"`
	TransferID            string `json:"transfer_id,omitempty"`
	Amount                int64  `json:"amount"`
	Currency              string `json:"currency"`
	Description           string `json:"description,omitempty"`
	CreatedAt             string `json:"created_at"`
}

// OperationResponse represents the outcome of a committed ledger operation:
// the entries appended and the resulting balances of the accounts touched
type OperationResponse struct {
	Entries  []EntryResponse  `json:"entries"`
	Balances map[string]int64 `json:"balances"`
}

// InitiatePaymentRequest represents a request to start an external payment
type InitiatePaymentRequest struct {
	Subject          string `json:"subject" binding:"required"`
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	AccountReference string `json:"account_reference,omitempty"`
}

// IntentResponse represents a payment intent in API responses
type IntentResponse struct {
	CorrelationID     string `json:"correlation_id"`
	MerchantRequestID string `json:"merchant_request_id,omitempty"`
	Subject           string `json:"subject"`
	Amount            int64  `json:"amount"`
	AccountReference  string `json:"account_reference,omitempty"`
	Status            string `json:"status"`
	ResultCode        *int   `json:"result_code,omitempty"`
	ResultDescription string `json:"result_description,omitempty"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
	CreatedAt         string `json:"created_at"`
	LastUpdatedAt     string `json:"last_updated_at"`
}

// DeliveryResponse represents one archived raw provider delivery
type DeliveryResponse struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	Payload       string `json:"payload"`
	Malformed     bool   `json:"malformed"`
	ReceivedAt    string `json:"received_at"`
}

// OutcomeParams represents query parameters for the outcome wait endpoint.
// Zero values select the configured defaults.
type OutcomeParams struct {
	CorrelationID   string `form:"correlation_id"`
	Subject         string `form:"subject"`
	TimeoutSeconds  int    `form:"timeout" binding:"min=0"`
	IntervalSeconds int    `form:"interval" binding:"min=0"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
