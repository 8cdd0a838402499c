package extract

import "context"

// MerchantSource reads the merchant dimension input.
type MerchantSource interface {
	ReadMerchants(ctx context.Context) ([]MerchantRow, error)
}

// TransactionSource reads the raw transaction input.
type TransactionSource interface {
	ReadTransactions(ctx context.Context) ([]RawTransaction, error)
}

// MerchantRow is one merchant record with cells trimmed. Optional
// attributes are empty strings when the input leaves them blank.
type MerchantRow struct {
	MerchantID   string
	MerchantName string
	Category     string
	City         string
	State        string
	Line         int
}

// RawTransaction is one transaction record exactly as read, before any
// validation. Every field is the trimmed source text; Line is the record's
// 1-based line in the input file, header included.
type RawTransaction struct {
	TransactionID string
	MerchantID    string
	TxnTimestamp  string
	Amount        string
	Status        string
	Line          int
}
