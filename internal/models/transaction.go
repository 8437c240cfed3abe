package models

import "time"

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdraw   TransactionType = "withdraw"
	TransactionTypeStake      TransactionType = "stake"
	TransactionTypePayout     TransactionType = "payout"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeCommission TransactionType = "commission"
)

// Transaction is one journal entry for an account's balance. Amount is
// signed: credits positive, debits negative. For commission withdrawals the
// before/after figures track the commission pool instead of a balance.
type Transaction struct {
	ID            string          `json:"id" redis:"id"`
	Account       string          `json:"account" redis:"account"`
	Type          TransactionType `json:"type" redis:"type"`
	Amount        int64           `json:"amount" redis:"amount"`
	BalanceBefore int64           `json:"balance_before" redis:"balance_before"`
	BalanceAfter  int64           `json:"balance_after" redis:"balance_after"`
	GameID        uint64          `json:"game_id,omitempty" redis:"game_id"`
	Description   string          `json:"description" redis:"description"`
	CreatedAt     time.Time       `json:"created_at" redis:"created_at"`
}
