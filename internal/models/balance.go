package models

// BalanceResponse is the API view of one account's funds. Balance is the
// freely spendable amount; Locked is the total staked in games that have
// not reached a terminal state yet.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
	Locked  int64  `json:"locked"`
	Total   int64  `json:"total"` // Balance + Locked
}
