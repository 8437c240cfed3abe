package models

type DepositRequest struct {
	Amount int64 `json:"amount"`
}

type WithdrawRequest struct {
	Amount int64 `json:"amount"`
}

type CreateGameRequest struct {
	Stake int64 `json:"stake"`
}

type ResolveGameRequest struct {
	Winner string `json:"winner" binding:"required"`
}

type SetRateRequest struct {
	RateBps int64 `json:"rate_bps"`
}

type WithdrawCommissionRequest struct {
	Amount int64 `json:"amount"`
}

type SetAdjudicatorRequest struct {
	Account string `json:"account" binding:"required"`
}

type TransferPrincipalRequest struct {
	Account string `json:"account" binding:"required"`
}

type TokenRequest struct {
	Account string `json:"account" binding:"required"`
	APIKey  string `json:"api_key" binding:"required"`
}
