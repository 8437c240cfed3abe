package models

// Account is the identity view assembled for an authenticated caller.
// Role flags reflect the ledger's control roles at the time of the call,
// never anything baked into the token.
type Account struct {
	ID            string `json:"id"`
	IsPrincipal   bool   `json:"is_principal"`
	IsAdjudicator bool   `json:"is_adjudicator"`
	Balance       int64  `json:"balance"`
	Locked        int64  `json:"locked"`
}
