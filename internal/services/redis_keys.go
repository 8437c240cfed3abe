package services

import "time"

const (
	KeyBalances            = "escrow:balances"
	KeyGames               = "escrow:games"
	KeyState               = "escrow:state"
	KeyTransaction         = "escrow:tx:%s"
	KeyAccountTransactions = "escrow:account:%s:txs"
	KeyEvents              = "escrow:events"
	KeyRateLimit           = "escrow:ratelimit:%s:%s"

	// ChannelEvents is the pub/sub channel external indexers subscribe to.
	ChannelEvents = "escrow.events"

	TTLTransaction = 30 * 24 * time.Hour // 30 days

	MaxAccountTransactions = 100  // per-account journal depth
	MaxRecentEvents        = 1000 // ledger-wide event backlog

	DefaultRateLimitFunds = 30 // deposits/withdrawals per account per minute
	DefaultRateLimitGames = 60 // game actions per account per minute
)
