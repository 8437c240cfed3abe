package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"wager-escrow-backend/internal/models"
)

// EscrowEngine is the authoritative ledger for two-party wagering: account
// balances backed by an external custodian, the game registry, the
// commission pool and the control roles. All state lives in process; redis
// is a write-through mirror used for restart recovery and history queries,
// never consulted when deciding an operation.
//
// Exactly one principal account exists at any time. An optional adjudicator
// shares the resolve and force-refund capabilities but none of the rate,
// commission or role controls.
type EscrowEngine struct {
	mu       sync.RWMutex
	inFlight atomic.Bool

	custodian   Custodian
	redis       *RedisService
	broadcaster Broadcaster

	balances   map[string]int64
	games      map[uint64]*models.Game
	nextGameID uint64

	principal   string
	adjudicator string
	rateBps     int64
	commission  int64

	// Cumulative custodian pulls minus pushes. Free balances plus locked
	// stakes plus unwithdrawn commission must always equal this.
	netInflow int64
}

func NewEscrowEngine(custodian Custodian, redisService *RedisService, principal string, rateBps int64) (*EscrowEngine, error) {
	if principal == "" {
		return nil, models.ErrInvalidAccount
	}
	if rateBps < 0 {
		return nil, models.ErrInvalidAmount
	}
	if rateBps > models.MaxCommissionRateBps {
		return nil, models.ErrRateTooHigh
	}

	return &EscrowEngine{
		custodian:  custodian,
		redis:      redisService,
		balances:   make(map[string]int64),
		games:      make(map[uint64]*models.Game),
		nextGameID: 1,
		principal:  principal,
		rateBps:    rateBps,
	}, nil
}

// SetBroadcaster attaches the live event sink. Call once during wiring,
// before the engine starts serving traffic.
func (e *EscrowEngine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

// acquire takes the single-flight latch that serializes every mutation.
// A mutating call arriving while another is in flight, including one
// re-entered from inside a custodian transfer, is refused rather than
// queued or deadlocked.
func (e *EscrowEngine) acquire() error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return models.ErrOperationInProgress
	}
	return nil
}

func (e *EscrowEngine) release() {
	e.inFlight.Store(false)
}

// Deposit draws amount from the caller's custodian account and credits the
// ledger. The transfer settles before any balance changes, so a failed pull
// leaves no trace.
func (e *EscrowEngine) Deposit(ctx context.Context, account string, amount int64) error {
	if account == "" {
		return models.ErrInvalidAccount
	}
	if amount <= 0 || amount > models.MaxAmount {
		return models.ErrInvalidAmount
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.custodian.Pull(ctx, account, amount); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	before := e.balances[account]
	e.balances[account] = before + amount
	e.netInflow += amount

	e.persistMutation(nil, true, account)
	e.journal(account, models.TransactionTypeDeposit, amount, before, 0,
		fmt.Sprintf("Deposited %d from custodian", amount))
	e.emit(&models.Event{Type: models.EventDeposit, Account: account, Amount: amount})

	return nil
}

// Withdraw debits the caller first and then pushes the funds out through
// the custodian. A failed push restores the debit under the same lock
// hold, so no intermediate state is ever observable.
func (e *EscrowEngine) Withdraw(ctx context.Context, account string, amount int64) error {
	if account == "" {
		return models.ErrInvalidAccount
	}
	if amount <= 0 || amount > models.MaxAmount {
		return models.ErrInvalidAmount
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.balances[account]
	if before < amount {
		return models.ErrInsufficientBalance
	}

	e.balances[account] = before - amount
	e.netInflow -= amount

	if err := e.custodian.Push(ctx, account, amount); err != nil {
		e.balances[account] = before
		e.netInflow += amount
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	e.persistMutation(nil, true, account)
	e.journal(account, models.TransactionTypeWithdraw, -amount, before, 0,
		fmt.Sprintf("Withdrew %d to custodian", amount))
	e.emit(&models.Event{Type: models.EventWithdraw, Account: account, Amount: amount})

	return nil
}

// CreateGame locks the creator's stake and opens a new game. Game IDs are
// sequential and never reused.
func (e *EscrowEngine) CreateGame(creator string, stake int64) (uint64, error) {
	if creator == "" {
		return 0, models.ErrInvalidAccount
	}
	if stake <= 0 || stake > models.MaxAmount {
		return 0, models.ErrInvalidAmount
	}
	if err := e.acquire(); err != nil {
		return 0, err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.balances[creator]
	if before < stake {
		return 0, models.ErrInsufficientBalance
	}

	now := time.Now()
	game := &models.Game{
		ID:        e.nextGameID,
		Creator:   creator,
		Stake:     stake,
		Status:    models.GameStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.nextGameID++
	e.balances[creator] = before - stake
	e.games[game.ID] = game

	e.persistMutation(game, true, creator)
	e.journal(creator, models.TransactionTypeStake, -stake, before, game.ID,
		fmt.Sprintf("Staked %d on game %d", stake, game.ID))
	e.emit(&models.Event{Type: models.EventGameCreated, Account: creator, GameID: game.ID, Amount: stake})

	return game.ID, nil
}

// JoinGame seats the opponent, locking a matching stake. Creators cannot
// take the second seat of their own game.
func (e *EscrowEngine) JoinGame(opponent string, gameID uint64) error {
	if opponent == "" {
		return models.ErrInvalidAccount
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	game, ok := e.games[gameID]
	if !ok {
		return models.ErrGameNotFound
	}
	if game.Status != models.GameStatusOpen {
		return models.ErrInvalidGameState
	}
	if opponent == game.Creator {
		return models.ErrSelfJoin
	}

	before := e.balances[opponent]
	if before < game.Stake {
		return models.ErrInsufficientBalance
	}

	e.balances[opponent] = before - game.Stake
	game.Opponent = opponent
	game.Status = models.GameStatusActive
	game.UpdatedAt = time.Now()

	e.persistMutation(game, false, opponent)
	e.journal(opponent, models.TransactionTypeStake, -game.Stake, before, gameID,
		fmt.Sprintf("Staked %d on game %d", game.Stake, gameID))
	e.emit(&models.Event{Type: models.EventGameJoined, Account: opponent, GameID: gameID, Amount: game.Stake})

	return nil
}

// ResolveGame declares the winner of an active game. The pot is both
// stakes; commission is floor(pot * rate / 10000) at the current rate and
// the winner is credited the remainder, so the division remainder always
// stays with the winner's payout and nothing leaves the ledger.
func (e *EscrowEngine) ResolveGame(caller string, gameID uint64, winner string) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.canAdjudicate(caller) {
		return models.ErrUnauthorized
	}

	game, ok := e.games[gameID]
	if !ok {
		return models.ErrGameNotFound
	}
	if game.Status != models.GameStatusActive {
		return models.ErrInvalidGameState
	}
	if !game.HasPlayer(winner) {
		return models.ErrInvalidWinner
	}

	pot := 2 * game.Stake
	fee := pot * e.rateBps / 10000
	payout := pot - fee

	before := e.balances[winner]
	e.balances[winner] = before + payout
	e.commission += fee

	now := time.Now()
	game.Status = models.GameStatusResolved
	game.Winner = winner
	game.Payout = payout
	game.Commission = fee
	game.UpdatedAt = now
	game.EndedAt = now

	e.persistMutation(game, true, winner)
	e.journal(winner, models.TransactionTypePayout, payout, before, gameID,
		fmt.Sprintf("Won game %d: pot %d less commission %d", gameID, pot, fee))
	e.emit(&models.Event{
		Type:    models.EventGameResolved,
		Account: winner,
		GameID:  gameID,
		Amount:  payout,
		Data:    map[string]any{"pot": pot, "commission": fee, "rate_bps": e.rateBps},
	})

	return nil
}

// CancelGame lets the creator walk away from a game nobody has joined.
func (e *EscrowEngine) CancelGame(caller string, gameID uint64) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	game, ok := e.games[gameID]
	if !ok {
		return models.ErrGameNotFound
	}
	if caller != game.Creator {
		return models.ErrUnauthorized
	}
	if game.Status != models.GameStatusOpen {
		return models.ErrInvalidGameState
	}

	before := e.balances[caller]
	e.balances[caller] = before + game.Stake

	now := time.Now()
	game.Status = models.GameStatusCancelled
	game.UpdatedAt = now
	game.EndedAt = now

	e.persistMutation(game, false, caller)
	e.journal(caller, models.TransactionTypeRefund, game.Stake, before, gameID,
		fmt.Sprintf("Stake returned for cancelled game %d", gameID))
	e.emit(&models.Event{Type: models.EventGameCancelled, Account: caller, GameID: gameID, Amount: game.Stake})

	return nil
}

// ForceRefund voids a non-terminal game and returns every locked stake to
// its owner. No commission is taken.
func (e *EscrowEngine) ForceRefund(caller string, gameID uint64) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.canAdjudicate(caller) {
		return models.ErrUnauthorized
	}

	game, ok := e.games[gameID]
	if !ok {
		return models.ErrGameNotFound
	}
	if game.Terminal() {
		return models.ErrInvalidGameState
	}

	refunded := []string{game.Creator}
	creatorBefore := e.balances[game.Creator]
	e.balances[game.Creator] = creatorBefore + game.Stake

	var opponentBefore int64
	if game.Opponent != "" {
		opponentBefore = e.balances[game.Opponent]
		e.balances[game.Opponent] = opponentBefore + game.Stake
		refunded = append(refunded, game.Opponent)
	}

	now := time.Now()
	game.Status = models.GameStatusVoided
	game.UpdatedAt = now
	game.EndedAt = now

	e.persistMutation(game, false, refunded...)
	e.journal(game.Creator, models.TransactionTypeRefund, game.Stake, creatorBefore, gameID,
		fmt.Sprintf("Stake refunded for voided game %d", gameID))
	if game.Opponent != "" {
		e.journal(game.Opponent, models.TransactionTypeRefund, game.Stake, opponentBefore, gameID,
			fmt.Sprintf("Stake refunded for voided game %d", gameID))
	}
	e.emit(&models.Event{
		Type:   models.EventGameVoided,
		GameID: gameID,
		Amount: game.Stake,
		Data:   map[string]any{"creator": game.Creator, "opponent": game.Opponent},
	})

	return nil
}

// SetCommissionRate changes the rate applied to future resolutions.
// Already-resolved games keep the rate they were settled at.
func (e *EscrowEngine) SetCommissionRate(caller string, rateBps int64) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.principal {
		return models.ErrUnauthorized
	}
	if rateBps < 0 {
		return models.ErrInvalidAmount
	}
	if rateBps > models.MaxCommissionRateBps {
		return models.ErrRateTooHigh
	}

	previous := e.rateBps
	e.rateBps = rateBps

	e.persistMutation(nil, true)
	e.emit(&models.Event{
		Type:    models.EventRateChanged,
		Account: caller,
		Data:    map[string]any{"rate_bps": rateBps, "previous_bps": previous},
	})

	return nil
}

// WithdrawCommission pays accrued commission out to the principal. The pool
// is decremented before the custodian push and restored if the push fails.
func (e *EscrowEngine) WithdrawCommission(ctx context.Context, caller string, amount int64) error {
	if amount <= 0 || amount > models.MaxAmount {
		return models.ErrInvalidAmount
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.principal {
		return models.ErrUnauthorized
	}

	before := e.commission
	if before < amount {
		return models.ErrInsufficientCommission
	}

	e.commission = before - amount
	e.netInflow -= amount

	if err := e.custodian.Push(ctx, caller, amount); err != nil {
		e.commission = before
		e.netInflow += amount
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	e.persistMutation(nil, true)
	e.journal(caller, models.TransactionTypeCommission, -amount, before, 0,
		fmt.Sprintf("Commission withdrawal of %d", amount))
	e.emit(&models.Event{Type: models.EventCommissionWithdrawn, Account: caller, Amount: amount})

	return nil
}

// SetAdjudicator grants resolve and force-refund rights to account.
func (e *EscrowEngine) SetAdjudicator(caller, account string) error {
	if account == "" {
		return models.ErrInvalidAccount
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.principal {
		return models.ErrUnauthorized
	}

	e.adjudicator = account

	e.persistMutation(nil, true)
	e.emit(&models.Event{
		Type:    models.EventRoleChanged,
		Account: account,
		Data:    map[string]any{"role": "adjudicator", "action": "set"},
	})

	return nil
}

// ClearAdjudicator revokes the adjudicator role entirely.
func (e *EscrowEngine) ClearAdjudicator(caller string) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.principal {
		return models.ErrUnauthorized
	}

	previous := e.adjudicator
	e.adjudicator = ""

	e.persistMutation(nil, true)
	e.emit(&models.Event{
		Type: models.EventRoleChanged,
		Data: map[string]any{"role": "adjudicator", "action": "cleared", "previous": previous},
	})

	return nil
}

// TransferPrincipal hands the principal role to another account. Only the
// current principal can do this; there is no recovery path for a transfer
// to the wrong account.
func (e *EscrowEngine) TransferPrincipal(caller, account string) error {
	if account == "" {
		return models.ErrInvalidAccount
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.principal {
		return models.ErrUnauthorized
	}

	e.principal = account

	e.persistMutation(nil, true)
	e.emit(&models.Event{
		Type:    models.EventRoleChanged,
		Account: account,
		Data:    map[string]any{"role": "principal", "previous": caller},
	})

	return nil
}

func (e *EscrowEngine) BalanceOf(account string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances[account]
}

// LockedOf sums the stakes account currently has tied up in non-terminal
// games.
func (e *EscrowEngine) LockedOf(account string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var locked int64
	for _, game := range e.games {
		if game.Terminal() {
			continue
		}
		if game.Creator == account {
			locked += game.Stake
		}
		if game.Opponent == account {
			locked += game.Stake
		}
	}
	return locked
}

// GameByID returns a copy; callers never share memory with the registry.
func (e *EscrowEngine) GameByID(gameID uint64) (*models.Game, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	game, ok := e.games[gameID]
	if !ok {
		return nil, models.ErrGameNotFound
	}

	snapshot := *game
	return &snapshot, nil
}

// ListGames returns copies of games matching the filters, newest first.
// Empty status or account means no filter; limit <= 0 means no cap.
func (e *EscrowEngine) ListGames(status models.GameStatus, account string, limit int) []*models.Game {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var games []*models.Game
	for _, game := range e.games {
		if status != "" && game.Status != status {
			continue
		}
		if account != "" && !game.HasPlayer(account) {
			continue
		}
		snapshot := *game
		games = append(games, &snapshot)
	}

	sort.Slice(games, func(i, j int) bool { return games[i].ID > games[j].ID })

	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games
}

func (e *EscrowEngine) Principal() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.principal
}

func (e *EscrowEngine) Adjudicator() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.adjudicator
}

func (e *EscrowEngine) CommissionRate() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rateBps
}

func (e *EscrowEngine) AccruedCommission() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.commission
}

func (e *EscrowEngine) Status() *models.EscrowStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return &models.EscrowStatus{
		Principal:         e.principal,
		Adjudicator:       e.adjudicator,
		CommissionRateBps: e.rateBps,
		AccruedCommission: e.commission,
		GameCount:         e.nextGameID - 1,
	}
}

func (e *EscrowEngine) Snapshot() *models.EscrowState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// Restore replays the redis mirror into the engine. Call once at boot
// before serving traffic; mirrored state wins over constructor defaults so
// role and rate changes survive restarts.
func (e *EscrowEngine) Restore() error {
	if e.redis == nil {
		return nil
	}

	state, err := e.redis.LoadState()
	if err != nil {
		return err
	}
	if state == nil {
		return nil // fresh deployment
	}

	balances, err := e.redis.LoadBalances()
	if err != nil {
		return err
	}
	games, err := e.redis.LoadGames()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.balances = balances
	e.games = games
	e.principal = state.Principal
	e.adjudicator = state.Adjudicator
	e.rateBps = state.CommissionRateBps
	e.commission = state.AccruedCommission
	e.netInflow = state.NetInflow
	e.nextGameID = state.NextGameID
	if e.nextGameID < 1 {
		e.nextGameID = 1
	}

	log.Printf("Restored escrow state: %d accounts, %d games, next game %d",
		len(balances), len(games), e.nextGameID)

	return nil
}

// AuditConservation checks that every unit the custodian has handed over is
// still accounted for: free balances plus stakes locked in unfinished games
// plus unwithdrawn commission must equal net custodian inflow.
func (e *EscrowEngine) AuditConservation() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var total int64
	for _, balance := range e.balances {
		total += balance
	}
	for _, game := range e.games {
		if game.Terminal() {
			continue
		}
		total += game.Stake
		if game.Opponent != "" {
			total += game.Stake
		}
	}
	total += e.commission

	if total != e.netInflow {
		return fmt.Errorf("conservation mismatch: accounted %d, net inflow %d", total, e.netInflow)
	}
	return nil
}

func (e *EscrowEngine) canAdjudicate(caller string) bool {
	if caller == "" {
		return false
	}
	return caller == e.principal || caller == e.adjudicator
}

func (e *EscrowEngine) snapshotLocked() *models.EscrowState {
	return &models.EscrowState{
		Principal:         e.principal,
		Adjudicator:       e.adjudicator,
		CommissionRateBps: e.rateBps,
		AccruedCommission: e.commission,
		NextGameID:        e.nextGameID,
		NetInflow:         e.netInflow,
	}
}

// Mirror, journal and event sinks are best-effort: a sink failure is logged
// and never fails the operation that already committed in memory.

// persistMutation mirrors one committed operation: the named accounts'
// balances, the touched game and, when a counter or role changed, the state
// snapshot. Everything goes out in a single transaction so the mirror never
// holds half an operation, such as a stored game ahead of NextGameID.
func (e *EscrowEngine) persistMutation(game *models.Game, withState bool, accounts ...string) {
	if e.redis == nil {
		return
	}

	balances := make(map[string]int64, len(accounts))
	for _, account := range accounts {
		balances[account] = e.balances[account]
	}

	var state *models.EscrowState
	if withState {
		state = e.snapshotLocked()
	}

	if err := e.redis.MirrorMutation(balances, game, state); err != nil {
		log.Printf("Failed to mirror mutation: %v", err)
	}
}

func (e *EscrowEngine) journal(account string, txType models.TransactionType, amount, before int64, gameID uint64, description string) {
	if e.redis == nil {
		return
	}

	tx := &models.Transaction{
		ID:            models.GenerateTransactionID(),
		Account:       account,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  before + amount,
		GameID:        gameID,
		Description:   description,
		CreatedAt:     time.Now(),
	}

	if err := e.redis.SaveTransaction(tx); err != nil {
		log.Printf("Failed to journal %s for %s: %v", txType, account, err)
	}
}

func (e *EscrowEngine) emit(event *models.Event) {
	event.ID = models.GenerateEventID()
	event.CreatedAt = time.Now()

	if e.redis != nil {
		if err := e.redis.PublishEvent(event); err != nil {
			log.Printf("Failed to publish %s event: %v", event.Type, err)
		}
	}
	if e.broadcaster != nil {
		e.broadcaster.BroadcastEvent(event)
	}
}
