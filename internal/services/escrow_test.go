package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"wager-escrow-backend/internal/models"
	"wager-escrow-backend/internal/services"
)

const testPrincipal = "acct_principal"

type transferCall struct {
	account string
	amount  int64
}

// fakeCustodian records transfers and can be programmed to fail or to call
// back into the engine mid-transfer.
type fakeCustodian struct {
	pulls  []transferCall
	pushes []transferCall

	pullErr  error
	pushErr  error
	pushFunc func(ctx context.Context, account string, amount int64) error
}

func (f *fakeCustodian) Pull(ctx context.Context, account string, amount int64) error {
	if f.pullErr != nil {
		return f.pullErr
	}
	f.pulls = append(f.pulls, transferCall{account, amount})
	return nil
}

func (f *fakeCustodian) Push(ctx context.Context, account string, amount int64) error {
	if f.pushFunc != nil {
		return f.pushFunc(ctx, account, amount)
	}
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, transferCall{account, amount})
	return nil
}

func newTestEngine(t *testing.T) (*services.EscrowEngine, *fakeCustodian) {
	t.Helper()
	custodian := &fakeCustodian{}
	engine, err := services.NewEscrowEngine(custodian, nil, testPrincipal, 500)
	require.NoError(t, err)
	return engine, custodian
}

func fund(t *testing.T, engine *services.EscrowEngine, account string, amount int64) {
	t.Helper()
	require.NoError(t, engine.Deposit(context.Background(), account, amount))
}

func assertConserved(t *testing.T, engine *services.EscrowEngine) {
	t.Helper()
	require.NoError(t, engine.AuditConservation())
}

func TestNewEngineValidation(t *testing.T) {
	custodian := &fakeCustodian{}

	_, err := services.NewEscrowEngine(custodian, nil, "", 500)
	require.ErrorIs(t, err, models.ErrInvalidAccount)

	_, err = services.NewEscrowEngine(custodian, nil, testPrincipal, 1600)
	require.ErrorIs(t, err, models.ErrRateTooHigh)

	_, err = services.NewEscrowEngine(custodian, nil, testPrincipal, -1)
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = services.NewEscrowEngine(custodian, nil, testPrincipal, 1500)
	require.NoError(t, err)
}

func TestDeposit(t *testing.T) {
	engine, custodian := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Deposit(ctx, "acct_alice", 1000))
	require.Equal(t, int64(1000), engine.BalanceOf("acct_alice"))
	require.Equal(t, []transferCall{{"acct_alice", 1000}}, custodian.pulls)

	require.ErrorIs(t, engine.Deposit(ctx, "acct_alice", 0), models.ErrInvalidAmount)
	require.ErrorIs(t, engine.Deposit(ctx, "acct_alice", -50), models.ErrInvalidAmount)
	require.ErrorIs(t, engine.Deposit(ctx, "", 100), models.ErrInvalidAccount)

	custodian.pullErr = errors.New("custody offline")
	err := engine.Deposit(ctx, "acct_alice", 500)
	require.ErrorIs(t, err, models.ErrTransferFailed)
	require.Equal(t, int64(1000), engine.BalanceOf("acct_alice"))

	assertConserved(t, engine)
}

func TestWithdraw(t *testing.T) {
	engine, custodian := newTestEngine(t)
	ctx := context.Background()
	fund(t, engine, "acct_alice", 1000)

	require.NoError(t, engine.Withdraw(ctx, "acct_alice", 400))
	require.Equal(t, int64(600), engine.BalanceOf("acct_alice"))
	require.Equal(t, []transferCall{{"acct_alice", 400}}, custodian.pushes)

	require.ErrorIs(t, engine.Withdraw(ctx, "acct_alice", 601), models.ErrInsufficientBalance)
	require.ErrorIs(t, engine.Withdraw(ctx, "acct_alice", 0), models.ErrInvalidAmount)
	require.ErrorIs(t, engine.Withdraw(ctx, "acct_nobody", 1), models.ErrInsufficientBalance)

	assertConserved(t, engine)
}

func TestWithdrawRollsBackOnPushFailure(t *testing.T) {
	engine, custodian := newTestEngine(t)
	ctx := context.Background()
	fund(t, engine, "acct_alice", 500)

	custodian.pushErr = errors.New("custody offline")
	err := engine.Withdraw(ctx, "acct_alice", 200)
	require.ErrorIs(t, err, models.ErrTransferFailed)
	require.Equal(t, int64(500), engine.BalanceOf("acct_alice"))
	assertConserved(t, engine)

	custodian.pushErr = nil
	require.NoError(t, engine.Withdraw(ctx, "acct_alice", 200))
	require.Equal(t, int64(300), engine.BalanceOf("acct_alice"))
	assertConserved(t, engine)
}

func TestCreateGame(t *testing.T) {
	engine, _ := newTestEngine(t)
	fund(t, engine, "acct_alice", 1000)

	first, err := engine.CreateGame("acct_alice", 300)
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)
	require.Equal(t, int64(700), engine.BalanceOf("acct_alice"))
	require.Equal(t, int64(300), engine.LockedOf("acct_alice"))

	second, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)
	require.Equal(t, uint64(2), second)

	_, err = engine.CreateGame("acct_alice", 0)
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = engine.CreateGame("acct_alice", 5000)
	require.ErrorIs(t, err, models.ErrInsufficientBalance)

	game, err := engine.GameByID(first)
	require.NoError(t, err)
	require.Equal(t, models.GameStatusOpen, game.Status)
	require.Equal(t, "acct_alice", game.Creator)
	require.Empty(t, game.Opponent)

	// Registry hands out copies, not shared pointers.
	game.Status = models.GameStatusResolved
	fresh, err := engine.GameByID(first)
	require.NoError(t, err)
	require.Equal(t, models.GameStatusOpen, fresh.Status)

	assertConserved(t, engine)
}

func TestJoinGame(t *testing.T) {
	engine, _ := newTestEngine(t)
	fund(t, engine, "acct_alice", 1000)
	fund(t, engine, "acct_bob", 1000)

	gameID, err := engine.CreateGame("acct_alice", 250)
	require.NoError(t, err)

	require.ErrorIs(t, engine.JoinGame("acct_bob", 99), models.ErrGameNotFound)
	require.ErrorIs(t, engine.JoinGame("acct_alice", gameID), models.ErrSelfJoin)
	require.ErrorIs(t, engine.JoinGame("acct_pauper", gameID), models.ErrInsufficientBalance)

	require.NoError(t, engine.JoinGame("acct_bob", gameID))
	require.Equal(t, int64(750), engine.BalanceOf("acct_bob"))
	require.Equal(t, int64(250), engine.LockedOf("acct_bob"))

	game, err := engine.GameByID(gameID)
	require.NoError(t, err)
	require.Equal(t, models.GameStatusActive, game.Status)
	require.Equal(t, "acct_bob", game.Opponent)

	// Second seat is gone now.
	fund(t, engine, "acct_carol", 1000)
	require.ErrorIs(t, engine.JoinGame("acct_carol", gameID), models.ErrInvalidGameState)

	assertConserved(t, engine)
}

func TestResolveGame(t *testing.T) {
	engine, _ := newTestEngine(t)
	fund(t, engine, "acct_alice", 1000)
	fund(t, engine, "acct_bob", 1000)

	gameID, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)

	// Open games are never resolvable.
	require.ErrorIs(t, engine.ResolveGame(testPrincipal, gameID, "acct_alice"), models.ErrInvalidGameState)

	require.NoError(t, engine.JoinGame("acct_bob", gameID))

	require.ErrorIs(t, engine.ResolveGame(testPrincipal, gameID, "acct_carol"), models.ErrInvalidWinner)
	require.ErrorIs(t, engine.ResolveGame("acct_bob", gameID, "acct_bob"), models.ErrUnauthorized)
	require.ErrorIs(t, engine.ResolveGame(testPrincipal, 99, "acct_alice"), models.ErrGameNotFound)

	// Pot 200 at 500 bps: commission 10, payout 190.
	require.NoError(t, engine.ResolveGame(testPrincipal, gameID, "acct_alice"))
	require.Equal(t, int64(1090), engine.BalanceOf("acct_alice"))
	require.Equal(t, int64(900), engine.BalanceOf("acct_bob"))
	require.Equal(t, int64(10), engine.AccruedCommission())

	game, err := engine.GameByID(gameID)
	require.NoError(t, err)
	require.Equal(t, models.GameStatusResolved, game.Status)
	require.Equal(t, "acct_alice", game.Winner)
	require.Equal(t, int64(190), game.Payout)
	require.Equal(t, int64(10), game.Commission)

	// Terminal games are immutable.
	require.ErrorIs(t, engine.ResolveGame(testPrincipal, gameID, "acct_bob"), models.ErrInvalidGameState)
	require.ErrorIs(t, engine.ForceRefund(testPrincipal, gameID), models.ErrInvalidGameState)
	require.ErrorIs(t, engine.CancelGame("acct_alice", gameID), models.ErrInvalidGameState)

	assertConserved(t, engine)
}

func TestCommissionFloorStaysInLedger(t *testing.T) {
	engine, _ := newTestEngine(t)
	require.NoError(t, engine.SetCommissionRate(testPrincipal, 75))
	fund(t, engine, "acct_alice", 1000)
	fund(t, engine, "acct_bob", 1000)

	gameID, err := engine.CreateGame("acct_alice", 333)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", gameID))

	// Pot 666 at 75 bps: floor(4.995) = 4 commission, the remainder rides
	// along with the winner's payout of 662.
	require.NoError(t, engine.ResolveGame(testPrincipal, gameID, "acct_bob"))
	require.Equal(t, int64(4), engine.AccruedCommission())
	require.Equal(t, int64(667+662), engine.BalanceOf("acct_bob"))

	assertConserved(t, engine)
}

func TestCancelGame(t *testing.T) {
	engine, _ := newTestEngine(t)
	fund(t, engine, "acct_alice", 500)
	fund(t, engine, "acct_bob", 500)

	gameID, err := engine.CreateGame("acct_alice", 200)
	require.NoError(t, err)

	require.ErrorIs(t, engine.CancelGame("acct_bob", gameID), models.ErrUnauthorized)
	require.ErrorIs(t, engine.CancelGame("acct_alice", 42), models.ErrGameNotFound)

	require.NoError(t, engine.CancelGame("acct_alice", gameID))
	require.Equal(t, int64(500), engine.BalanceOf("acct_alice"))
	require.Equal(t, int64(0), engine.LockedOf("acct_alice"))

	game, err := engine.GameByID(gameID)
	require.NoError(t, err)
	require.Equal(t, models.GameStatusCancelled, game.Status)

	// Once an opponent is seated the creator can no longer cancel.
	joinedID, err := engine.CreateGame("acct_alice", 200)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", joinedID))
	require.ErrorIs(t, engine.CancelGame("acct_alice", joinedID), models.ErrInvalidGameState)

	assertConserved(t, engine)
}

func TestForceRefund(t *testing.T) {
	engine, _ := newTestEngine(t)
	fund(t, engine, "acct_alice", 1000)
	fund(t, engine, "acct_bob", 1000)

	openID, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)

	require.ErrorIs(t, engine.ForceRefund("acct_alice", openID), models.ErrUnauthorized)
	require.ErrorIs(t, engine.ForceRefund(testPrincipal, 42), models.ErrGameNotFound)

	require.NoError(t, engine.ForceRefund(testPrincipal, openID))
	require.Equal(t, int64(1000), engine.BalanceOf("acct_alice"))

	game, err := engine.GameByID(openID)
	require.NoError(t, err)
	require.Equal(t, models.GameStatusVoided, game.Status)

	// Voided games are terminal: no second refund, no late resolution, and
	// the refunded balance stays put.
	require.ErrorIs(t, engine.ForceRefund(testPrincipal, openID), models.ErrInvalidGameState)
	require.ErrorIs(t, engine.ResolveGame(testPrincipal, openID, "acct_alice"), models.ErrInvalidGameState)
	require.Equal(t, int64(1000), engine.BalanceOf("acct_alice"))

	activeID, err := engine.CreateGame("acct_alice", 150)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", activeID))

	require.NoError(t, engine.ForceRefund(testPrincipal, activeID))
	require.Equal(t, int64(1000), engine.BalanceOf("acct_alice"))
	require.Equal(t, int64(1000), engine.BalanceOf("acct_bob"))
	require.Equal(t, int64(0), engine.AccruedCommission())

	require.ErrorIs(t, engine.ForceRefund(testPrincipal, activeID), models.ErrInvalidGameState)
	require.ErrorIs(t, engine.ResolveGame(testPrincipal, activeID, "acct_bob"), models.ErrInvalidGameState)
	require.Equal(t, int64(1000), engine.BalanceOf("acct_alice"))
	require.Equal(t, int64(1000), engine.BalanceOf("acct_bob"))
	require.Equal(t, int64(0), engine.AccruedCommission())

	assertConserved(t, engine)
}

func TestAdjudicatorCapabilities(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	fund(t, engine, "acct_alice", 1000)
	fund(t, engine, "acct_bob", 1000)

	require.ErrorIs(t, engine.SetAdjudicator("acct_alice", "acct_judge"), models.ErrUnauthorized)
	require.ErrorIs(t, engine.SetAdjudicator(testPrincipal, ""), models.ErrInvalidAccount)
	require.NoError(t, engine.SetAdjudicator(testPrincipal, "acct_judge"))
	require.Equal(t, "acct_judge", engine.Adjudicator())

	gameID, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", gameID))

	// The adjudicator can settle games...
	require.NoError(t, engine.ResolveGame("acct_judge", gameID, "acct_bob"))

	secondID, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)
	require.NoError(t, engine.ForceRefund("acct_judge", secondID))

	// ...but holds none of the principal-only controls.
	require.ErrorIs(t, engine.SetCommissionRate("acct_judge", 100), models.ErrUnauthorized)
	require.ErrorIs(t, engine.WithdrawCommission(ctx, "acct_judge", 1), models.ErrUnauthorized)
	require.ErrorIs(t, engine.SetAdjudicator("acct_judge", "acct_judge2"), models.ErrUnauthorized)
	require.ErrorIs(t, engine.TransferPrincipal("acct_judge", "acct_judge"), models.ErrUnauthorized)

	require.NoError(t, engine.ClearAdjudicator(testPrincipal))
	require.Empty(t, engine.Adjudicator())

	thirdID, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", thirdID))
	require.ErrorIs(t, engine.ResolveGame("acct_judge", thirdID, "acct_bob"), models.ErrUnauthorized)

	assertConserved(t, engine)
}

func TestCommissionRateBounds(t *testing.T) {
	engine, _ := newTestEngine(t)

	require.ErrorIs(t, engine.SetCommissionRate(testPrincipal, 1600), models.ErrRateTooHigh)
	require.ErrorIs(t, engine.SetCommissionRate(testPrincipal, -1), models.ErrInvalidAmount)
	require.ErrorIs(t, engine.SetCommissionRate("acct_alice", 100), models.ErrUnauthorized)

	require.NoError(t, engine.SetCommissionRate(testPrincipal, 1500))
	require.Equal(t, int64(1500), engine.CommissionRate())

	fund(t, engine, "acct_alice", 1000)
	fund(t, engine, "acct_bob", 1000)

	gameID, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", gameID))

	// Pot 200 at the 1500 bps ceiling: commission 30, payout 170.
	require.NoError(t, engine.ResolveGame(testPrincipal, gameID, "acct_alice"))
	require.Equal(t, int64(30), engine.AccruedCommission())
	require.Equal(t, int64(900+170), engine.BalanceOf("acct_alice"))

	assertConserved(t, engine)
}

func TestWithdrawCommission(t *testing.T) {
	engine, custodian := newTestEngine(t)
	ctx := context.Background()
	fund(t, engine, "acct_alice", 1000)
	fund(t, engine, "acct_bob", 1000)

	gameID, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", gameID))
	require.NoError(t, engine.ResolveGame(testPrincipal, gameID, "acct_alice"))
	require.Equal(t, int64(10), engine.AccruedCommission())

	require.ErrorIs(t, engine.WithdrawCommission(ctx, testPrincipal, 25), models.ErrInsufficientCommission)
	require.ErrorIs(t, engine.WithdrawCommission(ctx, testPrincipal, 0), models.ErrInvalidAmount)
	require.ErrorIs(t, engine.WithdrawCommission(ctx, "acct_alice", 5), models.ErrUnauthorized)

	custodian.pushErr = errors.New("custody offline")
	require.ErrorIs(t, engine.WithdrawCommission(ctx, testPrincipal, 10), models.ErrTransferFailed)
	require.Equal(t, int64(10), engine.AccruedCommission())
	assertConserved(t, engine)

	custodian.pushErr = nil
	require.NoError(t, engine.WithdrawCommission(ctx, testPrincipal, 10))
	require.Equal(t, int64(0), engine.AccruedCommission())
	require.Equal(t, transferCall{testPrincipal, 10}, custodian.pushes[len(custodian.pushes)-1])

	assertConserved(t, engine)
}

func TestTransferPrincipal(t *testing.T) {
	engine, _ := newTestEngine(t)

	require.ErrorIs(t, engine.TransferPrincipal("acct_alice", "acct_alice"), models.ErrUnauthorized)
	require.ErrorIs(t, engine.TransferPrincipal(testPrincipal, ""), models.ErrInvalidAccount)

	require.NoError(t, engine.TransferPrincipal(testPrincipal, "acct_new_owner"))
	require.Equal(t, "acct_new_owner", engine.Principal())

	// The old principal is out entirely.
	require.ErrorIs(t, engine.SetCommissionRate(testPrincipal, 100), models.ErrUnauthorized)
	require.NoError(t, engine.SetCommissionRate("acct_new_owner", 100))
	require.Equal(t, int64(100), engine.CommissionRate())
}

func TestReentrantMutationRefused(t *testing.T) {
	engine, custodian := newTestEngine(t)
	ctx := context.Background()
	fund(t, engine, "acct_alice", 500)

	var reentrantErr error
	custodian.pushFunc = func(ctx context.Context, account string, amount int64) error {
		reentrantErr = engine.Deposit(ctx, "acct_mallory", 50)
		return nil
	}

	require.NoError(t, engine.Withdraw(ctx, "acct_alice", 200))
	require.ErrorIs(t, reentrantErr, models.ErrOperationInProgress)
	require.Equal(t, int64(300), engine.BalanceOf("acct_alice"))
	require.Equal(t, int64(0), engine.BalanceOf("acct_mallory"))
	assertConserved(t, engine)

	// The latch is released once the outer call returns.
	custodian.pushFunc = nil
	require.NoError(t, engine.Deposit(ctx, "acct_mallory", 50))
	require.Equal(t, int64(50), engine.BalanceOf("acct_mallory"))
	assertConserved(t, engine)
}

func TestListGames(t *testing.T) {
	engine, _ := newTestEngine(t)
	fund(t, engine, "acct_alice", 1000)
	fund(t, engine, "acct_bob", 1000)

	first, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)
	second, err := engine.CreateGame("acct_bob", 100)
	require.NoError(t, err)
	third, err := engine.CreateGame("acct_alice", 100)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", third))

	open := engine.ListGames(models.GameStatusOpen, "", 0)
	require.Len(t, open, 2)
	require.Equal(t, second, open[0].ID) // newest first
	require.Equal(t, first, open[1].ID)

	active := engine.ListGames(models.GameStatusActive, "", 0)
	require.Len(t, active, 1)
	require.Equal(t, third, active[0].ID)

	bobs := engine.ListGames("", "acct_bob", 0)
	require.Len(t, bobs, 2)

	capped := engine.ListGames("", "", 1)
	require.Len(t, capped, 1)
	require.Equal(t, third, capped[0].ID)

	assertConserved(t, engine)
}

func TestConservationAcrossMixedSequence(t *testing.T) {
	engine, custodian := newTestEngine(t)
	ctx := context.Background()

	fund(t, engine, "acct_alice", 2500)
	assertConserved(t, engine)
	fund(t, engine, "acct_bob", 1800)
	assertConserved(t, engine)

	won, err := engine.CreateGame("acct_alice", 333)
	require.NoError(t, err)
	assertConserved(t, engine)
	require.NoError(t, engine.JoinGame("acct_bob", won))
	assertConserved(t, engine)

	cancelled, err := engine.CreateGame("acct_bob", 200)
	require.NoError(t, err)
	voided, err := engine.CreateGame("acct_alice", 150)
	require.NoError(t, err)
	require.NoError(t, engine.JoinGame("acct_bob", voided))
	assertConserved(t, engine)

	require.NoError(t, engine.ResolveGame(testPrincipal, won, "acct_bob"))
	assertConserved(t, engine)
	require.NoError(t, engine.CancelGame("acct_bob", cancelled))
	assertConserved(t, engine)
	require.NoError(t, engine.ForceRefund(testPrincipal, voided))
	assertConserved(t, engine)

	require.NoError(t, engine.Withdraw(ctx, "acct_bob", 500))
	assertConserved(t, engine)

	custodian.pushErr = errors.New("custody offline")
	require.Error(t, engine.Withdraw(ctx, "acct_alice", 100))
	assertConserved(t, engine)
	custodian.pushErr = nil

	if accrued := engine.AccruedCommission(); accrued > 0 {
		require.NoError(t, engine.WithdrawCommission(ctx, testPrincipal, accrued))
	}
	assertConserved(t, engine)

	snapshot := engine.Snapshot()
	require.Equal(t, uint64(4), snapshot.NextGameID)
	require.Equal(t, testPrincipal, snapshot.Principal)
	require.Equal(t, int64(0), snapshot.AccruedCommission)
}
