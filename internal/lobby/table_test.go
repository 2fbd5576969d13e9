package lobby

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenTableSeatsHost(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	l := h.createLobby(alice, "Dice Den")

	h.openTable(alice, 50)

	assert.Equal(t, StateBetting, l.State)
	assert.EqualValues(t, 50, l.Bet)
	assert.EqualValues(t, 50, l.Pot)
	assert.Equal(t, alice.session, l.TableHost.SessionID)
	assert.Equal(t, []uuid.UUID{alice.session}, sessionIDs(l.Seated))
	assert.NotEqual(t, uuid.Nil, l.TableID)
	assert.EqualValues(t, 950, h.balance(alice))
	assert.EqualValues(t, 950, alice.out.last(EventBalanceUpdate)["balance"])
	assert.Contains(t, h.actions.types(), "table_open")
	assert.Contains(t, h.actions.types(), "seat")
}

func TestOpenTableRejectsBadBets(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	l := h.createLobby(alice, "Dice Den")

	for _, amount := range []interface{}{float64(0), float64(-5), 2.5, "50", nil} {
		h.send(alice, Message{"type": ActionSetBet, "amount": amount})
		assert.Equal(t, ErrInvalidBet.Msg, h.lastError(alice), "amount %v", amount)
	}
	assert.Equal(t, StateIdle, l.State)
}

func TestOpenTableRequiresBalance(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 40)
	l := h.createLobby(alice, "Dice Den")

	h.openTable(alice, 50)
	assert.Equal(t, ErrBalanceTooLow.Msg, h.lastError(alice))
	assert.Equal(t, StateIdle, l.State)
	assert.Empty(t, h.ledger.ops)
}

func TestOpenTableOccupied(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	bob := h.join("Bob_Jones", 1000)
	l := h.table(50, alice, bob)

	h.openTable(bob, 20)
	assert.Equal(t, ErrTableOccupied.Msg, h.lastError(bob))

	h.start(alice)
	h.openTable(alice, 20)
	assert.Equal(t, ErrGameInProgress.Msg, h.lastError(alice))
	h.openTable(bob, 20)
	assert.Equal(t, ErrTableOccupied.Msg, h.lastError(bob))
	assert.EqualValues(t, 50, l.Bet)
}

func TestHostRedeclaresBetRefundsSeats(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	bob := h.join("Bob_Jones", 1000)
	l := h.table(50, alice, bob)
	firstTable := l.TableID

	h.openTable(alice, 80)

	assert.NotEqual(t, firstTable, l.TableID)
	assert.EqualValues(t, 80, l.Bet)
	assert.EqualValues(t, 80, l.Pot)
	assert.Equal(t, []uuid.UUID{alice.session}, sessionIDs(l.Seated))
	assert.EqualValues(t, 920, h.balance(alice))
	assert.EqualValues(t, 1000, h.balance(bob))
	assert.Equal(t, []string{KindBet, KindRefund}, h.ledger.kinds(bob.user))
}

func TestSeatPlayerRules(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	bob := h.join("Bob_Jones", 30)
	l := h.createLobby(alice, "Dice Den")
	h.joinLobby(bob, l)

	h.sit(bob)
	assert.Equal(t, ErrNoOpenTable.Msg, h.lastError(bob))

	h.openTable(alice, 50)
	h.sit(bob)
	assert.Equal(t, ErrBalanceTooLow.Msg, h.lastError(bob))
	assert.Len(t, l.Seated, 1)

	alice.out.reset()
	h.sit(alice)
	assert.Empty(t, alice.out.ofType(EventError), "sitting twice is a no-op")
	assert.EqualValues(t, 50, l.Pot)
}

func TestPotIsBetTimesSeated(t *testing.T) {
	h := newHarness(t)
	players := []*player{
		h.join("Alice_Smith", 1000),
		h.join("Bob_Jones", 1000),
		h.join("Carol_White", 1000),
		h.join("Dave_Brown", 1000),
	}
	l := h.table(25, players...)

	assert.EqualValues(t, 4*25, l.Pot)
	for _, p := range players {
		assert.EqualValues(t, 975, h.balance(p))
	}
}

func TestDebitFailureLeavesPlayerUnseated(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	bob := h.join("Bob_Jones", 1000)
	l := h.createLobby(alice, "Dice Den")
	h.joinLobby(bob, l)
	h.openTable(alice, 50)

	h.ledger.failDebit[bob.user] = true
	h.sit(bob)

	assert.Equal(t, ErrDebitFailed.Msg, h.lastError(bob))
	assert.Len(t, l.Seated, 1)
	assert.EqualValues(t, 50, l.Pot)
	assert.EqualValues(t, 1000, h.balance(bob))
	assert.Empty(t, l.pendingSeats)
}

func TestDebitAfterTableChangedIsRefunded(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	bob := h.join("Bob_Jones", 1000)
	l := h.createLobby(alice, "Dice Den")
	h.joinLobby(bob, l)
	h.openTable(alice, 50)

	// bob's debit confirmation is queued behind alice's re-declaration
	h.engine.Handle(bob.conn, Message{"type": ActionJoinTable})
	h.engine.Handle(alice.conn, Message{"type": ActionSetBet, "amount": float64(80)})
	h.sched.drain()

	assert.Equal(t, ErrTableChanged.Msg, h.lastError(bob))
	assert.Equal(t, []uuid.UUID{alice.session}, sessionIDs(l.Seated))
	assert.EqualValues(t, 80, l.Pot)
	assert.EqualValues(t, 1000, h.balance(bob))
	assert.Equal(t, []string{KindBet, KindRefund}, h.ledger.kinds(bob.user))
}

func TestLeaveTableRefundsDuringBetting(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	bob := h.join("Bob_Jones", 1000)
	l := h.table(50, alice, bob)

	h.send(bob, Message{"type": ActionLeaveTable})

	assert.Equal(t, []uuid.UUID{alice.session}, sessionIDs(l.Seated))
	assert.EqualValues(t, 50, l.Pot)
	assert.EqualValues(t, 1000, h.balance(bob))
	assert.EqualValues(t, 1000, bob.out.last(EventBalanceUpdate)["balance"])
	assert.Len(t, l.Members, 2, "leaving the table keeps lobby membership")

	h.send(bob, Message{"type": ActionLeaveTable})
	assert.Equal(t, ErrNotSeated.Msg, h.lastError(bob))
}

func TestLastSeatedLeavingResetsTable(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	l := h.createLobby(alice, "Dice Den")
	h.openTable(alice, 50)

	h.send(alice, Message{"type": ActionLeaveTable})

	assert.Equal(t, StateIdle, l.State)
	assert.Nil(t, l.TableHost)
	assert.Zero(t, l.Bet)
	assert.Zero(t, l.Pot)
	assert.Equal(t, uuid.Nil, l.TableID)
	assert.EqualValues(t, 1000, h.balance(alice))
}

func TestStartGameRules(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)
	bob := h.join("Bob_Jones", 1000)
	l := h.createLobby(alice, "Dice Den")
	h.joinLobby(bob, l)

	h.start(alice)
	assert.Equal(t, ErrNotTableHost.Msg, h.lastError(alice))

	h.openTable(alice, 50)
	h.start(alice)
	assert.Equal(t, ErrNotEnoughPlayers.Msg, h.lastError(alice))

	h.sit(bob)
	h.start(bob)
	assert.Equal(t, ErrNotTableHost.Msg, h.lastError(bob))

	h.start(alice)
	assert.Equal(t, StatePlaying, l.State)
	h.start(alice)
	assert.Equal(t, ErrGameInProgress.Msg, h.lastError(alice))
}

func TestTableActionsRequireLobby(t *testing.T) {
	h := newHarness(t)
	alice := h.join("Alice_Smith", 1000)

	for _, action := range []string{ActionJoinTable, ActionLeaveTable, ActionStartGame, ActionLeaveLobby} {
		alice.out.reset()
		h.send(alice, Message{"type": action})
		require.Len(t, alice.out.ofType(EventError), 1, action)
		assert.Equal(t, ErrNotInLobby.Msg, h.lastError(alice), action)
	}
}
