// internal/lobby/table.go
package lobby

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// reference tags ledger transfers with the table instance they belong to.
func (l *Lobby) reference() string {
	return "lobby:" + l.ID.String() + ":table:" + l.TableID.String()
}

// openTable declares (or re-declares) the table with the given bet and seats the host.
func (e *Engine) openTable(s *Session, amount int64) error {
	l := e.lobbyOf(s)
	if l == nil {
		return ErrNotInLobby
	}
	ownsTable := l.TableHost != nil && l.TableHost.SessionID == s.ID
	switch l.State {
	case StatePlaying:
		if !ownsTable {
			return ErrTableOccupied
		}
		return ErrGameInProgress
	case StateBetting:
		if l.TableHost != nil && !ownsTable {
			return ErrTableOccupied
		}
	}
	if amount <= 0 {
		return ErrInvalidBet
	}
	available := s.Balance
	if ownsTable && l.State == StateBetting && l.isSeated(s.ID) {
		available += l.Bet
	}
	if available < amount {
		return ErrBalanceTooLow
	}
	p := l.member(s.ID)
	if p == nil {
		return ErrNotInLobby
	}

	if l.State == StateBetting {
		for _, seat := range append([]*Participant(nil), l.Seated...) {
			e.releaseSeat(l, seat)
		}
	}

	l.TableID = uuid.New()
	l.State = StateBetting
	l.Bet = amount
	l.Pot = 0
	l.TableHost = p
	l.LastWinner = nil
	l.Seated = nil
	l.TurnOrder = nil
	l.TurnIndex = 0
	l.pendingSeats = make(map[uuid.UUID]uuid.UUID)

	e.logger.WithFields(logrus.Fields{"lobby": l.ID, "table": l.TableID, "host": s.ID, "bet": amount}).Info("Table opened")
	e.record(l, s.UserID, "table_open", map[string]interface{}{"bet": amount})
	e.announce(l, "%s opened a table with a bet of %d", p.Name, amount)
	e.broadcastRoom(l)

	e.requestSeat(l, s)
	return nil
}

// seatPlayer debits the bet and seats the session once the debit confirms.
func (e *Engine) seatPlayer(s *Session) error {
	l := e.lobbyOf(s)
	if l == nil {
		return ErrNotInLobby
	}
	if l.State != StateBetting {
		if l.State == StatePlaying {
			return ErrGameInProgress
		}
		return ErrNoOpenTable
	}
	if l.isSeated(s.ID) {
		return nil
	}
	if tableID, pending := l.pendingSeats[s.ID]; pending && tableID == l.TableID {
		return nil
	}
	if s.Balance < l.Bet {
		return ErrBalanceTooLow
	}
	e.requestSeat(l, s)
	return nil
}

// requestSeat starts the stake debit; the ledger has the final say on the balance.
func (e *Engine) requestSeat(l *Lobby, s *Session) {
	tableID := l.TableID
	l.pendingSeats[s.ID] = tableID
	t := Transfer{UserID: s.UserID, Amount: l.Bet, Kind: KindBet, Reference: l.reference()}

	var (
		balance int64
		err     error
	)
	e.sched.Async(func(ctx context.Context) {
		balance, err = e.ledger.Debit(ctx, t)
	}, func() {
		e.completeSeat(l, s, tableID, t, balance, err)
	})
}

func (e *Engine) completeSeat(l *Lobby, s *Session, tableID uuid.UUID, t Transfer, balance int64, err error) {
	if l.pendingSeats[s.ID] == tableID {
		delete(l.pendingSeats, s.ID)
	}
	log := e.logger.WithFields(logrus.Fields{"lobby": l.ID, "table": tableID, "session": s.ID, "amount": t.Amount})

	if err != nil {
		log.WithError(err).Warn("Stake debit failed")
		e.sendTo(s.ID, errorMsg(ErrDebitFailed))
		return
	}
	e.setBalance(s.ID, s.UserID, balance)

	p := l.member(s.ID)
	if l.destroyed || l.TableID != tableID || l.State != StateBetting || p == nil || l.isSeated(s.ID) {
		log.Info("Table changed before debit confirmed, refunding")
		t.Kind = KindRefund
		e.creditBack(l, s.ID, t)
		e.sendTo(s.ID, errorMsg(ErrTableChanged))
		return
	}

	p.LastRoll = nil
	p.rollHidden = false
	l.Seated = append(l.Seated, p)
	l.Pot += t.Amount

	log.WithField("pot", l.Pot).Info("Player seated")
	e.record(l, s.UserID, "seat", map[string]interface{}{"amount": t.Amount, "pot": l.Pot})
	e.announce(l, "%s joined the table", p.Name)
	e.broadcastRoom(l)
}

// unseatPlayer lets a seated player stand up, refunding the stake outside of Idle/Finished.
func (e *Engine) unseatPlayer(s *Session) error {
	l := e.lobbyOf(s)
	if l == nil {
		return ErrNotInLobby
	}
	p := l.seated(s.ID)
	if p == nil {
		return ErrNotSeated
	}
	wasTableHost := l.TableHost == p

	e.releaseSeat(l, p)
	e.logger.WithFields(logrus.Fields{"lobby": l.ID, "session": s.ID, "state": l.State}).Info("Player left the table")
	e.announce(l, "%s left the table", p.Name)
	e.repairTable(l, wasTableHost)
	e.broadcastRoom(l)
	return nil
}
