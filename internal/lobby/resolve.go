// internal/lobby/resolve.go
package lobby

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// resolve settles a completed turn order: a single high roll wins the pot, a shared
// high roll starts a sudden-death round among exactly the tied players.
func (e *Engine) resolve(l *Lobby) {
	l.cancelTurnTimer()

	var contenders []*Participant
	for _, id := range l.TurnOrder {
		if p := l.seated(id); p != nil && p.LastRoll != nil {
			contenders = append(contenders, p)
		}
	}
	if len(contenders) == 0 {
		e.finishWithoutWinner(l)
		return
	}

	best := 0
	for _, p := range contenders {
		if *p.LastRoll > best {
			best = *p.LastRoll
		}
	}
	var top []*Participant
	for _, p := range contenders {
		if *p.LastRoll == best {
			top = append(top, p)
		}
	}

	if len(top) > 1 {
		ids := make([]uuid.UUID, 0, len(top))
		names := make([]string, 0, len(top))
		for _, p := range top {
			ids = append(ids, p.SessionID)
			names = append(names, p.Name)
		}
		e.logger.WithFields(logrus.Fields{"lobby": l.ID, "total": best, "tied": len(top)}).Info("Tie, starting sudden death")
		e.record(l, uuid.Nil, "tie", map[string]interface{}{"total": best, "players": ids})
		e.announce(l, "Tie at %d between %s! Sudden death round", best, joinNames(names))
		e.startRound(l, ids)
		return
	}

	winner := top[0]
	pot := l.Pot

	keep := make([]*Participant, 0, 2)
	for _, p := range l.Seated {
		if p == l.TableHost || p == winner {
			keep = append(keep, p)
		}
	}
	l.Seated = keep
	l.State = StateFinished
	l.Pot = 0
	l.LastWinner = winner
	l.TurnOrder = nil
	l.TurnIndex = 0

	e.logger.WithFields(logrus.Fields{"lobby": l.ID, "table": l.TableID, "winner": winner.SessionID, "pot": pot, "total": best}).Info("Round won")
	e.record(l, winner.UserID, "win", map[string]interface{}{"pot": pot, "total": best})
	e.payout(l, winner, pot)
}

// payout credits the pot to the winner, then announces the result.
func (e *Engine) payout(l *Lobby, winner *Participant, pot int64) {
	announce := func() {
		if l.destroyed {
			return
		}
		e.broadcast(l, gameOverMsg(winner, pot))
		e.announce(l, "%s wins the pot of %d!", winner.Name, pot)
		e.broadcastRoom(l)
	}
	if pot <= 0 {
		announce()
		return
	}

	t := Transfer{UserID: winner.UserID, Amount: pot, Kind: KindWin, Reference: l.reference()}
	var (
		balance int64
		err     error
	)
	e.sched.Async(func(ctx context.Context) {
		balance, err = e.ledger.Credit(ctx, t)
	}, func() {
		if err != nil {
			e.logger.WithFields(logrus.Fields{"lobby": l.ID, "user": t.UserID, "amount": pot}).WithError(err).Error("Payout failed")
			e.record(l, t.UserID, "payout_failed", map[string]interface{}{"amount": pot, "error": err.Error()})
			e.sendTo(winner.SessionID, errorMsg(ErrPayoutFailed))
		} else {
			e.setBalance(winner.SessionID, t.UserID, balance)
		}
		announce()
	})
}

// finishWithoutWinner ends a round in which every contender left the table.
func (e *Engine) finishWithoutWinner(l *Lobby) {
	for _, p := range l.Seated {
		stake := l.Bet
		if stake > l.Pot {
			stake = l.Pot
		}
		l.Pot -= stake
		e.refund(l, p, stake)
	}

	keep := make([]*Participant, 0, 1)
	for _, p := range l.Seated {
		if p == l.TableHost {
			keep = append(keep, p)
		}
	}
	l.Seated = keep
	l.State = StateFinished
	l.Pot = 0
	l.LastWinner = nil
	l.TurnOrder = nil
	l.TurnIndex = 0

	e.logger.WithField("lobby", l.ID).Info("Round ended without a winner")
	e.record(l, uuid.Nil, "no_winner", nil)
	e.announce(l, "Round ended with no winner, stakes refunded")
	e.broadcastRoom(l)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	out := names[0]
	for _, n := range names[1 : len(names)-1] {
		out += ", " + n
	}
	return out + " and " + names[len(names)-1]
}
