// internal/lobby/turn.go
package lobby

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/random"
	"github.com/sirupsen/logrus"
)

func (e *Engine) requestStart(s *Session) error {
	l := e.lobbyOf(s)
	if l == nil {
		return ErrNotInLobby
	}
	if l.TableHost == nil || l.TableHost.SessionID != s.ID {
		return ErrNotTableHost
	}
	switch l.State {
	case StateBetting:
	case StatePlaying:
		return ErrGameInProgress
	default:
		return ErrNoOpenTable
	}
	if len(l.Seated) < 2 {
		return ErrNotEnoughPlayers
	}

	ids := make([]uuid.UUID, 0, len(l.Seated))
	for _, p := range l.Seated {
		ids = append(ids, p.SessionID)
	}
	e.startRound(l, ids)
	return nil
}

// startRound shuffles contenders into a fresh turn order. It also re-enters a tie.
func (e *Engine) startRound(l *Lobby, contenders []uuid.UUID) {
	order := append([]uuid.UUID(nil), contenders...)
	random.Shuffle(e.rng, order)

	l.State = StatePlaying
	l.TurnOrder = order
	l.TurnIndex = 0
	l.LastWinner = nil

	names := make([]string, 0, len(order))
	for _, id := range order {
		if p := l.seated(id); p != nil {
			p.LastRoll = nil
			p.rollHidden = false
			names = append(names, p.Name)
		}
	}

	e.logger.WithFields(logrus.Fields{"lobby": l.ID, "table": l.TableID, "players": len(order), "pot": l.Pot}).Info("Round started")
	e.record(l, uuid.Nil, "round_start", map[string]interface{}{"order": order, "pot": l.Pot})
	e.announce(l, "Round started! Turn order: %s", strings.Join(names, ", "))
	e.broadcastRoom(l)
	e.beginTurn(l)
}

// beginTurn arms the turn timer for the current position, skipping players who
// have left the table, and resolves the round once the order is exhausted.
func (e *Engine) beginTurn(l *Lobby) {
	if l.State != StatePlaying {
		return
	}
	for l.TurnIndex < len(l.TurnOrder) && !l.isSeated(l.TurnOrder[l.TurnIndex]) {
		e.logger.WithFields(logrus.Fields{"lobby": l.ID, "session": l.TurnOrder[l.TurnIndex]}).Debug("Skipping departed player")
		l.TurnIndex++
	}
	if l.TurnIndex >= len(l.TurnOrder) {
		e.resolve(l)
		return
	}
	p := l.seated(l.TurnOrder[l.TurnIndex])

	l.cancelTurnTimer()
	l.turnSeq++
	l.turnRolled = false
	seq := l.turnSeq
	l.turnTimer = e.sched.After(e.timing.TurnTimeout, func() { e.turnExpired(l, seq) })

	e.broadcast(l, turnMsg(p, e.timing.TurnTimeout))
	e.broadcastRoom(l)
}

// turnExpired auto-rolls for a player who did not act in time.
func (e *Engine) turnExpired(l *Lobby, seq uint64) {
	if l.destroyed || l.State != StatePlaying || l.turnSeq != seq || l.turnRolled {
		return
	}
	l.turnTimer = nil

	p := l.seated(l.currentTurn())
	if p == nil {
		l.TurnIndex++
		e.beginTurn(l)
		return
	}
	e.logger.WithFields(logrus.Fields{"lobby": l.ID, "session": p.SessionID}).Info("Turn timed out, auto-rolling")
	e.announce(l, "%s took too long, rolling automatically", p.Name)
	e.roll(l, p)
}

// submitRoll handles roll_dice. Out-of-turn and duplicate rolls are dropped silently.
func (e *Engine) submitRoll(s *Session) {
	l := e.lobbyOf(s)
	if l == nil || l.State != StatePlaying || l.turnRolled {
		return
	}
	if l.currentTurn() != s.ID {
		return
	}
	p := l.seated(s.ID)
	if p == nil {
		return
	}
	e.roll(l, p)
}

func (e *Engine) roll(l *Lobby, p *Participant) {
	l.cancelTurnTimer()
	l.turnRolled = true

	die1, die2 := random.RollDie(e.rng), random.RollDie(e.rng)
	total := die1 + die2
	p.LastRoll = &total
	p.rollHidden = true

	l.rollSeq++
	seq := l.rollSeq

	e.logger.WithFields(logrus.Fields{"lobby": l.ID, "session": p.SessionID, "total": total}).Debug("Dice rolled")
	e.record(l, p.UserID, "roll", map[string]interface{}{"die1": die1, "die2": die2, "total": total})
	e.broadcast(l, diceMsg(p, die1, die2))

	e.sched.After(e.timing.RevealDelay, func() { e.revealRoll(l, p, seq) })
	e.sched.After(e.timing.AdvanceDelay, func() { e.advanceTurn(l, seq) })
}

func (e *Engine) revealRoll(l *Lobby, p *Participant, seq uint64) {
	if l.destroyed || l.rollSeq != seq || l.seated(p.SessionID) != p || p.LastRoll == nil {
		return
	}
	p.rollHidden = false
	e.announce(l, "%s rolled %d", p.Name, *p.LastRoll)
	e.broadcastRoom(l)
}

func (e *Engine) advanceTurn(l *Lobby, seq uint64) {
	if l.destroyed || l.State != StatePlaying || l.rollSeq != seq {
		return
	}
	l.TurnIndex++
	e.beginTurn(l)
}
