// internal/lobby/reconcile.go
package lobby

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// removeParticipant takes a session out of its lobby and repairs every role it held.
// It bypasses the seated guard, so it is used for disconnects and lobby switches.
func (e *Engine) removeParticipant(l *Lobby, s *Session) {
	p := l.member(s.ID)
	if p == nil {
		s.LobbyID = uuid.Nil
		return
	}
	wasRoomHost := l.RoomHost == p
	wasTableHost := l.TableHost == p

	if l.isSeated(p.SessionID) {
		e.releaseSeat(l, p)
	}
	l.removeMember(p)
	s.LobbyID = uuid.Nil

	log := e.logger.WithFields(logrus.Fields{"lobby": l.ID, "session": s.ID})
	if len(l.Members) == 0 {
		log.Info("Last member left, destroying lobby")
		e.destroyLobby(l)
		e.broadcastLobbyList()
		return
	}

	if wasRoomHost {
		l.RoomHost = l.Members[0]
		log.WithField("host", l.RoomHost.SessionID).Info("Room host reassigned")
		e.announce(l, "%s is now the room host", l.RoomHost.Name)
	}
	e.repairTable(l, wasTableHost)

	e.announce(l, "%s left the lobby", p.Name)
	e.broadcastRoom(l)
	e.broadcastLobbyList()
}

// releaseSeat unseats p, returning its stake while one is held.
func (e *Engine) releaseSeat(l *Lobby, p *Participant) {
	l.removeSeat(p)
	if l.State != StateBetting && l.State != StatePlaying {
		return
	}
	stake := l.Bet
	if stake > l.Pot {
		stake = l.Pot
	}
	l.Pot -= stake
	e.refund(l, p, stake)
}

// repairTable restores the table invariants after a seat was released.
func (e *Engine) repairTable(l *Lobby, lostTableHost bool) {
	if lostTableHost {
		if len(l.Seated) > 0 {
			l.TableHost = l.Seated[0]
			e.logger.WithFields(logrus.Fields{"lobby": l.ID, "host": l.TableHost.SessionID}).Info("Table host reassigned")
			e.announce(l, "%s is now the table host", l.TableHost.Name)
			return
		}
		e.resetTable(l)
		e.announce(l, "The table has closed")
		return
	}
	if l.State == StatePlaying && len(l.Seated) == 0 {
		e.resetTable(l)
	}
}

// resetTable returns the lobby to Idle and invalidates every pending continuation.
func (e *Engine) resetTable(l *Lobby) {
	l.cancelTurnTimer()
	l.turnSeq++
	l.rollSeq++
	if l.Pot != 0 {
		e.logger.WithFields(logrus.Fields{"lobby": l.ID, "pot": l.Pot}).Warn("Resetting table with a non-empty pot")
	}
	l.TableHost = nil
	l.State = StateIdle
	l.Bet = 0
	l.Pot = 0
	l.Seated = nil
	l.TurnOrder = nil
	l.TurnIndex = 0
	l.TableID = uuid.Nil
	l.pendingSeats = make(map[uuid.UUID]uuid.UUID)
}

func (e *Engine) destroyLobby(l *Lobby) {
	l.cancelTurnTimer()
	e.registry.Delete(l.ID)
}
