// internal/lobby/lobby.go
package lobby

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/eventloop"
)

// State is the table phase of a lobby.
type State string

const (
	StateIdle     State = "idle"
	StateBetting  State = "betting"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

// Participant is one session's presence in a lobby. The same pointer is held in
// Members and, while the player sits at the table, in Seated.
type Participant struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	Name      string

	// LastRoll is the total of this round's roll, nil until the participant has rolled.
	LastRoll *int
	// rollHidden keeps LastRoll out of snapshots until the reveal delay elapses.
	rollHidden bool
}

// Lobby is a chat room hosting at most one betting table.
type Lobby struct {
	ID   uuid.UUID
	Name string

	RoomHost   *Participant
	TableHost  *Participant
	LastWinner *Participant

	State State
	Bet   int64
	Pot   int64

	// Members is kept in join order; room host promotion takes the earliest remaining member.
	Members []*Participant
	// Seated is the table roster in seating order, a subset of Members.
	Seated []*Participant

	// TurnOrder holds session IDs for the current round.
	TurnOrder []uuid.UUID
	TurnIndex int

	// TableID identifies the open table instance. It changes whenever a table is
	// declared and is uuid.Nil while the table is idle.
	TableID uuid.UUID

	turnTimer  eventloop.Timer
	turnSeq    uint64
	rollSeq    uint64
	turnRolled bool

	// pendingSeats maps session ID -> table instance awaiting a stake debit.
	pendingSeats map[uuid.UUID]uuid.UUID

	destroyed bool
}

func newLobby(name string) *Lobby {
	return &Lobby{
		ID:           uuid.New(),
		Name:         name,
		State:        StateIdle,
		pendingSeats: make(map[uuid.UUID]uuid.UUID),
	}
}

func (l *Lobby) member(sessionID uuid.UUID) *Participant {
	for _, p := range l.Members {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

func (l *Lobby) seated(sessionID uuid.UUID) *Participant {
	for _, p := range l.Seated {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

func (l *Lobby) isSeated(sessionID uuid.UUID) bool {
	return l.seated(sessionID) != nil
}

func (l *Lobby) removeMember(p *Participant) {
	l.Members = without(l.Members, p)
}

func (l *Lobby) removeSeat(p *Participant) {
	l.Seated = without(l.Seated, p)
}

// currentTurn returns the session whose turn it is, or uuid.Nil outside of a round.
func (l *Lobby) currentTurn() uuid.UUID {
	if l.State != StatePlaying || l.TurnIndex < 0 || l.TurnIndex >= len(l.TurnOrder) {
		return uuid.Nil
	}
	return l.TurnOrder[l.TurnIndex]
}

func (l *Lobby) cancelTurnTimer() {
	if l.turnTimer != nil {
		l.turnTimer.Stop()
		l.turnTimer = nil
	}
}

func without(list []*Participant, p *Participant) []*Participant {
	out := list[:0]
	for _, q := range list {
		if q != p {
			out = append(out, q)
		}
	}
	// clear the tail so dropped pointers are not retained
	for i := len(out); i < len(list); i++ {
		list[i] = nil
	}
	return out
}
