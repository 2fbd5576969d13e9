// internal/lobby/snapshot.go
package lobby

import "github.com/google/uuid"

// Snapshot is the serializable view of a lobby sent in joined_lobby and update_room.
// Participant IDs are session IDs; user IDs are carried alongside for display.
type Snapshot struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	RoomHostID    *uuid.UUID   `json:"room_host_id"`
	TableHostID   *uuid.UUID   `json:"table_host_id"`
	LastWinnerID  *uuid.UUID   `json:"last_winner_id"`
	State         State        `json:"state"`
	Bet           int64        `json:"bet"`
	Pot           int64        `json:"pot"`
	Members       []MemberView `json:"members"`
	Seated        []SeatView   `json:"seated"`
	CurrentTurnID *uuid.UUID   `json:"current_turn_id"`
}

// MemberView is one lobby member.
type MemberView struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
}

// SeatView is one seated player. LastRoll is null until the roll has been revealed.
type SeatView struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	LastRoll *int      `json:"last_roll"`
}

// Snapshot copies the lobby state; the result shares no memory with the lobby.
func (l *Lobby) Snapshot() Snapshot {
	snap := Snapshot{
		ID:           l.ID,
		Name:         l.Name,
		RoomHostID:   sessionRef(l.RoomHost),
		TableHostID:  sessionRef(l.TableHost),
		LastWinnerID: sessionRef(l.LastWinner),
		State:        l.State,
		Bet:          l.Bet,
		Pot:          l.Pot,
		Members:      make([]MemberView, 0, len(l.Members)),
		Seated:       make([]SeatView, 0, len(l.Seated)),
	}
	for _, p := range l.Members {
		snap.Members = append(snap.Members, MemberView{ID: p.SessionID, UserID: p.UserID, Name: p.Name})
	}
	for _, p := range l.Seated {
		seat := SeatView{ID: p.SessionID, UserID: p.UserID, Name: p.Name}
		if p.LastRoll != nil && !p.rollHidden {
			v := *p.LastRoll
			seat.LastRoll = &v
		}
		snap.Seated = append(snap.Seated, seat)
	}
	if id := l.currentTurn(); id != uuid.Nil {
		snap.CurrentTurnID = &id
	}
	return snap
}

func sessionRef(p *Participant) *uuid.UUID {
	if p == nil {
		return nil
	}
	id := p.SessionID
	return &id
}
