// internal/lobby/membership.go
package lobby

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (e *Engine) createLobby(s *Session, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxLobbyNameLength {
		return ErrInvalidLobbyName
	}
	if cur := e.lobbyOf(s); cur != nil && cur.isSeated(s.ID) {
		return ErrSeatedCannotLeave
	}

	l := e.registry.Create(name)
	e.logger.WithFields(logrus.Fields{"lobby": l.ID, "name": name, "session": s.ID}).Info("Lobby created")
	return e.joinLobby(s, l.ID)
}

func (e *Engine) joinLobby(s *Session, id uuid.UUID) error {
	l := e.registry.Get(id)
	if l == nil {
		return ErrLobbyNotFound
	}
	if s.LobbyID == id {
		s.client.write(joinedLobbyMsg(l))
		return nil
	}
	if cur := e.lobbyOf(s); cur != nil {
		if cur.isSeated(s.ID) {
			return ErrSeatedCannotLeave
		}
		e.removeParticipant(cur, s)
	}

	p := &Participant{SessionID: s.ID, UserID: s.UserID, Name: s.Username}
	l.Members = append(l.Members, p)
	s.LobbyID = l.ID
	if l.RoomHost == nil {
		l.RoomHost = p
	}

	e.logger.WithFields(logrus.Fields{"lobby": l.ID, "session": s.ID, "members": len(l.Members)}).Info("Session joined lobby")
	s.client.write(joinedLobbyMsg(l))
	e.announce(l, "%s joined the lobby", p.Name)
	e.broadcastRoom(l)
	e.broadcastLobbyList()
	return nil
}

func (e *Engine) leaveLobby(s *Session) error {
	l := e.lobbyOf(s)
	if l == nil {
		return ErrNotInLobby
	}
	if l.isSeated(s.ID) {
		return ErrSeatedCannotLeave
	}
	e.removeParticipant(l, s)
	s.client.write(Message{"type": EventLeftLobby})
	return nil
}
