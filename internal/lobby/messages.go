// internal/lobby/messages.go
package lobby

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Message is one JSON packet exchanged with a client. Every packet carries a "type" field.
type Message map[string]interface{}

// Type returns the packet's type field, or "" when absent.
func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

func (m Message) str(key string) string {
	s, _ := m[key].(string)
	return s
}

// amount reads a positive whole number. JSON numbers decode as float64.
func (m Message) amount(key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		if v <= 0 || v != math.Trunc(v) || v > maxBet {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), v > 0
	case int64:
		return v, v > 0
	}
	return 0, false
}

// Inbound actions.
const (
	ActionAuth        = "auth"
	ActionGetLobbies  = "get_lobbies"
	ActionCreateLobby = "create_lobby"
	ActionJoinLobby   = "join_lobby"
	ActionLeaveLobby  = "leave_lobby"
	ActionSetBet      = "host_set_bet"
	ActionJoinTable   = "join_table"
	ActionLeaveTable  = "leave_table"
	ActionStartGame   = "start_game"
	ActionRollDice    = "roll_dice"
	ActionSendMsg     = "send_msg"
)

// Outbound events.
const (
	EventAuthSuccess      = "auth_success"
	EventError            = "error_msg"
	EventLobbyList        = "lobby_list"
	EventJoinedLobby      = "joined_lobby"
	EventUpdateRoom       = "update_room"
	EventLeftLobby        = "left_lobby_success"
	EventBalanceUpdate    = "balance_update"
	EventChat             = "chat_msg"
	EventTurnNotification = "turn_notification"
	EventDiceRolled       = "dice_rolled"
	EventGameOver         = "game_over"
)

// MaxChatLength bounds a single chat message in runes.
const MaxChatLength = 200

// maxBet keeps bets within the exactly representable float64 range.
const maxBet = 1 << 53

// MaxLobbyNameLength bounds a lobby name in runes.
const MaxLobbyNameLength = 32

func errorMsg(err error) Message {
	return Message{"type": EventError, "message": err.Error()}
}

func authSuccessMsg(s *Session) Message {
	return Message{
		"type":       EventAuthSuccess,
		"user_id":    s.UserID,
		"username":   s.Username,
		"balance":    s.Balance,
		"session_id": s.ID,
	}
}

func lobbyListMsg(list []Summary) Message {
	return Message{"type": EventLobbyList, "lobbies": list}
}

func joinedLobbyMsg(l *Lobby) Message {
	return Message{"type": EventJoinedLobby, "lobby": l.Snapshot()}
}

func updateRoomMsg(l *Lobby) Message {
	return Message{"type": EventUpdateRoom, "lobby": l.Snapshot()}
}

func balanceMsg(balance int64) Message {
	return Message{"type": EventBalanceUpdate, "balance": balance}
}

func chatMsg(p *Participant, text string) Message {
	return Message{
		"type":       EventChat,
		"user_id":    p.UserID,
		"session_id": p.SessionID,
		"name":       p.Name,
		"text":       text,
		"system":     false,
		"ts":         time.Now().UnixMilli(),
	}
}

func systemMsg(text string) Message {
	return Message{
		"type":   EventChat,
		"name":   "System",
		"text":   text,
		"system": true,
		"ts":     time.Now().UnixMilli(),
	}
}

func turnMsg(p *Participant, timeout time.Duration) Message {
	return Message{
		"type":       EventTurnNotification,
		"user_id":    p.UserID,
		"session_id": p.SessionID,
		"name":       p.Name,
		"timeout_ms": timeout.Milliseconds(),
	}
}

func diceMsg(p *Participant, die1, die2 int) Message {
	return Message{
		"type":       EventDiceRolled,
		"user_id":    p.UserID,
		"session_id": p.SessionID,
		"name":       p.Name,
		"die1":       die1,
		"die2":       die2,
		"total":      die1 + die2,
	}
}

func gameOverMsg(winner *Participant, pot int64) Message {
	return Message{
		"type":        EventGameOver,
		"winner_id":   winner.UserID,
		"session_id":  winner.SessionID,
		"winner_name": winner.Name,
		"pot":         pot,
	}
}

// id reads a uuid field, returning uuid.Nil when missing or malformed.
func (m Message) id(key string) uuid.UUID {
	id, err := uuid.Parse(m.str(key))
	if err != nil {
		return uuid.Nil
	}
	return id
}
