// internal/lobby/engine.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/cache"
	"github.com/jason-s-yu/dicetable/internal/eventloop"
	"github.com/jason-s-yu/dicetable/internal/random"
	"github.com/sirupsen/logrus"
)

// Scheduler serializes every engine mutation. Post and After run their closures on
// the engine's single event stream; Async runs work elsewhere and posts then back.
type Scheduler interface {
	Post(fn func())
	After(d time.Duration, fn func()) eventloop.Timer
	Async(work func(ctx context.Context), then func())
}

// Credentials are whatever an auth packet carried: a token, or a username and password.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// Identity is a verified user.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Balance  int64
}

// Authenticator verifies credentials against the identity store.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Identity, error)
}

// Ledger transaction kinds.
const (
	KindBet    = "bet"
	KindWin    = "win"
	KindRefund = "refund"
)

// Transfer is a single balance movement.
type Transfer struct {
	UserID    uuid.UUID
	Amount    int64
	Kind      string
	Reference string
}

// Ledger moves money. Debit must fail without side effects when the balance cannot
// cover the amount. Both return the resulting balance.
type Ledger interface {
	Debit(ctx context.Context, t Transfer) (int64, error)
	Credit(ctx context.Context, t Transfer) (int64, error)
}

// ActionLog receives table events for the historian. It may be nil.
type ActionLog interface {
	Publish(ctx context.Context, record cache.TableActionRecord) error
}

// Outbox delivers packets to one connection. Write must not block.
type Outbox interface {
	Write(msg Message)
	Close()
}

// Timing holds the round delays.
type Timing struct {
	TurnTimeout  time.Duration
	RevealDelay  time.Duration
	AdvanceDelay time.Duration
}

// DefaultTiming returns the standard delays.
func DefaultTiming() Timing {
	return Timing{
		TurnTimeout:  10 * time.Second,
		RevealDelay:  1500 * time.Millisecond,
		AdvanceDelay: 3500 * time.Millisecond,
	}
}

// Session is an authenticated connection. Its ID, not the user ID, keys lobby
// membership, seats and turns.
type Session struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string
	// Balance is cached and refreshed from every ledger result.
	Balance int64
	// LobbyID is uuid.Nil when the session is not in a lobby.
	LobbyID uuid.UUID

	client *client
}

type client struct {
	connID      uuid.UUID
	out         Outbox
	session     *Session
	authPending bool
	closed      bool
}

func (c *client) write(msg Message) {
	if c == nil || c.closed {
		return
	}
	c.out.Write(msg)
}

// Options configures an Engine.
type Options struct {
	Logger    *logrus.Logger
	Scheduler Scheduler
	Auth      Authenticator
	Ledger    Ledger
	Actions   ActionLog
	Random    random.Source
	Timing    Timing
}

// Engine owns every lobby, session and table. All state is mutated from closures
// posted to the scheduler; the exported entry points only enqueue work.
type Engine struct {
	logger  *logrus.Logger
	sched   Scheduler
	auth    Authenticator
	ledger  Ledger
	actions ActionLog
	rng     random.Source
	timing  Timing

	registry *Registry
	clients  map[uuid.UUID]*client
	sessions map[uuid.UUID]*Session
}

// NewEngine builds an engine. Logger, Random and zero Timing fields fall back to defaults.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Random == nil {
		opts.Random = random.New()
	}
	def := DefaultTiming()
	if opts.Timing.TurnTimeout <= 0 {
		opts.Timing.TurnTimeout = def.TurnTimeout
	}
	if opts.Timing.RevealDelay <= 0 {
		opts.Timing.RevealDelay = def.RevealDelay
	}
	if opts.Timing.AdvanceDelay <= 0 {
		opts.Timing.AdvanceDelay = def.AdvanceDelay
	}
	return &Engine{
		logger:   opts.Logger,
		sched:    opts.Scheduler,
		auth:     opts.Auth,
		ledger:   opts.Ledger,
		actions:  opts.Actions,
		rng:      opts.Random,
		timing:   opts.Timing,
		registry: NewRegistry(),
		clients:  make(map[uuid.UUID]*client),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Connect registers a new transport connection.
func (e *Engine) Connect(connID uuid.UUID, out Outbox) {
	e.sched.Post(func() {
		e.clients[connID] = &client{connID: connID, out: out}
		e.logger.WithField("conn", connID).Debug("Connection registered")
	})
}

// Disconnect removes a connection and everything its session held.
func (e *Engine) Disconnect(connID uuid.UUID) {
	e.sched.Post(func() { e.disconnect(connID) })
}

// Handle dispatches one inbound packet from a connection.
func (e *Engine) Handle(connID uuid.UUID, msg Message) {
	e.sched.Post(func() { e.handle(connID, msg) })
}

// ListLobbies returns the public listing. It is safe to call from any goroutine.
func (e *Engine) ListLobbies(ctx context.Context) ([]Summary, error) {
	ch := make(chan []Summary, 1)
	e.sched.Post(func() { ch <- e.registry.List() })
	select {
	case list := <-ch:
		return list, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) handle(connID uuid.UUID, msg Message) {
	c, ok := e.clients[connID]
	if !ok {
		return
	}
	action := msg.Type()

	if action == ActionAuth {
		e.handleAuth(c, msg)
		return
	}
	s := c.session
	if s == nil {
		c.write(errorMsg(ErrNotAuthenticated))
		return
	}

	var err error
	switch action {
	case ActionGetLobbies:
		c.write(lobbyListMsg(e.registry.List()))
	case ActionCreateLobby:
		err = e.createLobby(s, msg.str("name"))
	case ActionJoinLobby:
		id := msg.id("lobby_id")
		if id == uuid.Nil {
			err = ErrInvalidLobbyID
			break
		}
		err = e.joinLobby(s, id)
	case ActionLeaveLobby:
		err = e.leaveLobby(s)
	case ActionSetBet:
		amount, ok := msg.amount("amount")
		if !ok {
			err = ErrInvalidBet
			break
		}
		err = e.openTable(s, amount)
	case ActionJoinTable:
		err = e.seatPlayer(s)
	case ActionLeaveTable:
		err = e.unseatPlayer(s)
	case ActionStartGame:
		err = e.requestStart(s)
	case ActionRollDice:
		e.submitRoll(s)
	case ActionSendMsg:
		err = e.chat(s, msg.str("text"))
	default:
		e.logger.WithFields(logrus.Fields{"session": s.ID, "action": action}).Warn("Unknown action")
		err = ErrUnknownAction
	}

	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"session": s.ID,
			"action":  action,
			"kind":    errorKind(err).Error(),
		}).WithError(err).Debug("Action rejected")
		c.write(errorMsg(err))
	}
}

func (e *Engine) handleAuth(c *client, msg Message) {
	if c.session != nil {
		c.write(errorMsg(ErrAlreadyAuthenticated))
		return
	}
	if c.authPending {
		c.write(errorMsg(ErrAuthInProgress))
		return
	}
	creds := Credentials{
		Token:    msg.str("token"),
		Username: msg.str("username"),
		Password: msg.str("password"),
	}
	if creds.Token == "" && (creds.Username == "" || creds.Password == "") {
		c.write(errorMsg(ErrMissingCredentials))
		return
	}

	c.authPending = true
	var (
		id  Identity
		err error
	)
	e.sched.Async(func(ctx context.Context) {
		id, err = e.auth.Authenticate(ctx, creds)
	}, func() {
		e.completeAuth(c, id, err)
	})
}

func (e *Engine) completeAuth(c *client, id Identity, err error) {
	c.authPending = false
	if c.closed {
		return
	}
	if err != nil {
		e.logger.WithField("conn", c.connID).WithError(err).Info("Authentication failed")
		c.write(errorMsg(authError(err.Error())))
		return
	}

	// one live session per user
	for _, other := range e.sessions {
		if other.UserID == id.UserID {
			e.evict(other)
		}
	}

	s := &Session{
		ID:       uuid.New(),
		UserID:   id.UserID,
		Username: id.Username,
		Balance:  id.Balance,
		client:   c,
	}
	c.session = s
	e.sessions[s.ID] = s

	e.logger.WithFields(logrus.Fields{"session": s.ID, "user": s.UserID, "username": s.Username}).Info("Session authenticated")
	c.write(authSuccessMsg(s))
	c.write(lobbyListMsg(e.registry.List()))
}

// evict drops an older session of the same user and closes its connection.
func (e *Engine) evict(s *Session) {
	c := s.client
	if c == nil {
		return
	}
	e.logger.WithFields(logrus.Fields{"session": s.ID, "user": s.UserID}).Info("Evicting older session")
	c.write(errorMsg(newError(ErrConflict, "Signed in from another connection")))
	e.disconnect(c.connID)
	c.out.Close()
}

func (e *Engine) disconnect(connID uuid.UUID) {
	c, ok := e.clients[connID]
	if !ok {
		return
	}
	delete(e.clients, connID)
	c.closed = true

	s := c.session
	if s == nil {
		return
	}
	if l := e.lobbyOf(s); l != nil {
		e.removeParticipant(l, s)
	}
	delete(e.sessions, s.ID)
	s.client = nil
	e.logger.WithFields(logrus.Fields{"session": s.ID, "user": s.UserID}).Info("Session disconnected")
}

func (e *Engine) lobbyOf(s *Session) *Lobby {
	if s.LobbyID == uuid.Nil {
		return nil
	}
	return e.registry.Get(s.LobbyID)
}

func (e *Engine) chat(s *Session, text string) error {
	l := e.lobbyOf(s)
	if l == nil {
		return ErrNotInLobby
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		return ErrMessageTooLong
	}
	p := l.member(s.ID)
	if p == nil {
		return ErrNotInLobby
	}
	e.broadcast(l, chatMsg(p, text))
	return nil
}

// sendTo writes to a session's connection if it is still live.
func (e *Engine) sendTo(sessionID uuid.UUID, msg Message) {
	if s, ok := e.sessions[sessionID]; ok {
		s.client.write(msg)
	}
}

func (e *Engine) broadcast(l *Lobby, msg Message) {
	for _, p := range l.Members {
		e.sendTo(p.SessionID, msg)
	}
}

func (e *Engine) broadcastRoom(l *Lobby) {
	e.broadcast(l, updateRoomMsg(l))
}

func (e *Engine) announce(l *Lobby, format string, args ...interface{}) {
	e.broadcast(l, systemMsg(fmt.Sprintf(format, args...)))
}

// broadcastLobbyList pushes the public listing to every authenticated connection.
func (e *Engine) broadcastLobbyList() {
	msg := lobbyListMsg(e.registry.List())
	for _, c := range e.clients {
		if c.session != nil {
			c.write(msg)
		}
	}
}

// setBalance applies a ledger result to the session's cached balance and tells the client.
func (e *Engine) setBalance(sessionID, userID uuid.UUID, balance int64) {
	s, ok := e.sessions[sessionID]
	if !ok || s.UserID != userID {
		return
	}
	s.Balance = balance
	s.client.write(balanceMsg(balance))
}

// refund returns a stake.
func (e *Engine) refund(l *Lobby, p *Participant, amount int64) {
	if amount <= 0 {
		return
	}
	e.creditBack(l, p.SessionID, Transfer{UserID: p.UserID, Amount: amount, Kind: KindRefund, Reference: l.reference()})
}

// creditBack returns money to a player. A failed credit is logged and recorded, never retried here.
func (e *Engine) creditBack(l *Lobby, sessionID uuid.UUID, t Transfer) {
	var (
		balance int64
		err     error
	)
	e.sched.Async(func(ctx context.Context) {
		balance, err = e.ledger.Credit(ctx, t)
	}, func() {
		if err != nil {
			e.logger.WithFields(logrus.Fields{"lobby": l.ID, "user": t.UserID, "amount": t.Amount}).WithError(err).Error("Refund failed")
			e.record(l, t.UserID, "refund_failed", map[string]interface{}{"amount": t.Amount, "error": err.Error()})
			return
		}
		e.setBalance(sessionID, t.UserID, balance)
	})
	e.record(l, t.UserID, "refund", map[string]interface{}{"amount": t.Amount})
}

// record publishes a table event for the historian without blocking the loop.
func (e *Engine) record(l *Lobby, actor uuid.UUID, action string, payload map[string]interface{}) {
	if e.actions == nil {
		return
	}
	rec := cache.TableActionRecord{
		LobbyID:       l.ID,
		TableID:       l.TableID,
		ActorUserID:   actor,
		ActionType:    action,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	e.sched.Async(func(ctx context.Context) {
		if err := e.actions.Publish(ctx, rec); err != nil {
			e.logger.WithFields(logrus.Fields{"lobby": rec.LobbyID, "action": action}).WithError(err).Warn("Failed to publish table action")
		}
	}, func() {})
}

// errorKind maps an error onto its taxonomy kind, defaulting to ErrExternal.
func errorKind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrInsufficientFunds, ErrCapacity, ErrAuth} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrExternal
}
