package lobby

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/cache"
	"github.com/jason-s-yu/dicetable/internal/eventloop"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// manualScheduler runs everything on the test goroutine against a virtual clock.
type manualScheduler struct {
	now    time.Duration
	queue  []func()
	timers []*manualTimer
	seq    int
}

type manualTimer struct {
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (m *manualScheduler) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

func (m *manualScheduler) After(d time.Duration, fn func()) eventloop.Timer {
	m.seq++
	t := &manualTimer{at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Async runs work inline; the continuation still goes through the queue.
func (m *manualScheduler) Async(work func(ctx context.Context), then func()) {
	work(context.Background())
	m.queue = append(m.queue, then)
}

func (m *manualScheduler) drain() {
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// advance moves the clock forward, firing due timers in order and draining after each.
func (m *manualScheduler) advance(d time.Duration) {
	target := m.now + d
	for {
		m.drain()
		var next *manualTimer
		for _, t := range m.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}
		m.now = next.at
		next.fired = true
		next.fn()
	}
	m.now = target
	m.drain()
}

func (m *manualScheduler) pendingTimers() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// riggedSource keeps shuffles in their input order and deals queued die faces.
type riggedSource struct {
	faces []int
}

func (r *riggedSource) Intn(n int) int {
	if n != 6 {
		return n - 1
	}
	if len(r.faces) == 0 {
		return 0
	}
	f := r.faces[0]
	r.faces = r.faces[1:]
	return f - 1
}

// rolls queues two faces per total, e.g. rolls(9, 7) deals 4+5 then 3+4.
func (r *riggedSource) rolls(totals ...int) {
	for _, total := range totals {
		d1 := total / 2
		r.faces = append(r.faces, d1, total-d1)
	}
}

type fakeOutbox struct {
	msgs   []Message
	closed bool
}

func (o *fakeOutbox) Write(msg Message) { o.msgs = append(o.msgs, msg) }

func (o *fakeOutbox) Close() { o.closed = true }

func (o *fakeOutbox) ofType(typ string) []Message {
	var out []Message
	for _, m := range o.msgs {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

func (o *fakeOutbox) last(typ string) Message {
	list := o.ofType(typ)
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func (o *fakeOutbox) reset() { o.msgs = nil }

type fakeAuth struct {
	users map[string]Identity
}

func (a *fakeAuth) Authenticate(_ context.Context, creds Credentials) (Identity, error) {
	id, ok := a.users[creds.Username]
	if !ok || creds.Password != "pw" {
		return Identity{}, errors.New("invalid credentials")
	}
	return id, nil
}

type transferOp struct {
	Op string
	Transfer
}

type fakeLedger struct {
	balances   map[uuid.UUID]int64
	failDebit  map[uuid.UUID]bool
	failCredit bool
	ops        []transferOp
}

func (l *fakeLedger) Debit(_ context.Context, t Transfer) (int64, error) {
	if l.failDebit[t.UserID] {
		return 0, errors.New("ledger unavailable")
	}
	if l.balances[t.UserID] < t.Amount {
		return 0, errors.New("insufficient balance")
	}
	l.balances[t.UserID] -= t.Amount
	l.ops = append(l.ops, transferOp{"debit", t})
	return l.balances[t.UserID], nil
}

func (l *fakeLedger) Credit(_ context.Context, t Transfer) (int64, error) {
	if l.failCredit {
		return 0, errors.New("ledger unavailable")
	}
	l.balances[t.UserID] += t.Amount
	l.ops = append(l.ops, transferOp{"credit", t})
	return l.balances[t.UserID], nil
}

func (l *fakeLedger) kinds(userID uuid.UUID) []string {
	var out []string
	for _, op := range l.ops {
		if op.UserID == userID {
			out = append(out, op.Kind)
		}
	}
	return out
}

type fakeActions struct {
	mu      sync.Mutex
	records []cache.TableActionRecord
}

func (f *fakeActions) Publish(_ context.Context, rec cache.TableActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeActions) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.ActionType)
	}
	return out
}

type player struct {
	name    string
	conn    uuid.UUID
	user    uuid.UUID
	session uuid.UUID
	out     *fakeOutbox
}

type harness struct {
	t       *testing.T
	sched   *manualScheduler
	engine  *Engine
	auth    *fakeAuth
	ledger  *fakeLedger
	actions *fakeActions
	dice    *riggedSource
	logs    *test.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		t:       t,
		sched:   &manualScheduler{},
		auth:    &fakeAuth{users: make(map[string]Identity)},
		ledger:  &fakeLedger{balances: make(map[uuid.UUID]int64), failDebit: make(map[uuid.UUID]bool)},
		actions: &fakeActions{},
		dice:    &riggedSource{},
		logs:    hook,
	}
	h.engine = NewEngine(Options{
		Logger:    logger,
		Scheduler: h.sched,
		Auth:      h.auth,
		Ledger:    h.ledger,
		Actions:   h.actions,
		Random:    h.dice,
		Timing:    DefaultTiming(),
	})
	return h
}

// join connects and authenticates a new player with the given balance.
func (h *harness) join(name string, balance int64) *player {
	h.t.Helper()
	userID := uuid.New()
	h.auth.users[name] = Identity{UserID: userID, Username: name, Balance: balance}
	h.ledger.balances[userID] = balance
	return h.login(name)
}

// login opens another connection for an already registered user.
func (h *harness) login(name string) *player {
	h.t.Helper()
	p := &player{name: name, conn: uuid.New(), user: h.auth.users[name].UserID, out: &fakeOutbox{}}
	h.engine.Connect(p.conn, p.out)
	h.send(p, Message{"type": ActionAuth, "username": name, "password": "pw"})

	ok := p.out.last(EventAuthSuccess)
	require.NotNil(h.t, ok, "auth_success for %s", name)
	p.session = ok["session_id"].(uuid.UUID)
	return p
}

func (h *harness) send(p *player, msg Message) {
	h.engine.Handle(p.conn, msg)
	h.sched.drain()
}

func (h *harness) disconnect(p *player) {
	h.engine.Disconnect(p.conn)
	h.sched.drain()
}

func (h *harness) createLobby(p *player, name string) *Lobby {
	h.t.Helper()
	h.send(p, Message{"type": ActionCreateLobby, "name": name})
	l := h.lobbyOf(p)
	require.NotNil(h.t, l)
	return l
}

func (h *harness) joinLobby(p *player, l *Lobby) {
	h.send(p, Message{"type": ActionJoinLobby, "lobby_id": l.ID.String()})
}

func (h *harness) openTable(p *player, bet int64) {
	h.send(p, Message{"type": ActionSetBet, "amount": float64(bet)})
}

func (h *harness) sit(p *player) {
	h.send(p, Message{"type": ActionJoinTable})
}

func (h *harness) start(p *player) {
	h.send(p, Message{"type": ActionStartGame})
}

func (h *harness) roll(p *player) {
	h.send(p, Message{"type": ActionRollDice})
}

func (h *harness) lobbyOf(p *player) *Lobby {
	s, ok := h.engine.sessions[p.session]
	if !ok {
		return nil
	}
	return h.engine.registry.Get(s.LobbyID)
}

func (h *harness) balance(p *player) int64 {
	return h.ledger.balances[p.user]
}

// table seats every player at a fresh table hosted by the first one.
func (h *harness) table(bet int64, players ...*player) *Lobby {
	h.t.Helper()
	l := h.createLobby(players[0], "Dice Den")
	for _, p := range players[1:] {
		h.joinLobby(p, l)
	}
	h.openTable(players[0], bet)
	for _, p := range players[1:] {
		h.sit(p)
	}
	require.Len(h.t, l.Seated, len(players))
	return l
}

func (h *harness) lastError(p *player) string {
	m := p.out.last(EventError)
	if m == nil {
		return ""
	}
	return m["message"].(string)
}

func sessionIDs(ps []*Participant) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.SessionID)
	}
	return out
}

func sortedIDs(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}
