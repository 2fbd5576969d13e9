// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/dicetable/internal/lobby"
	"github.com/jason-s-yu/dicetable/internal/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "dicetable"

const (
	outboxSize    = 64
	pingInterval  = 30 * time.Second
	writeTimeout  = 5 * time.Second
	maxPacketSize = 8 << 10

	// inbound packets refill at 10/s with a burst of 10
	packetInterval = 100 * time.Millisecond
	packetBurst    = 10
)

// LobbyEngine is the part of *lobby.Engine the transport drives.
type LobbyEngine interface {
	Connect(connID uuid.UUID, out lobby.Outbox)
	Disconnect(connID uuid.UUID)
	Handle(connID uuid.UUID, msg lobby.Message)
	ListLobbies(ctx context.Context) ([]lobby.Summary, error)
}

// Connection is one websocket client. It implements lobby.Outbox.
type Connection struct {
	ID      uuid.UUID
	OutChan chan lobby.Message
	logger  *logrus.Logger

	closeOnce   sync.Once
	done        chan struct{}
	closeCode   websocket.StatusCode
	closeReason string
}

func newConnection(logger *logrus.Logger) *Connection {
	return &Connection{
		ID:      uuid.New(),
		OutChan: make(chan lobby.Message, outboxSize),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Write pushes a message onto OutChan without blocking. A client that lets its
// outbox fill up is disconnected.
func (c *Connection) Write(msg lobby.Message) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.OutChan <- msg:
	default:
		c.logger.WithFields(logrus.Fields{"conn": c.ID, "type": msg.Type()}).Warn("Outbox full, dropping connection")
		c.shutdown(OutboxOverflowError, "client is not reading")
	}
}

// Close is called by the engine when a newer session replaces this one.
func (c *Connection) Close() {
	c.shutdown(SessionReplacedError, "signed in from another connection")
}

func (c *Connection) shutdown(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// LobbyWSHandler upgrades to a websocket and pumps packets between the client and the engine.
// A token in the Authorization header or auth cookie is submitted as the first auth packet.
func LobbyWSHandler(logger *logrus.Logger, engine LobbyEngine, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the dicetable subprotocol")
			return
		}
		c.SetReadLimit(maxPacketSize)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := newConnection(logger)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		engine.Connect(conn.ID, conn)
		if token := tokenFromRequest(r); token != "" {
			engine.Handle(conn.ID, lobby.Message{"type": lobby.ActionAuth, "token": token})
		}

		go writePump(ctx, cancel, c, conn, logger)
		err = readPump(ctx, c, conn, engine, logger)

		engine.Disconnect(conn.ID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// readPump decodes inbound packets and hands them to the engine until the socket closes.
func readPump(ctx context.Context, c *websocket.Conn, conn *Connection, engine LobbyEngine, logger *logrus.Logger) error {
	limiter := rate.NewLimiter(rate.Every(packetInterval), packetBurst)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		typ, data, err := c.Read(ctx)
		if err != nil {
			select {
			case <-conn.done:
				return nil
			default:
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			logger.WithField("conn", conn.ID).Warnf("Ignoring non-text message type %d", typ)
			continue
		}

		var msg lobby.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg == nil {
			conn.Write(lobby.Message{"type": lobby.EventError, "message": "Invalid JSON format"})
			continue
		}
		engine.Handle(conn.ID, msg)
	}
}

// writePump drains OutChan onto the socket and keeps the connection alive with pings.
func writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, conn *Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.done:
			// deliver whatever was queued before the close, e.g. the eviction notice
			for {
				select {
				case msg := <-conn.OutChan:
					if err := send(ctx, c, msg); err != nil {
						c.Close(conn.closeCode, conn.closeReason)
						return
					}
				default:
					c.Close(conn.closeCode, conn.closeReason)
					return
				}
			}
		case msg := <-conn.OutChan:
			if err := send(ctx, c, msg); err != nil {
				logger.WithField("conn", conn.ID).Warnf("Failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			pingCancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("Failed to ping websocket: %v. Assuming disconnect.", err)
				return
			}
		}
	}
}

func send(ctx context.Context, c *websocket.Conn, msg lobby.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}
