// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby socket.
const (
	BadSubprotocolError  = 3000 // Client connected without the dicetable subprotocol.
	SessionReplacedError = 3001 // The same user signed in on another connection.
	OutboxOverflowError  = 3002 // The client stopped draining its messages.
)
