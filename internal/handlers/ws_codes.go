// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the game socket.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected without the "game" subprotocol.
	InvalidAuthTokenError websocket.StatusCode = 3001 // Auth token missing, invalid or expired.
	InvalidPlayerIDError  websocket.StatusCode = 3002 // Token names a player that is not registered.
)
