package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

const (
	// Client to server messages. Joining is implicit in the connect
	// parameters.
	MessageTypeAction MessageType = "action"
	MessageTypeResync MessageType = "resync"
	MessageTypeSitOut MessageType = "sit_out"
	MessageTypeSitIn  MessageType = "sit_in"
	MessageTypeLeave  MessageType = "leave"

	// Server to client messages
	MessageTypeGameState    MessageType = "game_state"
	MessageTypePlayerAction MessageType = "player_action"
	MessageTypeHandUpdate   MessageType = "hand_update"
	MessageTypeTurnUpdate   MessageType = "turn_update"
	MessageTypePlayerJoined MessageType = "player_joined"
	MessageTypePlayerLeft   MessageType = "player_left"
	MessageTypePlayerStatus MessageType = "player_status"
	MessageTypeError        MessageType = "error"

	// Both directions
	MessageTypeChat MessageType = "chat"
	MessageTypePing MessageType = "ping"
	MessageTypePong MessageType = "pong"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
