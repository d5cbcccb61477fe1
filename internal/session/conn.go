package session

// Message type tags, matching gorilla/websocket's TextMessage/BinaryMessage
// values so a *websocket.Conn satisfies Conn without this package importing
// gorilla directly — the session FSM is exercised against a fake Conn in
// tests and against the real websocket transport in internal/jigsawd.
const (
	TextMessage   = 1
	BinaryMessage = 2
)

// Conn is the minimal transport surface a Session needs. It is the
// session-layer analogue of the teacher's net.Conn dependency in
// pkg/peer.Peer, narrowed to a framed message conn instead of a raw
// stream since the wire protocol here rides websocket frames rather than
// a length-prefixed TCP stream.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	Close() error
}
