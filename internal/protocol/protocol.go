package protocol

import "encoding/json"

const Version = "1.0"

// Push stream message kinds.
const (
	KindSnapshot = "snapshot"
	KindEvent    = "event"
	KindPong     = "pong"
)

// TypePing is the only message a push client may send.
const TypePing = "ping"

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
