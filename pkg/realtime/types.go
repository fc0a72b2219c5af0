// Package realtime defines the WebSocket wire protocol. Clients send
// ClientEnvelope frames to manage topic subscriptions; the server sends
// ServerEnvelope frames whose payload on a run topic is one canonical
// provider message in its JSON form.
package realtime

type ClientMessageType string

const (
	ClientMessageTypeSubscribe   ClientMessageType = "subscribe"
	ClientMessageTypeUnsubscribe ClientMessageType = "unsubscribe"
	ClientMessageTypePing        ClientMessageType = "ping"
)

type ServerMessageType string

const (
	ServerMessageTypeEvent ServerMessageType = "event"
	ServerMessageTypeError ServerMessageType = "error"
	ServerMessageTypePong  ServerMessageType = "pong"
)

type ClientEnvelope struct {
	Type   ClientMessageType `json:"type"`
	Topics []string          `json:"topics,omitempty"`
}

type ServerEnvelope struct {
	Type    ServerMessageType `json:"type"`
	Topic   string            `json:"topic,omitempty"`
	Payload any               `json:"payload,omitempty"`
	Message string            `json:"message,omitempty"`
}
