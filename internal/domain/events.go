package domain

import "time"

// Push event names.
const (
	EventChatEstablished  = "ChatEstablished"
	EventGroupEstablished = "GroupEstablished"
	EventSecureMessage    = "SecureMessage"
	EventPrivateKeyIssued = "PrivateKeyIssued"
	EventSystemNotice     = "SystemNotice"
	EventServerHello      = "ServerHello"
)

// Event is a server-initiated notification delivered to live connections.
type Event struct {
	Name string
	Data any
}

type ChatEstablished struct {
	ChatID int64  `json:"chat_id"`
	Peer   string `json:"peer"`
}

type GroupEstablished struct {
	ChatID       int64    `json:"chat_id"`
	GroupName    string   `json:"group_name"`
	Participants []string `json:"participants"`
}

type SecureMessage struct {
	Sender     string    `json:"sender"`
	CipherText string    `json:"cipher_text"`
	IV         string    `json:"iv"`
	WrappedKey string    `json:"wrapped_key"`
	ChatID     int64     `json:"chat_id"`
	MessageID  int64     `json:"message_id"`
	SentAt     time.Time `json:"sent_at"`
}

type PrivateKeyIssued struct {
	PrivateKey string `json:"private_key"`
}

type SystemNotice struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

type ServerHello struct {
	ServerID     string `json:"server_id"`
	ConnectionID string `json:"connection_id"`
}

// Publisher delivers events to every live connection of an identity.
// Delivery is best-effort: an offline identity simply receives nothing.
type Publisher interface {
	Publish(nickname string, ev Event) int
}
