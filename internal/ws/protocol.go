package ws

import (
	"encoding/json"

	"uchat/internal/domain"
)

// Frame types written by the server.
const (
	frameResponse = "response"
	frameEvent    = "event"
)

// Remote operation names.
const (
	OpRegister            = "Register"
	OpLogin               = "Login"
	OpResume              = "Resume"
	OpSearchUsers         = "SearchUsers"
	OpInitPrivateChat     = "InitPrivateChat"
	OpCreateGroup         = "CreateGroup"
	OpGetChatParticipants = "GetChatParticipants"
	OpGetPublicKey        = "GetPublicKey"
	OpGetPublicKeys       = "GetPublicKeys"
	OpSendSecureMessage   = "SendSecureMessage"
	OpGetChatHistory      = "GetChatHistory"
)

// Error codes carried in failed responses.
const (
	CodeInvalidInput       = "invalid_input"
	CodeDuplicateMail      = "duplicate_mail"
	CodeDuplicateNickname  = "duplicate_nickname"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserNotFound       = "user_not_found"
	CodeUnknownRecipient   = "unknown_recipient"
	CodeForbidden          = "forbidden"
	CodeUnauthorized       = "unauthorized"
	CodeUnknownOperation   = "unknown_operation"
	CodeInternal           = "internal"
)

// Request is a client frame: {"id":1,"op":"Login","args":{...}}.
type Request struct {
	ID   int64           `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

type Response struct {
	Type  string     `json:"type"`
	ID    int64      `json:"id"`
	Op    string     `json:"op"`
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventFrame wraps a pushed domain.Event.
type EventFrame struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeEvent(ev domain.Event) ([]byte, error) {
	return json.Marshal(EventFrame{Type: frameEvent, Event: ev.Name, Data: ev.Data})
}

// Operation arguments. Optional identity fields are pointers so an omitted
// field can default to the bound identity.

type registerArgs struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type loginArgs struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
}

type resumeArgs struct {
	Token string `json:"token"`
}

type searchArgs struct {
	Query string `json:"query"`
}

type initPrivateChatArgs struct {
	TargetNickname string `json:"target_nickname"`
	MyID           *int64 `json:"my_id"`
}

type createGroupArgs struct {
	GroupName       string   `json:"group_name"`
	CreatorNickname *string  `json:"creator_nickname"`
	Participants    []string `json:"participants"`
}

type chatArgs struct {
	ChatID int64 `json:"chat_id"`
}

type publicKeyArgs struct {
	Nickname string `json:"nickname"`
}

type publicKeysArgs struct {
	Nicknames []string `json:"nicknames"`
}

type sendArgs struct {
	ChatID         int64             `json:"chat_id"`
	SenderID       *int64            `json:"sender_id"`
	SenderNickname *string           `json:"sender_nickname"`
	CipherText     string            `json:"cipher_text"`
	IV             string            `json:"iv"`
	KeyBundle      map[string]string `json:"key_bundle"`
}

type historyArgs struct {
	ChatID   int64  `json:"chat_id"`
	ViewerID *int64 `json:"viewer_id"`
}
