package ws_test

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"uchat/internal/domain"
	"uchat/internal/metrics"
	"uchat/internal/security"
	"uchat/internal/service"
	"uchat/internal/store/sqlite"
	"uchat/internal/store/sqlstore"
	"uchat/internal/ws"
)

type frame struct {
	Type  string          `json:"type"`
	ID    int64           `json:"id"`
	Op    string          `json:"op"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *ws.ErrorBody   `json:"error"`
	Event string          `json:"event"`
}

type testClient struct {
	t      *testing.T
	conn   *websocket.Conn
	nextID int64
	events []frame
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t)

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	store := sqlstore.New(db, sqlite.Dialect{})

	rec := metrics.NewRecorder()
	reg := ws.NewRegistry(rec, log)
	hasher := security.NewPasswordHasher(security.Argon2Params{MemoryKiB: 64, Time: 1, Threads: 1})
	tokens := security.NewTokenService("test-secret", time.Hour)

	svc := ws.Services{
		Auth:          service.NewAuthService(store.Users, hasher, security.NewKeyGenerator(2048), tokens, log),
		Users:         service.NewUserService(store.Users, service.KeyCacheOptions{Size: 16, TTL: time.Minute}),
		Conversations: service.NewConversationService(store.Chats, store.Users, reg, log),
		Messages:      service.NewMessageService(store.Messages, store.Chats, reg, rec, log),
	}
	gw := ws.NewGateway(reg, svc, rec, ws.Options{ServerID: "test", SendBuffer: 64}, log)

	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &testClient{t: t, conn: conn}
	hello := c.waitEvent(domain.EventServerHello)
	var data domain.ServerHello
	require.NoError(t, json.Unmarshal(hello.Data, &data))
	assert.Equal(t, "test", data.ServerID)
	assert.NotEmpty(t, data.ConnectionID)
	return c
}

func (c *testClient) read() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var f frame
	require.NoError(c.t, c.conn.ReadJSON(&f))
	return f
}

// call sends one request and returns its response. Events that arrive in the
// meantime are kept for waitEvent.
func (c *testClient) call(op string, args any) frame {
	c.t.Helper()
	c.nextID++
	id := c.nextID
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"id": id, "op": op, "args": args}))
	for {
		f := c.read()
		if f.Type == "event" {
			c.events = append(c.events, f)
			continue
		}
		if f.ID == id {
			return f
		}
	}
}

func (c *testClient) mustCall(op string, args any, dst any) {
	c.t.Helper()
	f := c.call(op, args)
	require.True(c.t, f.OK, "%s failed: %+v", op, f.Error)
	if dst != nil {
		require.NoError(c.t, json.Unmarshal(f.Data, dst))
	}
}

func (c *testClient) waitEvent(name string) frame {
	c.t.Helper()
	for i, f := range c.events {
		if f.Event == name {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return f
		}
	}
	for {
		f := c.read()
		if f.Type == "event" && f.Event == name {
			return f
		}
		if f.Type == "event" {
			c.events = append(c.events, f)
		}
	}
}

type account struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Token    string `json:"token"`
	priv     string
}

func (c *testClient) register(mail, password, nickname string) *account {
	c.t.Helper()
	var acc account
	c.mustCall(ws.OpRegister, map[string]string{"mail": mail, "password": password, "nickname": nickname}, &acc)

	issued := c.waitEvent(domain.EventPrivateKeyIssued)
	var key domain.PrivateKeyIssued
	require.NoError(c.t, json.Unmarshal(issued.Data, &key))
	require.NotEmpty(c.t, key.PrivateKey)
	acc.priv = key.PrivateKey

	notice := c.waitEvent(domain.EventSystemNotice)
	assert.Contains(c.t, string(notice.Data), "User created successfully.")
	return &acc
}

func (c *testClient) login(mail, password string) *account {
	c.t.Helper()
	var acc account
	c.mustCall(ws.OpLogin, map[string]string{"mail": mail, "password": password}, &acc)
	return &acc
}

func seal(t *testing.T, c *testClient, plain string, nicknames ...string) *security.Envelope {
	t.Helper()
	var resp struct {
		Keys map[string]string `json:"keys"`
	}
	c.mustCall(ws.OpGetPublicKeys, map[string]any{"nicknames": nicknames}, &resp)
	require.Len(t, resp.Keys, len(nicknames))

	recipients := make(map[string]*rsa.PublicKey, len(resp.Keys))
	for n, k := range resp.Keys {
		pub, err := security.ParsePublicKey(k)
		require.NoError(t, err)
		recipients[n] = pub
	}
	env, err := security.Seal([]byte(plain), recipients)
	require.NoError(t, err)
	return env
}

func decrypt(t *testing.T, acc *account, cipherText, iv, wrappedKey string) string {
	t.Helper()
	priv, err := security.ParsePrivateKey(acc.priv)
	require.NoError(t, err)
	plain, err := security.Open(cipherText, iv, wrappedKey, priv)
	require.NoError(t, err)
	return string(plain)
}

type chatResp struct {
	ChatID         int64  `json:"chat_id"`
	TargetNickname string `json:"target_nickname"`
	Created        bool   `json:"created"`
}

type historyResp struct {
	Messages []domain.HistoryEntry `json:"messages"`
}

func TestSecureConversation(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv, nil)
	b := dial(t, srv, nil)

	alice := a.register("a@x.com", "p1", "alice")
	bob := b.register("b@x.com", "p2", "bob")
	alice.UserID = a.login("a@x.com", "p1").UserID
	bob.UserID = b.login("b@x.com", "p2").UserID

	var first chatResp
	a.mustCall(ws.OpInitPrivateChat, map[string]any{"target_nickname": "bob", "my_id": alice.UserID}, &first)
	assert.True(t, first.Created)
	assert.Equal(t, "bob", first.TargetNickname)

	established := b.waitEvent(domain.EventChatEstablished)
	var est domain.ChatEstablished
	require.NoError(t, json.Unmarshal(established.Data, &est))
	assert.Equal(t, first.ChatID, est.ChatID)
	assert.Equal(t, "alice", est.Peer)

	var second chatResp
	b.mustCall(ws.OpInitPrivateChat, map[string]any{"target_nickname": "ALICE", "my_id": bob.UserID}, &second)
	assert.Equal(t, first.ChatID, second.ChatID)
	assert.False(t, second.Created)

	var parts struct {
		Participants []string `json:"participants"`
	}
	a.mustCall(ws.OpGetChatParticipants, map[string]any{"chat_id": first.ChatID}, &parts)
	assert.Equal(t, []string{"alice", "bob"}, parts.Participants)

	env := seal(t, a, "hello bob", "alice", "bob")
	var sent struct {
		MessageID int64 `json:"message_id"`
		Delivered int   `json:"delivered"`
	}
	a.mustCall(ws.OpSendSecureMessage, map[string]any{
		"chat_id":         first.ChatID,
		"sender_nickname": "alice",
		"cipher_text":     env.CipherText,
		"iv":              env.IV,
		"key_bundle":      env.KeyBundle,
	}, &sent)
	assert.Equal(t, 2, sent.Delivered)

	pushed := b.waitEvent(domain.EventSecureMessage)
	var msg domain.SecureMessage
	require.NoError(t, json.Unmarshal(pushed.Data, &msg))
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, sent.MessageID, msg.MessageID)
	assert.Equal(t, "hello bob", decrypt(t, bob, msg.CipherText, msg.IV, msg.WrappedKey))

	var ha, hb historyResp
	a.mustCall(ws.OpGetChatHistory, map[string]any{"chat_id": first.ChatID}, &ha)
	b.mustCall(ws.OpGetChatHistory, map[string]any{"chat_id": first.ChatID, "viewer_id": bob.UserID}, &hb)
	require.Len(t, ha.Messages, 1)
	require.Len(t, hb.Messages, 1)
	assert.Equal(t, ha.Messages[0].CipherText, hb.Messages[0].CipherText)
	assert.Equal(t, ha.Messages[0].IV, hb.Messages[0].IV)
	assert.NotEqual(t, ha.Messages[0].WrappedKey, hb.Messages[0].WrappedKey)
	assert.Equal(t, "hello bob", decrypt(t, alice, ha.Messages[0].CipherText, ha.Messages[0].IV, ha.Messages[0].WrappedKey))

	// Another identity's history is not readable by claiming its id.
	f := a.call(ws.OpGetChatHistory, map[string]any{"chat_id": first.ChatID, "viewer_id": bob.UserID})
	assert.False(t, f.OK)
	assert.Equal(t, ws.CodeForbidden, f.Error.Code)
}

func TestOfflineRecipientReadsHistory(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv, nil)
	a.register("a@x.com", "p1", "alice")
	a.login("a@x.com", "p1")

	c := dial(t, srv, nil)
	carol := c.register("c@x.com", "p3", "carol")
	require.NoError(t, c.conn.Close())

	var chat chatResp
	a.mustCall(ws.OpInitPrivateChat, map[string]any{"target_nickname": "carol"}, &chat)

	env := seal(t, a, "see you later", "alice", "carol")
	var sent struct {
		Delivered int `json:"delivered"`
	}
	a.mustCall(ws.OpSendSecureMessage, map[string]any{
		"chat_id":     chat.ChatID,
		"cipher_text": env.CipherText,
		"iv":          env.IV,
		"key_bundle":  env.KeyBundle,
	}, &sent)
	assert.Equal(t, 1, sent.Delivered, "only alice's own connection is live")

	// Carol comes back with a bearer token and is bound on upgrade.
	c2 := dial(t, srv, nil)
	session := c2.login("c@x.com", "p3")
	c3 := dial(t, srv, http.Header{"Authorization": {"Bearer " + session.Token}})

	var h historyResp
	c3.mustCall(ws.OpGetChatHistory, map[string]any{"chat_id": chat.ChatID}, &h)
	require.Len(t, h.Messages, 1)
	assert.Equal(t, "alice", h.Messages[0].SenderNickname)
	assert.Equal(t, "see you later", decrypt(t, carol, h.Messages[0].CipherText, h.Messages[0].IV, h.Messages[0].WrappedKey))
}

func TestGatewayErrors(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv, nil)

	f := a.call(ws.OpInitPrivateChat, map[string]any{"target_nickname": "bob"})
	assert.False(t, f.OK)
	assert.Equal(t, ws.CodeUnauthorized, f.Error.Code)

	f = a.call("Teleport", map[string]any{})
	assert.Equal(t, ws.CodeUnknownOperation, f.Error.Code)

	a.register("a@x.com", "p1", "alice")
	f = a.call(ws.OpRegister, map[string]string{"mail": "A@X.COM", "password": "p", "nickname": "other"})
	assert.Equal(t, ws.CodeDuplicateMail, f.Error.Code)
	f = a.call(ws.OpRegister, map[string]string{"mail": "z@x.com", "password": "p", "nickname": "ALICE"})
	assert.Equal(t, ws.CodeDuplicateNickname, f.Error.Code)

	f = a.call(ws.OpLogin, map[string]string{"mail": "a@x.com", "password": "wrong"})
	assert.Equal(t, ws.CodeInvalidCredentials, f.Error.Code)
	f = a.call(ws.OpLogin, map[string]string{"mail": "ghost@x.com", "password": "p1"})
	assert.Equal(t, ws.CodeUserNotFound, f.Error.Code)

	var key struct {
		PublicKey string `json:"public_key"`
	}
	a.mustCall(ws.OpGetPublicKey, map[string]string{"nickname": "ghost"}, &key)
	assert.Equal(t, service.PublicKeyNotFound, key.PublicKey)

	a.login("a@x.com", "p1")
	f = a.call(ws.OpInitPrivateChat, map[string]any{"target_nickname": "bob", "my_id": 999})
	assert.Equal(t, ws.CodeForbidden, f.Error.Code)

	f = a.call(ws.OpSendSecureMessage, map[string]any{
		"chat_id": 1, "cipher_text": "x", "iv": "y", "key_bundle": map[string]string{"nobody": "k"},
	})
	assert.Equal(t, ws.CodeForbidden, f.Error.Code, "alice is not a member of chat 1")

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = a.read()
	for f.Type == "event" {
		f = a.read()
	}
	assert.Equal(t, ws.CodeInvalidInput, f.Error.Code)
}

func TestUpgradeRejectsBadToken(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer nope"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
