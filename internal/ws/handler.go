package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"uchat/internal/domain"
	"uchat/internal/metrics"
	"uchat/internal/service"
)

// Services are the operations reachable over the gateway.
type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Conversations *service.ConversationService
	Messages      *service.MessageService
}

type Options struct {
	// AllowedOrigins restricts browser upgrades. "*" allows any origin.
	// Requests without an Origin header (native clients) are always allowed.
	AllowedOrigins  []string
	SendBuffer      int
	MaxMessageBytes int64
	ServerID        string
}

type handlerFunc func(ctx context.Context, c *Conn, args json.RawMessage) (any, error)

type operation struct {
	handle handlerFunc
	// needsIdentity rejects calls on connections that are not bound.
	needsIdentity bool
}

// Gateway upgrades HTTP requests to websocket sessions, dispatches client
// operations and binds authenticated connections into the Registry.
type Gateway struct {
	reg      *Registry
	svc      Services
	opts     Options
	upgrader websocket.Upgrader
	ops      map[string]operation
	metrics  *metrics.Recorder
	log      *zap.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}
	wg    sync.WaitGroup
}

func NewGateway(reg *Registry, svc Services, rec *metrics.Recorder, opts Options, log *zap.Logger) *Gateway {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 1 << 20
	}
	g := &Gateway{
		reg:     reg,
		svc:     svc,
		opts:    opts,
		metrics: rec,
		log:     log.Named("gateway"),
		conns:   make(map[*Conn]struct{}),
	}
	g.upgrader = websocket.Upgrader{
		CheckOrigin:  makeCheckOrigin(opts.AllowedOrigins),
		Subprotocols: []string{"bearer"},
	}
	g.ops = map[string]operation{
		OpRegister:            {handle: g.register},
		OpLogin:               {handle: g.login},
		OpResume:              {handle: g.resume},
		OpSearchUsers:         {handle: g.searchUsers},
		OpGetPublicKey:        {handle: g.getPublicKey},
		OpGetPublicKeys:       {handle: g.getPublicKeys},
		OpInitPrivateChat:     {handle: g.initPrivateChat, needsIdentity: true},
		OpCreateGroup:         {handle: g.createGroup, needsIdentity: true},
		OpGetChatParticipants: {handle: g.getChatParticipants, needsIdentity: true},
		OpSendSecureMessage:   {handle: g.sendSecureMessage, needsIdentity: true},
		OpGetChatHistory:      {handle: g.getChatHistory, needsIdentity: true},
	}
	return g
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	_, allowAll := allowed["*"]

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" || allowAll {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractToken returns the bearer token from the Authorization header or the
// Sec-WebSocket-Protocol pair "bearer, <token>". An empty result means the
// client connects anonymously.
func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return ""
}

// ServeHTTP handles /ws. A valid bearer token binds the connection
// immediately; otherwise the client binds later with Login or Resume.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.upgrader.CheckOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	var session *service.Session
	if token := extractToken(r); token != "" {
		s, err := g.svc.Auth.Resume(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		session = s
	}

	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("upgrade", zap.Error(err))
		return
	}

	c := newConn(wsConn, g.opts.SendBuffer, g.log)
	g.track(c)
	c.push(domain.Event{
		Name: domain.EventServerHello,
		Data: domain.ServerHello{ServerID: g.opts.ServerID, ConnectionID: c.ID()},
	})
	if session != nil {
		g.bind(c, session.User)
	}

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		c.writePump()
	}()
	go func() {
		defer g.wg.Done()
		g.readPump(c)
	}()
}

func (g *Gateway) track(c *Conn) {
	g.mu.Lock()
	g.conns[c] = struct{}{}
	n := len(g.conns)
	g.mu.Unlock()
	g.metrics.SetConnections(n)
	c.log.Debug("connection opened")
}

func (g *Gateway) untrack(c *Conn) {
	g.mu.Lock()
	delete(g.conns, c)
	n := len(g.conns)
	g.mu.Unlock()
	g.metrics.SetConnections(n)
}

func (g *Gateway) bind(c *Conn, u *domain.User) {
	c.bind(boundUser{UserID: u.ID, Nickname: u.Nickname})
	g.reg.Bind(c, u.Nickname)
	c.log.Info("connection bound", zap.String("nickname", u.Nickname))
}

// Shutdown closes every open connection and waits for their goroutines.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	for c := range g.conns {
		c.close()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) readPump(c *Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		g.reg.Unbind(c)
		g.untrack(c)
		c.close()
		c.log.Debug("connection closed")
	}()

	c.ws.SetReadLimit(g.opts.MaxMessageBytes)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Debug("read", zap.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil || req.Op == "" {
			g.fail(c, Request{}, CodeInvalidInput, "malformed request frame")
			continue
		}
		g.dispatch(ctx, c, req)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *Conn, req Request) {
	start := time.Now()
	op, ok := g.ops[req.Op]
	if !ok {
		g.fail(c, req, CodeUnknownOperation, fmt.Sprintf("unknown operation %q", req.Op))
		g.metrics.ObserveRPC("unknown", CodeUnknownOperation, time.Since(start))
		return
	}
	if _, isBound := c.bound(); op.needsIdentity && !isBound {
		g.fail(c, req, CodeUnauthorized, "login required")
		g.metrics.ObserveRPC(req.Op, CodeUnauthorized, time.Since(start))
		return
	}

	data, err := op.handle(ctx, c, req.Args)
	if err != nil {
		code, msg := g.errorFor(req.Op, err)
		g.fail(c, req, code, msg)
		g.metrics.ObserveRPC(req.Op, code, time.Since(start))
		return
	}
	g.respond(c, Response{Type: frameResponse, ID: req.ID, Op: req.Op, OK: true, Data: data})
	g.metrics.ObserveRPC(req.Op, "ok", time.Since(start))
}

func (g *Gateway) fail(c *Conn, req Request, code, msg string) {
	g.respond(c, Response{
		Type:  frameResponse,
		ID:    req.ID,
		Op:    req.Op,
		Error: &ErrorBody{Code: code, Message: msg},
	})
}

func (g *Gateway) respond(c *Conn, resp Response) {
	frame, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("encode response", zap.String("op", resp.Op), zap.Error(err))
		return
	}
	c.reply(frame)
}

// errorFor maps an operation error to a wire code. Unexpected errors are
// logged and replaced with a fixed message.
func (g *Gateway) errorFor(op string, err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeInvalidInput, err.Error()
	case errors.Is(err, domain.ErrDuplicateMail):
		return CodeDuplicateMail, err.Error()
	case errors.Is(err, domain.ErrDuplicateNickname):
		return CodeDuplicateNickname, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return CodeInvalidCredentials, err.Error()
	case errors.Is(err, domain.ErrUserNotFound):
		return CodeUserNotFound, err.Error()
	case errors.Is(err, domain.ErrUnknownRecipient):
		return CodeUnknownRecipient, err.Error()
	case errors.Is(err, domain.ErrNotMember), errors.Is(err, domain.ErrForbidden):
		return CodeForbidden, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return CodeUnauthorized, domain.ErrUnauthorized.Error()
	}
	g.log.Error("operation failed", zap.String("op", op), zap.Error(err))
	return CodeInternal, domain.ErrInternal.Error()
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing args: %w", domain.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed args: %w", domain.ErrInvalidInput)
	}
	return nil
}

// sameID checks a caller-supplied user id against the bound identity.
func sameID(claimed *int64, me boundUser) error {
	if claimed != nil && *claimed != me.UserID {
		return fmt.Errorf("user id does not match the session: %w", domain.ErrForbidden)
	}
	return nil
}

func sameNickname(claimed *string, me boundUser) error {
	if claimed != nil && !strings.EqualFold(strings.TrimSpace(*claimed), me.Nickname) {
		return fmt.Errorf("nickname does not match the session: %w", domain.ErrForbidden)
	}
	return nil
}

func (g *Gateway) register(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var args registerArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	reg, err := g.svc.Auth.Register(ctx, service.RegisterInput{
		Mail:     args.Mail,
		Password: args.Password,
		Nickname: args.Nickname,
	})
	if err != nil {
		return nil, err
	}

	c.push(domain.Event{
		Name: domain.EventPrivateKeyIssued,
		Data: domain.PrivateKeyIssued{PrivateKey: reg.PrivateKey},
	})
	c.push(domain.Event{
		Name: domain.EventSystemNotice,
		Data: domain.SystemNotice{Source: "server", Text: "User created successfully."},
	})
	return map[string]any{
		"user_id":    reg.User.ID,
		"nickname":   reg.User.Nickname,
		"public_key": reg.User.PublicKey,
	}, nil
}

func (g *Gateway) login(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var args loginArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	sess, err := g.svc.Auth.Login(ctx, args.Mail, args.Password)
	if err != nil {
		return nil, err
	}
	g.bind(c, sess.User)
	return sessionData(sess), nil
}

func (g *Gateway) resume(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var args resumeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	sess, err := g.svc.Auth.Resume(ctx, args.Token)
	if err != nil {
		return nil, err
	}
	g.bind(c, sess.User)
	return sessionData(sess), nil
}

func sessionData(s *service.Session) map[string]any {
	return map[string]any{
		"user_id":  s.User.ID,
		"nickname": s.User.Nickname,
		"token":    s.Token,
	}
}

func (g *Gateway) searchUsers(ctx context.Context, _ *Conn, raw json.RawMessage) (any, error) {
	var args searchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	names, err := g.svc.Users.SearchUsers(ctx, args.Query)
	if err != nil {
		return nil, err
	}
	return map[string]any{"nicknames": names}, nil
}

func (g *Gateway) getPublicKey(ctx context.Context, _ *Conn, raw json.RawMessage) (any, error) {
	var args publicKeyArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	key, ok, err := g.svc.Users.LookupPublicKey(ctx, args.Nickname)
	if err != nil {
		return nil, err
	}
	if !ok {
		key = service.PublicKeyNotFound
	}
	return map[string]any{"nickname": args.Nickname, "public_key": key}, nil
}

func (g *Gateway) getPublicKeys(ctx context.Context, _ *Conn, raw json.RawMessage) (any, error) {
	var args publicKeysArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	keys, err := g.svc.Users.LookupPublicKeys(ctx, args.Nicknames)
	if err != nil {
		return nil, err
	}
	return map[string]any{"keys": keys}, nil
}

func (g *Gateway) initPrivateChat(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var args initPrivateChatArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	me, _ := c.bound()
	if err := sameID(args.MyID, me); err != nil {
		return nil, err
	}
	pc, err := g.svc.Conversations.ResolveOrCreatePrivateChat(ctx, me.UserID, args.TargetNickname)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"chat_id":         pc.ChatID,
		"target_nickname": pc.Peer,
		"created":         pc.Created,
	}, nil
}

func (g *Gateway) createGroup(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var args createGroupArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	me, _ := c.bound()
	if err := sameNickname(args.CreatorNickname, me); err != nil {
		return nil, err
	}
	grp, err := g.svc.Conversations.CreateGroup(ctx, me.Nickname, args.GroupName, args.Participants)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"chat_id":      grp.ChatID,
		"group_name":   grp.Name,
		"participants": grp.Participants,
		"skipped":      grp.Skipped,
	}, nil
}

func (g *Gateway) getChatParticipants(ctx context.Context, _ *Conn, raw json.RawMessage) (any, error) {
	var args chatArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	parts, err := g.svc.Conversations.ListParticipants(ctx, args.ChatID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"participants": parts}, nil
}

func (g *Gateway) sendSecureMessage(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var args sendArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	me, _ := c.bound()
	if err := sameID(args.SenderID, me); err != nil {
		return nil, err
	}
	if err := sameNickname(args.SenderNickname, me); err != nil {
		return nil, err
	}
	res, err := g.svc.Messages.SendSecureMessage(ctx, service.SendInput{
		ChatID:         args.ChatID,
		SenderID:       me.UserID,
		SenderNickname: me.Nickname,
		CipherText:     args.CipherText,
		IV:             args.IV,
		KeyBundle:      args.KeyBundle,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message_id": res.MessageID,
		"sent_at":    res.SentAt,
		"delivered":  res.Delivered,
	}, nil
}

func (g *Gateway) getChatHistory(ctx context.Context, c *Conn, raw json.RawMessage) (any, error) {
	var args historyArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	me, _ := c.bound()
	if err := sameID(args.ViewerID, me); err != nil {
		return nil, err
	}
	entries, err := g.svc.Messages.GetHistory(ctx, args.ChatID, me.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"messages": entries}, nil
}
