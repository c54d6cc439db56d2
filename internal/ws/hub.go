package ws

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"uchat/internal/domain"
	"uchat/internal/metrics"
)

// Subscriber is a live connection that can receive pushed frames.
type Subscriber interface {
	ID() string
	// Enqueue must not block; it reports whether the frame was accepted.
	Enqueue(frame []byte) bool
}

// Registry binds live connections to identities and fans events out to them.
// Routing keys are case-insensitive nicknames. An identity is online while
// at least one connection is bound to it.
type Registry struct {
	mu     sync.RWMutex
	byNick map[string]map[Subscriber]struct{}
	byConn map[Subscriber]string

	metrics *metrics.Recorder
	log     *zap.Logger
}

func NewRegistry(rec *metrics.Recorder, log *zap.Logger) *Registry {
	return &Registry{
		byNick:  make(map[string]map[Subscriber]struct{}),
		byConn:  make(map[Subscriber]string),
		metrics: rec,
		log:     log.Named("registry"),
	}
}

func routingKey(nickname string) string {
	return strings.ToLower(strings.TrimSpace(nickname))
}

// Bind attaches sub to nickname. Binding the same pair twice is a no-op;
// binding sub to another nickname moves it.
func (r *Registry) Bind(sub Subscriber, nickname string) {
	key := routingKey(nickname)
	if key == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[sub]; ok {
		if prev == key {
			return
		}
		r.detach(sub, prev)
	}
	if r.byNick[key] == nil {
		r.byNick[key] = make(map[Subscriber]struct{})
	}
	r.byNick[key][sub] = struct{}{}
	r.byConn[sub] = key
	r.metrics.SetOnlineIdentities(len(r.byNick))
}

// Unbind removes every binding of sub.
func (r *Registry) Unbind(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.byConn[sub]; ok {
		r.detach(sub, key)
		r.metrics.SetOnlineIdentities(len(r.byNick))
	}
}

// detach must be called with mu held.
func (r *Registry) detach(sub Subscriber, key string) {
	delete(r.byConn, sub)
	if subs, ok := r.byNick[key]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.byNick, key)
		}
	}
}

// Publish delivers ev to every connection bound to nickname and returns how
// many accepted it. Events for offline identities are dropped.
func (r *Registry) Publish(nickname string, ev domain.Event) int {
	frame, err := encodeEvent(ev)
	if err != nil {
		r.log.Error("encode event", zap.String("event", ev.Name), zap.Error(err))
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.byNick[routingKey(nickname)]
	if len(subs) == 0 {
		r.metrics.PushEvent(ev.Name, "offline")
		return 0
	}
	return r.deliver(subs, ev.Name, frame)
}

// Broadcast delivers ev to every bound connection.
func (r *Registry) Broadcast(ev domain.Event) int {
	frame, err := encodeEvent(ev)
	if err != nil {
		r.log.Error("encode event", zap.String("event", ev.Name), zap.Error(err))
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, subs := range r.byNick {
		n += r.deliver(subs, ev.Name, frame)
	}
	return n
}

func (r *Registry) deliver(subs map[Subscriber]struct{}, event string, frame []byte) int {
	n := 0
	for sub := range subs {
		if sub.Enqueue(frame) {
			n++
			r.metrics.PushEvent(event, "delivered")
			continue
		}
		r.metrics.PushEvent(event, "dropped")
		r.log.Warn("outbound queue full, event dropped",
			zap.String("event", event), zap.String("conn_id", sub.ID()))
	}
	return n
}

func (r *Registry) Online(nickname string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byNick[routingKey(nickname)]) > 0
}

// Count returns the number of online identities and bound connections.
func (r *Registry) Count() (identities, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byNick), len(r.byConn)
}
