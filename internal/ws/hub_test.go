package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"uchat/internal/domain"
	"uchat/internal/metrics"
)

type fakeSub struct {
	id   string
	full bool
	mu   sync.Mutex
	got  [][]byte
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Enqueue(frame []byte) bool {
	if f.full {
		return false
	}
	f.mu.Lock()
	f.got = append(f.got, frame)
	f.mu.Unlock()
	return true
}

func (f *fakeSub) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.got...)
}

func newTestRegistry(t *testing.T) *Registry {
	return NewRegistry(metrics.NewRecorder(), zaptest.NewLogger(t))
}

func notice(text string) domain.Event {
	return domain.Event{Name: domain.EventSystemNotice, Data: domain.SystemNotice{Source: "test", Text: text}}
}

func TestRegistryLifecycle(t *testing.T) {
	reg := newTestRegistry(t)
	a := &fakeSub{id: "a"}

	assert.False(t, reg.Online("alice"))

	reg.Bind(a, "Alice")
	reg.Bind(a, "alice")
	assert.True(t, reg.Online("ALICE"))
	ids, conns := reg.Count()
	assert.Equal(t, 1, ids)
	assert.Equal(t, 1, conns)

	reg.Unbind(a)
	assert.False(t, reg.Online("alice"))
	ids, conns = reg.Count()
	assert.Zero(t, ids)
	assert.Zero(t, conns)

	// Unbinding twice is harmless.
	reg.Unbind(a)
}

func TestRegistryRebindMoves(t *testing.T) {
	reg := newTestRegistry(t)
	a := &fakeSub{id: "a"}

	reg.Bind(a, "alice")
	reg.Bind(a, "bob")
	assert.False(t, reg.Online("alice"))
	assert.True(t, reg.Online("bob"))
	assert.Equal(t, 1, reg.Publish("bob", notice("x")))
	assert.Zero(t, reg.Publish("alice", notice("x")))
}

func TestRegistryPublishFanOut(t *testing.T) {
	reg := newTestRegistry(t)
	phone := &fakeSub{id: "phone"}
	laptop := &fakeSub{id: "laptop"}
	other := &fakeSub{id: "other"}
	reg.Bind(phone, "alice")
	reg.Bind(laptop, "alice")
	reg.Bind(other, "bob")

	n := reg.Publish("ALICE", notice("hi"))
	assert.Equal(t, 2, n)
	require.Len(t, phone.frames(), 1)
	require.Len(t, laptop.frames(), 1)
	assert.Empty(t, other.frames())

	var frame EventFrame
	require.NoError(t, json.Unmarshal(phone.frames()[0], &frame))
	assert.Equal(t, frameEvent, frame.Type)
	assert.Equal(t, domain.EventSystemNotice, frame.Event)

	// One of several connections leaving keeps the identity online.
	reg.Unbind(phone)
	assert.True(t, reg.Online("alice"))
	assert.Equal(t, 1, reg.Publish("alice", notice("again")))
}

func TestRegistryOfflineAndFullQueue(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Zero(t, reg.Publish("nobody", notice("lost")))

	slow := &fakeSub{id: "slow", full: true}
	fast := &fakeSub{id: "fast"}
	reg.Bind(slow, "carol")
	reg.Bind(fast, "carol")
	assert.Equal(t, 1, reg.Publish("carol", notice("x")))
	assert.Len(t, fast.frames(), 1)
}

func TestRegistryBroadcast(t *testing.T) {
	reg := newTestRegistry(t)
	a, b := &fakeSub{id: "a"}, &fakeSub{id: "b"}
	reg.Bind(a, "alice")
	reg.Bind(b, "bob")
	assert.Equal(t, 2, reg.Broadcast(notice("tick")))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := newTestRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := &fakeSub{id: fmt.Sprint(i)}
			nick := fmt.Sprintf("user%d", i%5)
			reg.Bind(sub, nick)
			reg.Publish(nick, notice("x"))
			reg.Broadcast(notice("y"))
			reg.Unbind(sub)
		}(i)
	}
	wg.Wait()
	ids, conns := reg.Count()
	assert.Zero(t, ids)
	assert.Zero(t, conns)
}

func TestHeartbeatBeat(t *testing.T) {
	reg := newTestRegistry(t)
	a := &fakeSub{id: "a"}
	reg.Bind(a, "alice")

	hb := NewHeartbeat(reg, 0, zaptest.NewLogger(t))
	assert.Equal(t, 1, hb.beat())

	var frame struct {
		Event string              `json:"event"`
		Data  domain.SystemNotice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(a.frames()[0], &frame))
	assert.Equal(t, domain.EventSystemNotice, frame.Event)
	assert.Equal(t, "Server is active", frame.Data.Text)
}
