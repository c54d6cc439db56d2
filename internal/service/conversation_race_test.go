package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"uchat/internal/domain"
	"uchat/internal/service"
	"uchat/internal/store/sqlite"
	"uchat/internal/store/sqlstore"
)

type countingPublisher struct {
	established atomic.Int32
}

func (p *countingPublisher) Publish(_ string, ev domain.Event) int {
	if ev.Name == domain.EventChatEstablished {
		p.established.Add(1)
	}
	return 0
}

func TestResolveOrCreatePrivateChatConcurrent(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	store := sqlstore.New(db, sqlite.Dialect{})

	a := &domain.User{Mail: "a@x.com", Nickname: "alice", PasswordHash: "h", PasswordSalt: "s", PublicKey: "PA"}
	b := &domain.User{Mail: "b@x.com", Nickname: "bob", PasswordHash: "h", PasswordSalt: "s", PublicKey: "PB"}
	require.NoError(t, store.Users.Create(ctx, a))
	require.NoError(t, store.Users.Create(ctx, b))

	pub := &countingPublisher{}
	svc := service.NewConversationService(store.Chats, store.Users, pub, zaptest.NewLogger(t))

	const callers = 40
	ids := make([]int64, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			var pc *service.PrivateChat
			var err error
			if i%2 == 0 {
				pc, err = svc.ResolveOrCreatePrivateChat(ctx, a.ID, "bob")
			} else {
				pc, err = svc.ResolveOrCreatePrivateChat(ctx, b.ID, "ALICE")
			}
			errs[i] = err
			if pc != nil {
				ids[i] = pc.ChatID
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i], "caller %d", i)
		assert.Equal(t, ids[0], ids[i], "caller %d", i)
	}
	assert.NotZero(t, ids[0])

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM chats").Scan(&rows))
	assert.Equal(t, 1, rows)
	assert.Equal(t, int32(1), pub.established.Load(), "only the creating call notifies")
}
