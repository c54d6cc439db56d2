package ws

import (
	"context"
	"time"

	"go.uber.org/zap"

	"uchat/internal/domain"
)

// Heartbeat periodically tells every bound connection that the server is
// alive and logs the registry size.
type Heartbeat struct {
	reg      *Registry
	interval time.Duration
	log      *zap.Logger
}

func NewHeartbeat(reg *Registry, interval time.Duration, log *zap.Logger) *Heartbeat {
	return &Heartbeat{reg: reg, interval: interval, log: log.Named("heartbeat")}
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (h *Heartbeat) Run(ctx context.Context) {
	if h.interval <= 0 {
		h.log.Info("heartbeat disabled")
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Heartbeat) beat() int {
	n := h.reg.Broadcast(domain.Event{
		Name: domain.EventSystemNotice,
		Data: domain.SystemNotice{Source: "server", Text: "Server is active"},
	})
	identities, conns := h.reg.Count()
	h.log.Debug("heartbeat",
		zap.Int("identities", identities),
		zap.Int("connections", conns),
		zap.Int("delivered", n),
	)
	return n
}
