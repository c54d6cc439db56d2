package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"uchat/internal/domain"
	"uchat/internal/metrics"
)

// MessageService routes end-to-end encrypted messages: it persists the
// envelope through the ledger and then pushes it to every recipient. It never
// decrypts or inspects the ciphertext.
type MessageService struct {
	ledger  domain.MessageLedger
	chats   domain.ChatRepository
	pub     domain.Publisher
	metrics *metrics.Recorder
	log     *zap.Logger
}

func NewMessageService(
	ledger domain.MessageLedger,
	chats domain.ChatRepository,
	pub domain.Publisher,
	rec *metrics.Recorder,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		ledger:  ledger,
		chats:   chats,
		pub:     pub,
		metrics: rec,
		log:     log.Named("router"),
	}
}

type SendInput struct {
	ChatID         int64
	SenderID       int64
	SenderNickname string
	CipherText     string
	IV             string
	// KeyBundle maps recipient nickname to the message key wrapped with that
	// recipient's public key.
	KeyBundle map[string]string
}

type SendResult struct {
	MessageID int64
	SentAt    time.Time
	// Delivered counts live connections that accepted the push.
	Delivered int
}

// SendSecureMessage persists the message with its key bundle, then publishes
// a SecureMessage event to each recipient. Publishing is best-effort: offline
// recipients read the message later through GetHistory.
func (s *MessageService) SendSecureMessage(ctx context.Context, in SendInput) (*SendResult, error) {
	if err := validateSend(in); err != nil {
		return nil, err
	}

	member, err := s.chats.IsMember(ctx, in.ChatID, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("chat %d: %w", in.ChatID, domain.ErrNotMember)
	}

	msg := &domain.Message{
		ChatID:     in.ChatID,
		SenderID:   in.SenderID,
		CipherText: in.CipherText,
		IV:         in.IV,
	}
	routed, err := s.ledger.Append(ctx, msg, in.KeyBundle)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	s.metrics.MessageSent()

	recipients := make([]string, 0, len(routed))
	for n := range routed {
		recipients = append(recipients, n)
	}
	sort.Strings(recipients)

	res := &SendResult{MessageID: msg.ID, SentAt: msg.SentAt}
	for _, n := range recipients {
		delivered := s.pub.Publish(n, domain.Event{
			Name: domain.EventSecureMessage,
			Data: domain.SecureMessage{
				Sender:     in.SenderNickname,
				CipherText: msg.CipherText,
				IV:         msg.IV,
				WrappedKey: routed[n],
				ChatID:     msg.ChatID,
				MessageID:  msg.ID,
				SentAt:     msg.SentAt,
			},
		})
		res.Delivered += delivered
	}

	s.log.Debug("secure message routed",
		zap.Int64("message_id", msg.ID),
		zap.Int64("chat_id", msg.ChatID),
		zap.Int("recipients", len(recipients)),
		zap.Int("delivered", res.Delivered),
	)
	return res, nil
}

func validateSend(in SendInput) error {
	switch {
	case in.ChatID <= 0 || in.SenderID <= 0:
		return fmt.Errorf("chat and sender are required: %w", domain.ErrInvalidInput)
	case in.CipherText == "" || in.IV == "":
		return fmt.Errorf("cipher text and iv are required: %w", domain.ErrInvalidInput)
	case len(in.KeyBundle) == 0:
		return fmt.Errorf("key bundle must name at least one recipient: %w", domain.ErrInvalidInput)
	}
	for n, k := range in.KeyBundle {
		if strings.TrimSpace(n) == "" || k == "" {
			return fmt.Errorf("key bundle entries need a nickname and a key: %w", domain.ErrInvalidInput)
		}
	}
	return nil
}

// GetHistory returns the messages of chatID readable by viewerID, oldest
// first. It never returns a nil slice.
func (s *MessageService) GetHistory(ctx context.Context, chatID, viewerID int64) ([]*domain.HistoryEntry, error) {
	if chatID <= 0 || viewerID <= 0 {
		return nil, fmt.Errorf("chat and viewer are required: %w", domain.ErrInvalidInput)
	}
	entries, err := s.ledger.History(ctx, chatID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if entries == nil {
		entries = []*domain.HistoryEntry{}
	}
	return entries, nil
}
