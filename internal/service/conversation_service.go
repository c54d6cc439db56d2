package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"uchat/internal/domain"
)

// ConversationService owns chat topology: private pairs, groups and their
// membership.
type ConversationService struct {
	chats domain.ChatRepository
	users domain.UserRepository
	pub   domain.Publisher
	log   *zap.Logger
}

func NewConversationService(
	chats domain.ChatRepository,
	users domain.UserRepository,
	pub domain.Publisher,
	log *zap.Logger,
) *ConversationService {
	return &ConversationService{
		chats: chats,
		users: users,
		pub:   pub,
		log:   log.Named("conversations"),
	}
}

// PrivateChat is the outcome of ResolveOrCreatePrivateChat. Peer is the
// stored nickname of the target.
type PrivateChat struct {
	ChatID  int64
	Peer    string
	Created bool
}

// Group is the outcome of CreateGroup. Skipped lists requested nicknames that
// did not resolve to a user.
type Group struct {
	ChatID       int64
	Name         string
	Participants []string
	Skipped      []string
}

// ResolveOrCreatePrivateChat returns the single private chat between myID and
// targetNickname, creating it on first contact. Concurrent first contacts
// converge on one chat: the losing insert hits the pair_key constraint and
// falls back to a lookup. Only the creating call notifies the target.
func (s *ConversationService) ResolveOrCreatePrivateChat(ctx context.Context, myID int64, targetNickname string) (*PrivateChat, error) {
	targetNickname = strings.TrimSpace(targetNickname)
	if targetNickname == "" {
		return nil, fmt.Errorf("target nickname is required: %w", domain.ErrInvalidInput)
	}

	target, err := s.users.GetByNickname(ctx, targetNickname)
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, targetNickname)
	}
	me, err := s.users.GetByID(ctx, myID)
	if err != nil {
		return nil, fmt.Errorf("get initiator: %w", err)
	}
	if me == nil {
		return nil, fmt.Errorf("%w: id %d", domain.ErrUserNotFound, myID)
	}
	if me.ID == target.ID {
		return nil, fmt.Errorf("cannot open a private chat with yourself: %w", domain.ErrInvalidInput)
	}

	existing, err := s.chats.FindPrivate(ctx, me.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("find private chat: %w", err)
	}
	if existing != nil {
		return &PrivateChat{ChatID: existing.ID, Peer: target.Nickname}, nil
	}

	chat, err := s.chats.CreatePrivate(ctx, me.ID, target.ID)
	if errors.Is(err, domain.ErrConflict) {
		existing, err = s.chats.FindPrivate(ctx, me.ID, target.ID)
		if err != nil {
			return nil, fmt.Errorf("find private chat after conflict: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("private chat missing after conflict: %w", domain.ErrInternal)
		}
		s.log.Debug("private chat race resolved by lookup", zap.Int64("chat_id", existing.ID))
		return &PrivateChat{ChatID: existing.ID, Peer: target.Nickname}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create private chat: %w", err)
	}

	s.log.Info("private chat created",
		zap.Int64("chat_id", chat.ID),
		zap.String("initiator", me.Nickname),
		zap.String("target", target.Nickname),
	)
	s.pub.Publish(target.Nickname, domain.Event{
		Name: domain.EventChatEstablished,
		Data: domain.ChatEstablished{ChatID: chat.ID, Peer: me.Nickname},
	})
	return &PrivateChat{ChatID: chat.ID, Peer: target.Nickname, Created: true}, nil
}

// CreateGroup creates a group of the creator plus every participant that
// resolves. Unresolved nicknames are reported in Group.Skipped. At least two
// distinct members are required.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorNickname, groupName string, participantNicknames []string) (*Group, error) {
	groupName = strings.TrimSpace(groupName)
	if groupName == "" || len(groupName) > 100 {
		return nil, fmt.Errorf("group name must be 1-100 characters: %w", domain.ErrInvalidInput)
	}
	creatorNickname = strings.TrimSpace(creatorNickname)

	names := append([]string{creatorNickname}, participantNicknames...)
	found, err := s.users.GetByNicknames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}
	creator, ok := found[strings.ToLower(creatorNickname)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, creatorNickname)
	}

	g := &Group{Name: groupName, Participants: []string{creator.Nickname}, Skipped: []string{}}
	ids := []int64{creator.ID}
	seen := map[string]struct{}{strings.ToLower(creator.Nickname): {}}
	for _, n := range participantNicknames {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		u, ok := found[key]
		if !ok {
			g.Skipped = append(g.Skipped, strings.TrimSpace(n))
			continue
		}
		ids = append(ids, u.ID)
		g.Participants = append(g.Participants, u.Nickname)
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("a group needs at least one other known participant: %w", domain.ErrInvalidInput)
	}

	chat, err := s.chats.CreateGroup(ctx, groupName, ids)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	g.ChatID = chat.ID

	if len(g.Skipped) > 0 {
		s.log.Info("group created with unknown participants skipped",
			zap.Int64("chat_id", chat.ID), zap.Strings("skipped", g.Skipped))
	}
	ev := domain.Event{
		Name: domain.EventGroupEstablished,
		Data: domain.GroupEstablished{ChatID: chat.ID, GroupName: groupName, Participants: g.Participants},
	}
	for _, p := range g.Participants {
		s.pub.Publish(p, ev)
	}
	return g, nil
}

// ListParticipants returns the nicknames of a chat's members, sorted.
func (s *ConversationService) ListParticipants(ctx context.Context, chatID int64) ([]string, error) {
	if chatID <= 0 {
		return nil, fmt.Errorf("chat id is required: %w", domain.ErrInvalidInput)
	}
	parts, err := s.chats.ListParticipants(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return parts, nil
}
