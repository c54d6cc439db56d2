package service_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"uchat/internal/domain"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByMail(ctx context.Context, mail string) (*domain.User, error) {
	args := m.Called(ctx, mail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByNickname(ctx context.Context, nickname string) (*domain.User, error) {
	args := m.Called(ctx, nickname)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByNicknames(ctx context.Context, nicknames []string) (map[string]*domain.User, error) {
	args := m.Called(ctx, nicknames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.User), args.Error(1)
}

func (m *MockUserRepo) SearchByNickname(ctx context.Context, query string, limit int) ([]string, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockChatRepo struct {
	mock.Mock
}

func (m *MockChatRepo) CreatePrivate(ctx context.Context, userA, userB int64) (*domain.Chat, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepo) FindPrivate(ctx context.Context, userA, userB int64) (*domain.Chat, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepo) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*domain.Chat, error) {
	args := m.Called(ctx, name, memberIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepo) GetByID(ctx context.Context, id int64) (*domain.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepo) ListParticipants(ctx context.Context, chatID int64) ([]string, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockChatRepo) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Append(ctx context.Context, msg *domain.Message, keyBundle map[string]string) (map[string]string, error) {
	args := m.Called(ctx, msg, keyBundle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockLedger) History(ctx context.Context, chatID, viewerID int64) ([]*domain.HistoryEntry, error) {
	args := m.Called(ctx, chatID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.HistoryEntry), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(nickname string, ev domain.Event) int {
	args := m.Called(nickname, ev)
	return args.Int(0)
}
