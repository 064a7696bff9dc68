package session

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

// MockGateway implements gateway.Gateway for testing.
type MockGateway struct {
	mock.Mock
}

var _ gateway.Gateway = (*MockGateway)(nil)

func (m *MockGateway) FetchEmails(ctx context.Context, q gateway.EmailQuery) ([]domain.Email, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Email), args.Error(1)
}

func (m *MockGateway) FetchEmailByID(ctx context.Context, id string) (*domain.Email, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Email), args.Error(1)
}

func (m *MockGateway) FetchLabels(ctx context.Context) ([]domain.Label, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Label), args.Error(1)
}

func (m *MockGateway) FetchLabelStats(ctx context.Context) ([]domain.LabelStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LabelStats), args.Error(1)
}

func (m *MockGateway) FetchDrafts(ctx context.Context) ([]domain.Draft, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Draft), args.Error(1)
}

func (m *MockGateway) FetchCurrentUser(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockGateway) FetchAllUsers(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *MockGateway) CreateLabel(ctx context.Context, in gateway.LabelInput) (*domain.Label, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Label), args.Error(1)
}

func (m *MockGateway) DeleteLabel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGateway) SetStarred(ctx context.Context, id string, starred bool) error {
	return m.Called(ctx, id, starred).Error(0)
}

func (m *MockGateway) MoveEmail(ctx context.Context, id string, folder domain.Folder) error {
	return m.Called(ctx, id, folder).Error(0)
}

func (m *MockGateway) ApplyLabel(ctx context.Context, emailID, labelID string) error {
	return m.Called(ctx, emailID, labelID).Error(0)
}

func (m *MockGateway) RemoveLabel(ctx context.Context, emailID, labelID string) error {
	return m.Called(ctx, emailID, labelID).Error(0)
}

func (m *MockGateway) SaveDraft(ctx context.Context, in gateway.DraftInput) (*domain.Draft, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Draft), args.Error(1)
}

func (m *MockGateway) SendEmail(ctx context.Context, draftID string) (*domain.Email, error) {
	args := m.Called(ctx, draftID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Email), args.Error(1)
}

func (m *MockGateway) SwitchUser(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockAssistant implements Assistant for testing.
type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) GenerateEmail(ctx context.Context, subject, brief, tone string) (string, error) {
	args := m.Called(ctx, subject, brief, tone)
	return args.String(0), args.Error(1)
}
