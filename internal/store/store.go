package store

import (
	"context"
	"errors"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// Store is the local mirror of committed session state. It is written after
// the session commits and read by offline commands; it is never consulted
// to decide session state.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	UpsertUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	// Emails
	UpsertEmail(ctx context.Context, email *domain.Email, userID string) error
	GetEmail(ctx context.Context, userID, id string) (*domain.Email, error)
	ListEmails(ctx context.Context, opts ListEmailOptions) ([]domain.Email, error)
	ReplaceFolder(ctx context.Context, userID string, folder domain.Folder, emails []domain.Email) error
	DeleteEmail(ctx context.Context, userID, id string) error

	// Labels
	ReplaceLabels(ctx context.Context, userID string, labels []domain.Label) error
	ListLabels(ctx context.Context, userID string) ([]domain.Label, error)

	// Drafts
	ReplaceDrafts(ctx context.Context, userID string, drafts []domain.Draft) error
	ListDrafts(ctx context.Context, userID string) ([]domain.Draft, error)

	// Search
	SearchEmails(ctx context.Context, query string, userID string) ([]domain.Email, error)

	// Mirror state
	GetMirrorState(ctx context.Context, userID string) (*MirrorState, error)
	SetMirrorState(ctx context.Context, state *MirrorState) error

	// Lifecycle
	Close() error
}

// ListEmailOptions configures email listing queries. Folder and LabelID
// are alternative filters; when both are empty all mirrored emails match.
type ListEmailOptions struct {
	UserID  string
	Folder  domain.Folder
	LabelID string
	Limit   int
	Offset  int
}

// MirrorState records the last session snapshot written for a user.
type MirrorState struct {
	UserID     string
	Version    uint64
	View       string
	LastMirror time.Time
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")
