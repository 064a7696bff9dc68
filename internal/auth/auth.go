// Package auth supplies the signed-in identity the session acts as and
// notifies subscribers when it changes.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

// ErrNoIdentity is returned when no user is signed in.
var ErrNoIdentity = errors.New("no signed-in user")

// Identity is the user the session acts as and the bearer token that
// authenticates them to the backend.
type Identity struct {
	UserID    string
	AuthToken string
}

// Provider is the auth/session provider.
type Provider interface {
	Identity() (Identity, error)
	OnChange(fn func(Identity)) (cancel func())
}

const (
	defaultService = "mailsession-auth"
	currentUserKey = "current-user"
)

// KeyringProvider keeps the current user id and per-user tokens in the OS
// keyring.
type KeyringProvider struct {
	service string

	mu        sync.Mutex
	listeners map[int]func(Identity)
	nextID    int
}

var _ Provider = (*KeyringProvider)(nil)

// NewKeyringProvider returns a provider storing entries under service, or
// under a default service name when empty.
func NewKeyringProvider(service string) *KeyringProvider {
	if service == "" {
		service = defaultService
	}
	return &KeyringProvider{service: service, listeners: make(map[int]func(Identity))}
}

func tokenKey(userID string) string { return "token:" + userID }

// Identity returns the signed-in user and their token.
func (p *KeyringProvider) Identity() (Identity, error) {
	userID, err := keyring.Get(p.service, currentUserKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return Identity{}, ErrNoIdentity
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read current user: %w", err)
	}
	token, err := keyring.Get(p.service, tokenKey(userID))
	if errors.Is(err, keyring.ErrNotFound) {
		return Identity{}, fmt.Errorf("%w: no token stored for %s", ErrNoIdentity, userID)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read token for %s: %w", userID, err)
	}
	return Identity{UserID: userID, AuthToken: token}, nil
}

// Login stores token for userID and makes them the current user.
func (p *KeyringProvider) Login(userID, token string) error {
	if userID == "" || token == "" {
		return errors.New("user id and token are required")
	}
	if err := keyring.Set(p.service, tokenKey(userID), token); err != nil {
		return fmt.Errorf("failed to save token for %s: %w", userID, err)
	}
	return p.setCurrent(Identity{UserID: userID, AuthToken: token})
}

// Switch makes a previously logged-in user current.
func (p *KeyringProvider) Switch(userID string) error {
	token, err := keyring.Get(p.service, tokenKey(userID))
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s has not logged in", ErrNoIdentity, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to read token for %s: %w", userID, err)
	}
	return p.setCurrent(Identity{UserID: userID, AuthToken: token})
}

// Logout forgets userID's token. Logging out the current user leaves no
// one signed in.
func (p *KeyringProvider) Logout(userID string) error {
	if err := keyring.Delete(p.service, tokenKey(userID)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token for %s: %w", userID, err)
	}
	cur, err := keyring.Get(p.service, currentUserKey)
	if err != nil || cur != userID {
		return nil
	}
	if err := keyring.Delete(p.service, currentUserKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to clear current user: %w", err)
	}
	p.notify(Identity{})
	return nil
}

func (p *KeyringProvider) setCurrent(id Identity) error {
	prev, _ := keyring.Get(p.service, currentUserKey)
	if err := keyring.Set(p.service, currentUserKey, id.UserID); err != nil {
		return fmt.Errorf("failed to save current user: %w", err)
	}
	if prev != id.UserID {
		p.notify(id)
	}
	return nil
}

// OnChange registers fn to run whenever the current identity changes.
func (p *KeyringProvider) OnChange(fn func(Identity)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *KeyringProvider) notify(id Identity) {
	p.mu.Lock()
	fns := make([]func(Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// Static is a fixed identity, e.g. a token passed through the environment.
type Static Identity

func (s Static) Identity() (Identity, error) {
	if s.AuthToken == "" {
		return Identity{}, ErrNoIdentity
	}
	return Identity(s), nil
}

func (s Static) OnChange(func(Identity)) (cancel func()) { return func() {} }

// TokenSource adapts a Provider to oauth2. Every call reads the current
// identity, so a switched user takes effect on the next request.
func TokenSource(p Provider) oauth2.TokenSource {
	return providerSource{p: p}
}

type providerSource struct {
	p Provider
}

func (s providerSource) Token() (*oauth2.Token, error) {
	id, err := s.p.Identity()
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: id.AuthToken, TokenType: "Bearer"}, nil
}
