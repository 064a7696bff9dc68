package store

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const serviceName = "mailsession"

// KeyringTokenStore persists OAuth2 tokens in the OS keyring
// (macOS Keychain, Windows Credential Manager, or Linux Secret Service).
type KeyringTokenStore struct {
	service string
}

// NewKeyringTokenStore returns a KeyringTokenStore using the default
// service name.
func NewKeyringTokenStore() *KeyringTokenStore {
	return &KeyringTokenStore{service: serviceName}
}

// SaveToken stores the given OAuth2 token in the OS keyring under the user ID.
func (k *KeyringTokenStore) SaveToken(userID string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := keyring.Set(k.service, userID, string(data)); err != nil {
		return fmt.Errorf("failed to save token to keyring: %w", err)
	}
	return nil
}

// LoadToken retrieves the OAuth2 token for the given user ID from the OS keyring.
func (k *KeyringTokenStore) LoadToken(userID string) (*oauth2.Token, error) {
	data, err := keyring.Get(k.service, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load token for %s from keyring: %w", userID, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// DeleteToken removes the OAuth2 token for the given user ID from the OS keyring.
func (k *KeyringTokenStore) DeleteToken(userID string) error {
	if err := keyring.Delete(k.service, userID); err != nil {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}
