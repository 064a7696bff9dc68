package store

import (
	"errors"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

func TestKeyringTokenStore(t *testing.T) {
	keyring.MockInit()
	ks := NewKeyringTokenStore()

	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := ks.SaveToken("u1", tok); err != nil {
		t.Fatalf("SaveToken() error: %v", err)
	}

	got, err := ks.LoadToken("u1")
	if err != nil {
		t.Fatalf("LoadToken() error: %v", err)
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" {
		t.Errorf("token = %+v", got)
	}
	if !got.Expiry.Equal(tok.Expiry) {
		t.Errorf("Expiry = %v, want %v", got.Expiry, tok.Expiry)
	}

	if err := ks.DeleteToken("u1"); err != nil {
		t.Fatalf("DeleteToken() error: %v", err)
	}
	if _, err := ks.LoadToken("u1"); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("LoadToken() after delete error = %v, want ErrNotFound", err)
	}
}
