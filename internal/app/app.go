// Package app wires configuration, identity, the remote gateway, the
// session and the local mirror into one running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailsession/internal/assist"
	"github.com/lu-zhengda/mailsession/internal/auth"
	"github.com/lu-zhengda/mailsession/internal/config"
	"github.com/lu-zhengda/mailsession/internal/gateway"
	"github.com/lu-zhengda/mailsession/internal/gateway/gmail"
	"github.com/lu-zhengda/mailsession/internal/gateway/graphql"
	"github.com/lu-zhengda/mailsession/internal/session"
	"github.com/lu-zhengda/mailsession/internal/store"
	"github.com/lu-zhengda/mailsession/internal/store/sqlite"
)

// Options override parts of the wiring. Zero values select the defaults
// derived from Config.
type Options struct {
	// DBPath is the mirror database. Empty uses DataDir/mailsession.db.
	DBPath string
	// Auth replaces the keyring identity provider.
	Auth auth.Provider
	// Gateway replaces the configured backend.
	Gateway gateway.Gateway
	// Tokens replaces the keyring OAuth token store for Gmail.
	Tokens gmail.TokenStore
}

// App is the root composition unit. It owns every long-lived component and
// releases them on Close.
type App struct {
	Config     *config.Config
	Log        *logrus.Logger
	Auth       auth.Provider
	Tokens     gmail.TokenStore
	DB         store.Store
	Gateway    gateway.Gateway
	Session    *session.Store
	Dispatcher *session.Dispatcher
	Assistant  *assist.Assistant
	Mirror     *MirrorService

	cancel         context.CancelFunc
	stopIdentity   func()
	identityEvents sync.WaitGroup
}

// New builds an App from cfg. The session is not loaded; call Load.
func New(cfg *config.Config, log *logrus.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &App{Config: cfg, Log: log}

	dbPath := opts.DBPath
	if dbPath == "" {
		dir := config.DataDir()
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		dbPath = filepath.Join(dir, "mailsession.db")
	}
	db, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror: %w", err)
	}
	a.DB = db

	a.Auth = opts.Auth
	if a.Auth == nil {
		if tok := config.Token(); tok != "" {
			a.Auth = auth.Static{UserID: cfg.Users.Default, AuthToken: tok}
		} else {
			a.Auth = auth.NewKeyringProvider("")
		}
	}
	a.Tokens = opts.Tokens
	if a.Tokens == nil {
		a.Tokens = store.NewKeyringTokenStore()
	}

	a.Gateway = opts.Gateway
	if a.Gateway == nil {
		if a.Gateway, err = a.buildGateway(); err != nil {
			db.Close()
			return nil, err
		}
	}

	provider, err := assist.NewProviderFromConfig(assist.Config{
		Provider: cfg.Assistant.Provider,
		Endpoint: cfg.Assistant.Endpoint,
		Model:    cfg.Assistant.Model,
		Region:   cfg.Assistant.Region,
		Timeout:  cfg.AssistantTimeout(),
	})
	if err != nil {
		log.WithError(err).Warn("assistant disabled")
		provider = nil
	}
	a.Assistant = assist.New(provider, logrus.NewEntry(log))

	folder, err := cfg.DefaultFolder()
	if err != nil {
		db.Close()
		return nil, err
	}
	a.Session = session.NewStore(folder, logrus.NewEntry(log))

	var assistant session.Assistant
	if a.Assistant.Available() {
		assistant = a.Assistant
	}
	a.Dispatcher = session.NewDispatcher(a.Session, a.Gateway, assistant, logrus.NewEntry(log))

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Mirror = NewMirrorService(a.DB, logrus.NewEntry(log))
	a.Mirror.Start(context.Background(), a.Session)
	a.stopIdentity = a.Auth.OnChange(func(id auth.Identity) {
		a.identityEvents.Add(1)
		go func() {
			defer a.identityEvents.Done()
			a.onIdentityChange(ctx, id)
		}()
	})

	return a, nil
}

func (a *App) buildGateway() (gateway.Gateway, error) {
	cfg := a.Config
	entry := logrus.NewEntry(a.Log)
	switch cfg.Backend.Kind {
	case "gmail":
		if cfg.Gmail.ClientID != "" {
			gmail.SetCredentials(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret)
		}
		return gmail.New(gmail.Config{
			UserID:   a.CurrentUserID(),
			PageSize: cfg.Backend.PageSize,
			Tokens:   a.Tokens,
			Users:    a.DB,
			Logger:   entry,
		}), nil
	case "graphql":
		return graphql.New(graphql.Config{
			Endpoint:    cfg.Backend.Endpoint,
			Timeout:     cfg.BackendTimeout(),
			TokenSource: auth.TokenSource(a.Auth),
			Logger:      entry,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}
}

// CurrentUserID returns the signed-in user, falling back to the configured
// default.
func (a *App) CurrentUserID() string {
	if id, err := a.Auth.Identity(); err == nil && id.UserID != "" {
		return id.UserID
	}
	return a.Config.Users.Default
}

// onIdentityChange reloads the session for a user switched outside the
// dispatcher. The Gmail gateway keeps its own account, so it is switched
// explicitly.
func (a *App) onIdentityChange(ctx context.Context, id auth.Identity) {
	entry := a.Log.WithFields(logrus.Fields{"component": "app", "user_id": id.UserID})
	if id.UserID == "" {
		entry.Info("signed out")
		return
	}
	var err error
	if a.Config.Backend.Kind == "gmail" {
		if cur := a.Session.Snapshot().CurrentUser; cur != nil && cur.ID == id.UserID {
			return
		}
		err = a.Dispatcher.SwitchUser(ctx, id.UserID)
	} else {
		err = a.Dispatcher.HandleIdentityChange(ctx, id.UserID)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		entry.WithError(err).Warn("failed to reload session after identity change")
	}
}

// Load fetches the initial session state.
func (a *App) Load(ctx context.Context) error {
	return a.Dispatcher.Load(ctx)
}

// Close stops background work and closes the mirror database.
func (a *App) Close() error {
	if a.stopIdentity != nil {
		a.stopIdentity()
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.identityEvents.Wait()
	if a.Mirror != nil {
		a.Mirror.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
