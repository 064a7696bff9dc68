package app

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/lu-zhengda/mailsession/internal/auth"
	"github.com/lu-zhengda/mailsession/internal/config"
	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway/gatewaytest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, gw *gatewaytest.Gateway, provider auth.Provider) *App {
	t.Helper()
	logger, _ := test.NewNullLogger()
	a, err := New(testConfig(t), logger, Options{DBPath: ":memory:", Auth: provider, Gateway: gw})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAppLoad(t *testing.T) {
	gw := gatewaytest.New(ana, ben)
	gw.AddEmail("u1", inboxEmail("m1"))

	a := newTestApp(t, gw, auth.Static{UserID: "u1", AuthToken: "t"})
	require.NoError(t, a.Load(context.Background()))

	snap := a.Session.Snapshot()
	require.NotNil(t, snap.CurrentUser)
	assert.Equal(t, "u1", snap.CurrentUser.ID)
	assert.Len(t, snap.Users, 2)
	assert.Len(t, snap.Emails, 1)
	assert.Equal(t, 1, snap.UnreadCount)
	assert.False(t, a.Assistant.Available())
}

func TestAppIdentityChangeReloads(t *testing.T) {
	keyring.MockInit()
	provider := auth.NewKeyringProvider("mailsession-test")
	require.NoError(t, provider.Login("u1", "tok-1"))

	gw := gatewaytest.New(ana, ben)
	gw.AddEmail("u1", inboxEmail("m1"))
	gw.AddEmail("u2", inboxEmail("m2"))

	a := newTestApp(t, gw, provider)
	require.NoError(t, a.Load(context.Background()))
	require.Equal(t, "u1", a.Session.Snapshot().CurrentUser.ID)

	// The server resolves the new token to the new user.
	_, err := gw.SwitchUser(context.Background(), "u2")
	require.NoError(t, err)
	require.NoError(t, provider.Login("u2", "tok-2"))

	assert.Eventually(t, func() bool {
		snap := a.Session.Snapshot()
		return snap.CurrentUser != nil && snap.CurrentUser.ID == "u2" &&
			len(snap.Emails) == 1 && snap.Emails[0].ID == "m2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAppUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Kind = "imap"
	logger, _ := test.NewNullLogger()
	_, err := New(cfg, logger, Options{DBPath: ":memory:", Auth: auth.Static{}})
	assert.Error(t, err)
}

func TestAppGraphQLBackend(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := test.NewNullLogger()
	a, err := New(cfg, logger, Options{DBPath: ":memory:", Auth: auth.Static{UserID: "u1", AuthToken: "t"}})
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Gateway)
	assert.Equal(t, domain.FolderInbox, a.Session.Selection().Folder)
}
