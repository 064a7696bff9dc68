package gmail

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// No credentials are embedded in the binary. Users supply their own Google
// Cloud OAuth client through the [gmail] config section or the
// GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET environment variables.

var oauthConfig = &oauth2.Config{
	Scopes: []string{
		gmailapi.GmailReadonlyScope,
		gmailapi.GmailSendScope,
		gmailapi.GmailModifyScope,
		gmailapi.GmailComposeScope,
		gmailapi.GmailLabelsScope,
	},
	Endpoint: google.Endpoint,
}

// SetCredentials sets the OAuth client ID and secret.
func SetCredentials(clientID, clientSecret string) {
	oauthConfig.ClientID = clientID
	oauthConfig.ClientSecret = clientSecret
}

// HasCredentials reports whether OAuth credentials have been configured.
func HasCredentials() bool {
	return oauthConfig.ClientID != "" && oauthConfig.ClientSecret != ""
}

// EnsureCredentials returns an error with setup instructions when no OAuth
// client is configured.
func EnsureCredentials() error {
	if HasCredentials() {
		return nil
	}
	return fmt.Errorf("gmail OAuth credentials not configured; set them in ~/.config/mailsession/config.toml under [gmail] or via GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET")
}

// Authorize runs the loopback OAuth flow and returns the token together with
// the address of the account that granted it.
func Authorize(ctx context.Context, out io.Writer) (*oauth2.Token, string, error) {
	if err := EnsureCredentials(); err != nil {
		return nil, "", err
	}
	token, err := authenticate(ctx, out)
	if err != nil {
		return nil, "", fmt.Errorf("failed to authenticate gmail: %w", err)
	}

	srv, err := gmailapi.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create gmail service: %w", err)
	}
	profile, err := srv.Users.GetProfile(me).Context(ctx).Do()
	if err != nil {
		return nil, "", classify("getProfile", err)
	}
	return token, profile.EmailAddress, nil
}

func authenticate(ctx context.Context, out io.Writer) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	cfg := *oauthConfig
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			errCh <- fmt.Errorf("no code in callback: %s", q.Get("error"))
			fmt.Fprint(w, "Authentication failed. You can close this tab.")
			return
		}
		codeCh <- code
		fmt.Fprint(w, "Authentication successful! You can close this tab.")
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Shutdown(context.WithoutCancel(ctx))

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "\nOpen this URL in your browser to authorize mailsession:\n\n  %s\n\nWaiting for authorization...\n", url)

	select {
	case code := <-codeCh:
		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
