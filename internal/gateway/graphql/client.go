// Package graphql implements the gateway over the mail backend's GraphQL
// endpoint.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/machinebox/graphql"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/lu-zhengda/mailsession/internal/gateway"
)

// maxErrorBody bounds how much of a failed response body ends up in an error.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	// TokenSource supplies the bearer token for each request. Nil sends
	// requests without an Authorization header.
	TokenSource oauth2.TokenSource
	Logger      *logrus.Entry
}

// Client is a gateway.Gateway backed by a GraphQL endpoint. It sends one
// POST per operation and never retries.
type Client struct {
	gql *graphql.Client
	log *logrus.Entry
}

var _ gateway.Gateway = (*Client)(nil)

// New creates a GraphQL client for the given endpoint.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var base http.RoundTripper = http.DefaultTransport
	if cfg.TokenSource != nil {
		base = &oauth2.Transport{Source: cfg.TokenSource, Base: http.DefaultTransport}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "gateway.graphql")

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &envelopeTransport{base: base},
	}
	gql := graphql.NewClient(strings.TrimRight(cfg.Endpoint, "/"), graphql.WithHTTPClient(httpClient))
	gql.Log = func(s string) { log.Trace(s) }

	return &Client{gql: gql, log: log}
}

// do runs a single operation and decodes the data member into result.
// Transport failures become *gateway.NetworkError; non-2xx statuses and
// GraphQL errors become *gateway.RemoteError.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, result any) error {
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	log := c.log.WithFields(logrus.Fields{"op": op, "request_id": reqID})
	start := time.Now()

	err := c.gql.Run(ctx, req, result)
	log = log.WithField("elapsed", time.Since(start))
	if err == nil {
		log.Debug("request done")
		return nil
	}
	log.WithError(err).Debug("request failed")
	return classify(op, err)
}

// classify maps an error from the GraphQL client onto the gateway taxonomy.
// Remote failures are detected by envelopeTransport and arrive wrapped in
// the http client's *url.Error; everything else that happened before a
// response is a network failure, and what remains is a body that could not
// be decoded.
func classify(op string, err error) error {
	var re *gateway.RemoteError
	if errors.As(err, &re) {
		re.Op = op
		return re
	}
	var te *transportError
	if errors.As(err, &te) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &gateway.NetworkError{Op: op, Err: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return &gateway.NetworkError{Op: op, Err: err}
	}
	return &gateway.RemoteError{Op: op, Message: fmt.Sprintf("malformed response: %v", err)}
}

// transportError marks a failure below HTTP: dial, TLS, reset or a body that
// could not be read.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

type envelope struct {
	Errors []graphqlError `json:"errors"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// envelopeTransport inspects every response before the GraphQL client sees
// it. Non-2xx statuses and payloads carrying an errors array are returned as
// *gateway.RemoteError with their status and error code intact.
type envelopeTransport struct {
	base http.RoundTripper
}

func (t *envelopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("reading response body: %w", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		re := &gateway.RemoteError{StatusCode: resp.StatusCode}
		if decodeErr == nil && len(env.Errors) > 0 {
			re.Code = env.Errors[0].Extensions.Code
			re.Message = joinMessages(env.Errors)
		} else {
			re.Message = truncate(strings.TrimSpace(string(body)))
			if re.Message == "" {
				re.Message = http.StatusText(resp.StatusCode)
			}
		}
		return nil, re
	}
	if decodeErr == nil && len(env.Errors) > 0 {
		return nil, &gateway.RemoteError{
			Code:    env.Errors[0].Extensions.Code,
			Message: joinMessages(env.Errors),
		}
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func joinMessages(errs []graphqlError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
