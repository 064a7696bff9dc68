// Package gmail implements the gateway over the Gmail REST API. Users are
// the locally registered accounts; switching user swaps the active account
// and its OAuth token.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

const me = "me"

// TokenStore loads and saves per-user OAuth tokens.
type TokenStore interface {
	LoadToken(userID string) (*oauth2.Token, error)
	SaveToken(userID string, token *oauth2.Token) error
}

// Directory lists the locally registered users.
type Directory interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Config configures a Gateway.
type Config struct {
	UserID   string
	PageSize int
	Tokens   TokenStore
	Users    Directory
	Logger   *logrus.Entry
	// ClientOptions replace the token-based client options when set.
	ClientOptions []option.ClientOption
}

// Gateway is a gateway.Gateway backed by the Gmail API.
type Gateway struct {
	cfg Config
	log *logrus.Entry

	mu      sync.Mutex
	userID  string
	from    string
	service *gmailapi.Service
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates a Gmail gateway acting as cfg.UserID.
func New(cfg Config) *Gateway {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Gateway{
		cfg:    cfg,
		log:    log.WithField("component", "gateway.gmail"),
		userID: cfg.UserID,
	}
}

// ensureService lazily creates the Gmail service for the active user.
func (g *Gateway) ensureService(ctx context.Context) (*gmailapi.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.service != nil {
		return g.service, nil
	}

	opts := g.cfg.ClientOptions
	if len(opts) == 0 {
		if g.userID == "" {
			return nil, fmt.Errorf("%w: no active gmail user", gateway.ErrNotAuthorized)
		}
		token, err := g.cfg.Tokens.LoadToken(g.userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrNotAuthorized, err)
		}
		opts = []option.ClientOption{option.WithTokenSource(oauthConfig.TokenSource(ctx, token))}
	}
	srv, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	g.service = srv
	return srv, nil
}

func (g *Gateway) FetchEmails(ctx context.Context, q gateway.EmailQuery) ([]domain.Email, error) {
	const op = "fetchEmails"
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}

	call := srv.Users.Messages.List(me).MaxResults(int64(g.cfg.PageSize))
	query := q.Query
	var labelIDs []string
	switch {
	case q.LabelID != "":
		labelIDs = append(labelIDs, q.LabelID)
	case q.Folder != "":
		label, search, err := folderFilter(q.Folder)
		if err != nil {
			return nil, err
		}
		if label != "" {
			labelIDs = append(labelIDs, label)
		}
		if search != "" {
			query = joinQuery(search, query)
		}
		if q.Folder == domain.FolderSpam || q.Folder == domain.FolderTrash {
			call = call.IncludeSpamTrash(true)
		}
	default:
		return nil, fmt.Errorf("%w: folder or label required", gateway.ErrInvalidInput)
	}
	if err := gateway.ValidateFilter(q.Filter); err != nil {
		return nil, err
	}
	labelIDs = append(labelIDs, q.Filter.LabelIDs...)
	if len(labelIDs) > 0 {
		call = call.LabelIds(labelIDs...)
	}
	if q.UseAI {
		g.log.WithField("query", q.Query).Debug("semantic search unavailable, using keyword search")
	}
	query = joinQuery(query, filterQuery(q.Filter, time.Now()))
	if query != "" {
		call = call.Q(query)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}

	emails := make([]domain.Email, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msg, err := srv.Users.Messages.Get(me, m.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, classify(op, err)
		}
		e := mapMessage(msg)
		if q.Folder == domain.FolderSnoozed {
			e.Folder = domain.FolderSnoozed
		}
		emails = append(emails, *e)
	}
	g.log.WithFields(logrus.Fields{"folder": q.Folder, "label": q.LabelID, "count": len(emails)}).Debug("fetched emails")
	return emails, nil
}

func (g *Gateway) FetchEmailByID(ctx context.Context, id string) (*domain.Email, error) {
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := srv.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, classify("fetchEmailById", err)
	}
	return mapMessage(msg), nil
}

func (g *Gateway) FetchLabels(ctx context.Context) ([]domain.Label, error) {
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Users.Labels.List(me).Context(ctx).Do()
	if err != nil {
		return nil, classify("fetchLabels", err)
	}
	labels := make([]domain.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, mapLabel(l))
	}
	return labels, nil
}

// FetchLabelStats returns message totals per label. The label list carries
// no counts, so every label is fetched on its own.
func (g *Gateway) FetchLabelStats(ctx context.Context) ([]domain.LabelStats, error) {
	const op = "fetchLabelStats"
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Users.Labels.List(me).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}
	stats := make([]domain.LabelStats, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		full, err := srv.Users.Labels.Get(me, l.Id).Context(ctx).Do()
		if err != nil {
			return nil, classify(op, err)
		}
		stats = append(stats, mapLabelStats(full))
	}
	return stats, nil
}

func (g *Gateway) FetchDrafts(ctx context.Context) ([]domain.Draft, error) {
	const op = "fetchDrafts"
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Users.Drafts.List(me).MaxResults(int64(g.cfg.PageSize)).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}
	drafts := make([]domain.Draft, 0, len(resp.Drafts))
	for _, d := range resp.Drafts {
		full, err := srv.Users.Drafts.Get(me, d.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, classify(op, err)
		}
		drafts = append(drafts, mapDraft(full))
	}
	return drafts, nil
}

func (g *Gateway) FetchCurrentUser(ctx context.Context) (*domain.User, error) {
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := srv.Users.GetProfile(me).Context(ctx).Do()
	if err != nil {
		return nil, classify("fetchCurrentUser", err)
	}

	g.mu.Lock()
	g.from = profile.EmailAddress
	userID := g.userID
	g.mu.Unlock()

	user := &domain.User{ID: userID, Email: profile.EmailAddress, Provider: "gmail"}
	if g.cfg.Users != nil && userID != "" {
		if u, err := g.cfg.Users.GetUser(ctx, userID); err == nil {
			user.Name = u.Name
			user.AvatarURL = u.AvatarURL
			user.CreatedAt = u.CreatedAt
		}
	}
	if user.ID == "" {
		user.ID = profile.EmailAddress
	}
	return user, nil
}

func (g *Gateway) FetchAllUsers(ctx context.Context) ([]domain.User, error) {
	if g.cfg.Users == nil {
		u, err := g.FetchCurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		return []domain.User{*u}, nil
	}
	users, err := g.cfg.Users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (g *Gateway) CreateLabel(ctx context.Context, in gateway.LabelInput) (*domain.Label, error) {
	if err := gateway.ValidateLabel(in); err != nil {
		return nil, err
	}
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	req := &gmailapi.Label{
		Name:                  in.Name,
		LabelListVisibility:   domain.VisibilityShow,
		MessageListVisibility: "show",
	}
	if in.Color != "" {
		req.Color = &gmailapi.LabelColor{BackgroundColor: in.Color, TextColor: "#ffffff"}
	}
	created, err := srv.Users.Labels.Create(me, req).Context(ctx).Do()
	if err != nil {
		return nil, classify("createLabel", err)
	}
	l := mapLabel(created)
	return &l, nil
}

func (g *Gateway) DeleteLabel(ctx context.Context, id string) error {
	srv, err := g.ensureService(ctx)
	if err != nil {
		return err
	}
	if err := srv.Users.Labels.Delete(me, id).Context(ctx).Do(); err != nil {
		return classify("deleteLabel", err)
	}
	return nil
}

func (g *Gateway) SetStarred(ctx context.Context, id string, starred bool) error {
	if starred {
		return g.modify(ctx, "setStarred", id, []string{labelStarred}, nil)
	}
	return g.modify(ctx, "setStarred", id, nil, []string{labelStarred})
}

// MoveEmail moves a message between mailbox folders. Trash uses the trash
// endpoint; the other folders are expressed as system label changes. Sent,
// drafts and snoozed are not valid move targets.
func (g *Gateway) MoveEmail(ctx context.Context, id string, folder domain.Folder) error {
	const op = "moveEmail"
	switch folder {
	case domain.FolderTrash:
		srv, err := g.ensureService(ctx)
		if err != nil {
			return err
		}
		if _, err := srv.Users.Messages.Trash(me, id).Context(ctx).Do(); err != nil {
			return classify(op, err)
		}
		return nil
	case domain.FolderInbox:
		return g.modify(ctx, op, id, []string{labelInbox}, []string{labelSpam, labelTrash})
	case domain.FolderSpam:
		return g.modify(ctx, op, id, []string{labelSpam}, []string{labelInbox})
	case domain.FolderStarred:
		return g.modify(ctx, op, id, []string{labelStarred}, nil)
	}
	return fmt.Errorf("%w: cannot move into %q", gateway.ErrInvalidFolder, folder)
}

func (g *Gateway) ApplyLabel(ctx context.Context, emailID, labelID string) error {
	return g.modify(ctx, "applyLabel", emailID, []string{labelID}, nil)
}

func (g *Gateway) RemoveLabel(ctx context.Context, emailID, labelID string) error {
	return g.modify(ctx, "removeLabel", emailID, nil, []string{labelID})
}

func (g *Gateway) modify(ctx context.Context, op, msgID string, add, remove []string) error {
	srv, err := g.ensureService(ctx)
	if err != nil {
		return err
	}
	req := &gmailapi.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	if _, err := srv.Users.Messages.Modify(me, msgID, req).Context(ctx).Do(); err != nil {
		return classify(op, err)
	}
	return nil
}

func (g *Gateway) SaveDraft(ctx context.Context, in gateway.DraftInput) (*domain.Draft, error) {
	const op = "saveDraft"
	if err := gateway.ValidateDraft(in); err != nil {
		return nil, err
	}
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	from := g.from
	g.mu.Unlock()

	raw, err := composeMessage(from, in, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to compose draft: %w", err)
	}
	draft := &gmailapi.Draft{
		Message: &gmailapi.Message{Raw: base64.URLEncoding.EncodeToString(raw)},
	}

	var saved *gmailapi.Draft
	if in.ID == "" {
		saved, err = srv.Users.Drafts.Create(me, draft).Context(ctx).Do()
	} else {
		draft.Id = in.ID
		saved, err = srv.Users.Drafts.Update(me, in.ID, draft).Context(ctx).Do()
	}
	if err != nil {
		return nil, classify(op, err)
	}

	now := time.Now()
	recipients := make([]string, 0, len(in.Recipients))
	recipients = append(recipients, in.Recipients...)
	return &domain.Draft{
		ID:         saved.Id,
		Subject:    in.Subject,
		Body:       in.Body,
		Recipients: recipients,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (g *Gateway) SendEmail(ctx context.Context, draftID string) (*domain.Email, error) {
	const op = "sendEmail"
	srv, err := g.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := srv.Users.Drafts.Send(me, &gmailapi.Draft{Id: draftID}).Context(ctx).Do()
	if err != nil {
		return nil, classify(op, err)
	}

	msg, err := srv.Users.Messages.Get(me, sent.Id).Format("full").Context(ctx).Do()
	if err != nil {
		g.log.WithError(err).WithField("message_id", sent.Id).Warn("sent message not readable yet")
		return &domain.Email{
			ID:          sent.Id,
			Folder:      domain.FolderSent,
			To:          []domain.Address{},
			LabelIDs:    sent.LabelIds,
			Attachments: []domain.Attachment{},
		}, nil
	}
	return mapMessage(msg), nil
}

// SwitchUser makes userID the active account. The Gmail service is rebuilt
// with that user's token on the next call.
func (g *Gateway) SwitchUser(ctx context.Context, userID string) (*domain.User, error) {
	const op = "switchUser"
	if g.cfg.Users == nil {
		return nil, &gateway.RemoteError{Op: op, Code: "UNSUPPORTED", Message: "no user directory configured"}
	}
	user, err := g.cfg.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, &gateway.RemoteError{Op: op, Code: "NOT_FOUND", Message: fmt.Sprintf("user %s is not registered", userID)}
	}
	if g.cfg.Tokens != nil && len(g.cfg.ClientOptions) == 0 {
		if _, err := g.cfg.Tokens.LoadToken(userID); err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrNotAuthorized, err)
		}
	}

	g.mu.Lock()
	g.userID = userID
	g.from = user.Email
	g.service = nil
	g.mu.Unlock()

	g.log.WithField("user_id", userID).Info("switched gmail account")
	return user, nil
}
