// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

type mailbox struct {
	emails []domain.Email
	labels []domain.Label
	drafts []domain.Draft
}

// Gateway is a thread-safe in-memory backend. Each user has a separate
// mailbox. Errors can be injected per operation with Fail.
type Gateway struct {
	mu      sync.Mutex
	users   []domain.User
	current string
	boxes   map[string]*mailbox
	fail    map[string]error
	calls   map[string]int
	nextID  int
	now     func() time.Time
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates a Gateway whose users are users; the first one is current.
func New(users ...domain.User) *Gateway {
	g := &Gateway{
		boxes: make(map[string]*mailbox),
		fail:  make(map[string]error),
		calls: make(map[string]int),
		now:   time.Now,
	}
	for _, u := range users {
		g.users = append(g.users, u)
		g.boxes[u.ID] = &mailbox{emails: []domain.Email{}, labels: []domain.Label{}, drafts: []domain.Draft{}}
	}
	if len(users) > 0 {
		g.current = users[0].ID
	}
	return g
}

// AddEmail stores e in userID's mailbox.
func (g *Gateway) AddEmail(userID string, e domain.Email) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e.LabelIDs == nil {
		e.LabelIDs = []string{}
	}
	if e.To == nil {
		e.To = []domain.Address{}
	}
	if e.Attachments == nil {
		e.Attachments = []domain.Attachment{}
	}
	b := g.box(userID)
	b.emails = append(b.emails, e)
}

// AddLabel stores l in userID's mailbox.
func (g *Gateway) AddLabel(userID string, l domain.Label) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.box(userID)
	b.labels = append(b.labels, l)
}

// AddDraft stores d in userID's mailbox.
func (g *Gateway) AddDraft(userID string, d domain.Draft) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.box(userID)
	b.drafts = append(b.drafts, d)
}

// Fail makes every later call of op return err. A nil err clears it.
func (g *Gateway) Fail(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.fail, op)
		return
	}
	g.fail[op] = err
}

// Calls returns how often op was called.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Current returns the id of the current user.
func (g *Gateway) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

func (g *Gateway) box(userID string) *mailbox {
	b, ok := g.boxes[userID]
	if !ok {
		b = &mailbox{emails: []domain.Email{}, labels: []domain.Label{}, drafts: []domain.Draft{}}
		g.boxes[userID] = b
	}
	return b
}

// begin records a call and returns the current mailbox. It must be called
// with g.mu held.
func (g *Gateway) begin(op string) (*mailbox, error) {
	g.calls[op]++
	if err := g.fail[op]; err != nil {
		return nil, err
	}
	if g.current == "" {
		return nil, fmt.Errorf("%s: %w", op, gateway.ErrNotAuthorized)
	}
	return g.box(g.current), nil
}

func (g *Gateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s%d", prefix, g.nextID)
}

func notFound(op, what, id string) error {
	return &gateway.RemoteError{Op: op, StatusCode: 404, Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", what, id)}
}

func findEmail(b *mailbox, id string) *domain.Email {
	for i := range b.emails {
		if b.emails[i].ID == id {
			return &b.emails[i]
		}
	}
	return nil
}

func matches(e *domain.Email, q gateway.EmailQuery, now time.Time) bool {
	switch {
	case q.LabelID != "":
		if !e.HasLabel(q.LabelID) {
			return false
		}
	case q.Folder == domain.FolderStarred:
		if !e.IsStarred {
			return false
		}
	case q.Folder != "":
		if e.Folder != q.Folder {
			return false
		}
	}
	if !matchesFilter(e, q.Filter, now) {
		return false
	}
	if q.Query == "" {
		return true
	}
	needle := strings.ToLower(q.Query)
	for _, hay := range []string{e.Subject, e.Body, e.From.Name, e.From.Email} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

func matchesFilter(e *domain.Email, f gateway.SearchFilter, now time.Time) bool {
	if since := f.DateRange.Since(now); !since.IsZero() && e.Date.Before(since) {
		return false
	}
	if f.HasAttachments && len(e.Attachments) == 0 {
		return false
	}
	for _, id := range f.LabelIDs {
		if !e.HasLabel(id) {
			return false
		}
	}
	return true
}

func copyEmail(e domain.Email) domain.Email {
	e.To = append([]domain.Address{}, e.To...)
	e.LabelIDs = append([]string{}, e.LabelIDs...)
	e.Attachments = append([]domain.Attachment{}, e.Attachments...)
	return e
}

func (g *Gateway) FetchEmails(ctx context.Context, q gateway.EmailQuery) ([]domain.Email, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("FetchEmails")
	if err != nil {
		return nil, err
	}
	if q.Folder != "" && !q.Folder.Valid() {
		return nil, fmt.Errorf("%w: %q", gateway.ErrInvalidFolder, q.Folder)
	}
	if err := gateway.ValidateFilter(q.Filter); err != nil {
		return nil, err
	}
	now := g.now()
	out := []domain.Email{}
	for i := range b.emails {
		if matches(&b.emails[i], q, now) {
			out = append(out, copyEmail(b.emails[i]))
		}
	}
	return out, nil
}

func (g *Gateway) FetchEmailByID(ctx context.Context, id string) (*domain.Email, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("FetchEmailByID")
	if err != nil {
		return nil, err
	}
	e := findEmail(b, id)
	if e == nil {
		return nil, notFound("getEmailById", "email", id)
	}
	c := copyEmail(*e)
	return &c, nil
}

func (g *Gateway) FetchLabels(ctx context.Context) ([]domain.Label, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("FetchLabels")
	if err != nil {
		return nil, err
	}
	return append([]domain.Label{}, b.labels...), nil
}

// FetchLabelStats counts the emails carrying each label.
func (g *Gateway) FetchLabelStats(ctx context.Context) ([]domain.LabelStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("FetchLabelStats")
	if err != nil {
		return nil, err
	}
	out := make([]domain.LabelStats, 0, len(b.labels))
	for _, l := range b.labels {
		st := domain.LabelStats{LabelID: l.ID, Name: l.Name, Color: l.Color}
		for i := range b.emails {
			if !b.emails[i].HasLabel(l.ID) {
				continue
			}
			st.Total++
			if !b.emails[i].IsRead {
				st.Unread++
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (g *Gateway) FetchDrafts(ctx context.Context) ([]domain.Draft, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("FetchDrafts")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Draft, 0, len(b.drafts))
	for _, d := range b.drafts {
		d.Recipients = append([]string{}, d.Recipients...)
		out = append(out, d)
	}
	return out, nil
}

func (g *Gateway) FetchCurrentUser(ctx context.Context) (*domain.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.begin("FetchCurrentUser"); err != nil {
		return nil, err
	}
	for _, u := range g.users {
		if u.ID == g.current {
			return &u, nil
		}
	}
	return nil, notFound("getCurrentUser", "user", g.current)
}

func (g *Gateway) FetchAllUsers(ctx context.Context) ([]domain.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.begin("FetchAllUsers"); err != nil {
		return nil, err
	}
	return append([]domain.User{}, g.users...), nil
}

func (g *Gateway) CreateLabel(ctx context.Context, in gateway.LabelInput) (*domain.Label, error) {
	if err := gateway.ValidateLabel(in); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("CreateLabel")
	if err != nil {
		return nil, err
	}
	l := domain.Label{
		ID:                    g.id("L"),
		Name:                  in.Name,
		Color:                 in.Color,
		Type:                  domain.LabelTypeUser,
		LabelListVisibility:   domain.VisibilityShow,
		MessageListVisibility: "show",
	}
	b.labels = append(b.labels, l)
	return &l, nil
}

func (g *Gateway) DeleteLabel(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("DeleteLabel")
	if err != nil {
		return err
	}
	idx := -1
	for i := range b.labels {
		if b.labels[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return notFound("deleteLabel", "label", id)
	}
	b.labels = append(b.labels[:idx], b.labels[idx+1:]...)
	for i := range b.emails {
		b.emails[i].LabelIDs = without(b.emails[i].LabelIDs, id)
	}
	return nil
}

func (g *Gateway) SetStarred(ctx context.Context, id string, starred bool) error {
	return g.withEmail("SetStarred", id, func(e *domain.Email) error {
		e.IsStarred = starred
		return nil
	})
}

func (g *Gateway) MoveEmail(ctx context.Context, id string, folder domain.Folder) error {
	if !folder.Valid() {
		return fmt.Errorf("%w: %q", gateway.ErrInvalidFolder, folder)
	}
	return g.withEmail("MoveEmail", id, func(e *domain.Email) error {
		if folder == domain.FolderStarred {
			e.IsStarred = true
			return nil
		}
		e.Folder = folder
		return nil
	})
}

func (g *Gateway) ApplyLabel(ctx context.Context, emailID, labelID string) error {
	return g.withEmail("ApplyLabel", emailID, func(e *domain.Email) error {
		if !e.HasLabel(labelID) {
			e.LabelIDs = append(e.LabelIDs, labelID)
		}
		return nil
	})
}

func (g *Gateway) RemoveLabel(ctx context.Context, emailID, labelID string) error {
	return g.withEmail("RemoveLabel", emailID, func(e *domain.Email) error {
		e.LabelIDs = without(e.LabelIDs, labelID)
		return nil
	})
}

func (g *Gateway) withEmail(op, id string, fn func(e *domain.Email) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin(op)
	if err != nil {
		return err
	}
	e := findEmail(b, id)
	if e == nil {
		return notFound(op, "email", id)
	}
	return fn(e)
}

func without(ids []string, id string) []string {
	out := []string{}
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (g *Gateway) SaveDraft(ctx context.Context, in gateway.DraftInput) (*domain.Draft, error) {
	if err := gateway.ValidateDraft(in); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("SaveDraft")
	if err != nil {
		return nil, err
	}
	now := g.now()
	recipients := append([]string{}, in.Recipients...)
	if in.ID == "" {
		d := domain.Draft{ID: g.id("d"), Subject: in.Subject, Body: in.Body, Recipients: recipients, CreatedAt: now, UpdatedAt: now}
		b.drafts = append(b.drafts, d)
		return &d, nil
	}
	d := domain.FindDraft(b.drafts, in.ID)
	if d == nil {
		return nil, notFound("saveDraft", "draft", in.ID)
	}
	d.Subject, d.Body, d.Recipients, d.UpdatedAt = in.Subject, in.Body, recipients, now
	out := *d
	return &out, nil
}

func (g *Gateway) SendEmail(ctx context.Context, draftID string) (*domain.Email, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, err := g.begin("SendEmail")
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range b.drafts {
		if b.drafts[i].ID == draftID {
			idx = i
		}
	}
	if idx < 0 {
		return nil, notFound("sendEmail", "draft", draftID)
	}
	d := b.drafts[idx]
	b.drafts = append(b.drafts[:idx], b.drafts[idx+1:]...)

	var from domain.Address
	for _, u := range g.users {
		if u.ID == g.current {
			from = domain.Address{Name: u.Name, Email: u.Email}
		}
	}
	to := make([]domain.Address, 0, len(d.Recipients))
	for _, r := range d.Recipients {
		to = append(to, domain.Address{Email: r})
	}
	e := domain.Email{
		ID:          g.id("m"),
		Subject:     d.Subject,
		Body:        d.Body,
		From:        from,
		To:          to,
		Date:        g.now(),
		IsRead:      true,
		Folder:      domain.FolderSent,
		LabelIDs:    []string{},
		Attachments: []domain.Attachment{},
	}
	b.emails = append(b.emails, e)
	out := copyEmail(e)
	return &out, nil
}

func (g *Gateway) SwitchUser(ctx context.Context, userID string) (*domain.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["SwitchUser"]++
	if err := g.fail["SwitchUser"]; err != nil {
		return nil, err
	}
	for _, u := range g.users {
		if u.ID == userID {
			g.current = userID
			return &u, nil
		}
	}
	return nil, notFound("switchUser", "user", userID)
}
