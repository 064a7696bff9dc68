package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

// Assistant drafts email content. Failures never affect session state.
type Assistant interface {
	GenerateEmail(ctx context.Context, subject, brief, tone string) (string, error)
}

// ComposeRequest asks the assistant for the body of a new draft.
type ComposeRequest struct {
	Subject    string
	Context    string
	Tone       string
	Recipients []string
}

// Dispatcher runs session actions: it calls the gateway, then reconciles the
// store by refetching what the call may have changed. A failed gateway call
// leaves the store untouched. Actions never retry.
type Dispatcher struct {
	store     *Store
	gw        gateway.Gateway
	assistant Assistant
	log       *logrus.Entry
}

// NewDispatcher creates a dispatcher. assistant may be nil.
func NewDispatcher(store *Store, gw gateway.Gateway, assistant Assistant, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		store:     store,
		gw:        gw,
		assistant: assistant,
		log:       log.WithField("component", "session"),
	}
}

// Store returns the store the dispatcher reconciles.
func (d *Dispatcher) Store() *Store { return d.store }

// Load fetches the whole session: user, users, labels, drafts and the
// current view. Every collection that loads is committed even if another
// fails; the failures are joined.
func (d *Dispatcher) Load(ctx context.Context) error {
	epoch := d.store.currentEpoch()
	var errs []error
	if err := d.refetchCurrentUser(ctx, epoch); err != nil {
		errs = append(errs, err)
	}
	if err := d.refetchUsers(ctx, epoch); err != nil {
		errs = append(errs, err)
	}
	if err := d.refetchLabels(ctx, epoch); err != nil {
		errs = append(errs, err)
	}
	if err := d.refetchDrafts(ctx, epoch); err != nil {
		errs = append(errs, err)
	}
	if err := d.refetchList(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SelectFolder switches the view to folder f, clearing label, query and
// email selection.
func (d *Dispatcher) SelectFolder(ctx context.Context, f domain.Folder) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFolder, f)
	}
	return d.changeView(ctx, FolderView(f))
}

// SelectLabel switches the view to the emails carrying label id.
func (d *Dispatcher) SelectLabel(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("select label: %w", ErrEmptyID)
	}
	return d.changeView(ctx, LabelView(id))
}

// Search narrows the current folder or label view to a keyword query,
// dropping any filter. An empty query restores the unfiltered view.
func (d *Dispatcher) Search(ctx context.Context, query string) error {
	return d.SearchWith(ctx, SearchRequest{Query: query})
}

// SearchRequest is a filtered search inside the current folder or label.
type SearchRequest struct {
	Query  string
	Filter gateway.SearchFilter
	// UseAI asks the backend for semantic matching where it has it.
	UseAI bool
}

// SearchWith narrows the current view by query, filter and search mode.
// An invalid filter fails before anything is fetched.
func (d *Dispatcher) SearchWith(ctx context.Context, req SearchRequest) error {
	if err := gateway.ValidateFilter(req.Filter); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	v := d.store.Selection().View
	v.Query = strings.TrimSpace(req.Query)
	v.Filter = req.Filter
	v.Filter.LabelIDs = slices.Clone(req.Filter.LabelIDs)
	v.UseAI = req.UseAI
	return d.changeView(ctx, v)
}

// Refresh re-lists the current view.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	return d.refetchList(ctx)
}

// LoadLabelStats fetches the per-label totals and unread counts.
func (d *Dispatcher) LoadLabelStats(ctx context.Context) error {
	tok := d.store.beginLabelStats(d.store.currentEpoch())
	stats, err := d.gw.FetchLabelStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch label stats: %w", err)
	}
	d.store.commitLabelStats(tok, stats)
	return nil
}

func (d *Dispatcher) changeView(ctx context.Context, v View) error {
	tok := d.store.beginViewChange(v)
	emails, err := d.gw.FetchEmails(ctx, v.EmailQuery())
	if err != nil {
		return fmt.Errorf("failed to fetch emails for %s: %w", v, err)
	}
	d.store.commitViewChange(tok, emails)
	return nil
}

// SelectEmail opens the email with the given id. Only the latest selection
// is ever applied.
func (d *Dispatcher) SelectEmail(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("select email: %w", ErrEmptyID)
	}
	tok := d.store.beginSelectEmail(id)
	e, err := d.gw.FetchEmailByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch email %s: %w", id, err)
	}
	d.store.commitSelectEmail(tok, e)
	return nil
}

// CloseEmail returns to the list without an open email.
func (d *Dispatcher) CloseEmail() {
	d.store.clearEmail()
}

func (d *Dispatcher) CreateLabel(ctx context.Context, name, color string) (*domain.Label, error) {
	l, err := d.gw.CreateLabel(ctx, gateway.LabelInput{Name: strings.TrimSpace(name), Color: color})
	if err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", name, err)
	}
	d.store.addLabel(*l)
	if err := d.refetchLabels(ctx, d.store.currentEpoch()); err != nil {
		return l, err
	}
	return l, nil
}

// DeleteLabel deletes a label. When it was the viewed label the view falls
// back to inbox; if inbox cannot be fetched the view is still reset, with an
// empty list, and the fetch error is returned.
func (d *Dispatcher) DeleteLabel(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete label: %w", ErrEmptyID)
	}
	if err := d.gw.DeleteLabel(ctx, id); err != nil {
		return fmt.Errorf("failed to delete label %s: %w", id, err)
	}

	var errs []error
	if d.store.removeLabel(id) {
		if err := d.SelectFolder(ctx, domain.FolderInbox); err != nil {
			d.store.forceView(FolderView(domain.FolderInbox))
			errs = append(errs, err)
		}
	}
	if err := d.refetchLabels(ctx, d.store.currentEpoch()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StarEmail sets the starred flag, then refetches the list and, if open,
// the email.
func (d *Dispatcher) StarEmail(ctx context.Context, id string, starred bool) error {
	if id == "" {
		return fmt.Errorf("star email: %w", ErrEmptyID)
	}
	if err := d.gw.SetStarred(ctx, id, starred); err != nil {
		return fmt.Errorf("failed to star email %s: %w", id, err)
	}
	return errors.Join(d.refetchList(ctx), d.refetchDetail(ctx, id))
}

// MoveEmail moves an email to folder. It leaves the visible list at once
// unless the view is that folder, and an open copy is closed.
func (d *Dispatcher) MoveEmail(ctx context.Context, id string, folder domain.Folder) error {
	if id == "" {
		return fmt.Errorf("move email: %w", ErrEmptyID)
	}
	if !folder.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}
	if err := d.gw.MoveEmail(ctx, id, folder); err != nil {
		return fmt.Errorf("failed to move email %s to %s: %w", id, folder, err)
	}
	if d.store.Selection().Folder != folder {
		d.store.removeEmail(id)
	}
	if d.store.Selection().EmailID == id {
		d.store.clearEmail()
	}
	return d.refetchList(ctx)
}

func (d *Dispatcher) ApplyLabel(ctx context.Context, emailID, labelID string) error {
	if emailID == "" || labelID == "" {
		return fmt.Errorf("apply label: %w", ErrEmptyID)
	}
	if err := d.gw.ApplyLabel(ctx, emailID, labelID); err != nil {
		return fmt.Errorf("failed to apply label %s to %s: %w", labelID, emailID, err)
	}
	return d.reconcileLabeling(ctx, emailID, labelID)
}

func (d *Dispatcher) RemoveLabel(ctx context.Context, emailID, labelID string) error {
	if emailID == "" || labelID == "" {
		return fmt.Errorf("remove label: %w", ErrEmptyID)
	}
	if err := d.gw.RemoveLabel(ctx, emailID, labelID); err != nil {
		return fmt.Errorf("failed to remove label %s from %s: %w", labelID, emailID, err)
	}
	return d.reconcileLabeling(ctx, emailID, labelID)
}

func (d *Dispatcher) reconcileLabeling(ctx context.Context, emailID, labelID string) error {
	var errs []error
	if err := d.refetchDetail(ctx, emailID); err != nil {
		errs = append(errs, err)
	}
	if d.store.Selection().LabelID == labelID {
		if err := d.refetchList(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveDraft saves fields and makes the saved draft the active one.
func (d *Dispatcher) SaveDraft(ctx context.Context, fields DraftFields) (*domain.Draft, error) {
	return d.saveDraft(ctx, fields, false)
}

// StartCompose saves an empty draft and opens the composer on it.
func (d *Dispatcher) StartCompose(ctx context.Context) (*domain.Draft, error) {
	return d.saveDraft(ctx, DraftFields{Recipients: []string{}}, true)
}

// Reply opens the composer on a reply to the open email.
func (d *Dispatcher) Reply(ctx context.Context) (*domain.Draft, error) {
	e := d.store.SelectedEmail()
	if e == nil {
		return nil, fmt.Errorf("reply: %w", ErrNoEmailSelected)
	}
	return d.saveDraft(ctx, ReplyFields(e), true)
}

// Forward opens the composer on a forward of the open email.
func (d *Dispatcher) Forward(ctx context.Context) (*domain.Draft, error) {
	e := d.store.SelectedEmail()
	if e == nil {
		return nil, fmt.Errorf("forward: %w", ErrNoEmailSelected)
	}
	return d.saveDraft(ctx, ForwardFields(e), true)
}

// ComposeWithAssistant opens the composer on a draft whose body the
// assistant wrote. If the assistant fails the draft is saved with an empty
// body.
func (d *Dispatcher) ComposeWithAssistant(ctx context.Context, req ComposeRequest) (*domain.Draft, error) {
	body := ""
	if d.assistant != nil {
		generated, err := d.assistant.GenerateEmail(ctx, req.Subject, req.Context, req.Tone)
		if err != nil {
			d.log.WithError(err).Warn("assistant failed, saving draft without body")
		} else {
			body = generated
		}
	}
	recipients := req.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return d.saveDraft(ctx, DraftFields{Subject: req.Subject, Body: body, Recipients: recipients}, true)
}

func (d *Dispatcher) saveDraft(ctx context.Context, fields DraftFields, compose bool) (*domain.Draft, error) {
	id := fields.ID
	if id == "" && !compose {
		id = d.store.Selection().ActiveDraftID
	}
	saved, err := d.gw.SaveDraft(ctx, gateway.DraftInput{
		ID:         id,
		Subject:    fields.Subject,
		Body:       fields.Body,
		Recipients: fields.Recipients,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	d.store.saveDraft(*saved, compose)
	if err := d.refetchDrafts(ctx, d.store.currentEpoch()); err != nil {
		return saved, err
	}
	return saved, nil
}

// CloseComposer leaves the composer. The draft stays saved on the server
// but is no longer active.
func (d *Dispatcher) CloseComposer() {
	d.store.closeComposer()
}

// OpenDraft resumes composing a saved draft from the loaded draft list.
func (d *Dispatcher) OpenDraft(id string) error {
	if id == "" {
		return fmt.Errorf("open draft: %w", ErrEmptyID)
	}
	if !d.store.openDraft(id) {
		return fmt.Errorf("open draft %s: %w", id, ErrUnknownDraft)
	}
	return nil
}

// SendEmail sends the active draft.
func (d *Dispatcher) SendEmail(ctx context.Context) (*domain.Email, error) {
	draftID := d.store.Selection().ActiveDraftID
	if draftID == "" {
		return nil, fmt.Errorf("send email: %w", ErrNoActiveDraft)
	}
	sent, err := d.gw.SendEmail(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to send draft %s: %w", draftID, err)
	}
	d.store.draftSent(draftID)

	var errs []error
	if err := d.refetchDrafts(ctx, d.store.currentEpoch()); err != nil {
		errs = append(errs, err)
	}
	if d.store.Selection().Folder == domain.FolderSent {
		if err := d.refetchList(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return sent, errors.Join(errs...)
}

// SwitchUser makes userID the current user and reloads the session for it.
func (d *Dispatcher) SwitchUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("switch user: %w", ErrEmptyID)
	}
	user, err := d.gw.SwitchUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to switch to user %s: %w", userID, err)
	}
	return d.reload(ctx, user)
}

// HandleIdentityChange reloads the session after the auth provider switched
// identity outside the dispatcher. The current user is a no-op.
func (d *Dispatcher) HandleIdentityChange(ctx context.Context, userID string) error {
	if cur := d.store.Snapshot().CurrentUser; cur != nil && cur.ID == userID {
		return nil
	}
	d.log.WithField("user_id", userID).Info("identity changed, reloading session")
	return d.reload(ctx, nil)
}

func (d *Dispatcher) reload(ctx context.Context, user *domain.User) error {
	epoch, _ := d.store.beginEpoch(user)
	var errs []error
	if err := d.refetchCurrentUser(ctx, epoch); err != nil {
		errs = append(errs, err)
	}
	if err := d.refetchUsers(ctx, epoch); err != nil {
		errs = append(errs, err)
	}
	if err := d.refetchList(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.refetchLabels(ctx, epoch); err != nil {
		errs = append(errs, err)
	}
	if err := d.refetchDrafts(ctx, epoch); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) refetchList(ctx context.Context) error {
	tok := d.store.beginRefetch()
	emails, err := d.gw.FetchEmails(ctx, tok.view.EmailQuery())
	if err != nil {
		return fmt.Errorf("failed to refresh emails for %s: %w", tok.view, err)
	}
	d.store.commitRefetch(tok, emails)
	return nil
}

// refetchDetail reloads emailID if it is the open email.
func (d *Dispatcher) refetchDetail(ctx context.Context, emailID string) error {
	tok, ok := d.store.beginDetailRefetch(emailID)
	if !ok {
		return nil
	}
	e, err := d.gw.FetchEmailByID(ctx, emailID)
	if err != nil {
		return fmt.Errorf("failed to refresh email %s: %w", emailID, err)
	}
	d.store.commitDetailRefetch(tok, e)
	return nil
}

func (d *Dispatcher) refetchLabels(ctx context.Context, epoch uint64) error {
	tok := d.store.beginLabels(epoch)
	labels, err := d.gw.FetchLabels(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh labels: %w", err)
	}
	d.store.commitLabels(tok, labels)
	return nil
}

func (d *Dispatcher) refetchDrafts(ctx context.Context, epoch uint64) error {
	tok := d.store.beginDrafts(epoch)
	drafts, err := d.gw.FetchDrafts(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh drafts: %w", err)
	}
	d.store.commitDrafts(tok, drafts)
	return nil
}

func (d *Dispatcher) refetchUsers(ctx context.Context, epoch uint64) error {
	tok := d.store.beginUsers(epoch)
	users, err := d.gw.FetchAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh users: %w", err)
	}
	d.store.commitUsers(tok, users)
	return nil
}

func (d *Dispatcher) refetchCurrentUser(ctx context.Context, epoch uint64) error {
	tok := d.store.beginCurrentUser(epoch)
	u, err := d.gw.FetchCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh current user: %w", err)
	}
	d.store.commitCurrentUser(tok, u)
	return nil
}
