package graphql

import (
	"context"
	"fmt"
	"slices"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

func (c *Client) FetchEmails(ctx context.Context, q gateway.EmailQuery) ([]domain.Email, error) {
	if q.Enhanced() {
		return c.enhancedSearch(ctx, q)
	}
	vars := map[string]any{}
	switch {
	case q.LabelID != "":
		vars["labelId"] = q.LabelID
	case q.Folder != "":
		if !q.Folder.Valid() {
			return nil, fmt.Errorf("%w: %q", gateway.ErrInvalidFolder, q.Folder)
		}
		vars["folder"] = string(q.Folder)
	default:
		return nil, fmt.Errorf("%w: folder or label required", gateway.ErrInvalidInput)
	}
	if q.Query != "" {
		vars["query"] = q.Query
	}

	var data struct {
		Emails []wireEmail `json:"emails"`
	}
	if err := c.do(ctx, "GetEmails", queryEmails, vars, &data); err != nil {
		return nil, err
	}
	return mapEmails(data.Emails), nil
}

// enhancedSearch runs a filtered or semantic search. The view's folder or
// label becomes part of the filter.
func (c *Client) enhancedSearch(ctx context.Context, q gateway.EmailQuery) ([]domain.Email, error) {
	if err := gateway.ValidateFilter(q.Filter); err != nil {
		return nil, err
	}
	filters := map[string]any{}
	if q.Folder != "" {
		if !q.Folder.Valid() {
			return nil, fmt.Errorf("%w: %q", gateway.ErrInvalidFolder, q.Folder)
		}
		filters["folder"] = string(q.Folder)
	}
	labelIDs := q.Filter.LabelIDs
	if q.LabelID != "" && !slices.Contains(labelIDs, q.LabelID) {
		labelIDs = append([]string{q.LabelID}, labelIDs...)
	}
	if len(labelIDs) > 0 {
		filters["labelIds"] = labelIDs
	}
	if q.Filter.DateRange != gateway.DateAny {
		filters["dateRange"] = string(q.Filter.DateRange)
	}
	if q.Filter.HasAttachments {
		filters["hasAttachments"] = true
	}

	vars := map[string]any{"query": q.Query, "filters": filters, "useAI": q.UseAI}
	var data struct {
		Emails []wireEmail `json:"enhancedSearch"`
	}
	if err := c.do(ctx, "EnhancedSearch", queryEnhancedSearch, vars, &data); err != nil {
		return nil, err
	}
	return mapEmails(data.Emails), nil
}

func (c *Client) FetchEmailByID(ctx context.Context, id string) (*domain.Email, error) {
	var data struct {
		Email *wireEmail `json:"email"`
	}
	if err := c.do(ctx, "GetEmailById", queryEmailByID, map[string]any{"emailId": id}, &data); err != nil {
		return nil, err
	}
	if data.Email == nil {
		return nil, &gateway.RemoteError{Op: "GetEmailById", Code: "NOT_FOUND", Message: fmt.Sprintf("email %s not found", id)}
	}
	e := data.Email.toDomain()
	return &e, nil
}

func (c *Client) FetchLabels(ctx context.Context) ([]domain.Label, error) {
	var data struct {
		Labels []wireLabel `json:"labels"`
	}
	if err := c.do(ctx, "GetLabels", queryLabels, nil, &data); err != nil {
		return nil, err
	}
	return mapLabels(data.Labels), nil
}

func (c *Client) FetchDrafts(ctx context.Context) ([]domain.Draft, error) {
	var data struct {
		Drafts []wireDraft `json:"drafts"`
	}
	if err := c.do(ctx, "GetDrafts", queryDrafts, nil, &data); err != nil {
		return nil, err
	}
	return mapDrafts(data.Drafts), nil
}

func (c *Client) FetchCurrentUser(ctx context.Context) (*domain.User, error) {
	var data struct {
		CurrentUser *wireUser `json:"currentUser"`
	}
	if err := c.do(ctx, "GetCurrentUser", queryCurrentUser, nil, &data); err != nil {
		return nil, err
	}
	if data.CurrentUser == nil {
		return nil, &gateway.RemoteError{Op: "GetCurrentUser", Code: "UNAUTHENTICATED", Message: "no current user"}
	}
	u := data.CurrentUser.toDomain()
	return &u, nil
}

func (c *Client) FetchAllUsers(ctx context.Context) ([]domain.User, error) {
	var data struct {
		Users []wireUser `json:"users"`
	}
	if err := c.do(ctx, "GetAllUsers", queryAllUsers, nil, &data); err != nil {
		return nil, err
	}
	return mapUsers(data.Users), nil
}

// FetchLabelStats returns the totals of every label. Stats without a color
// or name take them from the label list returned alongside.
func (c *Client) FetchLabelStats(ctx context.Context) ([]domain.LabelStats, error) {
	var data struct {
		Result struct {
			Labels []wireLabel     `json:"labels"`
			Stats  []wireLabelStat `json:"stats"`
		} `json:"getEmailLabelStats"`
	}
	if err := c.do(ctx, "GetEmailLabelStats", queryLabelStats, nil, &data); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(data.Result.Labels))
	for _, l := range data.Result.Labels {
		names[string(l.ID)] = l.Name
	}
	out := make([]domain.LabelStats, 0, len(data.Result.Stats))
	for _, w := range data.Result.Stats {
		st := w.toDomain()
		if st.Name == "" {
			st.Name = names[st.LabelID]
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *Client) CreateLabel(ctx context.Context, in gateway.LabelInput) (*domain.Label, error) {
	if err := gateway.ValidateLabel(in); err != nil {
		return nil, err
	}
	input := map[string]any{"name": in.Name}
	if in.Color != "" {
		input["color"] = in.Color
	}
	var data struct {
		CreateLabel wireLabel `json:"createLabel"`
	}
	if err := c.do(ctx, "CreateLabel", mutationCreateLabel, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}
	l := data.CreateLabel.toDomain()
	return &l, nil
}

func (c *Client) DeleteLabel(ctx context.Context, id string) error {
	return c.do(ctx, "DeleteLabel", mutationDeleteLabel, map[string]any{"labelId": id}, nil)
}

func (c *Client) SetStarred(ctx context.Context, id string, starred bool) error {
	vars := map[string]any{"emailId": id, "isStarred": starred}
	return c.do(ctx, "UpdateEmailStarred", mutationSetStarred, vars, nil)
}

func (c *Client) MoveEmail(ctx context.Context, id string, folder domain.Folder) error {
	if !folder.Valid() {
		return fmt.Errorf("%w: %q", gateway.ErrInvalidFolder, folder)
	}
	vars := map[string]any{"emailId": id, "folder": string(folder)}
	return c.do(ctx, "MoveEmail", mutationMoveEmail, vars, nil)
}

func (c *Client) ApplyLabel(ctx context.Context, emailID, labelID string) error {
	vars := map[string]any{"emailId": emailID, "labelId": labelID}
	return c.do(ctx, "ApplyLabel", mutationApplyLabel, vars, nil)
}

func (c *Client) RemoveLabel(ctx context.Context, emailID, labelID string) error {
	vars := map[string]any{"emailId": emailID, "labelId": labelID}
	return c.do(ctx, "RemoveLabel", mutationRemoveLabel, vars, nil)
}

func (c *Client) SaveDraft(ctx context.Context, in gateway.DraftInput) (*domain.Draft, error) {
	if err := gateway.ValidateDraft(in); err != nil {
		return nil, err
	}
	recipients := in.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	input := map[string]any{
		"subject":    in.Subject,
		"body":       in.Body,
		"recipients": recipients,
	}
	if in.ID != "" {
		input["id"] = in.ID
	}
	var data struct {
		SaveDraft wireDraft `json:"saveDraft"`
	}
	if err := c.do(ctx, "SaveDraft", mutationSaveDraft, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}
	d := data.SaveDraft.toDomain()
	return &d, nil
}

func (c *Client) SendEmail(ctx context.Context, draftID string) (*domain.Email, error) {
	var data struct {
		SendEmail *wireEmail `json:"sendEmail"`
	}
	if err := c.do(ctx, "SendEmail", mutationSendEmail, map[string]any{"draftId": draftID}, &data); err != nil {
		return nil, err
	}
	if data.SendEmail == nil {
		return &domain.Email{Folder: domain.FolderSent}, nil
	}
	e := data.SendEmail.toDomain()
	return &e, nil
}

func (c *Client) SwitchUser(ctx context.Context, userID string) (*domain.User, error) {
	var data struct {
		SwitchUser wireUser `json:"switchUser"`
	}
	if err := c.do(ctx, "SwitchUser", mutationSwitchUser, map[string]any{"userId": userID}, &data); err != nil {
		return nil, err
	}
	u := data.SwitchUser.toDomain()
	return &u, nil
}
