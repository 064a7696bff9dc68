package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

type recordedCall struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type fakeGmail struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeGmail) record(r *http.Request) recordedCall {
	c := recordedCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&c.Body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return c
}

func (f *fakeGmail) last() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestGateway(t *testing.T, handler func(w http.ResponseWriter, c recordedCall)) (*Gateway, *fakeGmail) {
	t.Helper()
	fake := &fakeGmail{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, fake.record(r))
	}))
	t.Cleanup(srv.Close)

	g := New(Config{
		UserID:   "acct-1",
		PageSize: 10,
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	})
	return g, fake
}

func TestFetchEmails_Folder(t *testing.T) {
	g, fake := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {
		switch {
		case strings.HasSuffix(c.Path, "/messages"):
			w.Write([]byte(`{"messages":[{"id":"m1"}]}`))
		case strings.HasSuffix(c.Path, "/messages/m1"):
			w.Write([]byte(`{"id":"m1","labelIds":["INBOX","UNREAD"],"payload":{"mimeType":"text/plain",
				"headers":[{"name":"Subject","value":"Hi"}],"body":{"data":"aGk"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	emails, err := g.FetchEmails(context.Background(), gateway.EmailQuery{Folder: domain.FolderInbox, Query: "from:bob"})
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}
	if len(emails) != 1 || emails[0].Subject != "Hi" || emails[0].Body != "hi" {
		t.Fatalf("emails = %+v", emails)
	}
	if !emails[0].IsUnreadInbox() {
		t.Error("expected unread inbox email")
	}

	list := fake.calls[0]
	if !strings.Contains(list.Query, "labelIds=INBOX") || !strings.Contains(list.Query, "q=from%3Abob") {
		t.Errorf("list query = %q", list.Query)
	}
}

func TestFetchEmails_Snoozed(t *testing.T) {
	g, fake := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {
		w.Write([]byte(`{"messages":[]}`))
	})

	emails, err := g.FetchEmails(context.Background(), gateway.EmailQuery{Folder: domain.FolderSnoozed})
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}
	if len(emails) != 0 {
		t.Errorf("emails = %v", emails)
	}
	if q := fake.last().Query; !strings.Contains(q, "q=in%3Asnoozed") || strings.Contains(q, "labelIds") {
		t.Errorf("list query = %q", q)
	}
}

func TestMoveEmail(t *testing.T) {
	tests := []struct {
		name       string
		folder     domain.Folder
		wantPath   string
		wantAdd    []string
		wantRemove []string
	}{
		{"trash", domain.FolderTrash, "/gmail/v1/users/me/messages/m1/trash", nil, nil},
		{"inbox", domain.FolderInbox, "/gmail/v1/users/me/messages/m1/modify", []string{"INBOX"}, []string{"SPAM", "TRASH"}},
		{"spam", domain.FolderSpam, "/gmail/v1/users/me/messages/m1/modify", []string{"SPAM"}, []string{"INBOX"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, fake := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {
				w.Write([]byte(`{"id":"m1"}`))
			})
			if err := g.MoveEmail(context.Background(), "m1", tt.folder); err != nil {
				t.Fatalf("MoveEmail: %v", err)
			}
			got := fake.last()
			if got.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", got.Path, tt.wantPath)
			}
			if tt.wantAdd != nil && !sameStrings(got.Body["addLabelIds"], tt.wantAdd) {
				t.Errorf("addLabelIds = %v, want %v", got.Body["addLabelIds"], tt.wantAdd)
			}
			if tt.wantRemove != nil && !sameStrings(got.Body["removeLabelIds"], tt.wantRemove) {
				t.Errorf("removeLabelIds = %v, want %v", got.Body["removeLabelIds"], tt.wantRemove)
			}
		})
	}
}

func TestMoveEmail_InvalidTarget(t *testing.T) {
	g, fake := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {})
	for _, f := range []domain.Folder{domain.FolderSent, domain.FolderDrafts, domain.FolderSnoozed} {
		if err := g.MoveEmail(context.Background(), "m1", f); !errors.Is(err, gateway.ErrInvalidFolder) {
			t.Errorf("MoveEmail(%s) = %v, want ErrInvalidFolder", f, err)
		}
	}
	if len(fake.calls) != 0 {
		t.Errorf("expected no requests, got %d", len(fake.calls))
	}
}

func TestDeleteLabel_NotFound(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Not Found","errors":[{"reason":"notFound","message":"Not Found"}]}}`))
	})

	err := g.DeleteLabel(context.Background(), "Label_9")
	var re *gateway.RemoteError
	if !errors.As(err, &re) || re.StatusCode != 404 {
		t.Fatalf("DeleteLabel err = %v, want 404 RemoteError", err)
	}
}

func TestSaveDraft_CreateThenUpdate(t *testing.T) {
	g, fake := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {
		w.Write([]byte(`{"id":"r1","message":{"id":"m5"}}`))
	})
	ctx := context.Background()

	d, err := g.SaveDraft(ctx, gateway.DraftInput{Subject: "Hi", Recipients: []string{"a@example.com"}})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if d.ID != "r1" || d.Subject != "Hi" {
		t.Errorf("draft = %+v", d)
	}
	if got := fake.last(); got.Method != http.MethodPost || !strings.HasSuffix(got.Path, "/drafts") {
		t.Errorf("create call = %s %s", got.Method, got.Path)
	}

	if _, err := g.SaveDraft(ctx, gateway.DraftInput{ID: "r1", Subject: "Hi again"}); err != nil {
		t.Fatalf("SaveDraft update: %v", err)
	}
	if got := fake.last(); got.Method != http.MethodPut || !strings.HasSuffix(got.Path, "/drafts/r1") {
		t.Errorf("update call = %s %s", got.Method, got.Path)
	}
}

type memDirectory struct {
	users []domain.User
}

func (m memDirectory) ListUsers(ctx context.Context) ([]domain.User, error) { return m.users, nil }

func (m memDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			return &m.users[i], nil
		}
	}
	return nil, errors.New("not found")
}

func TestSwitchUser(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {})
	g.cfg.Users = memDirectory{users: []domain.User{
		{ID: "acct-1", Email: "one@example.com"},
		{ID: "acct-2", Email: "two@example.com"},
	}}

	u, err := g.SwitchUser(context.Background(), "acct-2")
	if err != nil {
		t.Fatalf("SwitchUser: %v", err)
	}
	if u.Email != "two@example.com" || g.userID != "acct-2" || g.service != nil {
		t.Errorf("after switch: user=%+v userID=%q", u, g.userID)
	}

	if _, err := g.SwitchUser(context.Background(), "ghost"); !gateway.IsRemoteError(err) {
		t.Errorf("SwitchUser(ghost) = %v, want RemoteError", err)
	}
}

func sameStrings(v any, want []string) bool {
	got, ok := v.([]any)
	if !ok || len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestFetchEmails_Filter(t *testing.T) {
	g, fake := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {
		w.Write([]byte(`{"messages":[]}`))
	})

	_, err := g.FetchEmails(context.Background(), gateway.EmailQuery{
		Folder: domain.FolderInbox,
		Filter: gateway.SearchFilter{HasAttachments: true, LabelIDs: []string{"Label_7"}},
		UseAI:  true,
	})
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}
	q := fake.last().Query
	if !strings.Contains(q, "labelIds=INBOX") || !strings.Contains(q, "labelIds=Label_7") {
		t.Errorf("list query = %q, want both label ids", q)
	}
	if !strings.Contains(q, "has%3Aattachment") {
		t.Errorf("list query = %q, want has:attachment", q)
	}
}

func TestFetchEmails_InvalidFilter(t *testing.T) {
	g, fake := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {})
	_, err := g.FetchEmails(context.Background(), gateway.EmailQuery{
		Folder: domain.FolderInbox,
		Filter: gateway.SearchFilter{DateRange: "fortnight"},
	})
	if !errors.Is(err, gateway.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("expected no requests, got %d", len(fake.calls))
	}
}

func TestFetchLabelStats(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, c recordedCall) {
		switch {
		case strings.HasSuffix(c.Path, "/labels"):
			w.Write([]byte(`{"labels":[{"id":"INBOX","name":"INBOX","type":"system"},{"id":"Label_1","name":"Work","type":"user"}]}`))
		case strings.HasSuffix(c.Path, "/labels/INBOX"):
			w.Write([]byte(`{"id":"INBOX","name":"INBOX","type":"system","messagesTotal":12,"messagesUnread":3}`))
		case strings.HasSuffix(c.Path, "/labels/Label_1"):
			w.Write([]byte(`{"id":"Label_1","name":"Work","type":"user","messagesTotal":4,"messagesUnread":0,
				"color":{"backgroundColor":"#16a766"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	stats, err := g.FetchLabelStats(context.Background())
	if err != nil {
		t.Fatalf("FetchLabelStats: %v", err)
	}
	want := []domain.LabelStats{
		{LabelID: "INBOX", Name: "INBOX", Total: 12, Unread: 3},
		{LabelID: "Label_1", Name: "Work", Color: "#16a766", Total: 4},
	}
	if len(stats) != len(want) {
		t.Fatalf("stats = %+v", stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("stats[%d] = %+v, want %+v", i, stats[i], want[i])
		}
	}
}
