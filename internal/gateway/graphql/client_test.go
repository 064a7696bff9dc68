package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

// newTestClient starts a server answering every request with handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Endpoint: srv.URL, Timeout: 2 * time.Second})
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func decodeRequest(t *testing.T, r *http.Request) request {
	t.Helper()
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return req
}

func TestFetchEmails_NormalizesWireShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		if !strings.Contains(req.Query, "query GetEmails") {
			t.Errorf("query = %q, want the GetEmails operation", req.Query)
		}
		if req.Variables["folder"] != "inbox" {
			t.Errorf("folder variable = %v, want inbox", req.Variables["folder"])
		}
		if _, ok := req.Variables["labelId"]; ok {
			t.Error("labelId must not be sent for a folder view")
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("missing X-Request-Id header")
		}
		w.Write([]byte(`{"data":{"emails":[
			{"id":42,"subject":"Hello","sender":{"name":"Alice","email":"alice@example.com"},
			 "recipients":["bob@example.com"],"body":"hi","date":"1700000000000",
			 "isRead":false,"isStarred":true,"folder":"INBOX",
			 "labels":[{"id":7,"name":"Work"}]},
			{"id":"43","subject":null,"sender":null,"recipients":null,"date":"2024-01-02T03:04:05Z",
			 "folder":"inbox","labelIds":null,"attachments":null}
		]}}`))
	})

	emails, err := c.FetchEmails(context.Background(), gateway.EmailQuery{Folder: domain.FolderInbox})
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("got %d emails, want 2", len(emails))
	}

	first := emails[0]
	if first.ID != "42" {
		t.Errorf("ID = %q, want 42", first.ID)
	}
	if first.Folder != domain.FolderInbox {
		t.Errorf("Folder = %q, want inbox", first.Folder)
	}
	if first.From.Email != "alice@example.com" || first.From.Name != "Alice" {
		t.Errorf("From = %+v", first.From)
	}
	if len(first.LabelIDs) != 1 || first.LabelIDs[0] != "7" {
		t.Errorf("LabelIDs = %v, want [7]", first.LabelIDs)
	}
	if !first.IsStarred || first.IsRead {
		t.Errorf("flags = read:%v starred:%v", first.IsRead, first.IsStarred)
	}
	if first.Date.UnixMilli() != 1700000000000 {
		t.Errorf("Date = %v", first.Date)
	}

	second := emails[1]
	if second.LabelIDs == nil || second.To == nil || second.Attachments == nil {
		t.Error("missing collections should be normalized to empty slices")
	}
	if second.Date.Year() != 2024 {
		t.Errorf("Date = %v, want 2024", second.Date)
	}
}

func TestFetchEmails_LabelAndQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		if req.Variables["labelId"] != "L1" {
			t.Errorf("labelId = %v, want L1", req.Variables["labelId"])
		}
		if req.Variables["query"] != "invoice" {
			t.Errorf("query = %v, want invoice", req.Variables["query"])
		}
		if _, ok := req.Variables["folder"]; ok {
			t.Error("folder must not be sent for a label view")
		}
		w.Write([]byte(`{"data":{"emails":[]}}`))
	})

	emails, err := c.FetchEmails(context.Background(), gateway.EmailQuery{LabelID: "L1", Query: "invoice"})
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}
	if emails == nil || len(emails) != 0 {
		t.Errorf("emails = %v, want empty non-nil slice", emails)
	}
}

func TestFetchEmails_InvalidFolderSendsNothing(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.FetchEmails(context.Background(), gateway.EmailQuery{Folder: "archive"})
	if !errors.Is(err, gateway.ErrInvalidFolder) {
		t.Fatalf("err = %v, want ErrInvalidFolder", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times, want 0", calls.Load())
	}
}

func TestDo_StatusErrorIsRemote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream down"))
	})

	_, err := c.FetchLabels(context.Background())
	var re *gateway.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if re.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", re.StatusCode)
	}
	if re.Message != "upstream down" {
		t.Errorf("Message = %q", re.Message)
	}
	if !gateway.IsRetryable(err) {
		t.Error("503 should be retryable")
	}
}

func TestDo_GraphQLErrorsAreRemote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"errors":[{"message":"label not found","extensions":{"code":"NOT_FOUND"}}]}`))
	})

	err := c.DeleteLabel(context.Background(), "99")
	var re *gateway.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if re.Code != "NOT_FOUND" || re.Message != "label not found" {
		t.Errorf("RemoteError = %+v", re)
	}
	if gateway.IsRetryable(err) {
		t.Error("GraphQL errors should not be retryable")
	}
}

func TestDo_ConnectionRefusedIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c := New(Config{Endpoint: endpoint, Timeout: time.Second})
	_, err := c.FetchDrafts(context.Background())
	if !gateway.IsNetworkError(err) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
}

func TestDo_TimeoutIsNetwork(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.FetchCurrentUser(context.Background())
	var ne *gateway.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
	if !ne.Timeout() {
		t.Errorf("expected timeout, got %v", ne.Err)
	}
}

func TestDo_BearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want Bearer secret", got)
		}
		w.Write([]byte(`{"data":{"currentUser":{"id":1,"name":"Ann","email":"ann@example.com"}}}`))
	}))
	defer srv.Close()

	c := New(Config{
		Endpoint:    srv.URL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret"}),
	})
	u, err := c.FetchCurrentUser(context.Background())
	if err != nil {
		t.Fatalf("FetchCurrentUser: %v", err)
	}
	if u.ID != "1" || u.Email != "ann@example.com" {
		t.Errorf("user = %+v", u)
	}
}

func TestSaveDraft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		input, ok := req.Variables["input"].(map[string]any)
		if !ok {
			t.Fatalf("input variable missing: %v", req.Variables)
		}
		if input["id"] != "5" {
			t.Errorf("input.id = %v, want 5", input["id"])
		}
		if input["subject"] != "Re: Hello" {
			t.Errorf("input.subject = %v", input["subject"])
		}
		w.Write([]byte(`{"data":{"saveDraft":{"id":5,"subject":"Re: Hello","body":"b","recipients":["a@example.com"]}}}`))
	})

	d, err := c.SaveDraft(context.Background(), gateway.DraftInput{
		ID:         "5",
		Subject:    "Re: Hello",
		Body:       "b",
		Recipients: []string{"a@example.com"},
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if d.ID != "5" || len(d.Recipients) != 1 {
		t.Errorf("draft = %+v", d)
	}
}

func TestSaveDraft_InvalidRecipient(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.SaveDraft(context.Background(), gateway.DraftInput{Recipients: []string{"nope"}})
	if !errors.Is(err, gateway.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if calls.Load() != 0 {
		t.Error("invalid draft must not reach the server")
	}
}

func TestSendEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		if req.Variables["draftId"] != "5" {
			t.Errorf("draftId = %v", req.Variables["draftId"])
		}
		w.Write([]byte(`{"data":{"sendEmail":{"id":100,"subject":"Hi","folder":"sent"}}}`))
	})

	e, err := c.SendEmail(context.Background(), "5")
	if err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if e.ID != "100" || e.Folder != domain.FolderSent {
		t.Errorf("email = %+v", e)
	}
}

func TestFetchLabels_Defaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"labels":[{"id":1,"name":"Work"},{"id":"2","name":"Inbox","type":"SYSTEM","labelListVisibility":"labelHide"}]}}`))
	})

	labels, err := c.FetchLabels(context.Background())
	if err != nil {
		t.Fatalf("FetchLabels: %v", err)
	}
	if labels[0].Type != domain.LabelTypeUser || labels[0].LabelListVisibility != domain.VisibilityShow {
		t.Errorf("label[0] = %+v", labels[0])
	}
	if labels[1].Type != domain.LabelTypeSystem || !labels[1].Hidden() {
		t.Errorf("label[1] = %+v", labels[1])
	}
}

func TestFlexID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"abc"`, "abc"},
		{`17`, "17"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id flexID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.in, err)
		}
		if string(id) != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, id, tt.want)
		}
	}
}

func TestDo_MalformedBodyIsRemote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	})

	_, err := c.FetchLabels(context.Background())
	var re *gateway.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if re.Op != "GetLabels" {
		t.Errorf("Op = %q, want GetLabels", re.Op)
	}
	if !strings.HasPrefix(re.Message, "malformed response") {
		t.Errorf("Message = %q", re.Message)
	}
}

func TestFetchEmails_EnhancedSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		if !strings.Contains(req.Query, "query EnhancedSearch") {
			t.Errorf("query = %q, want the EnhancedSearch operation", req.Query)
		}
		if req.Variables["useAI"] != true {
			t.Errorf("useAI = %v, want true", req.Variables["useAI"])
		}
		filters, ok := req.Variables["filters"].(map[string]any)
		if !ok {
			t.Fatalf("filters variable missing: %v", req.Variables)
		}
		if filters["folder"] != "inbox" || filters["dateRange"] != "week" || filters["hasAttachments"] != true {
			t.Errorf("filters = %v", filters)
		}
		ids, _ := filters["labelIds"].([]any)
		if len(ids) != 1 || ids[0] != "L1" {
			t.Errorf("labelIds = %v, want [L1]", filters["labelIds"])
		}
		w.Write([]byte(`{"data":{"enhancedSearch":[{"id":9,"subject":"Invoice","sender":{"email":"billing@example.com"},"date":"2024-05-01T00:00:00Z"}]}}`))
	})

	emails, err := c.FetchEmails(context.Background(), gateway.EmailQuery{
		Folder: domain.FolderInbox,
		Query:  "invoices from last week",
		Filter: gateway.SearchFilter{DateRange: gateway.DateWeek, HasAttachments: true, LabelIDs: []string{"L1"}},
		UseAI:  true,
	})
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}
	if len(emails) != 1 || emails[0].ID != "9" || emails[0].LabelIDs == nil {
		t.Errorf("emails = %+v", emails)
	}
}

func TestFetchEmails_InvalidDateRangeSendsNothing(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.FetchEmails(context.Background(), gateway.EmailQuery{
		Folder: domain.FolderInbox,
		Filter: gateway.SearchFilter{DateRange: "decade"},
	})
	if !errors.Is(err, gateway.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if calls.Load() != 0 {
		t.Error("invalid filter must not reach the server")
	}
}

func TestFetchLabelStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"getEmailLabelStats":{
			"labels":[{"id":1,"name":"Work","type":"user"}],
			"stats":[{"labelId":1,"name":"","total":12,"unread":3,"color":"#00ff00"},
			         {"labelId":"2","name":"Travel","total":4,"unread":0,"color":null}]
		}}}`))
	})

	stats, err := c.FetchLabelStats(context.Background())
	if err != nil {
		t.Fatalf("FetchLabelStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}
	want := domain.LabelStats{LabelID: "1", Name: "Work", Color: "#00ff00", Total: 12, Unread: 3}
	if stats[0] != want {
		t.Errorf("stats[0] = %+v, want %+v", stats[0], want)
	}
	if stats[1].Name != "Travel" || stats[1].Color != "" {
		t.Errorf("stats[1] = %+v", stats[1])
	}
}
