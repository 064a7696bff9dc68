package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantName  string
		wantEmail string
	}{
		{"name and email", "John Doe <john@example.com>", "John Doe", "john@example.com"},
		{"angle brackets only", "<john@example.com>", "", "john@example.com"},
		{"bare email", "john@example.com", "", "john@example.com"},
		{"quoted name", `"Jane Doe" <jane@example.com>`, "Jane Doe", "jane@example.com"},
		{"unparseable falls back to raw", "not an address", "", "not an address"},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAddress(tt.input)
			if got.Name != tt.wantName || got.Email != tt.wantEmail {
				t.Errorf("parseAddress(%q) = %+v, want {%q %q}", tt.input, got, tt.wantName, tt.wantEmail)
			}
		})
	}
}

func TestParseAddressList(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"john@example.com", 1},
		{"john@example.com, jane@example.com", 2},
		{"John <john@example.com>, Jane <jane@example.com>", 2},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseAddressList(tt.input); len(got) != tt.want {
			t.Errorf("parseAddressList(%q) returned %d addresses, want %d", tt.input, len(got), tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		wantZero bool
		wantDay  int
	}{
		{"Mon, 02 Jan 2006 15:04:05 -0700", false, 2},
		{"Tue, 3 Jan 2006 15:04:05 -0700", false, 3},
		{"Wed, 04 Jan 2006 15:04:05 -0700 (MST)", false, 4},
		{"2006-01-05T15:04:05Z", false, 5},
		{"garbage", true, 0},
		{"", true, 0},
	}
	for _, tt := range tests {
		got := parseDate(tt.input)
		if got.IsZero() != tt.wantZero {
			t.Errorf("parseDate(%q).IsZero() = %v, want %v", tt.input, got.IsZero(), tt.wantZero)
			continue
		}
		if !tt.wantZero && got.Day() != tt.wantDay {
			t.Errorf("parseDate(%q).Day() = %d, want %d", tt.input, got.Day(), tt.wantDay)
		}
	}
}

func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestMapMessage(t *testing.T) {
	msg := &gmailapi.Message{
		Id:       "m1",
		LabelIds: []string{"INBOX", "UNREAD", "STARRED", "Label_7"},
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "to", Value: "bob@example.com, carol@example.com"},
				{Name: "Subject", Value: "Quarterly numbers"},
				{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 -0700"},
			},
			Parts: []*gmailapi.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmailapi.MessagePart{
						{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: encode("plain body")}},
						{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: encode("<p>html</p>")}},
					},
				},
				{
					MimeType: "application/pdf",
					Filename: "report.pdf",
					Body:     &gmailapi.MessagePartBody{AttachmentId: "att1", Size: 2048},
				},
			},
		},
	}

	e := mapMessage(msg)
	if e.ID != "m1" || e.Subject != "Quarterly numbers" {
		t.Errorf("id/subject = %q/%q", e.ID, e.Subject)
	}
	if e.From.Email != "alice@example.com" || e.From.Name != "Alice" {
		t.Errorf("From = %+v", e.From)
	}
	if len(e.To) != 2 {
		t.Errorf("To = %v, want 2 addresses", e.To)
	}
	if e.Body != "plain body" {
		t.Errorf("Body = %q, want plain part", e.Body)
	}
	if e.IsRead || !e.IsStarred {
		t.Errorf("read=%v starred=%v", e.IsRead, e.IsStarred)
	}
	if e.Folder != domain.FolderInbox {
		t.Errorf("Folder = %q, want inbox", e.Folder)
	}
	if !e.HasLabel("Label_7") {
		t.Error("expected user label to be kept")
	}
	if len(e.Attachments) != 1 || e.Attachments[0].Name != "report.pdf" || e.Attachments[0].Size != 2048 {
		t.Fatalf("Attachments = %+v", e.Attachments)
	}
	if e.Attachments[0].URL == "" {
		t.Error("attachment URL should be set")
	}
}

func TestMapMessage_EmptyPayload(t *testing.T) {
	e := mapMessage(&gmailapi.Message{Id: "m2", InternalDate: 1700000000000})
	if e.To == nil || e.LabelIDs == nil || e.Attachments == nil {
		t.Error("collections should be non-nil")
	}
	if !e.Date.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("Date = %v, want internal date", e.Date)
	}
	if !e.IsRead {
		t.Error("message without UNREAD should be read")
	}
}

func TestMapMessage_HTMLOnly(t *testing.T) {
	e := mapMessage(&gmailapi.Message{
		Id: "m3",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/html",
			Body:     &gmailapi.MessagePartBody{Data: encode("<b>hi</b>")},
		},
	})
	if e.Body != "<b>hi</b>" {
		t.Errorf("Body = %q, want html fallback", e.Body)
	}
}

func TestFolderOf(t *testing.T) {
	tests := []struct {
		labels []string
		want   domain.Folder
	}{
		{[]string{"INBOX"}, domain.FolderInbox},
		{[]string{"SENT"}, domain.FolderSent},
		{[]string{"INBOX", "SENT"}, domain.FolderInbox},
		{[]string{"TRASH", "INBOX"}, domain.FolderTrash},
		{[]string{"SPAM"}, domain.FolderSpam},
		{[]string{"DRAFT"}, domain.FolderDrafts},
		{[]string{"Label_1"}, ""},
	}
	for _, tt := range tests {
		if got := folderOf(tt.labels); got != tt.want {
			t.Errorf("folderOf(%v) = %q, want %q", tt.labels, got, tt.want)
		}
	}
}

func TestFolderFilter(t *testing.T) {
	label, query, err := folderFilter(domain.FolderSnoozed)
	if err != nil || label != "" || query != "in:snoozed" {
		t.Errorf("snoozed = (%q, %q, %v)", label, query, err)
	}
	label, _, err = folderFilter(domain.FolderDrafts)
	if err != nil || label != "DRAFT" {
		t.Errorf("drafts = (%q, %v)", label, err)
	}
	if _, _, err := folderFilter("archive"); err == nil {
		t.Error("expected error for unknown folder")
	}
}

func TestFilterQuery(t *testing.T) {
	now := time.Date(2026, 3, 18, 15, 4, 0, 0, time.UTC)
	tests := []struct {
		name   string
		filter gateway.SearchFilter
		want   string
	}{
		{"empty", gateway.SearchFilter{}, ""},
		{"labels only", gateway.SearchFilter{LabelIDs: []string{"Label_1"}}, ""},
		{"today", gateway.SearchFilter{DateRange: gateway.DateToday}, "after:2026/03/18"},
		{"attachments", gateway.SearchFilter{HasAttachments: true}, "has:attachment"},
		{"both", gateway.SearchFilter{DateRange: gateway.DateToday, HasAttachments: true}, "after:2026/03/18 has:attachment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterQuery(tt.filter, now); got != tt.want {
				t.Errorf("filterQuery = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapDraft(t *testing.T) {
	d := mapDraft(&gmailapi.Draft{
		Id: "r1",
		Message: &gmailapi.Message{
			Id:           "m9",
			InternalDate: 1700000000000,
			Payload: &gmailapi.MessagePart{
				MimeType: "text/plain",
				Headers: []*gmailapi.MessagePartHeader{
					{Name: "To", Value: "Bob <bob@example.com>"},
					{Name: "Subject", Value: "Re: lunch"},
				},
				Body: &gmailapi.MessagePartBody{Data: encode("sure")},
			},
		},
	})
	if d.ID != "r1" || d.Subject != "Re: lunch" || d.Body != "sure" {
		t.Errorf("draft = %+v", d)
	}
	if len(d.Recipients) != 1 || d.Recipients[0] != "bob@example.com" {
		t.Errorf("Recipients = %v", d.Recipients)
	}
	if d.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should come from the message internal date")
	}

	empty := mapDraft(&gmailapi.Draft{Id: "r2"})
	if empty.Recipients == nil {
		t.Error("Recipients should be non-nil")
	}
}

func TestMapLabel(t *testing.T) {
	l := mapLabel(&gmailapi.Label{
		Id:                  "Label_1",
		Name:                "Work",
		Type:                "user",
		LabelListVisibility: "labelHide",
		Color:               &gmailapi.LabelColor{BackgroundColor: "#16a766"},
	})
	if l.Type != domain.LabelTypeUser || l.Color != "#16a766" || !l.Hidden() {
		t.Errorf("label = %+v", l)
	}
	if sys := mapLabel(&gmailapi.Label{Id: "INBOX", Type: "system"}); sys.Type != domain.LabelTypeSystem {
		t.Errorf("system label type = %q", sys.Type)
	}
}
