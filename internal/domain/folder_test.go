package domain

import "testing"

func TestParseFolder(t *testing.T) {
	tests := []struct {
		in      string
		want    Folder
		wantErr bool
	}{
		{"inbox", FolderInbox, false},
		{"  Sent ", FolderSent, false},
		{"TRASH", FolderTrash, false},
		{"snoozed", FolderSnoozed, false},
		{"archive", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFolder(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFolder(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFolder(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFindDraft(t *testing.T) {
	drafts := []Draft{{ID: "d1"}, {ID: "d2", Subject: "Hi"}}
	if d := FindDraft(drafts, "d2"); d == nil || d.Subject != "Hi" {
		t.Errorf("FindDraft(d2) = %+v, want subject Hi", d)
	}
	if d := FindDraft(drafts, "d3"); d != nil {
		t.Errorf("FindDraft(d3) = %+v, want nil", d)
	}
}
