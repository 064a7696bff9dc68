package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

func TestNew_CreatesTables(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	rows, err := db.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		t.Fatalf("query sqlite_master error: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan error: %v", err)
		}
		tables = append(tables, name)
	}

	expected := []string{"attachments", "drafts", "email_labels", "emails", "emails_fts", "labels", "mirror_state", "users"}
	for _, exp := range expected {
		found := false
		for _, tbl := range tables {
			if tbl == exp {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected table %q not found in %v", exp, tables)
		}
	}
}

func TestNew_ReopenKeepsMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := db.CreateUser(ctx, &domain.User{ID: "u1", Email: "ana@example.com"}); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	db, err = New(path)
	if err != nil {
		t.Fatalf("New() on existing database error: %v", err)
	}
	defer db.Close()

	u, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if u.Email != "ana@example.com" {
		t.Errorf("got email %q, want %q", u.Email, "ana@example.com")
	}
}
