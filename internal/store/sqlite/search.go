package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// SearchEmails performs a full-text search across a user's mirrored emails
// using FTS5. Each whitespace separated term must match.
func (s *DB) SearchEmails(ctx context.Context, query string, userID string) ([]domain.Email, error) {
	match := ftsQuery(query)
	if match == "" {
		return []domain.Email{}, nil
	}

	emails, err := s.queryEmails(ctx, `
		SELECT `+emailColumns+`
		FROM emails e
		JOIN emails_fts fts ON fts.rowid = e.rowid
		WHERE emails_fts MATCH ? AND e.user_id = ?
		ORDER BY rank`, match, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	if err := s.loadRelations(ctx, userID, emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// ftsQuery quotes every term so that user input cannot inject FTS5 syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}
