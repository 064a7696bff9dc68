package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// ReplaceDrafts swaps the mirrored draft list of a user for drafts.
func (s *DB) ReplaceDrafts(ctx context.Context, userID string, drafts []domain.Draft) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	for _, d := range drafts {
		recipients, err := json.Marshal(d.Recipients)
		if err != nil {
			return fmt.Errorf("failed to marshal recipients: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO drafts (user_id, id, subject, body, recipients, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, d.ID, d.Subject, d.Body, string(recipients),
			d.CreatedAt.UTC().Format(time.RFC3339), d.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert draft %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit drafts: %w", err)
	}
	return nil
}

// ListDrafts returns a user's drafts, most recently updated first.
func (s *DB) ListDrafts(ctx context.Context, userID string) ([]domain.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, body, recipients, created_at, updated_at
		FROM drafts WHERE user_id = ?
		ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	drafts := []domain.Draft{}
	for rows.Next() {
		var d domain.Draft
		var subject, body, recipients sql.NullString
		var created, updated string
		if err := rows.Scan(&d.ID, &subject, &body, &recipients, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		d.Subject = subject.String
		d.Body = body.String
		d.Recipients = []string{}
		if recipients.String != "" && recipients.String != "null" {
			if err := json.Unmarshal([]byte(recipients.String), &d.Recipients); err != nil {
				return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
			}
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("failed to parse draft created_at: %w", err)
		}
		if d.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
			return nil, fmt.Errorf("failed to parse draft updated_at: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drafts: %w", err)
	}
	return drafts, nil
}
