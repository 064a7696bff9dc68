package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// ReplaceLabels swaps the mirrored label list of a user for labels.
func (s *DB) ReplaceLabels(ctx context.Context, userID string, labels []domain.Label) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear labels: %w", err)
	}
	for _, l := range labels {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO labels (user_id, id, name, type, color, list_vis, message_vis)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, l.ID, l.Name, string(l.Type), l.Color, l.LabelListVisibility, l.MessageListVisibility,
		)
		if err != nil {
			return fmt.Errorf("failed to insert label %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit labels: %w", err)
	}
	return nil
}

// ListLabels returns all labels for a user, ordered by name.
func (s *DB) ListLabels(ctx context.Context, userID string) ([]domain.Label, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, color, list_vis, message_vis FROM labels WHERE user_id = ? ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	labels := []domain.Label{}
	for rows.Next() {
		var l domain.Label
		var typ, color, listVis, msgVis sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &typ, &color, &listVis, &msgVis); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		l.Type = domain.LabelType(typ.String)
		l.Color = color.String
		l.LabelListVisibility = listVis.String
		l.MessageListVisibility = msgVis.String
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate labels: %w", err)
	}

	return labels, nil
}
