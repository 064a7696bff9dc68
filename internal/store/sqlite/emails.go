package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/store"
)

const emailColumns = `e.id, e.folder, e.from_addr, e.from_name, e.to_addrs,
	e.subject, e.body_text, e.date, e.is_read, e.is_starred`

// UpsertEmail inserts or updates an email with its labels and attachments.
func (s *DB) UpsertEmail(ctx context.Context, email *domain.Email, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertEmail(ctx, tx, email, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit email upsert: %w", err)
	}
	return nil
}

// ReplaceFolder mirrors the full contents of a folder: emails are upserted
// and previously mirrored emails of that folder not in the list are removed.
func (s *DB) ReplaceFolder(ctx context.Context, userID string, folder domain.Folder, emails []domain.Email) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range emails {
		if err := upsertEmail(ctx, tx, &emails[i], userID); err != nil {
			return err
		}
	}
	if err := pruneFolder(ctx, tx, userID, folder, emails); err != nil {
		return fmt.Errorf("failed to prune folder %s: %w", folder, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit folder %s: %w", folder, err)
	}
	return nil
}

func upsertEmail(ctx context.Context, tx *sql.Tx, email *domain.Email, userID string) error {
	toJSON, err := json.Marshal(email.To)
	if err != nil {
		return fmt.Errorf("failed to marshal To addresses: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO emails (user_id, id, folder, from_addr, from_name, to_addrs,
			subject, body_text, date, is_read, is_starred, mirrored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, id) DO UPDATE SET
			folder      = excluded.folder,
			from_addr   = excluded.from_addr,
			from_name   = excluded.from_name,
			to_addrs    = excluded.to_addrs,
			subject     = excluded.subject,
			body_text   = excluded.body_text,
			date        = excluded.date,
			is_read     = excluded.is_read,
			is_starred  = excluded.is_starred,
			mirrored_at = excluded.mirrored_at`,
		userID, email.ID, string(email.Folder),
		email.From.Email, email.From.Name, string(toJSON),
		email.Subject, email.Body,
		email.Date.UTC().Format(time.RFC3339),
		email.IsRead, email.IsStarred,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert email %s: %w", email.ID, err)
	}

	// Delete existing labels and attachments, then reinsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM email_labels WHERE user_id = ? AND email_id = ?`, userID, email.ID); err != nil {
		return fmt.Errorf("failed to delete email labels: %w", err)
	}
	for _, labelID := range email.LabelIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO email_labels (user_id, email_id, label_id) VALUES (?, ?, ?)`,
			userID, email.ID, labelID); err != nil {
			return fmt.Errorf("failed to insert email label: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE user_id = ? AND email_id = ?`, userID, email.ID); err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	for i, a := range email.Attachments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attachments (user_id, email_id, position, filename, size, url) VALUES (?, ?, ?, ?, ?, ?)`,
			userID, email.ID, i, a.Name, a.Size, a.URL); err != nil {
			return fmt.Errorf("failed to insert attachment: %w", err)
		}
	}
	return nil
}

// GetEmail retrieves a single email with its labels and attachments.
func (s *DB) GetEmail(ctx context.Context, userID, id string) (*domain.Email, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails e WHERE e.user_id = ? AND e.id = ?`, userID, id)
	e, err := scanEmail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email %s: %w", id, err)
	}

	emails := []domain.Email{*e}
	if err := s.loadRelations(ctx, userID, emails); err != nil {
		return nil, err
	}
	return &emails[0], nil
}

// ListEmails returns mirrored emails newest first, filtered by folder or
// label.
func (s *DB) ListEmails(ctx context.Context, opts store.ListEmailOptions) ([]domain.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails e`
	args := []any{}

	switch {
	case opts.LabelID != "":
		query += ` JOIN email_labels el ON el.user_id = e.user_id AND el.email_id = e.id
			WHERE e.user_id = ? AND el.label_id = ?`
		args = append(args, opts.UserID, opts.LabelID)
	case opts.Folder != "":
		query += ` WHERE e.user_id = ? AND e.folder = ?`
		args = append(args, opts.UserID, string(opts.Folder))
	default:
		query += ` WHERE e.user_id = ?`
		args = append(args, opts.UserID)
	}
	query += ` ORDER BY e.date DESC, e.id`

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	emails, err := s.queryEmails(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	if err := s.loadRelations(ctx, opts.UserID, emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// DeleteEmail removes an email by ID.
func (s *DB) DeleteEmail(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM emails WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete email %s: %w", id, err)
	}
	return nil
}

// pruneFolder drops mirrored emails of folder that are not in keep.
func pruneFolder(ctx context.Context, tx *sql.Tx, userID string, folder domain.Folder, keep []domain.Email) error {
	if len(keep) == 0 {
		_, err := tx.ExecContext(ctx, `DELETE FROM emails WHERE user_id = ? AND folder = ?`, userID, string(folder))
		return err
	}
	placeholders := make([]string, len(keep))
	args := []any{userID, string(folder)}
	for i := range keep {
		placeholders[i] = "?"
		args = append(args, keep[i].ID)
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM emails WHERE user_id = ? AND folder = ? AND id NOT IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	return err
}

func (s *DB) queryEmails(ctx context.Context, query string, args ...any) ([]domain.Email, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []domain.Email{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email row: %w", err)
		}
		emails = append(emails, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate emails: %w", err)
	}
	return emails, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (*domain.Email, error) {
	var e domain.Email
	var folder, fromAddr string
	var fromName, toJSON, subject, body sql.NullString
	var dateStr string

	if err := row.Scan(
		&e.ID, &folder, &fromAddr, &fromName, &toJSON,
		&subject, &body, &dateStr, &e.IsRead, &e.IsStarred,
	); err != nil {
		return nil, err
	}

	e.Folder = domain.Folder(folder)
	e.From = domain.Address{Name: fromName.String, Email: fromAddr}
	e.Subject = subject.String
	e.Body = body.String
	e.To = []domain.Address{}
	if toJSON.String != "" && toJSON.String != "null" {
		if err := json.Unmarshal([]byte(toJSON.String), &e.To); err != nil {
			return nil, fmt.Errorf("failed to unmarshal To addresses: %w", err)
		}
	}

	parsedDate, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email date: %w", err)
	}
	e.Date = parsedDate
	e.LabelIDs = []string{}
	e.Attachments = []domain.Attachment{}
	return &e, nil
}

// loadRelations fills label ids and attachments for emails in place.
func (s *DB) loadRelations(ctx context.Context, userID string, emails []domain.Email) error {
	if len(emails) == 0 {
		return nil
	}
	index := make(map[string]int, len(emails))
	for i := range emails {
		index[emails[i].ID] = i
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT email_id, label_id FROM email_labels WHERE user_id = ? ORDER BY email_id, label_id`, userID)
	if err != nil {
		return fmt.Errorf("failed to query email labels: %w", err)
	}
	for rows.Next() {
		var emailID, labelID string
		if err := rows.Scan(&emailID, &labelID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan email label: %w", err)
		}
		if i, ok := index[emailID]; ok {
			emails[i].LabelIDs = append(emails[i].LabelIDs, labelID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate email labels: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT email_id, filename, size, url FROM attachments WHERE user_id = ? ORDER BY email_id, position`, userID)
	if err != nil {
		return fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var emailID string
		var name, url sql.NullString
		var size sql.NullInt64
		if err := rows.Scan(&emailID, &name, &size, &url); err != nil {
			return fmt.Errorf("failed to scan attachment: %w", err)
		}
		if i, ok := index[emailID]; ok {
			emails[i].Attachments = append(emails[i].Attachments, domain.Attachment{
				Name: name.String,
				Size: size.Int64,
				URL:  url.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate attachments: %w", err)
	}
	return nil
}
