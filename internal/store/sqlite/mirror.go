package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lu-zhengda/mailsession/internal/store"
)

// GetMirrorState retrieves the mirror state for a user.
// If no state exists, it returns an empty MirrorState with the UserID set.
func (s *DB) GetMirrorState(ctx context.Context, userID string) (*store.MirrorState, error) {
	var state store.MirrorState
	var view sql.NullString
	var last string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, version, view, last_mirror FROM mirror_state WHERE user_id = ?`,
		userID,
	).Scan(&state.UserID, &state.Version, &view, &last)

	if errors.Is(err, sql.ErrNoRows) {
		return &store.MirrorState{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mirror state for %s: %w", userID, err)
	}

	state.View = view.String
	if state.LastMirror, err = time.Parse(time.RFC3339, last); err != nil {
		return nil, fmt.Errorf("failed to parse last_mirror: %w", err)
	}
	return &state, nil
}

// SetMirrorState inserts or updates the mirror state for a user.
func (s *DB) SetMirrorState(ctx context.Context, state *store.MirrorState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mirror_state (user_id, version, view, last_mirror)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			version     = excluded.version,
			view        = excluded.view,
			last_mirror = excluded.last_mirror`,
		state.UserID, state.Version, state.View, state.LastMirror.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to set mirror state for %s: %w", state.UserID, err)
	}
	return nil
}
