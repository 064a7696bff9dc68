package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/session"
	"github.com/lu-zhengda/mailsession/internal/store"
)

// MirrorService copies committed session snapshots into the local store so
// offline commands can read the last known state. It only ever writes
// collections the session has fetched; the empty placeholders left by a user
// switch or a failed view change never replace mirrored data.
type MirrorService struct {
	store store.Store
	log   *logrus.Entry

	mu      sync.Mutex
	version uint64

	pending chan session.Snapshot
	done    chan struct{}
	cancel  func()
	wg      sync.WaitGroup
}

// NewMirrorService creates a MirrorService writing to s.
func NewMirrorService(s store.Store, log *logrus.Entry) *MirrorService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MirrorService{
		store: s,
		log:   log.WithField("component", "mirror"),
	}
}

// Start subscribes to src and mirrors snapshots on a background goroutine
// until Stop is called. Only the newest pending snapshot is written.
func (m *MirrorService) Start(ctx context.Context, src *session.Store) {
	m.pending = make(chan session.Snapshot, 1)
	m.done = make(chan struct{})
	unsubscribe := src.Subscribe(m.enqueue)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case snap := <-m.pending:
				if err := m.Apply(ctx, snap); err != nil {
					m.log.WithError(err).WithField("version", snap.Version).Warn("mirror write failed")
				}
			case <-m.done:
				// Flush what is already queued.
				select {
				case snap := <-m.pending:
					if err := m.Apply(ctx, snap); err != nil {
						m.log.WithError(err).WithField("version", snap.Version).Warn("mirror write failed")
					}
				default:
				}
				return
			}
		}
	}()

	m.cancel = func() {
		unsubscribe()
		close(m.done)
		m.wg.Wait()
	}
}

// Stop unsubscribes, writes any queued snapshot and waits for the worker.
func (m *MirrorService) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *MirrorService) enqueue(snap session.Snapshot) {
	for {
		select {
		case m.pending <- snap:
			return
		default:
		}
		// Replace the queued snapshot with the newer one.
		select {
		case old := <-m.pending:
			if old.Version > snap.Version {
				snap = old
			}
		default:
		}
	}
}

// Apply writes snap to the store. Snapshots older than the last one written
// and snapshots without a current user are skipped.
func (m *MirrorService) Apply(ctx context.Context, snap session.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.CurrentUser == nil {
		return nil
	}
	if snap.Version <= m.version {
		m.log.WithFields(logrus.Fields{"version": snap.Version, "mirrored": m.version}).Debug("skipping older snapshot")
		return nil
	}
	userID := snap.CurrentUser.ID

	if err := m.store.UpsertUser(ctx, snap.CurrentUser); err != nil {
		return err
	}
	if snap.Loaded.Users {
		for i := range snap.Users {
			if err := m.store.UpsertUser(ctx, &snap.Users[i]); err != nil {
				return err
			}
		}
	}
	if snap.Loaded.Labels {
		if err := m.store.ReplaceLabels(ctx, userID, snap.Labels); err != nil {
			return err
		}
	}
	if snap.Loaded.Drafts {
		if err := m.store.ReplaceDrafts(ctx, userID, snap.Drafts); err != nil {
			return err
		}
	}
	if snap.Loaded.Emails {
		if err := m.mirrorEmails(ctx, userID, snap); err != nil {
			return err
		}
	}
	if snap.Detail != nil {
		if err := m.store.UpsertEmail(ctx, snap.Detail, userID); err != nil {
			return err
		}
	}

	view := snap.Selection.View
	if err := m.store.SetMirrorState(ctx, &store.MirrorState{
		UserID:     userID,
		Version:    snap.Version,
		View:       view.String(),
		LastMirror: time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to save mirror state: %w", err)
	}

	m.version = snap.Version
	m.log.WithFields(logrus.Fields{
		"version": snap.Version,
		"user_id": userID,
		"view":    view.String(),
		"emails":  len(snap.Emails),
	}).Debug("mirrored snapshot")
	return nil
}

// mirrorEmails writes the viewed list. A plain folder view holds the whole
// folder, so emails that left it are pruned; other views only upsert.
func (m *MirrorService) mirrorEmails(ctx context.Context, userID string, snap session.Snapshot) error {
	view := snap.Selection.View
	emails := make([]domain.Email, len(snap.Emails))
	copy(emails, snap.Emails)
	for i := range emails {
		if emails[i].Folder == "" && view.Folder != "" {
			emails[i].Folder = view.Folder
		}
	}

	if prunable(view) {
		return m.store.ReplaceFolder(ctx, userID, view.Folder, emails)
	}
	for i := range emails {
		if err := m.store.UpsertEmail(ctx, &emails[i], userID); err != nil {
			return err
		}
	}
	return nil
}

func prunable(v session.View) bool {
	if v.Query != "" || v.LabelID != "" || !v.Filter.IsZero() {
		return false
	}
	switch v.Folder {
	case domain.FolderInbox, domain.FolderSent, domain.FolderDrafts, domain.FolderSpam, domain.FolderTrash:
		return true
	default:
		return false
	}
}
