// Package session holds the client's authoritative view of the mailbox and
// the actions that keep it consistent with the remote backend.
package session

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// listToken correlates an email list fetch with the view it was issued for.
type listToken struct {
	epoch uint64
	// issue is set for view changes: the view change sequence number.
	issue uint64
	// committed is the view commit generation seen when a refetch was issued.
	committed uint64
	view      View
}

// detailToken correlates an email detail fetch with the selection it serves.
type detailToken struct {
	epoch   uint64
	gen     uint64
	emailID string
}

// collectionToken correlates a labels, drafts or users fetch with the epoch
// and the collection sequence it was issued at.
type collectionToken struct {
	epoch uint64
	seq   uint64
}

// seqGate orders the writes to one collection. Fetches and local writes
// draw increasing sequence numbers; a fetch result applies only if nothing
// with a later number has been applied before it.
type seqGate struct {
	issued  uint64
	applied uint64
}

func (g *seqGate) next() uint64 {
	g.issued++
	return g.issued
}

// write records a local change, making every fetch issued before it stale.
func (g *seqGate) write() {
	g.applied = g.next()
}

func (g *seqGate) admit(seq uint64) bool {
	if seq <= g.applied {
		return false
	}
	g.applied = seq
	return true
}

// Store is the single in-memory snapshot of the session. It is safe for
// concurrent use and is never locked across a gateway call. The mutation
// methods are used by the Dispatcher only.
type Store struct {
	log *logrus.Entry

	mu        sync.RWMutex
	state     Snapshot
	epoch     uint64
	viewIssue uint64
	viewGen   uint64
	detailGen uint64

	users      seqGate
	current    seqGate
	labels     seqGate
	labelStats seqGate
	drafts     seqGate

	stale atomic.Int64

	lmu       sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewStore returns a store viewing the given folder, inbox when empty.
func NewStore(initial domain.Folder, log *logrus.Entry) *Store {
	if initial == "" {
		initial = domain.FolderInbox
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		log: log.WithField("component", "session"),
		state: Snapshot{
			Users:      []domain.User{},
			Emails:     []domain.Email{},
			Labels:     []domain.Label{},
			LabelStats: []domain.LabelStats{},
			Drafts:     []domain.Draft{},
			Selection:  Selection{View: FolderView(initial)},
		},
		listeners: make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Selection returns the client-only part of the state.
func (s *Store) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Selection
}

// Mode returns the interaction mode derived from the selection.
func (s *Store) Mode() Mode {
	return s.Selection().Mode()
}

// SelectedEmail returns a copy of the open email, or nil.
func (s *Store) SelectedEmail() *domain.Email {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.state.SelectedEmail()
	if e == nil {
		return nil
	}
	c := cloneEmail(*e)
	return &c
}

// ActiveDraft returns a copy of the draft being composed, or nil.
func (s *Store) ActiveDraft() *domain.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.state.ActiveDraft()
	if d == nil {
		return nil
	}
	c := *d
	c.Recipients = slices.Clone(d.Recipients)
	return &c
}

// UnreadCount returns the number of unread inbox emails in the list.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UnreadCount
}

// DraftCount returns the number of drafts.
func (s *Store) DraftCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.DraftCount
}

// StaleDiscarded returns how many fetch results were dropped because they
// no longer matched the session.
func (s *Store) StaleDiscarded() int64 {
	return s.stale.Load()
}

// Subscribe registers fn to receive a snapshot after every committed change.
// fn runs outside the store lock and must not block for long.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// update applies fn under the write lock and notifies subscribers when fn
// reports a change.
func (s *Store) update(fn func(st *Snapshot) bool) bool {
	s.mu.Lock()
	changed := fn(&s.state)
	var snap Snapshot
	if changed {
		s.state.UnreadCount = domain.CountUnread(s.state.Emails)
		s.state.DraftCount = len(s.state.Drafts)
		s.state.Version++
		snap = s.state.clone()
	}
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
	return changed
}

func (s *Store) notify(snap Snapshot) {
	s.lmu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) discard(kind string, fields logrus.Fields) {
	s.stale.Add(1)
	s.log.WithFields(fields).WithField("stale_response", kind).Debug("discarding stale response")
}

// beginViewChange issues a token for a fetch that will replace the view.
func (s *Store) beginViewChange(v View) listToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewIssue++
	return listToken{epoch: s.epoch, issue: s.viewIssue, view: v}
}

// commitViewChange applies a view change if it is still the latest issued
// one. The email selection is cleared.
func (s *Store) commitViewChange(t listToken, emails []domain.Email) bool {
	applied := false
	s.update(func(st *Snapshot) bool {
		if t.epoch != s.epoch || t.issue != s.viewIssue {
			return false
		}
		s.viewGen++
		s.detailGen++
		st.Selection.View = t.view
		st.Selection.EmailID = ""
		st.Detail = nil
		st.Emails = emails
		st.Loaded.Emails = true
		applied = true
		return true
	})
	if !applied {
		s.discard("view", logrus.Fields{"view": t.view.String()})
	}
	return applied
}

// forceView resets the view without a fetch, leaving an empty list.
func (s *Store) forceView(v View) {
	s.update(func(st *Snapshot) bool {
		s.viewIssue++
		s.viewGen++
		s.detailGen++
		st.Selection.View = v
		st.Selection.EmailID = ""
		st.Detail = nil
		st.Emails = []domain.Email{}
		st.Loaded.Emails = false
		return true
	})
}

// beginRefetch issues a token for re-listing the current view.
func (s *Store) beginRefetch() listToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listToken{epoch: s.epoch, committed: s.viewGen, view: s.state.Selection.View}
}

// commitRefetch applies a re-listing if the view it was issued for is still
// current. Among valid refetches the last to complete wins.
func (s *Store) commitRefetch(t listToken, emails []domain.Email) bool {
	applied := false
	s.update(func(st *Snapshot) bool {
		if t.epoch != s.epoch || t.committed != s.viewGen || !st.Selection.View.Equal(t.view) {
			return false
		}
		st.Emails = emails
		st.Loaded.Emails = true
		applied = true
		return true
	})
	if !applied {
		s.discard("list", logrus.Fields{"view": t.view.String()})
	}
	return applied
}

// beginSelectEmail issues a token for opening an email. Any earlier detail
// fetch becomes stale.
func (s *Store) beginSelectEmail(id string) detailToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailGen++
	return detailToken{epoch: s.epoch, gen: s.detailGen, emailID: id}
}

func (s *Store) commitSelectEmail(t detailToken, e *domain.Email) bool {
	applied := false
	s.update(func(st *Snapshot) bool {
		if t.epoch != s.epoch || t.gen != s.detailGen {
			return false
		}
		st.Selection.EmailID = t.emailID
		st.Selection.Composing = false
		d := cloneEmail(*e)
		st.Detail = &d
		applied = true
		return true
	})
	if !applied {
		s.discard("detail", logrus.Fields{"email_id": t.emailID})
	}
	return applied
}

// beginDetailRefetch issues a token for reloading the open email, or
// reports false when emailID is not open.
func (s *Store) beginDetailRefetch(emailID string) (detailToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Selection.EmailID == "" || s.state.Selection.EmailID != emailID {
		return detailToken{}, false
	}
	return detailToken{epoch: s.epoch, gen: s.detailGen, emailID: emailID}, true
}

func (s *Store) commitDetailRefetch(t detailToken, e *domain.Email) bool {
	applied := false
	s.update(func(st *Snapshot) bool {
		if t.epoch != s.epoch || t.gen != s.detailGen || st.Selection.EmailID != t.emailID {
			return false
		}
		d := cloneEmail(*e)
		st.Detail = &d
		applied = true
		return true
	})
	if !applied {
		s.discard("detail", logrus.Fields{"email_id": t.emailID})
	}
	return applied
}

// currentEpoch returns the epoch collection fetches are correlated with.
func (s *Store) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// beginCollection issues a token for fetching the collection guarded by g
// within epoch.
func (s *Store) beginCollection(g *seqGate, epoch uint64) collectionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collectionToken{epoch: epoch, seq: g.next()}
}

func (s *Store) beginLabels(epoch uint64) collectionToken {
	return s.beginCollection(&s.labels, epoch)
}

func (s *Store) beginLabelStats(epoch uint64) collectionToken {
	return s.beginCollection(&s.labelStats, epoch)
}

func (s *Store) beginDrafts(epoch uint64) collectionToken {
	return s.beginCollection(&s.drafts, epoch)
}

func (s *Store) beginUsers(epoch uint64) collectionToken {
	return s.beginCollection(&s.users, epoch)
}

func (s *Store) beginCurrentUser(epoch uint64) collectionToken {
	return s.beginCollection(&s.current, epoch)
}

func (s *Store) commitLabels(t collectionToken, labels []domain.Label) bool {
	return s.commitCollection("labels", &s.labels, t, func(st *Snapshot) {
		st.Labels = labels
		st.Loaded.Labels = true
	})
}

func (s *Store) commitLabelStats(t collectionToken, stats []domain.LabelStats) bool {
	return s.commitCollection("label_stats", &s.labelStats, t, func(st *Snapshot) {
		st.LabelStats = stats
		st.Loaded.LabelStats = true
	})
}

func (s *Store) commitUsers(t collectionToken, users []domain.User) bool {
	return s.commitCollection("users", &s.users, t, func(st *Snapshot) {
		st.Users = users
		st.Loaded.Users = true
	})
}

func (s *Store) commitCurrentUser(t collectionToken, u *domain.User) bool {
	return s.commitCollection("current_user", &s.current, t, func(st *Snapshot) {
		c := *u
		st.CurrentUser = &c
	})
}

// commitDrafts replaces the draft list. An active draft missing from the new
// list is cleared.
func (s *Store) commitDrafts(t collectionToken, drafts []domain.Draft) bool {
	return s.commitCollection("drafts", &s.drafts, t, func(st *Snapshot) {
		st.Drafts = drafts
		st.Loaded.Drafts = true
		if id := st.Selection.ActiveDraftID; id != "" && domain.FindDraft(drafts, id) == nil {
			st.Selection.ActiveDraftID = ""
			st.Selection.Composing = false
		}
	})
}

// commitCollection applies a fetched collection if its token belongs to the
// current epoch and no later fetch or local write of the collection has
// been applied.
func (s *Store) commitCollection(kind string, g *seqGate, t collectionToken, apply func(st *Snapshot)) bool {
	applied := s.update(func(st *Snapshot) bool {
		if t.epoch != s.epoch || !g.admit(t.seq) {
			return false
		}
		apply(st)
		return true
	})
	if !applied {
		s.discard(kind, logrus.Fields{"epoch": t.epoch, "seq": t.seq})
	}
	return applied
}

// removeEmail drops an email from the visible list and clears the email
// selection if it was open.
func (s *Store) removeEmail(id string) {
	s.update(func(st *Snapshot) bool {
		s.viewGen++
		before := len(st.Emails)
		st.Emails = slices.DeleteFunc(st.Emails, func(e domain.Email) bool { return e.ID == id })
		changed := len(st.Emails) != before
		if st.Selection.EmailID == id {
			s.detailGen++
			st.Selection.EmailID = ""
			st.Detail = nil
			changed = true
		}
		return changed
	})
}

// removeLabel drops a label and reports whether it was the selected one.
func (s *Store) removeLabel(id string) (wasSelected bool) {
	s.update(func(st *Snapshot) bool {
		s.labels.write()
		wasSelected = st.Selection.LabelID == id
		before := len(st.Labels)
		st.Labels = slices.DeleteFunc(st.Labels, func(l domain.Label) bool { return l.ID == id })
		return len(st.Labels) != before
	})
	return wasSelected
}

func (s *Store) addLabel(l domain.Label) {
	s.update(func(st *Snapshot) bool {
		s.labels.write()
		for i := range st.Labels {
			if st.Labels[i].ID == l.ID {
				st.Labels[i] = l
				return true
			}
		}
		st.Labels = append(st.Labels, l)
		return true
	})
}

// saveDraft records a saved draft and makes it the active one.
func (s *Store) saveDraft(d domain.Draft, compose bool) {
	s.update(func(st *Snapshot) bool {
		s.drafts.write()
		replaced := false
		for i := range st.Drafts {
			if st.Drafts[i].ID == d.ID {
				st.Drafts[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			st.Drafts = append(st.Drafts, d)
		}
		st.Selection.ActiveDraftID = d.ID
		if compose {
			st.Selection.Composing = true
		}
		return true
	})
}

// draftSent clears the active draft and drops it from the list.
func (s *Store) draftSent(id string) {
	s.update(func(st *Snapshot) bool {
		s.drafts.write()
		st.Drafts = slices.DeleteFunc(st.Drafts, func(d domain.Draft) bool { return d.ID == id })
		if st.Selection.ActiveDraftID == id {
			st.Selection.ActiveDraftID = ""
			st.Selection.Composing = false
		}
		return true
	})
}

func (s *Store) closeComposer() {
	s.update(func(st *Snapshot) bool {
		if !st.Selection.Composing && st.Selection.ActiveDraftID == "" {
			return false
		}
		st.Selection.Composing = false
		st.Selection.ActiveDraftID = ""
		return true
	})
}

// openDraft makes a listed draft active. It reports false when the draft is
// not in the list.
func (s *Store) openDraft(id string) bool {
	found := false
	s.update(func(st *Snapshot) bool {
		if domain.FindDraft(st.Drafts, id) == nil {
			return false
		}
		found = true
		if st.Selection.ActiveDraftID == id && st.Selection.Composing {
			return false
		}
		st.Selection.ActiveDraftID = id
		st.Selection.Composing = true
		return true
	})
	return found
}

// clearEmail closes the open email without changing the view.
func (s *Store) clearEmail() {
	s.update(func(st *Snapshot) bool {
		s.detailGen++
		if st.Selection.EmailID == "" && st.Detail == nil {
			return false
		}
		st.Selection.EmailID = ""
		st.Detail = nil
		return true
	})
}

// beginEpoch starts a new session epoch for user. Every in-flight fetch
// becomes stale; email and draft selection are cleared, as is any search. A
// label view falls back to inbox since labels belong to the previous user.
// A nil user leaves
// the current user unset until it is fetched.
func (s *Store) beginEpoch(user *domain.User) (epoch uint64, view View) {
	s.update(func(st *Snapshot) bool {
		s.epoch++
		s.viewIssue++
		s.viewGen++
		s.detailGen++
		st.CurrentUser = nil
		if user != nil {
			c := *user
			st.CurrentUser = &c
		}
		v := FolderView(st.Selection.View.Folder)
		if st.Selection.View.LabelID != "" {
			v = FolderView(domain.FolderInbox)
		}
		st.Selection = Selection{View: v}
		st.Detail = nil
		st.Emails = []domain.Email{}
		st.Labels = []domain.Label{}
		st.LabelStats = []domain.LabelStats{}
		st.Drafts = []domain.Draft{}
		st.Loaded = Loaded{Users: st.Loaded.Users}
		epoch, view = s.epoch, v
		return true
	})
	return epoch, view
}
