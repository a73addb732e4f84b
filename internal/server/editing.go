package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/types"
)

// EditTracker keeps the advisory record of who is editing which task. It
// never prevents concurrent edits; it only makes them visible. Entries
// expire after ttl unless refreshed or explicitly stopped.
type EditTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]map[int]*editEntry
}

type editEntry struct {
	user      types.User
	startedAt time.Time
	refreshed time.Time
	draft     json.RawMessage
}

// Editor is a copy of an edit-presence entry safe to hand out of the lock.
type Editor struct {
	User      types.User
	StartedAt time.Time
	Draft     json.RawMessage
}

type ExpiredEdit struct {
	TaskId string
	User   types.User
}

func NewEditTracker(ttl time.Duration) *EditTracker {
	return &EditTracker{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]map[int]*editEntry),
	}
}

// Start records or refreshes an entry. It reports whether the entry is new;
// refreshes also capture the editor's latest pending draft.
func (t *EditTracker) Start(taskId string, user types.User, draft json.RawMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.entries[taskId] == nil {
		t.entries[taskId] = make(map[int]*editEntry)
	}

	if entry, ok := t.entries[taskId][user.Id]; ok {
		entry.refreshed = now
		if draft != nil {
			entry.draft = draft
		}
		return false
	}

	t.entries[taskId][user.Id] = &editEntry{
		user:      user,
		startedAt: now,
		refreshed: now,
		draft:     draft,
	}
	return true
}

func (t *EditTracker) Stop(taskId string, userId int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	editors, ok := t.entries[taskId]
	if !ok {
		return false
	}
	if _, ok := editors[userId]; !ok {
		return false
	}

	delete(editors, userId)
	if len(editors) == 0 {
		delete(t.entries, taskId)
	}
	return true
}

// EditorsExcept returns every live editor of a task other than userId.
func (t *EditTracker) EditorsExcept(taskId string, userId int) []Editor {
	t.mu.Lock()
	defer t.mu.Unlock()

	var editors []Editor
	for id, entry := range t.entries[taskId] {
		if id == userId {
			continue
		}
		editors = append(editors, Editor{
			User:      entry.user,
			StartedAt: entry.startedAt,
			Draft:     entry.draft,
		})
	}
	return editors
}

// ClearUser drops all of a user's entries, returning the affected task ids.
func (t *EditTracker) ClearUser(userId int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var taskIds []string
	for taskId, editors := range t.entries {
		if _, ok := editors[userId]; ok {
			delete(editors, userId)
			if len(editors) == 0 {
				delete(t.entries, taskId)
			}
			taskIds = append(taskIds, taskId)
		}
	}
	return taskIds
}

func (t *EditTracker) ClearTask(taskId string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, taskId)
}

// Expire removes entries not refreshed within ttl and reports them; an
// expiry is treated exactly like an implicit stop.
func (t *EditTracker) Expire() []ExpiredEdit {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.ttl)

	var expired []ExpiredEdit
	for taskId, editors := range t.entries {
		for userId, entry := range editors {
			if entry.refreshed.Before(cutoff) {
				delete(editors, userId)
				expired = append(expired, ExpiredEdit{TaskId: taskId, User: entry.user})
			}
		}
		if len(editors) == 0 {
			delete(t.entries, taskId)
		}
	}
	return expired
}

// handleStartEditing tracks an editor only for tasks that actually exist;
// a stale task id gets not-found instead of a phantom presence entry.
func (cs *CoordServer) handleStartEditing(s *Session, msg *ClientMessage) {
	req := msg.Editing
	if req.TaskId == "" {
		s.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if _, err := cs.db.GetBoardTaskByExternalId(req.TaskId); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.queueMessage(ErrNotFoundResponse(msg.Id))
			return
		}
		cs.log.Println("GetBoardTaskByExternalId:", err)
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}

	fresh := cs.editing.Start(req.TaskId, s.user, req.Draft)
	s.queueMessage(NoErrOK(msg.Id, nil))

	if fresh {
		ev := newEvent(&Event{
			TaskEditing: &EditingEvent{TaskId: req.TaskId, User: s.user},
		})
		ev.SkipSession = s
		cs.registry.Broadcast(ev)
	}
}

func (cs *CoordServer) handleStopEditing(s *Session, msg *ClientMessage) {
	req := msg.StopEditing
	if req.TaskId == "" {
		s.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	stopped := cs.editing.Stop(req.TaskId, s.user.Id)
	s.queueMessage(NoErrOK(msg.Id, nil))

	if stopped {
		cs.broadcastStopEditing(req.TaskId, s.user, s)
	}
}

// stopEditingAll clears a disconnecting user's edit entries; peers see the
// same stop signal as an explicit one.
func (cs *CoordServer) stopEditingAll(user types.User) {
	for _, taskId := range cs.editing.ClearUser(user.Id) {
		cs.broadcastStopEditing(taskId, user, nil)
	}
}

func (cs *CoordServer) sweepEditing() {
	for _, expired := range cs.editing.Expire() {
		cs.broadcastStopEditing(expired.TaskId, expired.User, nil)
	}
}

func (cs *CoordServer) broadcastStopEditing(taskId string, user types.User, skip *Session) {
	ev := newEvent(&Event{
		TaskStopEditing: &EditingEvent{TaskId: taskId, User: user},
	})
	ev.SkipSession = skip
	cs.registry.Broadcast(ev)
}

// notifyConflicts hands each mid-edit session a conflict payload pairing
// its own pending draft with the state that just landed. Resolution is the
// user's choice; the server never merges.
func (cs *CoordServer) notifyConflicts(updater int, task types.BoardTask) {
	for _, editor := range cs.editing.EditorsExcept(task.ExternalId, updater) {
		cs.stats.Incr("ConflictsDetected")

		conflict := newEvent(&Event{
			Conflict: &types.Conflict{
				TaskId: task.ExternalId,
				Yours:  editor.Draft,
				Theirs: task,
			},
		})
		for _, es := range cs.registry.SessionsFor(editor.User.Id) {
			es.queueMessage(conflict)
		}
	}
}
