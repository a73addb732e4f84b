package server

import (
	"errors"

	"github.com/google/uuid"
	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/types"
)

// ClaimTask arbitrates exclusive claiming of a pooled task. The
// read-check-write is a single conditional update in the store, so two
// overlapping claims yield exactly one success; the loser gets
// ErrAlreadyClaimed. Success is broadcast so every client drops the task
// from its available view without a refetch.
func (cs *CoordServer) ClaimTask(taskId, accountId int) (types.PoolTask, error) {
	task, err := cs.db.ClaimPoolTask(taskId, accountId)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyClaimed) {
			cs.stats.Incr("ClaimsRejected")
		}
		return types.PoolTask{}, err
	}

	claimed := toTypesPoolTask(task)
	cs.registry.Broadcast(newEvent(&Event{PoolTaskClaimed: &claimed}))

	return claimed, nil
}

// RequestHelp stores a pending help request and notifies the target's live
// sessions. At most one pending request per task; the store enforces it.
func (cs *CoordServer) RequestHelp(taskId, requesterId, targetId int, message string) (types.HelpRequest, error) {
	if _, err := cs.db.GetAccountById(targetId); err != nil {
		return types.HelpRequest{}, err
	}

	hr, err := cs.db.CreateHelpRequest(database.CreateHelpRequestParams{
		Id:          uuid.NewString(),
		PoolTaskId:  taskId,
		RequesterId: requesterId,
		TargetId:    targetId,
		Message:     message,
	})
	if err != nil {
		return types.HelpRequest{}, err
	}

	cs.stats.Incr("HelpRequests")

	request := toTypesHelpRequest(hr)
	ev := newEvent(&Event{HelpRequested: &request})
	for _, ts := range cs.registry.SessionsFor(targetId) {
		ts.queueMessage(ev)
	}

	return request, nil
}

// RespondToHelp resolves a pending request. Only the target may respond,
// and only once; accept hands the task over, decline frees it for a new
// request. The conditional write guards the race even past the pre-checks.
func (cs *CoordServer) RespondToHelp(requestId string, accountId int, accept bool) (types.PoolTask, error) {
	hr, err := cs.db.GetHelpRequest(requestId)
	if err != nil {
		return types.PoolTask{}, err
	}
	if hr.TargetId != accountId {
		return types.PoolTask{}, database.ErrNotAuthorized
	}
	if hr.Status != types.HelpStatusPending {
		return types.PoolTask{}, database.ErrAlreadyResolved
	}

	var task database.PoolTask
	if accept {
		task, err = cs.db.AcceptHelpRequest(requestId, accountId)
	} else {
		task, err = cs.db.DeclineHelpRequest(requestId, accountId)
	}
	if err != nil {
		return types.PoolTask{}, err
	}

	resolved := toTypesPoolTask(task)
	cs.registry.Broadcast(newEvent(&Event{
		HelpResponse: &HelpResponseEvent{
			RequestId: requestId,
			Accepted:  accept,
			Task:      resolved,
		},
	}))

	return resolved, nil
}

// CompleteTask is deliberately not idempotent: completing an already
// completed task fails instead of silently succeeding.
func (cs *CoordServer) CompleteTask(taskId, accountId int, notes string) (types.PoolTask, error) {
	task, err := cs.db.CompletePoolTask(taskId, accountId, notes)
	if err != nil {
		return types.PoolTask{}, err
	}

	completed := toTypesPoolTask(task)
	cs.registry.Broadcast(newEvent(&Event{PoolTaskCompleted: &completed}))

	return completed, nil
}

// PoolTask returns the current state of one pooled task, whatever its
// status; clients use it to refresh a detail view after a lost race.
func (cs *CoordServer) PoolTask(taskId int) (types.PoolTask, error) {
	task, err := cs.db.GetPoolTask(taskId)
	if err != nil {
		return types.PoolTask{}, err
	}
	return toTypesPoolTask(task), nil
}

func (cs *CoordServer) AvailableTasks(availableOn string) ([]types.PoolTask, error) {
	dbTasks, err := cs.db.ListAvailablePoolTasks(availableOn)
	if err != nil {
		return nil, err
	}

	tasks := make([]types.PoolTask, 0, len(dbTasks))
	for _, t := range dbTasks {
		tasks = append(tasks, toTypesPoolTask(t))
	}
	return tasks, nil
}

func toTypesBoardTask(t database.BoardTask) types.BoardTask {
	return types.BoardTask{
		Id:          t.Id,
		ExternalId:  t.ExternalId,
		Title:       t.Title,
		Description: t.Description,
		Column:      t.Column,
		Position:    t.Position,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTypesPoolTask(t database.PoolTask) types.PoolTask {
	task := types.PoolTask{
		Id:          t.Id,
		ExternalId:  t.ExternalId,
		Title:       t.Title,
		AvailableOn: t.AvailableOn,
		Status:      t.Status,
		HelpStatus:  t.HelpStatus,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}

	if t.ClaimedBy.Valid {
		id := int(t.ClaimedBy.Int64)
		task.ClaimedBy = &id
	}
	if t.AssignedTo.Valid {
		id := int(t.AssignedTo.Int64)
		task.AssignedTo = &id
	}
	if t.OriginId.Valid {
		task.OriginId = int(t.OriginId.Int64)
	}
	if t.Notes.Valid {
		task.Notes = t.Notes.String
	}
	if t.CompletedAt.Valid {
		completedAt := t.CompletedAt.Time
		task.CompletedAt = &completedAt
	}

	return task
}

func toTypesHelpRequest(hr database.HelpRequest) types.HelpRequest {
	return types.HelpRequest{
		Id:          hr.Id,
		PoolTaskId:  hr.PoolTaskId,
		RequesterId: hr.RequesterId,
		TargetId:    hr.TargetId,
		Message:     hr.Message,
		Status:      hr.Status,
		CreatedAt:   hr.CreatedAt,
	}
}
