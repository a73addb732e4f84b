package server

import (
	"errors"

	"github.com/labops/coord/internal/database"
	"github.com/teris-io/shortid"
)

func (cs *CoordServer) handleTaskCreate(s *Session, msg *ClientMessage) {
	req := msg.TaskCreate
	if req.Title == "" {
		s.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	column := req.Column
	if column == "" {
		column = "todo"
	}

	sid, err := shortid.Generate()
	if err != nil {
		cs.log.Println("shortid:", err)
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}

	task, err := cs.db.CreateBoardTask(database.CreateBoardTaskParams{
		ExternalId:  sid,
		Title:       req.Title,
		Description: req.Description,
		Column:      column,
		Position:    req.Position,
		CreatedBy:   s.user.Id,
	})
	if err != nil {
		cs.log.Println("CreateBoardTask:", err)
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}

	created := toTypesBoardTask(task)
	s.queueMessage(NoErrOK(msg.Id, created))

	ev := newEvent(&Event{TaskCreated: &created})
	ev.SkipSession = s
	cs.registry.Broadcast(ev)
}

// handleTaskUpdate is the trigger point for conflict notification: after
// the update commits and broadcasts, any other identity still mid-edit on
// the task receives a conflict payload instead of a silent overwrite.
func (cs *CoordServer) handleTaskUpdate(s *Session, msg *ClientMessage) {
	req := msg.TaskUpdate
	if req.TaskId == "" || req.Title == "" {
		s.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	task, err := cs.db.UpdateBoardTask(database.UpdateBoardTaskParams{
		ExternalId:  req.TaskId,
		Title:       req.Title,
		Description: req.Description,
		Column:      req.Column,
		Position:    req.Position,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.queueMessage(ErrNotFoundResponse(msg.Id))
			return
		}
		cs.log.Println("UpdateBoardTask:", err)
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}

	updated := toTypesBoardTask(task)
	s.queueMessage(NoErrOK(msg.Id, updated))

	ev := newEvent(&Event{TaskUpdated: &updated})
	ev.SkipSession = s
	cs.registry.Broadcast(ev)

	cs.notifyConflicts(s.user.Id, updated)
}

func (cs *CoordServer) handleTaskDelete(s *Session, msg *ClientMessage) {
	req := msg.TaskDelete
	if req.TaskId == "" {
		s.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if err := cs.db.DeleteBoardTask(req.TaskId); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.queueMessage(ErrNotFoundResponse(msg.Id))
			return
		}
		cs.log.Println("DeleteBoardTask:", err)
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}

	cs.editing.ClearTask(req.TaskId)
	s.queueMessage(NoErrOK(msg.Id, nil))

	ev := newEvent(&Event{TaskDeleted: &TaskDeleted{TaskId: req.TaskId}})
	ev.SkipSession = s
	cs.registry.Broadcast(ev)
}

func (cs *CoordServer) handleTaskMove(s *Session, msg *ClientMessage) {
	req := msg.TaskMove
	if req.TaskId == "" || req.Column == "" {
		s.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	task, err := cs.db.MoveBoardTask(req.TaskId, req.Column, req.Position)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.queueMessage(ErrNotFoundResponse(msg.Id))
			return
		}
		cs.log.Println("MoveBoardTask:", err)
		s.queueMessage(ErrInternalError(msg.Id))
		return
	}

	moved := toTypesBoardTask(task)
	s.queueMessage(NoErrOK(msg.Id, moved))

	ev := newEvent(&Event{TaskMoved: &moved})
	ev.SkipSession = s
	cs.registry.Broadcast(ev)
}
