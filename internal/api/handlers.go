package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/server"
	"github.com/labops/coord/internal/types"
)

type SendMessageRequest struct {
	LocalId    string `json:"local_id"`
	ReceiverId int    `json:"receiver_id"`
	Body       string `json:"body"`
	Kind       string `json:"kind,omitempty"`
}

type ClaimTaskRequest struct {
	TaskId int `json:"task_id"`
}

type RequestHelpRequest struct {
	TaskId   int    `json:"task_id"`
	ToUserId int    `json:"to_user_id"`
	Message  string `json:"message,omitempty"`
}

type RespondHelpRequest struct {
	RequestId string `json:"request_id"`
	Accept    bool   `json:"accept"`
}

type CompleteTaskRequest struct {
	TaskId int    `json:"task_id"`
	Notes  string `json:"notes,omitempty"`
}

func (s *CoordApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// mapCoordError turns state-predicate violations into client-visible
// outcomes: a lost claim race reads "task no longer available", not a
// generic error.
func mapCoordError(err error) *ApiError {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, database.ErrAlreadyClaimed):
		return NewConflictError("task no longer available")
	case errors.Is(err, database.ErrAlreadyResolved):
		return NewConflictError("request already resolved")
	case errors.Is(err, database.ErrNotAuthorized):
		return NewForbiddenError()
	case errors.Is(err, server.ErrDeliveryFailed):
		return NewBadGatewayError(err)
	default:
		return NewInternalServerError(err)
	}
}

// sendMessage is the synchronous fallback for senders without a live
// connection. Same durable-write path as the socket protocol, same
// confirmed-or-failed outcome, no optimistic phase.
func (s *CoordApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if uuid.Validate(req.LocalId) != nil || req.ReceiverId == 0 || req.Body == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if req.Kind != "" && req.Kind != types.MessageKindText && req.Kind != types.MessageKindAttachment {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.cs.SendDirect(userId, req.LocalId, req.ReceiverId, req.Body, req.Kind)
	if err != nil {
		s.log.Println("send message:", err)
		errResp := mapCoordError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

// getMessages is the pull path a reconnecting client uses to fetch
// messages it missed while offline.
func (s *CoordApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var since, limit int
	var err error

	sinceStr := r.URL.Query().Get("since")
	if sinceStr != "" {
		since, err = strconv.Atoi(sinceStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	messages, err := s.cs.MissedMessages(userId, since, limit)
	if err != nil {
		s.log.Println("get messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *CoordApp) listPoolTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	tasks, err := s.cs.AvailableTasks(date)
	if err != nil {
		s.log.Println("list pool tasks:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, tasks)
}

func (s *CoordApp) getPoolTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	taskId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	task, err := s.cs.PoolTask(taskId)
	if err != nil {
		errResp := mapCoordError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, task)
}

func (s *CoordApp) claimTask(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req ClaimTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	task, err := s.cs.ClaimTask(req.TaskId, userId)
	if err != nil {
		errResp := mapCoordError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, task)
}

func (s *CoordApp) requestHelp(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RequestHelpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskId == 0 || req.ToUserId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	hr, err := s.cs.RequestHelp(req.TaskId, userId, req.ToUserId, req.Message)
	if err != nil {
		errResp := mapCoordError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, hr)
}

func (s *CoordApp) respondToHelp(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RespondHelpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	task, err := s.cs.RespondToHelp(req.RequestId, userId, req.Accept)
	if err != nil {
		errResp := mapCoordError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, task)
}

func (s *CoordApp) completeTask(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CompleteTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	task, err := s.cs.CompleteTask(req.TaskId, userId, req.Notes)
	if err != nil {
		errResp := mapCoordError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, task)
}

func (s *CoordApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	session := server.NewSession(types.User{
		Id:       user.Id,
		Username: user.Username,
		Role:     user.Role,
	}, conn, s.cs, s.log)

	s.cs.Registry().Admit(session)
	go session.Write()
	go session.Read()
}
