package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/stats"
	"github.com/labops/coord/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, app *CoordApp, method, path string, body any, userId int) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userId != 0 {
		req.Header.Set("Authorization", "Bearer "+testToken(t, userId))
	}

	rec := httptest.NewRecorder()
	app.mux.Handler.ServeHTTP(rec, req)
	return rec
}

func TestSendMessage(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", "MessagesDelivered").Times(1)
	app := newTestCoordApp(t, db, su)

	localId := uuid.NewString()
	db.On("CreateMessage", mock.Anything).Return(database.Message{
		Id:         42,
		SenderId:   7,
		ReceiverId: 2,
		Body:       "running late",
		Kind:       types.MessageKindText,
	}, nil)

	rec := doRequest(t, app, http.MethodPost, "/api/messages", SendMessageRequest{
		LocalId:    localId,
		ReceiverId: 2,
		Body:       "running late",
	}, 7)

	assert.Equal(t, http.StatusCreated, rec.Code, "expected created")

	var msg types.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, 42, msg.Id, "expected the durable id")
	assert.Equal(t, localId, msg.LocalId, "expected the caller's local id echoed back")

	su.AssertExpectations(t)
}

func TestSendMessageValidation(t *testing.T) {
	testCases := []struct {
		name string
		body SendMessageRequest
	}{
		{
			name: "missing local id",
			body: SendMessageRequest{ReceiverId: 2, Body: "hi"},
		},
		{
			name: "missing receiver",
			body: SendMessageRequest{LocalId: uuid.NewString(), Body: "hi"},
		},
		{
			name: "missing body",
			body: SendMessageRequest{LocalId: uuid.NewString(), ReceiverId: 2},
		},
		{
			name: "malformed local id",
			body: SendMessageRequest{LocalId: "not-a-uuid", ReceiverId: 2, Body: "hi"},
		},
		{
			name: "unknown kind",
			body: SendMessageRequest{LocalId: uuid.NewString(), ReceiverId: 2, Body: "hi", Kind: "voice"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockCoordRepository{}
			defer db.AssertExpectations(t)

			su := &stats.MockStatsUpdater{}
			app := newTestCoordApp(t, db, su)

			rec := doRequest(t, app, http.MethodPost, "/api/messages", tc.body, 7)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "expected bad request")
		})
	}
}

func TestSendMessageStoreFailure(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", "MessagesFailed").Times(1)
	app := newTestCoordApp(t, db, su)

	db.On("CreateMessage", mock.Anything).
		Return(database.Message{}, errors.New("connection refused"))

	rec := doRequest(t, app, http.MethodPost, "/api/messages", SendMessageRequest{
		LocalId:    uuid.NewString(),
		ReceiverId: 2,
		Body:       "hi",
	}, 7)

	assert.Equal(t, http.StatusBadGateway, rec.Code, "expected bad gateway on a failed durable write")
}

func TestSendMessageUnauthorized(t *testing.T) {
	db := &database.MockCoordRepository{}
	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	rec := doRequest(t, app, http.MethodPost, "/api/messages", SendMessageRequest{
		LocalId:    uuid.NewString(),
		ReceiverId: 2,
		Body:       "hi",
	}, 0)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expected unauthorized without a credential")
}

func TestGetMessages(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("GetMessagesForUser", 7, 40, 10).Return([]database.Message{
		{Id: 41, SenderId: 2, ReceiverId: 7, Body: "first"},
		{Id: 42, SenderId: 2, ReceiverId: 7, Body: "second"},
	}, nil)

	rec := doRequest(t, app, http.MethodGet, "/api/messages?since=40&limit=10", nil, 7)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")

	var messages []types.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&messages))
	require.Len(t, messages, 2, "expected both missed messages")
	assert.Equal(t, 41, messages[0].Id)
}

func TestGetMessagesBadQuery(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	rec := doRequest(t, app, http.MethodGet, "/api/messages?since=abc", nil, 7)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "expected bad request for a non-numeric cursor")
}

func TestListPoolTasks(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("ListAvailablePoolTasks", "2025-03-01").Return([]database.PoolTask{
		{Id: 10, Title: "restock aisle 4", Status: types.PoolTaskAvailable},
	}, nil)

	rec := doRequest(t, app, http.MethodGet, "/api/pool?date=2025-03-01", nil, 7)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")

	var tasks []types.PoolTask
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, types.PoolTaskAvailable, tasks[0].Status)
}

func TestGetPoolTask(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("GetPoolTask", 10).Return(database.PoolTask{
		Id:        10,
		Title:     "restock aisle 4",
		Status:    types.PoolTaskClaimed,
		ClaimedBy: sql.NullInt64{Int64: 3, Valid: true},
	}, nil)

	rec := doRequest(t, app, http.MethodGet, "/api/pool/10", nil, 7)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")

	var task types.PoolTask
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
	assert.Equal(t, 10, task.Id)
	assert.Equal(t, types.PoolTaskClaimed, task.Status)
	require.NotNil(t, task.ClaimedBy)
	assert.Equal(t, 3, *task.ClaimedBy)
}

func TestGetPoolTaskNotFound(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("GetPoolTask", 99).Return(database.PoolTask{}, database.ErrNotFound)

	rec := doRequest(t, app, http.MethodGet, "/api/pool/99", nil, 7)
	assert.Equal(t, http.StatusNotFound, rec.Code, "expected not found")
}

func TestGetPoolTaskBadId(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	rec := doRequest(t, app, http.MethodGet, "/api/pool/abc", nil, 7)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "expected bad request for a non-numeric id")
}

func TestClaimTask(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("ClaimPoolTask", 10, 7).Return(database.PoolTask{
		Id:        10,
		Status:    types.PoolTaskClaimed,
		ClaimedBy: sql.NullInt64{Int64: 7, Valid: true},
	}, nil)

	rec := doRequest(t, app, http.MethodPost, "/api/pool/claim", ClaimTaskRequest{TaskId: 10}, 7)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")

	var task types.PoolTask
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
	assert.Equal(t, types.PoolTaskClaimed, task.Status)
	require.NotNil(t, task.ClaimedBy)
	assert.Equal(t, 7, *task.ClaimedBy)
}

func TestClaimTaskLostRace(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", "ClaimsRejected").Times(1)
	app := newTestCoordApp(t, db, su)

	db.On("ClaimPoolTask", 10, 7).Return(database.PoolTask{}, database.ErrAlreadyClaimed)

	rec := doRequest(t, app, http.MethodPost, "/api/pool/claim", ClaimTaskRequest{TaskId: 10}, 7)

	assert.Equal(t, http.StatusConflict, rec.Code, "expected conflict for a lost race")

	var apiErr ApiError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, "task no longer available", apiErr.Message, "expected the race-specific message")
}

func TestClaimTaskNotFound(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("ClaimPoolTask", 99, 7).Return(database.PoolTask{}, database.ErrNotFound)

	rec := doRequest(t, app, http.MethodPost, "/api/pool/claim", ClaimTaskRequest{TaskId: 99}, 7)
	assert.Equal(t, http.StatusNotFound, rec.Code, "expected not found")
}

func TestRequestHelp(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", "HelpRequests").Times(1)
	app := newTestCoordApp(t, db, su)

	db.On("GetAccountById", 2).Return(database.User{Id: 2, Username: "target"}, nil)
	db.On("CreateHelpRequest", mock.Anything).Return(database.HelpRequest{
		Id:          "req-1",
		PoolTaskId:  10,
		RequesterId: 7,
		TargetId:    2,
		Status:      types.HelpStatusPending,
	}, nil)

	rec := doRequest(t, app, http.MethodPost, "/api/pool/help", RequestHelpRequest{
		TaskId:   10,
		ToUserId: 2,
		Message:  "can you take over?",
	}, 7)

	assert.Equal(t, http.StatusCreated, rec.Code, "expected created")

	var hr types.HelpRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hr))
	assert.Equal(t, types.HelpStatusPending, hr.Status)
}

func TestRespondToHelp(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("GetHelpRequest", "req-1").Return(database.HelpRequest{
		Id:       "req-1",
		TargetId: 7,
		Status:   types.HelpStatusPending,
	}, nil)
	db.On("AcceptHelpRequest", "req-1", 7).Return(database.PoolTask{
		Id:         10,
		Status:     types.PoolTaskAssigned,
		AssignedTo: sql.NullInt64{Int64: 7, Valid: true},
	}, nil)

	rec := doRequest(t, app, http.MethodPost, "/api/pool/respond", RespondHelpRequest{
		RequestId: "req-1",
		Accept:    true,
	}, 7)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")
}

func TestRespondToHelpNotTarget(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("GetHelpRequest", "req-1").Return(database.HelpRequest{
		Id:       "req-1",
		TargetId: 2,
		Status:   types.HelpStatusPending,
	}, nil)

	rec := doRequest(t, app, http.MethodPost, "/api/pool/respond", RespondHelpRequest{
		RequestId: "req-1",
		Accept:    true,
	}, 7)

	assert.Equal(t, http.StatusForbidden, rec.Code, "expected forbidden for a non-target responder")
}

func TestCompleteTask(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("CompletePoolTask", 10, 7, "all done").Return(database.PoolTask{
		Id:     10,
		Status: types.PoolTaskCompleted,
		Notes:  sql.NullString{String: "all done", Valid: true},
	}, nil)

	rec := doRequest(t, app, http.MethodPost, "/api/pool/complete", CompleteTaskRequest{
		TaskId: 10,
		Notes:  "all done",
	}, 7)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")

	var task types.PoolTask
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
	assert.Equal(t, types.PoolTaskCompleted, task.Status)
	assert.Equal(t, "all done", task.Notes)
}

func TestCompleteTaskAlreadyCompleted(t *testing.T) {
	db := &database.MockCoordRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	app := newTestCoordApp(t, db, su)

	db.On("CompletePoolTask", 10, 7, "").Return(database.PoolTask{}, database.ErrAlreadyResolved)

	rec := doRequest(t, app, http.MethodPost, "/api/pool/complete", CompleteTaskRequest{TaskId: 10}, 7)
	assert.Equal(t, http.StatusConflict, rec.Code, "expected conflict: completion is not idempotent")
}
