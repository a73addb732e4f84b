package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labops/coord/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the single intake envelope for a connection. Exactly one
// variant field is set per message.
type ClientMessage struct {
	BaseMessage
	Send        *SendMessage `json:"send,omitempty"`
	MarkRead    *MarkRead    `json:"mark_read,omitempty"`
	Typing      *Typing      `json:"typing,omitempty"`
	TaskCreate  *TaskCreate  `json:"task_create,omitempty"`
	TaskUpdate  *TaskUpdate  `json:"task_update,omitempty"`
	TaskDelete  *TaskDelete  `json:"task_delete,omitempty"`
	TaskMove    *TaskMove    `json:"task_move,omitempty"`
	Editing     *Editing     `json:"editing,omitempty"`
	StopEditing *StopEditing `json:"stop_editing,omitempty"`
	Heartbeat   *Heartbeat   `json:"heartbeat,omitempty"`
}

type SendMessage struct {
	LocalId    string `json:"local_id"`
	ReceiverId int    `json:"receiver_id"`
	Body       string `json:"body"`
	Kind       string `json:"kind,omitempty"`
}

type MarkRead struct {
	MessageId int `json:"message_id"`
}

type Typing struct {
	PeerId int  `json:"peer_id"`
	Active bool `json:"active"`
}

type TaskCreate struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Column      string `json:"column,omitempty"`
	Position    int    `json:"position,omitempty"`
}

// TaskUpdate's Column and Position are optional; omitted fields keep their
// stored values instead of being zeroed.
type TaskUpdate struct {
	TaskId      string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Column      string `json:"column,omitempty"`
	Position    *int   `json:"position,omitempty"`
}

type TaskDelete struct {
	TaskId string `json:"task_id"`
}

type TaskMove struct {
	TaskId   string `json:"task_id"`
	Column   string `json:"column"`
	Position int    `json:"position"`
}

type Editing struct {
	TaskId string          `json:"task_id"`
	Draft  json.RawMessage `json:"draft,omitempty"`
}

type StopEditing struct {
	TaskId string `json:"task_id"`
}

type Heartbeat struct{}

type ServerMessage struct {
	BaseMessage
	Response    *Response `json:"response,omitempty"`
	Event       *Event    `json:"event,omitempty"`
	SkipSession *Session  `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// Event is the server-push envelope. Exactly one field is set.
type Event struct {
	OnlineUsers       *OnlineUsers       `json:"online_users,omitempty"`
	UserOnline        *types.User        `json:"user_online,omitempty"`
	UserOffline       *types.User        `json:"user_offline,omitempty"`
	MessageSent       *types.Message     `json:"message_sent,omitempty"`
	NewMessage        *types.Message     `json:"new_message,omitempty"`
	MessageConfirmed  *MessageConfirmed  `json:"message_confirmed,omitempty"`
	MessageFailed     *MessageFailed     `json:"message_failed,omitempty"`
	MessageRead       *MessageRead       `json:"message_read,omitempty"`
	Typing            *TypingEvent       `json:"typing,omitempty"`
	TaskCreated       *types.BoardTask   `json:"task_created,omitempty"`
	TaskUpdated       *types.BoardTask   `json:"task_updated,omitempty"`
	TaskDeleted       *TaskDeleted       `json:"task_deleted,omitempty"`
	TaskMoved         *types.BoardTask   `json:"task_moved,omitempty"`
	TaskEditing       *EditingEvent      `json:"task_editing,omitempty"`
	TaskStopEditing   *EditingEvent      `json:"task_stop_editing,omitempty"`
	Conflict          *types.Conflict    `json:"conflict,omitempty"`
	PoolTaskClaimed   *types.PoolTask    `json:"pool_task_claimed,omitempty"`
	HelpRequested     *types.HelpRequest `json:"help_requested,omitempty"`
	HelpResponse      *HelpResponseEvent `json:"help_response,omitempty"`
	PoolTaskCompleted *types.PoolTask    `json:"pool_task_completed,omitempty"`
}

type OnlineUsers struct {
	Users []types.User `json:"users"`
}

// MessageConfirmed carries the local->durable id mapping clients use to
// replace their optimistic copy in place.
type MessageConfirmed struct {
	LocalId string        `json:"local_id"`
	Message types.Message `json:"message"`
}

type MessageFailed struct {
	LocalId string `json:"local_id"`
	Reason  string `json:"reason"`
}

type MessageRead struct {
	MessageId int `json:"message_id"`
	ReaderId  int `json:"reader_id"`
}

type TypingEvent struct {
	UserId int  `json:"user_id"`
	Active bool `json:"active"`
}

type TaskDeleted struct {
	TaskId string `json:"task_id"`
}

type EditingEvent struct {
	TaskId string     `json:"task_id"`
	User   types.User `json:"user"`
}

type HelpResponseEvent struct {
	RequestId string         `json:"request_id"`
	Accepted  bool           `json:"accepted"`
	Task      types.PoolTask `json:"task"`
}

func newEvent(ev *Event) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: ev,
	}
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrNotFoundResponse(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "not found",
		},
	}
}

func ErrNotAuthorizedResponse(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "not authorized",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
