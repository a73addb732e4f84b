package types

import (
	"encoding/json"
	"time"
)

type User struct {
	Id       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Message is a direct message between two users. LocalId is the
// client-minted throwaway id used to reconcile optimistic copies;
// Id is assigned by the store on the durable write.
type Message struct {
	Id         int       `json:"id,omitempty"`
	LocalId    string    `json:"local_id,omitempty"`
	SenderId   int       `json:"sender_id"`
	ReceiverId int       `json:"receiver_id"`
	Body       string    `json:"body"`
	Kind       string    `json:"kind"`
	Delivered  bool      `json:"delivered"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	MessageKindText       = "text"
	MessageKindAttachment = "attachment"
)

// BoardTask is a task on the shared task board.
type BoardTask struct {
	Id          int       `json:"id"`
	ExternalId  string    `json:"external_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Column      string    `json:"column"`
	Position    int       `json:"position"`
	CreatedBy   int       `json:"created_by"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// PoolTask is a claimable unit of work scoped to an availability date.
// ClaimedBy and AssignedTo are mutually exclusive ownership markers.
type PoolTask struct {
	Id          int        `json:"id"`
	ExternalId  string     `json:"external_id"`
	Title       string     `json:"title"`
	AvailableOn string     `json:"available_on"`
	Status      string     `json:"status"`
	ClaimedBy   *int       `json:"claimed_by,omitempty"`
	AssignedTo  *int       `json:"assigned_to,omitempty"`
	HelpStatus  string     `json:"help_status"`
	OriginId    int        `json:"origin_id,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

const (
	PoolTaskAvailable = "available"
	PoolTaskClaimed   = "claimed"
	PoolTaskAssigned  = "assigned"
	PoolTaskCompleted = "completed"
)

const (
	HelpStatusNone     = "none"
	HelpStatusPending  = "pending"
	HelpStatusAccepted = "accepted"
	HelpStatusDeclined = "declined"
)

type HelpRequest struct {
	Id          string    `json:"id"`
	PoolTaskId  int       `json:"pool_task_id"`
	RequesterId int       `json:"requester_id"`
	TargetId    int       `json:"target_id"`
	Message     string    `json:"message,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Conflict carries both sides of a concurrent edit so the client can
// offer a keep-mine/take-theirs choice. The server never merges.
type Conflict struct {
	TaskId string          `json:"task_id"`
	Yours  json.RawMessage `json:"yours,omitempty"`
	Theirs BoardTask       `json:"theirs"`
}
