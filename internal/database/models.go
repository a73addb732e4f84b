package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id         int
	SenderId   int
	ReceiverId int
	Body       string
	Kind       string
	Delivered  bool
	Read       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type BoardTask struct {
	Id          int
	ExternalId  string
	Title       string
	Description string
	Column      string
	Position    int
	CreatedBy   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type PoolTask struct {
	Id          int
	ExternalId  string
	Title       string
	AvailableOn string
	Status      string
	ClaimedBy   sql.NullInt64
	AssignedTo  sql.NullInt64
	HelpStatus  string
	OriginId    sql.NullInt64
	Notes       sql.NullString
	CompletedAt sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type HelpRequest struct {
	Id          string
	PoolTaskId  int
	RequesterId int
	TargetId    int
	Message     string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateMessageParams struct {
	SenderId   int
	ReceiverId int
	Body       string
	Kind       string
	Delivered  bool
	CreatedAt  time.Time
}

type CreateBoardTaskParams struct {
	ExternalId  string
	Title       string
	Description string
	Column      string
	Position    int
	CreatedBy   int
}

// UpdateBoardTaskParams: an empty Column or nil Position leaves the stored
// value untouched.
type UpdateBoardTaskParams struct {
	ExternalId  string
	Title       string
	Description string
	Column      string
	Position    *int
}

type CreateHelpRequestParams struct {
	Id          string
	PoolTaskId  int
	RequesterId int
	TargetId    int
	Message     string
}
