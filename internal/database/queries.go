package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const poolTaskColumns = "id, external_id, title, available_on, status, claimed_by, assigned_to, help_status, origin_id, notes, completed_at, created_at, updated_at"

func (db *PgCoordRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, role FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}

	return user, err
}

func (db *PgCoordRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (sender_id, receiver_id, body, kind, delivered, read, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, false, $6, $6) "+
			"RETURNING id, sender_id, receiver_id, body, kind, delivered, read, created_at",
		params.SenderId,
		params.ReceiverId,
		params.Body,
		params.Kind,
		params.Delivered,
		params.CreatedAt,
	)

	var m Message
	err := res.Scan(
		&m.Id,
		&m.SenderId,
		&m.ReceiverId,
		&m.Body,
		&m.Kind,
		&m.Delivered,
		&m.Read,
		&m.CreatedAt,
	)

	return m, err
}

func (db *PgCoordRepository) MarkMessageRead(messageId, readerId int) (Message, error) {
	res := db.conn.QueryRow(
		"UPDATE messages SET read = true, updated_at = $3 "+
			"WHERE id = $1 AND receiver_id = $2 "+
			"RETURNING id, sender_id, receiver_id, body, kind, delivered, read, created_at",
		messageId,
		readerId,
		time.Now().UTC(),
	)

	var m Message
	err := res.Scan(
		&m.Id,
		&m.SenderId,
		&m.ReceiverId,
		&m.Body,
		&m.Kind,
		&m.Delivered,
		&m.Read,
		&m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// distinguish a stranger's message from a missing one
		var exists bool
		if err := db.conn.QueryRow("SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)", messageId).Scan(&exists); err != nil {
			return Message{}, err
		}
		if exists {
			return Message{}, ErrNotAuthorized
		}
		return Message{}, ErrNotFound
	}

	return m, err
}

func (db *PgCoordRepository) GetMessagesForUser(userId, sinceId, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, sender_id, receiver_id, body, kind, delivered, read, created_at FROM messages "+
			"WHERE (receiver_id = $1 OR sender_id = $1) AND id > $2 ORDER BY id ASC LIMIT $3",
		userId,
		sinceId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err = rows.Scan(&m.Id, &m.SenderId, &m.ReceiverId, &m.Body, &m.Kind, &m.Delivered, &m.Read, &m.CreatedAt); err != nil {
			break
		}

		messages = append(messages, m)
	}
	return messages, err
}

func (db *PgCoordRepository) CreateBoardTask(params CreateBoardTaskParams) (BoardTask, error) {
	res := db.conn.QueryRow(
		"INSERT INTO tasks (external_id, title, description, board_column, position, created_by, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) "+
			"RETURNING id, external_id, title, description, board_column, position, created_by, created_at, updated_at",
		params.ExternalId,
		params.Title,
		params.Description,
		params.Column,
		params.Position,
		params.CreatedBy,
		time.Now().UTC(),
	)

	return scanBoardTask(res)
}

func (db *PgCoordRepository) UpdateBoardTask(params UpdateBoardTaskParams) (BoardTask, error) {
	var position sql.NullInt64
	if params.Position != nil {
		position = sql.NullInt64{Int64: int64(*params.Position), Valid: true}
	}

	res := db.conn.QueryRow(
		"UPDATE tasks SET title = $2, description = $3, "+
			"board_column = COALESCE(NULLIF($4, ''), board_column), "+
			"position = COALESCE($5, position), updated_at = $6 "+
			"WHERE external_id = $1 "+
			"RETURNING id, external_id, title, description, board_column, position, created_by, created_at, updated_at",
		params.ExternalId,
		params.Title,
		params.Description,
		params.Column,
		position,
		time.Now().UTC(),
	)

	task, err := scanBoardTask(res)
	if errors.Is(err, sql.ErrNoRows) {
		return BoardTask{}, ErrNotFound
	}
	return task, err
}

func (db *PgCoordRepository) DeleteBoardTask(externalId string) error {
	res, err := db.conn.Exec("DELETE FROM tasks WHERE external_id = $1", externalId)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PgCoordRepository) MoveBoardTask(externalId, column string, position int) (BoardTask, error) {
	res := db.conn.QueryRow(
		"UPDATE tasks SET board_column = $2, position = $3, updated_at = $4 "+
			"WHERE external_id = $1 "+
			"RETURNING id, external_id, title, description, board_column, position, created_by, created_at, updated_at",
		externalId,
		column,
		position,
		time.Now().UTC(),
	)

	task, err := scanBoardTask(res)
	if errors.Is(err, sql.ErrNoRows) {
		return BoardTask{}, ErrNotFound
	}
	return task, err
}

func (db *PgCoordRepository) GetBoardTaskByExternalId(externalId string) (BoardTask, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, description, board_column, position, created_by, created_at, updated_at "+
			"FROM tasks WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	task, err := scanBoardTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BoardTask{}, ErrNotFound
	}
	return task, err
}

func (db *PgCoordRepository) GetPoolTask(taskId int) (PoolTask, error) {
	row := db.conn.QueryRow(
		"SELECT "+poolTaskColumns+" FROM pool_tasks WHERE id = $1 LIMIT 1",
		taskId,
	)

	task, err := scanPoolTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PoolTask{}, ErrNotFound
	}
	return task, err
}

func (db *PgCoordRepository) ListAvailablePoolTasks(availableOn string) ([]PoolTask, error) {
	rows, err := db.conn.Query(
		"SELECT "+poolTaskColumns+" FROM pool_tasks "+
			"WHERE available_on = $1 AND status = 'available' ORDER BY id ASC",
		availableOn,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []PoolTask
	for rows.Next() {
		task, err := scanPoolTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ClaimPoolTask performs the available->claimed transition as a single
// conditional write. Two racing claims produce exactly one updated row;
// the loser sees ErrAlreadyClaimed.
func (db *PgCoordRepository) ClaimPoolTask(taskId, accountId int) (PoolTask, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return PoolTask{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"UPDATE pool_tasks SET status = 'claimed', claimed_by = $2, updated_at = $3 "+
			"WHERE id = $1 AND status = 'available' "+
			"RETURNING "+poolTaskColumns,
		taskId,
		accountId,
		time.Now().UTC(),
	)

	var task PoolTask
	task, err = scanPoolTask(res)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if scanErr := db.conn.QueryRow("SELECT EXISTS (SELECT 1 FROM pool_tasks WHERE id = $1)", taskId).Scan(&exists); scanErr != nil {
			return PoolTask{}, scanErr
		}
		if !exists {
			err = ErrNotFound
			return PoolTask{}, ErrNotFound
		}
		err = ErrAlreadyClaimed
		return PoolTask{}, ErrAlreadyClaimed
	}
	if err != nil {
		return PoolTask{}, err
	}

	// move the originating board task along with the claim
	if task.OriginId.Valid {
		_, err = tx.Exec(
			"UPDATE tasks SET board_column = 'in_progress', updated_at = $2 WHERE id = $1",
			task.OriginId.Int64,
			time.Now().UTC(),
		)
		if err != nil {
			return PoolTask{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return PoolTask{}, err
	}

	return task, nil
}

func (db *PgCoordRepository) CreateHelpRequest(params CreateHelpRequestParams) (HelpRequest, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return HelpRequest{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.Exec(
		"UPDATE pool_tasks SET help_status = 'pending', updated_at = $3 "+
			"WHERE id = $1 AND status = 'claimed' AND claimed_by = $2 AND help_status <> 'pending'",
		params.PoolTaskId,
		params.RequesterId,
		time.Now().UTC(),
	)
	if err != nil {
		return HelpRequest{}, err
	}

	var n int64
	n, err = res.RowsAffected()
	if err != nil {
		return HelpRequest{}, err
	}
	if n == 0 {
		err = classifyHelpRequestFailure(db.conn, params.PoolTaskId, params.RequesterId)
		return HelpRequest{}, err
	}

	row := tx.QueryRow(
		"INSERT INTO help_requests (id, pool_task_id, requester_id, target_id, message, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, 'pending', $6, $6) "+
			"RETURNING id, pool_task_id, requester_id, target_id, message, status, created_at",
		params.Id,
		params.PoolTaskId,
		params.RequesterId,
		params.TargetId,
		params.Message,
		time.Now().UTC(),
	)

	var hr HelpRequest
	err = row.Scan(&hr.Id, &hr.PoolTaskId, &hr.RequesterId, &hr.TargetId, &hr.Message, &hr.Status, &hr.CreatedAt)
	if err != nil {
		return HelpRequest{}, err
	}

	if err = tx.Commit(); err != nil {
		return HelpRequest{}, err
	}

	return hr, nil
}

func classifyHelpRequestFailure(conn *sql.DB, taskId, requesterId int) error {
	row := conn.QueryRow("SELECT claimed_by, help_status FROM pool_tasks WHERE id = $1 LIMIT 1", taskId)

	var claimedBy sql.NullInt64
	var helpStatus string
	if err := row.Scan(&claimedBy, &helpStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if !claimedBy.Valid || int(claimedBy.Int64) != requesterId {
		return ErrNotAuthorized
	}
	if helpStatus == "pending" {
		return ErrAlreadyResolved
	}
	return fmt.Errorf("pool task %d not eligible for help request", taskId)
}

func (db *PgCoordRepository) GetHelpRequest(requestId string) (HelpRequest, error) {
	row := db.conn.QueryRow(
		"SELECT id, pool_task_id, requester_id, target_id, message, status, created_at "+
			"FROM help_requests WHERE id = $1 LIMIT 1",
		requestId,
	)

	var hr HelpRequest
	err := row.Scan(&hr.Id, &hr.PoolTaskId, &hr.RequesterId, &hr.TargetId, &hr.Message, &hr.Status, &hr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return HelpRequest{}, ErrNotFound
	}

	return hr, err
}

// AcceptHelpRequest resolves a pending request and hands ownership of the
// task to the target. claimed_by is cleared so the ownership markers stay
// mutually exclusive.
func (db *PgCoordRepository) AcceptHelpRequest(requestId string, targetId int) (PoolTask, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return PoolTask{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	row := tx.QueryRow(
		"UPDATE help_requests SET status = 'accepted', updated_at = $3 "+
			"WHERE id = $1 AND target_id = $2 AND status = 'pending' "+
			"RETURNING pool_task_id",
		requestId,
		targetId,
		time.Now().UTC(),
	)

	var taskId int
	err = row.Scan(&taskId)
	if errors.Is(err, sql.ErrNoRows) {
		err = db.classifyHelpResponseFailure(requestId, targetId)
		return PoolTask{}, err
	}
	if err != nil {
		return PoolTask{}, err
	}

	res := tx.QueryRow(
		"UPDATE pool_tasks SET status = 'assigned', assigned_to = $2, claimed_by = NULL, help_status = 'accepted', updated_at = $3 "+
			"WHERE id = $1 AND status = 'claimed' "+
			"RETURNING "+poolTaskColumns,
		taskId,
		targetId,
		time.Now().UTC(),
	)

	var task PoolTask
	task, err = scanPoolTask(res)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAlreadyResolved
		return PoolTask{}, ErrAlreadyResolved
	}
	if err != nil {
		return PoolTask{}, err
	}

	if err = tx.Commit(); err != nil {
		return PoolTask{}, err
	}

	return task, nil
}

// DeclineHelpRequest resolves a pending request and resets the task's help
// fields so a new request can be made.
func (db *PgCoordRepository) DeclineHelpRequest(requestId string, targetId int) (PoolTask, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return PoolTask{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	row := tx.QueryRow(
		"UPDATE help_requests SET status = 'declined', updated_at = $3 "+
			"WHERE id = $1 AND target_id = $2 AND status = 'pending' "+
			"RETURNING pool_task_id",
		requestId,
		targetId,
		time.Now().UTC(),
	)

	var taskId int
	err = row.Scan(&taskId)
	if errors.Is(err, sql.ErrNoRows) {
		err = db.classifyHelpResponseFailure(requestId, targetId)
		return PoolTask{}, err
	}
	if err != nil {
		return PoolTask{}, err
	}

	res := tx.QueryRow(
		"UPDATE pool_tasks SET help_status = 'none', updated_at = $2 "+
			"WHERE id = $1 "+
			"RETURNING "+poolTaskColumns,
		taskId,
		time.Now().UTC(),
	)

	var task PoolTask
	task, err = scanPoolTask(res)
	if err != nil {
		return PoolTask{}, err
	}

	if err = tx.Commit(); err != nil {
		return PoolTask{}, err
	}

	return task, nil
}

func (db *PgCoordRepository) classifyHelpResponseFailure(requestId string, targetId int) error {
	row := db.conn.QueryRow("SELECT target_id, status FROM help_requests WHERE id = $1 LIMIT 1", requestId)

	var reqTarget int
	var status string
	if err := row.Scan(&reqTarget, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if reqTarget != targetId {
		return ErrNotAuthorized
	}
	return ErrAlreadyResolved
}

// CompletePoolTask transitions a claimed or assigned task to completed.
// Only the current owner may complete it, and completing twice fails.
func (db *PgCoordRepository) CompletePoolTask(taskId, accountId int, notes string) (PoolTask, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return PoolTask{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"UPDATE pool_tasks SET status = 'completed', notes = $3, completed_at = $4, updated_at = $4 "+
			"WHERE id = $1 AND (claimed_by = $2 OR assigned_to = $2) AND status IN ('claimed', 'assigned') "+
			"RETURNING "+poolTaskColumns,
		taskId,
		accountId,
		notes,
		time.Now().UTC(),
	)

	var task PoolTask
	task, err = scanPoolTask(res)
	if errors.Is(err, sql.ErrNoRows) {
		err = db.classifyCompleteFailure(taskId, accountId)
		return PoolTask{}, err
	}
	if err != nil {
		return PoolTask{}, err
	}

	if task.OriginId.Valid {
		_, err = tx.Exec(
			"UPDATE tasks SET board_column = 'done', updated_at = $2 WHERE id = $1",
			task.OriginId.Int64,
			time.Now().UTC(),
		)
		if err != nil {
			return PoolTask{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return PoolTask{}, err
	}

	return task, nil
}

func (db *PgCoordRepository) classifyCompleteFailure(taskId, accountId int) error {
	row := db.conn.QueryRow("SELECT status, claimed_by, assigned_to FROM pool_tasks WHERE id = $1 LIMIT 1", taskId)

	var status string
	var claimedBy, assignedTo sql.NullInt64
	if err := row.Scan(&status, &claimedBy, &assignedTo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	owner := claimedBy.Valid && int(claimedBy.Int64) == accountId ||
		assignedTo.Valid && int(assignedTo.Int64) == accountId
	if !owner {
		return ErrNotAuthorized
	}
	return ErrAlreadyResolved
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBoardTask(row rowScanner) (BoardTask, error) {
	var t BoardTask
	err := row.Scan(
		&t.Id,
		&t.ExternalId,
		&t.Title,
		&t.Description,
		&t.Column,
		&t.Position,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func scanPoolTask(row rowScanner) (PoolTask, error) {
	var t PoolTask
	err := row.Scan(
		&t.Id,
		&t.ExternalId,
		&t.Title,
		&t.AvailableOn,
		&t.Status,
		&t.ClaimedBy,
		&t.AssignedTo,
		&t.HelpStatus,
		&t.OriginId,
		&t.Notes,
		&t.CompletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}
