package database

type CoordRepository interface {
	GetAccountById(accountId int) (User, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	MarkMessageRead(messageId, readerId int) (Message, error)
	GetMessagesForUser(userId int, sinceId, limit int) ([]Message, error)
	CreateBoardTask(params CreateBoardTaskParams) (BoardTask, error)
	UpdateBoardTask(params UpdateBoardTaskParams) (BoardTask, error)
	DeleteBoardTask(externalId string) error
	MoveBoardTask(externalId, column string, position int) (BoardTask, error)
	GetBoardTaskByExternalId(externalId string) (BoardTask, error)
	GetPoolTask(taskId int) (PoolTask, error)
	ListAvailablePoolTasks(availableOn string) ([]PoolTask, error)
	ClaimPoolTask(taskId, accountId int) (PoolTask, error)
	CreateHelpRequest(params CreateHelpRequestParams) (HelpRequest, error)
	GetHelpRequest(requestId string) (HelpRequest, error)
	AcceptHelpRequest(requestId string, targetId int) (PoolTask, error)
	DeclineHelpRequest(requestId string, targetId int) (PoolTask, error)
	CompletePoolTask(taskId, accountId int, notes string) (PoolTask, error)
}
