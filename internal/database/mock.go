package database

import (
	"github.com/stretchr/testify/mock"
)

type MockCoordRepository struct {
	mock.Mock
}

func (m *MockCoordRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockCoordRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockCoordRepository) MarkMessageRead(messageId, readerId int) (Message, error) {
	args := m.Called(messageId, readerId)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockCoordRepository) GetMessagesForUser(userId, sinceId, limit int) ([]Message, error) {
	args := m.Called(userId, sinceId, limit)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockCoordRepository) CreateBoardTask(params CreateBoardTaskParams) (BoardTask, error) {
	args := m.Called(params)
	return args.Get(0).(BoardTask), args.Error(1)
}

func (m *MockCoordRepository) UpdateBoardTask(params UpdateBoardTaskParams) (BoardTask, error) {
	args := m.Called(params)
	return args.Get(0).(BoardTask), args.Error(1)
}

func (m *MockCoordRepository) DeleteBoardTask(externalId string) error {
	args := m.Called(externalId)
	return args.Error(0)
}

func (m *MockCoordRepository) MoveBoardTask(externalId, column string, position int) (BoardTask, error) {
	args := m.Called(externalId, column, position)
	return args.Get(0).(BoardTask), args.Error(1)
}

func (m *MockCoordRepository) GetBoardTaskByExternalId(externalId string) (BoardTask, error) {
	args := m.Called(externalId)
	return args.Get(0).(BoardTask), args.Error(1)
}

func (m *MockCoordRepository) GetPoolTask(taskId int) (PoolTask, error) {
	args := m.Called(taskId)
	return args.Get(0).(PoolTask), args.Error(1)
}

func (m *MockCoordRepository) ListAvailablePoolTasks(availableOn string) ([]PoolTask, error) {
	args := m.Called(availableOn)
	return args.Get(0).([]PoolTask), args.Error(1)
}

func (m *MockCoordRepository) ClaimPoolTask(taskId, accountId int) (PoolTask, error) {
	args := m.Called(taskId, accountId)
	return args.Get(0).(PoolTask), args.Error(1)
}

func (m *MockCoordRepository) CreateHelpRequest(params CreateHelpRequestParams) (HelpRequest, error) {
	args := m.Called(params)
	return args.Get(0).(HelpRequest), args.Error(1)
}

func (m *MockCoordRepository) GetHelpRequest(requestId string) (HelpRequest, error) {
	args := m.Called(requestId)
	return args.Get(0).(HelpRequest), args.Error(1)
}

func (m *MockCoordRepository) AcceptHelpRequest(requestId string, targetId int) (PoolTask, error) {
	args := m.Called(requestId, targetId)
	return args.Get(0).(PoolTask), args.Error(1)
}

func (m *MockCoordRepository) DeclineHelpRequest(requestId string, targetId int) (PoolTask, error) {
	args := m.Called(requestId, targetId)
	return args.Get(0).(PoolTask), args.Error(1)
}

func (m *MockCoordRepository) CompletePoolTask(taskId, accountId int, notes string) (PoolTask, error) {
	args := m.Called(taskId, accountId, notes)
	return args.Get(0).(PoolTask), args.Error(1)
}
