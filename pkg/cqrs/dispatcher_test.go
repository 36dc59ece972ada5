package cqrs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testCommand struct {
	*BaseCommand
	TestData string
}

func newTestCommand(aggregateID string, testData string) *testCommand {
	return &testCommand{
		BaseCommand: NewBaseCommand("TestCommand", aggregateID, "TestAggregate", testData),
		TestData:    testData,
	}
}

type testCommandHandler struct {
	handleFunc func(ctx context.Context, command Command) (*CommandResult, error)
}

func (h *testCommandHandler) Handle(ctx context.Context, command Command) (*CommandResult, error) {
	if h.handleFunc != nil {
		return h.handleFunc(ctx, command)
	}
	return &CommandResult{
		Success:     true,
		AggregateID: command.AggregateID(),
		Version:     1,
		Events:      []EventMessage{},
	}, nil
}

func (h *testCommandHandler) CanHandle(commandType string) bool { return commandType == "TestCommand" }
func (h *testCommandHandler) GetHandlerName() string             { return "TestHandler" }

func TestNewInMemoryCommandDispatcher(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()

	assert.NotNil(t, dispatcher)
	assert.Equal(t, 0, dispatcher.GetHandlerCount())
	assert.Empty(t, dispatcher.GetRegisteredHandlers())
}

func TestCommandDispatcher_RegisterHandler(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()
	handler := &testCommandHandler{}

	err := dispatcher.RegisterHandler("TestCommand", handler)

	assert.NoError(t, err)
	assert.Equal(t, 1, dispatcher.GetHandlerCount())
	assert.True(t, dispatcher.HasHandler("TestCommand"))
	assert.Contains(t, dispatcher.GetRegisteredHandlers(), "TestCommand")
}

func TestCommandDispatcher_RegisterHandler_EmptyCommandType(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()
	handler := &testCommandHandler{}

	err := dispatcher.RegisterHandler("", handler)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "command type cannot be empty")
}

func TestCommandDispatcher_RegisterHandler_NilHandler(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()

	err := dispatcher.RegisterHandler("TestCommand", nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "handler cannot be nil")
}

func TestCommandDispatcher_RegisterHandler_Duplicate(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()

	err1 := dispatcher.RegisterHandler("TestCommand", &testCommandHandler{})
	err2 := dispatcher.RegisterHandler("TestCommand", &testCommandHandler{})

	assert.NoError(t, err1)
	assert.Error(t, err2)
	assert.Contains(t, err2.Error(), "handler already registered")
}

func TestCommandDispatcher_UnregisterHandler(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()
	dispatcher.RegisterHandler("TestCommand", &testCommandHandler{})

	err := dispatcher.UnregisterHandler("TestCommand")

	assert.NoError(t, err)
	assert.Equal(t, 0, dispatcher.GetHandlerCount())
	assert.False(t, dispatcher.HasHandler("TestCommand"))
}

func TestCommandDispatcher_UnregisterHandler_NotFound(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()

	err := dispatcher.UnregisterHandler("NonExistentCommand")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestCommandDispatcher_Dispatch_Success(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()
	dispatcher.RegisterHandler("TestCommand", &testCommandHandler{})
	command := newTestCommand("test-id", "test data")

	result, err := dispatcher.Dispatch(context.Background(), command)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "test-id", result.AggregateID)
	assert.Equal(t, 1, result.Version)
}

func TestCommandDispatcher_Dispatch_NilCommand(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()

	result, err := dispatcher.Dispatch(context.Background(), nil)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "command cannot be nil")
}

func TestCommandDispatcher_Dispatch_InvalidCommand(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()
	command := newTestCommand("", "test data")

	result, err := dispatcher.Dispatch(context.Background(), command)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "command validation failed")
}

func TestCommandDispatcher_Dispatch_NoHandler(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()
	command := newTestCommand("test-id", "test data")

	result, err := dispatcher.Dispatch(context.Background(), command)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "no handler found")
}

func TestCommandDispatcher_Dispatch_HandlerError(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()
	handler := &testCommandHandler{
		handleFunc: func(ctx context.Context, command Command) (*CommandResult, error) {
			return &CommandResult{
				Success: false,
				Error:   NewCQRSError(ErrCodeCommandValidation.String(), "handler error", nil),
			}, nil
		},
	}
	dispatcher.RegisterHandler("TestCommand", handler)
	command := newTestCommand("test-id", "test data")

	result, err := dispatcher.Dispatch(context.Background(), command)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "handler error")
}

func TestCommandDispatcher_Clear(t *testing.T) {
	dispatcher := NewInMemoryCommandDispatcher()
	dispatcher.RegisterHandler("TestCommand", &testCommandHandler{})
	assert.Equal(t, 1, dispatcher.GetHandlerCount())

	dispatcher.Clear()

	assert.Equal(t, 0, dispatcher.GetHandlerCount())
	assert.Empty(t, dispatcher.GetRegisteredHandlers())
}

type testQuery struct {
	*BaseQuery
}

func newTestQuery(criteria string) *testQuery {
	return &testQuery{BaseQuery: NewBaseQuery("TestQuery", criteria)}
}

type testQueryHandler struct {
	handleFunc func(ctx context.Context, query Query) (*QueryResult, error)
}

func (h *testQueryHandler) Handle(ctx context.Context, query Query) (*QueryResult, error) {
	if h.handleFunc != nil {
		return h.handleFunc(ctx, query)
	}
	return &QueryResult{Success: true, Data: query.GetCriteria()}, nil
}

func (h *testQueryHandler) CanHandle(queryType string) bool { return queryType == "TestQuery" }
func (h *testQueryHandler) GetHandlerName() string           { return "TestHandler" }

func TestNewInMemoryQueryDispatcher(t *testing.T) {
	dispatcher := NewInMemoryQueryDispatcher()

	assert.NotNil(t, dispatcher)
	assert.Equal(t, 0, dispatcher.GetHandlerCount())
	assert.Empty(t, dispatcher.GetRegisteredHandlers())
}

func TestQueryDispatcher_RegisterHandler(t *testing.T) {
	dispatcher := NewInMemoryQueryDispatcher()
	handler := &testQueryHandler{}

	err := dispatcher.RegisterHandler("TestQuery", handler)

	assert.NoError(t, err)
	assert.Equal(t, 1, dispatcher.GetHandlerCount())
	assert.True(t, dispatcher.HasHandler("TestQuery"))
}

func TestQueryDispatcher_RegisterHandler_Duplicate(t *testing.T) {
	dispatcher := NewInMemoryQueryDispatcher()

	err1 := dispatcher.RegisterHandler("TestQuery", &testQueryHandler{})
	err2 := dispatcher.RegisterHandler("TestQuery", &testQueryHandler{})

	assert.NoError(t, err1)
	assert.Error(t, err2)
	assert.Contains(t, err2.Error(), "handler already registered")
}

func TestQueryDispatcher_UnregisterHandler_NotFound(t *testing.T) {
	dispatcher := NewInMemoryQueryDispatcher()

	err := dispatcher.UnregisterHandler("NonExistentQuery")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestQueryDispatcher_Dispatch_Success(t *testing.T) {
	dispatcher := NewInMemoryQueryDispatcher()
	dispatcher.RegisterHandler("TestQuery", &testQueryHandler{})
	query := newTestQuery("some-criteria")

	result, err := dispatcher.Dispatch(context.Background(), query)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "some-criteria", result.Data)
}

func TestQueryDispatcher_Dispatch_NilQuery(t *testing.T) {
	dispatcher := NewInMemoryQueryDispatcher()

	result, err := dispatcher.Dispatch(context.Background(), nil)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error.Error(), "query cannot be nil")
}

func TestQueryDispatcher_Dispatch_NoHandler(t *testing.T) {
	dispatcher := NewInMemoryQueryDispatcher()
	query := newTestQuery("some-criteria")

	result, err := dispatcher.Dispatch(context.Background(), query)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error.Error(), "no handler found")
}

func TestQueryDispatcher_Clear(t *testing.T) {
	dispatcher := NewInMemoryQueryDispatcher()
	dispatcher.RegisterHandler("TestQuery", &testQueryHandler{})

	dispatcher.Clear()

	assert.Equal(t, 0, dispatcher.GetHandlerCount())
}
