package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ai-docchat-be/internal/constant"
	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/entity"
	"ai-docchat-be/internal/repository/contract"
	"ai-docchat-be/internal/repository/memory"
	"ai-docchat-be/internal/repository/specification"
	"ai-docchat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// --- stubs ---

type stubUow struct {
	conversations contract.ConversationRepository
	documents     contract.DocumentRepository
	chunks        contract.DocumentChunkRepository
	messages      contract.ChatMessageRepository
}

func (u *stubUow) Begin(ctx context.Context) error { return nil }
func (u *stubUow) Commit() error                   { return nil }
func (u *stubUow) Rollback() error                 { return nil }
func (u *stubUow) DocumentRepository() contract.DocumentRepository {
	return u.documents
}
func (u *stubUow) DocumentChunkRepository() contract.DocumentChunkRepository {
	return u.chunks
}
func (u *stubUow) ConversationRepository() contract.ConversationRepository {
	return u.conversations
}
func (u *stubUow) ChatMessageRepository() contract.ChatMessageRepository {
	return u.messages
}

type stubFactory struct {
	uow unitofwork.UnitOfWork
}

func (f *stubFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

// Unimplemented methods panic through the embedded nil interface, which is
// what we want: a test touching them is a test with a wrong assumption.
type stubConversationRepo struct {
	contract.ConversationRepository
	findOne func(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
}

func (s *stubConversationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	return s.findOne(ctx, specs...)
}

type stubDocumentRepo struct {
	contract.DocumentRepository
	findAll func(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
}

func (s *stubDocumentRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	return s.findAll(ctx, specs...)
}

type stubMessageRepo struct {
	contract.ChatMessageRepository
	findAll func(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
}

func (s *stubMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	return s.findAll(ctx, specs...)
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func newTestChatService(uow unitofwork.UnitOfWork) *chatService {
	svc := NewChatService(&stubFactory{uow: uow}, nil, memory.NewHistoryCache(), nil, nil, nopLogger{}, "standard")
	return svc.(*chatService)
}

// --- tests ---

func TestNewChatServiceDefaultsInvalidTier(t *testing.T) {
	svc := NewChatService(&stubFactory{}, nil, memory.NewHistoryCache(), nil, nil, nopLogger{}, "turbo")
	assert.Equal(t, "standard", string(svc.(*chatService).defaultTier))
}

func TestAskRejectsForeignConversation(t *testing.T) {
	uow := &stubUow{
		conversations: &stubConversationRepo{
			findOne: func(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
				return nil, nil
			},
		},
	}
	svc := newTestChatService(uow)

	events, err := svc.Ask(context.Background(), uuid.New(), &dto.AskRequest{
		ConversationId: uuid.New(),
		Question:       "what does clause 4 say?",
	})

	assert.Nil(t, events)
	assert.EqualError(t, err, "conversation not found or access denied")
}

func TestResolveDocumentScopeOwnershipMismatch(t *testing.T) {
	requested := []uuid.UUID{uuid.New(), uuid.New()}
	uow := &stubUow{
		documents: &stubDocumentRepo{
			findAll: func(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
				// Only one of the two requested documents belongs to the user
				return []*entity.Document{{Id: requested[0]}}, nil
			},
		},
	}
	svc := newTestChatService(uow)

	ids, err := svc.resolveDocumentScope(context.Background(), uow, uuid.New(), requested)

	assert.Nil(t, ids)
	assert.EqualError(t, err, "one or more documents not found or access denied")
}

func TestResolveDocumentScopeDefaultsToReadyDocuments(t *testing.T) {
	ready := []*entity.Document{
		{Id: uuid.New(), Status: entity.DocumentStatusReady},
		{Id: uuid.New(), Status: entity.DocumentStatusReady},
	}
	var captured []specification.Specification
	uow := &stubUow{
		documents: &stubDocumentRepo{
			findAll: func(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
				captured = specs
				return ready, nil
			},
		},
	}
	svc := newTestChatService(uow)

	ids, err := svc.resolveDocumentScope(context.Background(), uow, uuid.New(), nil)

	assert.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ready[0].Id, ready[1].Id}, ids)

	var statusFiltered bool
	for _, spec := range captured {
		if s, ok := spec.(specification.ByStatus); ok {
			statusFiltered = true
			assert.Equal(t, entity.DocumentStatusReady, s.Status)
		}
	}
	assert.True(t, statusFiltered, "default scope must exclude unprocessed documents")
}

func TestLoadHistoryCachesDatabaseRead(t *testing.T) {
	conversationId := uuid.New()
	dbReads := 0
	uow := &stubUow{
		messages: &stubMessageRepo{
			findAll: func(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
				dbReads++
				return []*entity.ChatMessage{
					{Role: constant.ChatMessageRoleUser, Content: "hello", CreatedAt: time.Now()},
					{Role: constant.ChatMessageRoleAssistant, Content: "hi there", CreatedAt: time.Now()},
				}, nil
			},
		},
	}
	svc := newTestChatService(uow)

	first, err := svc.loadHistory(context.Background(), uow, conversationId)
	assert.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, "hello", first[0].Content)

	second, err := svc.loadHistory(context.Background(), uow, conversationId)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, dbReads)
}

func TestLoadHistoryBoundsWindowOnCacheMiss(t *testing.T) {
	conversationId := uuid.New()
	uow := &stubUow{
		messages: &stubMessageRepo{
			findAll: func(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
				msgs := make([]*entity.ChatMessage, 0, 25)
				for i := 0; i < 25; i++ {
					msgs = append(msgs, &entity.ChatMessage{
						Role:    constant.ChatMessageRoleUser,
						Content: fmt.Sprintf("turn %d", i),
					})
				}
				return msgs, nil
			},
		},
	}
	svc := newTestChatService(uow)

	// First read misses the cache and hits the database; the result must
	// already be bounded, not just the copy the cache keeps.
	history, err := svc.loadHistory(context.Background(), uow, conversationId)
	assert.NoError(t, err)
	assert.Len(t, history, memory.HistoryWindow)
	assert.Equal(t, "turn 5", history[0].Content)
	assert.Equal(t, "turn 24", history[len(history)-1].Content)
}
