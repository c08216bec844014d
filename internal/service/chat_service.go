package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-docchat-be/internal/constant"
	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/entity"
	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/internal/repository/memory"
	"ai-docchat-be/internal/repository/specification"
	"ai-docchat-be/internal/repository/unitofwork"
	"ai-docchat-be/internal/websocket"
	"ai-docchat-be/pkg/events"
	"ai-docchat-be/pkg/llm"
	pktNats "ai-docchat-be/pkg/nats"
	"ai-docchat-be/pkg/pipeline"

	"github.com/google/uuid"
)

// titleLen caps the auto-generated conversation title.
const titleLen = 60

type IChatService interface {
	CreateConversation(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error)
	GetAllConversations(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllConversationsResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	DeleteConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error
	CanAccessConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) (bool, error)

	// Ask validates the request, records the user turn and starts one
	// pipeline run. The returned stream is the caller's to drain; the
	// service persists the outcome and mirrors events to watchers.
	Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (<-chan pipeline.Event, error)
}

type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	orchestrator   *pipeline.Orchestrator
	historyCache   *memory.HistoryCache
	wsHub          *websocket.Hub
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
	defaultTier    pipeline.Tier
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	orchestrator *pipeline.Orchestrator,
	historyCache *memory.HistoryCache,
	wsHub *websocket.Hub,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
	defaultTier pipeline.Tier,
) IChatService {
	if !pipeline.ValidTier(defaultTier) {
		defaultTier = pipeline.TierStandard
	}
	return &chatService{
		uowFactory:     uowFactory,
		orchestrator:   orchestrator,
		historyCache:   historyCache,
		wsHub:          wsHub,
		eventPublisher: eventPublisher,
		logger:         log,
		defaultTier:    defaultTier,
	}
}

func (s *chatService) CreateConversation(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	title := req.Title
	if title == "" {
		title = constant.DefaultConversationTitle
	}

	conversation := entity.Conversation{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     title,
		CreatedAt: time.Now(),
	}

	if err := uow.ConversationRepository().Create(ctx, &conversation); err != nil {
		return nil, err
	}

	return &dto.CreateConversationResponse{Id: conversation.Id}, nil
}

func (s *chatService) GetAllConversations(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllConversationsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllConversationsResponse, 0, len(conversations))
	for _, c := range conversations {
		response = append(response, &dto.GetAllConversationsResponse{
			Id:        c.Id,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}

	return response, nil
}

func (s *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("conversation not found or access denied")
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	messageIds := make([]uuid.UUID, len(messages))
	for i, msg := range messages {
		messageIds[i] = msg.Id
	}

	citations, err := uow.ChatMessageRepository().FindCitationsByMessageIds(ctx, messageIds)
	if err != nil {
		return nil, err
	}

	documentNames, err := s.resolveDocumentNames(ctx, uow, citations)
	if err != nil {
		return nil, err
	}

	citationsByMsgId := make(map[uuid.UUID][]dto.CitationDTO)
	for _, c := range citations {
		citationsByMsgId[c.ChatMessageId] = append(citationsByMsgId[c.ChatMessageId], dto.CitationDTO{
			DocumentId:   c.DocumentId,
			DocumentName: documentNames[c.DocumentId],
			ChunkId:      c.ChunkId,
			Page:         c.Page,
			Score:        c.Score,
			Excerpt:      c.Excerpt,
		})
	}

	resp := make([]*dto.GetChatHistoryResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, &dto.GetChatHistoryResponse{
			Id:             msg.Id,
			Role:           msg.Role,
			Content:        msg.Content,
			Tier:           msg.Tier,
			ModelUsed:      msg.ModelUsed,
			Confidence:     msg.Confidence,
			Verification:   msg.Verification,
			Reconciliation: msg.Reconciliation,
			LatencyMs:      msg.LatencyMs,
			CreatedAt:      msg.CreatedAt,
			Citations:      citationsByMsgId[msg.Id],
		})
	}

	return resp, nil
}

func (s *chatService) resolveDocumentNames(ctx context.Context, uow unitofwork.UnitOfWork, citations []*entity.ChatCitation) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string)
	if len(citations) == 0 {
		return names, nil
	}

	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(citations))
	for _, c := range citations {
		if !seen[c.DocumentId] {
			seen[c.DocumentId] = true
			ids = append(ids, c.DocumentId)
		}
	}

	documents, err := uow.DocumentRepository().FindAll(ctx, specification.ByIDs{IDs: ids})
	if err != nil {
		return nil, err
	}
	for _, d := range documents {
		names[d.Id] = d.Name
	}
	return names, nil
}

// CanAccessConversation is the websocket handshake's ownership check.
func (s *chatService) CanAccessConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return false, err
	}
	return conversation != nil, nil
}

func (s *chatService) DeleteConversation(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if conversation == nil {
		return nil
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByConversationId(ctx, conversationId); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, conversationId); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	s.historyCache.Invalidate(conversationId)
	return nil
}

func (s *chatService) Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (<-chan pipeline.Event, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: req.ConversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("conversation not found or access denied")
	}

	documentIds, err := s.resolveDocumentScope(ctx, uow, userId, req.DocumentIds)
	if err != nil {
		return nil, err
	}

	tier := pipeline.Tier(req.Tier)
	if tier == "" {
		tier = s.defaultTier
	}

	history, err := s.loadHistory(ctx, uow, req.ConversationId)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	userMessage := entity.ChatMessage{
		Id:             uuid.New(),
		ConversationId: req.ConversationId,
		Role:           constant.ChatMessageRoleUser,
		Content:        req.Question,
		Tier:           string(tier),
		CreatedAt:      now,
	}
	if err := uow.ChatMessageRepository().Create(ctx, &userMessage); err != nil {
		return nil, err
	}

	if conversation.Title == constant.DefaultConversationTitle {
		s.retitleConversation(ctx, uow, conversation, req.Question)
	}

	query := pipeline.Query{
		Text:           req.Question,
		ConversationId: req.ConversationId,
		DocumentIds:    documentIds,
		History:        history,
		Tier:           tier,
	}

	runEvents := s.orchestrator.Run(ctx, query)
	out := make(chan pipeline.Event, 16)

	go s.pump(req.ConversationId, userId, req.Question, tier, history, runEvents, out)

	return out, nil
}

// pump drains the pipeline stream, forwarding every event to the HTTP
// caller and the websocket watchers, then persists the terminal outcome
// on a fresh context since the request context ends with the stream.
func (s *chatService) pump(
	conversationId uuid.UUID,
	userId uuid.UUID,
	question string,
	tier pipeline.Tier,
	history []llm.Message,
	in <-chan pipeline.Event,
	out chan<- pipeline.Event,
) {
	var done *pipeline.DonePayload
	var failure *pipeline.ErrorPayload

	for evt := range in {
		switch data := evt.Data.(type) {
		case pipeline.DonePayload:
			d := data
			done = &d
		case pipeline.ErrorPayload:
			e := data
			failure = &e
		}
		s.wsHub.Publish(conversationId, evt)
		out <- evt
	}
	close(out)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case done != nil:
		s.persistAnswer(ctx, conversationId, userId, question, tier, history, done)
	case failure != nil:
		s.publishEvent(ctx, events.TypeAnswerFailed, map[string]interface{}{
			"conversation_id": conversationId,
			"user_id":         userId,
			"tier":            string(tier),
			"message":         failure.Message,
			"latency_ms":      failure.LatencyMs,
		})
	default:
		// Cancelled mid-run. The user turn is already recorded; there is
		// no answer to keep.
		s.logger.Warn("ChatService", "Pipeline run ended without terminal event", map[string]interface{}{
			"conversation_id": conversationId,
		})
	}
}

func (s *chatService) persistAnswer(
	ctx context.Context,
	conversationId uuid.UUID,
	userId uuid.UUID,
	question string,
	tier pipeline.Tier,
	history []llm.Message,
	done *pipeline.DonePayload,
) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	assistantMessage := entity.ChatMessage{
		Id:             uuid.New(),
		ConversationId: conversationId,
		Role:           constant.ChatMessageRoleAssistant,
		Content:        done.Response,
		Tier:           string(tier),
		ModelUsed:      done.ModelUsed,
		Confidence:     done.Confidence,
		LatencyMs:      done.LatencyMs,
		CreatedAt:      time.Now(),
	}
	if done.Verification != nil {
		if raw, err := json.Marshal(done.Verification); err == nil {
			assistantMessage.Verification = raw
		}
	}
	if done.Reconciliation != nil {
		if raw, err := json.Marshal(done.Reconciliation); err == nil {
			assistantMessage.Reconciliation = raw
		}
	}

	citations := make([]*entity.ChatCitation, 0, len(done.Citations))
	for _, c := range done.Citations {
		citations = append(citations, &entity.ChatCitation{
			Id:            uuid.New(),
			ChatMessageId: assistantMessage.Id,
			DocumentId:    c.DocumentId,
			ChunkId:       c.ChunkId,
			Page:          c.Page,
			Score:         c.Score,
			Excerpt:       c.Excerpt,
		})
	}

	if err := uow.Begin(ctx); err != nil {
		s.logger.Error("ChatService", "Failed to begin answer transaction", map[string]interface{}{"error": err.Error()})
		return
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().Create(ctx, &assistantMessage); err != nil {
		s.logger.Error("ChatService", "Failed to persist assistant message", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := uow.ChatMessageRepository().CreateCitations(ctx, citations); err != nil {
		s.logger.Error("ChatService", "Failed to persist citations", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := uow.Commit(); err != nil {
		s.logger.Error("ChatService", "Failed to commit answer transaction", map[string]interface{}{"error": err.Error()})
		return
	}

	s.historyCache.Put(conversationId, append(history,
		llm.Message{Role: constant.ChatMessageRoleUser, Content: question},
		llm.Message{Role: constant.ChatMessageRoleAssistant, Content: done.Response},
	))

	s.publishEvent(ctx, events.TypeAnswerCompleted, map[string]interface{}{
		"conversation_id": conversationId,
		"user_id":         userId,
		"tier":            string(tier),
		"model_used":      done.ModelUsed,
		"confidence":      done.Confidence,
		"latency_ms":      done.LatencyMs,
		"citation_count":  len(done.Citations),
	})

	if done.Verification != nil && !done.Verification.Agrees {
		s.publishEvent(ctx, events.TypeVerificationSplit, map[string]interface{}{
			"conversation_id": conversationId,
			"user_id":         userId,
			"tier":            string(tier),
			"verifier_model":  done.Verification.Model,
			"confidence":      done.Verification.Confidence,
			"reconciled":      done.Reconciliation != nil,
		})
	}
}

func (s *chatService) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.NewBaseEvent(eventType, data)
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("ChatService", "Failed to publish analytics event", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}

// resolveDocumentScope verifies ownership of an explicit selection, or
// widens an empty one to every ready document the user owns.
func (s *chatService) resolveDocumentScope(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, requested []uuid.UUID) ([]uuid.UUID, error) {
	if len(requested) > 0 {
		documents, err := uow.DocumentRepository().FindAll(ctx,
			specification.ByIDs{IDs: requested},
			specification.UserOwnedBy{UserID: userId},
		)
		if err != nil {
			return nil, err
		}
		if len(documents) != len(requested) {
			return nil, fmt.Errorf("one or more documents not found or access denied")
		}
		return requested, nil
	}

	documents, err := uow.DocumentRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.ByStatus{Status: entity.DocumentStatusReady},
	)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(documents))
	for _, d := range documents {
		ids = append(ids, d.Id)
	}
	return ids, nil
}

func (s *chatService) loadHistory(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID) ([]llm.Message, error) {
	if cached, found := s.historyCache.Get(conversationId); found {
		return cached, nil
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	// Same window on a miss as the cache serves on a hit, or long
	// conversations feed the pipeline an unbounded prompt every time the
	// cache entry expires.
	if len(history) > memory.HistoryWindow {
		history = history[len(history)-memory.HistoryWindow:]
	}

	s.historyCache.Put(conversationId, history)
	return history, nil
}

func (s *chatService) retitleConversation(ctx context.Context, uow unitofwork.UnitOfWork, conversation *entity.Conversation, question string) {
	title := question
	if runes := []rune(title); len(runes) > titleLen {
		title = string(runes[:titleLen]) + "..."
	}

	now := time.Now()
	conversation.Title = title
	conversation.UpdatedAt = &now

	if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
		s.logger.Warn("ChatService", "Failed to retitle conversation", map[string]interface{}{
			"conversation_id": conversation.Id,
			"error":           err.Error(),
		})
	}
}
