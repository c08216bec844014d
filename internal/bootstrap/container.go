package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"ai-docchat-be/internal/config"
	"ai-docchat-be/internal/controller"
	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/internal/repository/memory"
	"ai-docchat-be/internal/repository/unitofwork"
	"ai-docchat-be/internal/service"
	"ai-docchat-be/internal/websocket"
	"ai-docchat-be/pkg/embedding"
	"ai-docchat-be/pkg/embedding/jina"
	"ai-docchat-be/pkg/llm/factory"
	pktNats "ai-docchat-be/pkg/nats"
	"ai-docchat-be/pkg/pipeline"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Model providers
	var embeddingProvider embedding.EmbeddingProvider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	case "jina":
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	default:
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// One provider instance per pipeline role so the verifier and the
	// reconciler stay independent second and third opinions.
	generatorProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.GeneratorModel, cfg.Ai.OllamaBaseURL, cfg.Keys.HuggingFace)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize generator provider: %v", err)
	}
	verifierProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.VerifierModel, cfg.Ai.OllamaBaseURL, cfg.Keys.HuggingFace)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize verifier provider: %v", err)
	}
	reconcilerProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.ReconcilerModel, cfg.Ai.OllamaBaseURL, cfg.Keys.HuggingFace)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize reconciler provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (generator=%s verifier=%s reconciler=%s)",
		cfg.Ai.LLMProvider, cfg.Ai.GeneratorModel, cfg.Ai.VerifierModel, cfg.Ai.ReconcilerModel)

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 5. Pipeline
	orchestrator := pipeline.NewOrchestrator(
		generatorProvider,
		verifierProvider,
		reconcilerProvider,
		embeddingProvider,
		service.NewSearchStore(uowFactory),
		pipeline.Models{
			Generator:  cfg.Ai.GeneratorModel,
			Verifier:   cfg.Ai.VerifierModel,
			Reconciler: cfg.Ai.ReconcilerModel,
		},
		initPipelineLogger(),
	)
	orchestrator.RetrieveLimit = cfg.Ai.RetrieveLimit
	orchestrator.KeepLimit = cfg.Ai.RerankKeep

	// 6. Services
	historyCache := memory.NewHistoryCache()

	publisherService := service.NewPublisherService(cfg.Keys.IngestTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.IngestTopic,
		uowFactory,
		embeddingProvider,
		natsPub,
	)

	documentService := service.NewDocumentService(uowFactory, publisherService, natsPub)
	chatService := service.NewChatService(
		uowFactory,
		orchestrator,
		historyCache,
		wsHub,
		natsPub,
		sysLogger,
		pipeline.Tier(cfg.Ai.DefaultTier),
	)

	// Audit trail of bus events (answer outcomes, ingestion, deletions)
	if natsSub != nil {
		analyticsService := service.NewAnalyticsService(natsSub, sysLogger)
		go func() {
			if err := analyticsService.Start(); err != nil {
				log.Printf("[WARN] Analytics consumer failed to start: %v", err)
			}
		}()
	}

	// 7. Controllers
	return &Container{
		ChatController:     controller.NewChatController(chatService, wsHub),
		DocumentController: controller.NewDocumentController(documentService),

		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
	}
}

// initPipelineLogger writes the pipeline's stage trace to its own file so
// prompt-sized lines stay out of the structured app log.
func initPipelineLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "pipeline.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
