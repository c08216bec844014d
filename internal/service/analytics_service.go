package service

import (
	"context"

	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/pkg/events"
	pktNats "ai-docchat-be/pkg/nats"
)

// IAnalyticsService tails the event bus and writes an audit trail of
// pipeline outcomes. Dashboards and alerting read the same stream out of
// process; this consumer exists so every deployment keeps a durable local
// record even without them.
type IAnalyticsService interface {
	Start() error
}

type analyticsService struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewAnalyticsService(subscriber *pktNats.Subscriber, log logger.ILogger) IAnalyticsService {
	return &analyticsService{
		subscriber: subscriber,
		logger:     log,
	}
}

func (s *analyticsService) Start() error {
	return s.subscriber.Subscribe("docchat.>", "analytics-audit", s.handleEvent)
}

func (s *analyticsService) handleEvent(ctx context.Context, event events.Event) error {
	details := map[string]interface{}{
		"event_type": event.EventType(),
	}
	for k, v := range event.Payload() {
		details[k] = v
	}

	switch event.EventType() {
	case events.TypeAnswerFailed:
		s.logger.Warn("Analytics", "Answer pipeline failed", details)
	case events.TypeVerificationSplit:
		s.logger.Warn("Analytics", "Verifier disagreed with primary answer", details)
	default:
		s.logger.Info("Analytics", "Event recorded", details)
	}
	return nil
}
