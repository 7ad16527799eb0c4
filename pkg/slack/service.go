package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// WorkflowFailedInput contains data for a workflow failure notification.
type WorkflowFailedInput struct {
	WorkflowID     string
	SagaID         string
	TemplateName   string
	Error          string
	DurationMS     int64
	CompletedSteps []string
}

// SLATransitionInput contains data for an SLA transition notification.
type SLATransitionInput struct {
	WorkflowID string
	SagaID     string
	Old        string
	New        string
	DurationMS int64
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyWorkflowFailed posts a workflow failure notification, threading
// onto any earlier message for the same saga.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyWorkflowFailed(ctx context.Context, input WorkflowFailedInput) {
	if s == nil {
		return
	}

	threadTS := s.findSagaThread(ctx, input.SagaID, input.WorkflowID)
	blocks := BuildWorkflowFailedMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("Failed to send workflow failure notification",
			"workflow_id", input.WorkflowID,
			"saga_id", input.SagaID,
			"error", err)
	}
}

// NotifySLATransition posts an SLA status notification. The first
// notification for a saga starts the thread later messages attach to.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifySLATransition(ctx context.Context, input SLATransitionInput) {
	if s == nil {
		return
	}

	threadTS := s.findSagaThread(ctx, input.SagaID, input.WorkflowID)
	blocks := BuildSLAMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Error("Failed to send SLA notification",
			"workflow_id", input.WorkflowID,
			"saga_id", input.SagaID,
			"sla_status", input.New,
			"error", err)
	}
}

func (s *Service) findSagaThread(ctx context.Context, sagaID, workflowID string) string {
	if sagaID == "" {
		return ""
	}
	threadTS, err := s.client.FindMessageByFingerprint(ctx, sagaFingerprint(sagaID))
	if err != nil {
		s.logger.Warn("Failed to find Slack thread for saga",
			"workflow_id", workflowID,
			"saga_id", sagaID,
			"error", err)
	}
	return threadTS
}
