package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/messaging"
	"cosmic-coffee/internal/models"
)

// Consumer delivers message bodies to a handler until ctx is done.
type Consumer interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber prints order status notifications
type Subscriber struct {
	consumer Consumer
	logger   *logger.Logger
	out      io.Writer
}

// NewSubscriber creates a new notification subscriber writing to stdout
func NewSubscriber(consumer Consumer, log *logger.Logger) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   log,
		out:      os.Stdout,
	}
}

// Run consumes notifications until ctx is done, then closes the consumer.
func (s *Subscriber) Run(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.handleNotification)
	if cerr := s.consumer.Close(); cerr != nil {
		s.logger.Warn("consumer_close_failed", "Failed to close consumer", requestID, map[string]interface{}{
			"error": cerr.Error(),
		})
	}
	if err != nil {
		s.logger.Error("consumer_failed", "Notification consumer failed", requestID, err, nil)
		return err
	}

	s.logger.Info("graceful_shutdown", "Notification subscriber stopped", requestID, nil)
	return nil
}

// handleNotification processes incoming status update notifications
func (s *Subscriber) handleNotification(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var update models.StatusUpdateMessage
	if err := json.Unmarshal(body, &update); err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification message", requestID, err, nil)
		return fmt.Errorf("%w: failed to parse notification: %v", messaging.ErrDiscard, err)
	}
	if update.OrderID == "" {
		return fmt.Errorf("%w: notification without order id", messaging.ErrDiscard)
	}

	if _, err := fmt.Fprintln(s.out, formatNotification(update)); err != nil {
		return fmt.Errorf("failed to print notification: %w", err)
	}

	s.logger.Info("notification_displayed", "Notification displayed to user", requestID, map[string]interface{}{
		"order_id":   update.OrderID,
		"old_status": update.OldStatus,
		"new_status": update.NewStatus,
		"changed_by": update.ChangedBy,
		"timestamp":  update.Timestamp.Format("2006-01-02 15:04:05"),
	})
	return nil
}

// formatNotification creates a human-readable notification message
func formatNotification(update models.StatusUpdateMessage) string {
	timestamp := update.Timestamp.Format("2006-01-02 15:04:05")

	switch models.OrderStatus(update.NewStatus) {
	case models.StatusConfirmed:
		return fmt.Sprintf("📝 [%s] Order %s has been confirmed.", timestamp, update.OrderID)
	case models.StatusPreparing:
		return fmt.Sprintf("☕ [%s] Order %s is now being prepared.", timestamp, update.OrderID)
	case models.StatusReady:
		return fmt.Sprintf("✅ [%s] Order %s is ready for pickup!", timestamp, update.OrderID)
	case models.StatusCompleted:
		return fmt.Sprintf("🎉 [%s] Order %s has been completed. Thank you for visiting Cosmic Coffee!", timestamp, update.OrderID)
	case models.StatusCancelled:
		return fmt.Sprintf("❌ [%s] Order %s has been cancelled.", timestamp, update.OrderID)
	default:
		return fmt.Sprintf("📋 [%s] Order %s status changed from '%s' to '%s' by %s.",
			timestamp, update.OrderID, update.OldStatus, update.NewStatus, update.ChangedBy)
	}
}
