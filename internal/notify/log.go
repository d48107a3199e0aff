package notify

import (
	"context"

	"docnest/internal/model"
	"docnest/pkg/logger"

	"go.uber.org/zap"
)

// LogNotifier writes every due reminder as a structured log record.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notice model.Notice) error {
	logger.WithTrace(ctx, n.logger).Info("REMINDER: document expires soon",
		zap.String("document_id", notice.DocumentID.String()),
		zap.String("expires_on", model.FormatDate(notice.ExpiresOn)),
		zap.Int("days_before", notice.DaysBefore),
		zap.String("user_id", notice.UserID.String()),
	)
	return nil
}
