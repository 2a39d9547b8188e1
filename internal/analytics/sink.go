package analytics

import (
	"context"

	"go.uber.org/zap"
)

// Sink receives analytics events on the consumer side.
type Sink interface {
	LinkCreated(ctx context.Context, event *LinkCreatedEvent) error
	LinkVisited(ctx context.Context, event *LinkVisitedEvent) error
}

// LogSink writes events to the structured log. It is the default sink for
// deployments without a dedicated analytics backend.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) LinkCreated(_ context.Context, event *LinkCreatedEvent) error {
	s.logger.Info("link created",
		zap.String("code", event.Code),
		zap.String("originalUrl", event.OriginalURL),
		zap.Bool("isAffiliate", event.IsAffiliate),
		zap.Time("createdAt", event.CreatedAt),
	)

	return nil
}

func (s *LogSink) LinkVisited(_ context.Context, event *LinkVisitedEvent) error {
	s.logger.Info("link visited",
		zap.String("code", event.Code),
		zap.String("device", event.DeviceType),
		zap.Float64("revenue", event.Revenue),
		zap.Time("clickedAt", event.ClickedAt),
	)

	return nil
}
