package events

import (
	"encoding/json"

	"go.uber.org/zap"
)

// LogSink writes every event to the structured log. It doubles as the default
// transport when no downstream consumer is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(event *Event) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload",
			zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	s.logger.Info("event",
		zap.String("event_id", event.ID.String()),
		zap.String("type", string(event.Type)),
		zap.Time("timestamp", event.Timestamp),
		zap.ByteString("payload", payload))
}
