package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Entry is one append-only record: a state transition or a payment outcome.
type Entry struct {
	Action   string            `json:"action"`
	Entity   string            `json:"entity"`
	EntityID string            `json:"entity_id"`
	Actor    string            `json:"actor"`
	Details  map[string]string `json:"details,omitempty"`
	At       time.Time         `json:"at"`
}

// Sink consumes audit entries fire-and-forget: implementations log their own
// failures and never surface them to the caller.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// ActorSystem marks scheduler-driven transitions.
const ActorSystem = "system"

type logSink struct {
	logger *zap.Logger
}

// NewLogSink writes entries to the structured log. The default sink when no
// Kafka or database target is configured.
func NewLogSink(logger *zap.Logger) Sink {
	return &logSink{logger: logger}
}

func (s *logSink) Record(_ context.Context, e Entry) {
	s.logger.Info("audit",
		zap.String("action", e.Action),
		zap.String("entity", e.Entity),
		zap.String("entity_id", e.EntityID),
		zap.String("actor", e.Actor),
		zap.Any("details", e.Details),
		zap.Time("at", e.At),
	)
}
