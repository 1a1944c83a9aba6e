package audit

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type kafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaSink publishes entries to an audit topic, keyed by entity id so a
// single order's history stays in partition order. Publish failures are
// logged and dropped.
func NewKafkaSink(brokers, topic string, logger *zap.Logger) Sink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
	}
	return &kafkaSink{writer: w, logger: logger}
}

func (s *kafkaSink) Record(ctx context.Context, e Entry) {
	value, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("marshal audit entry", zap.Error(err))
		return
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Entity + "#" + e.EntityID),
		Value: value,
	})
	if err != nil {
		s.logger.Error("publish audit entry",
			zap.String("action", e.Action),
			zap.String("entity_id", e.EntityID),
			zap.Error(err))
	}
}

func (s *kafkaSink) Close() error {
	return s.writer.Close()
}
