package audit

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type postgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSink appends entries to the audit_logs table. Insert failures
// are logged and dropped; auditing never blocks the transition it records.
func NewPostgresSink(db *sql.DB, logger *zap.Logger) Sink {
	return &postgresSink{db: db, logger: logger}
}

func (s *postgresSink) Record(ctx context.Context, e Entry) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		s.logger.Error("marshal audit details", zap.Error(err))
		return
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, entity, entity_id, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), e.Action, e.Entity, e.EntityID, e.Actor, string(details), e.At,
	)
	if err != nil {
		s.logger.Error("insert audit entry",
			zap.String("action", e.Action),
			zap.String("entity_id", e.EntityID),
			zap.Error(err))
	}
}
