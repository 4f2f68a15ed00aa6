package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// ========== Event Log Methods ==========

// CreateEventLog creates an audit log entry
func (s *PostgresStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO event_logs (
            id, created_at, tenant_id, type, level, description, details
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.TenantID, event.Type, event.Level,
		event.Description, event.Details,
	)

	return err
}

// ListEventLogs lists audit log entries
func (s *PostgresStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	where := " WHERE 1=1"
	var args []interface{}

	addFilter := func(clause string, value interface{}) {
		args = append(args, value)
		where += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}

	if filters.TenantID != nil {
		addFilter("tenant_id =", *filters.TenantID)
	}
	if filters.Type != nil {
		addFilter("type =", *filters.Type)
	}
	if filters.Level != nil {
		addFilter("level =", *filters.Level)
	}
	if filters.StartTime != nil {
		addFilter("created_at >=", *filters.StartTime)
	}
	if filters.EndTime != nil {
		addFilter("created_at <=", *filters.EndTime)
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM event_logs"+where, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	query := `SELECT id, created_at, tenant_id, type, level, description, details
              FROM event_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.EventLog
	for rows.Next() {
		event := &models.EventLog{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.TenantID, &event.Type,
			&event.Level, &event.Description, &event.Details,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, count, nil
}
