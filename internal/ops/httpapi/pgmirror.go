package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/riftlabs/controlplane/internal/eventlog"
)

// DecisionMirror writes every decision event to a Postgres table in
// addition to the append-only JSONL log, giving operators SQL access to
// gate/scaling history without replaying the log files. It is optional:
// a nil *sqlx.DB disables mirroring entirely and Insert becomes a no-op.
type DecisionMirror struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDecisionMirror wraps db; timeout bounds every individual insert.
func NewDecisionMirror(db *sqlx.DB, timeout time.Duration) *DecisionMirror {
	return &DecisionMirror{db: db, timeout: timeout}
}

// EnsureSchema creates the mirror table if it does not already exist. It is
// safe to call on every process start.
func (m *DecisionMirror) EnsureSchema(ctx context.Context) error {
	if m.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	const ddl = `
		CREATE TABLE IF NOT EXISTS decision_events (
			id         BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			scope      TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			kind       TEXT NOT NULL,
			approved   BOOLEAN NOT NULL,
			reason     TEXT,
			detail     JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	_, err := m.db.ExecContext(ctx, ddl)
	if err != nil {
		return fmt.Errorf("decision mirror: ensure schema: %w", err)
	}
	return nil
}

// Insert mirrors a single decision event. A nil db makes this a no-op so
// callers don't need to branch on whether Postgres mirroring is configured.
func (m *DecisionMirror) Insert(ctx context.Context, event eventlog.DecisionEvent) error {
	if m.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ts, err := time.Parse(time.RFC3339, event.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	detailJSON, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("decision mirror: marshal detail: %w", err)
	}

	const query = `
		INSERT INTO decision_events (ts, scope, symbol, kind, approved, reason, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := m.db.ExecContext(ctx, query,
		ts, event.Scope, event.Symbol, event.Kind, event.Approved, event.Reason, detailJSON,
	); err != nil {
		return fmt.Errorf("decision mirror: insert: %w", err)
	}
	return nil
}

// RecentBySymbol returns the most recent mirrored decisions for symbol, most
// recent first, capped at limit rows.
func (m *DecisionMirror) RecentBySymbol(ctx context.Context, symbol string, limit int) ([]eventlog.DecisionEvent, error) {
	if m.db == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	const query = `
		SELECT ts, scope, symbol, kind, approved, COALESCE(reason, ''), detail
		FROM decision_events
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`
	rows, err := m.db.QueryxContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("decision mirror: query: %w", err)
	}
	defer rows.Close()

	var out []eventlog.DecisionEvent
	for rows.Next() {
		var (
			ts       time.Time
			scopeStr string
			sym      string
			kind     string
			approved bool
			reason   string
			detail   []byte
		)
		if err := rows.Scan(&ts, &scopeStr, &sym, &kind, &approved, &reason, &detail); err != nil {
			return nil, fmt.Errorf("decision mirror: scan: %w", err)
		}
		event := eventlog.DecisionEvent{
			Envelope:  eventlog.NewEnvelope(),
			Timestamp: ts.UTC().Format(time.RFC3339),
			Scope:     scopeStr,
			Symbol:    sym,
			Kind:      kind,
			Approved:  approved,
			Reason:    reason,
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &event.Detail)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
