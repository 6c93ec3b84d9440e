package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry is one recorded mutation.
type AuditEntry struct {
	ActorID      string
	Action       string // e.g. "form.create", "acl.upsert"
	ResourceType string
	ResourceID   *string
	Metadata     map[string]any
	IPAddress    string
	UserAgent    string
}

// AuditRecord is an AuditEntry as read back from storage.
type AuditRecord struct {
	AuditEntry
	ID        int64
	CreatedAt time.Time
}

// AuditRepo handles audit log storage
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo creates a new AuditRepo
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// LogAction logs an action to the audit log
func (r *AuditRepo) LogAction(ctx context.Context, entry AuditEntry) error {
	var metadataJSON []byte
	var err error

	if entry.Metadata != nil {
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (
			actor_id, action, resource_type, resource_id,
			metadata, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		entry.ActorID, entry.Action, entry.ResourceType, entry.ResourceID,
		metadataJSON, entry.IPAddress, entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to log action: %w", err)
	}

	return nil
}

// ListByResource returns the newest entries for a resource.
func (r *AuditRepo) ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]AuditRecord, error) {
	query := `
		SELECT id, actor_id, action, resource_type, resource_id, metadata,
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM audit_log
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, resourceType, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	records := make([]AuditRecord, 0)
	for rows.Next() {
		var rec AuditRecord
		var metadata []byte
		if err := rows.Scan(
			&rec.ID, &rec.ActorID, &rec.Action, &rec.ResourceType, &rec.ResourceID, &metadata,
			&rec.IPAddress, &rec.UserAgent, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit log: %w", err)
	}
	return records, nil
}
