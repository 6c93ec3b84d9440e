package repo

import (
	"context"
	"fmt"

	"forms-api/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AclRepository stores per-form, per-group grants.
//
// The (form_id, group_id) unique constraint is the only concurrency control:
// every write is a single statement, so concurrent upserts on one pair
// resolve to last-writer-wins on one row.
type AclRepository struct {
	pool *pgxpool.Pool
}

// NewAclRepository creates a new AclRepository instance.
func NewAclRepository(pool *pgxpool.Pool) *AclRepository {
	return &AclRepository{pool: pool}
}

const aclColumns = `a.form_id::text, a.group_id::text, g.name, a.can_view, a.can_edit, a.can_delete, a.updated_at`

// Get returns the entry for (formID, groupID) or a domain.ErrNotFound error.
func (r *AclRepository) Get(ctx context.Context, formID, groupID string) (*domain.AclEntry, error) {
	query := `
		SELECT ` + aclColumns + `
		FROM form_acl a
		JOIN groups g ON g.id = a.group_id
		WHERE a.form_id = $1 AND a.group_id = $2
	`

	var e domain.AclEntry
	err := r.pool.QueryRow(ctx, query, formID, groupID).Scan(
		&e.FormID, &e.GroupID, &e.GroupName, &e.CanView, &e.CanEdit, &e.CanDelete, &e.UpdatedAt,
	)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("acl entry", formID+"/"+groupID)
		}
		return nil, fmt.Errorf("query acl entry: %w", err)
	}
	return &e, nil
}

// Upsert resolves ref to a group and replaces all three flags for
// (formID, group). Missing group or form yields a domain.ErrNotFound error.
func (r *AclRepository) Upsert(ctx context.Context, formID string, ref domain.GroupRef, flags domain.AclFlags) (*domain.AclEntry, error) {
	group, err := resolveGroup(ctx, r.pool, ref)
	if err != nil {
		return nil, err
	}

	entry, err := upsertAcl(ctx, r.pool, formID, group.ID, flags)
	if err != nil {
		return nil, err
	}
	entry.GroupName = group.Name
	return entry, nil
}

// GrantAll upserts (formID, groupID) with every flag set.
func (r *AclRepository) GrantAll(ctx context.Context, formID, groupID string) error {
	_, err := upsertAcl(ctx, r.pool, formID, groupID, domain.AllFlags)
	return err
}

// GrantAllTx is GrantAll running on q, typically the form-creation transaction.
func GrantAllTx(ctx context.Context, q DBTX, formID, groupID string) error {
	_, err := upsertAcl(ctx, q, formID, groupID, domain.AllFlags)
	return err
}

func upsertAcl(ctx context.Context, q DBTX, formID, groupID string, flags domain.AclFlags) (*domain.AclEntry, error) {
	query := `
		INSERT INTO form_acl (form_id, group_id, can_view, can_edit, can_delete, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (form_id, group_id) DO UPDATE SET
			can_view   = EXCLUDED.can_view,
			can_edit   = EXCLUDED.can_edit,
			can_delete = EXCLUDED.can_delete,
			updated_at = NOW()
		RETURNING form_id::text, group_id::text, can_view, can_edit, can_delete, updated_at
	`

	var e domain.AclEntry
	err := q.QueryRow(ctx, query, formID, groupID, flags.CanView, flags.CanEdit, flags.CanDelete).Scan(
		&e.FormID, &e.GroupID, &e.CanView, &e.CanEdit, &e.CanDelete, &e.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) || isNotFound(err) {
			return nil, domain.NewNotFoundError("form", formID)
		}
		return nil, fmt.Errorf("upsert acl entry: %w", err)
	}
	return &e, nil
}

// Remove deletes the entry and reports whether a row existed.
func (r *AclRepository) Remove(ctx context.Context, formID, groupID string) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM form_acl WHERE form_id = $1 AND group_id = $2`, formID, groupID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete acl entry: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// List returns every entry of a form ordered by group name.
func (r *AclRepository) List(ctx context.Context, formID string) ([]domain.AclEntry, error) {
	query := `
		SELECT ` + aclColumns + `
		FROM form_acl a
		JOIN groups g ON g.id = a.group_id
		WHERE a.form_id = $1
		ORDER BY g.name
	`

	rows, err := r.pool.Query(ctx, query, formID)
	if err != nil {
		if isNotFound(err) {
			return []domain.AclEntry{}, nil
		}
		return nil, fmt.Errorf("query acl entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AclEntry, 0)
	for rows.Next() {
		var e domain.AclEntry
		if err := rows.Scan(&e.FormID, &e.GroupID, &e.GroupName, &e.CanView, &e.CanEdit, &e.CanDelete, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan acl entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		if isNotFound(err) {
			return []domain.AclEntry{}, nil
		}
		return nil, fmt.Errorf("iterate acl entries: %w", err)
	}
	return entries, nil
}
