package repo

import (
	"context"
	"fmt"
	"slices"

	"forms-api/internal/database"
	"forms-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =====================================================
// Repository Definition
// =====================================================

// GroupRepository resolves groups, their permission codes and user membership.
type GroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new GroupRepository instance.
func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// =====================================================
// Lookups
// =====================================================

// GetByID returns the group or a domain.ErrNotFound error.
func (r *GroupRepository) GetByID(ctx context.Context, groupID string) (*domain.Group, error) {
	return getGroupByID(ctx, r.pool, groupID)
}

// GetByName returns the group or a domain.ErrNotFound error.
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*domain.Group, error) {
	return getGroupByName(ctx, r.pool, name)
}

// Resolve looks a group up by id, or by name only when the id is empty.
func (r *GroupRepository) Resolve(ctx context.Context, ref domain.GroupRef) (*domain.Group, error) {
	return resolveGroup(ctx, r.pool, ref)
}

func getGroupByID(ctx context.Context, q DBTX, groupID string) (*domain.Group, error) {
	var g domain.Group
	err := q.QueryRow(ctx, `SELECT id::text, name FROM groups WHERE id = $1`, groupID).Scan(&g.ID, &g.Name)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("group", groupID)
		}
		return nil, fmt.Errorf("query group by id: %w", err)
	}
	return &g, nil
}

func getGroupByName(ctx context.Context, q DBTX, name string) (*domain.Group, error) {
	var g domain.Group
	err := q.QueryRow(ctx, `SELECT id::text, name FROM groups WHERE name = $1`, name).Scan(&g.ID, &g.Name)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("group", name)
		}
		return nil, fmt.Errorf("query group by name: %w", err)
	}
	return &g, nil
}

func resolveGroup(ctx context.Context, q DBTX, ref domain.GroupRef) (*domain.Group, error) {
	switch {
	case ref.ID != "":
		return getGroupByID(ctx, q, ref.ID)
	case ref.Name != "":
		return getGroupByName(ctx, q, ref.Name)
	default:
		return nil, domain.NewNotFoundError("group", "")
	}
}

// List returns every group ordered by name.
func (r *GroupRepository) List(ctx context.Context) ([]domain.Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, name FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := make([]domain.Group, 0)
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// =====================================================
// Actor Loading
// =====================================================

// GetUserGroup returns the group id of an active user. An unknown or inactive
// user, or one without a group, yields "" and no error.
func (r *GroupRepository) GetUserGroup(ctx context.Context, userID string) (string, error) {
	var groupID *string
	err := r.pool.QueryRow(ctx,
		`SELECT group_id::text FROM users WHERE id = $1 AND active`, userID,
	).Scan(&groupID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("query user group: %w", err)
	}
	if groupID == nil {
		return "", nil
	}
	return *groupID, nil
}

// PermissionCodes returns the global codes assigned to a group.
func (r *GroupRepository) PermissionCodes(ctx context.Context, groupID string) ([]domain.PermissionCode, error) {
	query := `
		SELECT p.code
		FROM group_permissions gp
		JOIN permissions p ON p.id = gp.permission_id
		WHERE gp.group_id = $1
		ORDER BY p.code
	`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query group permissions: %w", err)
	}
	defer rows.Close()

	var codes []domain.PermissionCode
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan permission code: %w", err)
		}
		codes = append(codes, domain.PermissionCode(code))
	}
	if err := rows.Err(); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("iterate group permissions: %w", err)
	}
	return codes, nil
}

// ListPermissions returns the full permission catalogue.
func (r *GroupRepository) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, code, name FROM permissions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]domain.Permission, 0)
	for rows.Next() {
		var p domain.Permission
		var code string
		if err := rows.Scan(&p.ID, &code, &p.Name); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		p.Code = domain.PermissionCode(code)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return perms, nil
}

// GroupMembers returns the ids of every user in the group, active or not.
func (r *GroupRepository) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return ids, nil
}

// =====================================================
// Administration
// =====================================================

// CreateGroup inserts a group. A taken name is a *domain.DuplicateError.
func (r *GroupRepository) CreateGroup(ctx context.Context, name string) (*domain.Group, error) {
	var g domain.Group
	err := r.pool.QueryRow(ctx,
		`INSERT INTO groups (name) VALUES ($1) RETURNING id::text, name`, name,
	).Scan(&g.ID, &g.Name)
	if err != nil {
		if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == pgUniqueViolation {
			return nil, &domain.DuplicateError{Entity: "group", Field: "name"}
		}
		return nil, fmt.Errorf("create group: %w", err)
	}
	return &g, nil
}

// DeleteGroup removes a group that no user belongs to. The group row is
// locked first, so a user cannot be assigned between the count and the delete.
// ACL entries and code grants of the group go with it.
func (r *GroupRepository) DeleteGroup(ctx context.Context, groupID string) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockGroup(ctx, tx, groupID); err != nil {
			return err
		}

		var members int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE group_id = $1`, groupID).Scan(&members); err != nil {
			return fmt.Errorf("count group members: %w", err)
		}
		if members > 0 {
			return &domain.GroupInUseError{GroupID: groupID, Members: members}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID); err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		return nil
	})
}

// SetPermissionCodes replaces the group's codes with codes and returns the
// stored set sorted. Any code missing from the catalogue rejects the whole
// change.
func (r *GroupRepository) SetPermissionCodes(ctx context.Context, groupID string, codes []domain.PermissionCode) ([]domain.PermissionCode, error) {
	raw := make([]string, len(codes))
	for i, c := range codes {
		raw[i] = string(c)
	}

	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockGroup(ctx, tx, groupID); err != nil {
			return err
		}

		known, err := knownCodes(ctx, tx, raw)
		if err != nil {
			return err
		}
		for _, c := range raw {
			if _, ok := known[c]; !ok {
				return domain.NewValidationError("codes", "unknown permission code %q", c)
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM group_permissions WHERE group_id = $1`, groupID); err != nil {
			return fmt.Errorf("clear group permissions: %w", err)
		}
		if len(raw) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO group_permissions (group_id, permission_id)
			SELECT $1, p.id FROM permissions p WHERE p.code = ANY($2::text[])
		`, groupID, raw)
		if err != nil {
			return fmt.Errorf("grant group permissions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := slices.Clone(codes)
	slices.Sort(out)
	return out, nil
}

func lockGroup(ctx context.Context, tx pgx.Tx, groupID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id::text FROM groups WHERE id = $1 FOR UPDATE`, groupID).Scan(&id)
	if err != nil {
		if isNotFound(err) {
			return domain.NewNotFoundError("group", groupID)
		}
		return fmt.Errorf("lock group: %w", err)
	}
	return nil
}

func knownCodes(ctx context.Context, q DBTX, codes []string) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(codes))
	if len(codes) == 0 {
		return known, nil
	}
	rows, err := q.Query(ctx, `SELECT code FROM permissions WHERE code = ANY($1::text[])`, codes)
	if err != nil {
		return nil, fmt.Errorf("query permission codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan permission code: %w", err)
		}
		known[c] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permission codes: %w", err)
	}
	return known, nil
}

// =====================================================
// Seeding
// =====================================================

// EnsurePermissions inserts missing catalogue rows and refreshes display names.
func (r *GroupRepository) EnsurePermissions(ctx context.Context, perms []domain.Permission) error {
	query := `
		INSERT INTO permissions (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
	`
	for _, p := range perms {
		if _, err := r.pool.Exec(ctx, query, string(p.Code), p.Name); err != nil {
			return fmt.Errorf("upsert permission %s: %w", p.Code, err)
		}
	}
	return nil
}

// EnsureGroup returns the named group, creating it when absent.
func (r *GroupRepository) EnsureGroup(ctx context.Context, name string) (*domain.Group, error) {
	query := `
		INSERT INTO groups (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id::text, name
	`
	var g domain.Group
	if err := r.pool.QueryRow(ctx, query, name).Scan(&g.ID, &g.Name); err != nil {
		return nil, fmt.Errorf("ensure group %s: %w", name, err)
	}
	return &g, nil
}

// GrantCodes attaches codes to a group. Unknown codes are ignored.
func (r *GroupRepository) GrantCodes(ctx context.Context, groupID string, codes []domain.PermissionCode) error {
	query := `
		INSERT INTO group_permissions (group_id, permission_id)
		SELECT $1, p.id FROM permissions p WHERE p.code = $2
		ON CONFLICT DO NOTHING
	`
	for _, c := range codes {
		if _, err := r.pool.Exec(ctx, query, groupID, string(c)); err != nil {
			return fmt.Errorf("grant %s to group %s: %w", c, groupID, err)
		}
	}
	return nil
}

// AssignUser puts a user in a group, creating the user row if needed.
func (r *GroupRepository) AssignUser(ctx context.Context, userID, groupID string) error {
	query := `
		INSERT INTO users (id, group_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET group_id = EXCLUDED.group_id
	`
	if _, err := r.pool.Exec(ctx, query, userID, groupID); err != nil {
		if isForeignKeyViolation(err) {
			return domain.NewNotFoundError("group", groupID)
		}
		return fmt.Errorf("assign user %s: %w", userID, err)
	}
	return nil
}
