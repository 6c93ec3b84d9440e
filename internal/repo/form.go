package repo

import (
	"context"
	"fmt"

	"forms-api/internal/database"
	"forms-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FormRepository persists forms together with their questions and options.
// State filtering happens here, never in callers.
type FormRepository struct {
	pool *pgxpool.Pool
}

// NewFormRepository creates a new FormRepository instance.
func NewFormRepository(pool *pgxpool.Pool) *FormRepository {
	return &FormRepository{pool: pool}
}

const formColumns = `
	f.id::text, f.title, f.description, f.state, f.uniqueness_mode,
	f.accepting_responses, f.public_slug, f.created_by,
	f.created_at, f.updated_at, f.archived_at
`

func scanForm(row pgx.Row) (*domain.Form, error) {
	var f domain.Form
	var description, slug pgtype.Text
	var state, mode string
	var archivedAt pgtype.Timestamptz

	err := row.Scan(
		&f.ID, &f.Title, &description, &state, &mode,
		&f.AcceptingResponses, &slug, &f.CreatedBy,
		&f.CreatedAt, &f.UpdatedAt, &archivedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Description = toStrPtr(description)
	f.PublicSlug = toStrPtr(slug)
	f.State = domain.FormState(state)
	f.UniquenessMode = domain.UniquenessMode(mode)
	f.ArchivedAt = toTimePtr(archivedAt)
	return &f, nil
}

// =====================================================
// Create
// =====================================================

// Create inserts the form, its questions and options, and a full grant for
// each of grantGroups, all in one transaction.
func (r *FormRepository) Create(ctx context.Context, form *domain.Form, grantGroups []string) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO forms (id, title, description, state, uniqueness_mode, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`, form.ID, form.Title, form.Description, string(form.State), string(form.UniquenessMode), form.CreatedBy,
		).Scan(&form.CreatedAt, &form.UpdatedAt)
		if err != nil {
			if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == pgCheckViolation {
				return domain.NewValidationError(pgErr.ConstraintName, "form violates %s", pgErr.ConstraintName)
			}
			return fmt.Errorf("insert form: %w", err)
		}

		batch := &pgx.Batch{}
		for _, q := range form.Questions {
			batch.Queue(`
				INSERT INTO questions (id, form_id, title, type, required, position, scale_min, scale_max)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, q.ID, form.ID, q.Title, string(q.Type), q.Required, q.Position, fromIntPtr(q.ScaleMin), fromIntPtr(q.ScaleMax))

			for _, o := range q.Options {
				batch.Queue(`
					INSERT INTO question_options (id, question_id, text, custom, position)
					VALUES ($1, $2, $3, $4, $5)
				`, o.ID, q.ID, o.Text, o.Custom, o.Position)
			}
		}

		if batch.Len() > 0 {
			br := tx.SendBatch(ctx, batch)
			for i := 0; i < batch.Len(); i++ {
				if _, err := br.Exec(); err != nil {
					_ = br.Close()
					if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == pgCheckViolation {
						return domain.NewValidationError(pgErr.ConstraintName, "question violates %s", pgErr.ConstraintName)
					}
					return fmt.Errorf("insert questions: %w", err)
				}
			}
			if err := br.Close(); err != nil {
				return fmt.Errorf("close question batch: %w", err)
			}
		}

		seen := make(map[string]bool, len(grantGroups))
		for _, groupID := range grantGroups {
			if groupID == "" || seen[groupID] {
				continue
			}
			seen[groupID] = true
			if err := GrantAllTx(ctx, tx, form.ID, groupID); err != nil {
				return fmt.Errorf("grant group %s: %w", groupID, err)
			}
		}
		return nil
	})
}

// =====================================================
// Read
// =====================================================

// Get returns a form in any state, with questions and options.
func (r *FormRepository) Get(ctx context.Context, formID string) (*domain.Form, error) {
	form, err := scanForm(r.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM forms f WHERE f.id = $1`, formID))
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("form", formID)
		}
		return nil, fmt.Errorf("query form: %w", err)
	}

	if err := r.loadQuestions(ctx, form); err != nil {
		return nil, err
	}
	return form, nil
}

// GetPublicBySlug returns an active form that is accepting responses.
func (r *FormRepository) GetPublicBySlug(ctx context.Context, slug string) (*domain.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms f
		WHERE f.public_slug = $1 AND f.state = 'active' AND f.accepting_responses`

	form, err := scanForm(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("form", slug)
		}
		return nil, fmt.Errorf("query public form: %w", err)
	}

	if err := r.loadQuestions(ctx, form); err != nil {
		return nil, err
	}
	return form, nil
}

func (r *FormRepository) loadQuestions(ctx context.Context, form *domain.Form) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, form_id::text, title, type, required, position, scale_min, scale_max
		FROM questions
		WHERE form_id = $1
		ORDER BY position
	`, form.ID)
	if err != nil {
		return fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	form.Questions = make([]domain.Question, 0)
	index := make(map[string]int)
	for rows.Next() {
		var q domain.Question
		var typ string
		var scaleMin, scaleMax pgtype.Int4
		if err := rows.Scan(&q.ID, &q.FormID, &q.Title, &typ, &q.Required, &q.Position, &scaleMin, &scaleMax); err != nil {
			return fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(typ)
		q.ScaleMin = toIntPtr(scaleMin)
		q.ScaleMax = toIntPtr(scaleMax)
		q.Options = make([]domain.Option, 0)
		index[q.ID] = len(form.Questions)
		form.Questions = append(form.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate questions: %w", err)
	}
	rows.Close()

	optRows, err := r.pool.Query(ctx, `
		SELECT o.id::text, o.question_id::text, o.text, o.custom, o.position
		FROM question_options o
		JOIN questions q ON q.id = o.question_id
		WHERE q.form_id = $1
		ORDER BY o.question_id, o.position
	`, form.ID)
	if err != nil {
		return fmt.Errorf("query options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var o domain.Option
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Custom, &o.Position); err != nil {
			return fmt.Errorf("scan option: %w", err)
		}
		if i, ok := index[o.QuestionID]; ok {
			form.Questions[i].Options = append(form.Questions[i].Options, o)
		}
	}
	if err := optRows.Err(); err != nil {
		return fmt.Errorf("iterate options: %w", err)
	}
	return nil
}

// List returns forms newest first. When viewerGroup is non-nil only forms whose
// ACL grants that group view access are returned. Archived forms are excluded
// unless params.IncludeArchived is set.
func (r *FormRepository) List(ctx context.Context, params domain.ListFormsParams, viewerGroup *string) ([]domain.Form, *string, error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}

	query := `SELECT ` + formColumns + ` FROM forms f
		WHERE ($1::boolean OR f.state = 'active')
		  AND ($2::timestamptz IS NULL OR (f.created_at, f.id) < ($2::timestamptz, $3::uuid))`
	args := []any{params.IncludeArchived, cursor.CreatedAt, cursor.ID}

	if viewerGroup != nil {
		query += ` AND EXISTS (
			SELECT 1 FROM form_acl a
			WHERE a.form_id = f.id AND a.group_id = $4 AND a.can_view
		)`
		args = append(args, *viewerGroup)
	}
	query += fmt.Sprintf(` ORDER BY f.created_at DESC, f.id DESC LIMIT %d`, params.Limit+1) // +1 para detectar próxima página

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		if isNotFound(err) {
			return []domain.Form{}, nil, nil
		}
		return nil, nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()

	forms := make([]domain.Form, 0, params.Limit)
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate forms: %w", err)
	}

	var next *string
	if len(forms) > params.Limit {
		forms = forms[:params.Limit]
		last := forms[len(forms)-1]
		next = formatCursor(last.CreatedAt, last.ID)
	}
	return forms, next, nil
}

// =====================================================
// Lifecycle
// =====================================================

// SetState moves a form from one state to another. Returns domain.ErrNotFound
// when the form does not exist or is not in the from state.
func (r *FormRepository) SetState(ctx context.Context, formID string, from, to domain.FormState) error {
	query := `
		UPDATE forms SET
			state = $3,
			archived_at = CASE WHEN $3 = 'archived' THEN NOW() ELSE NULL END,
			accepting_responses = CASE WHEN $3 = 'archived' THEN FALSE ELSE accepting_responses END,
			updated_at = NOW()
		WHERE id = $1 AND state = $2
	`

	result, err := r.pool.Exec(ctx, query, formID, string(from), string(to))
	if err != nil {
		if isNotFound(err) {
			return domain.NewNotFoundError("form", formID)
		}
		return fmt.Errorf("update form state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("form", formID)
	}
	return nil
}

// Publish opens an active form for responses. The slug is assigned only the
// first time; later calls keep the existing one and return it.
func (r *FormRepository) Publish(ctx context.Context, formID, slug string) (string, error) {
	query := `
		UPDATE forms SET
			public_slug = COALESCE(public_slug, $2),
			accepting_responses = TRUE,
			updated_at = NOW()
		WHERE id = $1 AND state = 'active'
		RETURNING public_slug
	`

	var assigned string
	err := r.pool.QueryRow(ctx, query, formID, slug).Scan(&assigned)
	if err != nil {
		if isNotFound(err) {
			return "", domain.NewNotFoundError("form", formID)
		}
		if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == pgUniqueViolation {
			return "", &domain.DuplicateError{Entity: "form", Field: "public slug"}
		}
		return "", fmt.Errorf("publish form: %w", err)
	}
	return assigned, nil
}

// Unpublish stops accepting responses. The slug is kept.
func (r *FormRepository) Unpublish(ctx context.Context, formID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE forms SET accepting_responses = FALSE, updated_at = NOW()
		WHERE id = $1 AND state = 'active'
	`, formID)
	if err != nil {
		if isNotFound(err) {
			return domain.NewNotFoundError("form", formID)
		}
		return fmt.Errorf("unpublish form: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("form", formID)
	}
	return nil
}
