package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"forms-api/internal/database"
	"forms-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// identityConstraints maps each partial unique index to the identity kind it guards.
var identityConstraints = map[string]domain.IdentityKind{
	"ux_submissions_form_email":       domain.IdentityEmail,
	"ux_submissions_form_phone":       domain.IdentityPhone,
	"ux_submissions_form_national_id": domain.IdentityNationalID,
}

// SubmissionRepository stores submissions and their answer items.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository instance.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create writes the submission and all items in one transaction.
//
// Duplicate identities are detected only here, by the partial unique
// indexes, and surface as *domain.ConflictError naming the identity kind.
func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	var meta any
	if len(sub.Meta) > 0 {
		b, err := json.Marshal(sub.Meta)
		if err != nil {
			return domain.NewValidationError("meta", "meta must be a JSON object")
		}
		meta = string(b)
	}

	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO submissions (id, form_id, email, phone, national_id, origin_ip, user_agent, meta)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at
		`, sub.ID, sub.FormID, sub.Email, sub.Phone, sub.NationalID, sub.OriginIP, sub.UserAgent, meta).Scan(&sub.CreatedAt)
		if err != nil {
			return mapSubmissionError(sub.FormID, err)
		}

		if len(sub.Items) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, it := range sub.Items {
			batch.Queue(`
				INSERT INTO submission_items (
					submission_id, question_id, text_value, number_value, option_id, option_text, date_value
				) VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, sub.ID, it.QuestionID, it.Text, it.Number, it.OptionID, it.OptionText, fromDatePtr(it.Date))
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return mapSubmissionError(sub.FormID, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close item batch: %w", err)
		}
		return nil
	})
}

func mapSubmissionError(formID string, err error) error {
	pgErr, ok := pgErrorCode(err)
	if !ok {
		return fmt.Errorf("insert submission: %w", err)
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if kind, known := identityConstraints[pgErr.ConstraintName]; known {
			return &domain.ConflictError{FormID: formID, Kind: kind}
		}
	case pgForeignKeyViolation:
		// form, question or option removed while the request was in flight
		return domain.NewNotFoundError("form", formID)
	case pgCheckViolation:
		return domain.NewValidationError(pgErr.ConstraintName, "submission violates %s", pgErr.ConstraintName)
	}
	return fmt.Errorf("insert submission: %w", err)
}

const submissionColumns = `s.id::text, s.form_id::text, s.email, s.phone, s.national_id,
	s.origin_ip, s.user_agent, s.meta, s.created_at`

func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	var s domain.Submission
	var email, phone, nationalID, originIP, userAgent pgtype.Text
	var meta []byte
	if err := row.Scan(&s.ID, &s.FormID, &email, &phone, &nationalID, &originIP, &userAgent, &meta, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Email = toStrPtr(email)
	s.Phone = toStrPtr(phone)
	s.NationalID = toStrPtr(nationalID)
	s.OriginIP = toStrPtr(originIP)
	s.UserAgent = toStrPtr(userAgent)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Meta); err != nil {
			return nil, fmt.Errorf("decode submission meta: %w", err)
		}
	}
	s.Items = make([]domain.AnswerItem, 0)
	return &s, nil
}

// Get returns one submission of formID with its items.
func (r *SubmissionRepository) Get(ctx context.Context, formID, submissionID string) (*domain.Submission, error) {
	sub, err := scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions s WHERE s.id = $1 AND s.form_id = $2`,
		submissionID, formID,
	))
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NewNotFoundError("submission", submissionID)
		}
		return nil, fmt.Errorf("query submission: %w", err)
	}

	if err := r.loadItems(ctx, []*domain.Submission{sub}); err != nil {
		return nil, err
	}
	return sub, nil
}

// List returns submissions of formID newest first, with items.
func (r *SubmissionRepository) List(ctx context.Context, formID string, params domain.ListSubmissionsParams) ([]domain.Submission, *string, error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM submissions s
		WHERE s.form_id = $1
		  AND ($2::timestamptz IS NULL OR (s.created_at, s.id) < ($2::timestamptz, $3::uuid))
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT %d`, submissionColumns, params.Limit+1)

	rows, err := r.pool.Query(ctx, query, formID, cursor.CreatedAt, cursor.ID)
	if err != nil {
		if isNotFound(err) {
			return []domain.Submission{}, nil, nil
		}
		return nil, nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*domain.Submission, 0, params.Limit)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate submissions: %w", err)
	}
	rows.Close()

	var next *string
	if len(subs) > params.Limit {
		subs = subs[:params.Limit]
		last := subs[len(subs)-1]
		next = formatCursor(last.CreatedAt, last.ID)
	}

	if err := r.loadItems(ctx, subs); err != nil {
		return nil, nil, err
	}

	out := make([]domain.Submission, len(subs))
	for i, s := range subs {
		out[i] = *s
	}
	return out, next, nil
}

func (r *SubmissionRepository) loadItems(ctx context.Context, subs []*domain.Submission) error {
	if len(subs) == 0 {
		return nil
	}

	ids := make([]string, len(subs))
	byID := make(map[string]*domain.Submission, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
		byID[s.ID] = s
	}

	rows, err := r.pool.Query(ctx, `
		SELECT submission_id::text, question_id::text, text_value, number_value,
		       option_id::text, option_text, date_value
		FROM submission_items
		WHERE submission_id = ANY($1::uuid[])
		ORDER BY submission_id, id
	`, ids)
	if err != nil {
		return fmt.Errorf("query submission items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var subID string
		var it domain.AnswerItem
		var text, optionID, optionText pgtype.Text
		var number pgtype.Float8
		var date pgtype.Date
		if err := rows.Scan(&subID, &it.QuestionID, &text, &number, &optionID, &optionText, &date); err != nil {
			return fmt.Errorf("scan submission item: %w", err)
		}
		it.Text = toStrPtr(text)
		it.Number = toFloat64Ptr(number)
		it.OptionID = toStrPtr(optionID)
		it.OptionText = toStrPtr(optionText)
		it.Date = toDatePtr(date)

		if s, ok := byID[subID]; ok {
			s.Items = append(s.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate submission items: %w", err)
	}
	return nil
}

// Delete removes one submission and reports whether it existed.
func (r *SubmissionRepository) Delete(ctx context.Context, formID, submissionID string) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM submissions WHERE id = $1 AND form_id = $2`, submissionID, formID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete submission: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteByForm removes every submission of a form and returns how many.
func (r *SubmissionRepository) DeleteByForm(ctx context.Context, formID string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM submissions WHERE form_id = $1`, formID)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("delete submissions: %w", err)
	}
	return result.RowsAffected(), nil
}
