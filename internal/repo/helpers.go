package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"forms-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so query helpers run
// unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres error codes handled by the repositories.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidTextRep      = "22P02" // e.g. malformed uuid literal
)

func pgErrorCode(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// isNotFound treats a missing row and a malformed id the same way.
func isNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	pgErr, ok := pgErrorCode(err)
	return ok && pgErr.Code == pgInvalidTextRep
}

func isForeignKeyViolation(err error) bool {
	pgErr, ok := pgErrorCode(err)
	return ok && pgErr.Code == pgForeignKeyViolation
}

func toStrPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

func toFloat64Ptr(f pgtype.Float8) *float64 {
	if f.Valid {
		return &f.Float64
	}
	return nil
}

func toTimePtr(ts pgtype.Timestamptz) *time.Time {
	if ts.Valid {
		t := ts.Time
		return &t
	}
	return nil
}

func toDatePtr(d pgtype.Date) *domain.Date {
	if d.Valid {
		return &domain.Date{Time: d.Time}
	}
	return nil
}

func fromDatePtr(d *domain.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time, Valid: true}
}

func toIntPtr(i pgtype.Int4) *int {
	if i.Valid {
		v := int(i.Int32)
		return &v
	}
	return nil
}

func fromIntPtr(i *int) pgtype.Int4 {
	if i == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*i), Valid: true}
}

// keysetCursor is the position after the last row of a page. Rows are
// ordered by (created_at, id) descending, so rows sharing a timestamp are
// neither skipped nor repeated across pages.
type keysetCursor struct {
	CreatedAt pgtype.Timestamptz
	ID        pgtype.Text
}

const cursorSeparator = "|"

// parseCursor decodes a "<RFC3339Nano>|<uuid>" cursor. A nil or empty cursor
// yields the zero value, which the list queries treat as the first page.
func parseCursor(cursor *string) (keysetCursor, error) {
	if cursor == nil || *cursor == "" {
		return keysetCursor{}, nil
	}
	ts, id, ok := strings.Cut(*cursor, cursorSeparator)
	if !ok {
		return keysetCursor{}, domain.NewValidationError("cursor", "invalid cursor format")
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return keysetCursor{}, domain.NewValidationError("cursor", "invalid cursor format")
	}
	if _, err := uuid.Parse(id); err != nil {
		return keysetCursor{}, domain.NewValidationError("cursor", "invalid cursor format")
	}
	return keysetCursor{
		CreatedAt: pgtype.Timestamptz{Time: t, Valid: true},
		ID:        pgtype.Text{String: id, Valid: true},
	}, nil
}

func formatCursor(t time.Time, id string) *string {
	s := t.UTC().Format(time.RFC3339Nano) + cursorSeparator + id
	return &s
}
