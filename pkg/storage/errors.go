package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type violation int

const (
	noViolation violation = iota
	uniqueViolation
	foreignKeyViolation
)

func classifyDriverError(err error) violation {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return uniqueViolation
		case pqForeignKeyViolation:
			return foreignKeyViolation
		}
		return noViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return uniqueViolation
		case sqlite3.ErrConstraintForeignKey:
			return foreignKeyViolation
		}
	}
	return noViolation
}

// wrapErr maps driver errors onto the store sentinels. A foreign key
// violation on delete means the row is still referenced; on writes it means
// the payload points at a missing row.
func wrapErr(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}

	switch classifyDriverError(err) {
	case uniqueViolation:
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	case foreignKeyViolation:
		if op == "delete" {
			return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
		}
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidReference, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
