package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

func isUniqueViolation(err error) bool {
	return pgErrCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrCode(err) == pgForeignKeyViolation
}

func isCheckViolation(err error) bool {
	return pgErrCode(err) == pgCheckViolation
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
