package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	insurance "github.com/goliatone/go-insurance"
)

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation      = "23505"
	pgUndefinedTable       = "42P01"
	pgUndefinedColumn      = "42703"
	pgInvalidPassword      = "28P01"
	pgInvalidAuthorization = "28000"
	pgConnectionException  = "08"
)

// Classify maps a driver error into one of the typed store errors. It is
// the only place driver specific errors are inspected. Errors it cannot
// classify are logged with their cause and wrapped as ErrStoreFailure.
func Classify(err error, logger insurance.Logger) error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if errors.As(err, &rich) {
		return err
	}

	if kind := kindOf(err); kind != nil {
		if kind == insurance.ErrRecordNotFound {
			return insurance.ErrRecordNotFound
		}
		return insurance.WrapAs(err, kind)
	}

	if logger != nil {
		logger.Error("unclassified store failure", "error", err)
	}
	return insurance.WrapAs(err, insurance.ErrStoreFailure)
}

func kindOf(err error) *goerrors.Error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return insurance.ErrRecordNotFound
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded):
		return insurance.ErrStoreUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return insurance.ErrStoreConflict
		case pgErr.Code == pgUndefinedTable, pgErr.Code == pgUndefinedColumn:
			return insurance.ErrSchemaMissing
		case pgErr.Code == pgInvalidPassword, pgErr.Code == pgInvalidAuthorization:
			return insurance.ErrStoreUnauthorized
		case strings.HasPrefix(pgErr.Code, pgConnectionException):
			return insurance.ErrStoreUnavailable
		}
		return nil
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return insurance.ErrStoreUnavailable
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return insurance.ErrStoreConflict
		}
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return insurance.ErrStoreUnavailable
		case sqlite3.ErrAuth, sqlite3.ErrPerm:
			return insurance.ErrStoreUnauthorized
		}
	}

	// pure Go sqlite drivers only expose the message
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return insurance.ErrStoreConflict
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such column"):
		return insurance.ErrSchemaMissing
	}

	return nil
}
