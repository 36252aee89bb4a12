package errors

// pgx translation: SQLSTATE to ErrorCode, plus retry classification for
// the queue and repo layers

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlstateUnique          = "23505"
	sqlstateForeignKey      = "23503"
	sqlstateNotNull         = "23502"
	sqlstateCheck           = "23514"
	sqlstateValueTooLong    = "22001"
	sqlstateBadText         = "22P02"
	sqlstateSerialization   = "40001"
	sqlstateDeadlock        = "40P01"
	sqlstateLockUnavailable = "55P03"
	sqlstateReadOnlyTx      = "25006"
	sqlstateStartingUp      = "57P03"
)

// sqlstateCodes is the SQLSTATE-to-project-code table. States absent here
// classify as plain DB errors
var sqlstateCodes = map[string]ErrorCode{
	sqlstateUnique:     ErrorCodeDuplicateKey,
	sqlstateForeignKey: ErrorCodeInvalidArgument, // input referenced a row that is not there

	sqlstateNotNull: ErrorCodeValidation,
	sqlstateCheck:   ErrorCodeValidation,

	sqlstateValueTooLong: ErrorCodeInvalidArgument,
	sqlstateBadText:      ErrorCodeInvalidArgument,

	// server-side contention; safe to retry
	sqlstateSerialization:   ErrorCodeDB,
	sqlstateDeadlock:        ErrorCodeDB,
	sqlstateLockUnavailable: ErrorCodeDB,

	sqlstateReadOnlyTx: ErrorCodeUnavailable,
	sqlstateStartingUp: ErrorCodeUnavailable,
}

// contentionStates are worth an automatic retry; everything else either
// fails for good or needs a human
var contentionStates = map[string]bool{
	sqlstateSerialization:   true,
	sqlstateDeadlock:        true,
	sqlstateLockUnavailable: true,
}

// contentionText covers the commit-path failures pgx reports as plain text
// with no SQLSTATE attached
var contentionText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
	"serialization failure",
	"canceling statement due to statement timeout",
	"canceling statement due to lock timeout",
	"could not obtain lock on row",
	"terminating connection due to administrator command",
}

// DBErrorCode maps a postgres error to an ErrorCode. !ok means err held
// no PgError and the caller decides the fallback.
func DBErrorCode(err error) (ErrorCode, bool) {
	var pgErr *pgconn.PgError
	if !stderrs.As(err, &pgErr) {
		return ErrorCodeUnknown, false
	}
	if code, ok := sqlstateCodes[pgErr.Code]; ok {
		return code, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps a database error with its mapped code. nil in, nil out.
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// Retryable reports whether a database error is transient contention worth
// retrying. Local cancellations are never retryable; the caller owns those.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}

	root := Root(err)

	var pgErr *pgconn.PgError
	if stderrs.As(root, &pgErr) {
		return contentionStates[pgErr.Code]
	}

	s := strings.ToLower(root.Error())
	for _, marker := range contentionText {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
