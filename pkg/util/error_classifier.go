package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsRetryableError reports whether a failed tick or notify is expected to
// succeed on a later attempt, together with a short error type for logs and metrics.
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	// Cancellation is checked first: a cancelled tick usually also carries a
	// driver error wrapping the same cause.
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, "json_decode_error"
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false, "not_found"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return false, "duplicate_key"
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return true, "serialization_failure"
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			return true, "db_connection_error"
		default:
			return false, "db_error"
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true, "db_connection_error"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "UNIQUE constraint"):
		return false, "duplicate_key"
	case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "SQLITE_BUSY"):
		return true, "db_busy"
	case strings.Contains(errStr, "connection"):
		return true, "db_connection_error"
	case strings.Contains(errStr, "circuit breaker is open"):
		return true, "circuit_open"
	}

	return false, "unknown_error"
}

// ClassifyError returns only the error type of IsRetryableError.
func ClassifyError(err error) string {
	_, errType := IsRetryableError(err)
	return errType
}
